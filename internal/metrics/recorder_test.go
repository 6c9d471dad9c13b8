package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecorder_RecordAndSnapshot(t *testing.T) {
	r := NewRecorder()

	for i := 1; i <= 100; i++ {
		r.Record("job", time.Duration(i)*time.Millisecond)
	}

	snap := r.Snapshot("job")
	assert.Equal(t, int64(100), snap.Count)
	assert.InDelta(t, 50, snap.P50, 2)
	assert.InDelta(t, 95, snap.P95, 2)
	assert.InDelta(t, 100, snap.Max, 2)
}

func TestRecorder_UnknownSeriesIsZero(t *testing.T) {
	r := NewRecorder()
	assert.Equal(t, Snapshot{}, r.Snapshot("nothing"))
}

func TestRecorder_ClampsOutOfRange(t *testing.T) {
	r := NewRecorder()
	r.Record("job", 0)
	r.Record("job", 48*time.Hour)

	snap := r.Snapshot("job")
	assert.Equal(t, int64(2), snap.Count)
	assert.LessOrEqual(t, snap.Max, float64(maxLatencyMs)*1.001)
}

func TestRecorder_SnapshotAllAndReset(t *testing.T) {
	r := NewRecorder()
	r.Record("job", 10*time.Millisecond)
	r.Record("notebook", 20*time.Millisecond)

	all := r.SnapshotAll()
	assert.Len(t, all, 2)
	assert.Equal(t, int64(1), all["job"].Count)
	assert.Equal(t, int64(1), all["notebook"].Count)

	r.Reset()
	assert.Empty(t, r.SnapshotAll())
}
