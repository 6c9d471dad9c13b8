package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testops/testplan-engine/internal/lifecycle"
	"testops/testplan-engine/internal/request"
	"testops/testplan-engine/pkg/types"
)

func TestParsePropertyFlags(t *testing.T) {
	props, err := parsePropertyFlags([]string{
		"voltage=48",
		"label=PS-2000",
		"enabled=true",
		"note=limit=5", // value may itself contain '='
	})
	require.NoError(t, err)

	assert.True(t, props["voltage"].Equal(types.Number(48)), "numbers keep their type")
	assert.True(t, props["label"].Equal(types.String("PS-2000")))
	assert.True(t, props["enabled"].Equal(types.Bool(true)))
	assert.True(t, props["note"].Equal(types.String("limit=5")))

	_, err = parsePropertyFlags([]string{"missing-separator"})
	require.Error(t, err)

	_, err = parsePropertyFlags([]string{"=no-key"})
	require.Error(t, err)
}

func TestLoadPropertiesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "props.yaml")
	require.NoError(t, os.WriteFile(path, []byte("voltage: 24\nlimits:\n  high: 70\n"), 0o644))

	props, err := loadPropertiesFile(path)
	require.NoError(t, err)
	assert.True(t, props["voltage"].Equal(types.Number(24)))
	assert.Equal(t, types.KindObject, props["limits"].Kind())

	none, err := loadPropertiesFile("")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = loadPropertiesFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestParseTransitions(t *testing.T) {
	transitions, err := parseTransitions("start, pause ,resume,end")
	require.NoError(t, err)
	assert.Equal(t, []lifecycle.Transition{
		lifecycle.TransitionStart,
		lifecycle.TransitionPause,
		lifecycle.TransitionResume,
		lifecycle.TransitionEnd,
	}, transitions)

	_, err = parseTransitions("start,launch")
	require.Error(t, err)

	_, err = parseTransitions(" , ")
	require.Error(t, err)
}

func TestRequestToAny(t *testing.T) {
	req := &request.ExecutionRequest{
		Type:     types.ActionTypeJob,
		SystemID: "rack-12",
		Jobs: []request.JobExecution{
			{
				ID: "job-1",
				Calls: []request.FunctionCall{
					{
						Function:   "measure",
						Positional: []types.Value{types.Number(48)},
						Keywords:   map[string]types.Value{"channel": types.Number(1)},
					},
				},
			},
		},
	}

	out, ok := requestToAny(req).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "JOB", out["type"])
	assert.Equal(t, "rack-12", out["systemId"])

	jobs, ok := out["jobs"].([]any)
	require.True(t, ok)
	require.Len(t, jobs, 1)
	job := jobs[0].(map[string]any)
	assert.Equal(t, "job-1", job["id"])

	calls := job["calls"].([]any)
	require.Len(t, calls, 1)
	call := calls[0].(map[string]any)
	assert.Equal(t, "measure", call["function"])
	assert.Equal(t, []any{int64(48)}, call["args"])
	assert.Equal(t, map[string]any{"channel": int64(1)}, call["kwargs"])
}
