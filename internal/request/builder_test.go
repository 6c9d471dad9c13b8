package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testops/testplan-engine/internal/property"
	"testops/testplan-engine/internal/resolver"
	"testops/testplan-engine/pkg/types"
)

func testStore() property.Store {
	return property.MapStore{
		"partNumber":       types.String("NI-ABC-123"),
		"count":            types.Number(3),
		"properties.limit": types.Number(70),
	}
}

func marker(fields map[string]types.Value) types.Value {
	all := map[string]types.Value{KeywordMarkerKey: types.Bool(true)}
	for k, v := range fields {
		all[k] = v
	}
	return types.Object(all)
}

func TestBuild_JobRoundTrip(t *testing.T) {
	action := &types.ExecutionAction{
		Type: types.ActionTypeJob,
		Jobs: []types.Job{{
			Functions: []string{"f1", "f2"},
			Arguments: [][]types.Value{
				{types.String("x")},
				{types.String("y"), marker(map[string]types.Value{"k": types.String("v")})},
			},
		}},
	}

	req, err := Build(action, "sys-7", testStore())
	require.NoError(t, err)

	assert.Equal(t, types.ActionTypeJob, req.Type)
	assert.Equal(t, "sys-7", req.SystemID)
	require.Len(t, req.Jobs, 1)
	require.Len(t, req.Jobs[0].Calls, 2)
	assert.NotEmpty(t, req.Jobs[0].ID)

	f1 := req.Jobs[0].Calls[0]
	assert.Equal(t, "f1", f1.Function)
	require.Len(t, f1.Positional, 1)
	assert.Equal(t, types.String("x"), f1.Positional[0])
	assert.Nil(t, f1.Keywords)

	f2 := req.Jobs[0].Calls[1]
	assert.Equal(t, "f2", f2.Function)
	require.Len(t, f2.Positional, 1)
	assert.Equal(t, types.String("y"), f2.Positional[0])
	require.NotNil(t, f2.Keywords)
	assert.Equal(t, types.String("v"), f2.Keywords["k"])
	_, hasMarker := f2.Keywords[KeywordMarkerKey]
	assert.False(t, hasMarker, "marker key must be stripped from the keyword bag")
}

func TestBuild_JobResolvesTokens(t *testing.T) {
	action := &types.ExecutionAction{
		Type: types.ActionTypeJob,
		Jobs: []types.Job{{
			Functions: []string{"deploy"},
			Arguments: [][]types.Value{
				{
					types.String("<partNumber>"),
					marker(map[string]types.Value{"limit": types.String("<properties.limit>")}),
				},
			},
		}},
	}

	req, err := Build(action, "sys-7", testStore())
	require.NoError(t, err)

	call := req.Jobs[0].Calls[0]
	assert.Equal(t, types.String("NI-ABC-123"), call.Positional[0])
	assert.Equal(t, types.Number(70), call.Keywords["limit"])
}

func TestBuild_JobOrderIsDeclarationOrder(t *testing.T) {
	action := &types.ExecutionAction{
		Type: types.ActionTypeJob,
		Jobs: []types.Job{
			{Functions: []string{"configure"}, Arguments: [][]types.Value{{}}},
			{Functions: []string{"restart"}, Arguments: [][]types.Value{{}}},
			{Functions: []string{"verify"}, Arguments: [][]types.Value{{}}},
		},
	}

	req, err := Build(action, "sys-7", testStore())
	require.NoError(t, err)
	require.Len(t, req.Jobs, 3)
	assert.Equal(t, "configure", req.Jobs[0].Calls[0].Function)
	assert.Equal(t, "restart", req.Jobs[1].Calls[0].Function)
	assert.Equal(t, "verify", req.Jobs[2].Calls[0].Function)
}

func TestBuild_LengthMismatch(t *testing.T) {
	action := &types.ExecutionAction{
		Type: types.ActionTypeJob,
		Jobs: []types.Job{{
			Functions: []string{"f1", "f2"},
			Arguments: [][]types.Value{{types.String("x")}},
		}},
	}

	_, err := Build(action, "sys-7", testStore())
	require.Error(t, err)
	assert.True(t, IsLengthMismatchError(err))
}

func TestBuild_MisplacedMarker(t *testing.T) {
	action := &types.ExecutionAction{
		Type: types.ActionTypeJob,
		Jobs: []types.Job{{
			Functions: []string{"f1"},
			Arguments: [][]types.Value{
				{marker(nil), types.String("after")},
			},
		}},
	}

	_, err := Build(action, "sys-7", testStore())
	require.Error(t, err)
	assert.True(t, IsMisplacedMarkerError(err))
}

func TestBuild_MarkerAsOnlyElement(t *testing.T) {
	action := &types.ExecutionAction{
		Type: types.ActionTypeJob,
		Jobs: []types.Job{{
			Functions: []string{"f1"},
			Arguments: [][]types.Value{
				{marker(map[string]types.Value{"a": types.Number(1)})},
			},
		}},
	}

	req, err := Build(action, "sys-7", testStore())
	require.NoError(t, err)
	call := req.Jobs[0].Calls[0]
	assert.Empty(t, call.Positional)
	assert.Equal(t, types.Number(1), call.Keywords["a"])
}

func TestBuild_ObjectWithoutMarkerKeyIsPositional(t *testing.T) {
	action := &types.ExecutionAction{
		Type: types.ActionTypeJob,
		Jobs: []types.Job{{
			Functions: []string{"f1"},
			Arguments: [][]types.Value{{
				types.Object(map[string]types.Value{"k": types.String("v")}),
				types.Object(map[string]types.Value{KeywordMarkerKey: types.Bool(false)}),
				types.String("z"),
			}},
		}},
	}

	req, err := Build(action, "sys-7", testStore())
	require.NoError(t, err)
	call := req.Jobs[0].Calls[0]
	assert.Len(t, call.Positional, 3)
	assert.Nil(t, call.Keywords)
}

func TestBuild_Notebook(t *testing.T) {
	action := &types.ExecutionAction{
		Type:       types.ActionTypeNotebook,
		NotebookID: "nb-123",
		Arguments: []types.Value{
			types.String("<partNumber>"),
			types.Number(5),
		},
	}

	req, err := Build(action, "sys-7", testStore())
	require.NoError(t, err)
	require.NotNil(t, req.Notebook)
	assert.Equal(t, "nb-123", req.Notebook.NotebookID)
	assert.NotEmpty(t, req.Notebook.ID)
	require.Len(t, req.Notebook.Arguments, 2)
	assert.Equal(t, types.String("NI-ABC-123"), req.Notebook.Arguments[0])
	assert.Equal(t, types.Number(5), req.Notebook.Arguments[1])
	assert.Empty(t, req.Jobs)
}

func TestBuild_NotebookRejectsKeywordMarker(t *testing.T) {
	action := &types.ExecutionAction{
		Type:       types.ActionTypeNotebook,
		NotebookID: "nb-123",
		Arguments:  []types.Value{marker(map[string]types.Value{"k": types.String("v")})},
	}

	_, err := Build(action, "sys-7", testStore())
	require.Error(t, err)
	assert.True(t, IsMisplacedMarkerError(err))
}

func TestBuild_Manual(t *testing.T) {
	req, err := Build(&types.ExecutionAction{Type: types.ActionTypeManual}, "sys-7", testStore())
	require.NoError(t, err)
	assert.Equal(t, types.ActionTypeManual, req.Type)
	assert.Empty(t, req.Jobs)
	assert.Nil(t, req.Notebook)
}

func TestBuild_ResolutionErrorSurfacesBeforeDispatch(t *testing.T) {
	action := &types.ExecutionAction{
		Type: types.ActionTypeJob,
		Jobs: []types.Job{{
			Functions: []string{"f1"},
			Arguments: [][]types.Value{{types.String("<missing>")}},
		}},
	}

	_, err := Build(action, "sys-7", testStore())
	require.Error(t, err)
	assert.True(t, resolver.IsUnknownPropertyError(err))
}

func TestBuild_UnknownActionType(t *testing.T) {
	_, err := Build(&types.ExecutionAction{Type: types.ActionType("SCRIPT")}, "sys-7", testStore())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action type")
}
