package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testops/testplan-engine/internal/property"
	"testops/testplan-engine/pkg/types"
)

func testStore() property.Store {
	return property.MapStore{
		"partNumber":           types.String("NI-ABC-123"),
		"systemId":             types.String("sys-7"),
		"count":                types.Number(3),
		"enabled":              types.Bool(true),
		"properties.highLimit": types.Number(70),
		"properties.limits":    types.Object(map[string]types.Value{"low": types.Number(0), "high": types.Number(70)}),
	}
}

func TestResolve_IdentityWithoutTokens(t *testing.T) {
	tests := []string{
		"",
		"plain text",
		"no tokens here, just punctuation: {}[]().,",
		"unicode: 功率测试 ✓",
	}

	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			v, err := Resolve(types.String(s), testStore())
			require.NoError(t, err)
			assert.Equal(t, types.String(s), v)
		})
	}
}

func TestResolve_WholeTokenPreservesType(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected types.Value
	}{
		{"string property", "<partNumber>", types.String("NI-ABC-123")},
		{"number property", "<count>", types.Number(3)},
		{"bool property", "<enabled>", types.Bool(true)},
		{"custom property", "<properties.highLimit>", types.Number(70)},
		{
			"object property",
			"<properties.limits>",
			types.Object(map[string]types.Value{"low": types.Number(0), "high": types.Number(70)}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Resolve(types.String(tt.input), testStore())
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(v), "got %v", v)
		})
	}
}

func TestResolve_EmbeddedTokensAreStringified(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"surrounding text", "prefix-<count>-suffix", "prefix-3-suffix"},
		{"string token", "part: <partNumber>", "part: NI-ABC-123"},
		{"bool token", "enabled=<enabled>", "enabled=true"},
		{"two tokens", "<partNumber>@<systemId>", "NI-ABC-123@sys-7"},
		{"adjacent tokens", "<count><count>", "33"},
		{"object token embedded", "limits=<properties.limits>", `limits={"high":70,"low":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Resolve(types.String(tt.input), testStore())
			require.NoError(t, err)
			assert.Equal(t, types.String(tt.expected), v)
		})
	}
}

func TestResolve_Escapes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"escaped brackets become literals", `a\<b\>c`, "a<b>c"},
		{"doubled backslash survives as one", `C:\\temp\\f.txt`, `C:\temp\f.txt`},
		{"lone backslash passes through", `a\b`, `a\b`},
		{"trailing backslash passes through", `a\`, `a\`},
		{"escaped bracket next to token", `\<<count>\>`, "<3>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Resolve(types.String(tt.input), testStore())
			require.NoError(t, err)
			assert.Equal(t, types.String(tt.expected), v)
		})
	}
}

func TestResolve_EscapedBracketsNeverLookUp(t *testing.T) {
	// No lookup is attempted for escaped brackets, so an empty store works.
	v, err := Resolve(types.String(`a\<b\>c`), property.MapStore{})
	require.NoError(t, err)
	assert.Equal(t, types.String("a<b>c"), v)
}

func TestResolve_UnknownProperty(t *testing.T) {
	_, err := Resolve(types.String("<nope>"), testStore())
	require.Error(t, err)
	assert.True(t, IsUnknownPropertyError(err))

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "nope", resErr.Reference)

	// Embedded unknown tokens fail the same way; the literal token text is
	// never emitted.
	_, err = Resolve(types.String("x-<nope>-y"), testStore())
	require.Error(t, err)
	assert.True(t, IsUnknownPropertyError(err))
}

func TestResolve_UnterminatedToken(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing close", "<partNumber"},
		{"stray close", "value>"},
		{"nested open", "<a<b>"},
		{"open at end", "text<"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(types.String(tt.input), testStore())
			require.Error(t, err)
			assert.True(t, IsUnterminatedTokenError(err), "got %v", err)
		})
	}
}

func TestResolve_NonStringScalarsPassThrough(t *testing.T) {
	store := testStore()

	for _, v := range []types.Value{types.Number(1.5), types.Bool(false), types.Null()} {
		resolved, err := Resolve(v, store)
		require.NoError(t, err)
		assert.True(t, v.Equal(resolved))
	}
}

func TestResolve_RecursesArraysAndObjects(t *testing.T) {
	input := types.Array(
		types.String("<partNumber>"),
		types.Object(map[string]types.Value{
			"limit": types.String("<properties.highLimit>"),
			"inner": types.Array(types.String("sys: <systemId>")),
		}),
		types.Number(7),
	)

	resolved, err := Resolve(input, testStore())
	require.NoError(t, err)

	expected := types.Array(
		types.String("NI-ABC-123"),
		types.Object(map[string]types.Value{
			"limit": types.Number(70),
			"inner": types.Array(types.String("sys: sys-7")),
		}),
		types.Number(7),
	)
	assert.True(t, expected.Equal(resolved), "got %v", resolved)
}

func TestResolve_ObjectKeysAreNeverSubstituted(t *testing.T) {
	input := types.Object(map[string]types.Value{
		"<partNumber>": types.String("literal key stays"),
	})

	resolved, err := Resolve(input, testStore())
	require.NoError(t, err)

	v, ok := resolved.Field("<partNumber>")
	require.True(t, ok)
	assert.Equal(t, types.String("literal key stays"), v)
}

func TestResolve_ErrorInsideNestedValuePropagates(t *testing.T) {
	input := types.Object(map[string]types.Value{
		"ok":  types.String("<count>"),
		"bad": types.Array(types.String("<missing>")),
	})

	_, err := Resolve(input, testStore())
	require.Error(t, err)
	assert.True(t, IsUnknownPropertyError(err))
}

func TestResolveAll(t *testing.T) {
	out, err := ResolveAll([]types.Value{
		types.String("<count>"),
		types.String("n=<count>"),
	}, testStore())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, types.Number(3), out[0])
	assert.Equal(t, types.String("n=3"), out[1])

	_, err = ResolveAll([]types.Value{types.String("<missing>")}, testStore())
	require.Error(t, err)
}

func TestResolve_EmptyTokenIsUnknown(t *testing.T) {
	_, err := Resolve(types.String("<>"), testStore())
	require.Error(t, err)
	assert.True(t, IsUnknownPropertyError(err))
}
