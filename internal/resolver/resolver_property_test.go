package resolver

import (
	"strings"
	"testing"

	"pgregory.net/rapid"

	"testops/testplan-engine/internal/property"
	"testops/testplan-engine/pkg/types"
)

// For all strings containing no token delimiters or escapes, resolution is the
// identity function.
func TestResolveIdentityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.StringMatching(`[^<>\\]*`).Draw(t, "s")

		v, err := Resolve(types.String(s), property.MapStore{})
		if err != nil {
			t.Fatalf("failed to resolve %q: %v", s, err)
		}
		if v.Kind() != types.KindString || v.Str() != s {
			t.Fatalf("expected identity for %q, got %v", s, v)
		}
	})
}

// For any property in the store, a whole-string token returns the stored value
// unstringified, and an embedded token returns its Text form.
func TestResolveWholeTokenProperty(t *testing.T) {
	valueGen := rapid.OneOf(
		rapid.Custom(func(t *rapid.T) types.Value {
			return types.String(rapid.StringMatching(`[^<>\\]*`).Draw(t, "sv"))
		}),
		rapid.Custom(func(t *rapid.T) types.Value {
			return types.Number(float64(rapid.IntRange(-1000, 1000).Draw(t, "nv")))
		}),
		rapid.Custom(func(t *rapid.T) types.Value {
			return types.Bool(rapid.Bool().Draw(t, "bv"))
		}),
	)

	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringMatching(`[a-zA-Z][a-zA-Z0-9_.]{0,15}`).Draw(t, "name")
		stored := valueGen.Draw(t, "stored")
		store := property.MapStore{name: stored}

		whole, err := Resolve(types.String("<"+name+">"), store)
		if err != nil {
			t.Fatalf("failed to resolve whole token <%s>: %v", name, err)
		}
		if !stored.Equal(whole) {
			t.Fatalf("whole token lost type: stored %v, got %v", stored, whole)
		}

		embedded, err := Resolve(types.String("x<"+name+">y"), store)
		if err != nil {
			t.Fatalf("failed to resolve embedded token: %v", err)
		}
		expected := "x" + stored.Text() + "y"
		if embedded.Str() != expected {
			t.Fatalf("expected %q, got %q", expected, embedded.Str())
		}
	})
}

// Escaping every delimiter in a string makes resolution literalize it: the
// output is the input with the escape backslashes removed, and no lookup is
// ever attempted (the store is empty).
func TestResolveEscapeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.StringMatching(`[a-z<>]{0,20}`).Draw(t, "raw")

		escaped := strings.ReplaceAll(raw, "<", `\<`)
		escaped = strings.ReplaceAll(escaped, ">", `\>`)

		v, err := Resolve(types.String(escaped), property.MapStore{})
		if err != nil {
			t.Fatalf("failed to resolve escaped %q: %v", escaped, err)
		}
		if v.Str() != raw {
			t.Fatalf("expected %q, got %q", raw, v.Str())
		}
	})
}

// Unknown property references always fail with UnknownProperty and never leak
// the literal token back into the output.
func TestResolveUnknownAlwaysFailsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringMatching(`[a-z][a-z0-9]{0,10}`).Draw(t, "name")

		_, err := Resolve(types.String("<"+name+">"), property.MapStore{})
		if err == nil {
			t.Fatalf("expected error for unknown property %q", name)
		}
		if !IsUnknownPropertyError(err) {
			t.Fatalf("expected UnknownProperty, got %v", err)
		}
	})
}
