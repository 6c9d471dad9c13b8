// Package resolver substitutes parameter tokens inside argument trees with
// values from a property store.
//
// A token is a <name> reference inside a string argument, where name is either
// a built-in property key or properties.<key> for custom properties. Backslash
// escapes \<, \> and \\ produce the literal character; everything else passes
// through untouched.
package resolver

import (
	"strings"

	"testops/testplan-engine/internal/property"
	"testops/testplan-engine/pkg/types"
)

// Resolve walks an argument value and replaces every parameter token with its
// property value. Arrays and objects are resolved element by element; object
// keys are never substituted; non-string scalars pass through unchanged.
//
// A string that consists of exactly one token takes the stored value with its
// type preserved. A token embedded in surrounding text is stringified with
// Value.Text. An unknown property name is an error, never echoed back, so an
// unresolved placeholder can never reach a remote engine.
func Resolve(v types.Value, store property.Store) (types.Value, error) {
	switch v.Kind() {
	case types.KindString:
		return resolveString(v.Str(), store)
	case types.KindArray:
		items := v.Items()
		out := make([]types.Value, len(items))
		for i, item := range items {
			resolved, err := Resolve(item, store)
			if err != nil {
				return types.Null(), err
			}
			out[i] = resolved
		}
		return types.Array(out...), nil
	case types.KindObject:
		fields := v.Fields()
		out := make(map[string]types.Value, len(fields))
		for k, f := range fields {
			resolved, err := Resolve(f, store)
			if err != nil {
				return types.Null(), err
			}
			out[k] = resolved
		}
		return types.Object(out), nil
	default:
		// Numbers, booleans and null carry no tokens.
		return v, nil
	}
}

// ResolveAll resolves a slice of argument values.
func ResolveAll(values []types.Value, store property.Store) ([]types.Value, error) {
	out := make([]types.Value, len(values))
	for i, v := range values {
		resolved, err := Resolve(v, store)
		if err != nil {
			return nil, err
		}
		out[i] = resolved
	}
	return out, nil
}

// segment is one piece of a scanned string: literal text or a token name.
type segment struct {
	token bool
	text  string
}

// resolveString scans a string left to right, splitting it into literal and
// token segments, then substitutes each token independently.
func resolveString(s string, store property.Store) (types.Value, error) {
	segments, err := scan(s)
	if err != nil {
		return types.Null(), err
	}

	// A string that is exactly one token replaces the whole argument with
	// the typed property value.
	if len(segments) == 1 && segments[0].token {
		value, ok := store.Get(segments[0].text)
		if !ok {
			return types.Null(), NewUnknownPropertyError(segments[0].text)
		}
		return value, nil
	}

	var out strings.Builder
	for _, seg := range segments {
		if !seg.token {
			out.WriteString(seg.text)
			continue
		}
		value, ok := store.Get(seg.text)
		if !ok {
			return types.Null(), NewUnknownPropertyError(seg.text)
		}
		out.WriteString(value.Text())
	}
	return types.String(out.String()), nil
}

// scan splits a string into literal and token segments, applying backslash
// escapes. An unescaped < opens a token that must be closed by an unescaped >;
// a stray unescaped > is rejected so resolved output never carries an
// unescaped delimiter.
func scan(s string) ([]segment, error) {
	var segments []segment
	var buf strings.Builder
	inToken := false

	flush := func(token bool) {
		if buf.Len() == 0 && !token {
			return
		}
		segments = append(segments, segment{token: token, text: buf.String()})
		buf.Reset()
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			if i+1 < len(s) {
				switch s[i+1] {
				case '<', '>', '\\':
					buf.WriteByte(s[i+1])
					i++
					continue
				}
			}
			// A backslash not followed by an escapable character is
			// an ordinary character.
			buf.WriteByte(c)
		case '<':
			if inToken {
				return nil, NewUnterminatedTokenError(s, "nested '<' inside parameter token")
			}
			flush(false)
			inToken = true
		case '>':
			if !inToken {
				return nil, NewUnterminatedTokenError(s, "unmatched '>' outside parameter token")
			}
			flush(true)
			inToken = false
		default:
			buf.WriteByte(c)
		}
	}

	if inToken {
		return nil, NewUnterminatedTokenError(s, "parameter token is missing its closing '>'")
	}
	flush(false)
	return segments, nil
}
