// Package types defines the core data structures for the test-plan execution engine.
package types

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	// KindNull is the zero value of a Value.
	KindNull Kind = iota
	// KindString holds a string.
	KindString
	// KindNumber holds a float64.
	KindNumber
	// KindBool holds a bool.
	KindBool
	// KindArray holds an ordered list of Values.
	KindArray
	// KindObject holds a string-keyed map of Values.
	KindObject
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is a closed tagged variant over JSON values. The zero Value is null.
// Argument trees are built from Values so that resolver recursion is
// exhaustively checked instead of switching over an open `any`.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	arr  []Value
	obj  map[string]Value
}

// Null returns the null Value.
func Null() Value {
	return Value{}
}

// String returns a string Value.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Number returns a numeric Value.
func Number(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

// Bool returns a boolean Value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Array returns an array Value holding the given elements.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, arr: items}
}

// Object returns an object Value holding the given fields.
func Object(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: KindObject, obj: fields}
}

// Kind returns the variant held by the Value.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the Value is null.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Str returns the string payload, or "" for non-string Values.
func (v Value) Str() string {
	return v.str
}

// Num returns the numeric payload, or 0 for non-number Values.
func (v Value) Num() float64 {
	return v.num
}

// Boolean returns the bool payload, or false for non-bool Values.
func (v Value) Boolean() bool {
	return v.b
}

// Items returns the array elements, or nil for non-array Values.
func (v Value) Items() []Value {
	return v.arr
}

// Fields returns the object fields, or nil for non-object Values.
func (v Value) Fields() map[string]Value {
	return v.obj
}

// Field returns the named object field.
func (v Value) Field(name string) (Value, bool) {
	f, ok := v.obj[name]
	return f, ok
}

// Equal reports deep equality of two Values.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num
	case KindBool:
		return v.b == other.b
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for k, f := range v.obj {
			of, ok := other.obj[k]
			if !ok || !f.Equal(of) {
				return false
			}
		}
		return true
	}
	return false
}

// Text returns the canonical string form of the Value: strings are returned
// raw, scalars in their minimal form, and composites as JSON with sorted keys.
// It is used when a resolved token sits inside a larger string.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return v.str
	case KindNumber:
		return formatNumber(v.num)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		opts := ojg.Options{Sort: true}
		return oj.JSON(v.ToAny(), &opts)
	}
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// ToAny converts the Value back to the `any` shape used by yaml/json codecs.
// Whole numbers come back as int64 so encoders render them without a fraction.
func (v Value) ToAny() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindString:
		return v.str
	case KindNumber:
		if v.num == math.Trunc(v.num) && math.Abs(v.num) < 1<<53 {
			return int64(v.num)
		}
		return v.num
	case KindBool:
		return v.b
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.ToAny()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, f := range v.obj {
			out[k] = f.ToAny()
		}
		return out
	}
	return nil
}

// FromAny converts a decoded yaml/json value into a Value. It accepts the
// types produced by yaml.v3 and encoding/json decoders.
func FromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case float32:
		return Number(float64(t)), nil
	case float64:
		return Number(t), nil
	case []any:
		items := make([]Value, len(t))
		for i, e := range t {
			v, err := FromAny(e)
			if err != nil {
				return Null(), err
			}
			items[i] = v
		}
		return Array(items...), nil
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, e := range t {
			v, err := FromAny(e)
			if err != nil {
				return Null(), err
			}
			fields[k] = v
		}
		return Object(fields), nil
	default:
		return Null(), fmt.Errorf("unsupported argument value type %T", raw)
	}
}

// FromAnySlice converts a decoded slice into []Value.
func FromAnySlice(raw []any) ([]Value, error) {
	out := make([]Value, len(raw))
	for i, e := range raw {
		v, err := FromAny(e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// SortedKeys returns the object's field names in sorted order. Helpful for
// deterministic iteration in logs and tests.
func (v Value) SortedKeys() []string {
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
