package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind int

// Value kinds.
const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindArray
	KindText
)

// Name returns the name of the kind.
func (k Kind) Name() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is the tagged union stored in variables. The zero Value is Int(0).
//
// KindText carries operand names that did not match a variable, plus quoted
// text literals. Arrays are shared by reference, so mutating the *Array of a
// variable is visible through every Value that holds it.
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	arr  *Array
	text string
}

// Int returns an integer value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float returns a float value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Bool returns a boolean value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Text returns a text value.
func Text(v string) Value { return Value{kind: KindText, text: v} }

// ArrayOf wraps an existing array.
func ArrayOf(a *Array) Value { return Value{kind: KindArray, arr: a} }

// FromLiteral converts a Go literal, such as a codebook constant, to a Value.
func FromLiteral(lit any) (Value, error) {
	switch v := lit.(type) {
	case Value:
		return v, nil
	case int:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case uint8:
		return Int(int64(v)), nil
	case float64:
		return Float(v), nil
	case bool:
		return Bool(v), nil
	case string:
		return Text(v), nil
	case []Value:
		a := &Array{elems: append([]Value(nil), v...)}
		return ArrayOf(a), nil
	default:
		return Value{}, fmt.Errorf("unsupported literal %v (%T)", lit, lit)
	}
}

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// AsInt returns the integer payload.
func (v Value) AsInt() (int64, bool) {
	if v.kind == KindInt {
		return v.i, true
	}
	return 0, false
}

// AsFloat returns the float payload.
func (v Value) AsFloat() (float64, bool) {
	if v.kind == KindFloat {
		return v.f, true
	}
	return 0, false
}

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	if v.kind == KindBool {
		return v.b, true
	}
	return false, false
}

// AsText returns the text payload.
func (v Value) AsText() (string, bool) {
	if v.kind == KindText {
		return v.text, true
	}
	return "", false
}

// AsArray returns the array payload.
func (v Value) AsArray() (*Array, bool) {
	if v.kind == KindArray && v.arr != nil {
		return v.arr, true
	}
	return nil, false
}

// IsNumeric reports whether the value takes part in arithmetic. Booleans
// count as 0 and 1.
func (v Value) IsNumeric() bool {
	return v.kind == KindInt || v.kind == KindFloat || v.kind == KindBool
}

// integer returns the value as an int64 when it is an int or a bool.
func (v Value) integer() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Number returns the value as a float64 when it is numeric.
func (v Value) Number() (float64, bool) {
	if n, ok := v.integer(); ok {
		return float64(n), true
	}
	if v.kind == KindFloat {
		return v.f, true
	}
	return 0, false
}

// Index returns the value as an array index. Floats qualify only when they
// are integral.
func (v Value) Index() (int, bool) {
	if n, ok := v.integer(); ok {
		return int(n), true
	}
	if v.kind == KindFloat && v.f == math.Trunc(v.f) && !math.IsInf(v.f, 0) {
		return int(v.f), true
	}
	return 0, false
}

// Truthy reports whether the value is nonzero. Empty arrays and empty text
// are false.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindBool:
		return v.b
	case KindArray:
		return v.arr != nil && v.arr.Len() > 0
	case KindText:
		return v.text != ""
	default:
		return false
	}
}

// Equal compares two values. Numeric kinds compare by value across int,
// float and bool; arrays compare element-wise.
func (v Value) Equal(o Value) bool {
	if v.IsNumeric() && o.IsNumeric() {
		vi, vok := v.integer()
		oi, ook := o.integer()
		if vok && ook {
			return vi == oi
		}
		vf, _ := v.Number()
		of, _ := o.Number()
		return vf == of
	}

	if v.kind != o.kind {
		return false
	}

	switch v.kind {
	case KindText:
		return v.text == o.text
	case KindArray:
		return v.arr.equal(o.arr)
	default:
		return false
	}
}

// Compare orders two numeric values or two text values. ok is false when the
// values are not comparable.
func (v Value) Compare(o Value) (cmp int, ok bool) {
	if v.IsNumeric() && o.IsNumeric() {
		vi, vok := v.integer()
		oi, ook := o.integer()
		if vok && ook {
			return compareOrdered(vi, oi), true
		}
		vf, _ := v.Number()
		of, _ := o.Number()
		if math.IsNaN(vf) || math.IsNaN(of) {
			return 0, false
		}
		return compareOrdered(vf, of), true
	}

	if v.kind == KindText && o.kind == KindText {
		return strings.Compare(v.text, o.text), true
	}

	return 0, false
}

func compareOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Clone returns a copy that does not share array storage with v.
func (v Value) Clone() Value {
	if v.kind == KindArray && v.arr != nil {
		return ArrayOf(v.arr.clone())
	}
	return v
}

// Native converts the value to a plain Go value.
func (v Value) Native() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindText:
		return v.text
	case KindArray:
		if v.arr == nil {
			return []any{}
		}
		out := make([]any, len(v.arr.elems))
		for i, e := range v.arr.elems {
			out[i] = e.Native()
		}
		return out
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return formatFloat(v.f)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindText:
		return v.text
	case KindArray:
		if v.arr == nil {
			return "[]"
		}
		return v.arr.String()
	default:
		return "?"
	}
}

// formatFloat keeps a decimal point so the text re-parses as a float.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".eEIN") {
		return s
	}
	return s + ".0"
}

// MaxArrayLen bounds the length of every array, at creation and through
// PUSH.
const MaxArrayLen = 1 << 20

// Array is a growable, index-addressable sequence of values.
type Array struct {
	elems []Value
}

// NewArray returns an array holding size copies of def. size must be in
// [0, MaxArrayLen].
func NewArray(size int, def Value) *Array {
	a := &Array{elems: make([]Value, size)}
	for i := range a.elems {
		a.elems[i] = def.Clone()
	}
	return a
}

// Len returns the number of elements.
func (a *Array) Len() int { return len(a.elems) }

// Get returns the element at index i.
func (a *Array) Get(i int) (Value, bool) {
	if i < 0 || i >= len(a.elems) {
		return Value{}, false
	}
	return a.elems[i], true
}

// Set replaces the element at index i.
func (a *Array) Set(i int, v Value) bool {
	if i < 0 || i >= len(a.elems) {
		return false
	}
	a.elems[i] = v
	return true
}

// Push appends v at the tail. It reports false when the array already
// holds MaxArrayLen elements.
func (a *Array) Push(v Value) bool {
	if len(a.elems) >= MaxArrayLen {
		return false
	}
	a.elems = append(a.elems, v)
	return true
}

// Pop removes and returns the tail element.
func (a *Array) Pop() (Value, bool) {
	n := len(a.elems)
	if n == 0 {
		return Value{}, false
	}
	v := a.elems[n-1]
	a.elems = a.elems[:n-1]
	return v, true
}

// Values returns a copy of the elements.
func (a *Array) Values() []Value {
	return append([]Value(nil), a.elems...)
}

func (a *Array) clone() *Array {
	c := &Array{elems: make([]Value, len(a.elems))}
	for i, e := range a.elems {
		c.elems[i] = e.Clone()
	}
	return c
}

func (a *Array) equal(o *Array) bool {
	if a == nil || o == nil {
		return a == o
	}
	if len(a.elems) != len(o.elems) {
		return false
	}
	for i := range a.elems {
		if !a.elems[i].Equal(o.elems[i]) {
			return false
		}
	}
	return true
}

func (a *Array) String() string {
	parts := make([]string, len(a.elems))
	for i, e := range a.elems {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
