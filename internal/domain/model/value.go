// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"math"
)

// Kind tags the variant held by a Value.
type Kind uint8

// Value variants. The zero Value is Integer(0).
const (
	KindInteger Kind = iota
	KindFloat
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is the payload of a Datapoint: a closed union over integer, float,
// string, array and object variants. Only the field matching kind is
// meaningful.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	arr  []Value
	obj  []Datapoint
}

// IntegerValue returns an Integer variant.
func IntegerValue(v int64) Value { return Value{kind: KindInteger, i: v} }

// FloatValue returns a Float variant.
func FloatValue(v float64) Value { return Value{kind: KindFloat, f: v} }

// StringValue returns a String variant.
func StringValue(v string) Value { return Value{kind: KindString, s: v} }

// ArrayValue returns an Array variant. The slice is not copied.
func ArrayValue(items []Value) Value { return Value{kind: KindArray, arr: items} }

// ObjectValue returns an Object variant holding named values in order.
// The slice is not copied.
func ObjectValue(fields []Datapoint) Value { return Value{kind: KindObject, obj: fields} }

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNumeric reports whether v is an Integer or Float.
func (v Value) IsNumeric() bool {
	return v.kind == KindInteger || v.kind == KindFloat
}

// Int returns the Integer payload; zero for other variants.
func (v Value) Int() int64 { return v.i }

// Float returns the Float payload; zero for other variants.
func (v Value) Float() float64 { return v.f }

// Str returns the String payload; empty for other variants.
func (v Value) Str() string { return v.s }

// Array returns the Array payload; nil for other variants.
func (v Value) Array() []Value { return v.arr }

// Object returns the Object payload; nil for other variants.
func (v Value) Object() []Datapoint { return v.obj }

// SetInt overwrites v in place with Integer(n).
func (v *Value) SetInt(n int64) {
	*v = Value{kind: KindInteger, i: n}
}

// SetFloat overwrites v in place with Float(f).
func (v *Value) SetFloat(f float64) {
	*v = Value{kind: KindFloat, f: f}
}

// Equal reports deep equality of kind and payload. NaN equals NaN.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInteger:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case KindString:
		return v.s == o.s
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for i := range v.obj {
			if v.obj[i].Name != o.obj[i].Name || !v.obj[i].Value.Equal(o.obj[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return fmt.Sprintf("%q", v.s)
	default:
		b, err := v.MarshalJSON()
		if err != nil {
			return v.kind.String()
		}
		return string(b)
	}
}
