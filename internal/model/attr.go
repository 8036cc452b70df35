package model

import (
	"math"
	"sort"
	"strconv"
)

// AttrKind tags the dynamic type of a grid attribute value.
type AttrKind int

const (
	KindAbsent AttrKind = iota
	KindString
	KindInt
	KindFloat
)

func (k AttrKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "absent"
	}
}

// AttrValue is a scalar attribute value read from a grid file.
type AttrValue struct {
	Kind  AttrKind
	Str   string
	Int   int64
	Float float64
}

func Absent() AttrValue { return AttrValue{} }

func StringAttr(s string) AttrValue { return AttrValue{Kind: KindString, Str: s} }

func IntAttr(v int64) AttrValue { return AttrValue{Kind: KindInt, Int: v} }

func FloatAttr(v float64) AttrValue { return AttrValue{Kind: KindFloat, Float: v} }

// IsEmpty reports whether the value is absent or an empty string.
// Whitespace-only strings are not empty here; trimming is the caller's job.
func (v AttrValue) IsEmpty() bool {
	return v.Kind == KindAbsent || (v.Kind == KindString && v.Str == "")
}

// String renders the value the way it would be printed in a CDL header.
func (v AttrValue) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	default:
		return ""
	}
}

// IntegralFloat returns the float as an integer when it has no fractional part.
func (v AttrValue) IntegralFloat() (int64, bool) {
	if v.Kind != KindFloat || math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
		return 0, false
	}
	if v.Float != math.Trunc(v.Float) || math.Abs(v.Float) > math.MaxInt64 {
		return 0, false
	}
	return int64(v.Float), true
}

// AttrFromNative converts a value produced by the NetCDF reader into an
// AttrValue. Single-element slices are unwrapped; longer arrays and unknown
// types are treated as absent.
func AttrFromNative(raw any) AttrValue {
	switch v := raw.(type) {
	case nil:
		return Absent()
	case string:
		return StringAttr(v)
	case []byte:
		return StringAttr(string(v))
	case int8:
		return IntAttr(int64(v))
	case int16:
		return IntAttr(int64(v))
	case int32:
		return IntAttr(int64(v))
	case int64:
		return IntAttr(v)
	case int:
		return IntAttr(int64(v))
	case uint8:
		return IntAttr(int64(v))
	case uint16:
		return IntAttr(int64(v))
	case uint32:
		return IntAttr(int64(v))
	case uint64:
		if v > math.MaxInt64 {
			return Absent()
		}
		return IntAttr(int64(v))
	case float32:
		return FloatAttr(float64(v))
	case float64:
		return FloatAttr(v)
	case []string:
		return single(v)
	case []int8:
		return single(v)
	case []int16:
		return single(v)
	case []int32:
		return single(v)
	case []int64:
		return single(v)
	case []uint16:
		return single(v)
	case []uint32:
		return single(v)
	case []uint64:
		return single(v)
	case []float32:
		return single(v)
	case []float64:
		return single(v)
	default:
		return Absent()
	}
}

func single[T any](vals []T) AttrValue {
	if len(vals) != 1 {
		return Absent()
	}
	return AttrFromNative(vals[0])
}

// Attributes maps attribute names to values for one entity (file or variable).
type Attributes map[string]AttrValue

// Get returns the named attribute or an absent value.
func (a Attributes) Get(name string) AttrValue {
	if a == nil {
		return Absent()
	}
	v, ok := a[name]
	if !ok {
		return Absent()
	}
	return v
}

// Keys returns attribute names in sorted order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
