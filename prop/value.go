/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package prop implements the typed property value and the shared,
// reference-counted property map used to describe PID and packet
// metadata throughout the filter graph.
package prop

import (
	"bytes"
	"errors"
	"fmt"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindFloat
	KindDouble
	KindFraction
	KindFraction64
	KindVec2i
	KindVec3i
	KindVec4i
	KindVec2f
	KindVec3f
	KindVec4f
	KindFourCC
	KindString
	KindData
	KindPointer
	KindUint32List
	KindFourCCList
	KindInt32List
	KindStringList
	KindVec2iList
)

var ErrInvalidValue = errors.New("prop: invalid value")

// FourCC is a 4-character code packed into a uint32, big-endian (the same
// convention entry.EntryTag-style fixed tags use elsewhere in the pack).
type FourCC uint32

func MakeFourCC(a, b, c, d byte) FourCC {
	return FourCC(uint32(a)<<24 | uint32(b)<<16 | uint32(c)<<8 | uint32(d))
}

func (f FourCC) String() string {
	return string([]byte{byte(f >> 24), byte(f >> 16), byte(f >> 8), byte(f)})
}

// Fraction is a num/den rational, used for timescales and frame rates.
type Fraction struct{ Num, Den int32 }

// Fraction64 is the wide variant used for large timescales.
type Fraction64 struct{ Num, Den int64 }

// Vec2i/Vec3i/Vec4i/Vec2f/Vec3f/Vec4f are small fixed-size vectors.
type Vec2i struct{ X, Y int32 }
type Vec3i struct{ X, Y, Z int32 }
type Vec4i struct{ X, Y, Z, W int32 }
type Vec2f struct{ X, Y float64 }
type Vec3f struct{ X, Y, Z float64 }
type Vec4f struct{ X, Y, Z, W float64 }

// StringMode/DataMode distinguish owning, non-owning (caller must keep the
// backing memory alive), and interned-name variants, mirroring the
// ownership classes spec.md §3 describes for Prop string/data variants.
type StringMode uint8

const (
	StringOwned StringMode = iota
	StringConstRef
	StringInterned
)

type DataMode uint8

const (
	DataOwned DataMode = iota
	DataConstRef
)

// Value is a tagged union over the Prop variants in spec.md §3. Only the
// fields relevant to Kind are populated; Equal/String dispatch on Kind.
type Value struct {
	Kind Kind

	b        bool
	i32      int32
	u32      uint32
	i64      int64
	u64      uint64
	f32      float32
	f64      float64
	frc      Fraction
	f64r     Fraction64
	v2i      Vec2i
	v3i      Vec3i
	v4i      Vec4i
	v2f      Vec2f
	v3f      Vec3f
	v4f      Vec4f
	fcc      FourCC
	str      string
	strMode  StringMode
	data     []byte
	dataMode DataMode
	ptr      interface{}

	u32l []uint32
	fccl []FourCC
	i32l []int32
	strl []string
	v2il []Vec2i
}

func Bool(v bool) Value        { return Value{Kind: KindBool, b: v} }
func Int32(v int32) Value      { return Value{Kind: KindInt32, i32: v} }
func UInt32(v uint32) Value    { return Value{Kind: KindUint32, u32: v} }
func Int64(v int64) Value      { return Value{Kind: KindInt64, i64: v} }
func UInt64(v uint64) Value    { return Value{Kind: KindUint64, u64: v} }
func Float(v float32) Value    { return Value{Kind: KindFloat, f32: v} }
func Double(v float64) Value   { return Value{Kind: KindDouble, f64: v} }
func Frac(num, den int32) Value {
	return Value{Kind: KindFraction, frc: Fraction{num, den}}
}
func Frac64(num, den int64) Value {
	return Value{Kind: KindFraction64, f64r: Fraction64{num, den}}
}
func V2i(x, y int32) Value          { return Value{Kind: KindVec2i, v2i: Vec2i{x, y}} }
func V3i(x, y, z int32) Value       { return Value{Kind: KindVec3i, v3i: Vec3i{x, y, z}} }
func V4i(x, y, z, w int32) Value    { return Value{Kind: KindVec4i, v4i: Vec4i{x, y, z, w}} }
func V2f(x, y float64) Value        { return Value{Kind: KindVec2f, v2f: Vec2f{x, y}} }
func V3f(x, y, z float64) Value     { return Value{Kind: KindVec3f, v3f: Vec3f{x, y, z}} }
func V4f(x, y, z, w float64) Value  { return Value{Kind: KindVec4f, v4f: Vec4f{x, y, z, w}} }
func FourCCVal(v FourCC) Value      { return Value{Kind: KindFourCC, fcc: v} }
func Pointer(v interface{}) Value   { return Value{Kind: KindPointer, ptr: v} }

func String(v string, mode StringMode) Value {
	return Value{Kind: KindString, str: v, strMode: mode}
}

func Data(v []byte, mode DataMode) Value {
	return Value{Kind: KindData, data: v, dataMode: mode}
}

func UInt32List(v []uint32) Value { return Value{Kind: KindUint32List, u32l: v} }
func FourCCList(v []FourCC) Value { return Value{Kind: KindFourCCList, fccl: v} }
func Int32List(v []int32) Value   { return Value{Kind: KindInt32List, i32l: v} }
func StringList(v []string) Value { return Value{Kind: KindStringList, strl: v} }
func Vec2iList(v []Vec2i) Value   { return Value{Kind: KindVec2iList, v2il: v} }

// Bool/Int32/... accessors return the zero value and false if Kind mismatches.
func (v Value) AsBool() (bool, bool)       { return v.b, v.Kind == KindBool }
func (v Value) AsInt32() (int32, bool)     { return v.i32, v.Kind == KindInt32 }
func (v Value) AsUInt32() (uint32, bool)   { return v.u32, v.Kind == KindUint32 }
func (v Value) AsInt64() (int64, bool)     { return v.i64, v.Kind == KindInt64 }
func (v Value) AsUInt64() (uint64, bool)   { return v.u64, v.Kind == KindUint64 }
func (v Value) AsFloat() (float32, bool)   { return v.f32, v.Kind == KindFloat }
func (v Value) AsDouble() (float64, bool)  { return v.f64, v.Kind == KindDouble }
func (v Value) AsFraction() (Fraction, bool) { return v.frc, v.Kind == KindFraction }
func (v Value) AsFourCC() (FourCC, bool)   { return v.fcc, v.Kind == KindFourCC }
func (v Value) AsString() (string, bool)   { return v.str, v.Kind == KindString }
func (v Value) AsData() ([]byte, bool)     { return v.data, v.Kind == KindData }

// Valid reports whether the value is structurally sane (spec.md §3
// Property value invariants — mostly "does the discriminator match a
// populated variant", mirroring entry.EnumeratedData.Valid()'s
// type/length sanity check).
func (v Value) Valid() bool {
	switch v.Kind {
	case KindInvalid:
		return false
	case KindString:
		return len(v.str) >= 0
	case KindData:
		return v.data != nil
	default:
		return true
	}
}

// Equal implements the elementwise-equality rule spec.md §3 requires:
// strings and data compare by bytes, lists compare by length then
// elementwise.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.b == o.b
	case KindInt32:
		return v.i32 == o.i32
	case KindUint32:
		return v.u32 == o.u32
	case KindInt64:
		return v.i64 == o.i64
	case KindUint64:
		return v.u64 == o.u64
	case KindFloat:
		return v.f32 == o.f32
	case KindDouble:
		return v.f64 == o.f64
	case KindFraction:
		return v.frc == o.frc
	case KindFraction64:
		return v.f64r == o.f64r
	case KindVec2i:
		return v.v2i == o.v2i
	case KindVec3i:
		return v.v3i == o.v3i
	case KindVec4i:
		return v.v4i == o.v4i
	case KindVec2f:
		return v.v2f == o.v2f
	case KindVec3f:
		return v.v3f == o.v3f
	case KindVec4f:
		return v.v4f == o.v4f
	case KindFourCC:
		return v.fcc == o.fcc
	case KindString:
		return v.str == o.str
	case KindData:
		return bytes.Equal(v.data, o.data)
	case KindPointer:
		return v.ptr == o.ptr
	case KindUint32List:
		return equalSlice(v.u32l, o.u32l)
	case KindFourCCList:
		return equalSlice(v.fccl, o.fccl)
	case KindInt32List:
		return equalSlice(v.i32l, o.i32l)
	case KindStringList:
		return equalSlice(v.strl, o.strl)
	case KindVec2iList:
		return equalSlice(v.v2il, o.v2il)
	}
	return false
}

func equalSlice[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return fmt.Sprintf("%v", v.b)
	case KindInt32:
		return fmt.Sprintf("%d", v.i32)
	case KindUint32:
		return fmt.Sprintf("%d", v.u32)
	case KindInt64:
		return fmt.Sprintf("%d", v.i64)
	case KindUint64:
		return fmt.Sprintf("%d", v.u64)
	case KindFloat:
		return fmt.Sprintf("%g", v.f32)
	case KindDouble:
		return fmt.Sprintf("%g", v.f64)
	case KindFraction:
		return fmt.Sprintf("%d/%d", v.frc.Num, v.frc.Den)
	case KindFraction64:
		return fmt.Sprintf("%d/%d", v.f64r.Num, v.f64r.Den)
	case KindFourCC:
		return v.fcc.String()
	case KindString:
		return v.str
	case KindData:
		return fmt.Sprintf("<%d bytes>", len(v.data))
	default:
		return fmt.Sprintf("<%T>", v.ptr)
	}
}
