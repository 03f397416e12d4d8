// Package value implements kvsql's tagged scalar value type and its total
// order, mirroring the teacher's Column/default-value modeling
// (internal/core/schema.go) but for row storage rather than schema
// diffing.
package value

import (
	"fmt"
	"math"
)

// Kind tags which variant a Value holds.
type Kind int

const (
	Null Kind = iota
	Bool
	Int
	Float
	String
)

// DataType is the column-declaration-level counterpart of Kind. Null has
// no DataType of its own; a nullable column's DataType still names one of
// these four.
type DataType int

const (
	TypeBool DataType = iota
	TypeInt
	TypeFloat
	TypeString
)

func (d DataType) String() string {
	switch d {
	case TypeBool:
		return "BOOLEAN"
	case TypeInt:
		return "INTEGER"
	case TypeFloat:
		return "FLOAT"
	case TypeString:
		return "STRING"
	default:
		return "UNKNOWN"
	}
}

// Value is the tagged scalar kvsql rows and index keys are built from.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
}

func NewNull() Value          { return Value{kind: Null} }
func NewBool(b bool) Value    { return Value{kind: Bool, b: b} }
func NewInt(i int64) Value    { return Value{kind: Int, i: i} }
func NewFloat(f float64) Value { return Value{kind: Float, f: f} }
func NewString(s string) Value { return Value{kind: String, s: s} }

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == Null }
func (v Value) AsBool() bool   { return v.b }
func (v Value) AsInt() int64   { return v.i }
func (v Value) AsFloat() float64 { return v.f }
func (v Value) AsString() string { return v.s }

// GetDataType returns the DataType of a value, or (_, false) for Null.
func (v Value) GetDataType() (DataType, bool) {
	switch v.kind {
	case Bool:
		return TypeBool, true
	case Int:
		return TypeInt, true
	case Float:
		return TypeFloat, true
	case String:
		return TypeString, true
	default:
		return 0, false
	}
}

// String renders a Value the way ResultSet cells are displayed (§3.1).
func (v Value) String() string {
	switch v.kind {
	case Null:
		return "NULL"
	case Bool:
		if v.b {
			return "TRUE"
		}
		return "FALSE"
	case Int:
		return fmt.Sprintf("%d", v.i)
	case Float:
		return fmt.Sprintf("%v", v.f)
	case String:
		return v.s
	default:
		return ""
	}
}

// category groups Null/Bool/numeric/String for the total order of §3.1.
func (v Value) category() int {
	switch v.kind {
	case Null:
		return 0
	case Bool:
		return 1
	case Int, Float:
		return 2
	case String:
		return 3
	default:
		return 4
	}
}

// numeric promotes an Int/Float value to float64.
func (v Value) numeric() float64 {
	if v.kind == Int {
		return float64(v.i)
	}
	return v.f
}

// Compare implements the total order of spec.md §3.1:
// Null < Bool < numeric (Int/Float mixed) < String.
// Returns -1, 0 or 1. Values from different categories other than the
// numeric pair are ordered by category alone.
func Compare(a, b Value) int {
	ca, cb := a.category(), b.category()
	if ca != cb {
		if ca < cb {
			return -1
		}
		return 1
	}
	switch ca {
	case 0: // Null == Null
		return 0
	case 1:
		if a.b == b.b {
			return 0
		}
		if !a.b {
			return -1
		}
		return 1
	case 2:
		an, bn := a.numeric(), b.numeric()
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	case 3:
		switch {
		case a.s < b.s:
			return -1
		case a.s > b.s:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

// Equal reports whether a and b compare equal under Compare, with Int/Float
// numeric equality after promotion, matching spec.md §3.1.
func Equal(a, b Value) bool {
	if a.kind == Null || b.kind == Null {
		return a.kind == Null && b.kind == Null
	}
	return Compare(a, b) == 0
}

// HashKey returns a value usable as a Go map key that respects the
// equality contract of §3.1: identical-bit-pattern floats hash equal,
// ints and floats with equal numeric value hash equal only when the
// encoding below makes them equal (kvsql compares Int/Float keys as
// float64 for hashing so that index/group-by lookups match Compare's
// numeric promotion).
func HashKey(v Value) any {
	switch v.kind {
	case Null:
		return nil
	case Bool:
		return v.b
	case Int:
		return math.Float64bits(float64(v.i))
	case Float:
		return math.Float64bits(v.f)
	case String:
		return v.s
	default:
		return nil
	}
}
