package compiler

import (
	"strings"
)

// Basic is the scalar a Type is built from.
type Basic int

const (
	Void Basic = iota
	Char
	Int
	Unsigned
)

func (b Basic) String() string {
	switch b {
	case Void:
		return "void"
	case Char:
		return "char"
	case Int:
		return "int"
	case Unsigned:
		return "unsigned"
	}
	return "?"
}

// Type is Base followed by Ptr levels of indirection. Types are values and
// compare with ==.
type Type struct {
	Base Basic
	Ptr  int
}

var (
	TypeVoid     = Type{Base: Void}
	TypeChar     = Type{Base: Char}
	TypeInt      = Type{Base: Int}
	TypeUnsigned = Type{Base: Unsigned}
)

func (t Type) IsPointer() bool { return t.Ptr > 0 }
func (t Type) IsVoid() bool    { return t.Ptr == 0 && t.Base == Void }

// IsInteger reports whether t is char, int or unsigned.
func (t Type) IsInteger() bool { return t.Ptr == 0 && t.Base != Void }

// IsScalar reports whether t can be tested for zero.
func (t Type) IsScalar() bool { return t.IsInteger() || t.IsPointer() }

// Elem returns the pointee type. It panics on a non-pointer.
func (t Type) Elem() Type {
	if t.Ptr == 0 {
		panic("compiler: Elem of non-pointer type " + t.String())
	}
	return Type{Base: t.Base, Ptr: t.Ptr - 1}
}

func (t Type) PointerTo() Type { return Type{Base: t.Base, Ptr: t.Ptr + 1} }

// Size is the storage size in bytes: 1 for char, 4 for everything else.
// void has size 1 so void* arithmetic steps by bytes.
func (t Type) Size() uint32 {
	if t.Ptr > 0 {
		return 4
	}
	switch t.Base {
	case Char, Void:
		return 1
	}
	return 4
}

// Unsigned reports whether comparisons and division on t are unsigned.
// Pointers compare as addresses.
func (t Type) Unsigned() bool {
	return t.Ptr > 0 || t.Base == Unsigned
}

func (t Type) String() string {
	return t.Base.String() + strings.Repeat("*", t.Ptr)
}

// Signature is the type of a function.
type Signature struct {
	Result Type
	Params []Type
	// Unknown is set for forward markers, whose parameters are not declared.
	Unknown bool
}

func (s *Signature) String() string {
	if s.Unknown {
		return s.Result.String() + "()"
	}
	parts := make([]string, len(s.Params))
	for i, p := range s.Params {
		parts[i] = p.String()
	}
	return s.Result.String() + "(" + strings.Join(parts, ", ") + ")"
}

// Equal reports whether two known signatures agree.
func (s *Signature) Equal(o *Signature) bool {
	if s.Result != o.Result || len(s.Params) != len(o.Params) {
		return false
	}
	for i := range s.Params {
		if s.Params[i] != o.Params[i] {
			return false
		}
	}
	return true
}

// promote applies the integer promotions: char becomes int.
func promote(t Type) Type {
	if t.IsInteger() && t.Base == Char {
		return TypeInt
	}
	return t
}

// arithmeticResult is the usual arithmetic conversion of two integers.
func arithmeticResult(a, b Type) Type {
	a, b = promote(a), promote(b)
	if a.Base == Unsigned || b.Base == Unsigned {
		return TypeUnsigned
	}
	return TypeInt
}
