package compiler

import (
	"fmt"
	"math"
)

// isConstExpr reports whether e can be computed before the program runs:
// literals, string literals, sizeof, the address of a global variable, and
// operators and casts over those.
func isConstExpr(e Expr, info *Info) bool {
	switch n := e.(type) {
	case *Literal, *StringLiteral, *SizeofExpr:
		return true
	case *AddrOfExpr:
		id, ok := n.Operand.(*Ident)
		if !ok {
			return false
		}
		sym := info.Uses[id]
		return sym != nil && sym.Kind == SymVar && sym.Storage == StorageGlobal
	case *CastExpr:
		return isConstExpr(n.Operand, info)
	case *UnaryExpr:
		return isConstExpr(n.Operand, info)
	case *BinaryExpr:
		return isConstExpr(n.Left, info) && isConstExpr(n.Right, info)
	case *LogicalExpr:
		return isConstExpr(n.Left, info) && isConstExpr(n.Right, info)
	}
	return false
}

// constEval computes constant expressions once the layout is known.
type constEval struct {
	info *Info
	plan *Plan
}

func (c constEval) typeOf(e Expr) Type {
	return c.info.Types[e]
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// eval returns the 32-bit value of a constant expression.
func (c constEval) eval(e Expr) (uint32, error) {
	switch n := e.(type) {
	case *Literal:
		if n.Value > math.MaxUint32 {
			return 0, fmt.Errorf("literal %d is not representable in 32 bits", n.Value)
		}
		return uint32(n.Value), nil

	case *StringLiteral:
		addr, ok := c.plan.Strings[n]
		if !ok {
			return 0, fmt.Errorf("string literal %s has no address", n)
		}
		return addr, nil

	case *SizeofExpr:
		if n.Operand != nil {
			return c.typeOf(n.Operand).Size(), nil
		}
		return n.Of.Size(), nil

	case *AddrOfExpr:
		sym := c.info.Uses[n.Operand.(*Ident)]
		return sym.Addr, nil

	case *CastExpr:
		v, err := c.eval(n.Operand)
		if err != nil {
			return 0, err
		}
		if n.To == TypeChar {
			v &= 0xFF
		}
		return v, nil

	case *UnaryExpr:
		v, err := c.eval(n.Operand)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case MINUS:
			return -v, nil
		case TILDE:
			return ^v, nil
		case NOT:
			return boolWord(v == 0), nil
		}

	case *LogicalExpr:
		l, err := c.eval(n.Left)
		if err != nil {
			return 0, err
		}
		if n.Op == AND_LOGICAL && l == 0 {
			return 0, nil
		}
		if n.Op == OR_LOGICAL && l != 0 {
			return 1, nil
		}
		r, err := c.eval(n.Right)
		if err != nil {
			return 0, err
		}
		return boolWord(r != 0), nil

	case *BinaryExpr:
		return c.binary(n)
	}
	return 0, fmt.Errorf("%s is not a constant expression", e)
}

func (c constEval) binary(n *BinaryExpr) (uint32, error) {
	l, err := c.eval(n.Left)
	if err != nil {
		return 0, err
	}
	r, err := c.eval(n.Right)
	if err != nil {
		return 0, err
	}
	lt, rt := c.typeOf(n.Left), c.typeOf(n.Right)
	unsigned := c.info.Unsigned[n]

	switch n.Op {
	case PLUS:
		if lt.IsPointer() {
			return l + r*lt.Elem().Size(), nil
		}
		if rt.IsPointer() {
			return l*rt.Elem().Size() + r, nil
		}
		return l + r, nil
	case MINUS:
		if lt.IsPointer() && rt.IsPointer() {
			return uint32(int32(l-r) / int32(lt.Elem().Size())), nil
		}
		if lt.IsPointer() {
			return l - r*lt.Elem().Size(), nil
		}
		return l - r, nil
	case STAR:
		return l * r, nil
	case SLASH, PERCENT:
		if r == 0 {
			return 0, fmt.Errorf("division by zero in constant expression")
		}
		switch {
		case unsigned && n.Op == SLASH:
			return l / r, nil
		case unsigned:
			return l % r, nil
		case n.Op == SLASH:
			return uint32(int32(l) / int32(r)), nil
		}
		return uint32(int32(l) % int32(r)), nil
	case AND:
		return l & r, nil
	case PIPE:
		return l | r, nil
	case CARET:
		return l ^ r, nil
	case SHL_OP:
		return l << (r & 31), nil
	case SHR_OP:
		if unsigned {
			return l >> (r & 31), nil
		}
		return uint32(int32(l) >> (r & 31)), nil
	case EQUALS:
		return boolWord(l == r), nil
	case NOT_EQ:
		return boolWord(l != r), nil
	}

	less := func(a, b uint32) bool {
		if unsigned {
			return a < b
		}
		return int32(a) < int32(b)
	}
	switch n.Op {
	case LESS:
		return boolWord(less(l, r)), nil
	case GREATER:
		return boolWord(less(r, l)), nil
	case LESS_EQ:
		return boolWord(!less(r, l)), nil
	case GREATER_EQ:
		return boolWord(!less(l, r)), nil
	}
	return 0, fmt.Errorf("unknown binary operator %s", n.Op)
}
