package compiler

type checker struct {
	info  *Info
	diags diagBag
	fn    *FunctionDecl // function being checked, nil at file scope
}

// Check types every expression of prog, recording the results in
// info.Types and info.Unsigned. All type errors are reported together.
// Checking is a pure function of the AST and the resolver's bindings, so
// running it again gives the same tables.
func Check(prog *Program, info *Info) error {
	c := &checker{info: info, diags: diagBag{phase: "check"}}
	for _, d := range prog.Decls {
		switch n := d.(type) {
		case *FunctionDecl:
			c.checkSignature(n)
			if n.Kind == Definition {
				c.fn = n
				c.block(n.Body)
				c.fn = nil
			}
		case *VarDecl:
			if n.Kind == Definition && n.Init != nil {
				c.initializer(n)
			}
		}
	}
	return c.diags.err()
}

func (c *checker) errorf(pos Pos, format string, args ...any) {
	c.diags.add(TypeError, pos, format, args...)
}

// checkSignature compares a prototype or definition against the
// signature the symbol settled on.
func (c *checker) checkSignature(fn *FunctionDecl) {
	sym, ok := c.info.Funcs[fn]
	if !ok || sym.Sig.Unknown {
		return
	}
	if !fn.Signature().Equal(sym.Sig) {
		c.errorf(fn.Pos, "conflicting types for %s: %s vs %s", fn.Name, fn.Signature(), sym.Sig)
	}
}

func (c *checker) initializer(v *VarDecl) {
	t, ok := c.expr(v.Init)
	if !ok {
		return
	}
	c.assignable(v.Type, t, v.Init, v.Init.Position(), "initialization")
}

func (c *checker) block(b *BlockStmt) {
	for _, s := range b.Stmts {
		c.stmt(s)
	}
}

func (c *checker) stmt(s Stmt) {
	switch n := s.(type) {
	case *VarDecl:
		if n.Init != nil {
			c.initializer(n)
		}

	case *BlockStmt:
		c.block(n)

	case *ExprStmt:
		c.expr(n.X)

	case *ReturnStmt:
		c.ret(n)

	case *IfStmt:
		c.cond(n.Cond)
		c.stmt(n.Then)
		if n.Else != nil {
			c.stmt(n.Else)
		}

	case *WhileStmt:
		c.cond(n.Cond)
		c.stmt(n.Body)

	case *ForStmt:
		if n.Init != nil {
			c.stmt(n.Init)
		}
		if n.Cond != nil {
			c.cond(n.Cond)
		}
		if n.Post != nil {
			c.expr(n.Post)
		}
		c.stmt(n.Body)
	}
}

func (c *checker) ret(n *ReturnStmt) {
	result := c.fn.Result
	if n.Value == nil {
		if !result.IsVoid() {
			c.errorf(n.Pos, "return with no value in function %s returning %s", c.fn.Name, result)
		}
		return
	}
	t, ok := c.expr(n.Value)
	if !ok {
		return
	}
	if result.IsVoid() {
		c.errorf(n.Pos, "return with a value in void function %s", c.fn.Name)
		return
	}
	c.assignable(result, t, n.Value, n.Pos, "return")
}

func (c *checker) cond(e Expr) {
	t, ok := c.expr(e)
	if ok && !t.IsScalar() {
		c.errorf(e.Position(), "condition has non-scalar type %s", t)
	}
}

// assignable reports whether a value of type src may be stored into dst.
func (c *checker) assignable(dst, src Type, value Expr, pos Pos, what string) bool {
	switch {
	case dst.IsInteger() && src.IsInteger():
		return true
	case dst.IsPointer() && src.IsPointer():
		if dst == src || dst == TypeVoid.PointerTo() || src == TypeVoid.PointerTo() {
			return true
		}
	case dst.IsPointer() && src.IsInteger():
		if isConstExpr(value, c.info) {
			return true
		}
		c.errorf(pos, "%s makes %s from %s without a cast", what, dst, src)
		return false
	case dst.IsInteger() && src.IsPointer():
		c.errorf(pos, "%s makes %s from %s without a cast", what, dst, src)
		return false
	}
	c.errorf(pos, "incompatible types in %s: %s from %s", what, dst, src)
	return false
}

// isLvalue reports whether e designates a storage location.
func (c *checker) isLvalue(e Expr) bool {
	switch n := e.(type) {
	case *Ident:
		sym := c.info.Uses[n]
		return sym != nil && sym.Kind == SymVar
	case *DerefExpr, *IndexExpr:
		return true
	}
	return false
}

func (c *checker) record(e Expr, t Type) (Type, bool) {
	c.info.Types[e] = t
	return t, true
}

// expr types e. ok is false when an error was reported for e or below it;
// callers then stay quiet about e to avoid cascades.
func (c *checker) expr(e Expr) (Type, bool) {
	switch n := e.(type) {
	case *Literal:
		if n.IsUnsigned {
			return c.record(e, TypeUnsigned)
		}
		return c.record(e, TypeInt)

	case *StringLiteral:
		return c.record(e, TypeChar.PointerTo())

	case *Ident:
		sym, ok := c.info.Uses[n]
		if !ok {
			return Type{}, false
		}
		if sym.Kind == SymFunc {
			c.errorf(n.Pos, "function %s used as a value", n.Name)
			return Type{}, false
		}
		return c.record(e, sym.Type)

	case *BinaryExpr:
		return c.binary(n)

	case *LogicalExpr:
		lt, lok := c.expr(n.Left)
		rt, rok := c.expr(n.Right)
		if !lok || !rok {
			return Type{}, false
		}
		if !lt.IsScalar() || !rt.IsScalar() {
			c.errorf(n.Pos, "invalid operands to %s: %s and %s", n.Op, lt, rt)
			return Type{}, false
		}
		return c.record(e, TypeInt)

	case *UnaryExpr:
		t, ok := c.expr(n.Operand)
		if !ok {
			return Type{}, false
		}
		if n.Op == NOT {
			if !t.IsScalar() {
				c.errorf(n.Pos, "invalid operand to !: %s", t)
				return Type{}, false
			}
			return c.record(e, TypeInt)
		}
		if !t.IsInteger() {
			c.errorf(n.Pos, "invalid operand to unary %s: %s", n.Op, t)
			return Type{}, false
		}
		return c.record(e, promote(t))

	case *DerefExpr:
		t, ok := c.expr(n.Operand)
		if !ok {
			return Type{}, false
		}
		if !t.IsPointer() {
			c.errorf(n.Pos, "cannot dereference non-pointer type %s", t)
			return Type{}, false
		}
		if t.Elem().IsVoid() {
			c.errorf(n.Pos, "dereferencing void pointer")
			return Type{}, false
		}
		return c.record(e, t.Elem())

	case *AddrOfExpr:
		t, ok := c.expr(n.Operand)
		if !ok {
			return Type{}, false
		}
		if !c.isLvalue(n.Operand) {
			c.errorf(n.Pos, "cannot take the address of %s", n.Operand)
			return Type{}, false
		}
		return c.record(e, t.PointerTo())

	case *CastExpr:
		t, ok := c.expr(n.Operand)
		if !ok {
			return Type{}, false
		}
		if n.To.IsVoid() {
			c.errorf(n.Pos, "cast to void is not supported")
			return Type{}, false
		}
		if !t.IsScalar() {
			c.errorf(n.Pos, "cannot cast %s to %s", t, n.To)
			return Type{}, false
		}
		return c.record(e, n.To)

	case *IndexExpr:
		bt, bok := c.expr(n.Base)
		it, iok := c.expr(n.Index)
		if !bok || !iok {
			return Type{}, false
		}
		if !bt.IsPointer() {
			c.errorf(n.Pos, "subscripted value is not a pointer (%s)", bt)
			return Type{}, false
		}
		if !it.IsInteger() {
			c.errorf(n.Pos, "array subscript is not an integer (%s)", it)
			return Type{}, false
		}
		if bt.Elem().IsVoid() {
			c.errorf(n.Pos, "subscript of void pointer")
			return Type{}, false
		}
		return c.record(e, bt.Elem())

	case *CallExpr:
		return c.call(n)

	case *AssignExpr:
		return c.assign(n)

	case *IncDecExpr:
		t, ok := c.expr(n.Target)
		if !ok {
			return Type{}, false
		}
		if !c.isLvalue(n.Target) {
			c.errorf(n.Pos, "operand of %s is not assignable", n.Op)
			return Type{}, false
		}
		if !t.IsScalar() || (t.IsPointer() && t.Elem().IsVoid()) {
			c.errorf(n.Pos, "invalid operand to %s: %s", n.Op, t)
			return Type{}, false
		}
		return c.record(e, t)

	case *SizeofExpr:
		if n.Operand != nil {
			if _, ok := c.expr(n.Operand); !ok {
				return Type{}, false
			}
		}
		return c.record(e, TypeUnsigned)
	}
	c.errorf(e.Position(), "unexpected expression %s", e)
	return Type{}, false
}

func isComparison(op TokenType) bool {
	switch op {
	case EQUALS, NOT_EQ, LESS, GREATER, LESS_EQ, GREATER_EQ:
		return true
	}
	return false
}

func (c *checker) binary(n *BinaryExpr) (Type, bool) {
	lt, lok := c.expr(n.Left)
	rt, rok := c.expr(n.Right)
	if !lok || !rok {
		return Type{}, false
	}

	switch {
	case isComparison(n.Op):
		switch {
		case lt.IsInteger() && rt.IsInteger():
			c.info.Unsigned[n] = arithmeticResult(lt, rt).Unsigned()
		case lt.IsPointer() && rt.IsPointer():
			if lt != rt && lt != TypeVoid.PointerTo() && rt != TypeVoid.PointerTo() {
				c.errorf(n.Pos, "comparison of distinct pointer types %s and %s", lt, rt)
				return Type{}, false
			}
			c.info.Unsigned[n] = true
		case lt.IsPointer() && isConstExpr(n.Right, c.info), rt.IsPointer() && isConstExpr(n.Left, c.info):
			c.info.Unsigned[n] = true
		default:
			c.errorf(n.Pos, "comparison between %s and %s", lt, rt)
			return Type{}, false
		}
		return c.record(n, TypeInt)

	case n.Op == PLUS:
		switch {
		case lt.IsInteger() && rt.IsInteger():
			return c.record(n, arithmeticResult(lt, rt))
		case lt.IsPointer() && rt.IsInteger():
			return c.record(n, lt)
		case lt.IsInteger() && rt.IsPointer():
			return c.record(n, rt)
		}

	case n.Op == MINUS:
		switch {
		case lt.IsInteger() && rt.IsInteger():
			return c.record(n, arithmeticResult(lt, rt))
		case lt.IsPointer() && rt.IsInteger():
			return c.record(n, lt)
		case lt.IsPointer() && rt.IsPointer() && lt == rt:
			return c.record(n, TypeInt)
		}

	case n.Op == SHL_OP || n.Op == SHR_OP:
		if lt.IsInteger() && rt.IsInteger() {
			t := promote(lt)
			c.info.Unsigned[n] = t.Unsigned()
			return c.record(n, t)
		}

	default:
		// * / % & | ^
		if lt.IsInteger() && rt.IsInteger() {
			t := arithmeticResult(lt, rt)
			c.info.Unsigned[n] = t.Unsigned()
			return c.record(n, t)
		}
	}
	c.errorf(n.Pos, "invalid operands to binary %s: %s and %s", n.Op, lt, rt)
	return Type{}, false
}

func (c *checker) call(n *CallExpr) (Type, bool) {
	argTypes := make([]Type, len(n.Args))
	argsOK := true
	for i, a := range n.Args {
		t, ok := c.expr(a)
		argTypes[i] = t
		argsOK = argsOK && ok
	}

	sym, ok := c.info.Uses[n.Callee]
	if !ok {
		return Type{}, false
	}
	if sym.Kind != SymFunc {
		c.errorf(n.Pos, "called object %s is not a function", n.Callee.Name)
		return Type{}, false
	}
	c.info.Types[n.Callee] = sym.Type
	if !argsOK {
		return Type{}, false
	}

	if !sym.Sig.Unknown {
		if len(n.Args) != len(sym.Sig.Params) {
			c.errorf(n.Pos, "wrong number of arguments to %s: got %d, want %d", n.Callee.Name, len(n.Args), len(sym.Sig.Params))
			return Type{}, false
		}
		for i, a := range n.Args {
			if !c.assignable(sym.Sig.Params[i], argTypes[i], a, a.Position(), "argument") {
				return Type{}, false
			}
		}
	}
	return c.record(n, sym.Sig.Result)
}

func (c *checker) assign(n *AssignExpr) (Type, bool) {
	tt, tok := c.expr(n.Target)
	vt, vok := c.expr(n.Value)
	if !tok || !vok {
		return Type{}, false
	}
	if !c.isLvalue(n.Target) {
		c.errorf(n.Pos, "left side of assignment is not assignable")
		return Type{}, false
	}

	switch n.Op {
	case ASSIGN:
		if !c.assignable(tt, vt, n.Value, n.Pos, "assignment") {
			return Type{}, false
		}
	case PLUS_ASSIGN, MINUS_ASSIGN:
		if !(tt.IsInteger() && vt.IsInteger()) && !(tt.IsPointer() && vt.IsInteger()) {
			c.errorf(n.Pos, "invalid operands to %s: %s and %s", n.Op, tt, vt)
			return Type{}, false
		}
	default:
		if !tt.IsInteger() || !vt.IsInteger() {
			c.errorf(n.Pos, "invalid operands to %s: %s and %s", n.Op, tt, vt)
			return Type{}, false
		}
		c.info.Unsigned[n] = arithmeticResult(tt, vt).Unsigned()
	}
	return c.record(n, tt)
}
