package compiler

// Info holds what the semantic phases learned about a Program. The AST
// itself is never modified after parsing.
type Info struct {
	Uses   map[*Ident]*Symbol
	Decls  map[*VarDecl]*Symbol
	Funcs  map[*FunctionDecl]*Symbol
	Frames map[*FunctionDecl]int

	// Strings lists the string literals in source order.
	Strings []*StringLiteral

	// Filled by the checker.
	Types    map[Expr]Type
	Unsigned map[Expr]bool
}

func newInfo() *Info {
	return &Info{
		Uses:     make(map[*Ident]*Symbol),
		Decls:    make(map[*VarDecl]*Symbol),
		Funcs:    make(map[*FunctionDecl]*Symbol),
		Frames:   make(map[*FunctionDecl]int),
		Types:    make(map[Expr]Type),
		Unsigned: make(map[Expr]bool),
	}
}

type resolver struct {
	syms  *SymbolTable
	info  *Info
	diags diagBag
	loops int
}

// Resolve binds every identifier to its declaration and assigns frame
// slots. All unbound identifiers and redefinitions are reported together.
func Resolve(prog *Program) (*SymbolTable, *Info, error) {
	r := &resolver{
		syms:  NewSymbolTable(),
		info:  newInfo(),
		diags: diagBag{phase: "resolve"},
	}
	for _, d := range prog.Decls {
		switch n := d.(type) {
		case *FunctionDecl:
			r.declareFunc(n)
			if n.Kind == Definition {
				r.resolveFunc(n)
			}
		case *VarDecl:
			if n.Kind == ForwardMarker {
				r.declareMarker(n)
				continue
			}
			if n.Init != nil {
				r.expr(n.Init)
			}
			r.declareGlobal(n)
		}
	}
	return r.syms, r.info, r.diags.err()
}

func (r *resolver) redefinition(pos Pos, name string, prev Node) {
	r.diags.add(TypeError, pos, "redefinition of %s (previous declaration at line %s)", name, prev.Position())
}

func (r *resolver) declareFunc(fn *FunctionDecl) {
	sym, exists := r.syms.Global(fn.Name)
	if !exists {
		sym = &Symbol{
			Name:    fn.Name,
			Kind:    SymFunc,
			Type:    fn.Result,
			Sig:     fn.Signature(),
			Storage: StorageExtern,
			Decl:    fn,
		}
		r.syms.DefineGlobal(sym)
	} else if sym.Kind != SymFunc {
		r.redefinition(fn.Pos, fn.Name, sym.Decl)
		return
	}

	if fn.Kind == Definition {
		if sym.Defined {
			r.redefinition(fn.Pos, fn.Name, sym.Decl)
			return
		}
		sym.Defined = true
		sym.Storage = StorageGlobal
		sym.Decl = fn
		sym.Type = fn.Result
		sym.Sig = fn.Signature()
	} else if sym.Sig.Unknown {
		// A prototype refines what a marker left open.
		sym.Type = fn.Result
		sym.Sig = fn.Signature()
	}
	if fn.Link == LinkAsm {
		sym.Link = LinkAsm
	}
	r.info.Funcs[fn] = sym
}

// declareMarker handles `int main;`: an external function whose
// parameters are not declared.
func (r *resolver) declareMarker(v *VarDecl) {
	sym, exists := r.syms.Global(v.Name)
	if !exists {
		sym = &Symbol{
			Name:    v.Name,
			Kind:    SymFunc,
			Type:    v.Type,
			Sig:     &Signature{Result: v.Type, Unknown: true},
			Storage: StorageExtern,
			Decl:    v,
		}
		r.syms.DefineGlobal(sym)
	} else if sym.Kind != SymFunc {
		r.redefinition(v.Pos, v.Name, sym.Decl)
		return
	}
	sym.Marker = true
	r.info.Decls[v] = sym
}

func (r *resolver) declareGlobal(v *VarDecl) {
	if prev, exists := r.syms.Global(v.Name); exists {
		r.redefinition(v.Pos, v.Name, prev.Decl)
		return
	}
	sym := &Symbol{
		Name:    v.Name,
		Kind:    SymVar,
		Type:    v.Type,
		Storage: StorageGlobal,
		Decl:    v,
		Defined: true,
	}
	r.syms.DefineGlobal(sym)
	r.info.Decls[v] = sym
}

func (r *resolver) resolveFunc(fn *FunctionDecl) {
	r.syms.EnterFunction()
	for i, param := range fn.Params {
		if prev, ok := r.syms.locals[0][param.Name]; ok {
			r.redefinition(param.Pos, param.Name, prev.Decl)
			continue
		}
		r.info.Decls[param] = r.syms.DefineParam(param, i)
	}
	// The body's outermost block shares the parameter scope.
	for _, s := range fn.Body.Stmts {
		r.stmt(s)
	}
	r.info.Frames[fn] = r.syms.ExitFunction()
}

func (r *resolver) local(v *VarDecl) {
	if v.Init != nil {
		r.expr(v.Init)
	}
	sym, ok := r.syms.DefineLocal(v)
	if !ok {
		r.redefinition(v.Pos, v.Name, sym.Decl)
		return
	}
	r.info.Decls[v] = sym
}

func (r *resolver) stmt(s Stmt) {
	switch n := s.(type) {
	case *VarDecl:
		r.local(n)

	case *BlockStmt:
		r.syms.EnterScope()
		for _, st := range n.Stmts {
			r.stmt(st)
		}
		r.syms.ExitScope()

	case *ExprStmt:
		r.expr(n.X)

	case *ReturnStmt:
		if n.Value != nil {
			r.expr(n.Value)
		}

	case *IfStmt:
		r.expr(n.Cond)
		r.scoped(n.Then)
		if n.Else != nil {
			r.scoped(n.Else)
		}

	case *WhileStmt:
		r.expr(n.Cond)
		r.loops++
		r.scoped(n.Body)
		r.loops--

	case *ForStmt:
		r.syms.EnterScope()
		if n.Init != nil {
			r.stmt(n.Init)
		}
		if n.Cond != nil {
			r.expr(n.Cond)
		}
		if n.Post != nil {
			r.expr(n.Post)
		}
		r.loops++
		r.scoped(n.Body)
		r.loops--
		r.syms.ExitScope()

	case *BreakStmt:
		if r.loops == 0 {
			r.diags.add(SyntaxError, n.Pos, "break statement not within a loop")
		}

	case *ContinueStmt:
		if r.loops == 0 {
			r.diags.add(SyntaxError, n.Pos, "continue statement not within a loop")
		}
	}
}

// scoped resolves the body of a control statement in its own scope.
func (r *resolver) scoped(s Stmt) {
	if _, isBlock := s.(*BlockStmt); isBlock {
		r.stmt(s)
		return
	}
	r.syms.EnterScope()
	r.stmt(s)
	r.syms.ExitScope()
}

func (r *resolver) ident(id *Ident) {
	sym, ok := r.syms.Lookup(id.Name)
	if !ok {
		r.diags.add(UnboundIdentifier, id.Pos, "undeclared identifier %s", id.Name)
		return
	}
	r.info.Uses[id] = sym
}

func (r *resolver) expr(e Expr) {
	switch n := e.(type) {
	case *Literal:
	case *StringLiteral:
		r.info.Strings = append(r.info.Strings, n)
	case *Ident:
		r.ident(n)
	case *BinaryExpr:
		r.expr(n.Left)
		r.expr(n.Right)
	case *LogicalExpr:
		r.expr(n.Left)
		r.expr(n.Right)
	case *UnaryExpr:
		r.expr(n.Operand)
	case *DerefExpr:
		r.expr(n.Operand)
	case *AddrOfExpr:
		r.expr(n.Operand)
	case *CastExpr:
		r.expr(n.Operand)
	case *IndexExpr:
		r.expr(n.Base)
		r.expr(n.Index)
	case *CallExpr:
		r.ident(n.Callee)
		for _, a := range n.Args {
			r.expr(a)
		}
	case *AssignExpr:
		r.expr(n.Target)
		r.expr(n.Value)
	case *IncDecExpr:
		r.expr(n.Target)
	case *SizeofExpr:
		if n.Operand != nil {
			r.expr(n.Operand)
		}
	}
}
