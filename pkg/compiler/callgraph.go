package compiler

import "sort"

// CallGraph maps each function defined in a unit to the functions it
// calls. The key "" holds calls made by global initializers.
type CallGraph map[string][]string

// buildCallGraph records the direct callees of every function body and
// global initializer.
func buildCallGraph(prog *Program) CallGraph {
	g := make(CallGraph)
	add := func(from string, calls map[string]bool) {
		names := make([]string, 0, len(calls))
		for name := range calls {
			names = append(names, name)
		}
		sort.Strings(names)
		g[from] = append(g[from], names...)
	}

	for _, d := range prog.Decls {
		switch n := d.(type) {
		case *FunctionDecl:
			if n.Kind != Definition {
				continue
			}
			calls := make(map[string]bool)
			findCallsStmt(n.Body, calls)
			add(n.Name, calls)
		case *VarDecl:
			if n.Init != nil {
				calls := make(map[string]bool)
				findCallsExpr(n.Init, calls)
				if len(calls) > 0 {
					add("", calls)
				}
			}
		}
	}
	return g
}

// Reachable returns every function transitively called from roots,
// including the roots themselves.
func (g CallGraph) Reachable(roots ...string) map[string]bool {
	reachable := make(map[string]bool)
	var worklist []string

	// Helper to mark a function as used and queue it for inspection
	addReachable := func(name string) {
		if !reachable[name] {
			reachable[name] = true
			worklist = append(worklist, name)
		}
	}
	for _, r := range roots {
		addReachable(r)
	}

	for len(worklist) > 0 {
		curr := worklist[0]
		worklist = worklist[1:]
		for _, callee := range g[curr] {
			addReachable(callee)
		}
	}
	return reachable
}

// Callees returns the sorted set of all functions called anywhere in the
// unit.
func (g CallGraph) Callees() []string {
	seen := make(map[string]bool)
	for _, calls := range g {
		for _, c := range calls {
			seen[c] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// findCallsExpr recursively extracts function call names from an expression.
func findCallsExpr(e Expr, calls map[string]bool) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *CallExpr:
		calls[n.Callee.Name] = true
		for _, arg := range n.Args {
			findCallsExpr(arg, calls)
		}
	case *BinaryExpr:
		findCallsExpr(n.Left, calls)
		findCallsExpr(n.Right, calls)
	case *LogicalExpr:
		findCallsExpr(n.Left, calls)
		findCallsExpr(n.Right, calls)
	case *UnaryExpr:
		findCallsExpr(n.Operand, calls)
	case *DerefExpr:
		findCallsExpr(n.Operand, calls)
	case *AddrOfExpr:
		findCallsExpr(n.Operand, calls)
	case *CastExpr:
		findCallsExpr(n.Operand, calls)
	case *IncDecExpr:
		findCallsExpr(n.Target, calls)
	case *AssignExpr:
		findCallsExpr(n.Target, calls)
		findCallsExpr(n.Value, calls)
	case *IndexExpr:
		findCallsExpr(n.Base, calls)
		findCallsExpr(n.Index, calls)
	case *Literal, *StringLiteral, *Ident, *SizeofExpr:
		// No function calls here; sizeof does not evaluate its operand.
	}
}

// findCallsStmt recursively extracts function call names from a statement.
func findCallsStmt(s Stmt, calls map[string]bool) {
	if s == nil {
		return
	}
	switch n := s.(type) {
	case *VarDecl:
		findCallsExpr(n.Init, calls)
	case *ReturnStmt:
		findCallsExpr(n.Value, calls)
	case *BlockStmt:
		for _, child := range n.Stmts {
			findCallsStmt(child, calls)
		}
	case *IfStmt:
		findCallsExpr(n.Cond, calls)
		findCallsStmt(n.Then, calls)
		findCallsStmt(n.Else, calls)
	case *WhileStmt:
		findCallsExpr(n.Cond, calls)
		findCallsStmt(n.Body, calls)
	case *ForStmt:
		findCallsStmt(n.Init, calls)
		findCallsExpr(n.Cond, calls)
		findCallsExpr(n.Post, calls)
		findCallsStmt(n.Body, calls)
	case *ExprStmt:
		findCallsExpr(n.X, calls)
	case *BreakStmt, *ContinueStmt:
	}
}
