package compiler

import (
	"testing"

	"github.com/nalgeon/be"
)

func resolveSource(t *testing.T, src string) (*Program, *SymbolTable, *Info) {
	t.Helper()
	prog := parseSource(t, src)
	syms, info, err := Resolve(prog)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	return prog, syms, info
}

// localSymbols maps each local and parameter name of fn to its symbol.
// Later declarations of the same name win.
func localSymbols(info *Info, fn *FunctionDecl) map[string]*Symbol {
	out := make(map[string]*Symbol)
	for _, p := range fn.Params {
		out[p.Name] = info.Decls[p]
	}
	var walk func(s Stmt)
	walk = func(s Stmt) {
		switch n := s.(type) {
		case *VarDecl:
			out[n.Name] = info.Decls[n]
		case *BlockStmt:
			for _, st := range n.Stmts {
				walk(st)
			}
		case *IfStmt:
			walk(n.Then)
			if n.Else != nil {
				walk(n.Else)
			}
		case *WhileStmt:
			walk(n.Body)
		case *ForStmt:
			if n.Init != nil {
				walk(n.Init)
			}
			walk(n.Body)
		}
	}
	walk(fn.Body)
	return out
}

func TestSymbolTableScopes(t *testing.T) {
	st := NewSymbolTable()
	g := &Symbol{Name: "x", Kind: SymVar, Type: TypeInt, Storage: StorageGlobal}
	be.True(t, st.DefineGlobal(g))
	be.True(t, !st.DefineGlobal(&Symbol{Name: "x"}))
	be.Equal(t, st.Depth(), 0)

	st.EnterFunction()
	p := st.DefineParam(&VarDecl{Name: "a", Type: TypeInt}, 0)
	be.Equal(t, p.Offset, -4)
	be.Equal(t, p.Storage, StorageParam)
	p5 := st.DefineParam(&VarDecl{Name: "e", Type: TypeInt}, 5)
	be.Equal(t, p5.Offset, 12)

	st.EnterScope()
	be.Equal(t, st.Depth(), 2)
	inner, ok := st.DefineLocal(&VarDecl{Name: "x", Type: TypeChar})
	be.True(t, ok)
	be.Equal(t, inner.Offset, -8)

	sym, found := st.Lookup("x")
	be.True(t, found)
	be.Equal(t, sym, inner)

	_, ok = st.DefineLocal(&VarDecl{Name: "x", Type: TypeInt})
	be.True(t, !ok)
	st.ExitScope()

	sym, _ = st.Lookup("x")
	be.Equal(t, sym, g)

	// The slot of the closed block is handed out again.
	st.EnterScope()
	again, _ := st.DefineLocal(&VarDecl{Name: "y", Type: TypeInt})
	be.Equal(t, again.Offset, -8)
	st.ExitScope()

	be.Equal(t, st.ExitFunction(), 8)
	be.Equal(t, st.Depth(), 0)
	_, found = st.Lookup("a")
	be.True(t, !found)
}

func TestSymbolTableString(t *testing.T) {
	_, syms, _ := resolveSource(t, `
	int b = 1;
	int f(int x);
	#pragma extern asm
	int main;
	`)
	be.Equal(t, syms.String(), "Globals:\n  var b int @0x0000\n  func f int(int) (extern, link=C)\n  func main int() (extern, link=C)\n")
	be.Equal(t, NewSymbolTable().String(), "Globals: (empty)\n")

	var names []string
	for _, s := range syms.Globals() {
		names = append(names, s.Name)
	}
	be.Equal(t, names, []string{"b", "f", "main"})
}

func TestResolveFrames(t *testing.T) {
	prog, _, info := resolveSource(t, `
	int f(int a, int b, int c, int d, int e, int g) {
		int x;
		{ int y; int z; }
		{ int w; }
		for (int i = 0; i < 1; i++) { int k; }
		return x;
	}`)
	fn := prog.Decls[0].(*FunctionDecl)
	syms := localSymbols(info, fn)

	offsets := map[string]int{}
	for name, sym := range syms {
		offsets[name] = sym.Offset
	}
	be.Equal(t, offsets, map[string]int{
		"a": -4, "b": -8, "c": -12, "d": -16,
		"e": 8, "g": 12,
		"x": -20,
		"y": -24, "z": -28,
		"w": -24,
		"i": -24, "k": -28,
	})
	be.Equal(t, info.Frames[fn], 28)
}

func TestResolveBindings(t *testing.T) {
	prog, _, info := resolveSource(t, `
	int x = 1;
	int f(int x) {
		int r = x;
		{
			int x = 2;
			r += x;
		}
		return r + x;
	}`)
	fn := prog.Decls[1].(*FunctionDecl)
	param := fn.Params[0]
	inner := fn.Body.Stmts[1].(*BlockStmt).Stmts[0].(*VarDecl)

	byDecl := map[Node]int{}
	for id, sym := range info.Uses {
		if id.Name == "x" {
			byDecl[sym.Decl]++
		}
	}
	be.Equal(t, byDecl[param], 2)
	be.Equal(t, byDecl[inner], 1)
	be.Equal(t, byDecl[prog.Decls[0]], 0)
}

func TestResolveFunctionSymbols(t *testing.T) {
	_, syms, _ := resolveSource(t, `
	int g(int a);
	#pragma extern asm
	int helper(char* s) { return 0; }
	int g(int a) { return helper("x") + a; }
	int main;
	`)

	g, _ := syms.Global("g")
	be.True(t, g.Defined)
	be.Equal(t, g.Storage, StorageGlobal)
	be.Equal(t, g.Sig.String(), "int(int)")

	helper, _ := syms.Global("helper")
	be.Equal(t, helper.Link, LinkAsm)

	main, _ := syms.Global("main")
	be.Equal(t, main.Kind, SymFunc)
	be.True(t, main.Marker)
	be.True(t, main.Sig.Unknown)
	be.True(t, !main.Defined)
}

func TestResolveMarkerThenDefinition(t *testing.T) {
	_, syms, _ := resolveSource(t, `
	#pragma extern asm
	int main;
	int main() { return 0; }
	`)
	main, _ := syms.Global("main")
	be.True(t, main.Defined)
	be.True(t, main.Marker)
	be.True(t, !main.Sig.Unknown)
}

func TestResolveStrings(t *testing.T) {
	_, _, info := resolveSource(t, `
	char* a = "one";
	int f(char* s) { return 0; }
	int main() { return f("two") + f("one"); }
	`)
	var got []string
	for _, s := range info.Strings {
		got = append(got, s.Value)
	}
	be.Equal(t, got, []string{"one", "two", "one"})
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind ErrorKind
		msg  string
		pos  Pos
	}{
		{"undeclared", "int main() { return y; }", UnboundIdentifier, "undeclared identifier y", Pos{1, 21}},
		{"use before declaration", "int f() { return g; }\nint g;", UnboundIdentifier, "undeclared identifier g", Pos{1, 18}},
		{"undeclared function", "int main() { return nope(1); }", UnboundIdentifier, "undeclared identifier nope", Pos{1, 21}},
		{"out of scope", "int main() { { int t; } return t; }", UnboundIdentifier, "undeclared identifier t", Pos{1, 32}},
		{"for variable out of scope", "int main() { for (int i = 0; i < 1; i++); return i; }", UnboundIdentifier, "undeclared identifier i", Pos{1, 50}},
		{"duplicate local", "int main() { int a; int a; }", TypeError, "redefinition of a (previous declaration at line 1:18)", Pos{1, 25}},
		{"local redeclares param", "int f(int a) { int a; return a; }", TypeError, "redefinition of a", Pos{1, 20}},
		{"duplicate param", "int f(int a, int a) { return a; }", TypeError, "redefinition of a", Pos{1, 18}},
		{"duplicate global", "int a;\nint a;", TypeError, "redefinition of a (previous declaration at line 1:5)", Pos{2, 5}},
		{"duplicate function", "int f() { return 0; }\nint f() { return 1; }", TypeError, "redefinition of f", Pos{2, 5}},
		{"function and variable", "int f;\nint f() { return 1; }", TypeError, "redefinition of f", Pos{2, 5}},
		{"break outside loop", "int main() { break; }", SyntaxError, "break statement not within a loop", Pos{1, 14}},
		{"continue outside loop", "int main() { if (1) continue; }", SyntaxError, "continue statement not within a loop", Pos{1, 21}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Resolve(parseSource(t, tt.src))
			be.Err(t, err, tt.msg)
			diags := Diagnostics(err)
			be.Equal(t, len(diags), 1)
			be.Equal(t, diags[0].Kind, tt.kind)
			be.Equal(t, diags[0].Phase, "resolve")
			be.Equal(t, diags[0].Pos, tt.pos)
		})
	}
}

func TestResolveReportsAllErrors(t *testing.T) {
	src := "int main() {\n\treturn a + b;\n}\nint main;\nint c; int c;"
	_, _, err := Resolve(parseSource(t, src))
	diags := Diagnostics(err)
	be.Equal(t, len(diags), 3)
	be.Equal(t, diags[0].Msg, "undeclared identifier a")
	be.Equal(t, diags[1].Msg, "undeclared identifier b")
	be.Equal(t, diags[2].Kind, TypeError)
}
