package compiler

import (
	"testing"

	"github.com/nalgeon/be"
)

func checkSource(t *testing.T, src string) (*Program, *Info) {
	t.Helper()
	prog, _, info := resolveSource(t, src)
	if err := Check(prog, info); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	return prog, info
}

func TestCheckExpressionTypes(t *testing.T) {
	tests := []struct {
		expr     string
		expected string
		unsigned bool // recorded signedness of the operation
	}{
		{"i + i", "int", false},
		{"i + u", "unsigned", false},
		{"c + c", "int", false},
		{"c * u", "unsigned", true},
		{"i / i", "int", false},
		{"u / i", "unsigned", true},
		{"u % 3", "unsigned", true},
		{"i < u", "int", true},
		{"i < i", "int", false},
		{"c < i", "int", false},
		{"p < p", "int", true},
		{"i >> 1", "int", false},
		{"u >> 1", "unsigned", true},
		{"c << 1", "int", false},
		{"p + 1", "int*", false},
		{"1 + p", "int*", false},
		{"p - p", "int", false},
		{"s + i", "char*", false},
		{"*p", "int", false},
		{"*s", "char", false},
		{"p[2]", "int", false},
		{"&i", "int*", false},
		{"&p", "int**", false},
		{"-c", "int", false},
		{"~u", "unsigned", false},
		{"!p", "int", false},
		{"p && i", "int", false},
		{"sizeof(char)", "unsigned", false},
		{"sizeof i", "unsigned", false},
		{"(char*)p", "char*", false},
		{"(int)p", "int", false},
		{"'a'", "int", false},
		{"0xFF", "unsigned", false},
		{`"str"`, "char*", false},
		{"c = i", "char", false},
		{"u /= 2", "unsigned", true},
		{"i /= 2", "int", false},
		{"p += 1", "int*", false},
		{"i++", "int", false},
		{"--p", "int*", false},
		{"get()", "int", false},
		{"put(1)", "void", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			src := `
			int get() { return 0; }
			void put(int v) { }
			int f(int i, unsigned u, char c, int* p, char* s) { ` + tt.expr + `; return 0; }`
			prog, info := checkSource(t, src)
			fn := prog.Decls[2].(*FunctionDecl)
			e := fn.Body.Stmts[0].(*ExprStmt).X

			be.Equal(t, info.Types[e].String(), tt.expected)
			be.Equal(t, info.Unsigned[e], tt.unsigned)
		})
	}
}

func TestCheckIsDeterministic(t *testing.T) {
	src := readTestdata(t, "tl3.c")
	src, err := Preprocess(src)
	be.Err(t, err, nil)
	prog, _, info := resolveSource(t, src)

	be.Err(t, Check(prog, info), nil)
	types := make(map[Expr]Type, len(info.Types))
	for e, ty := range info.Types {
		types[e] = ty
	}
	unsigned := make(map[Expr]bool, len(info.Unsigned))
	for e, u := range info.Unsigned {
		unsigned[e] = u
	}

	be.Err(t, Check(prog, info), nil)
	be.Equal(t, info.Types, types)
	be.Equal(t, info.Unsigned, unsigned)
}

func TestCheckAccepts(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"pointer from constant", "int* A = 0x4000;"},
		{"pointer from constant expression", "int* A = 0x4000 + 4 * 2;"},
		{"null pointer", "char* p = 0;"},
		{"void pointer conversions", "int x; void* v = &x; int* p = v;"},
		{"address of global", "int x; int* p = &x;"},
		{"pointer compare with zero", "int f(int* p) { return p == 0 || 0 != p; }"},
		{"int from char", "char c; int i = c;"},
		{"char from int", "int i = 300; char c = i;"},
		{"cast pointer to int", "int f(int* p) { return (int)p; }"},
		{"cast int to pointer", "int f(int v) { return *(int*)v; }"},
		{"prototype matches", "int f(int a, char* b);\nint f(int x, char* y) { return x; }"},
		{"marker then prototype", "int main;\nint main(int argc);"},
		{"unknown marker arguments", "int main;\nint g() { return main(1, 2, 3); }"},
		{"void return", "void f() { return; }"},
		{"string to char pointer", "int f(char* s) { return 0; }\nint g() { return f(\"x\"); }"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, _, info := resolveSource(t, tt.src)
			be.Err(t, Check(prog, info), nil)
		})
	}
}

func TestCheckErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"pointer from variable", "int f(int v) { int* p = v; return 0; }", "initialization makes int* from int without a cast"},
		{"int from pointer", "int f(int* p) { int v = p; return v; }", "initialization makes int from int* without a cast"},
		{"distinct pointers", "int f(int* p) { char* c = p; return 0; }", "incompatible types in initialization: char* from int*"},
		{"assign pointer from int", "int f(int* p, int v) { p = v; return 0; }", "assignment makes int* from int without a cast"},
		{"return pointer as int", "int f(int* p) { return p; }", "return makes int from int* without a cast"},
		{"argument type", "int g(int* p) { return 0; }\nint f(int v) { return g(v); }", "argument makes int* from int without a cast"},
		{"argument count", "int g(int a) { return a; }\nint f() { return g(1, 2); }", "wrong number of arguments to g: got 2, want 1"},
		{"deref int", "int f(int v) { return *v; }", "cannot dereference non-pointer type int"},
		{"deref void pointer", "int f(void* v) { return *v; }", "dereferencing void pointer"},
		{"index int", "int f(int v) { return v[0]; }", "subscripted value is not a pointer (int)"},
		{"pointer index", "int f(int* p) { return p[p]; }", "array subscript is not an integer (int*)"},
		{"address of rvalue", "int f(int v) { int* p = &(v + 1); return 0; }", "cannot take the address of"},
		{"assign to rvalue", "int f(int v) { v + 1 = 2; return 0; }", "left side of assignment is not assignable"},
		{"increment rvalue", "int f(int v) { (v + 1)++; return 0; }", "operand of PLUS_PLUS is not assignable"},
		{"function as value", "int g() { return 0; }\nint f() { return g + 1; }", "function g used as a value"},
		{"call a variable", "int f(int v) { return v(); }", "called object v is not a function"},
		{"cast to void", "int f(int v) { (void)v; return 0; }", "cast to void is not supported"},
		{"return value from void", "void f() { return 1; }", "return with a value in void function f"},
		{"missing return value", "int f() { return; }", "return with no value in function f returning int"},
		{"void value", "void g() { }\nint f() { return g() + 1; }", "invalid operands to binary PLUS: void and int"},
		{"void condition", "void g() { }\nint f() { if (g()) return 1; return 0; }", "condition has non-scalar type void"},
		{"pointer multiply", "int f(int* p) { return p * 2; }", "invalid operands to binary STAR: int* and int"},
		{"pointer sum", "int f(int* p) { p + p; return 0; }", "invalid operands to binary PLUS: int* and int*"},
		{"compare distinct pointers", "int f(int* p, char* c) { return p == c; }", "comparison of distinct pointer types int* and char*"},
		{"compare pointer and int", "int f(int* p, int v) { return p < v; }", "comparison between int* and int"},
		{"unary minus pointer", "int f(int* p) { p = -p; return 0; }", "invalid operand to unary MINUS: int*"},
		{"conflicting prototype", "int f(int a);\nint f(char a) { return 0; }", "conflicting types for f: int(int) vs int(char)"},
		{"conflicting result", "int f(int a) { return a; }\nvoid f(int a);", "conflicting types for f: void(int) vs int(int)"},
		{"global from variable", "int x;\nint* p = x;", "initialization makes int* from int without a cast"},
		{"compound pointer multiply", "int f(int* p) { p *= 2; return 0; }", "invalid operands to STAR_ASSIGN: int* and int"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, _, info := resolveSource(t, tt.src)
			err := Check(prog, info)
			be.Err(t, err, tt.msg)
			be.True(t, HasKind(err, TypeError))
			for _, d := range Diagnostics(err) {
				be.Equal(t, d.Phase, "check")
			}
		})
	}
}

func TestCheckReportsAllErrors(t *testing.T) {
	src := `
	int f(int* p) {
		int a = p;
		char* c = p;
		return *a;
	}`
	prog, _, info := resolveSource(t, src)
	diags := Diagnostics(Check(prog, info))
	be.Equal(t, len(diags), 3)
	be.Equal(t, diags[0].Pos.Line, 3)
	be.Equal(t, diags[2].Pos.Line, 5)
}
