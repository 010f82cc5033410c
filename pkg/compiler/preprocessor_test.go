package compiler

import (
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func TestPreprocessDefines(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			"simple",
			"#define N 10\nint a = N;",
			"\nint a = 10;",
		},
		{
			"word boundaries",
			"#define N 10\nint NN = N + N1;",
			"\nint NN = 10 + N1;",
		},
		{
			"function-like",
			"#define SQ(x) ((x) * (x))\nreturn SQ(a + 1);",
			"\nreturn ((a + 1) * (a + 1));",
		},
		{
			"nested arguments",
			"#define MAX(a, b) ((a) > (b) ? (a) : (b))\nMAX(f(1, 2), 3)",
			"\n((f(1, 2)) > (3) ? (f(1, 2)) : (3))",
		},
		{
			"macros expand in macro bodies",
			"#define ONE 1\n#define TWO (ONE + ONE)\nTWO",
			"\n\n(1 + 1)",
		},
		{
			"self reference stops",
			"#define X X + 1\nX",
			"\nX + 1",
		},
		{
			"not inside literals",
			"#define a 5\nchar* s = \"a\"; char c = 'a'; a",
			"\nchar* s = \"a\"; char c = 'a'; 5",
		},
		{
			"function-like name without call",
			"#define F(x) x\nint F;",
			"\nint F;",
		},
		{
			"empty parameter list",
			"#define ZERO() 0\nreturn ZERO() + ZERO ();",
			"\nreturn 0 + 0;",
		},
		{
			"empty parameter list without call",
			"#define ZERO() 0\nint ZERO;",
			"\nint ZERO;",
		},
		{
			"trailing comment",
			"#define LIMIT 3 // max\nLIMIT",
			"\n3",
		},
		{
			"pragma kept",
			"#pragma extern asm\nint main;",
			"#pragma extern asm\nint main;",
		},
		{
			"tree accessors",
			"#define left(b) ((int*)*b)\n#define data(b) *(b+2)\nif (data(b1) != data(left(b2)))",
			"\n\nif (*(b1+2) != *(((int*)*b2)+2))",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Preprocess(tt.input)
			be.Err(t, err, nil)
			if got != tt.expected {
				t.Errorf("%s: expected %q, got %q", tt.name, tt.expected, got)
			}
		})
	}
}

func TestPreprocessKeepsLineNumbers(t *testing.T) {
	src := "#define A 1\n#define B 2\n\nint x = A + B;\n"
	got, err := Preprocess(src)
	be.Err(t, err, nil)
	be.Equal(t, strings.Count(got, "\n"), strings.Count(src, "\n"))
	be.Equal(t, strings.Split(got, "\n")[3], "int x = 1 + 2;")
}

func TestPreprocessErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
		line  int
	}{
		{"include", "int a;\n#include <stdio.h>", "unsupported directive #include", 2},
		{"ifdef", "#ifdef X\n#endif", "unsupported directive #ifdef", 1},
		{"empty", "#", "empty directive", 1},
		{"define without name", "#define", "#define without a name", 1},
		{"bad name", "#define 1X 2", `invalid macro name "1X"`, 1},
		{"open parameter list", "#define F(a b", "unterminated macro parameter list", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Preprocess(tt.input)
			be.Err(t, err, tt.msg)
			be.True(t, HasKind(err, SyntaxError))

			diags := Diagnostics(err)
			be.Equal(t, len(diags), 1)
			be.Equal(t, diags[0].Phase, "preprocess")
			be.Equal(t, diags[0].Pos.Line, tt.line)
		})
	}
}
