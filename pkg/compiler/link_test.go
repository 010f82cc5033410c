package compiler

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"pragmacc/pkg/cpu"
)

func runUnits(t *testing.T, units []Unit, externAsm ...string) (*cpu.CPU, *Result) {
	t.Helper()
	res, err := BuildUnits(context.Background(), units, Options{}, externAsm...)
	if err != nil {
		t.Fatalf("BuildUnits failed: %v", err)
	}
	vm := cpu.NewCPU(DefaultTarget().MemorySize)
	if err := vm.Load(res.Binary); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	run(t, vm, res)
	return vm, res
}

func TestLinkLayout(t *testing.T) {
	objs, err := CompileUnits(context.Background(), []Unit{
		{Name: "a.c", Source: "int x = 1;\nint main() { return x; }"},
	}, Options{})
	be.Err(t, err, nil)

	out, err := Link(objs, DefaultTarget(), "ext:\n    RET")
	be.Err(t, err, nil)
	be.True(t, strings.HasPrefix(out, "; startup\n    JMP __start\n"))

	order := []string{
		"; unit a.c\n",
		"\nmain:\n",
		"\n__start:\n",
		"    CALL main\n    HLT\n",
		"; extern module 0\next:\n    RET\n",
		"; data a.c\n    .ORG 0x8000\nx:\n",
	}
	last := -1
	for _, part := range order {
		i := strings.Index(out, part)
		if i < 0 {
			t.Fatalf("missing %q in:\n%s", part, out)
		}
		if i <= last {
			t.Errorf("%q is out of order in:\n%s", part, out)
		}
		last = i
	}
}

func TestLinkWithoutEntry(t *testing.T) {
	vm, res := runUnits(t, []Unit{{Name: "lib.c", Source: "int twice(int v) { return v * 2; }"}})
	be.True(t, !strings.Contains(res.Assembly, "CALL main"))
	be.True(t, vm.Halted)
}

func TestLinkUnits(t *testing.T) {
	units := []Unit{
		{Name: "a.c", Source: "int main;\nint x = 1;\nint helper(int v) { return v * 2 + x; }"},
		{Name: "b.c", Source: "int y = 2;\nint helper(int v);\nint main() { return helper(20) + y - 1; }"},
	}
	vm, res := runUnits(t, units)
	be.Equal(t, vm.Regs[0], uint32(42))

	be.Equal(t, res.Labels["x"], uint32(0x8000))
	be.Equal(t, res.Labels["y"], uint32(0x8004))
	be.Equal(t, len(res.Objects), 2)
	be.Equal(t, res.Objects[0].Externs, []string{"main"})
	be.Equal(t, res.Objects[1].Externs, []string{"helper"})
	be.Equal(t, strings.Count(res.Assembly, "CALL main"), 1)
	be.True(t, strings.Contains(res.Assembly, "__u1_L0:"))
}

func TestLinkFixedAndPooledUnits(t *testing.T) {
	units := []Unit{
		{Name: "b.c", Source: "#pragma location 0x8000\nint b1 = 7;"},
		{Name: "a.c", Source: "int a1 = 5;\nint main() { return a1; }"},
	}
	vm, res := runUnits(t, units)
	be.Equal(t, vm.Regs[0], uint32(5))
	be.Equal(t, res.Labels["b1"], uint32(0x8000))
	be.Equal(t, res.Labels["a1"], uint32(0x8004))
	be.Equal(t, vm.Read32(0x8000), uint32(7))
}

func TestLinkErrors(t *testing.T) {
	tests := []struct {
		name  string
		units []Unit
		kind  ErrorKind
		msg   string
	}{
		{
			"duplicate function",
			[]Unit{
				{Name: "a.c", Source: "int f() { return 1; }"},
				{Name: "b.c", Source: "int f() { return 2; }"},
			},
			LinkError,
			"link: LinkError: function f defined in both a.c and b.c",
		},
		{
			"duplicate global",
			[]Unit{
				{Name: "a.c", Source: "int g;"},
				{Name: "b.c", Source: "int g = 3;"},
			},
			LinkError,
			"global g defined in both a.c and b.c",
		},
		{
			"global and function",
			[]Unit{
				{Name: "a.c", Source: "int f;"},
				{Name: "b.c", Source: "int f() { return 0; }"},
			},
			LinkError,
			"f is a global in a.c and a function in b.c",
		},
		{
			"overlapping fixed regions",
			[]Unit{
				{Name: "a.c", Source: "#pragma location 0x4000\nint x;"},
				{Name: "b.c", Source: "#pragma location 0x4002\nint y;"},
			},
			LayoutConflict,
			"region y of b.c [0x4002, 0x4006) overlaps region x of a.c [0x4000, 0x4004)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := BuildUnits(context.Background(), tt.units, Options{})
			be.Err(t, err, tt.msg)
			be.True(t, HasKind(err, tt.kind))
			be.Equal(t, Diagnostics(err)[0].Phase, "link")
			be.True(t, res == nil)
		})
	}
}

func TestBuildRejectsRegionOverCode(t *testing.T) {
	src := "#pragma location 0x0004\nint a = 5;\nint main() { a = 1; return a; }"
	_, err := Compile(src, Options{})
	be.Err(t, err, nil)

	res, err := Build(src, Options{})
	be.Err(t, err, "main.c: link: line 2:5: LayoutConflict: region a [0x0004, 0x0008) overlaps the code [0x0000, 0x")
	be.True(t, HasKind(err, LayoutConflict))
	be.True(t, strings.Contains(err.Error(), "int a = 5;"))
	be.True(t, res != nil && res.Binary == nil)
}

func TestLinkMarksEndOfText(t *testing.T) {
	res, err := Build("#pragma location 0x4000\nint a = 5;\nint main() { return a; }", Options{})
	be.Err(t, err, nil)
	end, ok := res.Labels[textEndLabel]
	be.True(t, ok)
	be.True(t, end > res.Labels["main"])
	be.True(t, end <= 0x4000)
}

func TestBuildUnitsNamesFailingUnit(t *testing.T) {
	units := []Unit{
		{Name: "a.c", Source: "int main() { return 0; }"},
		{Name: "b.c", Source: "int f() { return y; }"},
	}
	_, err := BuildUnits(context.Background(), units, Options{})
	be.Err(t, err, "b.c: resolve: line 1:18: UnboundIdentifier: undeclared identifier y")
	be.True(t, HasKind(err, UnboundIdentifier))
}

func TestCompileUnitsDefaultNames(t *testing.T) {
	objs, err := CompileUnits(context.Background(), []Unit{{Source: "int a;"}, {Source: "int b;"}}, Options{})
	be.Err(t, err, nil)
	be.Equal(t, objs[0].Name, "unit0")
	be.Equal(t, objs[1].Name, "unit1")
}

func TestCompileUnitsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := CompileUnits(ctx, []Unit{{Name: "a.c", Source: "int a;"}}, Options{})
	be.Err(t, err, context.Canceled)
}

func TestAssembleFailureKeepsAssembly(t *testing.T) {
	res, err := Build("int main;", Options{})
	be.Err(t, err, "assembly error")
	be.Err(t, err, "unresolved external symbol 'main'")
	be.True(t, res != nil)
	be.True(t, strings.Contains(res.Assembly, "    CALL main\n"))
	be.True(t, res.Binary == nil)
}

func TestBuildLogs(t *testing.T) {
	var buf bytes.Buffer
	opts := Options{Logger: log.New(&buf, "", 0)}
	_, err := Build("#pragma once\nint main() { return 0; }", opts)
	be.Err(t, err, nil)

	out := buf.String()
	for _, want := range []string{
		"main.c: warning: line 1: ignored pragma once\n",
		"main.c: parse: 1 declarations\n",
		"main.c: layout: 0 fixed, 0 pooled\n",
		"main.c: codegen: 1 functions, 0 externs\n",
		"link: 1 units, ",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log is missing %q:\n%s", want, out)
		}
	}
}
