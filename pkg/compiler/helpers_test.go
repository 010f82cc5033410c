package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"pragmacc/pkg/cpu"
)

const maxSteps = 1_000_000

// buildProgram compiles src with the default target, links externAsm and
// loads the image into a fresh VM.
func buildProgram(t *testing.T, src string, externAsm ...string) (*cpu.CPU, *Result) {
	t.Helper()
	res, err := Build(src, Options{}, externAsm...)
	if err != nil {
		if res != nil {
			t.Fatalf("Build failed: %v\nAssembly:\n%s", err, res.Assembly)
		}
		t.Fatalf("Build failed: %v", err)
	}
	vm := cpu.NewCPU(DefaultTarget().MemorySize)
	if err := vm.Load(res.Binary); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return vm, res
}

// run executes vm until it halts.
func run(t *testing.T, vm *cpu.CPU, res *Result) {
	t.Helper()
	if err := vm.RunFor(maxSteps); err != nil {
		t.Fatalf("Run failed at PC=0x%04X: %v\nAssembly:\n%s", vm.PC, err, res.Assembly)
	}
}

// runProgram builds and runs src and returns the halted VM.
func runProgram(t *testing.T, src string, externAsm ...string) (*cpu.CPU, *Result) {
	t.Helper()
	vm, res := buildProgram(t, src, externAsm...)
	run(t, vm, res)
	return vm, res
}

// runCode runs src and returns main's result.
func runCode(t *testing.T, src string) uint32 {
	t.Helper()
	vm, _ := runProgram(t, src)
	return vm.Regs[0]
}

// global reads the word stored in the global name after a run.
func global(t *testing.T, vm *cpu.CPU, res *Result, name string) uint32 {
	t.Helper()
	addr, ok := res.Labels[name]
	if !ok {
		t.Fatalf("no label %s", name)
	}
	return vm.Read32(addr)
}

func readTestdata(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

// mustCompile runs the front end and layout on src and fails the test on
// any error.
func mustCompile(t *testing.T, src string) *Object {
	t.Helper()
	obj, err := Compile(src, Options{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return obj
}

// compileErr compiles src and returns the error it must produce.
func compileErr(t *testing.T, src string) error {
	t.Helper()
	_, err := Compile(src, Options{})
	if err == nil {
		t.Fatalf("expected a compile error for:\n%s", src)
	}
	return err
}
