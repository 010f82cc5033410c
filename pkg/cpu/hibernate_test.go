package cpu

import (
	"archive/zip"
	"bytes"
	"path/filepath"
	"testing"
)

func TestCPU_HibernateCoreState(t *testing.T) {
	c1 := NewCPU(0x2000)
	c1.Regs[0] = 0x12345678
	c1.Regs[1] = 0xABCD
	c1.Regs[7] = 0x0007
	c1.PC = 0x0042
	c1.SP = 0x1F00
	c1.Z = true
	c1.C = true
	c1.V = true
	c1.Steps = 99
	c1.Write32(0x1000, 0xDEADBEEF)

	data, err := c1.HibernateToBytes()
	if err != nil {
		t.Fatalf("HibernateToBytes: %v", err)
	}

	c2 := NewCPU(0)
	if err := c2.RestoreFromBytes(data); err != nil {
		t.Fatalf("RestoreFromBytes: %v", err)
	}

	if c2.Regs != c1.Regs {
		t.Errorf("Regs mismatch: got %v, want %v", c2.Regs, c1.Regs)
	}
	if c2.PC != c1.PC {
		t.Errorf("PC: got 0x%04X, want 0x%04X", c2.PC, c1.PC)
	}
	if c2.SP != c1.SP {
		t.Errorf("SP: got 0x%04X, want 0x%04X", c2.SP, c1.SP)
	}
	if c2.Z != c1.Z || c2.N != c1.N || c2.C != c1.C || c2.V != c1.V {
		t.Errorf("flags: got Z=%v N=%v C=%v V=%v", c2.Z, c2.N, c2.C, c2.V)
	}
	if c2.Steps != 99 {
		t.Errorf("Steps: got %d, want 99", c2.Steps)
	}
	if len(c2.Memory) != 0x2000 {
		t.Errorf("memory size: got 0x%X, want 0x2000", len(c2.Memory))
	}
	if got := c2.Read32(0x1000); got != 0xDEADBEEF {
		t.Errorf("memory: got 0x%08X, want 0xDEADBEEF", got)
	}
}

func TestCPU_HibernateResumesExecution(t *testing.T) {
	c1 := NewCPU(0)
	loadProgram(t, c1,
		EncodeInstruction(OpLDI, RegA, 0, 0), imm(5),
		EncodeInstruction(OpLDI, RegB, 0, 0), imm(7),
		EncodeInstruction(OpADD, RegA, RegB, 0),
		EncodeInstruction(OpHLT, 0, 0, 0),
	)
	c1.Step()

	path := filepath.Join(t.TempDir(), "vm.zip")
	if err := c1.HibernateToFile(path); err != nil {
		t.Fatalf("HibernateToFile: %v", err)
	}

	c2 := NewCPU(0)
	if err := c2.RestoreFromFile(path); err != nil {
		t.Fatalf("RestoreFromFile: %v", err)
	}
	if err := c2.RunFor(10); err != nil {
		t.Fatalf("RunFor: %v", err)
	}
	if c2.Regs[RegA] != 12 {
		t.Errorf("R0: got %d, want 12", c2.Regs[RegA])
	}
	if c1.Regs[RegA] != 5 {
		t.Errorf("original CPU changed: R0=%d", c1.Regs[RegA])
	}
}

func TestCPU_HibernateFault(t *testing.T) {
	c1 := NewCPU(0x100)
	c1.ReadByte(0x200)

	data, err := c1.HibernateToBytes()
	if err != nil {
		t.Fatalf("HibernateToBytes: %v", err)
	}
	c2 := NewCPU(0)
	if err := c2.RestoreFromBytes(data); err != nil {
		t.Fatalf("RestoreFromBytes: %v", err)
	}
	if c2.Fault == nil || c2.Fault.Error() != c1.Fault.Error() {
		t.Errorf("Fault: got %v, want %v", c2.Fault, c1.Fault)
	}
	if !c2.Halted {
		t.Error("expected the restored CPU to be halted")
	}
}

func TestCPU_RestoreRejectsBadArchives(t *testing.T) {
	c := NewCPU(0)
	if err := c.RestoreFromBytes([]byte("not a zip")); err == nil {
		t.Error("expected an error for garbage input")
	}

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	if err := writeZipEntry(zw, "cpu_state.json", []byte(`{"memory_size": 16}`)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.RestoreFromBytes(buf.Bytes()); err == nil {
		t.Error("expected an error for a missing memory.bin")
	}
}
