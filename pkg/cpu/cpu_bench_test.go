package cpu

import (
	"testing"
)

// fillWords writes count copies of w followed by HLT starting at address 0.
func fillWords(c *CPU, w uint16, count int) {
	for j := 0; j < count; j++ {
		c.Memory[j*2] = byte(w & 0xFF)
		c.Memory[j*2+1] = byte(w >> 8)
	}
	hlt := EncodeInstruction(OpHLT, 0, 0, 0)
	c.Memory[count*2] = byte(hlt & 0xFF)
	c.Memory[count*2+1] = byte(hlt >> 8)
}

// BenchmarkCPU_NOP measures the raw dispatch overhead of the Step loop.
func BenchmarkCPU_NOP(b *testing.B) {
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c := NewCPU(0)
		fillWords(c, EncodeInstruction(OpNOP, 0, 0, 0), 1000)
		c.Run()
	}
}

func BenchmarkCPU_ALU_ADD(b *testing.B) {
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c := NewCPU(0)
		fillWords(c, EncodeInstruction(OpADD, RegA, RegB, 0), 1000)
		c.Regs[RegA] = 1
		c.Regs[RegB] = 1
		c.Run()
	}
}

func BenchmarkCPU_ALU_IDIV(b *testing.B) {
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c := NewCPU(0)
		fillWords(c, EncodeInstruction(OpIDIV, RegA, RegB, 0), 1000)
		c.Regs[RegA] = 600000
		c.Regs[RegB] = 1
		c.Run()
	}
}

// BenchmarkCPU_Memory_LD measures LD throughput. R1 holds the address.
func BenchmarkCPU_Memory_LD(b *testing.B) {
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c := NewCPU(0)
		fillWords(c, EncodeInstruction(OpLD, RegA, RegB, 0), 1000)
		c.Write32(0x4000, 0xABCD1234)
		c.Regs[RegB] = 0x4000
		c.Run()
	}
}

// BenchmarkCPU_Memory_ST measures ST throughput with a write observer attached.
func BenchmarkCPU_Memory_ST(b *testing.B) {
	var writes int
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c := NewCPU(0)
		c.OnWrite = func(uint32, int) { writes++ }
		fillWords(c, EncodeInstruction(OpST, RegA, RegB, 0), 1000)
		c.Regs[RegA] = 0x4000
		c.Regs[RegB] = 0xBEEF
		c.Run()
	}
}

// BenchmarkCPU_Call_Ret measures CALL + RET round-trip overhead.
// The function at 0x2000 immediately returns.
func BenchmarkCPU_Call_Ret(b *testing.B) {
	const callCount = 500
	const funcAddr = 0x2000

	var parts []any
	for j := 0; j < callCount; j++ {
		parts = append(parts, EncodeInstruction(OpCALL, 0, 0, 0), imm(funcAddr))
	}
	parts = append(parts, EncodeInstruction(OpHLT, 0, 0, 0))
	prog := program(parts...)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c := NewCPU(0)
		copy(c.Memory, prog)
		ret := EncodeInstruction(OpRET, 0, 0, 0)
		c.Memory[funcAddr] = byte(ret & 0xFF)
		c.Memory[funcAddr+1] = byte(ret >> 8)
		c.Run()
	}
}

// BenchmarkCPU_Fibonacci computes fib(30) iteratively; only the CPU loop is timed.
func BenchmarkCPU_Fibonacci(b *testing.B) {
	prog := buildFibProgram(30)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c := NewCPU(0)
		copy(c.Memory, prog)
		c.Run()
	}
}

func TestFibonacciProgram(t *testing.T) {
	c := NewCPU(0)
	copy(c.Memory, buildFibProgram(30))
	if err := c.RunFor(10000); err != nil {
		t.Fatalf("fib: %v", err)
	}
	if c.Regs[RegB] != 832040 {
		t.Errorf("fib(30): expected 832040, got %d", c.Regs[RegB])
	}
}

// buildFibProgram returns an image that computes fib(n) iteratively,
// leaving the result in R1.
func buildFibProgram(n uint32) []byte {
	var prog []byte

	emitWord := func(w uint16) {
		prog = append(prog, byte(w&0xFF), byte(w>>8))
	}
	emitImm := func(v uint32) {
		prog = append(prog, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}

	// R0=n, R1=0, R2=1
	emitWord(EncodeInstruction(OpLDI, RegA, 0, 0))
	emitImm(n)
	emitWord(EncodeInstruction(OpLDI, RegB, 0, 0))
	emitImm(0)
	emitWord(EncodeInstruction(OpLDI, RegC, 0, 0))
	emitImm(1)

	loopAddr := uint32(len(prog))

	emitWord(EncodeInstruction(OpLDI, RegD, 0, 0))
	emitImm(0)
	emitWord(EncodeInstruction(OpADD, RegD, RegA, 0))

	doneJZPos := len(prog)
	emitWord(EncodeInstruction(OpJZ, 0, 0, 0))
	emitImm(0) // patched below

	emitWord(EncodeInstruction(OpMOV, RegD, RegC, 0)) // R3 = b
	emitWord(EncodeInstruction(OpADD, RegC, RegB, 0)) // b = b + a
	emitWord(EncodeInstruction(OpMOV, RegB, RegD, 0)) // a = old b
	emitWord(EncodeInstruction(OpLDI, RegD, 0, 0))
	emitImm(1)
	emitWord(EncodeInstruction(OpSUB, RegA, RegD, 0)) // n--
	emitWord(EncodeInstruction(OpJMP, 0, 0, 0))
	emitImm(loopAddr)

	doneAddr := uint32(len(prog))
	emitWord(EncodeInstruction(OpHLT, 0, 0, 0))

	for k := 0; k < 4; k++ {
		prog[doneJZPos+2+k] = byte(doneAddr >> (8 * k))
	}
	return prog
}
