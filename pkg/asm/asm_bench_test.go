package asm

import (
	"fmt"
	"strings"
	"testing"
)

// smallProgram is a counter loop.
const smallProgram = `
    LDI R0, 10
    LDI R1, 0
loop:
    ADD R1, R0
    LDI R2, 1
    SUB R0, R2
    JNZ loop
    HLT
`

// mediumProgram has the shape of compiler output: a startup stub, a framed
// function and data placed with .ORG.
const mediumProgram = `
    JMP __start
__start:
    CALL main
    HLT

.GLOBAL main
main:
    PUSH R2
    LDSP R2
    LDI R3, 8
    LDSP R0
    SUB R0, R3
    STSP R0
    LDI R0, 0
    MOV R1, R2
    LDI R3, 4
    SUB R1, R3
    ST [R1], R0
__u0_L1:
    MOV R1, R2
    LDI R3, 4
    SUB R1, R3
    LD R0, [R1]
    LDI R3, 7
    SUB R0, R3
    JGE __u0_L2
    LDI R1, ARRAY
    LD R0, [R1]
    ADD R0, R0
    ST [R1], R0
    MOV R1, R2
    LDI R3, 4
    SUB R1, R3
    LD R0, [R1]
    LDI R3, 1
    ADD R0, R3
    ST [R1], R0
    JMP __u0_L1
__u0_L2:
    LDI R0, 0
    STSP R2
    POP R2
    RET

.ORG 0x4000
ARRAY:
    .WORD 1
    .WORD 2
    .WORD -3
greeting:
    .STRING "Hello, World!"
`

// largeProgram repeats a framed function many times under distinct labels.
var largeProgram = func() string {
	var sb strings.Builder
	sb.WriteString("    JMP main\n")
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&sb, "f%d:\n    PUSH R2\n    LDSP R2\n    MOV R0, R4\n    ADD R0, R5\n    JLT f%d_neg\n    STSP R2\n    POP R2\n    RET\nf%d_neg:\n    NOT R0\n    STSP R2\n    POP R2\n    RET\n", i, i, i)
	}
	sb.WriteString("main:\n")
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&sb, "    LDI R4, %d\n    LDI R5, -%d\n    CALL f%d\n", i, i*2, i)
	}
	sb.WriteString("    HLT\n")
	return sb.String()
}()

func BenchmarkAssemble_Small(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _, err := Assemble(smallProgram)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAssemble_Medium(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _, err := Assemble(mediumProgram)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAssemble_Large(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _, err := Assemble(largeProgram)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func TestBenchmarkProgramsAssemble(t *testing.T) {
	for name, src := range map[string]string{"small": smallProgram, "medium": mediumProgram, "large": largeProgram} {
		if _, _, err := Assemble(src); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}
