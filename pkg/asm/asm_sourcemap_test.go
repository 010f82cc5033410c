package asm

import (
	"testing"
)

func TestAssembleSourceMap(t *testing.T) {
	code := `
; Line 1: Comment
LDI R0, 10      ; Line 3: 6 bytes
                ; Line 4: Empty
LABEL:          ; Line 5: Label
ADD R0, R1      ; Line 6: 2 bytes at 0x0006
.ORG 0x0010     ; Line 7: no output
HLT             ; Line 8: 2 bytes at 0x0010
.STRING "AB"    ; Line 9: 3 bytes at 0x0012
.ORG 0x000C     ; Line 10: back into the gap
.WORD LABEL     ; Line 11: 4 bytes at 0x000C
`

	_, sourceMap, err := Assemble(code)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	tests := []struct {
		addr uint32
		line int
	}{
		{0x0000, 3},
		{0x0006, 6},
		{0x0010, 8},
		{0x0012, 9},
		{0x000C, 11},
	}

	for _, tc := range tests {
		if got := sourceMap[tc.addr]; got != tc.line {
			t.Errorf("sourceMap[0x%04X] = %d; want %d", tc.addr, got, tc.line)
		}
	}
	if len(sourceMap) != len(tests) {
		t.Errorf("sourceMap has %d entries; want %d", len(sourceMap), len(tests))
	}
}
