package asm

import (
	"fmt"
	"pragmacc/pkg/cpu"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// MaxImageSize bounds the flat image an .ORG may ask for.
const MaxImageSize = 1 << 24

var zeroOperandOps = map[string]uint16{
	"HLT": cpu.OpHLT,
	"NOP": cpu.OpNOP,
	"RET": cpu.OpRET,
}

var oneRegisterOps = map[string]uint16{
	"NOT":  cpu.OpNOT,
	"PUSH": cpu.OpPUSH,
	"POP":  cpu.OpPOP,
	"LDSP": cpu.OpLDSP,
	"STSP": cpu.OpSTSP,
}

var twoRegisterOps = map[string]uint16{
	"MOV":  cpu.OpMOV,
	"LD":   cpu.OpLD,
	"ST":   cpu.OpST,
	"ADD":  cpu.OpADD,
	"SUB":  cpu.OpSUB,
	"AND":  cpu.OpAND,
	"OR":   cpu.OpOR,
	"XOR":  cpu.OpXOR,
	"MUL":  cpu.OpMUL,
	"DIV":  cpu.OpDIV,
	"MOD":  cpu.OpMOD,
	"IDIV": cpu.OpIDIV,
	"IMOD": cpu.OpIMOD,
	"SHL":  cpu.OpSHL,
	"SHR":  cpu.OpSHR,
	"SAR":  cpu.OpSAR,
	"LDB":  cpu.OpLDB,
	"STB":  cpu.OpSTB,
}

var regAndImmediateOps = map[string]uint16{
	"LDI": cpu.OpLDI,
}

var immediateOnlyOps = map[string]uint16{
	"JMP":  cpu.OpJMP,
	"JZ":   cpu.OpJZ,
	"JNZ":  cpu.OpJNZ,
	"JN":   cpu.OpJN,
	"JC":   cpu.OpJC,
	"JNC":  cpu.OpJNC,
	"JLT":  cpu.OpJLT,
	"JGE":  cpu.OpJGE,
	"CALL": cpu.OpCALL,
}

type Assembler struct {
	labels  map[string]uint32
	externs map[string]int
	globals map[string]int
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels:  make(map[string]uint32),
		externs: make(map[string]int),
		globals: make(map[string]int),
	}
}

// Assemble translates VM32 assembly into a flat image starting at address 0
// and a map from image address to source line.
func Assemble(code string) ([]byte, map[uint32]int, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) ([]byte, map[uint32]int, error) {
	lines := strings.Split(code, "\n")

	if err := a.pass1(lines); err != nil {
		return nil, nil, err
	}
	if err := a.checkLinkage(); err != nil {
		return nil, nil, err
	}

	return a.pass2(lines)
}

// Symbols returns the label table built by the last Assemble call.
func (a *Assembler) Symbols() map[string]uint32 {
	out := make(map[string]uint32, len(a.labels))
	for k, v := range a.labels {
		out[k] = v
	}
	return out
}

func (a *Assembler) pass1(lines []string) error {
	var address uint64

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return err
		}

		for _, lbl := range p.labels {
			if _, exists := a.labels[lbl]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", lbl, lineNo)
			}
			a.labels[lbl] = uint32(address)
		}

		if p.mnemonic == "" {
			continue
		}

		var length uint64
		switch p.mnemonic {
		case ".STRING":
			length = uint64(len(p.operands[0]) + 1)
		case ".ORG":
			target, err := parseOrigin(p.operands, lineNo)
			if err != nil {
				return err
			}
			address = uint64(target)
			continue
		case ".WORD":
			if len(p.operands) != 1 {
				return fmt.Errorf(".WORD expects exactly one operand on line %d", lineNo)
			}
			length = 4
		case ".BYTE":
			if len(p.operands) != 1 {
				return fmt.Errorf(".BYTE expects exactly one operand on line %d", lineNo)
			}
			length = 1
		case ".EXTERN", ".GLOBAL":
			if len(p.operands) != 1 || !isIdentifier(p.operands[0]) {
				return fmt.Errorf("%s expects one symbol name on line %d", p.mnemonic, lineNo)
			}
			if p.mnemonic == ".EXTERN" {
				if _, seen := a.externs[p.operands[0]]; !seen {
					a.externs[p.operands[0]] = lineNo
				}
			} else {
				a.globals[p.operands[0]] = lineNo
			}
			continue
		default:
			n, ok := instructionLength(p.mnemonic)
			if !ok {
				return fmt.Errorf("unknown instruction on line %d: %s", lineNo, p.mnemonic)
			}
			length = uint64(n)
		}

		if address+length > MaxImageSize {
			return fmt.Errorf("program too large near line %d", lineNo)
		}
		address += length
	}

	return nil
}

// checkLinkage verifies every .EXTERN and .GLOBAL names a label that some
// part of the source defines.
func (a *Assembler) checkLinkage() error {
	for _, table := range []struct {
		syms map[string]int
		msg  string
	}{
		{a.externs, "unresolved external symbol"},
		{a.globals, "undefined global symbol"},
	} {
		names := make([]string, 0, len(table.syms))
		for name := range table.syms {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if _, ok := a.labels[name]; !ok {
				return fmt.Errorf("%s '%s' declared on line %d", table.msg, name, table.syms[name])
			}
		}
	}
	return nil
}

// image is the output buffer of pass 2. Every byte may be written once.
type image struct {
	data []byte
	used []bool
	pc   uint32
}

func (img *image) emit(lineNo int, bs ...byte) error {
	end := int(img.pc) + len(bs)
	if end > len(img.data) {
		img.data = append(img.data, make([]byte, end-len(img.data))...)
		img.used = append(img.used, make([]bool, end-len(img.used))...)
	}
	for i, b := range bs {
		at := int(img.pc) + i
		if img.used[at] {
			return fmt.Errorf("overlapping output at 0x%04X on line %d", at, lineNo)
		}
		img.data[at] = b
		img.used[at] = true
	}
	img.pc = uint32(end)
	return nil
}

func (img *image) emitInstr(lineNo int, instr uint16) error {
	return img.emit(lineNo, byte(instr&0xFF), byte(instr>>8))
}

func (img *image) emitWord(lineNo int, v uint32) error {
	return img.emit(lineNo, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (a *Assembler) pass2(lines []string) ([]byte, map[uint32]int, error) {
	img := &image{}
	sourceMap := make(map[uint32]int)

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, nil, err
		}

		if p.mnemonic == "" {
			continue
		}

		mnemonic := p.mnemonic
		ops := p.operands

		switch mnemonic {
		case ".ORG":
			target, err := parseOrigin(ops, lineNo)
			if err != nil {
				return nil, nil, err
			}
			img.pc = target
			continue
		case ".EXTERN", ".GLOBAL":
			continue
		}

		sourceMap[img.pc] = lineNo

		switch mnemonic {
		case ".STRING":
			bs := append([]byte(ops[0]), 0x00)
			if err := img.emit(lineNo, bs...); err != nil {
				return nil, nil, err
			}
			continue

		case ".WORD":
			val, err := a.parseImmediate(ops[0], lineNo)
			if err != nil {
				return nil, nil, err
			}
			if err := img.emitWord(lineNo, val); err != nil {
				return nil, nil, err
			}
			continue

		case ".BYTE":
			val, err := parseNumber(ops[0])
			if err != nil || val < -128 || val > 0xFF {
				return nil, nil, fmt.Errorf("invalid .BYTE value on line %d: %s", lineNo, ops[0])
			}
			if err := img.emit(lineNo, byte(val)); err != nil {
				return nil, nil, err
			}
			continue
		}

		if err := a.encode(img, mnemonic, ops, lineNo); err != nil {
			return nil, nil, err
		}
	}

	return img.data, sourceMap, nil
}

func (a *Assembler) encode(img *image, mnemonic string, ops []string, lineNo int) error {
	if opcode, ok := zeroOperandOps[mnemonic]; ok {
		if len(ops) != 0 {
			return fmt.Errorf("%s expects 0 operands on line %d", mnemonic, lineNo)
		}
		return img.emitInstr(lineNo, cpu.EncodeInstruction(opcode, 0, 0, 0))
	}

	if opcode, ok := oneRegisterOps[mnemonic]; ok {
		if len(ops) != 1 {
			return fmt.Errorf("%s expects 1 operand on line %d", mnemonic, lineNo)
		}
		regA, err := parseRegister(ops[0], lineNo)
		if err != nil {
			return err
		}
		return img.emitInstr(lineNo, cpu.EncodeInstruction(opcode, regA, 0, 0))
	}

	if opcode, ok := twoRegisterOps[mnemonic]; ok {
		if len(ops) != 2 {
			return fmt.Errorf("%s expects 2 operands on line %d", mnemonic, lineNo)
		}
		regA, err := parseRegister(ops[0], lineNo)
		if err != nil {
			return err
		}
		regB, err := parseRegister(ops[1], lineNo)
		if err != nil {
			return err
		}
		return img.emitInstr(lineNo, cpu.EncodeInstruction(opcode, regA, regB, 0))
	}

	if opcode, ok := regAndImmediateOps[mnemonic]; ok {
		if len(ops) != 2 {
			return fmt.Errorf("%s expects 2 operands on line %d", mnemonic, lineNo)
		}
		regA, err := parseRegister(ops[0], lineNo)
		if err != nil {
			return err
		}
		imm, err := a.parseImmediate(ops[1], lineNo)
		if err != nil {
			return err
		}
		if err := img.emitInstr(lineNo, cpu.EncodeInstruction(opcode, regA, 0, 0)); err != nil {
			return err
		}
		return img.emitWord(lineNo, imm)
	}

	if opcode, ok := immediateOnlyOps[mnemonic]; ok {
		if len(ops) != 1 {
			return fmt.Errorf("%s expects 1 operand on line %d", mnemonic, lineNo)
		}
		imm, err := a.parseImmediate(ops[0], lineNo)
		if err != nil {
			return err
		}
		if err := img.emitInstr(lineNo, cpu.EncodeInstruction(opcode, 0, 0, 0)); err != nil {
			return err
		}
		return img.emitWord(lineNo, imm)
	}

	return fmt.Errorf("unknown instruction on line %d: %s", lineNo, mnemonic)
}

func parseOrigin(ops []string, lineNo int) (uint32, error) {
	if len(ops) != 1 {
		return 0, fmt.Errorf(".ORG expects exactly one operand on line %d", lineNo)
	}
	target, err := strconv.ParseUint(ops[0], 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid .ORG value on line %d: %s", lineNo, ops[0])
	}
	if target >= MaxImageSize {
		return 0, fmt.Errorf(".ORG out of range on line %d: %s", lineNo, ops[0])
	}
	return uint32(target), nil
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	upperRaw := strings.ToUpper(raw)
	if directiveIdx := strings.Index(upperRaw, ".STRING"); directiveIdx != -1 && stripComments(raw[:directiveIdx]) == raw[:directiveIdx] {
		preDirective := raw[:directiveIdx]
		if colonIdx := strings.Index(preDirective, ":"); colonIdx != -1 {
			label := strings.TrimSpace(preDirective[:colonIdx])
			if label != "" {
				if !isIdentifier(label) {
					return p, fmt.Errorf("invalid label '%s' on line %d", label, lineNo)
				}
				p.labels = append(p.labels, label)
			}
		}

		rest := raw[directiveIdx+len(".STRING"):]
		opening := strings.Index(rest, "\"")
		closing := strings.LastIndex(rest, "\"")
		if opening != -1 && closing != -1 && opening != closing {
			p.mnemonic = ".STRING"
			content := rest[opening+1 : closing]
			unquoted, err := strconv.Unquote(`"` + content + `"`)
			if err != nil {
				return p, fmt.Errorf("invalid string literal on line %d: %v", lineNo, err)
			}
			p.operands = []string{unquoted}
			return p, nil
		}
		return p, fmt.Errorf("invalid string literal on line %d", lineNo)
	}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}

		beforeColon := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(beforeColon, " \t") {
			break
		}

		if !isIdentifier(beforeColon) {
			return p, fmt.Errorf("invalid label '%s' on line %d", beforeColon, lineNo)
		}

		p.labels = append(p.labels, beforeColon)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	line = normalizeInstructionText(line)
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return p, nil
	}

	p.mnemonic = strings.ToUpper(fields[0])
	if len(fields) > 1 {
		p.operands = fields[1:]
	}

	if p.mnemonic == ".ORG" && len(p.operands) != 1 {
		return p, fmt.Errorf(".ORG expects exactly one operand on line %d", lineNo)
	}

	return p, nil
}

func stripComments(line string) string {
	semicolon := strings.Index(line, ";")
	doubleSlash := strings.Index(line, "//")

	cut := -1
	if semicolon >= 0 {
		cut = semicolon
	}
	if doubleSlash >= 0 && (cut == -1 || doubleSlash < cut) {
		cut = doubleSlash
	}
	if cut >= 0 {
		return line[:cut]
	}
	return line
}

func normalizeInstructionText(line string) string {
	replacer := strings.NewReplacer(",", " ", "[", " ", "]", " ")
	return replacer.Replace(line)
}

func parseRegister(token string, lineNo int) (uint16, error) {
	t := strings.ToUpper(token)
	if len(t) == 2 && t[0] == 'R' && t[1] >= '0' && t[1] <= '7' {
		return uint16(t[1] - '0'), nil
	}
	return 0, fmt.Errorf("invalid register '%s' on line %d", token, lineNo)
}

// parseNumber accepts decimal, hex, octal and binary literals with an
// optional leading minus sign.
func parseNumber(token string) (int64, error) {
	if strings.HasPrefix(token, "-") {
		v, err := strconv.ParseUint(token[1:], 0, 32)
		if err != nil {
			return 0, err
		}
		return -int64(v), nil
	}
	v, err := strconv.ParseUint(token, 0, 32)
	return int64(v), err
}

func (a *Assembler) parseImmediate(token string, lineNo int) (uint32, error) {
	if value, err := parseNumber(token); err == nil {
		if value < -0x80000000 {
			return 0, fmt.Errorf("immediate out of range on line %d: %s", lineNo, token)
		}
		return uint32(value), nil
	}

	if addr, ok := a.labels[token]; ok {
		return addr, nil
	}

	if isIdentifier(token) {
		return 0, fmt.Errorf("undefined label '%s' on line %d", token, lineNo)
	}

	return 0, fmt.Errorf("invalid immediate '%s' on line %d", token, lineNo)
}

// instructionLength returns the byte length of an instruction.
// Every instruction is 2 bytes; a 32-bit immediate adds 4.
func instructionLength(mnemonic string) (uint16, bool) {
	mnemonic = strings.ToUpper(mnemonic)

	if _, ok := zeroOperandOps[mnemonic]; ok {
		return 2, true
	}
	if _, ok := oneRegisterOps[mnemonic]; ok {
		return 2, true
	}
	if _, ok := twoRegisterOps[mnemonic]; ok {
		return 2, true
	}
	if _, ok := regAndImmediateOps[mnemonic]; ok {
		return 6, true
	}
	if _, ok := immediateOnlyOps[mnemonic]; ok {
		return 6, true
	}
	return 0, false
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}
