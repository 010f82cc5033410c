package cpu

import (
	"errors"
	"fmt"
)

const (
	OpHLT  uint16 = 0x00
	OpNOP  uint16 = 0x01
	OpLDI  uint16 = 0x02
	OpMOV  uint16 = 0x03
	OpLD   uint16 = 0x04
	OpST   uint16 = 0x05
	OpADD  uint16 = 0x06
	OpSUB  uint16 = 0x07
	OpAND  uint16 = 0x08
	OpOR   uint16 = 0x09
	OpXOR  uint16 = 0x0A
	OpNOT  uint16 = 0x0B
	OpSHL  uint16 = 0x0C
	OpSHR  uint16 = 0x0D
	OpJMP  uint16 = 0x0E
	OpJZ   uint16 = 0x0F
	OpJNZ  uint16 = 0x10
	OpJN   uint16 = 0x11
	OpPUSH uint16 = 0x12
	OpPOP  uint16 = 0x13
	OpCALL uint16 = 0x14
	OpRET  uint16 = 0x15
	OpLDSP uint16 = 0x1A
	OpSTSP uint16 = 0x1B
	OpMUL  uint16 = 0x1C
	OpDIV  uint16 = 0x1D
	OpLDB  uint16 = 0x20
	OpSTB  uint16 = 0x21
	OpIDIV uint16 = 0x22
	OpJC   uint16 = 0x23
	OpJNC  uint16 = 0x24
	OpJLT  uint16 = 0x25
	OpJGE  uint16 = 0x26
	OpSAR  uint16 = 0x27
	OpMOD  uint16 = 0x28
	OpIMOD uint16 = 0x29
)

const (
	RegA uint16 = 0
	RegB uint16 = 1
	RegC uint16 = 2
	RegD uint16 = 3
)

// DefaultMemorySize is the memory size used when NewCPU is given zero.
const DefaultMemorySize = 0x10000

// WordSize is the width of registers, pointers and .WORD data in bytes.
const WordSize = 4

// ErrStepLimit is returned by RunFor when the program did not halt in time.
var ErrStepLimit = errors.New("step limit exceeded")

// CPU is a 32-bit register machine with byte addressed little-endian memory.
// Instructions are one 16-bit word, optionally followed by a 32-bit immediate.
type CPU struct {
	Regs [8]uint32

	PC uint32
	SP uint32

	Z bool
	N bool
	C bool
	V bool

	Memory []byte

	Halted bool

	// Fault is set when the program touched memory outside Memory; the CPU
	// halts at the faulting instruction.
	Fault error

	// OnWrite, when set, observes every store (size 1 or 4 bytes).
	OnWrite func(addr uint32, size int)

	Steps uint64
}

// NewCPU creates a CPU with memSize bytes of zeroed memory. The stack
// pointer starts at the last word of memory and grows down.
func NewCPU(memSize uint32) *CPU {
	if memSize == 0 {
		memSize = DefaultMemorySize
	}
	return &CPU{
		Memory: make([]byte, memSize),
		SP:     memSize - WordSize,
	}
}

// Load copies a program image to address 0.
func (c *CPU) Load(image []byte) error {
	if len(image) > len(c.Memory) {
		return fmt.Errorf("program too large for memory: %d bytes > %d bytes", len(image), len(c.Memory))
	}
	copy(c.Memory, image)
	return nil
}

func (c *CPU) reg(idx uint16) *uint32 {
	if idx < 8 {
		return &c.Regs[idx]
	}
	return &c.Regs[0]
}

func (c *CPU) updateFlags(result uint32) {
	c.Z = result == 0
	c.N = result&0x80000000 != 0
}

func (c *CPU) fault(format string, args ...any) {
	if c.Fault == nil {
		c.Fault = fmt.Errorf(format, args...)
	}
	c.Halted = true
}

func (c *CPU) inRange(addr uint32, size int) bool {
	return uint64(addr)+uint64(size) <= uint64(len(c.Memory))
}

// ReadByte reads a single byte; out-of-range reads fault and return 0.
func (c *CPU) ReadByte(addr uint32) byte {
	if !c.inRange(addr, 1) {
		c.fault("read of 0x%08X outside memory (PC=0x%08X)", addr, c.PC)
		return 0
	}
	return c.Memory[addr]
}

// WriteByte writes a single byte; out-of-range writes fault.
func (c *CPU) WriteByte(addr uint32, val byte) {
	if !c.inRange(addr, 1) {
		c.fault("write of 0x%08X outside memory (PC=0x%08X)", addr, c.PC)
		return
	}
	c.Memory[addr] = val
	if c.OnWrite != nil {
		c.OnWrite(addr, 1)
	}
}

// Read16 reads a little-endian uint16. Only instruction fetch uses it.
func (c *CPU) Read16(addr uint32) uint16 {
	if !c.inRange(addr, 2) {
		c.fault("fetch of 0x%08X outside memory", addr)
		return 0
	}
	return uint16(c.Memory[addr]) | uint16(c.Memory[addr+1])<<8
}

// Read32 reads a little-endian uint32 from addr..addr+3.
func (c *CPU) Read32(addr uint32) uint32 {
	if !c.inRange(addr, 4) {
		c.fault("read of 0x%08X outside memory (PC=0x%08X)", addr, c.PC)
		return 0
	}
	m := c.Memory[addr : addr+4]
	return uint32(m[0]) | uint32(m[1])<<8 | uint32(m[2])<<16 | uint32(m[3])<<24
}

// Write32 writes a little-endian uint32 to addr..addr+3.
func (c *CPU) Write32(addr uint32, val uint32) {
	if !c.inRange(addr, 4) {
		c.fault("write of 0x%08X outside memory (PC=0x%08X)", addr, c.PC)
		return
	}
	c.Memory[addr] = byte(val)
	c.Memory[addr+1] = byte(val >> 8)
	c.Memory[addr+2] = byte(val >> 16)
	c.Memory[addr+3] = byte(val >> 24)
	if c.OnWrite != nil {
		c.OnWrite(addr, 4)
	}
}

// ReadString reads a NUL-terminated string of at most max bytes.
func (c *CPU) ReadString(addr uint32, max int) (string, error) {
	var out []byte
	for i := 0; i < max; i++ {
		if !c.inRange(addr+uint32(i), 1) {
			return "", errors.New("memory access out of bounds")
		}
		b := c.Memory[addr+uint32(i)]
		if b == 0 {
			return string(out), nil
		}
		out = append(out, b)
	}
	return "", errors.New("string too long or missing null terminator")
}

func (c *CPU) fetchImm() uint32 {
	v := c.Read32(c.PC)
	c.PC += 4
	return v
}

func (c *CPU) push(v uint32) {
	c.SP -= WordSize
	c.Write32(c.SP, v)
}

func (c *CPU) pop() uint32 {
	v := c.Read32(c.SP)
	c.SP += WordSize
	return v
}

// Step executes one instruction.
func (c *CPU) Step() {
	if c.Halted {
		return
	}
	c.Steps++

	instr := c.Read16(c.PC)
	c.PC += 2
	if c.Halted {
		return
	}

	opcode := (instr >> 10) & 0x3F
	regA := (instr >> 7) & 0x07
	regB := (instr >> 4) & 0x07

	switch opcode {
	case OpHLT:
		c.Halted = true

	case OpNOP:

	case OpLDI:
		*c.reg(regA) = c.fetchImm()

	case OpMOV:
		*c.reg(regA) = *c.reg(regB)

	case OpLD:
		*c.reg(regA) = c.Read32(*c.reg(regB))

	case OpST:
		c.Write32(*c.reg(regA), *c.reg(regB))

	case OpLDB:
		*c.reg(regA) = uint32(c.ReadByte(*c.reg(regB)))

	case OpSTB:
		c.WriteByte(*c.reg(regA), byte(*c.reg(regB)))

	case OpADD:
		a, b := *c.reg(regA), *c.reg(regB)
		res64 := uint64(a) + uint64(b)
		result := uint32(res64)
		c.C = res64 > 0xFFFFFFFF
		c.V = (a^result)&(b^result)&0x80000000 != 0
		*c.reg(regA) = result
		c.updateFlags(result)

	case OpSUB:
		a, b := *c.reg(regA), *c.reg(regB)
		result := a - b
		c.C = a < b
		c.V = (a^b)&(a^result)&0x80000000 != 0
		*c.reg(regA) = result
		c.updateFlags(result)

	case OpAND:
		result := *c.reg(regA) & *c.reg(regB)
		*c.reg(regA) = result
		c.updateFlags(result)

	case OpOR:
		result := *c.reg(regA) | *c.reg(regB)
		*c.reg(regA) = result
		c.updateFlags(result)

	case OpXOR:
		result := *c.reg(regA) ^ *c.reg(regB)
		*c.reg(regA) = result
		c.updateFlags(result)

	case OpNOT:
		result := ^*c.reg(regA)
		*c.reg(regA) = result
		c.updateFlags(result)

	case OpSHL:
		result := *c.reg(regA) << (*c.reg(regB) & 31)
		*c.reg(regA) = result
		c.updateFlags(result)

	case OpSHR:
		result := *c.reg(regA) >> (*c.reg(regB) & 31)
		*c.reg(regA) = result
		c.updateFlags(result)

	case OpSAR:
		result := uint32(int32(*c.reg(regA)) >> (*c.reg(regB) & 31))
		*c.reg(regA) = result
		c.updateFlags(result)

	case OpMUL:
		result := *c.reg(regA) * *c.reg(regB)
		*c.reg(regA) = result
		c.updateFlags(result)

	case OpDIV, OpMOD:
		divisor := *c.reg(regB)
		var result uint32
		if divisor != 0 {
			if opcode == OpDIV {
				result = *c.reg(regA) / divisor
			} else {
				result = *c.reg(regA) % divisor
			}
		}
		*c.reg(regA) = result
		c.updateFlags(result)

	case OpIDIV, OpIMOD:
		divisor := int32(*c.reg(regB))
		var result int32
		if divisor != 0 {
			if opcode == OpIDIV {
				result = int32(*c.reg(regA)) / divisor
			} else {
				result = int32(*c.reg(regA)) % divisor
			}
		}
		*c.reg(regA) = uint32(result)
		c.updateFlags(uint32(result))

	case OpJMP:
		c.PC = c.fetchImm()

	case OpJZ, OpJNZ, OpJN, OpJC, OpJNC, OpJLT, OpJGE:
		target := c.fetchImm()
		if c.condition(opcode) {
			c.PC = target
		}

	case OpPUSH:
		c.push(*c.reg(regA))

	case OpPOP:
		*c.reg(regA) = c.pop()

	case OpCALL:
		target := c.fetchImm()
		c.push(c.PC)
		c.PC = target

	case OpRET:
		c.PC = c.pop()

	case OpLDSP:
		*c.reg(regA) = c.SP

	case OpSTSP:
		c.SP = *c.reg(regA)

	default:
		c.fault("illegal opcode 0x%02X at 0x%08X", opcode, c.PC-2)
	}
}

func (c *CPU) condition(opcode uint16) bool {
	switch opcode {
	case OpJZ:
		return c.Z
	case OpJNZ:
		return !c.Z
	case OpJN:
		return c.N
	case OpJC:
		return c.C
	case OpJNC:
		return !c.C
	case OpJLT:
		return c.N != c.V
	case OpJGE:
		return c.N == c.V
	}
	return false
}

func (c *CPU) Run() {
	for !c.Halted {
		c.Step()
	}
}

// RunFor runs until the CPU halts or maxSteps instructions have executed.
// It returns the fault, if any, or ErrStepLimit.
func (c *CPU) RunFor(maxSteps int) error {
	for i := 0; i < maxSteps && !c.Halted; i++ {
		c.Step()
	}
	if c.Fault != nil {
		return c.Fault
	}
	if !c.Halted {
		return ErrStepLimit
	}
	return nil
}

func EncodeInstruction(opcode, regA, regB, regC uint16) uint16 {
	return (opcode << 10) | ((regA & 0x07) << 7) | ((regB & 0x07) << 4) | ((regC & 0x07) << 1)
}
