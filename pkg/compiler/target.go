package compiler

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Target describes the machine a program is laid out for.
type Target struct {
	MemorySize uint32 `yaml:"memory_size"`
	StackSize  uint32 `yaml:"stack_size"`
	DataBase   uint32 `yaml:"data_base"` // first address of the default data pool
	Entry      string `yaml:"entry"`
}

// DefaultTarget is 64 KiB of memory with a 4 KiB stack at the top and the
// data pool starting at 0x8000.
func DefaultTarget() Target {
	return Target{
		MemorySize: 0x10000,
		StackSize:  0x1000,
		DataBase:   0x8000,
		Entry:      "main",
	}
}

// StackBase is the lowest address the stack may grow down to.
func (t Target) StackBase() uint32 {
	return t.MemorySize - t.StackSize
}

func (t Target) Validate() error {
	if t.MemorySize == 0 || t.MemorySize%WordSize != 0 {
		return fmt.Errorf("memory_size must be a positive multiple of %d, got %d", WordSize, t.MemorySize)
	}
	if t.StackSize < 4*WordSize || t.StackSize >= t.MemorySize {
		return fmt.Errorf("stack_size 0x%X does not fit memory_size 0x%X", t.StackSize, t.MemorySize)
	}
	if t.DataBase >= t.StackBase() {
		return fmt.Errorf("data_base 0x%X is inside the stack (stack base 0x%X)", t.DataBase, t.StackBase())
	}
	if t.Entry == "" {
		return fmt.Errorf("entry must not be empty")
	}
	return nil
}

// ParseTarget reads a YAML target description over the defaults.
func ParseTarget(data []byte) (Target, error) {
	t := DefaultTarget()
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Target{}, fmt.Errorf("parse target: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Target{}, fmt.Errorf("invalid target: %w", err)
	}
	return t, nil
}

// LoadTarget reads a YAML target file.
func LoadTarget(path string) (Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Target{}, fmt.Errorf("read target %s: %w", path, err)
	}
	return ParseTarget(data)
}
