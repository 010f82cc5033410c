package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"
)

func TestDefaultTarget(t *testing.T) {
	target := DefaultTarget()
	be.Err(t, target.Validate(), nil)
	be.Equal(t, target.StackBase(), uint32(0xF000))
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want Target
	}{
		{"empty keeps defaults", "", DefaultTarget()},
		{
			"overrides",
			"memory_size: 0x20000\nstack_size: 0x2000\ndata_base: 0x10000\nentry: start\n",
			Target{MemorySize: 0x20000, StackSize: 0x2000, DataBase: 0x10000, Entry: "start"},
		},
		{
			"partial",
			"data_base: 0x6000\n",
			Target{MemorySize: 0x10000, StackSize: 0x1000, DataBase: 0x6000, Entry: "main"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTarget([]byte(tt.yaml))
			be.Err(t, err, nil)
			be.Equal(t, got, tt.want)
		})
	}
}

func TestParseTargetErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		msg  string
	}{
		{"bad yaml", "memory_size: [", "parse target"},
		{"unaligned memory", "memory_size: 0x10001", "memory_size must be a positive multiple of 4, got 65537"},
		{"tiny stack", "stack_size: 8", "stack_size 0x8 does not fit memory_size 0x10000"},
		{"data in stack", "data_base: 0xF800", "data_base 0xF800 is inside the stack (stack base 0xF000)"},
		{"no entry", "entry: \"\"", "entry must not be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTarget([]byte(tt.yaml))
			be.Err(t, err, tt.msg)
		})
	}
}

func TestLoadTarget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "target.yaml")
	be.Err(t, os.WriteFile(path, []byte("entry: start\n"), 0o644), nil)

	target, err := LoadTarget(path)
	be.Err(t, err, nil)
	be.Equal(t, target.Entry, "start")

	_, err = LoadTarget(filepath.Join(dir, "missing.yaml"))
	be.Err(t, err, "read target")
}

func TestCustomTargetEntry(t *testing.T) {
	target := DefaultTarget()
	target.Entry = "start"
	res, err := Build("int start() { return 9; }", Options{Target: target})
	be.Err(t, err, nil)
	be.True(t, res.Objects[0].HasEntry)
	be.Equal(t, res.Objects[0].Externs, []string(nil))

	_, ok := res.Labels["start"]
	be.True(t, ok)
}
