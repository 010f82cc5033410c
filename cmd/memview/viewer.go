package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"pragmacc/pkg/compiler"
	"pragmacc/pkg/cpu"
)

const (
	cols       = 16
	rows       = 32
	pageSize   = cols * rows
	heatFrames = 30 // frames a written byte stays highlighted
)

// cell is one byte on the current page.
type cell struct {
	Addr  uint32
	Value byte
	Heat  int    // frames left of the write highlight
	Label string // label placed exactly here, if any
}

// viewer steps a VM and tracks which bytes it writes.
type viewer struct {
	vm            *cpu.CPU
	res           *compiler.Result
	page          uint32
	paused        bool
	stepsPerFrame int

	heat   map[uint32]int
	labels map[uint32]string
}

func newViewer(vm *cpu.CPU, res *compiler.Result, stepsPerFrame int) *viewer {
	v := &viewer{
		vm:            vm,
		res:           res,
		stepsPerFrame: stepsPerFrame,
		heat:          make(map[uint32]int),
		labels:        make(map[uint32]string),
	}
	// Several labels can share an address; keep the first by name.
	names := make([]string, 0, len(res.Labels))
	for name := range res.Labels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		addr := res.Labels[name]
		if _, taken := v.labels[addr]; !taken {
			v.labels[addr] = name
		}
	}
	vm.OnWrite = func(addr uint32, size int) {
		for i := 0; i < size; i++ {
			v.heat[addr+uint32(i)] = heatFrames
		}
	}
	return v
}

// tick advances one frame: it runs the VM unless paused and cools down
// the write highlights.
func (v *viewer) tick() {
	for addr, h := range v.heat {
		if h <= 1 {
			delete(v.heat, addr)
			continue
		}
		v.heat[addr] = h - 1
	}
	if v.paused {
		return
	}
	for i := 0; i < v.stepsPerFrame && !v.vm.Halted; i++ {
		v.vm.Step()
	}
}

func (v *viewer) step() {
	if !v.vm.Halted {
		v.vm.Step()
	}
}

// scroll moves by n pages, staying inside memory.
func (v *viewer) scroll(n int) {
	last := int64(len(v.vm.Memory)) - pageSize
	next := int64(v.page) + int64(n)*pageSize
	next = max(0, min(next, last))
	v.page = uint32(next)
}

// jumpTo shows the page holding target, a label name or a number.
func (v *viewer) jumpTo(target string) error {
	addr, ok := v.res.Labels[target]
	if !ok {
		n, err := strconv.ParseUint(target, 0, 32)
		if err != nil {
			return fmt.Errorf("no label or address %q", target)
		}
		addr = uint32(n)
	}
	if int(addr) >= len(v.vm.Memory) {
		return fmt.Errorf("address 0x%X is outside memory", addr)
	}
	v.page = addr / pageSize * pageSize
	return nil
}

func (v *viewer) cells() []cell {
	out := make([]cell, 0, pageSize)
	for i := uint32(0); i < pageSize; i++ {
		addr := v.page + i
		if int(addr) >= len(v.vm.Memory) {
			break
		}
		out = append(out, cell{
			Addr:  addr,
			Value: v.vm.ReadByte(addr),
			Heat:  v.heat[addr],
			Label: v.labels[addr],
		})
	}
	return out
}

func (v *viewer) status() string {
	var sb strings.Builder
	state := "running"
	switch {
	case v.vm.Fault != nil:
		state = "fault: " + v.vm.Fault.Error()
	case v.vm.Halted:
		state = "halted"
	case v.paused:
		state = "paused"
	}
	fmt.Fprintf(&sb, "page 0x%04X  PC=0x%04X SP=0x%04X steps=%d  %s\n", v.page, v.vm.PC, v.vm.SP, v.vm.Steps, state)
	for i, r := range v.vm.Regs {
		fmt.Fprintf(&sb, "R%d=%08X ", i, r)
	}
	return sb.String()
}
