package compiler

import (
	"fmt"
	"sort"
	"strings"

	"modernc.org/mathutil"
)

// Region is one planned object in memory.
type Region struct {
	Name  string
	Addr  uint32
	Size  uint32
	Fixed bool // placed by #pragma location
	Pos   Pos
}

func (r Region) End() uint64 { return uint64(r.Addr) + uint64(r.Size) }

func (r Region) String() string {
	kind := "pool"
	if r.Fixed {
		kind = "fixed"
	}
	return fmt.Sprintf("%-20s [0x%04X, 0x%04X) %d bytes %s", r.Name, r.Addr, r.End(), r.Size, kind)
}

// Plan is the memory layout of one unit's globals and string literals.
type Plan struct {
	Fixed   []Region
	Pool    []Region
	Strings map[*StringLiteral]uint32

	byName map[string]Region
}

// Addr returns the address planned for the global name.
func (p *Plan) Addr(name string) (uint32, bool) {
	r, ok := p.byName[name]
	return r.Addr, ok
}

// Regions returns every region ordered by address.
func (p *Plan) Regions() []Region {
	all := make([]Region, 0, len(p.Fixed)+len(p.Pool))
	all = append(all, p.Fixed...)
	all = append(all, p.Pool...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Addr < all[j].Addr })
	return all
}

func (p *Plan) String() string {
	var sb strings.Builder
	for _, r := range p.Regions() {
		sb.WriteString(r.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func overlaps(a, b Region) bool {
	return mathutil.MaxUint64(uint64(a.Addr), uint64(b.Addr)) < mathutil.MinUint64(a.End(), b.End())
}

func stringRegionName(i int) string {
	return fmt.Sprintf("str%d", i)
}

// FixedRegions returns the regions placed by #pragma location, without
// validating them.
func FixedRegions(prog *Program) []Region {
	var (
		out    []Region
		cursor uint64
		active bool
	)
	for _, d := range prog.Decls {
		switch n := d.(type) {
		case *LocationPragma:
			cursor = uint64(n.Addr)
			active = true
		case *VarDecl:
			if n.Kind != Definition || !active {
				continue
			}
			size := n.Type.Size()
			out = append(out, Region{Name: n.Name, Addr: uint32(cursor), Size: size, Fixed: true, Pos: n.Pos})
			cursor += uint64(size)
		}
	}
	return out
}

// PlanLayout assigns an address to every global definition and string
// literal. Definitions that follow a #pragma location go to consecutive
// fixed addresses; everything else is pooled from target.DataBase, word
// aligned, around the fixed regions and any reserved regions of other
// units. Addresses are also written to the global symbols.
func PlanLayout(prog *Program, info *Info, target Target, reserved ...Region) (*Plan, error) {
	plan := &Plan{
		Strings: make(map[*StringLiteral]uint32),
		byName:  make(map[string]Region),
	}
	diags := diagBag{phase: "layout"}
	stackBase := uint64(target.StackBase())

	for _, r := range FixedRegions(prog) {
		switch {
		case r.End() > uint64(target.MemorySize):
			diags.add(CodegenError, r.Pos, "region %s at 0x%X is beyond addressable memory (0x%X bytes)", r.Name, r.Addr, target.MemorySize)
		case r.End() > stackBase:
			diags.add(LayoutConflict, r.Pos, "region %s [0x%04X, 0x%04X) overlaps the stack at 0x%04X", r.Name, r.Addr, r.End(), stackBase)
		default:
			for _, prev := range plan.Fixed {
				if overlaps(prev, r) {
					diags.add(LayoutConflict, r.Pos, "region %s [0x%04X, 0x%04X) overlaps region %s [0x%04X, 0x%04X)", r.Name, r.Addr, r.End(), prev.Name, prev.Addr, prev.End())
				}
			}
		}
		plan.Fixed = append(plan.Fixed, r)
		plan.byName[r.Name] = r
	}

	var pooled []*VarDecl
	for _, d := range prog.Decls {
		if v, ok := d.(*VarDecl); ok && v.Kind == Definition {
			if _, fixed := plan.byName[v.Name]; !fixed {
				pooled = append(pooled, v)
			}
		}
	}

	// Pool placement. Words are aligned; chars and strings are not.
	obstacles := append(append([]Region(nil), plan.Fixed...), reserved...)
	next := uint64(target.DataBase)
	place := func(name string, size uint32, align uint64, pos Pos) (Region, bool) {
		for {
			next = (next + align - 1) / align * align
			r := Region{Name: name, Addr: uint32(next), Size: size, Pos: pos}
			if r.End() > stackBase {
				return r, false
			}
			moved := false
			for _, f := range obstacles {
				if overlaps(f, r) {
					next = mathutil.MaxUint64(next, f.End())
					moved = true
				}
			}
			if !moved {
				next = r.End()
				return r, true
			}
		}
	}

	exhausted := false
	for _, v := range pooled {
		align := uint64(1)
		if v.Type.Size() == WordSize {
			align = WordSize
		}
		r, ok := place(v.Name, v.Type.Size(), align, v.Pos)
		if !ok {
			diags.add(LayoutConflict, v.Pos, "default data pool exhausted placing %s", v.Name)
			exhausted = true
			break
		}
		plan.Pool = append(plan.Pool, r)
		plan.byName[v.Name] = r
	}
	for i, s := range info.Strings {
		if exhausted {
			break
		}
		r, ok := place(stringRegionName(i), uint32(len(s.Value)+1), 1, s.Pos)
		if !ok {
			diags.add(LayoutConflict, s.Pos, "default data pool exhausted placing string literal %s", s)
			break
		}
		plan.Pool = append(plan.Pool, r)
		plan.Strings[s] = r.Addr
	}

	if err := diags.err(); err != nil {
		return nil, err
	}

	for v, sym := range info.Decls {
		if sym.Storage == StorageGlobal && sym.Kind == SymVar {
			sym.Addr = plan.byName[v.Name].Addr
		}
	}
	return plan, nil
}
