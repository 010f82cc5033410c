package compiler

import (
	"fmt"
	"strings"
)

const (
	// startLabel is where the startup stub lives.
	startLabel = "__start"
	// textEndLabel follows the last instruction, before any data.
	textEndLabel = "__text_end"
)

// Link joins compiled units and hand-written assembly modules into one
// assembly program:
//
//	JMP __start           ; at address 0
//	<unit text>...
//	__start: <unit init>... CALL <entry>; HLT
//	<extern asm>...
//	__text_end:
//	<unit data>...        ; each at its planned address
//
// A symbol declared but not defined by any unit is left to the external
// modules; the assembler rejects it if none provides it.
func Link(objs []*Object, target Target, externAsm ...string) (string, error) {
	diags := diagBag{phase: "link"}

	funcs := make(map[string]string)   // function -> unit
	globals := make(map[string]string) // data -> unit
	for _, obj := range objs {
		for _, name := range obj.Defined {
			if prev, dup := funcs[name]; dup {
				diags.add(LinkError, Pos{}, "function %s defined in both %s and %s", name, prev, obj.Name)
				continue
			}
			funcs[name] = obj.Name
		}
		for _, name := range obj.Globals {
			if prev, dup := globals[name]; dup {
				diags.add(LinkError, Pos{}, "global %s defined in both %s and %s", name, prev, obj.Name)
				continue
			}
			globals[name] = obj.Name
		}
	}
	for name, unit := range globals {
		if fu, clash := funcs[name]; clash {
			diags.add(LinkError, Pos{}, "%s is a global in %s and a function in %s", name, unit, fu)
		}
	}

	// Regions of different units must not overlap.
	for i := range objs {
		for j := i + 1; j < len(objs); j++ {
			for _, a := range objs[i].Plan.Regions() {
				for _, b := range objs[j].Plan.Regions() {
					if overlaps(a, b) {
						diags.add(LayoutConflict, b.Pos, "region %s of %s [0x%04X, 0x%04X) overlaps region %s of %s [0x%04X, 0x%04X)",
							b.Name, objs[j].Name, b.Addr, b.End(), a.Name, objs[i].Name, a.Addr, a.End())
					}
				}
			}
		}
	}
	if err := diags.err(); err != nil {
		return "", err
	}

	entry := target.Entry
	if entry == "" {
		entry = "main"
	}
	hasEntry := false
	for _, obj := range objs {
		hasEntry = hasEntry || obj.HasEntry
	}

	var sb strings.Builder
	sb.WriteString("; startup\n")
	fmt.Fprintf(&sb, "    JMP %s\n", startLabel)
	for _, obj := range objs {
		fmt.Fprintf(&sb, "\n; unit %s\n", obj.Name)
		sb.WriteString(obj.Text)
	}

	fmt.Fprintf(&sb, "\n%s:\n", startLabel)
	for _, obj := range objs {
		sb.WriteString(obj.Init)
	}
	if hasEntry {
		fmt.Fprintf(&sb, "    CALL %s\n", entry)
	}
	sb.WriteString("    HLT\n")

	for i, mod := range externAsm {
		fmt.Fprintf(&sb, "\n; extern module %d\n", i)
		sb.WriteString(mod)
		if !strings.HasSuffix(mod, "\n") {
			sb.WriteByte('\n')
		}
	}

	fmt.Fprintf(&sb, "\n%s:\n", textEndLabel)

	for _, obj := range objs {
		if obj.Data == "" {
			continue
		}
		fmt.Fprintf(&sb, "\n; data %s\n", obj.Name)
		sb.WriteString(obj.Data)
	}
	return sb.String(), nil
}

// checkTextOverlap reports data regions that fall inside the code, which
// occupies [0, textEnd).
func checkTextOverlap(objs []*Object, textEnd uint32) error {
	code := Region{Name: "code", Size: textEnd}
	for _, obj := range objs {
		diags := diagBag{phase: "link"}
		for _, r := range obj.Plan.Regions() {
			if overlaps(r, code) {
				diags.add(LayoutConflict, r.Pos, "region %s [0x%04X, 0x%04X) overlaps the code [0x0000, 0x%04X)",
					r.Name, r.Addr, r.End(), textEnd)
			}
		}
		if err := diags.err(); err != nil {
			return fmt.Errorf("%s: %w", obj.Name, WithSource(err, obj.Source))
		}
	}
	return nil
}
