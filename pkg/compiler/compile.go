package compiler

import (
	"context"
	"fmt"
	"io"
	"log"

	"golang.org/x/sync/errgroup"

	"pragmacc/pkg/asm"
)

// Options configure a compilation.
type Options struct {
	// Logger receives one line per phase and the lexer's warnings. Nil
	// discards them.
	Logger *log.Logger
	// Target describes the machine; the zero value means DefaultTarget().
	Target Target
}

func (o Options) logger() *log.Logger {
	if o.Logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return o.Logger
}

func (o Options) target() Target {
	if o.Target == (Target{}) {
		return DefaultTarget()
	}
	return o.Target
}

// Unit is one translation unit to compile.
type Unit struct {
	Name   string
	Source string
}

// Result is a linked and assembled program.
type Result struct {
	Assembly  string
	Binary    []byte
	SourceMap map[uint32]int    // address -> assembly line
	Labels    map[string]uint32 // every assembler label
	Objects   []*Object
}

// analysis is a unit that went through the front end.
type analysis struct {
	unit Unit
	prog *Program
	info *Info
	syms *SymbolTable
}

// analyze runs preprocessing, lexing, parsing, resolution and checking.
func analyze(u Unit, opts Options) (*analysis, error) {
	logger := opts.logger()
	target := opts.target()

	src, err := Preprocess(u.Source)
	if err != nil {
		return nil, err
	}

	tokens, warnings := LexWithWarnings(src)
	for _, w := range warnings {
		logger.Printf("%s: warning: %s", u.Name, w)
	}
	logger.Printf("%s: lex: %d tokens", u.Name, len(tokens))

	p := NewParser(tokens, src)
	p.Entry = target.Entry
	prog, err := p.ParseProgram()
	if err != nil {
		return nil, err
	}
	logger.Printf("%s: parse: %d declarations", u.Name, len(prog.Decls))

	syms, info, err := Resolve(prog)
	if err != nil {
		return nil, WithSource(err, src)
	}
	logger.Printf("%s: resolve: %d globals", u.Name, len(syms.Globals()))

	if err := Check(prog, info); err != nil {
		return nil, WithSource(err, src)
	}
	logger.Printf("%s: check: %d typed expressions", u.Name, len(info.Types))

	return &analysis{unit: Unit{Name: u.Name, Source: src}, prog: prog, info: info, syms: syms}, nil
}

// generate plans the layout of an analysed unit and emits its code.
func generate(a *analysis, k int, opts Options, reserved []Region) (*Object, error) {
	logger := opts.logger()
	target := opts.target()

	plan, err := PlanLayout(a.prog, a.info, target, reserved...)
	if err != nil {
		return nil, WithSource(err, a.unit.Source)
	}
	logger.Printf("%s: layout: %d fixed, %d pooled", a.unit.Name, len(plan.Fixed), len(plan.Pool))

	obj, err := Generate(a.prog, a.info, plan, GenOptions{
		Prefix: fmt.Sprintf("__u%d_", k),
		Entry:  target.Entry,
	})
	if err != nil {
		return nil, WithSource(err, a.unit.Source)
	}
	obj.Name = a.unit.Name
	obj.Source = a.unit.Source
	obj.Symbols = a.syms
	logger.Printf("%s: codegen: %d functions, %d externs", a.unit.Name, len(obj.Defined), len(obj.Externs))
	return obj, nil
}

// Compile runs the whole pipeline on a single unit.
func Compile(src string, opts Options) (*Object, error) {
	objs, err := CompileUnits(context.Background(), []Unit{{Name: "main.c", Source: src}}, opts)
	if err != nil {
		return nil, err
	}
	return objs[0], nil
}

// CompileUnits compiles units concurrently, each with its own symbol table.
// Layout runs in input order so the units' pooled data does not collide.
// The first failing unit's error is returned.
func CompileUnits(ctx context.Context, units []Unit, opts Options) ([]*Object, error) {
	units = append([]Unit(nil), units...)
	for i := range units {
		if units[i].Name == "" {
			units[i].Name = fmt.Sprintf("unit%d", i)
		}
	}

	analyses := make([]*analysis, len(units))
	g, _ := errgroup.WithContext(ctx)
	for i, u := range units {
		g.Go(func() error {
			a, err := analyze(u, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", u.Name, err)
			}
			analyses[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Every unit's fixed regions are known up front; pools are planned one
	// unit after another around them.
	var fixed []Region
	for _, a := range analyses {
		fixed = append(fixed, FixedRegions(a.prog)...)
	}
	objs := make([]*Object, len(units))
	var pooled []Region
	for i, a := range analyses {
		reserved := append(append([]Region(nil), fixed...), pooled...)
		obj, err := generate(a, i, opts, reserved)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.unit.Name, err)
		}
		objs[i] = obj
		pooled = append(pooled, obj.Plan.Pool...)
	}
	return objs, nil
}

// Assemble links objs with any external assembly modules and assembles
// the result.
func Assemble(objs []*Object, opts Options, externAsm ...string) (*Result, error) {
	source, err := Link(objs, opts.target(), externAsm...)
	if err != nil {
		return nil, err
	}
	a := asm.NewAssembler()
	bin, sourceMap, err := a.Assemble(source)
	// Labels are kept after a failed second pass.
	if end, ok := a.Symbols()[textEndLabel]; ok {
		if cerr := checkTextOverlap(objs, end); cerr != nil {
			return &Result{Assembly: source, Objects: objs}, cerr
		}
	}
	if err != nil {
		return &Result{Assembly: source, Objects: objs}, fmt.Errorf("assembly error: %w", err)
	}
	opts.logger().Printf("link: %d units, %d bytes", len(objs), len(bin))
	return &Result{
		Assembly:  source,
		Binary:    bin,
		SourceMap: sourceMap,
		Labels:    a.Symbols(),
		Objects:   objs,
	}, nil
}

// Build compiles one unit, links it with externAsm and assembles it.
func Build(src string, opts Options, externAsm ...string) (*Result, error) {
	return BuildUnits(context.Background(), []Unit{{Name: "main.c", Source: src}}, opts, externAsm...)
}

// BuildUnits compiles, links and assembles several units.
func BuildUnits(ctx context.Context, units []Unit, opts Options, externAsm ...string) (*Result, error) {
	objs, err := CompileUnits(ctx, units, opts)
	if err != nil {
		return nil, err
	}
	return Assemble(objs, opts, externAsm...)
}
