//go:build !js

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pragmacc/pkg/asm"
	"pragmacc/pkg/compiler"
	"pragmacc/pkg/cpu"
	"pragmacc/pkg/utils"
)

// inputList collects repeated -in flags.
type inputList []string

func (l *inputList) String() string { return strings.Join(*l, ",") }

func (l *inputList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	log.SetFlags(0)

	var inPaths inputList
	flag.Var(&inPaths, "in", "input .c or .asm file (repeatable)")
	outPath := flag.String("out", "", "output binary file path (default: first input with .bin extension)")
	asmPath := flag.String("asm", "", "write the linked assembly to this file")
	showLink := flag.Bool("link", false, "print the linked assembly")
	targetPath := flag.String("target", "", "YAML target description (memory_size, stack_size, data_base, entry)")
	runProgram := flag.Bool("run", false, "run the generated binary file on the virtual CPU")
	runBinPath := flag.String("run-bin", "", "run an existing binary file on the virtual CPU")
	showSymbols := flag.Bool("symbols", false, "print every label with its address")
	maxSteps := flag.Int("steps", 10_000_000, "instruction limit for -run and -run-bin")
	snapshotPath := flag.String("snapshot", "", "after a run, save the VM state (registers and memory) to this ZIP file")
	verbose := flag.Bool("v", false, "log each compiler phase")
	flag.Parse()

	if *runProgram && *runBinPath != "" {
		fmt.Fprintln(os.Stderr, "use either -run or -run-bin, not both")
		os.Exit(2)
	}
	if len(inPaths) == 0 && *runBinPath == "" && !*runProgram {
		fmt.Fprintln(os.Stderr, "nothing to do: provide -in to compile, -run to run the output, or -run-bin <file> to run an existing binary")
		flag.Usage()
		os.Exit(2)
	}

	target := compiler.DefaultTarget()
	if *targetPath != "" {
		var err error
		if target, err = compiler.LoadTarget(*targetPath); err != nil {
			log.Fatal(err)
		}
	}
	opts := compiler.Options{Target: target}
	if *verbose {
		opts.Logger = log.New(os.Stderr, "pragmacc: ", 0)
	}

	builtOutput := ""
	if len(inPaths) > 0 {
		output := *outPath
		if output == "" {
			output = defaultOutputPath(inPaths[0])
		}
		res, err := buildFiles(context.Background(), inPaths, opts, output, *asmPath)
		if err != nil {
			log.Fatal(err)
		}
		if *showLink {
			fmt.Print(res.Assembly)
		}
		if *showSymbols {
			printSymbols(os.Stdout, res)
		}

		fmt.Printf("built %d bytes -> %s\n", len(res.Binary), output)
		builtOutput = output
	}

	runTarget := ""
	switch {
	case *runBinPath != "":
		runTarget = *runBinPath
	case *runProgram:
		if builtOutput == "" {
			fmt.Fprintln(os.Stderr, "-run requires -in, or use -run-bin <file>")
			os.Exit(2)
		}
		runTarget = builtOutput
	default:
		return
	}

	if err := runBinary(os.Stdout, runTarget, target, *maxSteps, *snapshotPath); err != nil {
		log.Fatalf("run failed for %q: %v", runTarget, err)
	}
}

// buildFiles builds the files at paths and writes the binary to output and,
// when asmPath is set, the linked assembly to asmPath. Nothing is written
// unless the build succeeds.
func buildFiles(ctx context.Context, paths []string, opts compiler.Options, output, asmPath string) (*compiler.Result, error) {
	inputs, err := utils.ReadInputs(paths)
	if err != nil {
		return nil, err
	}
	res, err := build(ctx, inputs, opts)
	if err != nil {
		return nil, fmt.Errorf("build failed:\n%w", err)
	}
	if asmPath != "" {
		if err := writeAssembly(asmPath, res); err != nil {
			return nil, fmt.Errorf("failed to write assembly %q: %w", asmPath, err)
		}
	}
	if err := writeBinary(output, res.Binary); err != nil {
		return nil, fmt.Errorf("failed to write binary file %q: %w", output, err)
	}
	return res, nil
}

// build compiles the C inputs and links them with the assembly inputs. A
// build with no C input is assembled as is.
func build(ctx context.Context, inputs []utils.Input, opts compiler.Options) (*compiler.Result, error) {
	var (
		units     []compiler.Unit
		externAsm []string
	)
	for _, in := range inputs {
		switch in.Kind {
		case utils.KindC:
			units = append(units, compiler.Unit{Name: in.Name, Source: in.Text})
		case utils.KindAsm:
			externAsm = append(externAsm, in.Text)
		}
	}

	if len(units) == 0 {
		source := strings.Join(externAsm, "\n")
		a := asm.NewAssembler()
		bin, sourceMap, err := a.Assemble(source)
		if err != nil {
			return &compiler.Result{Assembly: source}, fmt.Errorf("assembly error: %w", err)
		}
		return &compiler.Result{Assembly: source, Binary: bin, SourceMap: sourceMap, Labels: a.Symbols()}, nil
	}
	return compiler.BuildUnits(ctx, units, opts, externAsm...)
}

func printSymbols(w io.Writer, res *compiler.Result) {
	names := make([]string, 0, len(res.Labels))
	for name := range res.Labels {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := res.Labels[names[i]], res.Labels[names[j]]
		if a != b {
			return a < b
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		fmt.Fprintf(w, "0x%04X %s\n", res.Labels[name], name)
	}
}

func defaultOutputPath(inPath string) string {
	ext := filepath.Ext(inPath)
	if ext == "" {
		return inPath + ".bin"
	}
	return strings.TrimSuffix(inPath, ext) + ".bin"
}

func writeAssembly(path string, res *compiler.Result) error {
	return os.WriteFile(path, []byte(res.Assembly), 0o644)
}

func writeBinary(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func readBinary(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// runBinary runs the image at path and prints the final machine state. A
// non-empty snapshot path also saves the state there, even after a fault.
func runBinary(w io.Writer, path string, target compiler.Target, maxSteps int, snapshot string) error {
	loadedBytes, err := readBinary(path)
	if err != nil {
		return err
	}

	vm := cpu.NewCPU(target.MemorySize)
	if err := vm.Load(loadedBytes); err != nil {
		return err
	}
	runErr := vm.RunFor(maxSteps)
	if snapshot != "" {
		if err := vm.HibernateToFile(snapshot); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
	}
	if runErr != nil {
		return fmt.Errorf("after %d steps at PC=0x%04X: %w", vm.Steps, vm.PC, runErr)
	}

	fmt.Fprintf(w,
		"run complete (%s): steps=%d PC=0x%04X SP=0x%04X Z=%t N=%t C=%t V=%t R0=0x%08X R1=0x%08X R2=0x%08X R3=0x%08X\n",
		path,
		vm.Steps,
		vm.PC,
		vm.SP,
		vm.Z,
		vm.N,
		vm.C,
		vm.V,
		vm.Regs[0],
		vm.Regs[1],
		vm.Regs[2],
		vm.Regs[3],
	)
	return nil
}
