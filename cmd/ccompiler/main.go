// Command ccompiler prints every intermediate result of compiling one C
// file: preprocessed source, tokens, AST, symbols, layout and assembly.
package main

import (
	"flag"
	"fmt"
	"os"
	"slices"

	"pragmacc/pkg/compiler"
)

const testSource = `#define N 3
#pragma location 0x4000
int table = 1;
char* greeting = "hi";

int sum(int n) {
	int total = 0;
	for (int i = 0; i < n; i++) total += i;
	return total;
}

int main() { return sum(N); }
`

func fail(phase string, err error) {
	fmt.Fprintf(os.Stderr, "%s error:\n%v\n", phase, err)
	os.Exit(1)
}

func main() {
	entry := flag.String("entry", "main", "entry point name")
	targetPath := flag.String("target", "", "YAML target description")
	flag.Parse()

	target := compiler.DefaultTarget()
	if *targetPath != "" {
		var err error
		if target, err = compiler.LoadTarget(*targetPath); err != nil {
			fail("target", err)
		}
	}
	target.Entry = *entry

	src := testSource
	if flag.NArg() > 0 {
		data, err := os.ReadFile(flag.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		src = string(data)
	}

	// Preprocess
	src, err := compiler.Preprocess(src)
	if err != nil {
		fail("preprocess", err)
	}
	fmt.Printf("Source:\n%s\n", src)

	// Lex
	tokens, warnings := compiler.LexWithWarnings(src)
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
	fmt.Printf("Tokens (%d)\n", len(tokens))
	for _, tok := range tokens {
		fmt.Println(" ", tok)
	}
	fmt.Println()

	// Parse
	p := compiler.NewParser(tokens, src)
	p.Entry = target.Entry
	prog, err := p.ParseProgram()
	if err != nil {
		fail("parse", err)
	}
	fmt.Println("AST")
	for _, d := range prog.Decls {
		fmt.Println(" ", d)
	}
	fmt.Println()

	// Resolve and check
	syms, info, err := compiler.Resolve(prog)
	if err != nil {
		fail("resolve", compiler.WithSource(err, src))
	}
	if err := compiler.Check(prog, info); err != nil {
		fail("check", compiler.WithSource(err, src))
	}
	fmt.Print(syms)
	fmt.Println()

	// Layout
	plan, err := compiler.PlanLayout(prog, info, target)
	if err != nil {
		fail("layout", compiler.WithSource(err, src))
	}
	fmt.Println("Layout")
	fmt.Print(plan)
	fmt.Println()

	// Code generation
	obj, err := compiler.Generate(prog, info, plan, compiler.GenOptions{Entry: target.Entry})
	if err != nil {
		fail("codegen", compiler.WithSource(err, src))
	}
	fmt.Println("Generated Assembly")
	fmt.Print(obj.Text)
	if obj.Init != "" {
		fmt.Println("; init")
		fmt.Print(obj.Init)
	}
	fmt.Println("; data")
	fmt.Print(obj.Data)
	fmt.Println()

	// Functions never reached from the entry point or a global
	// initializer.
	live := obj.Calls.Reachable(target.Entry, "")
	for _, name := range obj.Defined {
		if !live[name] && !slices.Contains(obj.Exported, name) {
			fmt.Printf("unreachable: %s\n", name)
		}
	}
}
