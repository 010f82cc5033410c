package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// InputKind tells C translation units apart from hand-written assembly.
type InputKind int

const (
	KindC InputKind = iota
	KindAsm
)

// Input is one source file named on the command line.
type Input struct {
	Path string // absolute
	Name string // base name, used in diagnostics
	Kind InputKind
	Text string
}

func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}

	parentDir = filepath.Dir(fullPath)

	return fullPath, parentDir, nil
}

// KindOf classifies path by extension: .c is C, .asm and .s are assembly.
func KindOf(path string) (InputKind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".c":
		return KindC, nil
	case ".asm", ".s":
		return KindAsm, nil
	}
	return 0, fmt.Errorf("%s: unknown input type (want .c, .asm or .s)", path)
}

// ReadInput reads and classifies one input file.
func ReadInput(path string) (Input, error) {
	kind, err := KindOf(path)
	if err != nil {
		return Input{}, err
	}
	fullPath, _, err := GetPathInfo(path)
	if err != nil {
		return Input{}, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return Input{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Input{Path: fullPath, Name: filepath.Base(fullPath), Kind: kind, Text: string(data)}, nil
}

// ReadInputs reads every path, stopping at the first failure.
func ReadInputs(paths []string) ([]Input, error) {
	inputs := make([]Input, 0, len(paths))
	for _, p := range paths {
		in, err := ReadInput(p)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}
