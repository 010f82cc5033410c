package compiler

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind classifies a compile error.
type ErrorKind int

const (
	SyntaxError ErrorKind = iota
	UnboundIdentifier
	TypeError
	LayoutConflict
	CodegenError
	LinkError
)

func (k ErrorKind) String() string {
	switch k {
	case SyntaxError:
		return "SyntaxError"
	case UnboundIdentifier:
		return "UnboundIdentifier"
	case TypeError:
		return "TypeError"
	case LayoutConflict:
		return "LayoutConflict"
	case CodegenError:
		return "CodegenError"
	case LinkError:
		return "LinkError"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Diagnostic is one compile error with its phase and source position.
type Diagnostic struct {
	Kind    ErrorKind
	Phase   string
	Pos     Pos
	Msg     string
	Snippet string // the offending source line, when known
}

func (d *Diagnostic) Error() string {
	var sb strings.Builder
	switch {
	case d.Pos.Line > 0 && d.Pos.Col > 0:
		fmt.Fprintf(&sb, "%s: line %s: %s: %s", d.Phase, d.Pos, d.Kind, d.Msg)
	case d.Pos.Line > 0:
		fmt.Fprintf(&sb, "%s: line %d: %s: %s", d.Phase, d.Pos.Line, d.Kind, d.Msg)
	default:
		fmt.Fprintf(&sb, "%s: %s: %s", d.Phase, d.Kind, d.Msg)
	}
	if d.Snippet != "" {
		fmt.Fprintf(&sb, "\n  |> %s", d.Snippet)
		if d.Pos.Col > 0 {
			fmt.Fprintf(&sb, "\n  |> %s^", caretPad(d.Snippet, d.Pos.Col))
		}
	}
	return sb.String()
}

// caretPad keeps tabs so the caret lines up under the snippet.
func caretPad(line string, col int) string {
	var sb strings.Builder
	for i, r := range []rune(line) {
		if i >= col-1 {
			break
		}
		if r == '\t' {
			sb.WriteRune('\t')
		} else {
			sb.WriteRune(' ')
		}
	}
	return sb.String()
}

// ErrorList is the set of diagnostics one phase collected.
type ErrorList []*Diagnostic

func (l ErrorList) Error() string {
	parts := make([]string, len(l))
	for i, d := range l {
		parts[i] = d.Error()
	}
	return strings.Join(parts, "\n")
}

func (l ErrorList) Unwrap() []error {
	errs := make([]error, len(l))
	for i, d := range l {
		errs[i] = d
	}
	return errs
}

// Diagnostics flattens err into its diagnostics.
func Diagnostics(err error) []*Diagnostic {
	var list ErrorList
	if errors.As(err, &list) {
		return list
	}
	var d *Diagnostic
	if errors.As(err, &d) {
		return []*Diagnostic{d}
	}
	return nil
}

// HasKind reports whether err carries a diagnostic of kind k.
func HasKind(err error, k ErrorKind) bool {
	for _, d := range Diagnostics(err) {
		if d.Kind == k {
			return true
		}
	}
	return false
}

// WithSource fills in the source snippet of every diagnostic in err.
func WithSource(err error, src string) error {
	lines := strings.Split(src, "\n")
	for _, d := range Diagnostics(err) {
		if d.Snippet != "" {
			continue
		}
		if idx := d.Pos.Line - 1; idx >= 0 && idx < len(lines) {
			d.Snippet = strings.TrimRight(lines[idx], "\r")
		}
	}
	return err
}

// diagBag collects the diagnostics of one phase.
type diagBag struct {
	phase string
	list  ErrorList
}

func (b *diagBag) add(kind ErrorKind, pos Pos, format string, args ...any) {
	b.list = append(b.list, &Diagnostic{
		Kind:  kind,
		Phase: b.phase,
		Pos:   pos,
		Msg:   fmt.Sprintf(format, args...),
	})
}

// err returns the collected diagnostics sorted by position, or nil.
func (b *diagBag) err() error {
	if len(b.list) == 0 {
		return nil
	}
	sort.SliceStable(b.list, func(i, j int) bool {
		a, c := b.list[i].Pos, b.list[j].Pos
		if a.Line != c.Line {
			return a.Line < c.Line
		}
		return a.Col < c.Col
	})
	return b.list
}
