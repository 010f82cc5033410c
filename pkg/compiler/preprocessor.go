package compiler

import (
	"fmt"
	"strings"
)

// Macro represents a defined macro, either simple or function-like.
type Macro struct {
	Func bool // defined with a parameter list, possibly empty
	Args []string
	Body string
}

// Preprocess expands `#define NAME VALUE` and `#define NAME(a, b) VALUE`
// textually. Directive lines become blank lines so positions stay stable.
// `#pragma` lines pass through unexpanded; any other directive is an error.
// Errors are SyntaxError diagnostics of phase "preprocess".
func Preprocess(src string) (string, error) {
	defines := make(map[string]Macro)
	lines := strings.Split(src, "\n")
	var result strings.Builder

	for i, line := range lines {
		if i > 0 {
			result.WriteString("\n")
		}
		trimmed := strings.TrimSpace(line)

		if !strings.HasPrefix(trimmed, "#") {
			result.WriteString(applyDefines(line, defines, nil))
			continue
		}

		directive := strings.TrimSpace(trimmed[1:])
		switch {
		case strings.HasPrefix(directive, "pragma"):
			result.WriteString(line)
		case strings.HasPrefix(directive, "define"):
			name, macro, err := parseDefine(strings.TrimPrefix(directive, "define"))
			if err != nil {
				return "", directiveError(i+1, line, "%v", err)
			}
			defines[name] = macro
		default:
			word := strings.Fields(directive)
			if len(word) == 0 {
				return "", directiveError(i+1, line, "empty directive")
			}
			return "", directiveError(i+1, line, "unsupported directive #%s", word[0])
		}
	}
	return result.String(), nil
}

func directiveError(line int, text string, format string, args ...any) error {
	return &Diagnostic{
		Kind:    SyntaxError,
		Phase:   "preprocess",
		Pos:     Pos{Line: line},
		Msg:     fmt.Sprintf(format, args...),
		Snippet: strings.TrimRight(text, "\r"),
	}
}

// parseDefine splits the text after `#define` into a name and macro.
func parseDefine(rest string) (string, Macro, error) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", Macro{}, fmt.Errorf("#define without a name")
	}

	// Name ends at space or (.
	nameEnd := 0
	for nameEnd < len(rest) {
		r := rest[nameEnd]
		if r == ' ' || r == '\t' || r == '(' {
			break
		}
		nameEnd++
	}
	name := rest[:nameEnd]
	if name == "" || !isIdentStart(rune(name[0])) {
		return "", Macro{}, fmt.Errorf("invalid macro name %q", name)
	}
	rest = rest[nameEnd:]

	var args []string
	fn := false
	// Function-like only when '(' follows the name without a space.
	if len(rest) > 0 && rest[0] == '(' {
		fn = true
		closeParen := strings.Index(rest, ")")
		if closeParen == -1 {
			return "", Macro{}, fmt.Errorf("unterminated macro parameter list")
		}
		argStr := rest[1:closeParen]
		if strings.TrimSpace(argStr) != "" {
			for _, arg := range strings.Split(argStr, ",") {
				args = append(args, strings.TrimSpace(arg))
			}
		}
		rest = rest[closeParen+1:]
	}

	value := strings.TrimSpace(rest)
	if i := strings.Index(value, "//"); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	return name, Macro{Func: fn, Args: args, Body: value}, nil
}

// applyDefines replaces occurrences of keys in defines with their values.
// Replacements happen only on word boundaries and never inside string or
// char literals. active holds the macros being expanded, which are not
// expanded again.
func applyDefines(input string, defines map[string]Macro, active map[string]bool) string {
	if len(defines) == 0 {
		return input
	}

	var sb strings.Builder
	n := len(input)
	i := 0

	for i < n {
		if input[i] == '"' || input[i] == '\'' {
			quote := input[i]
			sb.WriteByte(quote)
			i++
			for i < n {
				char := input[i]
				sb.WriteByte(char)
				i++
				if char == '\\' {
					if i < n {
						sb.WriteByte(input[i])
						i++
					}
				} else if char == quote {
					break
				}
			}
			continue
		}
		if input[i] == '/' && i+1 < n && input[i+1] == '/' {
			sb.WriteString(input[i:])
			break
		}

		if !isIdentStart(rune(input[i])) {
			sb.WriteByte(input[i])
			i++
			continue
		}

		start := i
		for i < n && isIdentPart(rune(input[i])) {
			i++
		}
		word := input[start:i]
		macro, ok := defines[word]
		if !ok || active[word] {
			sb.WriteString(word)
			continue
		}

		inner := make(map[string]bool, len(active)+1)
		for k := range active {
			inner[k] = true
		}
		inner[word] = true

		if !macro.Func {
			sb.WriteString(applyDefines(macro.Body, defines, inner))
			continue
		}

		args, end, ok := macroArgs(input, i)
		if ok && len(macro.Args) == 0 && len(args) == 1 && args[0] == "" {
			args = nil
		}
		if !ok || len(args) != len(macro.Args) {
			// Not a call: leave the identifier alone.
			sb.WriteString(word)
			continue
		}

		// One pass over the body so an argument's text is never re-substituted
		// by a later parameter name.
		argMap := make(map[string]Macro, len(macro.Args))
		for k, argName := range macro.Args {
			argMap[argName] = Macro{Body: applyDefines(args[k], defines, active)}
		}
		body := applyDefines(macro.Body, argMap, nil)
		sb.WriteString(applyDefines(body, defines, inner))
		i = end
	}
	return sb.String()
}

// macroArgs parses a parenthesised argument list starting at or after i.
// It returns the trimmed arguments and the index just past ')'.
func macroArgs(input string, i int) ([]string, int, bool) {
	n := len(input)
	j := i
	for j < n && (input[j] == ' ' || input[j] == '\t') {
		j++
	}
	if j >= n || input[j] != '(' {
		return nil, 0, false
	}
	j++

	var args []string
	var currentArg strings.Builder
	parenDepth := 1
	for j < n && parenDepth > 0 {
		switch c := input[j]; {
		case c == '(':
			parenDepth++
			currentArg.WriteByte(c)
		case c == ')':
			parenDepth--
			if parenDepth > 0 {
				currentArg.WriteByte(c)
			}
		case c == ',' && parenDepth == 1:
			args = append(args, strings.TrimSpace(currentArg.String()))
			currentArg.Reset()
		default:
			currentArg.WriteByte(c)
		}
		j++
	}
	if parenDepth != 0 {
		return nil, 0, false
	}
	args = append(args, strings.TrimSpace(currentArg.String()))
	return args, j, true
}

func isIdentStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}
