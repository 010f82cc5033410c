package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF     TokenType = iota // sentinel: end of input
	ILLEGAL                  // malformed input; Lexeme holds the message

	// Literals
	IDENTIFIER   // variable / function name
	INTEGER      // decimal or hex integer literal
	UNSIGNED_LIT // integer literal with a u/U suffix, e.g., 10u or 0xFFFFu
	CHAR_LIT     // character literal 'a'; Lexeme holds the decoded value
	STRING       // string literal "..."; Lexeme holds the decoded text

	// Directives
	PRAGMA_EXTERN_ASM // #pragma extern asm
	PRAGMA_LOCATION   // #pragma location <addr>; Lexeme holds the address literal

	// Keywords
	INT      // "int"
	CHAR     // "char"
	UNSIGNED // "unsigned"
	VOID     // "void"
	IF       // "if"
	ELSE     // "else"
	WHILE    // "while"
	FOR      // "for"
	RETURN   // "return"
	BREAK    // "break"
	CONTINUE // "continue"
	SIZEOF   // "sizeof"

	// Paired delimiters
	LBRACE   // {
	RBRACE   // }
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]

	// Punctuation
	SEMICOLON // ;
	COMMA     // ,

	// Arithmetic operators
	PLUS        // +
	MINUS       // -
	STAR        // *
	SLASH       // /
	PERCENT     // %
	AND         // & (binary bitwise AND, or unary address-of)
	PIPE        // |
	CARET       // ^
	TILDE       // ~
	SHL_OP      // <<
	SHR_OP      // >>
	AND_LOGICAL // &&
	OR_LOGICAL  // ||
	NOT         // !

	PLUS_PLUS   // ++
	MINUS_MINUS // --

	// Assignment / comparison  (order matters: ASSIGN before EQUALS)
	ASSIGN         // =
	PLUS_ASSIGN    // +=
	MINUS_ASSIGN   // -=
	STAR_ASSIGN    // *=
	SLASH_ASSIGN   // /=
	PERCENT_ASSIGN // %=

	EQUALS     // ==
	NOT_EQ     // !=
	LESS       // <
	GREATER    // >
	LESS_EQ    // <=
	GREATER_EQ // >=
)

// tokenNames is indexed by TokenType.
var tokenNames = [...]string{
	EOF:               "EOF",
	ILLEGAL:           "ILLEGAL",
	IDENTIFIER:        "IDENTIFIER",
	INTEGER:           "INTEGER",
	UNSIGNED_LIT:      "UNSIGNED_LIT",
	CHAR_LIT:          "CHAR_LIT",
	STRING:            "STRING",
	PRAGMA_EXTERN_ASM: "PRAGMA_EXTERN_ASM",
	PRAGMA_LOCATION:   "PRAGMA_LOCATION",
	INT:               "INT",
	CHAR:              "CHAR",
	UNSIGNED:          "UNSIGNED",
	VOID:              "VOID",
	IF:                "IF",
	ELSE:              "ELSE",
	WHILE:             "WHILE",
	FOR:               "FOR",
	RETURN:            "RETURN",
	BREAK:             "BREAK",
	CONTINUE:          "CONTINUE",
	SIZEOF:            "SIZEOF",
	LBRACE:            "LBRACE",
	RBRACE:            "RBRACE",
	LPAREN:            "LPAREN",
	RPAREN:            "RPAREN",
	LBRACKET:          "LBRACKET",
	RBRACKET:          "RBRACKET",
	SEMICOLON:         "SEMICOLON",
	COMMA:             "COMMA",
	PLUS:              "PLUS",
	MINUS:             "MINUS",
	STAR:              "STAR",
	SLASH:             "SLASH",
	PERCENT:           "PERCENT",
	AND:               "AND",
	PIPE:              "PIPE",
	CARET:             "CARET",
	TILDE:             "TILDE",
	SHL_OP:            "SHL_OP",
	SHR_OP:            "SHR_OP",
	AND_LOGICAL:       "AND_LOGICAL",
	OR_LOGICAL:        "OR_LOGICAL",
	NOT:               "NOT",
	PLUS_PLUS:         "PLUS_PLUS",
	MINUS_MINUS:       "MINUS_MINUS",
	ASSIGN:            "ASSIGN",
	PLUS_ASSIGN:       "PLUS_ASSIGN",
	MINUS_ASSIGN:      "MINUS_ASSIGN",
	STAR_ASSIGN:       "STAR_ASSIGN",
	SLASH_ASSIGN:      "SLASH_ASSIGN",
	PERCENT_ASSIGN:    "PERCENT_ASSIGN",
	EQUALS:            "EQUALS",
	NOT_EQ:            "NOT_EQ",
	LESS:              "LESS",
	GREATER:           "GREATER",
	LESS_EQ:           "LESS_EQ",
	GREATER_EQ:        "GREATER_EQ",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

var keywords = map[string]TokenType{
	"int":      INT,
	"char":     CHAR,
	"unsigned": UNSIGNED,
	"void":     VOID,
	"if":       IF,
	"else":     ELSE,
	"while":    WHILE,
	"for":      FOR,
	"return":   RETURN,
	"break":    BREAK,
	"continue": CONTINUE,
	"sizeof":   SIZEOF,
}

// Pos is a 1-based source position.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string
	Pos    Pos
}

func (t Token) String() string {
	return fmt.Sprintf("%-10s %-14q  %s", t.Type, t.Lexeme, t.Pos)
}
