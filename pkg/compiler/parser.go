package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser consumes the flat token slice produced by the Lexer and builds an AST.
//
// Grammar:
//
//	program     = topDecl* EOF
//	topDecl     = PRAGMA_EXTERN_ASM | PRAGMA_LOCATION | funcDecl | varDecl
//	funcDecl    = type declName "(" params ")" (block | ";")
//	varDecl     = type declarator ("," declarator)* ";"
//	declarator  = "*"* IDENTIFIER ("=" assignment)?
//	type        = "int" | "char" | "void" | "unsigned" ("int" | "char")?
//	statement   = block | if | while | for | return | break | continue
//	            | varDecl | expression? ";"
//	expression  = assignment
//	assignment  = logical_or (assignOp assignment)?
//	logical_or  = logical_and ("||" logical_and)*
//	logical_and = bitwise_or ("&&" bitwise_or)*
//	bitwise_or  = bitwise_xor ("|" bitwise_xor)*
//	bitwise_xor = bitwise_and ("^" bitwise_and)*
//	bitwise_and = equality ("&" equality)*
//	equality    = relational (("=="|"!=") relational)*
//	relational  = shift (("<"|">"|"<="|">=") shift)*
//	shift       = additive (("<<"|">>") additive)*
//	additive    = multiplicative (("+" | "-") multiplicative)*
//	multiplicative = unary (("*" | "/" | "%") unary)*
//	unary       = "(" type "*"* ")" unary | ("&"|"*"|"~"|"!"|"-"|"++"|"--") unary
//	            | "sizeof" unary | "sizeof" "(" type "*"* ")" | postfix
//	postfix     = primary ("[" expression "]" | "(" args ")" | "++" | "--")*
//	primary     = INTEGER | UNSIGNED_LIT | CHAR_LIT | STRING | IDENTIFIER | "(" expression ")"
type Parser struct {
	tokens      []Token
	pos         int
	sourceLines []string

	// Entry is the name whose bare declaration is always a forward marker.
	Entry string

	externPending bool // #pragma extern asm seen, not yet consumed
	externFresh   bool // no declaration since the pragma
}

func NewParser(tokens []Token, rawSource string) *Parser {
	return &Parser{tokens: tokens, sourceLines: strings.Split(rawSource, "\n"), Entry: "main"}
}

// Parse builds the Program for one translation unit. The first error aborts.
func Parse(tokens []Token, rawSource string) (*Program, error) {
	return NewParser(tokens, rawSource).ParseProgram()
}

// fmtError builds a SyntaxError at tok with the source line attached.
func (p *Parser) fmtError(tok Token, format string, args ...any) error {
	d := &Diagnostic{
		Kind:  SyntaxError,
		Phase: "parse",
		Pos:   tok.Pos,
		Msg:   fmt.Sprintf(format, args...),
	}
	if idx := tok.Pos.Line - 1; idx >= 0 && idx < len(p.sourceLines) {
		d.Snippet = strings.TrimRight(p.sourceLines[idx], "\r")
	}
	if tok.Type == ILLEGAL {
		d.Phase = "lex"
		d.Msg = tok.Lexeme
	}
	return d
}

func (p *Parser) peek() Token {
	return p.peekAt(0)
}

func (p *Parser) peekAt(offset int) Token {
	if p.pos+offset >= len(p.tokens) {
		if len(p.tokens) > 0 {
			return Token{Type: EOF, Pos: p.tokens[len(p.tokens)-1].Pos}
		}
		return Token{Type: EOF}
	}
	return p.tokens[p.pos+offset]
}

func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// expect consumes the current token if it matches tt, otherwise returns an error.
func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.peek()
	if tok.Type != tt {
		return tok, p.unexpected(tok, tt.String())
	}
	return p.advance(), nil
}

func (p *Parser) unexpected(tok Token, want string) error {
	if tok.Type == ILLEGAL {
		return p.fmtError(tok, "")
	}
	if tok.Type == EOF {
		return p.fmtError(tok, "expected %s, got EOF", want)
	}
	return p.fmtError(tok, "expected %s, got %s (%q)", want, tok.Type, tok.Lexeme)
}

func isTypeStart(tt TokenType) bool {
	return tt == INT || tt == CHAR || tt == VOID || tt == UNSIGNED
}

// parseBaseType parses a type keyword sequence without pointer stars.
func (p *Parser) parseBaseType() (Type, error) {
	tok := p.advance()
	switch tok.Type {
	case INT:
		return TypeInt, nil
	case CHAR:
		return TypeChar, nil
	case VOID:
		return TypeVoid, nil
	case UNSIGNED:
		switch p.peek().Type {
		case INT:
			p.advance()
		case CHAR:
			// char is already unsigned
			p.advance()
			return TypeChar, nil
		}
		return TypeUnsigned, nil
	}
	return Type{}, p.unexpected(tok, "type")
}

func (p *Parser) parseStars(t Type) Type {
	for p.peek().Type == STAR {
		p.advance()
		t = t.PointerTo()
	}
	return t
}

// parseTypeName parses `type "*"*` as used in casts and sizeof.
func (p *Parser) parseTypeName() (Type, error) {
	t, err := p.parseBaseType()
	if err != nil {
		return Type{}, err
	}
	return p.parseStars(t), nil
}

// ParseProgram parses top-level declarations until EOF.
func (p *Parser) ParseProgram() (*Program, error) {
	for _, tok := range p.tokens {
		if tok.Type == ILLEGAL {
			return nil, p.fmtError(tok, "")
		}
	}

	prog := &Program{}
	for p.peek().Type != EOF {
		tok := p.peek()
		switch {
		case tok.Type == PRAGMA_EXTERN_ASM:
			p.advance()
			p.externPending = true
			p.externFresh = true

		case tok.Type == PRAGMA_LOCATION:
			p.advance()
			addr, err := strconv.ParseUint(tok.Lexeme, 0, 32)
			if err != nil {
				return nil, p.fmtError(tok, "invalid pragma location: %s", tok.Lexeme)
			}
			prog.Decls = append(prog.Decls, &LocationPragma{Pos: tok.Pos, Addr: uint32(addr)})

		case isTypeStart(tok.Type):
			decls, err := p.parseTopLevel()
			if err != nil {
				return nil, err
			}
			prog.Decls = append(prog.Decls, decls...)

		default:
			return nil, p.fmtError(tok, "executable statement %q found outside of function body", tok.Lexeme)
		}
	}
	return prog, nil
}

// parseTopLevel parses a function or a global variable declaration.
func (p *Parser) parseTopLevel() ([]Decl, error) {
	fresh := p.externFresh
	p.externFresh = false

	base, err := p.parseBaseType()
	if err != nil {
		return nil, err
	}

	// Function: type "*"* IDENTIFIER "("
	i := 0
	for p.peekAt(i).Type == STAR {
		i++
	}
	if p.peekAt(i).Type == IDENTIFIER && p.peekAt(i+1).Type == LPAREN {
		fn, err := p.parseFunctionDecl(p.parseStars(base))
		if err != nil {
			return nil, err
		}
		if p.externPending {
			fn.Link = LinkAsm
			p.externPending = false
		}
		return []Decl{fn}, nil
	}

	vars, err := p.parseDeclarators(base, true)
	if err != nil {
		return nil, err
	}
	decls := make([]Decl, len(vars))
	for k, v := range vars {
		if v.Init == nil && (v.Name == p.Entry || (k == 0 && fresh)) {
			v.Kind = ForwardMarker
			if k == 0 && fresh {
				p.externPending = false
			}
		}
		decls[k] = v
	}
	return decls, nil
}

// parseDeclarators parses `declarator ("," declarator)* ";"` after the base
// type.
func (p *Parser) parseDeclarators(base Type, global bool) ([]*VarDecl, error) {
	var vars []*VarDecl
	for {
		typ := p.parseStars(base)
		nameTok, err := p.expect(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		if typ.IsVoid() {
			return nil, p.fmtError(nameTok, "variable %s declared void", nameTok.Lexeme)
		}
		v := &VarDecl{Pos: nameTok.Pos, Name: nameTok.Lexeme, Type: typ, Global: global}
		if p.peek().Type == ASSIGN {
			p.advance()
			v.Init, err = p.parseAssignment()
			if err != nil {
				return nil, err
			}
		}
		vars = append(vars, v)

		if p.peek().Type != COMMA {
			break
		}
		p.advance()
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return vars, nil
}

// parseFunctionDecl parses name(params) followed by a body or ';'.
func (p *Parser) parseFunctionDecl(result Type) (*FunctionDecl, error) {
	nameTok, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}

	fn := &FunctionDecl{Pos: nameTok.Pos, Name: nameTok.Lexeme, Result: result}

	// f(void) declares no parameters.
	if p.peek().Type == VOID && p.peekAt(1).Type == RPAREN {
		p.advance()
	} else if p.peek().Type != RPAREN {
		for {
			tok := p.peek()
			if !isTypeStart(tok.Type) {
				return nil, p.unexpected(tok, "parameter type")
			}
			typ, err := p.parseTypeName()
			if err != nil {
				return nil, err
			}
			if typ.IsVoid() {
				return nil, p.fmtError(tok, "parameter declared void")
			}
			param := &VarDecl{Pos: tok.Pos, Type: typ}
			if p.peek().Type == IDENTIFIER {
				nt := p.advance()
				param.Name = nt.Lexeme
				param.Pos = nt.Pos
			}
			fn.Params = append(fn.Params, param)

			if p.peek().Type != COMMA {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}

	if p.peek().Type == SEMICOLON {
		p.advance()
		fn.Kind = Prototype
		return fn, nil
	}

	for _, param := range fn.Params {
		if param.Name == "" {
			return nil, p.fmtError(p.peek(), "parameter name omitted in definition of %s", fn.Name)
		}
	}

	lbrace, err := p.expect(LBRACE)
	if err != nil {
		return nil, err
	}
	fn.Body, err = p.parseBlock(lbrace)
	if err != nil {
		return nil, err
	}
	fn.Kind = Definition
	return fn, nil
}

// parseBlock parses { stmt1; stmt2; ... }. The LBRACE is already consumed.
func (p *Parser) parseBlock(lbrace Token) (*BlockStmt, error) {
	block := &BlockStmt{Pos: lbrace.Pos}
	for p.peek().Type != RBRACE && p.peek().Type != EOF {
		if isTypeStart(p.peek().Type) {
			vars, err := p.parseLocalDecl()
			if err != nil {
				return nil, err
			}
			for _, v := range vars {
				block.Stmts = append(block.Stmts, v)
			}
			continue
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
	}
	if _, err := p.expect(RBRACE); err != nil {
		return nil, err
	}
	return block, nil
}

func (p *Parser) parseLocalDecl() ([]*VarDecl, error) {
	base, err := p.parseBaseType()
	if err != nil {
		return nil, err
	}
	return p.parseDeclarators(base, false)
}

// parseStatement dispatches on the leading token. It returns nil for an
// empty statement.
func (p *Parser) parseStatement() (Stmt, error) {
	tok := p.peek()
	switch tok.Type {
	case LBRACE:
		p.advance()
		return p.parseBlock(tok)

	case IF:
		p.advance()
		return p.parseIf(tok)

	case WHILE:
		p.advance()
		return p.parseWhile(tok)

	case FOR:
		p.advance()
		return p.parseFor(tok)

	case RETURN:
		p.advance()
		ret := &ReturnStmt{Pos: tok.Pos}
		if p.peek().Type != SEMICOLON {
			val, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			ret.Value = val
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return ret, nil

	case BREAK:
		p.advance()
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return &BreakStmt{Pos: tok.Pos}, nil

	case CONTINUE:
		p.advance()
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return &ContinueStmt{Pos: tok.Pos}, nil

	case SEMICOLON:
		p.advance()
		return nil, nil

	case INT, CHAR, UNSIGNED, VOID:
		// A declaration where only a statement may stand, e.g. `if (x) int y;`.
		return nil, p.fmtError(tok, "declaration is not allowed here")

	case PRAGMA_EXTERN_ASM, PRAGMA_LOCATION:
		return nil, p.fmtError(tok, "pragma is only allowed at file scope")

	case EOF:
		return nil, p.unexpected(tok, "statement")
	}

	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &ExprStmt{Pos: tok.Pos, X: expr}, nil
}

// parseCond parses ( expression ).
func (p *Parser) parseCond() (Expr, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return cond, nil
}

// parseBody parses a statement used as the body of a control construct.
// An empty statement becomes an empty block.
func (p *Parser) parseBody() (Stmt, error) {
	tok := p.peek()
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if stmt == nil {
		return &BlockStmt{Pos: tok.Pos}, nil
	}
	return stmt, nil
}

func (p *Parser) parseIf(tok Token) (Stmt, error) {
	cond, err := p.parseCond()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBody()
	if err != nil {
		return nil, err
	}

	s := &IfStmt{Pos: tok.Pos, Cond: cond, Then: then}
	if p.peek().Type == ELSE {
		p.advance()
		s.Else, err = p.parseBody()
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (p *Parser) parseWhile(tok Token) (Stmt, error) {
	cond, err := p.parseCond()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Pos: tok.Pos, Cond: cond, Body: body}, nil
}

// parseFor parses for (init; cond; post) body. init may declare one variable.
func (p *Parser) parseFor(tok Token) (Stmt, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	s := &ForStmt{Pos: tok.Pos}

	switch {
	case p.peek().Type == SEMICOLON:
		p.advance()
	case isTypeStart(p.peek().Type):
		declTok := p.peek()
		vars, err := p.parseLocalDecl()
		if err != nil {
			return nil, err
		}
		if len(vars) != 1 {
			return nil, p.fmtError(declTok, "only one declaration allowed in for initializer")
		}
		s.Init = vars[0]
	default:
		initTok := p.peek()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		s.Init = &ExprStmt{Pos: initTok.Pos, X: expr}
	}

	if p.peek().Type != SEMICOLON {
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		s.Cond = cond
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}

	if p.peek().Type != RPAREN {
		post, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		s.Post = post
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}

	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	s.Body = body
	return s, nil
}

// parseExpression is the entry point for expression parsing.
func (p *Parser) parseExpression() (Expr, error) {
	return p.parseAssignment()
}

func isAssignOp(tt TokenType) bool {
	switch tt {
	case ASSIGN, PLUS_ASSIGN, MINUS_ASSIGN, STAR_ASSIGN, SLASH_ASSIGN, PERCENT_ASSIGN:
		return true
	}
	return false
}

// parseAssignment is right associative: a = b = c is a = (b = c).
func (p *Parser) parseAssignment() (Expr, error) {
	left, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	if !isAssignOp(p.peek().Type) {
		return left, nil
	}
	opTok := p.advance()
	right, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	return &AssignExpr{Pos: opTok.Pos, Op: opTok.Type, Target: left, Value: right}, nil
}

// binaryLevel parses one left-associative precedence level.
func (p *Parser) binaryLevel(next func() (Expr, error), logical bool, ops ...TokenType) (Expr, error) {
	expr, err := next()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		matched := false
		for _, op := range ops {
			if tok.Type == op {
				matched = true
				break
			}
		}
		if !matched {
			return expr, nil
		}
		p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		if logical {
			expr = &LogicalExpr{Pos: tok.Pos, Op: tok.Type, Left: expr, Right: right}
		} else {
			expr = &BinaryExpr{Pos: tok.Pos, Op: tok.Type, Left: expr, Right: right}
		}
	}
}

// parseLogicalOr handles ||
func (p *Parser) parseLogicalOr() (Expr, error) {
	return p.binaryLevel(p.parseLogicalAnd, true, OR_LOGICAL)
}

// parseLogicalAnd handles &&
func (p *Parser) parseLogicalAnd() (Expr, error) {
	return p.binaryLevel(p.parseBitwiseOr, true, AND_LOGICAL)
}

func (p *Parser) parseBitwiseOr() (Expr, error) {
	return p.binaryLevel(p.parseBitwiseXor, false, PIPE)
}

func (p *Parser) parseBitwiseXor() (Expr, error) {
	return p.binaryLevel(p.parseBitwiseAnd, false, CARET)
}

// parseBitwiseAnd handles binary &; unary & is handled in parseUnary.
func (p *Parser) parseBitwiseAnd() (Expr, error) {
	return p.binaryLevel(p.parseEquality, false, AND)
}

func (p *Parser) parseEquality() (Expr, error) {
	return p.binaryLevel(p.parseRelational, false, EQUALS, NOT_EQ)
}

func (p *Parser) parseRelational() (Expr, error) {
	return p.binaryLevel(p.parseShift, false, LESS, GREATER, LESS_EQ, GREATER_EQ)
}

func (p *Parser) parseShift() (Expr, error) {
	return p.binaryLevel(p.parseAdditive, false, SHL_OP, SHR_OP)
}

func (p *Parser) parseAdditive() (Expr, error) {
	return p.binaryLevel(p.parseMultiplicative, false, PLUS, MINUS)
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	return p.binaryLevel(p.parseUnary, false, STAR, SLASH, PERCENT)
}

// isCast reports whether the tokens at the cursor start a cast "(type".
func (p *Parser) isCast() bool {
	return p.peek().Type == LPAREN && isTypeStart(p.peekAt(1).Type)
}

// parseUnary handles casts and the prefix operators.
func (p *Parser) parseUnary() (Expr, error) {
	tok := p.peek()

	if p.isCast() {
		p.advance()
		to, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &CastExpr{Pos: tok.Pos, To: to, Operand: operand}, nil
	}

	switch tok.Type {
	case AND, STAR, TILDE, NOT, MINUS, PLUS_PLUS, MINUS_MINUS:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case AND:
			return &AddrOfExpr{Pos: tok.Pos, Operand: operand}, nil
		case STAR:
			return &DerefExpr{Pos: tok.Pos, Operand: operand}, nil
		case PLUS_PLUS, MINUS_MINUS:
			return &IncDecExpr{Pos: tok.Pos, Op: tok.Type, Prefix: true, Target: operand}, nil
		}
		return &UnaryExpr{Pos: tok.Pos, Op: tok.Type, Operand: operand}, nil

	case SIZEOF:
		p.advance()
		if p.isCast() {
			p.advance()
			of, err := p.parseTypeName()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RPAREN); err != nil {
				return nil, err
			}
			return &SizeofExpr{Pos: tok.Pos, Of: of}, nil
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &SizeofExpr{Pos: tok.Pos, Operand: operand}, nil
	}
	return p.parsePostfix()
}

// parsePostfix handles indexing, calls and postfix ++/--.
func (p *Parser) parsePostfix() (Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		switch tok.Type {
		case LBRACKET:
			p.advance()
			index, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RBRACKET); err != nil {
				return nil, err
			}
			expr = &IndexExpr{Pos: tok.Pos, Base: expr, Index: index}

		case LPAREN:
			callee, ok := expr.(*Ident)
			if !ok {
				return nil, p.fmtError(tok, "expected function name before '('")
			}
			p.advance()
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			expr = &CallExpr{Pos: callee.Pos, Callee: callee, Args: args}

		case PLUS_PLUS, MINUS_MINUS:
			p.advance()
			expr = &IncDecExpr{Pos: tok.Pos, Op: tok.Type, Target: expr}

		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseCallArgs() ([]Expr, error) {
	var args []Expr
	if p.peek().Type != RPAREN {
		for {
			arg, err := p.parseAssignment()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)

			if p.peek().Type != COMMA {
				break
			}
			p.advance()
		}
	}

	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return args, nil
}

// parsePrimary handles literals, identifiers, and parenthesised expressions.
func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case INTEGER, UNSIGNED_LIT:
		p.advance()
		val, err := strconv.ParseUint(tok.Lexeme, 0, 64)
		if err != nil {
			return nil, p.fmtError(tok, "malformed integer %q", tok.Lexeme)
		}
		lit := &Literal{Pos: tok.Pos, Value: val}
		lower := strings.ToLower(tok.Lexeme)
		lit.IsUnsigned = tok.Type == UNSIGNED_LIT || strings.HasPrefix(lower, "0x") || val > 0x7FFFFFFF
		return lit, nil

	case CHAR_LIT:
		p.advance()
		val, err := strconv.ParseUint(tok.Lexeme, 10, 8)
		if err != nil {
			return nil, p.fmtError(tok, "malformed character literal %q", tok.Lexeme)
		}
		return &Literal{Pos: tok.Pos, Value: val, IsChar: true}, nil

	case STRING:
		p.advance()
		return &StringLiteral{Pos: tok.Pos, Value: tok.Lexeme}, nil

	case IDENTIFIER:
		p.advance()
		return &Ident{Pos: tok.Pos, Name: tok.Lexeme}, nil

	case LPAREN:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return expr, nil
	}
	return nil, p.unexpected(tok, "expression")
}
