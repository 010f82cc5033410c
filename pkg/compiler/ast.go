package compiler

import (
	"fmt"
	"strings"
)

// Node is implemented by every AST node.
type Node interface {
	Position() Pos
	String() string
}

//  Expression nodes

// Expr is implemented by every node that produces a value.
// genExpr always leaves the result in R0.
type Expr interface {
	Node
	exprNode()
}

// Literal is a compile-time integer constant.
//
//	int x = 10;
//	         ^^  Literal{Value: 10}
//	int x = 10u;
//	         ^^^  Literal{Value: 10, IsUnsigned: true}
type Literal struct {
	Pos        Pos
	Value      uint64 // may exceed 32 bits; codegen rejects that
	IsUnsigned bool // u/U suffix or a hex literal
	IsChar     bool // 'c'
}

// StringLiteral is a string constant "..."; it lives in the data pool.
type StringLiteral struct {
	Pos   Pos
	Value string
}

// Ident is a use of a named variable or function.
//
//	return x;
//	       ^  Ident{Name: "x"}
type Ident struct {
	Pos  Pos
	Name string
}

// BinaryExpr represents a binary operation: Left Op Right.
type BinaryExpr struct {
	Pos   Pos
	Op    TokenType
	Left  Expr
	Right Expr
}

// LogicalExpr is Left && Right or Left || Right. It is separate from
// BinaryExpr because it short-circuits.
type LogicalExpr struct {
	Pos   Pos
	Op    TokenType
	Left  Expr
	Right Expr
}

// UnaryExpr is -x, !x or ~x.
type UnaryExpr struct {
	Pos     Pos
	Op      TokenType
	Operand Expr
}

// DerefExpr is *Operand.
type DerefExpr struct {
	Pos     Pos
	Operand Expr
}

// AddrOfExpr is &Operand.
type AddrOfExpr struct {
	Pos     Pos
	Operand Expr
}

// CastExpr is (To) Operand.
type CastExpr struct {
	Pos     Pos
	To      Type
	Operand Expr
}

// IndexExpr is Base[Index], which means *(Base + Index).
type IndexExpr struct {
	Pos   Pos
	Base  Expr
	Index Expr
}

// CallExpr is Callee(Args...).
type CallExpr struct {
	Pos    Pos
	Callee *Ident
	Args   []Expr
}

// AssignExpr is Target Op Value where Op is one of = += -= *= /= %=.
type AssignExpr struct {
	Pos    Pos
	Op     TokenType
	Target Expr
	Value  Expr
}

// IncDecExpr is ++x, --x, x++ or x--.
type IncDecExpr struct {
	Pos    Pos
	Op     TokenType // PLUS_PLUS or MINUS_MINUS
	Prefix bool
	Target Expr
}

// SizeofExpr is sizeof(type) or sizeof expr.
type SizeofExpr struct {
	Pos     Pos
	Of      Type
	Operand Expr // nil for sizeof(type)
}

func (*Literal) exprNode()       {}
func (*StringLiteral) exprNode() {}
func (*Ident) exprNode()         {}
func (*BinaryExpr) exprNode()    {}
func (*LogicalExpr) exprNode()   {}
func (*UnaryExpr) exprNode()     {}
func (*DerefExpr) exprNode()     {}
func (*AddrOfExpr) exprNode()    {}
func (*CastExpr) exprNode()      {}
func (*IndexExpr) exprNode()     {}
func (*CallExpr) exprNode()      {}
func (*AssignExpr) exprNode()    {}
func (*IncDecExpr) exprNode()    {}
func (*SizeofExpr) exprNode()    {}

func (e *Literal) Position() Pos       { return e.Pos }
func (e *StringLiteral) Position() Pos { return e.Pos }
func (e *Ident) Position() Pos         { return e.Pos }
func (e *BinaryExpr) Position() Pos    { return e.Pos }
func (e *LogicalExpr) Position() Pos   { return e.Pos }
func (e *UnaryExpr) Position() Pos     { return e.Pos }
func (e *DerefExpr) Position() Pos     { return e.Pos }
func (e *AddrOfExpr) Position() Pos    { return e.Pos }
func (e *CastExpr) Position() Pos      { return e.Pos }
func (e *IndexExpr) Position() Pos     { return e.Pos }
func (e *CallExpr) Position() Pos      { return e.Pos }
func (e *AssignExpr) Position() Pos    { return e.Pos }
func (e *IncDecExpr) Position() Pos    { return e.Pos }
func (e *SizeofExpr) Position() Pos    { return e.Pos }

func (e *Literal) String() string {
	if e.IsUnsigned {
		return fmt.Sprintf("%du", e.Value)
	}
	return fmt.Sprintf("%d", int32(e.Value))
}
func (e *StringLiteral) String() string { return fmt.Sprintf("%q", e.Value) }
func (e *Ident) String() string         { return e.Name }
func (e *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
}
func (e *LogicalExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
}
func (e *UnaryExpr) String() string  { return fmt.Sprintf("(%s %s)", e.Op, e.Operand) }
func (e *DerefExpr) String() string  { return fmt.Sprintf("(* %s)", e.Operand) }
func (e *AddrOfExpr) String() string { return fmt.Sprintf("(& %s)", e.Operand) }
func (e *CastExpr) String() string   { return fmt.Sprintf("Cast(%s, %s)", e.To, e.Operand) }
func (e *IndexExpr) String() string  { return fmt.Sprintf("(%s[%s])", e.Base, e.Index) }
func (e *CallExpr) String() string {
	return fmt.Sprintf("Call(%s, args=%v)", e.Callee.Name, e.Args)
}
func (e *AssignExpr) String() string {
	return fmt.Sprintf("Assign(%s %s %s)", e.Target, e.Op, e.Value)
}
func (e *IncDecExpr) String() string {
	if e.Prefix {
		return fmt.Sprintf("(%s %s)", e.Op, e.Target)
	}
	return fmt.Sprintf("(%s %s)", e.Target, e.Op)
}
func (e *SizeofExpr) String() string {
	if e.Operand != nil {
		return fmt.Sprintf("Sizeof(%s)", e.Operand)
	}
	return fmt.Sprintf("Sizeof(%s)", e.Of)
}

//  Statement nodes

// Stmt is implemented by every node that does not produce a value.
type Stmt interface {
	Node
	stmtNode()
}

// BlockStmt represents { statement; ... }
type BlockStmt struct {
	Pos   Pos
	Stmts []Stmt
}

// IfStmt represents if (Cond) Then [else Else]
type IfStmt struct {
	Pos  Pos
	Cond Expr
	Then Stmt
	Else Stmt // may be nil
}

// WhileStmt represents while (Cond) Body
type WhileStmt struct {
	Pos  Pos
	Cond Expr
	Body Stmt
}

// ForStmt represents for (Init; Cond; Post) Body. Any part may be nil.
type ForStmt struct {
	Pos  Pos
	Init Stmt
	Cond Expr
	Post Expr
	Body Stmt
}

// ReturnStmt represents return [Value];
type ReturnStmt struct {
	Pos   Pos
	Value Expr // nil for a bare return
}

// ExprStmt is an expression evaluated for its side effects.
type ExprStmt struct {
	Pos Pos
	X   Expr
}

type BreakStmt struct{ Pos Pos }
type ContinueStmt struct{ Pos Pos }

func (*BlockStmt) stmtNode()    {}
func (*IfStmt) stmtNode()       {}
func (*WhileStmt) stmtNode()    {}
func (*ForStmt) stmtNode()      {}
func (*ReturnStmt) stmtNode()   {}
func (*ExprStmt) stmtNode()     {}
func (*BreakStmt) stmtNode()    {}
func (*ContinueStmt) stmtNode() {}
func (*VarDecl) stmtNode()      {}

func (s *BlockStmt) Position() Pos    { return s.Pos }
func (s *IfStmt) Position() Pos       { return s.Pos }
func (s *WhileStmt) Position() Pos    { return s.Pos }
func (s *ForStmt) Position() Pos      { return s.Pos }
func (s *ReturnStmt) Position() Pos   { return s.Pos }
func (s *ExprStmt) Position() Pos     { return s.Pos }
func (s *BreakStmt) Position() Pos    { return s.Pos }
func (s *ContinueStmt) Position() Pos { return s.Pos }

func (s *BlockStmt) String() string { return fmt.Sprintf("BlockStmt(len=%d)", len(s.Stmts)) }
func (s *IfStmt) String() string {
	if s.Else != nil {
		return fmt.Sprintf("IfStmt(if %s then %s else %s)", s.Cond, s.Then, s.Else)
	}
	return fmt.Sprintf("IfStmt(if %s then %s)", s.Cond, s.Then)
}
func (s *WhileStmt) String() string {
	return fmt.Sprintf("WhileStmt(while %s do %s)", s.Cond, s.Body)
}
func (s *ForStmt) String() string {
	return fmt.Sprintf("ForStmt(init=%v, cond=%v, post=%v, body=%s)", s.Init, s.Cond, s.Post, s.Body)
}
func (s *ReturnStmt) String() string   { return fmt.Sprintf("ReturnStmt(%v)", s.Value) }
func (s *ExprStmt) String() string     { return fmt.Sprintf("ExprStmt(%s)", s.X) }
func (s *BreakStmt) String() string    { return "BreakStmt" }
func (s *ContinueStmt) String() string { return "ContinueStmt" }

//  Declarations

// DeclKind tells a real definition apart from the two body-less forms.
type DeclKind int

const (
	// Definition allocates storage or carries a body.
	Definition DeclKind = iota
	// ForwardMarker is a bare `int main;` naming a symbol supplied elsewhere.
	ForwardMarker
	// Prototype is `int f(int);`.
	Prototype
)

func (k DeclKind) String() string {
	switch k {
	case Definition:
		return "definition"
	case ForwardMarker:
		return "marker"
	case Prototype:
		return "prototype"
	}
	return fmt.Sprintf("DeclKind(%d)", int(k))
}

// Linkage says who provides or consumes a function's code.
type Linkage int

const (
	LinkC   Linkage = iota
	LinkAsm         // declared after #pragma extern asm
)

func (l Linkage) String() string {
	if l == LinkAsm {
		return "asm"
	}
	return "C"
}

// Decl is a top-level declaration.
type Decl interface {
	Node
	declNode()
}

// VarDecl is a variable, a parameter or a forward marker. One declarator
// per VarDecl: `int a, b;` yields two.
type VarDecl struct {
	Pos    Pos
	Name   string
	Type   Type
	Init   Expr // may be nil
	Kind   DeclKind
	Global bool
}

// FunctionDecl represents a function definition or prototype.
type FunctionDecl struct {
	Pos    Pos
	Name   string
	Result Type
	Params []*VarDecl
	Body   *BlockStmt // nil for a prototype
	Kind   DeclKind
	Link   Linkage
}

// LocationPragma is `#pragma location Addr`. It places the global
// definitions after it at consecutive addresses.
type LocationPragma struct {
	Pos  Pos
	Addr uint32
}

func (*VarDecl) declNode()        {}
func (*FunctionDecl) declNode()   {}
func (*LocationPragma) declNode() {}

func (d *VarDecl) Position() Pos        { return d.Pos }
func (d *FunctionDecl) Position() Pos   { return d.Pos }
func (d *LocationPragma) Position() Pos { return d.Pos }

func (d *VarDecl) String() string {
	if d.Kind == ForwardMarker {
		return fmt.Sprintf("VarDecl(%s %s, marker)", d.Type, d.Name)
	}
	if d.Init == nil {
		return fmt.Sprintf("VarDecl(%s %s)", d.Type, d.Name)
	}
	return fmt.Sprintf("VarDecl(%s %s = %s)", d.Type, d.Name, d.Init)
}

func (d *FunctionDecl) String() string {
	params := make([]string, len(d.Params))
	for i, p := range d.Params {
		params[i] = p.Type.String() + " " + p.Name
	}
	return fmt.Sprintf("FunctionDecl(%s %s(%s), %s, link=%s)", d.Result, d.Name, strings.Join(params, ", "), d.Kind, d.Link)
}

func (d *LocationPragma) String() string {
	return fmt.Sprintf("LocationPragma(0x%04X)", d.Addr)
}

// Program is one translation unit.
type Program struct {
	Decls []Decl
}

// Signature returns the declared type of fn.
func (fn *FunctionDecl) Signature() *Signature {
	sig := &Signature{Result: fn.Result, Params: make([]Type, len(fn.Params))}
	for i, p := range fn.Params {
		sig.Params[i] = p.Type
	}
	return sig
}
