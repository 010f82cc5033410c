package compiler

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// WordSize is the size of int, unsigned and every pointer.
const WordSize = 4

// argRegs carry the first four call arguments.
var argRegs = []string{"R4", "R5", "R6", "R7"}

// GenOptions control code generation for one unit.
type GenOptions struct {
	// Prefix is prepended to every internal label so several units can be
	// linked into one program. Defaults to "__u0_".
	Prefix string
	// Entry is the program entry point; defaults to "main".
	Entry string
}

// Object is one compiled translation unit.
type Object struct {
	Name   string
	Source string // preprocessed source, for diagnostics

	Text string // function bodies
	Init string // runtime initializers, run by the startup stub before main
	Data string // globals and string literals at their planned addresses

	Plan    *Plan
	Symbols *SymbolTable
	Calls   CallGraph

	Defined  []string // functions with a body here
	Exported []string // asm-linkage definitions, exported with .GLOBAL
	Globals  []string // global variables with storage here
	Externs  []string // referenced functions without a body here
	HasEntry bool     // defines or marks the entry point
}

// CodeGen walks an AST and emits VM32 assembly source text.
type CodeGen struct {
	info   *Info
	plan   *Plan
	prefix string

	out       strings.Builder
	nextLabel int
	loopStack []LoopLabel

	currentFunction *FunctionDecl
	retLabel        string
}

type LoopLabel struct {
	Start string
	End   string
	Post  string // where 'continue' jumps to
}

func newCodeGen(info *Info, plan *Plan, prefix string) *CodeGen {
	return &CodeGen{info: info, plan: plan, prefix: prefix}
}

func (cg *CodeGen) newLabel() string {
	l := fmt.Sprintf("%sL%d", cg.prefix, cg.nextLabel)
	cg.nextLabel++
	return l
}

func (cg *CodeGen) stringLabel(i int) string {
	return fmt.Sprintf("%sS%d", cg.prefix, i)
}

func (cg *CodeGen) line(format string, args ...any) {
	fmt.Fprintf(&cg.out, format+"\n", args...)
}

func (cg *CodeGen) comment(format string, args ...any) {
	cg.line("    ; "+format, args...)
}

// take returns the text emitted so far and resets the buffer.
func (cg *CodeGen) take() string {
	s := cg.out.String()
	cg.out.Reset()
	return s
}

func (cg *CodeGen) errorf(pos Pos, format string, args ...any) error {
	return &Diagnostic{Kind: CodegenError, Phase: "codegen", Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (cg *CodeGen) typeOf(e Expr) Type {
	return cg.info.Types[e]
}

func loadOp(t Type) string {
	if t.Size() == 1 {
		return "LDB"
	}
	return "LD "
}

func storeOp(t Type) string {
	if t.Size() == 1 {
		return "STB"
	}
	return "ST "
}

// truncate narrows R0 to the width of t.
func (cg *CodeGen) truncate(t Type) {
	if t == TypeChar {
		cg.line("    LDI R3, 0xFF")
		cg.line("    AND R0, R3")
	}
}

// scale multiplies the register by the element size of pointer type t.
func (cg *CodeGen) scale(reg string, t Type) {
	if size := t.Elem().Size(); size == WordSize {
		cg.line("    LDI R3, 2")
		cg.line("    SHL %s, R3", reg)
	}
}

// testZero sets Z from R0.
func (cg *CodeGen) testZero() {
	cg.line("    LDI R1, 0")
	cg.line("    SUB R0, R1")
}

// genAddress computes the address of an lvalue and puts it in R1.
func (cg *CodeGen) genAddress(e Expr) error {
	switch n := e.(type) {
	case *Ident:
		sym, ok := cg.info.Uses[n]
		if !ok {
			return cg.errorf(n.Pos, "unresolved identifier %s", n.Name)
		}
		if sym.Storage == StorageGlobal {
			cg.line("    LDI R1, %s", sym.Name)
		} else {
			// Local: Address is FP + offset.
			cg.line("    MOV R1, R2")
			cg.line("    LDI R3, %d", sym.Offset)
			cg.line("    ADD R1, R3        ; &%s", n.Name)
		}
		return nil

	case *DerefExpr:
		if err := cg.genExpr(n.Operand); err != nil {
			return err
		}
		cg.line("    MOV R1, R0")
		return nil

	case *IndexExpr:
		if err := cg.genExpr(n.Base); err != nil {
			return err
		}
		cg.line("    PUSH R0")
		if err := cg.genExpr(n.Index); err != nil {
			return err
		}
		cg.scale("R0", cg.typeOf(n.Base))
		cg.line("    POP R1")
		cg.line("    ADD R1, R0")
		return nil
	}
	return cg.errorf(e.Position(), "expression %s is not addressable", e)
}

// genExpr evaluates e into R0. R1 and R3 are scratch; R2 is the frame
// pointer and is preserved.
func (cg *CodeGen) genExpr(e Expr) error {
	switch n := e.(type) {
	case *Literal:
		if n.Value > math.MaxUint32 {
			return cg.errorf(n.Pos, "literal %d is not representable in 32 bits", n.Value)
		}
		cg.line("    LDI R0, %d", uint32(n.Value))

	case *StringLiteral:
		for i, s := range cg.info.Strings {
			if s == n {
				cg.line("    LDI R0, %s", cg.stringLabel(i))
				return nil
			}
		}
		return cg.errorf(n.Pos, "string literal %s was not planned", n)

	case *SizeofExpr:
		size := n.Of.Size()
		if n.Operand != nil {
			size = cg.typeOf(n.Operand).Size()
		}
		cg.line("    LDI R0, %d", size)

	case *Ident, *IndexExpr:
		if err := cg.genAddress(e); err != nil {
			return err
		}
		cg.line("    %s R0, [R1]", loadOp(cg.typeOf(e)))

	case *DerefExpr:
		if err := cg.genExpr(n.Operand); err != nil {
			return err
		}
		// R0 has address.
		cg.line("    MOV R1, R0")
		cg.line("    %s R0, [R1]", loadOp(cg.typeOf(e)))

	case *AddrOfExpr:
		if err := cg.genAddress(n.Operand); err != nil {
			return err
		}
		cg.line("    MOV R0, R1")

	case *CastExpr:
		if err := cg.genExpr(n.Operand); err != nil {
			return err
		}
		// int, unsigned and pointers share one representation.
		cg.truncate(n.To)

	case *UnaryExpr:
		return cg.genUnary(n)

	case *LogicalExpr:
		return cg.genLogical(n)

	case *BinaryExpr:
		return cg.genBinary(n)

	case *CallExpr:
		return cg.genCall(n)

	case *AssignExpr:
		return cg.genAssign(n)

	case *IncDecExpr:
		return cg.genIncDec(n)

	default:
		return cg.errorf(e.Position(), "unknown expression node %T", e)
	}
	return nil
}

func (cg *CodeGen) genUnary(n *UnaryExpr) error {
	if err := cg.genExpr(n.Operand); err != nil {
		return err
	}
	switch n.Op {
	case TILDE:
		cg.line("    NOT R0")
	case MINUS:
		cg.line("    LDI R1, 0")
		cg.line("    SUB R1, R0")
		cg.line("    MOV R0, R1")
	case NOT:
		// If R0 == 0 -> 1, else -> 0
		labelTrue := cg.newLabel()
		labelEnd := cg.newLabel()
		cg.testZero()
		cg.line("    JZ  %s", labelTrue)
		cg.line("    LDI R0, 0")
		cg.line("    JMP %s", labelEnd)
		cg.line("%s:", labelTrue)
		cg.line("    LDI R0, 1")
		cg.line("%s:", labelEnd)
	default:
		return cg.errorf(n.Pos, "unknown unary operator %s", n.Op)
	}
	return nil
}

func (cg *CodeGen) genLogical(n *LogicalExpr) error {
	endLabel := cg.newLabel()
	if n.Op == AND_LOGICAL {
		if err := cg.genExpr(n.Left); err != nil {
			return err
		}
		cg.testZero()
		cg.line("    JZ  %s", endLabel) // Short-circuit: return 0

		if err := cg.genExpr(n.Right); err != nil {
			return err
		}
		cg.testZero()
		cg.line("    JZ  %s", endLabel)

		// If we are here, both were non-zero. Return 1.
		cg.line("    LDI R0, 1")
		cg.line("%s:", endLabel)
		return nil
	}

	trueLabel := cg.newLabel()
	if err := cg.genExpr(n.Left); err != nil {
		return err
	}
	cg.testZero()
	cg.line("    JNZ %s", trueLabel) // Short-circuit: return 1

	if err := cg.genExpr(n.Right); err != nil {
		return err
	}
	cg.testZero()
	cg.line("    JNZ %s", trueLabel)

	// Both 0. R0 is 0.
	cg.line("    JMP %s", endLabel)
	cg.line("%s:", trueLabel)
	cg.line("    LDI R0, 1")
	cg.line("%s:", endLabel)
	return nil
}

// compare emits a flag test: SUB a, b then branch on cond to set R0.
func (cg *CodeGen) compare(a, b, jump string) {
	label := cg.newLabel()
	cg.line("    SUB %s, %s", a, b)
	cg.line("    LDI R0, 1")
	cg.line("    %-3s %s", jump, label)
	cg.line("    LDI R0, 0")
	cg.line("%s:", label)
}

func (cg *CodeGen) genBinary(n *BinaryExpr) error {
	if err := cg.genExpr(n.Left); err != nil {
		return err
	}
	cg.line("    PUSH R0")
	if err := cg.genExpr(n.Right); err != nil {
		return err
	}
	cg.line("    POP R1")
	// R1 = left, R0 = right.

	lt, rt := cg.typeOf(n.Left), cg.typeOf(n.Right)
	unsigned := cg.info.Unsigned[n]
	pick := func(signed, unsignedOp string) string {
		if unsigned {
			return unsignedOp
		}
		return signed
	}

	switch n.Op {
	case PLUS:
		if lt.IsPointer() {
			cg.scale("R0", lt)
		} else if rt.IsPointer() {
			cg.scale("R1", rt)
		}
		cg.line("    ADD R1, R0")
		cg.line("    MOV R0, R1")
	case MINUS:
		if lt.IsPointer() && !rt.IsPointer() {
			cg.scale("R0", lt)
		}
		cg.line("    SUB R1, R0")
		cg.line("    MOV R0, R1")
		if lt.IsPointer() && rt.IsPointer() && lt.Elem().Size() == WordSize {
			cg.line("    LDI R3, 2")
			cg.line("    SAR R0, R3")
		}
	case STAR:
		cg.line("    MUL R1, R0")
		cg.line("    MOV R0, R1")
	case SLASH:
		cg.line("    %s R1, R0", pick("IDIV", "DIV"))
		cg.line("    MOV R0, R1")
	case PERCENT:
		cg.line("    %s R1, R0", pick("IMOD", "MOD"))
		cg.line("    MOV R0, R1")
	case AND:
		cg.line("    AND R1, R0")
		cg.line("    MOV R0, R1")
	case PIPE:
		cg.line("    OR  R1, R0")
		cg.line("    MOV R0, R1")
	case CARET:
		cg.line("    XOR R1, R0")
		cg.line("    MOV R0, R1")
	case SHL_OP:
		cg.line("    SHL R1, R0")
		cg.line("    MOV R0, R1")
	case SHR_OP:
		cg.line("    %s R1, R0", pick("SAR", "SHR"))
		cg.line("    MOV R0, R1")

	// Comparisons: SUB sets flags, JC is the unsigned borrow and JLT the
	// signed N != V test.
	case EQUALS:
		cg.compare("R1", "R0", "JZ")
	case NOT_EQ:
		cg.compare("R1", "R0", "JNZ")
	case LESS:
		cg.compare("R1", "R0", pick("JLT", "JC"))
	case GREATER_EQ:
		cg.compare("R1", "R0", pick("JGE", "JNC"))
	case GREATER:
		cg.compare("R0", "R1", pick("JLT", "JC"))
	case LESS_EQ:
		cg.compare("R0", "R1", pick("JGE", "JNC"))
	default:
		return cg.errorf(n.Pos, "unknown binary operator %s", n.Op)
	}
	return nil
}

func (cg *CodeGen) genCall(n *CallExpr) error {
	for i := len(n.Args) - 1; i >= 0; i-- {
		if err := cg.genExpr(n.Args[i]); err != nil {
			return err
		}
		cg.line("    PUSH R0")
	}

	// Pop up to 4 args into registers
	numRegArgs := min(len(n.Args), len(argRegs))
	for i := 0; i < numRegArgs; i++ {
		cg.line("    POP %s", argRegs[i])
	}

	cg.line("    CALL %s", n.Callee.Name)

	if len(n.Args) > len(argRegs) {
		cg.line("    LDI R1, %d", (len(n.Args)-len(argRegs))*WordSize)
		cg.line("    LDSP R3")
		cg.line("    ADD R3, R1")
		cg.line("    STSP R3")
	}
	return nil
}

func (cg *CodeGen) genAssign(n *AssignExpr) error {
	tt := cg.typeOf(n.Target)
	if err := cg.genAddress(n.Target); err != nil {
		return err
	}
	cg.line("    PUSH R1")
	if n.Op != ASSIGN {
		cg.line("    %s R0, [R1]", loadOp(tt))
		cg.line("    PUSH R0")
	}

	if err := cg.genExpr(n.Value); err != nil {
		return err
	}

	if n.Op != ASSIGN {
		cg.line("    POP R1")
		// R1 = current value, R0 = operand.
		unsigned := cg.info.Unsigned[n]
		switch n.Op {
		case PLUS_ASSIGN:
			if tt.IsPointer() {
				cg.scale("R0", tt)
			}
			cg.line("    ADD R1, R0")
		case MINUS_ASSIGN:
			if tt.IsPointer() {
				cg.scale("R0", tt)
			}
			cg.line("    SUB R1, R0")
		case STAR_ASSIGN:
			cg.line("    MUL R1, R0")
		case SLASH_ASSIGN:
			if unsigned {
				cg.line("    DIV R1, R0")
			} else {
				cg.line("    IDIV R1, R0")
			}
		case PERCENT_ASSIGN:
			if unsigned {
				cg.line("    MOD R1, R0")
			} else {
				cg.line("    IMOD R1, R0")
			}
		default:
			return cg.errorf(n.Pos, "unknown assignment operator %s", n.Op)
		}
		cg.line("    MOV R0, R1")
	}

	cg.truncate(tt)
	cg.line("    POP R1")
	cg.line("    %s [R1], R0", storeOp(tt))
	return nil
}

func (cg *CodeGen) genIncDec(n *IncDecExpr) error {
	t := cg.typeOf(n.Target)
	step := uint32(1)
	if t.IsPointer() {
		step = t.Elem().Size()
	}
	op := "ADD"
	if n.Op == MINUS_MINUS {
		op = "SUB"
	}

	if err := cg.genAddress(n.Target); err != nil {
		return err
	}
	cg.line("    %s R0, [R1]", loadOp(t))
	cg.line("    PUSH R0") // Save original value
	cg.line("    LDI R3, %d", step)
	cg.line("    %s R0, R3", op)
	cg.truncate(t)
	cg.line("    %s [R1], R0", storeOp(t))
	if n.Prefix {
		cg.line("    POP R3")
	} else {
		cg.line("    POP R0")
	}
	return nil
}

// storeLocal writes R0 into the frame slot of sym.
func (cg *CodeGen) storeLocal(sym *Symbol, src string) {
	cg.line("    MOV R1, R2")
	cg.line("    LDI R3, %d", sym.Offset)
	cg.line("    ADD R1, R3")
	cg.line("    %s [R1], %s", storeOp(sym.Type), src)
}

func (cg *CodeGen) genCond(cond Expr, falseLabel string) error {
	if err := cg.genExpr(cond); err != nil {
		return err
	}
	cg.testZero()
	cg.line("    JZ  %s", falseLabel)
	return nil
}

func (cg *CodeGen) genStmt(s Stmt) error {
	switch n := s.(type) {
	case *ExprStmt:
		if err := cg.genExpr(n.X); err != nil {
			return err
		}

	case *VarDecl:
		sym := cg.info.Decls[n]
		cg.comment("var %s at FP%+d", n.Name, sym.Offset)
		if n.Init != nil {
			if err := cg.genExpr(n.Init); err != nil {
				return err
			}
			cg.truncate(n.Type)
		} else {
			cg.line("    LDI R0, 0")
		}
		cg.storeLocal(sym, "R0")

	case *ReturnStmt:
		if n.Value != nil {
			if err := cg.genExpr(n.Value); err != nil {
				return err
			}
			cg.truncate(cg.currentFunction.Result)
		}
		cg.line("    JMP %s", cg.retLabel)

	case *BlockStmt:
		for _, stmt := range n.Stmts {
			if err := cg.genStmt(stmt); err != nil {
				return err
			}
		}

	case *IfStmt:
		cg.comment("if %s", n.Cond)
		falseLabel := cg.newLabel()
		if err := cg.genCond(n.Cond, falseLabel); err != nil {
			return err
		}
		if err := cg.genStmt(n.Then); err != nil {
			return err
		}
		if n.Else != nil {
			endLabel := cg.newLabel()
			cg.line("    JMP %s", endLabel)
			cg.line("%s:", falseLabel)
			if err := cg.genStmt(n.Else); err != nil {
				return err
			}
			cg.line("%s:", endLabel)
		} else {
			cg.line("%s:", falseLabel)
		}

	case *WhileStmt:
		cg.comment("while %s", n.Cond)
		startLabel := cg.newLabel()
		endLabel := cg.newLabel()

		// For while loops, continue jumps to start (condition check)
		cg.loopStack = append(cg.loopStack, LoopLabel{Start: startLabel, End: endLabel, Post: startLabel})

		cg.line("%s:", startLabel)
		if err := cg.genCond(n.Cond, endLabel); err != nil {
			return err
		}
		if err := cg.genStmt(n.Body); err != nil {
			return err
		}
		cg.line("    JMP %s", startLabel)
		cg.line("%s:", endLabel)

		cg.loopStack = cg.loopStack[:len(cg.loopStack)-1]

	case *ForStmt:
		if n.Init != nil {
			if err := cg.genStmt(n.Init); err != nil {
				return err
			}
		}

		startLabel := cg.newLabel()
		endLabel := cg.newLabel()
		postLabel := cg.newLabel()

		// For for loops, continue jumps to post-iteration step
		cg.loopStack = append(cg.loopStack, LoopLabel{Start: startLabel, End: endLabel, Post: postLabel})

		cg.line("%s:", startLabel)
		if n.Cond != nil {
			cg.comment("for cond")
			if err := cg.genCond(n.Cond, endLabel); err != nil {
				return err
			}
		}

		if err := cg.genStmt(n.Body); err != nil {
			return err
		}

		cg.line("%s:", postLabel)
		if n.Post != nil {
			cg.comment("for post")
			if err := cg.genExpr(n.Post); err != nil {
				return err
			}
		}

		cg.line("    JMP %s", startLabel)
		cg.line("%s:", endLabel)

		cg.loopStack = cg.loopStack[:len(cg.loopStack)-1]

	case *BreakStmt:
		if len(cg.loopStack) == 0 {
			return cg.errorf(n.Pos, "break statement outside of loop")
		}
		cg.line("    JMP %s", cg.loopStack[len(cg.loopStack)-1].End)

	case *ContinueStmt:
		if len(cg.loopStack) == 0 {
			return cg.errorf(n.Pos, "continue statement outside of loop")
		}
		cg.line("    JMP %s", cg.loopStack[len(cg.loopStack)-1].Post)

	default:
		return cg.errorf(s.Position(), "unknown statement node %T", s)
	}
	return nil
}

func (cg *CodeGen) genFunction(fn *FunctionDecl) error {
	cg.currentFunction = fn
	cg.retLabel = cg.newLabel()
	frame := cg.info.Frames[fn]

	cg.line("")
	cg.comment("%s %s", fn.Name, fn.Signature())
	cg.line("%s:", fn.Name)
	cg.line("    PUSH R2")
	cg.line("    LDSP R2")

	if frame > 0 {
		cg.line("    LDI R1, %d", frame)
		cg.line("    LDSP R3")
		cg.line("    SUB R3, R1")
		cg.line("    STSP R3")
	}

	// Spill register arguments (R4-R7) to their frame slots
	for i, param := range fn.Params {
		if i >= len(argRegs) {
			break
		}
		sym := cg.info.Decls[param]
		cg.comment("spill %s (%s) to FP%+d", param.Name, argRegs[i], sym.Offset)
		cg.storeLocal(sym, argRegs[i])
	}

	if err := cg.genStmt(fn.Body); err != nil {
		return err
	}

	// Falling off the end returns 0.
	if !fn.Result.IsVoid() {
		cg.line("    LDI R0, 0")
	}
	cg.line("%s:", cg.retLabel)
	cg.line("    STSP R2")
	cg.line("    POP R2")
	cg.line("    RET")

	cg.currentFunction = nil
	return nil
}

// quoteASM renders s for the assembler's .STRING directive.
func quoteASM(s string) string {
	return strconv.Quote(s)
}

func (cg *CodeGen) genData(prog *Program) error {
	ce := constEval{info: cg.info, plan: cg.plan}
	type item struct {
		addr uint32
		text string
	}
	var items []item

	for _, d := range prog.Decls {
		v, ok := d.(*VarDecl)
		if !ok || v.Kind != Definition {
			continue
		}
		addr, _ := cg.plan.Addr(v.Name)
		val := uint32(0)
		if v.Init != nil && isConstExpr(v.Init, cg.info) {
			var err error
			if val, err = ce.eval(v.Init); err != nil {
				return cg.errorf(v.Init.Position(), "initializer of %s: %v", v.Name, err)
			}
		}
		if v.Type.Size() == 1 {
			items = append(items, item{addr, fmt.Sprintf("%s:\n    .BYTE %d", v.Name, val&0xFF)})
		} else {
			items = append(items, item{addr, fmt.Sprintf("%s:\n    .WORD %d", v.Name, val)})
		}
	}
	for i, s := range cg.info.Strings {
		items = append(items, item{cg.plan.Strings[s], fmt.Sprintf("%s: .STRING %s", cg.stringLabel(i), quoteASM(s.Value))})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].addr < items[j].addr })
	for _, it := range items {
		cg.line("    .ORG 0x%04X", it.addr)
		cg.line("%s", it.text)
	}
	return nil
}

// genInit emits the runtime initializers of globals whose initial value is
// not a constant expression.
func (cg *CodeGen) genInit(prog *Program) error {
	for _, d := range prog.Decls {
		v, ok := d.(*VarDecl)
		if !ok || v.Kind != Definition || v.Init == nil || isConstExpr(v.Init, cg.info) {
			continue
		}
		cg.comment("init %s", v.Name)
		if err := cg.genExpr(v.Init); err != nil {
			return err
		}
		cg.truncate(v.Type)
		cg.line("    LDI R1, %s", v.Name)
		cg.line("    %s [R1], R0", storeOp(v.Type))
	}
	return nil
}

// Generate produces the assembly for one checked and planned unit.
func Generate(prog *Program, info *Info, plan *Plan, opts GenOptions) (*Object, error) {
	if opts.Prefix == "" {
		opts.Prefix = "__u0_"
	}
	if opts.Entry == "" {
		opts.Entry = "main"
	}
	cg := newCodeGen(info, plan, opts.Prefix)
	obj := &Object{Plan: plan, Calls: buildCallGraph(prog)}

	defined := make(map[string]bool)
	for _, d := range prog.Decls {
		switch n := d.(type) {
		case *FunctionDecl:
			if n.Kind != Definition {
				continue
			}
			if err := cg.genFunction(n); err != nil {
				return nil, err
			}
			defined[n.Name] = true
			obj.Defined = append(obj.Defined, n.Name)
			if n.Link == LinkAsm {
				obj.Exported = append(obj.Exported, n.Name)
			}
			if n.Name == opts.Entry {
				obj.HasEntry = true
			}
		case *VarDecl:
			switch {
			case n.Kind == Definition:
				obj.Globals = append(obj.Globals, n.Name)
			case n.Kind == ForwardMarker && n.Name == opts.Entry:
				obj.HasEntry = true
			}
		}
	}
	body := cg.take()

	// Externs: called here but defined elsewhere, plus a bare entry marker.
	externs := make(map[string]bool)
	for _, name := range obj.Calls.Callees() {
		if !defined[name] {
			externs[name] = true
		}
	}
	if obj.HasEntry && !defined[opts.Entry] {
		externs[opts.Entry] = true
	}
	for name := range externs {
		obj.Externs = append(obj.Externs, name)
	}
	sort.Strings(obj.Externs)

	for _, name := range obj.Externs {
		cg.line("    .EXTERN %s", name)
	}
	for _, name := range obj.Exported {
		cg.line("    .GLOBAL %s", name)
	}
	obj.Text = cg.take() + body

	if err := cg.genInit(prog); err != nil {
		return nil, err
	}
	obj.Init = cg.take()

	if err := cg.genData(prog); err != nil {
		return nil, err
	}
	obj.Data = cg.take()
	return obj, nil
}
