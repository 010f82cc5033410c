package compiler

import (
	"fmt"
	"sort"
	"strings"
)

type SymKind int

const (
	SymVar SymKind = iota
	SymFunc
)

// Storage says where a symbol's value lives at run time.
type Storage int

const (
	StorageGlobal Storage = iota // fixed address, assigned by the layout planner
	StorageLocal                 // FP-relative slot
	StorageParam                 // spilled register param or caller stack slot
	StorageExtern                // declared here, defined by another unit or asm
)

func (s Storage) String() string {
	switch s {
	case StorageGlobal:
		return "global"
	case StorageLocal:
		return "local"
	case StorageParam:
		return "param"
	case StorageExtern:
		return "extern"
	}
	return fmt.Sprintf("Storage(%d)", int(s))
}

// Symbol is one named entity. Globals and functions have one Symbol per
// unit; every local declaration gets its own.
type Symbol struct {
	Name    string
	Kind    SymKind
	Type    Type       // variable type, or function result
	Sig     *Signature // functions only
	Depth   int        // 0 for file scope
	Storage Storage
	Offset  int    // FP-relative, locals and params
	Addr    uint32 // globals, filled by the layout planner
	Decl    Node   // defining declaration, else the first one seen

	Defined bool // has a body or storage in this unit
	Marker  bool // declared by a forward marker
	Link    Linkage
}

func (s *Symbol) String() string {
	switch {
	case s.Kind == SymFunc:
		return fmt.Sprintf("func %s %s (%s, link=%s)", s.Name, s.Sig, s.Storage, s.Link)
	case s.Storage == StorageGlobal:
		return fmt.Sprintf("var %s %s @0x%04X", s.Name, s.Type, s.Addr)
	}
	return fmt.Sprintf("var %s %s FP%+d (%s)", s.Name, s.Type, s.Offset, s.Storage)
}

// SymbolTable maps names to symbols.
// Globals and functions live at depth 0. Locals are assigned negative
// offsets from FP; a slot is handed out again once its block has exited.
type SymbolTable struct {
	globals map[string]*Symbol
	order   []*Symbol // globals in declaration order

	// Stack of local scopes.
	// Each scope maps name -> Symbol.
	locals []map[string]*Symbol
	marks  []int // nextLocal at each scope entry

	// Next free local offset, and the lowest offset reached so far.
	nextLocal int
	lowWater  int
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{globals: make(map[string]*Symbol)}
}

func (s *SymbolTable) EnterFunction() {
	// One scope for params and the outermost block of the body.
	s.locals = []map[string]*Symbol{make(map[string]*Symbol)}
	s.marks = []int{0}
	s.nextLocal = 0
	s.lowWater = 0
}

// ExitFunction leaves the function and returns its frame size in bytes.
func (s *SymbolTable) ExitFunction() int {
	s.locals = nil
	s.marks = nil
	return -s.lowWater
}

func (s *SymbolTable) EnterScope() {
	if len(s.locals) == 0 {
		panic("EnterScope called outside function")
	}
	s.locals = append(s.locals, make(map[string]*Symbol))
	s.marks = append(s.marks, s.nextLocal)
}

func (s *SymbolTable) ExitScope() {
	if len(s.locals) > 1 {
		s.nextLocal = s.marks[len(s.marks)-1]
		s.locals = s.locals[:len(s.locals)-1]
		s.marks = s.marks[:len(s.marks)-1]
	}
}

// Depth is the current scope depth; 0 outside functions.
func (s *SymbolTable) Depth() int {
	return len(s.locals)
}

func (s *SymbolTable) allocSlot() int {
	s.nextLocal -= WordSize
	if s.nextLocal < s.lowWater {
		s.lowWater = s.nextLocal
	}
	return s.nextLocal
}

// DefineParam adds parameter i of the current function. The first four
// arrive in R4-R7 and are spilled to the frame; the rest stay in the
// caller's stack above the saved FP and return address.
func (s *SymbolTable) DefineParam(decl *VarDecl, i int) *Symbol {
	if len(s.locals) == 0 {
		panic("DefineParam called outside function scope")
	}
	sym := &Symbol{
		Name:    decl.Name,
		Kind:    SymVar,
		Type:    decl.Type,
		Depth:   1,
		Storage: StorageParam,
		Decl:    decl,
		Defined: true,
	}
	if i < len(argRegs) {
		sym.Offset = s.allocSlot()
	} else {
		sym.Offset = 2*WordSize + (i-len(argRegs))*WordSize
	}
	s.locals[0][decl.Name] = sym
	return sym
}

// DefineLocal adds a local variable to the current scope. If the name is
// already declared in this scope the existing symbol is returned with
// ok=false.
func (s *SymbolTable) DefineLocal(decl *VarDecl) (*Symbol, bool) {
	scope := s.locals[len(s.locals)-1]
	if sym, exists := scope[decl.Name]; exists {
		return sym, false
	}
	sym := &Symbol{
		Name:    decl.Name,
		Kind:    SymVar,
		Type:    decl.Type,
		Depth:   len(s.locals),
		Storage: StorageLocal,
		Offset:  s.allocSlot(),
		Decl:    decl,
		Defined: true,
	}
	scope[decl.Name] = sym
	return sym, true
}

// DefineGlobal adds sym at file scope. It fails if the name is taken; the
// caller merges markers, prototypes and definitions beforehand.
func (s *SymbolTable) DefineGlobal(sym *Symbol) bool {
	if _, exists := s.globals[sym.Name]; exists {
		return false
	}
	s.globals[sym.Name] = sym
	s.order = append(s.order, sym)
	return true
}

// Global returns the file-scope symbol name.
func (s *SymbolTable) Global(name string) (*Symbol, bool) {
	sym, ok := s.globals[name]
	return sym, ok
}

// Globals returns the file-scope symbols in declaration order.
func (s *SymbolTable) Globals() []*Symbol {
	return append([]*Symbol(nil), s.order...)
}

// Lookup returns the innermost visible symbol for name.
func (s *SymbolTable) Lookup(name string) (*Symbol, bool) {
	// Search locals from top of stack down
	for i := len(s.locals) - 1; i >= 0; i-- {
		if sym, ok := s.locals[i][name]; ok {
			return sym, true
		}
	}

	// Search globals
	sym, ok := s.globals[name]
	return sym, ok
}

// String returns a deterministically ordered dump of the file scope.
func (s *SymbolTable) String() string {
	var sb strings.Builder
	if len(s.globals) == 0 {
		sb.WriteString("Globals: (empty)\n")
		return sb.String()
	}

	sb.WriteString("Globals:\n")
	names := make([]string, 0, len(s.globals))
	for name := range s.globals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&sb, "  %s\n", s.globals[name])
	}
	return sb.String()
}
