// Package compiler translates a restricted C dialect into VM32 assembly.
//
// Pipeline:
//
//	Preprocess → Lex → Parse → Resolve → Check → PlanLayout → Generate → Link
//
// The dialect has int, unsigned, char and pointers, functions, globals,
// locals and the usual statements. Two pragmas steer placement and
// linkage: `#pragma location ADDR` pins the following global definitions
// to consecutive fixed addresses, and `#pragma extern asm` marks the next
// function as called from hand-written assembly. A bare `int main;` names
// an entry point supplied elsewhere.
//
// Each phase reports problems as *Diagnostic values; resolution, checking
// and layout collect every problem of their phase into an ErrorList.
package compiler
