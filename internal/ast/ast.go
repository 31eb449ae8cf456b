// Package ast defines the syntax tree this module consumes from the Parser
// collaborator (spec.md §1/§6). The tree models a dynamically typed
// scripting language with Python-like classes, decorators, generators and
// attribute assignment through a first parameter.
package ast

import (
	"fmt"
	"strings"
)

// Node is the base interface for every syntax tree node.
type Node interface {
	String() string
	Position() Pos
}

// Pos is a single point in source.
type Pos struct {
	Line   int
	Column int
	File   string
	Offset int
}

func (p Pos) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Span is a range in source, used for stable-ID calculation and location
// records surfaced to consumers.
type Span struct {
	Start Pos
	End   Pos
}

// Expr is any expression node.
type Expr interface {
	Node
	exprNode()
}

// Stmt is any statement node.
type Stmt interface {
	Node
	stmtNode()
}

// TypeExpr is an expression used in annotation position. Any Expr may be
// used as a TypeExpr; the evaluator's type_from_annotation entry point
// decides how to read it (spec.md §4.C).
type TypeExpr = Expr

// ---------------------------------------------------------------------------
// Module / File
// ---------------------------------------------------------------------------

// Module is the root of a parsed source file.
type Module struct {
	Name string
	Body []Stmt
	Pos  Pos

	// IsStub marks a module parsed from a type-stub file rather than
	// source (spec.md §4.F.2 step 1: stub/specialized modules skip body
	// walking).
	IsStub bool
}

func (m *Module) String() string { return fmt.Sprintf("module %s", m.Name) }
func (m *Module) Position() Pos  { return m.Pos }

// ---------------------------------------------------------------------------
// Identifiers, literals
// ---------------------------------------------------------------------------

// Name is a bare identifier reference.
type Name struct {
	Id  string
	Pos Pos
}

func (n *Name) String() string { return n.Id }
func (n *Name) Position() Pos  { return n.Pos }
func (n *Name) exprNode()      {}

// LiteralKind tags the builtin type of a Literal.
type LiteralKind int

const (
	IntLit LiteralKind = iota
	FloatLit
	StringLit
	BoolLit
	NoneLit
	BytesLit
)

func (k LiteralKind) String() string {
	switch k {
	case IntLit:
		return "int"
	case FloatLit:
		return "float"
	case StringLit:
		return "str"
	case BoolLit:
		return "bool"
	case NoneLit:
		return "None"
	case BytesLit:
		return "bytes"
	default:
		return "unknown"
	}
}

// Literal is a constant value.
type Literal struct {
	Kind  LiteralKind
	Value interface{}
	Pos   Pos
}

func (l *Literal) String() string { return fmt.Sprintf("%v", l.Value) }
func (l *Literal) Position() Pos  { return l.Pos }
func (l *Literal) exprNode()      {}

// ---------------------------------------------------------------------------
// Compound expressions
// ---------------------------------------------------------------------------

// Attribute is `Value.Attr`.
type Attribute struct {
	Value Expr
	Attr  string
	Pos   Pos
}

func (a *Attribute) String() string { return fmt.Sprintf("%s.%s", a.Value, a.Attr) }
func (a *Attribute) Position() Pos  { return a.Pos }
func (a *Attribute) exprNode()      {}

// Subscript is `Value[Index]`, used both for indexing and generic
// instantiation (`List[int]`).
type Subscript struct {
	Value Expr
	Index Expr
	Pos   Pos
}

func (s *Subscript) String() string { return fmt.Sprintf("%s[%s]", s.Value, s.Index) }
func (s *Subscript) Position() Pos  { return s.Pos }
func (s *Subscript) exprNode()      {}

// Keyword is a `name=value` call argument.
type Keyword struct {
	Name  string // empty for **kwargs spread
	Value Expr
	Pos   Pos
}

// Call is a function/method/class invocation.
type Call struct {
	Func     Expr
	Args     []Expr
	Keywords []*Keyword
	Pos      Pos
}

func (c *Call) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Func, strings.Join(parts, ", "))
}
func (c *Call) Position() Pos { return c.Pos }
func (c *Call) exprNode()     {}

// BinOp is a binary operation, used by the evaluator for constant folding of
// system-condition comparisons (spec.md §4.D rule 3).
type BinOp struct {
	Left  Expr
	Op    string
	Right Expr
	Pos   Pos
}

func (b *BinOp) String() string { return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right) }
func (b *BinOp) Position() Pos  { return b.Pos }
func (b *BinOp) exprNode()      {}

// UnaryOp is a unary operation.
type UnaryOp struct {
	Op   string
	Expr Expr
	Pos  Pos
}

func (u *UnaryOp) String() string { return fmt.Sprintf("(%s%s)", u.Op, u.Expr) }
func (u *UnaryOp) Position() Pos  { return u.Pos }
func (u *UnaryOp) exprNode()      {}

// Tuple, List, Dict literals.

type Tuple struct {
	Elements []Expr
	Pos      Pos
}

func (t *Tuple) String() string { return joinExprs("(", t.Elements, ")") }
func (t *Tuple) Position() Pos  { return t.Pos }
func (t *Tuple) exprNode()      {}

type List struct {
	Elements []Expr
	Pos      Pos
}

func (l *List) String() string { return joinExprs("[", l.Elements, "]") }
func (l *List) Position() Pos  { return l.Pos }
func (l *List) exprNode()      {}

type DictEntry struct {
	Key   Expr
	Value Expr
}

type Dict struct {
	Entries []*DictEntry
	Pos     Pos
}

func (d *Dict) String() string {
	parts := make([]string, len(d.Entries))
	for i, e := range d.Entries {
		parts[i] = fmt.Sprintf("%s: %s", e.Key, e.Value)
	}
	return fmt.Sprintf("{%s}", strings.Join(parts, ", "))
}
func (d *Dict) Position() Pos { return d.Pos }
func (d *Dict) exprNode()     {}

func joinExprs(open string, elems []Expr, close string) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = e.String()
	}
	return fmt.Sprintf("%s%s%s", open, strings.Join(parts, ", "), close)
}

// Yield marks a generator; the collected presence of a Yield anywhere in a
// function body's top-level statements drives generator-return inference
// (spec.md §4.F.2 step 3).
type Yield struct {
	Value Expr // nil for a bare `yield`
	Pos   Pos
}

func (y *Yield) String() string {
	if y.Value == nil {
		return "yield"
	}
	return fmt.Sprintf("yield %s", y.Value)
}
func (y *Yield) Position() Pos { return y.Pos }
func (y *Yield) exprNode()     {}

// Lambda is an anonymous single-expression function.
type Lambda struct {
	Params []*Param
	Body   Expr
	Pos    Pos
}

func (l *Lambda) String() string {
	names := make([]string, len(l.Params))
	for i, p := range l.Params {
		names[i] = p.Name
	}
	return fmt.Sprintf("lambda %s: %s", strings.Join(names, ", "), l.Body)
}
func (l *Lambda) Position() Pos { return l.Pos }
func (l *Lambda) exprNode()     {}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// ExprStmt wraps a bare expression statement.
type ExprStmt struct {
	Value Expr
	Pos   Pos
}

func (e *ExprStmt) String() string { return e.Value.String() }
func (e *ExprStmt) Position() Pos  { return e.Pos }
func (e *ExprStmt) stmtNode()      {}

// Assign is `Target = Value`, including attribute-assignment through a
// recognised first parameter (`self.x = v`), which the function evaluator
// watches for (spec.md §4.F.2 step 5).
type Assign struct {
	Target Expr // *Name, *Attribute, or *Subscript
	Value  Expr
	Pos    Pos
}

func (a *Assign) String() string { return fmt.Sprintf("%s = %s", a.Target, a.Value) }
func (a *Assign) Position() Pos  { return a.Pos }
func (a *Assign) stmtNode()      {}

// AnnAssign is `Target: Annotation [= Value]` — an annotated assignment,
// possibly without a value (a bare declaration later assigned elsewhere).
type AnnAssign struct {
	Target     Expr
	Annotation TypeExpr
	Value      Expr // nil if not yet assigned
	Pos        Pos
}

func (a *AnnAssign) String() string {
	if a.Value != nil {
		return fmt.Sprintf("%s: %s = %s", a.Target, a.Annotation, a.Value)
	}
	return fmt.Sprintf("%s: %s", a.Target, a.Annotation)
}
func (a *AnnAssign) Position() Pos { return a.Pos }
func (a *AnnAssign) stmtNode()     {}

// Return is a return statement.
type Return struct {
	Value Expr // nil for bare `return`
	Pos   Pos
}

func (r *Return) String() string {
	if r.Value == nil {
		return "return"
	}
	return fmt.Sprintf("return %s", r.Value)
}
func (r *Return) Position() Pos { return r.Pos }
func (r *Return) stmtNode()     {}

// If is a conditional statement. The collector special-cases system
// predicates in its Test (spec.md §4.D rule 3).
type If struct {
	Test Expr
	Then []Stmt
	Else []Stmt // nil if no else branch
	Pos  Pos
}

func (i *If) String() string { return fmt.Sprintf("if %s: ...", i.Test) }
func (i *If) Position() Pos  { return i.Pos }
func (i *If) stmtNode()      {}

// Import is `import a.b.c` or `import a.b.c as alias`.
type Import struct {
	DottedName string
	Alias      string // empty if none
	Pos        Pos
}

func (i *Import) String() string { return fmt.Sprintf("import %s", i.DottedName) }
func (i *Import) Position() Pos  { return i.Pos }
func (i *Import) stmtNode()      {}

// ImportFromName is one symbol in a `from X import a, b as c` statement.
type ImportFromName struct {
	Name  string
	Alias string // empty if none
}

// ImportFrom is `from DottedModule import Names...`.
type ImportFrom struct {
	DottedModule string
	Names        []*ImportFromName
	Pos          Pos
}

func (i *ImportFrom) String() string { return fmt.Sprintf("from %s import ...", i.DottedModule) }
func (i *ImportFrom) Position() Pos  { return i.Pos }
func (i *ImportFrom) stmtNode()      {}

// Raise is a raise statement (walked but otherwise inert for inference).
type Raise struct {
	Exc Expr // nil for bare re-raise
	Pos Pos
}

func (r *Raise) String() string { return "raise" }
func (r *Raise) Position() Pos  { return r.Pos }
func (r *Raise) stmtNode()      {}

// Pass is a no-op statement, commonly a function/class body placeholder.
type Pass struct{ Pos Pos }

func (p *Pass) String() string { return "pass" }
func (p *Pass) Position() Pos  { return p.Pos }
func (p *Pass) stmtNode()      {}

// ---------------------------------------------------------------------------
// Decorators
// ---------------------------------------------------------------------------

// Decorator is one `@expr` line above a class or function definition. The
// collector recognizes a small closed set of decorator names by their
// textual identifier (spec.md §9 "Decorator recognition by literal name").
type Decorator struct {
	// Expr is the full decorator expression, e.g. `property` (a *Name) or
	// `deprecated("use g instead")` (a *Call whose Func is a *Name).
	Expr Expr
	Pos  Pos
}

// Name returns the base identifier the decorator resolves to for
// recognition purposes: "property" for both `@property` and `@x.property`.
func (d *Decorator) Name() string {
	switch e := d.Expr.(type) {
	case *Name:
		return e.Id
	case *Attribute:
		return e.Attr
	case *Call:
		switch f := e.Func.(type) {
		case *Name:
			return f.Id
		case *Attribute:
			return f.Attr
		}
	}
	return ""
}

// IsCall reports whether the decorator was written with call syntax, e.g.
// `@deprecated("reason")` rather than `@deprecated`.
func (d *Decorator) IsCall() bool {
	_, ok := d.Expr.(*Call)
	return ok
}

// CallArgs returns the decorator's call arguments, or nil if it was not
// written with call syntax.
func (d *Decorator) CallArgs() []Expr {
	if c, ok := d.Expr.(*Call); ok {
		return c.Args
	}
	return nil
}

// ---------------------------------------------------------------------------
// Parameters
// ---------------------------------------------------------------------------

// Param is one function parameter.
type Param struct {
	Name       string
	Annotation TypeExpr // nil if unannotated
	Default    Expr     // nil if no default
	IsVariadic bool     // *args
	IsKwDict   bool     // **kwargs
	Pos        Pos
}

// ---------------------------------------------------------------------------
// Function / class declarations
// ---------------------------------------------------------------------------

// FuncDef is a function or method definition.
type FuncDef struct {
	Name       string
	Params     []*Param
	ReturnType TypeExpr // nil if unannotated
	Decorators []*Decorator
	Body       []Stmt
	Doc        string // docstring, if the body's first statement was a string literal
	Pos        Pos
	Span       Span

	// ReplacedByStub marks that the symbol collector found a stub override
	// for this definition; evaluation must skip walking Body (spec.md
	// §4.D rule 2, §4.F.2 step 1).
	ReplacedByStub bool
}

func (f *FuncDef) String() string { return fmt.Sprintf("def %s(...)", f.Name) }
func (f *FuncDef) Position() Pos  { return f.Pos }
func (f *FuncDef) stmtNode()      {}

// ClassDef is a class definition.
type ClassDef struct {
	Name       string
	Bases      []Expr // positional base expressions; kwargs (e.g. metaclass=) live in Keywords
	Keywords   []*Keyword
	Decorators []*Decorator
	Body       []Stmt
	Doc        string
	Pos        Pos
	Span       Span
}

func (c *ClassDef) String() string { return fmt.Sprintf("class %s", c.Name) }
func (c *ClassDef) Position() Pos  { return c.Pos }
func (c *ClassDef) stmtNode()      {}

// Docstring extracts a leading string-literal expression statement from a
// body, per the common docstring convention, without consuming it from the
// body slice (callers decide whether to skip it during further walks).
func Docstring(body []Stmt) string {
	if len(body) == 0 {
		return ""
	}
	es, ok := body[0].(*ExprStmt)
	if !ok {
		return ""
	}
	lit, ok := es.Value.(*Literal)
	if !ok || lit.Kind != StringLit {
		return ""
	}
	s, _ := lit.Value.(string)
	return s
}
