// Package symbols is the symbol model (spec.md §3, component A): the
// Member tagged sum and its Type variants (class, function, property,
// module, builtin), plus Instance, Constant, Variable and the distinguished
// Unknown value.
package symbols

import (
	"sync"

	"github.com/sunholo/symscope/internal/ast"
	"github.com/sunholo/symscope/internal/sid"
)

// MemberKind tags which Member variant a value is.
type MemberKind int

const (
	KindType MemberKind = iota
	KindInstance
	KindConstant
	KindVariable
	KindUnknown
)

func (k MemberKind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindInstance:
		return "instance"
	case KindConstant:
		return "constant"
	case KindVariable:
		return "variable"
	default:
		return "unknown"
	}
}

// Member is the unifying abstraction (spec.md §3): anything that can stand
// in an evaluation slot.
type Member interface {
	Kind() MemberKind
}

// Location is a declaration or reference location in the original source's
// line/column space (spec.md §6).
type Location struct {
	Pos           ast.Pos
	Span          ast.Span
	IsDeclaration bool
}

// ---------------------------------------------------------------------------
// Unknown
// ---------------------------------------------------------------------------

type unknownMember struct{}

func (unknownMember) Kind() MemberKind { return KindUnknown }

// Unknown is the distinguished bottom value; every operation on it yields
// Unknown (spec.md §3 invariant, §7 error policy).
var Unknown Member = unknownMember{}

// IsUnknown reports whether m is the Unknown value (nil also counts, since a
// nil Member should never escape the evaluator — callers that forget to
// substitute Unknown for a nil result are still caught here).
func IsUnknown(m Member) bool {
	if m == nil {
		return true
	}
	_, ok := m.(unknownMember)
	return ok
}

// ---------------------------------------------------------------------------
// Type (spec.md §3 "Type" variant)
// ---------------------------------------------------------------------------

// TypeKind distinguishes the five Type variants.
type TypeKind int

const (
	TypeClass TypeKind = iota
	TypeFunction
	TypeProperty
	TypeModule
	TypeBuiltin
)

// Type is a named declared entity: class, function, property, module, or
// builtin. It is uniquely identified by (declaring module, qualified name)
// per spec.md §3 invariant 2.
type Type interface {
	Member
	TypeKind() TypeKind
	Name() string
	DeclModule() string // "" for synthetic builtins
	Doc() string
	SetDoc(string)
	Locations() []Location
	AddLocation(Location)
	QualifiedName() string
}

type typeBase struct {
	name       string
	declModule string

	mu        sync.Mutex
	doc       string
	locations []Location
}

func newTypeBase(name, declModule string) typeBase {
	return typeBase{name: name, declModule: declModule}
}

func (t *typeBase) Kind() MemberKind    { return KindType }
func (t *typeBase) Name() string        { return t.name }
func (t *typeBase) DeclModule() string  { return t.declModule }
func (t *typeBase) QualifiedName() string {
	return sid.Qualified(t.declModule, t.name)
}

func (t *typeBase) Doc() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doc
}

// SetDoc overwrites the documentation string. Used by the stub-override
// rule (spec.md §4.D rule 2), which keeps the source's docstring even when
// the stub's overload replaces the signature.
func (t *typeBase) SetDoc(doc string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.doc = doc
}

func (t *typeBase) Locations() []Location {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Location, len(t.locations))
	copy(out, t.locations)
	return out
}

// AddLocation appends a reference/declaration location. Location tracking
// lives on the type, not on the holding variable, unless the variable is
// user-declared (spec.md §4.A key rule) — callers decide which to call.
func (t *typeBase) AddLocation(loc Location) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.locations = append(t.locations, loc)
}

// ---------------------------------------------------------------------------
// ClassType
// ---------------------------------------------------------------------------

// ClassType is a declared class: ordered resolved bases, an append-only
// member map, a generic flag, and the AST node driving its evaluator
// (spec.md §3 "Class type").
type ClassType struct {
	typeBase

	mu        sync.Mutex
	bases     []Type
	IsGeneric bool
	Members   *MemberMap
	Def       *ast.ClassDef
}

// NewClassType creates an empty class shell. Collect creates these; bases
// and members are filled in by the class evaluator (spec.md §3 invariant 4).
func NewClassType(name, declModule string, def *ast.ClassDef) *ClassType {
	return &ClassType{
		typeBase: newTypeBase(name, declModule),
		Members:  NewMemberMap(),
		Def:      def,
	}
}

func (c *ClassType) TypeKind() TypeKind { return TypeClass }

// Bases returns the resolved base list in source order.
func (c *ClassType) Bases() []Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Type, len(c.bases))
	copy(out, c.bases)
	return out
}

// AddBase appends a resolved base in source order (spec.md §4.F.1 step 4).
func (c *ClassType) AddBase(b Type) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bases = append(c.bases, b)
}

// ---------------------------------------------------------------------------
// FunctionType
// ---------------------------------------------------------------------------

// Overload is one callable signature of a function (spec.md §3).
type Overload struct {
	Params           []*OverloadParam
	ReturnAnnotation string   // declared return annotation string, for display
	ReturnValues     []Member // resolved return value(s); may be a set
	Doc              string

	// ReturnFromAnnotation marks ReturnValues as derived from the declared
	// return annotation rather than from body walking; an annotated return
	// is authoritative and body-collected returns do not widen it
	// (spec.md §4.F.2 step 3).
	ReturnFromAnnotation bool

	// Node is the AST node this overload is driven from (nil for a
	// stub-provided overload with no corresponding source node).
	Node *ast.FuncDef
}

// OverloadParam is one parameter of an Overload.
type OverloadParam struct {
	Name          string
	AnnotatedType Member
	DefaultType   Member
	IsVariadic    bool
	IsKwDict      bool
}

// FunctionType is a function or method, possibly overloaded (spec.md §3
// "Function type").
type FunctionType struct {
	typeBase

	DeclaringType  Type // non-nil for methods
	IsStatic       bool
	IsClassMethod  bool
	IsLambda       bool

	mu        sync.Mutex
	overloads []*Overload
}

// NewFunctionType creates a function/method shell with no overloads yet.
func NewFunctionType(name, declModule string, declaringType Type) *FunctionType {
	return &FunctionType{
		typeBase:      newTypeBase(name, declModule),
		DeclaringType: declaringType,
	}
}

func (f *FunctionType) TypeKind() TypeKind { return TypeFunction }

// Overloads returns the overload list. Overloads are append-only during
// analysis (spec.md §3 invariant 5).
func (f *FunctionType) Overloads() []*Overload {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Overload, len(f.overloads))
	copy(out, f.overloads)
	return out
}

// AddOverload appends a new overload.
func (f *FunctionType) AddOverload(o *Overload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overloads = append(f.overloads, o)
}

// ReplaceOverload overwrites the overload at index i; an out-of-range i is
// ignored.
func (f *FunctionType) ReplaceOverload(i int, o *Overload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= 0 && i < len(f.overloads) {
		f.overloads[i] = o
	}
}

// ---------------------------------------------------------------------------
// PropertyType
// ---------------------------------------------------------------------------

// PropertyType is like a FunctionType but restricted to exactly one
// overload, with an abstractness flag (spec.md §3 "Property type").
type PropertyType struct {
	typeBase

	DeclaringType Type
	IsAbstract    bool

	mu      sync.Mutex
	overload *Overload
}

// NewPropertyType creates a property shell with no overload yet.
func NewPropertyType(name, declModule string, declaringType Type) *PropertyType {
	return &PropertyType{typeBase: newTypeBase(name, declModule), DeclaringType: declaringType}
}

func (p *PropertyType) TypeKind() TypeKind { return TypeProperty }

// Overload returns the property's single overload, or nil if unset.
func (p *PropertyType) Overload() *Overload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.overload
}

// SetOverload sets the property's single overload.
func (p *PropertyType) SetOverload(o *Overload) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overload = o
}

// ---------------------------------------------------------------------------
// ModuleType
// ---------------------------------------------------------------------------

// ModuleType represents a module as a Type, so it can stand as the value of
// an import binding (spec.md §4.F.4).
type ModuleType struct {
	typeBase
	Exports *MemberMap
}

// NewModuleType creates an empty module type.
func NewModuleType(name string) *ModuleType {
	return &ModuleType{typeBase: newTypeBase(name, ""), Exports: NewMemberMap()}
}

func (m *ModuleType) TypeKind() TypeKind { return TypeModule }

// ---------------------------------------------------------------------------
// BuiltinType
// ---------------------------------------------------------------------------

// BuiltinType represents a synthetic builtin entity (a type known to the
// host but not declared in any analysed module), per spec.md §3 invariant 2
// ("Builtins use a synthetic module").
type BuiltinType struct {
	typeBase
}

// NewBuiltinType creates a builtin type under the synthetic builtins
// module (declModule == "").
func NewBuiltinType(name string) *BuiltinType {
	return &BuiltinType{typeBase: newTypeBase(name, "")}
}

func (b *BuiltinType) TypeKind() TypeKind { return TypeBuiltin }

// ---------------------------------------------------------------------------
// Instance
// ---------------------------------------------------------------------------

// Instance is a value whose type is a Type (spec.md §3).
type Instance struct {
	Of Type
	// Element is the yielded value's type for a generator instance
	// (spec.md §4.F.2 step 3); nil for every other instance.
	Element Member
}

func (i *Instance) Kind() MemberKind { return KindInstance }

// NewInstance materializes an instance of t, or Unknown if t is nil.
func NewInstance(t Type) Member {
	if t == nil {
		return Unknown
	}
	return &Instance{Of: t}
}

// ---------------------------------------------------------------------------
// Constant
// ---------------------------------------------------------------------------

// Constant is a literal value carrying a builtin type id and its raw value
// (spec.md §3).
type Constant struct {
	BuiltinTypeID string // "int", "str", "bool", "None", "bytes", "float", ...
	Value         interface{}
}

func (c *Constant) Kind() MemberKind { return KindConstant }

// ---------------------------------------------------------------------------
// Variable
// ---------------------------------------------------------------------------

// VariableSource tags how a Variable's binding arose (spec.md §3).
type VariableSource int

const (
	SourceDeclaration VariableSource = iota
	SourceAssignment
	SourceImport
	SourceBuiltin
	SourceGenericParam
)

func (s VariableSource) String() string {
	switch s {
	case SourceDeclaration:
		return "declaration"
	case SourceAssignment:
		return "assignment"
	case SourceImport:
		return "import"
	case SourceBuiltin:
		return "builtin"
	case SourceGenericParam:
		return "generic-param"
	default:
		return "unknown"
	}
}

// Variable is a name binding inside a scope (spec.md §3). A reference to a
// Variable may outlive the scope that declared its name (invariant 6). A
// scope holds each Variable by pointer and updates it in place when the
// name is declared again.
type Variable struct {
	Name     string
	Value    Member
	Source   VariableSource
	Location *Location // nil when the reference should attach to the type instead (§4.A key rule)
}

func (v *Variable) Kind() MemberKind { return KindVariable }
