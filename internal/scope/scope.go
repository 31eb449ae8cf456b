// Package scope implements the lexical scope stack (spec.md §3 "Scope",
// component B): variable introduction with a provenance tag, and scoped
// acquisition of a new inner scope with guaranteed release.
package scope

import (
	"github.com/sunholo/symscope/internal/ast"
	"github.com/sunholo/symscope/internal/symbols"
)

// Scope is a named-binding container attached to a scope-forming AST node
// (module, class, function, lambda) — spec.md §3 "Scope".
type Scope struct {
	outer    *Scope
	declared map[string]*symbols.Variable
	imported map[string]*symbols.Variable
	children []*Scope
	node     ast.Node
}

func newScope(outer *Scope, node ast.Node) *Scope {
	return &Scope{
		outer:    outer,
		declared: make(map[string]*symbols.Variable),
		imported: make(map[string]*symbols.Variable),
		node:     node,
	}
}

// Outer returns the lexically enclosing scope, or nil at the module root.
func (s *Scope) Outer() *Scope { return s.outer }

// Node returns the AST node that originated this scope.
func (s *Scope) Node() ast.Node { return s.node }

// Children returns the child scopes opened beneath this one, in the order
// they were first opened.
func (s *Scope) Children() []*Scope {
	out := make([]*Scope, len(s.children))
	copy(out, s.children)
	return out
}

// DeclaredNames returns every name declared directly in sc (not
// imported, not inherited from outer scopes), in no particular order.
// Used by the class evaluator to sync a scope's bindings into a class's
// member map.
func (s *Scope) DeclaredNames() []string {
	out := make([]string, 0, len(s.declared))
	for name := range s.declared {
		out = append(out, name)
	}
	return out
}

// ImportedNames returns every name bound by import directly in sc, in no
// particular order.
func (s *Scope) ImportedNames() []string {
	out := make([]string, 0, len(s.imported))
	for name := range s.imported {
		out = append(out, name)
	}
	return out
}

// ClearDeclared drops every declared binding from s. The function
// evaluator calls this on a library module's function scope once the
// function has been resolved, whether or not its body was walked, so
// per-call locals do not outlive analysis (spec.md
// §4.F.2 step 6, §5 resource policy). Imports are kept; they may still be
// consulted when the scope is re-entered.
func (s *Scope) ClearDeclared() {
	s.declared = make(map[string]*symbols.Variable)
}

// Options controls how Lookup walks the scope chain (spec.md §4.B).
// Normal is "imported-too" and "builtins-too" combined, with LocalOnly
// unset so the walk goes outward — the default full search. The zero value searches only declared bindings,
// walking outer scopes, with no imports and no builtins fallback.
type Options struct {
	LocalOnly   bool // do not walk to outer scopes
	ImportedToo bool // also consult each scope's imported table
	BuiltinsToo bool // fall back to the builtins scope once the walk is exhausted
}

// Normal searches declared and imported bindings from the current scope
// outward to the module root, then falls back to builtins.
var Normal = Options{ImportedToo: true, BuiltinsToo: true}

// LocalOnly searches only the current scope's declared bindings.
var LocalOnly = Options{LocalOnly: true}

// Guard is returned by Stack.Open; its Release restores the parent scope as
// current. Release must run on every control-flow exit, normal or failure
// (spec.md §4.B guarantee) — callers should `defer guard.Release()`.
type Guard struct {
	stack *Stack
	prev  *Scope
}

// Release restores the scope that was current before Open was called.
func (g *Guard) Release() {
	if g == nil || g.stack == nil {
		return
	}
	g.stack.current = g.prev
}

// Stack is the per-module scope stack (spec.md §4.B component B). It is not
// thread-safe; each analysis session runs on a single logical task
// (spec.md §5).
type Stack struct {
	module   string
	root     *Scope
	current  *Scope
	builtins *Scope
	byNode   map[ast.Node]*Scope
}

// NewStack creates a stack rooted at the module scope, owned by moduleNode
// (typically the *ast.Module). builtins, if non-nil, is consulted by
// Options.BuiltinsToo lookups.
func NewStack(module string, moduleNode ast.Node, builtins *Scope) *Stack {
	root := newScope(nil, moduleNode)
	return &Stack{
		module:   module,
		root:     root,
		current:  root,
		builtins: builtins,
		byNode:   map[ast.Node]*Scope{moduleNode: root},
	}
}

// Root returns the module's root scope.
func (s *Stack) Root() *Scope { return s.root }

// Current returns the scope currently at the head of the stack.
func (s *Stack) Current() *Scope { return s.current }

// ScopeOf returns the scope previously opened for node, if any, without
// changing the current scope. Evaluators re-enter a body through Open;
// ScopeOf lets a caller inspect a scope after evaluation has run.
func (s *Stack) ScopeOf(node ast.Node) (*Scope, bool) {
	sc, ok := s.byNode[node]
	return sc, ok
}

// Open pushes a child scope owned by node and returns a guard whose release
// restores the current scope. If node already has a scope (either because
// it is the current head, or because it was opened earlier and is being
// re-entered for deferred evaluation), that existing scope becomes current
// instead of a fresh one being created — this is what makes reopening the
// current head's own node idempotent (spec.md §4.B).
func (s *Stack) Open(node ast.Node) *Guard {
	prev := s.current
	if existing, ok := s.byNode[node]; ok {
		s.current = existing
		return &Guard{stack: s, prev: prev}
	}
	child := newScope(prev, node)
	s.byNode[node] = child
	if prev != nil {
		prev.children = append(prev.children, child)
	}
	s.current = child
	return &Guard{stack: s, prev: prev}
}

// Declare inserts or updates a variable in the current scope (spec.md
// §4.B). A location of nil means the binding has no user-visible location
// (e.g. a name bound by sugar, such as an inner function's result).
func (s *Stack) Declare(name string, member symbols.Member, source symbols.VariableSource, loc *symbols.Location) {
	declareIn(s.current, name, member, source, loc)
}

// DeclareImported is like Declare but inserts into the current scope's
// imported table instead of its declared table.
func (s *Stack) DeclareImported(name string, member symbols.Member, loc *symbols.Location) {
	cur := s.current
	if v, ok := cur.imported[name]; ok {
		v.Value = member
		v.Location = loc
		return
	}
	cur.imported[name] = &symbols.Variable{Name: name, Value: member, Source: symbols.SourceImport, Location: loc}
}

// DeclareImportedIn is DeclareImported for an arbitrary scope, not just
// the stack's current head (used by the import resolver, which declares
// into whatever scope originally queued the import).
func DeclareImportedIn(sc *Scope, name string, member symbols.Member, loc *symbols.Location) {
	if v, ok := sc.imported[name]; ok {
		v.Value = member
		v.Location = loc
		return
	}
	sc.imported[name] = &symbols.Variable{Name: name, Value: member, Source: symbols.SourceImport, Location: loc}
}

func declareIn(sc *Scope, name string, member symbols.Member, source symbols.VariableSource, loc *symbols.Location) {
	if v, ok := sc.declared[name]; ok {
		v.Value = member
		v.Source = source
		if loc != nil {
			v.Location = loc
		}
		return
	}
	sc.declared[name] = &symbols.Variable{Name: name, Value: member, Source: source, Location: loc}
}

// DeclareIn declares directly into an arbitrary scope (used by the class
// evaluator, which may need to declare into a scope that is not currently
// at the head of the stack, e.g. while syncing batched assignments).
func DeclareIn(sc *Scope, name string, member symbols.Member, source symbols.VariableSource, loc *symbols.Location) {
	declareIn(sc, name, member, source, loc)
}

// GetInScope returns the member bound to name in a specific scope, without
// following outer scopes (spec.md §4.B).
func GetInScope(name string, sc *Scope) (symbols.Member, bool) {
	if v, ok := sc.declared[name]; ok {
		return v.Value, true
	}
	if v, ok := sc.imported[name]; ok {
		return v.Value, true
	}
	return symbols.Unknown, false
}

// VariableInScope returns the *symbols.Variable bound to name in a specific
// scope (not its value), for callers that need the provenance tag or
// location.
func VariableInScope(name string, sc *Scope) (*symbols.Variable, bool) {
	if v, ok := sc.declared[name]; ok {
		return v, true
	}
	if v, ok := sc.imported[name]; ok {
		return v, true
	}
	return nil, false
}

// Lookup searches from sc outward per opts (spec.md §4.B).
func Lookup(name string, sc *Scope, opts Options) (symbols.Member, bool) {
	cur := sc
	for cur != nil {
		if v, ok := cur.declared[name]; ok {
			return v.Value, true
		}
		if opts.ImportedToo {
			if v, ok := cur.imported[name]; ok {
				return v.Value, true
			}
		}
		if opts.LocalOnly {
			break
		}
		cur = cur.outer
	}
	return symbols.Unknown, false
}

// LookupWithBuiltins is Lookup but additionally falls back to builtins when
// opts.BuiltinsToo is set and the scope-chain walk found nothing.
func (s *Stack) LookupWithBuiltins(name string, sc *Scope, opts Options) (symbols.Member, bool) {
	if v, ok := Lookup(name, sc, opts); ok {
		return v, true
	}
	if opts.BuiltinsToo && s.builtins != nil {
		if v, ok := GetInScope(name, s.builtins); ok {
			return v, true
		}
	}
	return symbols.Unknown, false
}

// EnumerateTowardsGlobal returns a lazy sequence of scopes from sc to the
// module root: repeated calls to the returned function yield each scope in
// turn, then (false) once exhausted (spec.md §4.B).
func EnumerateTowardsGlobal(sc *Scope) func() (*Scope, bool) {
	cur := sc
	return func() (*Scope, bool) {
		if cur == nil {
			return nil, false
		}
		out := cur
		cur = cur.outer
		return out, true
	}
}
