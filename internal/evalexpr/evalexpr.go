// Package evalexpr is the expression evaluator (spec.md §4.C, component C):
// resolving an ast.Expr to a symbols.Member in a given scope. It never
// returns a nil Member and never panics on malformed input — anything it
// cannot resolve becomes symbols.Unknown, per spec.md §7's error policy.
package evalexpr

import (
	"github.com/sunholo/symscope/internal/ast"
	"github.com/sunholo/symscope/internal/collab"
	"github.com/sunholo/symscope/internal/scope"
	"github.com/sunholo/symscope/internal/symbols"
	"github.com/sunholo/symscope/internal/symerrors"
)

// Evaluator resolves expressions against a fixed set of collaborators.
// A Demand callback is supplied so Evaluator can force evaluation of a
// not-yet-processed declaration it depends on (e.g. resolving a Call's
// callee before the callee's own evaluator has run).
type Evaluator struct {
	Resolver    collab.ModuleResolver
	Stubs       collab.StubProvider
	Diagnostics collab.DiagnosticsSink
	Source      string // module URI, passed through to DiagnosticsSink.Report

	// Demand is called for any Type whose overloads/members evalexpr needs
	// but which has not been evaluated yet. It is supplied by the registry
	// package, which knows how to look up and run the pending evaluator
	// for a given declaration; evalexpr only calls it, never implements it.
	Demand func(t symbols.Type)
}

// Evaluate resolves expr in sc to a Member. It is the sole entry point;
// every Expr variant dispatches through here (spec.md §4.C).
func (e *Evaluator) Evaluate(expr ast.Expr, sc *scope.Scope, st *scope.Stack) symbols.Member {
	if expr == nil {
		return symbols.Unknown
	}
	switch x := expr.(type) {
	case *ast.Literal:
		return e.evalLiteral(x)
	case *ast.Name:
		return e.evalName(x, sc, st)
	case *ast.Attribute:
		return e.evalAttribute(x, sc, st)
	case *ast.Subscript:
		return e.evalSubscript(x, sc, st)
	case *ast.Call:
		return e.evalCall(x, sc, st)
	case *ast.BinOp:
		return e.evalBinOp(x, sc, st)
	case *ast.UnaryOp:
		return e.evalUnaryOp(x, sc, st)
	case *ast.Tuple:
		return e.evalSequence(x.Elements, sc, st)
	case *ast.List:
		return e.evalSequence(x.Elements, sc, st)
	case *ast.Dict:
		return e.evalDict(x, sc, st)
	case *ast.Yield:
		return e.evalYield(x, sc, st)
	case *ast.Lambda:
		return symbols.Unknown // lambdas are evaluated by the function evaluator, not here
	default:
		return symbols.Unknown
	}
}

// TypeFromAnnotation resolves expr as a type annotation, per spec.md
// §4.F.2 step 4: an annotation expression is itself just an expression (a
// Name, an Attribute, or a Subscript for a generic), so this is Evaluate's
// normal full scope-chain walk. Annotations are evaluated at definition
// time in the enclosing scope, same as Python itself does it, so a
// module-level rebinding that shadows a builtin name (`s = None; def f(s:
// s = 123)`) is found while walking outward from the function's own scope,
// before the builtins fallback is ever consulted — no special-casing
// needed beyond the normal walk order (spec.md §4.B).
func (e *Evaluator) TypeFromAnnotation(expr ast.Expr, sc *scope.Scope, st *scope.Stack) symbols.Member {
	return e.Evaluate(expr, sc, st)
}

func (e *Evaluator) evalLiteral(lit *ast.Literal) symbols.Member {
	id := builtinIDForLiteral(lit.Kind)
	return &symbols.Constant{BuiltinTypeID: id, Value: lit.Value}
}

func builtinIDForLiteral(k ast.LiteralKind) string {
	switch k {
	case ast.IntLit:
		return "int"
	case ast.FloatLit:
		return "float"
	case ast.StringLit:
		return "str"
	case ast.BoolLit:
		return "bool"
	case ast.BytesLit:
		return "bytes"
	default:
		return "None"
	}
}

func (e *Evaluator) evalName(n *ast.Name, sc *scope.Scope, st *scope.Stack) symbols.Member {
	if v, ok := st.LookupWithBuiltins(n.Id, sc, scope.Normal); ok {
		return v
	}
	return symbols.Unknown
}

func (e *Evaluator) evalAttribute(a *ast.Attribute, sc *scope.Scope, st *scope.Stack) symbols.Member {
	base := e.Evaluate(a.Value, sc, st)
	return e.memberOf(base, a.Attr)
}

// demand calls the Demand callback for t, if one is installed.
func (e *Evaluator) demand(t symbols.Type) {
	if e.Demand != nil && t != nil {
		e.Demand(t)
	}
}

// memberOf looks up name on whatever member base resolves to: a class's
// own member map, an instance's class's member map (falling through its
// resolved bases), or a module's exports.
func (e *Evaluator) memberOf(base symbols.Member, name string) symbols.Member {
	switch b := base.(type) {
	case *symbols.Instance:
		return e.memberOnType(b.Of, name)
	case symbols.Type:
		if m, ok := memberMapOf(b); ok {
			if v, ok := m.Get(name); ok {
				e.demand(typeFromMember(v))
				return v
			}
		}
		return symbols.Unknown
	default:
		return symbols.Unknown
	}
}

func (e *Evaluator) memberOnType(t symbols.Type, name string) symbols.Member {
	seen := map[symbols.Type]bool{}
	var walk func(symbols.Type) (symbols.Member, bool)
	walk = func(t symbols.Type) (symbols.Member, bool) {
		if t == nil || seen[t] {
			return symbols.Unknown, false
		}
		seen[t] = true
		e.demand(t)
		if m, ok := memberMapOf(t); ok {
			if v, ok := m.Get(name); ok {
				return v, true
			}
		}
		if ct, ok := t.(*symbols.ClassType); ok {
			for _, base := range ct.Bases() {
				if v, ok := walk(base); ok {
					return v, true
				}
			}
		}
		return symbols.Unknown, false
	}
	if v, ok := walk(t); ok {
		return v
	}
	return symbols.Unknown
}

func memberMapOf(t symbols.Type) (*symbols.MemberMap, bool) {
	switch tt := t.(type) {
	case *symbols.ClassType:
		return tt.Members, true
	case *symbols.ModuleType:
		return tt.Exports, true
	default:
		return nil, false
	}
}

func typeFromMember(m symbols.Member) symbols.Type {
	if t, ok := m.(symbols.Type); ok {
		return t
	}
	if inst, ok := m.(*symbols.Instance); ok {
		return inst.Of
	}
	return nil
}

// evalSubscript resolves a generic instantiation (Class[T]) by evaluating
// the base and ignoring the index member-wise (spec.md §4.C: generics are
// tracked for display only, not specialized structurally).
func (e *Evaluator) evalSubscript(s *ast.Subscript, sc *scope.Scope, st *scope.Stack) symbols.Member {
	base := e.Evaluate(s.Value, sc, st)
	e.Evaluate(s.Index, sc, st)
	if t, ok := base.(symbols.Type); ok {
		return symbols.NewInstance(t)
	}
	return base
}

// evalCall resolves the callee, picks the best-matching overload by
// argument count, and returns its return value (spec.md §4.C). A callee
// that resolves to a ClassType is a constructor call and yields an
// Instance of that class.
func (e *Evaluator) evalCall(c *ast.Call, sc *scope.Scope, st *scope.Stack) symbols.Member {
	callee := e.Evaluate(c.Func, sc, st)
	for _, arg := range c.Args {
		e.Evaluate(arg, sc, st)
	}
	for _, kw := range c.Keywords {
		e.Evaluate(kw.Value, sc, st)
	}

	switch t := callee.(type) {
	case *symbols.ClassType:
		e.demand(t)
		return symbols.NewInstance(t)
	case *symbols.FunctionType:
		e.demand(t)
		return e.bestOverloadReturn(t.Overloads(), len(c.Args))
	case *symbols.PropertyType:
		e.demand(t)
		if o := t.Overload(); o != nil && len(o.ReturnValues) > 0 {
			return o.ReturnValues[0]
		}
		return symbols.Unknown
	default:
		return symbols.Unknown
	}
}

func (e *Evaluator) bestOverloadReturn(overloads []*symbols.Overload, argCount int) symbols.Member {
	if len(overloads) == 0 {
		return symbols.Unknown
	}
	best := overloads[0]
	bestDelta := paramCountDelta(best, argCount)
	for _, o := range overloads[1:] {
		if d := paramCountDelta(o, argCount); d < bestDelta {
			best, bestDelta = o, d
		}
	}
	if len(best.ReturnValues) == 0 {
		return symbols.Unknown
	}
	if len(best.ReturnValues) == 1 {
		return best.ReturnValues[0]
	}
	return best.ReturnValues[0]
}

func paramCountDelta(o *symbols.Overload, argCount int) int {
	d := len(o.Params) - argCount
	if d < 0 {
		return -d
	}
	return d
}

func (e *Evaluator) evalBinOp(b *ast.BinOp, sc *scope.Scope, st *scope.Stack) symbols.Member {
	e.Evaluate(b.Left, sc, st)
	e.Evaluate(b.Right, sc, st)
	if folded, ok := foldComparison(b); ok {
		return &symbols.Constant{BuiltinTypeID: "bool", Value: folded}
	}
	return symbols.Unknown
}

// foldComparison constant-folds a comparison of two int/float literals
// for evalBinOp. The collector's system-predicate if-pruning does its own
// version and platform comparisons and does not go through here.
func foldComparison(b *ast.BinOp) (bool, bool) {
	lv, lok := constNumber(b.Left)
	rv, rok := constNumber(b.Right)
	if !lok || !rok {
		return false, false
	}
	switch b.Op {
	case "==":
		return lv == rv, true
	case "!=":
		return lv != rv, true
	case "<":
		return lv < rv, true
	case "<=":
		return lv <= rv, true
	case ">":
		return lv > rv, true
	case ">=":
		return lv >= rv, true
	default:
		return false, false
	}
}

func constNumber(expr ast.Expr) (float64, bool) {
	lit, ok := expr.(*ast.Literal)
	if !ok {
		return 0, false
	}
	switch v := lit.Value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func (e *Evaluator) evalUnaryOp(u *ast.UnaryOp, sc *scope.Scope, st *scope.Stack) symbols.Member {
	e.Evaluate(u.Expr, sc, st)
	return symbols.Unknown
}

// evalSequence evaluates every element for its side effects (member
// demands, diagnostics) and, when every element is a string literal,
// folds the sequence into a Constant carrying a []string — the shape
// __all__ discovery needs (spec.md §4.F.4) to recognize `__all__ = [...]`
// without a dedicated AST special case.
func (e *Evaluator) evalSequence(elts []ast.Expr, sc *scope.Scope, st *scope.Stack) symbols.Member {
	names := make([]string, 0, len(elts))
	allStrings := len(elts) > 0
	for _, el := range elts {
		e.Evaluate(el, sc, st)
		lit, ok := el.(*ast.Literal)
		if !ok || lit.Kind != ast.StringLit {
			allStrings = false
			continue
		}
		s, _ := lit.Value.(string)
		names = append(names, s)
	}
	if allStrings {
		return &symbols.Constant{BuiltinTypeID: "list", Value: names}
	}
	return symbols.Unknown
}

func (e *Evaluator) evalDict(d *ast.Dict, sc *scope.Scope, st *scope.Stack) symbols.Member {
	for _, entry := range d.Entries {
		e.Evaluate(entry.Key, sc, st)
		e.Evaluate(entry.Value, sc, st)
	}
	return symbols.Unknown
}

// evalYield evaluates the yielded value for its side effects and returns
// Unknown. Generator detection is not done here: the function evaluator's
// body scan finds Yield nodes in the AST itself (spec.md §4.F.2 step 5).
func (e *Evaluator) evalYield(y *ast.Yield, sc *scope.Scope, st *scope.Stack) symbols.Member {
	if y.Value != nil {
		e.Evaluate(y.Value, sc, st)
	}
	return symbols.Unknown
}

// report is a small helper for call sites inside evalexpr that want to
// surface a diagnostic without aborting evaluation.
func (e *Evaluator) report(code, message string, span ast.Span) {
	if e.Diagnostics == nil {
		return
	}
	r := symerrors.New(code, message, span, nil)
	e.Diagnostics.Report(e.Source, r.ToEntry(e.Source))
}
