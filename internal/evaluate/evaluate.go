// Package evaluate provides the member evaluators (spec.md §4.F,
// component F): ClassEvaluator, FunctionEvaluator, PropertyEvaluator, and
// the implicit module-evaluator's __all__ discovery. Each is a
// registry.Evaluator the collector registers once per declaration; the
// registry drives them to completion via its wave ordering.
package evaluate

import (
	"github.com/sunholo/symscope/internal/ast"
	"github.com/sunholo/symscope/internal/collab"
	"github.com/sunholo/symscope/internal/evalexpr"
	"github.com/sunholo/symscope/internal/registry"
	"github.com/sunholo/symscope/internal/scope"
	"github.com/sunholo/symscope/internal/symbols"
	"github.com/sunholo/symscope/internal/symerrors"
)

// BodyWalker descends into a statement list, declaring and registering
// whatever the collector would register for top-level code (nested
// classes, nested functions, imports). Implemented by internal/collect's
// Collector; kept as an interface here so this package never imports
// collect (collect imports evaluate, not the reverse).
//
// ResolveScopeImports resolves the imports WalkBody queued against sc and
// declares their bindings, so an evaluator can process a scope's imports
// as its first batch, before the statements that reference them
// (spec.md §4.F.1 step 6 "First, import statements").
type BodyWalker interface {
	WalkBody(body []ast.Stmt, sc *scope.Scope, st *scope.Stack)
	ResolveScopeImports(sc *scope.Scope)
}

// FuncKind classifies a function by its recognized decorators (spec.md
// §4.D rule 2 "decorator-based function-kind classification").
type FuncKind int

const (
	KindPlain FuncKind = iota
	KindStatic
	KindClassMethod
	KindProperty
	KindAbstractProperty
)

func reportOn(d collab.DiagnosticsSink, source string, code, message string, span ast.Span) {
	if d == nil {
		return
	}
	r := symerrors.New(code, message, span, nil)
	d.Report(source, r.ToEntry(source))
}

func spanOf(n ast.Node) ast.Span {
	if n == nil {
		return ast.Span{}
	}
	return ast.Span{Start: n.Position(), End: n.Position()}
}

// ---------------------------------------------------------------------------
// ClassEvaluator
// ---------------------------------------------------------------------------

// ClassEvaluator resolves a class's bases and walks its body in the
// batched order spec.md §4.F.1 requires: imports, then inner classes, then
// assignments/annotated-assignments, then constructors, then the
// remaining methods — so a constructor's `self.x = v` writes are visible
// to sibling methods evaluated afterward.
type ClassEvaluator struct {
	Class       *symbols.ClassType
	Def         *ast.ClassDef
	Stack       *scope.Stack
	Expr        *evalexpr.Evaluator
	Walker      BodyWalker
	Diagnostics collab.DiagnosticsSink
	Source      string

	// DeclScope is the scope the class's name was declared into at
	// collection time. A later assignment may have rebound that name to
	// something other than this Class before the evaluator ran; when
	// that happens this evaluator bails out silently rather than
	// reporting a diagnostic (spec.md §9 open question, resolved: a
	// variable/class name collision is not itself an error condition).
	DeclScope *scope.Scope
}

// Run implements registry.Evaluator.
func (c *ClassEvaluator) Run(r *registry.Registry) {
	if c.DeclScope != nil {
		if v, ok := scope.GetInScope(c.Def.Name, c.DeclScope); ok && v != symbols.Member(c.Class) {
			// TODO: surface a diagnostic here if product direction ever
			// wants this collision reported instead of silently ignored.
			return
		}
	}

	guard := c.Stack.Open(c.Def)
	defer guard.Release()
	sc := c.Stack.Current()

	c.resolveBases(sc)
	scope.DeclareIn(sc, "__class__", c.Class, symbols.SourceDeclaration, nil)

	var imports, nested, assigns, ctors, methods []ast.Stmt
	for _, stmt := range c.Def.Body {
		switch s := stmt.(type) {
		case *ast.Import, *ast.ImportFrom:
			imports = append(imports, stmt)
		case *ast.ClassDef:
			nested = append(nested, stmt)
		case *ast.Assign, *ast.AnnAssign:
			assigns = append(assigns, stmt)
		case *ast.FuncDef:
			if s.Name == "__init__" || s.Name == "__new__" {
				ctors = append(ctors, stmt)
			} else {
				methods = append(methods, stmt)
			}
		default:
			// Raise, Pass, ExprStmt: inert for member resolution, walked
			// anyway so the collector's bookkeeping still runs.
			methods = append(methods, stmt)
		}
	}

	// Imports first, so bases, annotations and assignments referencing an
	// imported name resolve (spec.md §4.F.1 step 6 batch order).
	c.Walker.WalkBody(imports, sc, c.Stack)
	c.Walker.ResolveScopeImports(sc)
	c.syncMembers(sc)

	c.Walker.WalkBody(nested, sc, c.Stack)
	r.EvaluateScope(nodeSet(nested))

	c.Walker.WalkBody(assigns, sc, c.Stack)
	c.syncMembers(sc)

	c.Walker.WalkBody(ctors, sc, c.Stack)
	r.EvaluateScope(nodeSet(ctors))
	c.syncMembers(sc)

	c.Walker.WalkBody(methods, sc, c.Stack)
	c.Walker.ResolveScopeImports(sc)
	r.EvaluateScope(nodeSet(methods))
	c.syncMembers(sc)
}

func (c *ClassEvaluator) resolveBases(sc *scope.Scope) {
	for _, baseExpr := range c.Def.Bases {
		// A base expression is a normal reference: it walks the full scope
		// chain outward before the builtins fallback, the same walk
		// TypeFromAnnotation uses for annotations.
		m := c.Expr.Evaluate(baseExpr, sc, c.Stack)
		if symbols.IsUnknown(m) {
			continue // unresolved reference, not necessarily an invalid base
		}
		// Functions, methods and properties implement symbols.Type but are
		// not inheritable; only classes, modules and builtins (the typing
		// collaborator's entries included) may stand as bases.
		t, ok := m.(symbols.Type)
		if !ok || t.TypeKind() == symbols.TypeFunction || t.TypeKind() == symbols.TypeProperty {
			reportOn(c.Diagnostics, c.Source, symerrors.InheritNonClass,
				"base class expression does not resolve to a class", spanOf(baseExpr))
			continue
		}
		t.AddLocation(symbols.Location{Pos: c.Def.Pos, Span: c.Def.Span})
		c.Class.AddBase(t)
	}
}

// syncMembers copies every declared and imported scope binding into the
// class's member map, so attribute lookups on an Instance of this class
// see assignments, class-body imports, and `self.x = v` writes (spec.md
// §4.F.1 step 6, §4.A).
func (c *ClassEvaluator) syncMembers(sc *scope.Scope) {
	for _, name := range sc.DeclaredNames() {
		if v, ok := scope.GetInScope(name, sc); ok {
			c.Class.Members.Set(name, v)
		}
	}
	for _, name := range sc.ImportedNames() {
		if v, ok := scope.GetInScope(name, sc); ok {
			c.Class.Members.Set(name, v)
		}
	}
}

func nodeSet(stmts []ast.Stmt) map[ast.Node]bool {
	out := make(map[ast.Node]bool, len(stmts))
	for _, s := range stmts {
		out[s] = true
	}
	return out
}

// ---------------------------------------------------------------------------
// FunctionEvaluator
// ---------------------------------------------------------------------------

// FunctionEvaluator resolves one overload of a function or method: binds
// self/cls, evaluates parameter annotations and defaults, walks the body
// for return values, generator detection, and constructor attribute
// writes, then appends the resulting Overload (spec.md §4.F.2).
type FunctionEvaluator struct {
	Func        *symbols.FunctionType
	Def         *ast.FuncDef
	Kind        FuncKind
	IsMethod    bool
	Stack       *scope.Stack
	Expr        *evalexpr.Evaluator
	Walker      BodyWalker
	Diagnostics collab.DiagnosticsSink
	Source      string

	// IsLibraryModule marks the declaring module as library-provided
	// rather than user-authored. Library functions with a usable return
	// annotation skip body walking, and their scope locals are cleared
	// once resolved when ClearLocals is set (spec.md §4.F.2 steps 1/6).
	IsLibraryModule bool
	ClearLocals     bool
}

// Run implements registry.Evaluator.
func (f *FunctionEvaluator) Run(r *registry.Registry) {
	if f.Def.ReplacedByStub {
		return // stub's overload already stands in; body is not walked
	}
	guard := f.Stack.Open(f.Def)
	defer guard.Release()
	sc := f.Stack.Current()

	params := f.Def.Params
	startIdx := f.bindFirstArgument(sc, params)

	overloadParams := make([]*symbols.OverloadParam, 0, len(params)-startIdx)
	for i := startIdx; i < len(params); i++ {
		p := params[i]
		var val symbols.Member = symbols.Unknown
		if p.Annotation != nil {
			val = f.Expr.TypeFromAnnotation(p.Annotation, sc, f.Stack)
		} else if p.Default != nil {
			val = f.Expr.Evaluate(p.Default, sc, f.Stack)
		}
		scope.DeclareIn(sc, p.Name, val, symbols.SourceDeclaration, nil)

		op := &symbols.OverloadParam{Name: p.Name, IsVariadic: p.IsVariadic, IsKwDict: p.IsKwDict}
		if p.Annotation != nil {
			op.AnnotatedType = val
		}
		if p.Default != nil {
			op.DefaultType = f.Expr.Evaluate(p.Default, sc, f.Stack)
		}
		overloadParams = append(overloadParams, op)
	}

	// An annotated return is authoritative: materialize an instance of the
	// annotated type and do not widen it with body-collected returns
	// (spec.md §4.F.2 step 3).
	var returnValues []symbols.Member
	fromAnnotation := false
	if f.Def.ReturnType != nil {
		if t, ok := f.Expr.TypeFromAnnotation(f.Def.ReturnType, sc, f.Stack).(symbols.Type); ok {
			returnValues = []symbols.Member{symbols.NewInstance(t)}
			fromAnnotation = true
		}
	}

	if f.shouldWalkBody(fromAnnotation) {
		// Imports first, so statements referencing an imported name
		// resolve during the scan (spec.md §4.D rule 5).
		f.walkImports(sc, f.Def.Body)

		scanned := f.scanBody(f.Def.Body, sc, selfParamName(params, startIdx))
		f.nestedWalk(sc, f.Def.Body)

		// self.attr = v writes become members of the declaring class, so a
		// sibling method's `self.attr` resolves once this body has run
		// (spec.md §4.F.2 step 5, §8 "Constructor visibility").
		if ct, ok := f.Func.DeclaringType.(*symbols.ClassType); ok {
			for name, v := range scanned.selfWrites {
				ct.Members.Set(name, v)
			}
		}

		if f.Def.Name == "__init__" {
			for _, rv := range scanned.returnValues {
				if symbols.IsUnknown(rv) {
					continue
				}
				// `return None` is as good as a bare return; only a real
				// value warrants the warning.
				if cst, ok := rv.(*symbols.Constant); ok && cst.BuiltinTypeID == "None" {
					continue
				}
				reportOn(f.Diagnostics, f.Source, symerrors.ReturnInInit,
					"__init__ must not return a value", spanOf(f.Def))
				break
			}
		}

		if !fromAnnotation {
			returnValues = scanned.returnValues
			if scanned.isGenerator {
				returnValues = []symbols.Member{&symbols.Instance{
					Of:      symbols.NewBuiltinType("Generator"),
					Element: scanned.yieldValue,
				}}
			}
		}
	}

	f.Func.AddOverload(&symbols.Overload{
		Params:               overloadParams,
		ReturnAnnotation:     annotationString(f.Def.ReturnType),
		ReturnValues:         returnValues,
		ReturnFromAnnotation: fromAnnotation,
		Doc:                  f.Def.Doc,
		Node:                 f.Def,
	})

	if f.IsLibraryModule && f.ClearLocals && !hasNestedDeclaration(sc) {
		sc.ClearDeclared()
	}
}

// shouldWalkBody decides step 1 of spec.md §4.F.2: the body is walked when
// the module is user-authored, or the function is a constructor, or no
// usable return annotation exists.
func (f *FunctionEvaluator) shouldWalkBody(hasAnnotatedReturn bool) bool {
	if !f.IsLibraryModule {
		return true
	}
	if f.Def.Name == "__init__" || f.Def.Name == "__new__" {
		return true
	}
	return !hasAnnotatedReturn
}

// hasNestedDeclaration reports whether sc still holds an inner function,
// class or property declaration; such scopes keep their locals since the
// nested declarations remain reachable.
func hasNestedDeclaration(sc *scope.Scope) bool {
	for _, name := range sc.DeclaredNames() {
		v, ok := scope.GetInScope(name, sc)
		if !ok {
			continue
		}
		switch v.(type) {
		case *symbols.FunctionType, *symbols.ClassType, *symbols.PropertyType:
			return true
		}
	}
	return false
}

// bindFirstArgument declares self/cls per f.Kind and reports the matching
// diagnostic when a method has no parameter to bind it to (spec.md
// §4.F.2). Returns the index of the first "real" parameter.
func (f *FunctionEvaluator) bindFirstArgument(sc *scope.Scope, params []*ast.Param) int {
	if !f.IsMethod || f.Kind == KindStatic {
		return 0
	}
	if len(params) == 0 {
		code := symerrors.NoSelfArgument
		if f.Kind == KindClassMethod {
			code = symerrors.NoClsArgument
		}
		reportOn(f.Diagnostics, f.Source, code,
			"method has no first parameter to bind", spanOf(f.Def))
		return 0
	}
	first := params[0]
	var bound symbols.Member
	if f.Kind == KindClassMethod {
		bound = f.Func.DeclaringType
	} else {
		bound = symbols.NewInstance(f.Func.DeclaringType)
	}
	scope.DeclareIn(sc, first.Name, bound, symbols.SourceDeclaration, nil)
	return 1
}

func selfParamName(params []*ast.Param, startIdx int) string {
	if startIdx == 0 || len(params) == 0 {
		return ""
	}
	return params[0].Name
}

func annotationString(expr ast.Expr) string {
	if expr == nil {
		return ""
	}
	return expr.String()
}

type bodyScan struct {
	isGenerator  bool
	yieldValue   symbols.Member // the first yield expression's evaluated type (spec.md §4.F.2 step 3)
	returnValues []symbols.Member
	selfWrites   map[string]symbols.Member
}

// scanBody walks a function body for return values, yield expressions,
// and `self.attr = value` assignments, evaluating each against sc. It
// does not descend into nested FuncDef/ClassDef bodies — those get their
// own evaluator and their own scope.
func (f *FunctionEvaluator) scanBody(body []ast.Stmt, sc *scope.Scope, selfName string) *bodyScan {
	s := &bodyScan{selfWrites: map[string]symbols.Member{}}

	var visitExpr func(ast.Expr)
	visitExpr = func(e ast.Expr) {
		if e == nil {
			return
		}
		switch x := e.(type) {
		case *ast.Yield:
			if !s.isGenerator {
				s.isGenerator = true
				s.yieldValue = f.Expr.Evaluate(x.Value, sc, f.Stack)
			}
			visitExpr(x.Value)
		case *ast.Call:
			visitExpr(x.Func)
			for _, a := range x.Args {
				visitExpr(a)
			}
			for _, k := range x.Keywords {
				visitExpr(k.Value)
			}
		case *ast.BinOp:
			visitExpr(x.Left)
			visitExpr(x.Right)
		case *ast.UnaryOp:
			visitExpr(x.Expr)
		case *ast.Tuple:
			for _, el := range x.Elements {
				visitExpr(el)
			}
		case *ast.List:
			for _, el := range x.Elements {
				visitExpr(el)
			}
		case *ast.Dict:
			for _, en := range x.Entries {
				visitExpr(en.Key)
				visitExpr(en.Value)
			}
		case *ast.Attribute:
			visitExpr(x.Value)
		case *ast.Subscript:
			visitExpr(x.Value)
			visitExpr(x.Index)
		case *ast.Lambda:
			visitExpr(x.Body)
		}
	}

	var visitStmts func([]ast.Stmt)
	visitStmts = func(stmts []ast.Stmt) {
		for _, stmt := range stmts {
			switch st := stmt.(type) {
			case *ast.ExprStmt:
				visitExpr(st.Value)
			case *ast.Assign:
				visitExpr(st.Value)
				if attr, ok := st.Target.(*ast.Attribute); ok && selfName != "" {
					if n, ok := attr.Value.(*ast.Name); ok && n.Id == selfName {
						v := f.Expr.Evaluate(st.Value, sc, f.Stack)
						s.selfWrites[attr.Attr] = v
						scope.DeclareIn(sc, attr.Attr, v, symbols.SourceAssignment, nil)
					}
				}
			case *ast.AnnAssign:
				if st.Value != nil {
					visitExpr(st.Value)
				}
			case *ast.Return:
				if st.Value != nil {
					visitExpr(st.Value)
					s.returnValues = append(s.returnValues, f.Expr.Evaluate(st.Value, sc, f.Stack))
				}
			case *ast.If:
				visitExpr(st.Test)
				visitStmts(st.Then)
				visitStmts(st.Else)
			case *ast.Raise:
				visitExpr(st.Exc)
			}
		}
	}
	visitStmts(body)
	return s
}

// walkImports hands any import statement found directly in body to the
// walker and resolves the queued bindings into sc.
func (f *FunctionEvaluator) walkImports(sc *scope.Scope, body []ast.Stmt) {
	var imports []ast.Stmt
	for _, stmt := range body {
		switch stmt.(type) {
		case *ast.Import, *ast.ImportFrom:
			imports = append(imports, stmt)
		}
	}
	if len(imports) > 0 {
		f.Walker.WalkBody(imports, sc, f.Stack)
		f.Walker.ResolveScopeImports(sc)
	}
}

// nestedWalk hands any FuncDef/ClassDef found directly in body to the
// walker so the collector registers and later evaluates them, since
// scanBody deliberately skips descending into them itself.
func (f *FunctionEvaluator) nestedWalk(sc *scope.Scope, body []ast.Stmt) {
	var nested []ast.Stmt
	for _, stmt := range body {
		switch stmt.(type) {
		case *ast.FuncDef, *ast.ClassDef:
			nested = append(nested, stmt)
		}
	}
	if len(nested) > 0 {
		f.Walker.WalkBody(nested, sc, f.Stack)
	}
}

// ---------------------------------------------------------------------------
// PropertyEvaluator
// ---------------------------------------------------------------------------

// PropertyEvaluator resolves a @property-decorated function. Properties
// are restricted to a single overload (spec.md §3 "Property type"); a
// second definition under the same name is an invalid decorator
// combination rather than a second overload.
type PropertyEvaluator struct {
	Property    *symbols.PropertyType
	Def         *ast.FuncDef
	Stack       *scope.Stack
	Expr        *evalexpr.Evaluator
	Walker      BodyWalker
	Diagnostics collab.DiagnosticsSink
	Source      string
}

// Run implements registry.Evaluator.
func (p *PropertyEvaluator) Run(r *registry.Registry) {
	if p.Property.Overload() != nil {
		reportOn(p.Diagnostics, p.Source, symerrors.InvalidDecoratorCombination,
			"property already has a getter overload", spanOf(p.Def))
		return
	}
	if p.Def.ReplacedByStub {
		return
	}
	guard := p.Stack.Open(p.Def)
	defer guard.Release()
	sc := p.Stack.Current()

	if len(p.Def.Params) == 0 {
		reportOn(p.Diagnostics, p.Source, symerrors.NoMethodArgument,
			"property getter has no self parameter", spanOf(p.Def))
	} else {
		scope.DeclareIn(sc, p.Def.Params[0].Name, symbols.NewInstance(p.Property.DeclaringType), symbols.SourceDeclaration, nil)
	}

	var returnValues []symbols.Member
	for _, stmt := range p.Def.Body {
		if ret, ok := stmt.(*ast.Return); ok && ret.Value != nil {
			returnValues = append(returnValues, p.Expr.Evaluate(ret.Value, sc, p.Stack))
		}
	}

	p.Property.SetOverload(&symbols.Overload{
		ReturnAnnotation: annotationString(p.Def.ReturnType),
		ReturnValues:     returnValues,
		Doc:              p.Def.Doc,
		Node:             p.Def,
	})
}

// ---------------------------------------------------------------------------
// ModuleAllEvaluator
// ---------------------------------------------------------------------------

// ModuleAllEvaluator implements __all__ discovery (spec.md §4.F.4): when a
// module assigns a list/tuple literal of string constants to __all__,
// that list becomes the module's export set verbatim; otherwise every
// top-level declared name is exported.
type ModuleAllEvaluator struct {
	Module *symbols.ModuleType
	Root   *scope.Scope
}

// Run implements registry.Evaluator.
func (m *ModuleAllEvaluator) Run(r *registry.Registry) {
	if names, ok := explicitAll(m.Root); ok {
		for _, name := range names {
			if v, ok := scope.GetInScope(name, m.Root); ok {
				m.Module.Exports.Set(name, v)
			}
		}
		return
	}
	for _, name := range m.Root.DeclaredNames() {
		if v, ok := scope.GetInScope(name, m.Root); ok {
			m.Module.Exports.Set(name, v)
		}
	}
}

func explicitAll(root *scope.Scope) ([]string, bool) {
	v, ok := scope.GetInScope("__all__", root)
	if !ok {
		return nil, false
	}
	c, ok := v.(*symbols.Constant)
	if !ok {
		return nil, false
	}
	names, ok := c.Value.([]string)
	return names, ok
}
