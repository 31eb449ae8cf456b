// Package collect is the symbol collector (spec.md §4.D, component D): a
// single AST walk that declares every class and function placeholder,
// registers its evaluator with the registry, prunes system-predicate
// if-branches against a HostInfo, and queues import statements for later
// resolution rather than resolving them during the walk itself.
package collect

import (
	"github.com/sunholo/symscope/internal/ast"
	"github.com/sunholo/symscope/internal/collab"
	"github.com/sunholo/symscope/internal/evalexpr"
	"github.com/sunholo/symscope/internal/evaluate"
	"github.com/sunholo/symscope/internal/registry"
	"github.com/sunholo/symscope/internal/scope"
	"github.com/sunholo/symscope/internal/symbols"
	"github.com/sunholo/symscope/internal/symerrors"
)

// Collector is the single-walk symbol collector. It implements
// evaluate.BodyWalker so the class and function evaluators can hand a
// nested statement list straight back to it.
type Collector struct {
	Module         string
	Source         string // diagnostics uri
	Stack          *scope.Stack
	Registry       *registry.Registry
	Resolver       collab.ModuleResolver
	Stubs          collab.StubProvider
	Diagnostics    collab.DiagnosticsSink
	Host           collab.HostInfo
	Expr           *evalexpr.Evaluator

	// KeepDeprecated disables rule 4's pruning: by default a class or
	// function decorated `deprecated` is skipped entirely.
	KeepDeprecated bool

	// IsLibraryModule and ClearLibraryLocals are forwarded to every
	// FunctionEvaluator this collector registers (spec.md §4.F.2 steps
	// 1/6: library functions skip body walking when annotated and may
	// clear their locals after resolution).
	IsLibraryModule    bool
	ClearLibraryLocals bool

	pendingImports []pendingImport
}

type pendingImport struct {
	scope  *scope.Scope
	dotted string
	alias  string
	names  []*ast.ImportFromName
}

// CollectModule walks the module's top-level body, starting at the
// stack's root scope. The caller owns constructing the scope.Stack (so
// it can wire in a builtins scope) and later runs c.Registry.EvaluateAll
// plus c.ResolveImports.
func (c *Collector) CollectModule(mod *ast.Module) {
	c.WalkBody(mod.Body, c.Stack.Root(), c.Stack)
}

// WalkBody implements evaluate.BodyWalker (spec.md §4.D): it dispatches
// each statement to the matching collection rule. Declarations and
// assignments land directly in sc; class/function declarations also
// register an evaluator with the registry.
func (c *Collector) WalkBody(body []ast.Stmt, sc *scope.Scope, st *scope.Stack) {
	for _, stmt := range body {
		switch s := stmt.(type) {
		case *ast.ClassDef:
			c.collectClass(s, sc, st)
		case *ast.FuncDef:
			c.collectFunction(s, sc, st)
		case *ast.Import:
			c.pendingImports = append(c.pendingImports, pendingImport{scope: sc, dotted: s.DottedName, alias: s.Alias})
		case *ast.ImportFrom:
			c.pendingImports = append(c.pendingImports, pendingImport{scope: sc, dotted: s.DottedModule, names: s.Names})
		case *ast.Assign:
			c.collectAssign(s, sc, st)
		case *ast.AnnAssign:
			c.collectAnnAssign(s, sc, st)
		case *ast.If:
			c.collectIf(s, sc, st)
		default:
			// ExprStmt, Return, Raise, Pass: inert for symbol collection.
		}
	}
}

// ---------------------------------------------------------------------------
// Rule 1: class declaration
// ---------------------------------------------------------------------------

func (c *Collector) collectClass(s *ast.ClassDef, sc *scope.Scope, st *scope.Stack) {
	if !c.KeepDeprecated && hasClassDecorator(s, "deprecated") {
		return
	}

	ct := symbols.NewClassType(s.Name, c.Module, s)
	ct.SetDoc(s.Doc)
	ct.IsGeneric = hasGenericBase(s.Bases)

	loc := &symbols.Location{Pos: s.Pos, Span: s.Span, IsDeclaration: true}
	scope.DeclareIn(sc, s.Name, ct, symbols.SourceDeclaration, loc)

	id := c.Registry.IDFor(s, s.Pos.Line, s.Pos.Column, "class")
	c.Registry.AddOwned(id, s, registry.WaveClass, &evaluate.ClassEvaluator{
		Class:       ct,
		Def:         s,
		Stack:       st,
		Expr:        c.Expr,
		Walker:      c,
		Diagnostics: c.Diagnostics,
		Source:      c.Source,
		DeclScope:   sc,
	}, ct)
}

// hasGenericBase reports whether any base expression is a subscript
// (`Generic[T]`, `Protocol[T]`), the textual marker of a generic class.
func hasGenericBase(bases []ast.Expr) bool {
	for _, b := range bases {
		if _, ok := b.(*ast.Subscript); ok {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Rule 2: function kind classification, overload-or-new, stub override
// ---------------------------------------------------------------------------

func (c *Collector) collectFunction(s *ast.FuncDef, sc *scope.Scope, st *scope.Stack) {
	if !c.KeepDeprecated && hasDecorator(s, "deprecated") {
		return
	}

	kind, ok := c.classifyKind(s)
	if !ok {
		return // invalid decorator combination already reported
	}

	declaringType := currentClassType(sc)
	isMethod := declaringType != nil

	if kind == evaluate.KindProperty || kind == evaluate.KindAbstractProperty {
		c.collectProperty(s, sc, st, declaringType, kind)
		return
	}

	ft := c.existingFunction(s.Name, sc)
	if ft == nil {
		ft = symbols.NewFunctionType(s.Name, c.Module, declaringType)
		ft.IsStatic = kind == evaluate.KindStatic
		ft.IsClassMethod = kind == evaluate.KindClassMethod
		loc := &symbols.Location{Pos: s.Pos, Span: s.Span, IsDeclaration: true}
		scope.DeclareIn(sc, s.Name, ft, symbols.SourceDeclaration, loc)
	}

	if stubFn, ok := c.stubOverride(s.Name, declaringType); ok &&
		stubArityMatches(stubFn, s, isMethod && kind != evaluate.KindStatic) {
		s.ReplacedByStub = true
		for _, o := range stubFn.Overloads() {
			ft.AddOverload(o)
		}
		ft.SetDoc(s.Doc) // stub's signature wins; source's docstring is kept
		return
	}

	id := c.Registry.IDFor(s, s.Pos.Line, s.Pos.Column, "function")
	c.Registry.AddOwned(id, s, registry.WaveFunction, &evaluate.FunctionEvaluator{
		Func:            ft,
		Def:             s,
		Kind:            kind,
		IsMethod:        isMethod,
		Stack:           st,
		Expr:            c.Expr,
		Walker:          c,
		Diagnostics:     c.Diagnostics,
		Source:          c.Source,
		IsLibraryModule: c.IsLibraryModule,
		ClearLocals:     c.ClearLibraryLocals,
	}, ft)
}

func (c *Collector) existingFunction(name string, sc *scope.Scope) *symbols.FunctionType {
	existing, ok := scope.GetInScope(name, sc)
	if !ok {
		return nil
	}
	ft, ok := existing.(*symbols.FunctionType)
	if !ok {
		return nil
	}
	return ft
}

// classifyKind reads a function's decorators to determine its kind,
// reporting InvalidDecoratorCombination when more than one of
// staticmethod/classmethod/property is present (spec.md §4.D rule 2).
func (c *Collector) classifyKind(s *ast.FuncDef) (evaluate.FuncKind, bool) {
	var sawStatic, sawClassMethod, sawProperty, sawAbstract bool
	for _, d := range s.Decorators {
		switch d.Name() {
		case "staticmethod":
			sawStatic = true
		case "abstractstaticmethod":
			sawStatic = true
			sawAbstract = true
		case "classmethod":
			sawClassMethod = true
		case "abstractclassmethod":
			sawClassMethod = true
			sawAbstract = true
		case "property", "cached_property", "classproperty":
			sawProperty = true
		case "abstractproperty", "abstractclassproperty":
			sawProperty = true
			sawAbstract = true
		case "abstractmethod":
			sawAbstract = true
		}
	}
	exclusive := 0
	for _, b := range []bool{sawStatic, sawClassMethod, sawProperty} {
		if b {
			exclusive++
		}
	}
	// An abstract property accepts any combination; it exists to be
	// overridden (spec.md §4.F.3).
	if exclusive > 1 && !(sawProperty && sawAbstract) {
		reportOn(c.Diagnostics, c.Source, symerrors.InvalidDecoratorCombination,
			"staticmethod, classmethod and property are mutually exclusive", spanOf(s))
		return evaluate.KindPlain, false
	}
	switch {
	case sawProperty && sawAbstract:
		return evaluate.KindAbstractProperty, true
	case sawProperty:
		return evaluate.KindProperty, true
	case sawStatic:
		return evaluate.KindStatic, true
	case sawClassMethod:
		return evaluate.KindClassMethod, true
	default:
		return evaluate.KindPlain, true
	}
}

func hasDecorator(s *ast.FuncDef, name string) bool {
	for _, d := range s.Decorators {
		if d.Name() == name {
			return true
		}
	}
	return false
}

func hasClassDecorator(s *ast.ClassDef, name string) bool {
	for _, d := range s.Decorators {
		if d.Name() == name {
			return true
		}
	}
	return false
}

// currentClassType reports the class a scope is nested directly inside,
// via the `__class__` magic binding the class evaluator declares before
// walking its body (spec.md §4.F.1 step 5).
func currentClassType(sc *scope.Scope) symbols.Type {
	v, ok := scope.GetInScope("__class__", sc)
	if !ok {
		return nil
	}
	t, ok := v.(symbols.Type)
	if !ok {
		return nil
	}
	return t
}

func (c *Collector) stubOverride(name string, declaringType symbols.Type) (*symbols.FunctionType, bool) {
	if c.Stubs == nil {
		return nil, false
	}
	path := []string{name}
	if declaringType != nil {
		path = []string{declaringType.Name(), name}
	}
	return c.Stubs.LookupFunction(c.Module, path)
}

// stubArityMatches reports whether any stub overload has the same number
// of positional parameters as the source definition (spec.md §4.D rule 2:
// the stub replaces the source only on an arity match). Overload params
// never include the bound first parameter, so it is stripped from the
// source's count for bound and class methods.
func stubArityMatches(stub *symbols.FunctionType, def *ast.FuncDef, boundMethod bool) bool {
	want := 0
	for _, p := range def.Params {
		if !p.IsVariadic && !p.IsKwDict {
			want++
		}
	}
	if boundMethod && want > 0 {
		want--
	}
	for _, o := range stub.Overloads() {
		if len(o.Params) == want {
			return true
		}
	}
	return false
}

func (c *Collector) collectProperty(s *ast.FuncDef, sc *scope.Scope, st *scope.Stack, declaringType symbols.Type, kind evaluate.FuncKind) {
	var pt *symbols.PropertyType
	if existing, ok := scope.GetInScope(s.Name, sc); ok {
		if p, ok := existing.(*symbols.PropertyType); ok {
			pt = p
		}
	}
	if pt == nil {
		pt = symbols.NewPropertyType(s.Name, c.Module, declaringType)
		pt.IsAbstract = kind == evaluate.KindAbstractProperty
		loc := &symbols.Location{Pos: s.Pos, Span: s.Span, IsDeclaration: true}
		scope.DeclareIn(sc, s.Name, pt, symbols.SourceDeclaration, loc)
	}

	id := c.Registry.IDFor(s, s.Pos.Line, s.Pos.Column, "property")
	c.Registry.AddOwned(id, s, registry.WaveFunction, &evaluate.PropertyEvaluator{
		Property:    pt,
		Def:         s,
		Stack:       st,
		Expr:        c.Expr,
		Walker:      c,
		Diagnostics: c.Diagnostics,
		Source:      c.Source,
	}, pt)
}

// ---------------------------------------------------------------------------
// Assignments
// ---------------------------------------------------------------------------

func (c *Collector) collectAssign(s *ast.Assign, sc *scope.Scope, st *scope.Stack) {
	n, ok := s.Target.(*ast.Name)
	if !ok {
		return // attribute/subscript targets are handled by the function evaluator's self.x scan
	}
	v := c.Expr.Evaluate(s.Value, sc, st)
	loc := &symbols.Location{Pos: s.Pos, Span: ast.Span{Start: s.Pos, End: s.Pos}}
	scope.DeclareIn(sc, n.Id, v, symbols.SourceAssignment, loc)
}

func (c *Collector) collectAnnAssign(s *ast.AnnAssign, sc *scope.Scope, st *scope.Stack) {
	n, ok := s.Target.(*ast.Name)
	if !ok {
		return
	}
	var v symbols.Member = symbols.Unknown
	if s.Annotation != nil {
		if t := c.Expr.TypeFromAnnotation(s.Annotation, sc, st); !symbols.IsUnknown(t) {
			if typ, ok := t.(symbols.Type); ok {
				v = symbols.NewInstance(typ)
			} else {
				v = t
			}
		}
	}
	if s.Value != nil {
		if rv := c.Expr.Evaluate(s.Value, sc, st); symbols.IsUnknown(v) {
			v = rv
		}
	}
	loc := &symbols.Location{Pos: s.Pos, Span: ast.Span{Start: s.Pos, End: s.Pos}}
	scope.DeclareIn(sc, n.Id, v, symbols.SourceDeclaration, loc)
}

// ---------------------------------------------------------------------------
// Rule 3: system-predicate if-pruning
// ---------------------------------------------------------------------------

func (c *Collector) collectIf(s *ast.If, sc *scope.Scope, st *scope.Stack) {
	if branch, matched := prunedBranch(s, c.Host); matched {
		c.WalkBody(branch, sc, st)
		return
	}
	c.WalkBody(s.Then, sc, st)
	c.WalkBody(s.Else, sc, st)
}

// prunedBranch recognizes the known system predicates — `sys.platform`,
// `sys.version_info`, `sys.byteorder`, and the os-module name checks
// (`os.name`, `os.path._names`) — and picks the single live branch, so
// declarations under a dead branch for another platform, byte order or
// language version are never collected (spec.md §4.D rule 3).
func prunedBranch(s *ast.If, host collab.HostInfo) ([]ast.Stmt, bool) {
	if op, str, ok := sysStringEquality(s.Test, "platform"); ok {
		live := evalStringCompare(op, hostPlatformString(host), str)
		return chooseBranch(s, live)
	}
	if op, str, ok := sysStringEquality(s.Test, "byteorder"); ok {
		live := evalStringCompare(op, hostByteorderString(host), str)
		return chooseBranch(s, live)
	}
	if live, ok := osNamesCheck(s.Test, host); ok {
		return chooseBranch(s, live)
	}
	if op, major, minor, ok := versionCheck(s.Test); ok {
		live := evalVersionCompare(op, host.LanguageVersion.Major, host.LanguageVersion.Minor, major, minor)
		return chooseBranch(s, live)
	}
	return nil, false
}

func chooseBranch(s *ast.If, live bool) ([]ast.Stmt, bool) {
	if live {
		return s.Then, true
	}
	return s.Else, true
}

func hostPlatformString(host collab.HostInfo) string {
	if host.IsWindows {
		return "win32"
	}
	return "linux"
}

func hostByteorderString(host collab.HostInfo) string {
	if host.IsLittleEndian {
		return "little"
	}
	return "big"
}

// sysStringEquality matches `sys.<attr> == "..."` / `sys.<attr> != "..."`.
func sysStringEquality(test ast.Expr, attr string) (op, value string, ok bool) {
	b, ok := test.(*ast.BinOp)
	if !ok || (b.Op != "==" && b.Op != "!=") {
		return "", "", false
	}
	if !isSysAttr(b.Left, attr) {
		return "", "", false
	}
	lit, ok := b.Right.(*ast.Literal)
	if !ok || lit.Kind != ast.StringLit {
		return "", "", false
	}
	str, _ := lit.Value.(string)
	return b.Op, str, true
}

// osNamesCheck matches the two os-module spellings of a platform test:
// `os.name == "nt"` and `"nt" in os.path._names`.
func osNamesCheck(test ast.Expr, host collab.HostInfo) (live, ok bool) {
	b, isBin := test.(*ast.BinOp)
	if !isBin {
		return false, false
	}
	switch b.Op {
	case "==", "!=":
		if !isOSAttr(b.Left, "name") {
			return false, false
		}
		lit, isLit := b.Right.(*ast.Literal)
		if !isLit || lit.Kind != ast.StringLit {
			return false, false
		}
		str, _ := lit.Value.(string)
		match, known := osNameMatches(str, host)
		if !known {
			return false, false
		}
		if b.Op == "!=" {
			match = !match
		}
		return match, true
	case "in", "not in":
		lit, isLit := b.Left.(*ast.Literal)
		if !isLit || lit.Kind != ast.StringLit {
			return false, false
		}
		if !isOSPathNames(b.Right) {
			return false, false
		}
		str, _ := lit.Value.(string)
		match, known := osNameMatches(str, host)
		if !known {
			return false, false
		}
		if b.Op == "not in" {
			match = !match
		}
		return match, true
	default:
		return false, false
	}
}

func osNameMatches(name string, host collab.HostInfo) (match, known bool) {
	switch name {
	case "nt":
		return host.IsWindows, true
	case "posix":
		return !host.IsWindows, true
	default:
		return false, false
	}
}

func isOSAttr(e ast.Expr, attr string) bool {
	a, ok := e.(*ast.Attribute)
	if !ok || a.Attr != attr {
		return false
	}
	n, ok := a.Value.(*ast.Name)
	return ok && n.Id == "os"
}

// isOSPathNames matches `os.path._names` (and the shorter `os._names`).
func isOSPathNames(e ast.Expr) bool {
	a, ok := e.(*ast.Attribute)
	if !ok || a.Attr != "_names" {
		return false
	}
	switch v := a.Value.(type) {
	case *ast.Name:
		return v.Id == "os"
	case *ast.Attribute:
		if v.Attr != "path" {
			return false
		}
		n, ok := v.Value.(*ast.Name)
		return ok && n.Id == "os"
	default:
		return false
	}
}

// versionCheck matches `sys.version_info >= (major, minor)` style checks.
func versionCheck(test ast.Expr) (op string, major, minor int, ok bool) {
	b, ok := test.(*ast.BinOp)
	if !ok {
		return "", 0, 0, false
	}
	if !isSysAttr(b.Left, "version_info") {
		return "", 0, 0, false
	}
	tup, ok := b.Right.(*ast.Tuple)
	if !ok || len(tup.Elements) == 0 {
		return "", 0, 0, false
	}
	major, ok = intLit(tup.Elements[0])
	if !ok {
		return "", 0, 0, false
	}
	if len(tup.Elements) > 1 {
		minor, _ = intLit(tup.Elements[1])
	}
	return b.Op, major, minor, true
}

func isSysAttr(e ast.Expr, attr string) bool {
	a, ok := e.(*ast.Attribute)
	if !ok || a.Attr != attr {
		return false
	}
	n, ok := a.Value.(*ast.Name)
	return ok && n.Id == "sys"
}

func intLit(e ast.Expr) (int, bool) {
	lit, ok := e.(*ast.Literal)
	if !ok {
		return 0, false
	}
	switch v := lit.Value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}

func evalStringCompare(op, a, b string) bool {
	switch op {
	case "==":
		return a == b
	case "!=":
		return a != b
	default:
		return false
	}
}

func evalVersionCompare(op string, hostMajor, hostMinor, major, minor int) bool {
	host := hostMajor*1000 + hostMinor
	want := major*1000 + minor
	switch op {
	case "==":
		return host == want
	case "!=":
		return host != want
	case "<":
		return host < want
	case "<=":
		return host <= want
	case ">":
		return host > want
	case ">=":
		return host >= want
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Rule 5: imports queued, resolved separately
// ---------------------------------------------------------------------------

// ResolveImports resolves every queued import against c.Resolver and
// declares the resulting bindings as imported (spec.md §4.D rule 5). It
// runs after CollectModule, never during it, so an import's target
// module can itself still be mid-analysis without deadlocking this walk.
func (c *Collector) ResolveImports() {
	if c.Resolver == nil {
		c.pendingImports = nil
		return
	}
	for _, imp := range c.pendingImports {
		c.resolveImport(imp)
	}
	c.pendingImports = nil
}

// ResolveScopeImports implements evaluate.BodyWalker: it resolves only the
// imports queued against sc, leaving the rest pending. The class and
// function evaluators call this right after walking a scope's import
// statements, so the scope's remaining statements see the imported
// bindings (spec.md §4.F.1 step 6 "First, import statements").
func (c *Collector) ResolveScopeImports(sc *scope.Scope) {
	if c.Resolver == nil {
		return
	}
	remaining := c.pendingImports[:0]
	for _, imp := range c.pendingImports {
		if imp.scope != sc {
			remaining = append(remaining, imp)
			continue
		}
		c.resolveImport(imp)
	}
	c.pendingImports = remaining
}

func (c *Collector) resolveImport(imp pendingImport) {
	handle, err := c.Resolver.Import(imp.dotted)
	if err != nil || handle == nil {
		return
	}
	if imp.names == nil {
		name := imp.alias
		if name == "" {
			name = firstDottedComponent(imp.dotted)
		}
		scope.DeclareImportedIn(imp.scope, name, handle.Type, nil)
		return
	}
	for _, n := range imp.names {
		member, ok := handle.Type.Exports.Get(n.Name)
		if !ok {
			continue
		}
		name := n.Alias
		if name == "" {
			name = n.Name
		}
		scope.DeclareImportedIn(imp.scope, name, member, nil)
	}
}

func firstDottedComponent(dotted string) string {
	for i, r := range dotted {
		if r == '.' {
			return dotted[:i]
		}
	}
	return dotted
}

func reportOn(d collab.DiagnosticsSink, source, code, message string, span ast.Span) {
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
