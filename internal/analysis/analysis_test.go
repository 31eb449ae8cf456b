package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sunholo/symscope/internal/ast"
	"github.com/sunholo/symscope/internal/collab"
	"github.com/sunholo/symscope/internal/scope"
	"github.com/sunholo/symscope/internal/symbols"
)

func name(id string) *ast.Name { return &ast.Name{Id: id} }

func strLit(s string) *ast.Literal { return &ast.Literal{Kind: ast.StringLit, Value: s} }
func intLit(n int) *ast.Literal    { return &ast.Literal{Kind: ast.IntLit, Value: n} }

func TestForwardReferenceAcrossTopLevelFunctions(t *testing.T) {
	// def first(): return second()
	// def second(): return 1
	first := &ast.FuncDef{
		Name: "first",
		Body: []ast.Stmt{
			&ast.Return{Value: &ast.Call{Func: name("second")}},
		},
	}
	second := &ast.FuncDef{
		Name: "second",
		Body: []ast.Stmt{
			&ast.Return{Value: intLit(1)},
		},
	}
	mod := &ast.Module{Name: "m", Body: []ast.Stmt{first, second}}

	result := AnalyzeModule(mod, "m.py", Dependencies{})

	v, ok := scope.GetInScope("first", result.Root)
	require.True(t, ok, "expected first to be declared")
	ft, ok := v.(*symbols.FunctionType)
	require.True(t, ok)
	require.Len(t, ft.Overloads(), 1)

	rv := ft.Overloads()[0].ReturnValues
	require.Len(t, rv, 1, "want one value (second()'s return)")
	c, ok := rv[0].(*symbols.Constant)
	require.True(t, ok, "first()'s resolved return must come from second() via forward reference")
	require.Equal(t, 1, c.Value)
}

func TestConstructorAttributeVisibleToSiblingMethod(t *testing.T) {
	// class Animal:
	//     def __init__(self, name): self.name = "unnamed"
	//     def describe(self): return self.name
	initFn := &ast.FuncDef{
		Name:   "__init__",
		Params: []*ast.Param{{Name: "self"}, {Name: "name"}},
		Body: []ast.Stmt{
			&ast.Assign{
				Target: &ast.Attribute{Value: name("self"), Attr: "name"},
				Value:  strLit("unnamed"),
			},
		},
	}
	describe := &ast.FuncDef{
		Name:   "describe",
		Params: []*ast.Param{{Name: "self"}},
		Body: []ast.Stmt{
			&ast.Return{Value: &ast.Attribute{Value: name("self"), Attr: "name"}},
		},
	}
	cls := &ast.ClassDef{Name: "Animal", Body: []ast.Stmt{initFn, describe}}
	mod := &ast.Module{Name: "m", Body: []ast.Stmt{cls}}

	result := AnalyzeModule(mod, "m.py", Dependencies{})

	v, ok := scope.GetInScope("Animal", result.Root)
	require.True(t, ok, "expected Animal to be declared")
	ct := v.(*symbols.ClassType)

	member, ok := ct.Members.Get("describe")
	require.True(t, ok, "expected describe to be a member")
	describeFt := member.(*symbols.FunctionType)
	require.Len(t, describeFt.Overloads(), 1)

	rv := describeFt.Overloads()[0].ReturnValues
	require.Len(t, rv, 1)
	require.False(t, symbols.IsUnknown(rv[0]), "describe's return must resolve self.name from the constructor write")
}

func TestGeneratorFunctionReturnsGeneratorInstance(t *testing.T) {
	fn := &ast.FuncDef{
		Name: "gen",
		Body: []ast.Stmt{
			&ast.ExprStmt{Value: &ast.Yield{Value: intLit(1)}},
		},
	}
	mod := &ast.Module{Name: "m", Body: []ast.Stmt{fn}}

	result := AnalyzeModule(mod, "m.py", Dependencies{})
	v, _ := scope.GetInScope("gen", result.Root)
	ft := v.(*symbols.FunctionType)
	rv := ft.Overloads()[0].ReturnValues
	require.Len(t, rv, 1)

	inst, ok := rv[0].(*symbols.Instance)
	require.True(t, ok, "want an Instance of Generator")
	require.Equal(t, "Generator", inst.Of.Name())
	c, ok := inst.Element.(*symbols.Constant)
	require.True(t, ok, "want the generator over int — Element must carry the yielded type")
	require.Equal(t, "int", c.BuiltinTypeID)
}

func TestInvalidBaseReportsDiagnostic(t *testing.T) {
	// x = 1
	// class C(x): pass
	assign := &ast.Assign{Target: name("x"), Value: intLit(1)}
	cls := &ast.ClassDef{Name: "C", Bases: []ast.Expr{name("x")}, Body: []ast.Stmt{&ast.Pass{}}}
	mod := &ast.Module{Name: "m", Body: []ast.Stmt{assign, cls}}

	sink := collab.NewCollectingSink()
	AnalyzeModule(mod, "m.py", Dependencies{Diagnostics: sink})

	entries := sink.For("m.py")
	require.Len(t, entries, 1)
	require.Equal(t, "SYM001", entries[0].Code, "InheritNonClass")
}

func TestStubOverridePreservesSourceDocButReplacesSignature(t *testing.T) {
	stubs := collab.NewMemoryStubProvider()
	stubFn := symbols.NewFunctionType("greet", "m", nil)
	stubFn.AddOverload(&symbols.Overload{
		ReturnAnnotation: "int",
		ReturnValues:     []symbols.Member{&symbols.Constant{BuiltinTypeID: "int", Value: 0}},
	})
	stubs.Register("m", []string{"greet"}, stubFn)

	fn := &ast.FuncDef{
		Name: "greet",
		Doc:  "Return a friendly int.",
		Body: []ast.Stmt{
			&ast.ExprStmt{Value: strLit("Return a friendly int.")},
			&ast.Return{Value: strLit("not actually the real behavior")},
		},
	}
	mod := &ast.Module{Name: "m", Body: []ast.Stmt{fn}}

	result := AnalyzeModule(mod, "m.py", Dependencies{Stubs: stubs})

	v, ok := scope.GetInScope("greet", result.Root)
	require.True(t, ok, "expected greet to be declared")
	ft := v.(*symbols.FunctionType)
	require.Equal(t, "Return a friendly int.", ft.Doc(), "source docstring must be preserved")
	require.Len(t, ft.Overloads(), 1)
	require.Equal(t, "int", ft.Overloads()[0].ReturnAnnotation, "want the stub's int-returning overload")
}

func TestFunctionBaseReportsInheritNonClass(t *testing.T) {
	// def f(): ...
	// class A(f): ...
	fn := &ast.FuncDef{Name: "f", Body: []ast.Stmt{&ast.Pass{}}}
	cls := &ast.ClassDef{Name: "A", Bases: []ast.Expr{name("f")}, Body: []ast.Stmt{&ast.Pass{}}}
	mod := &ast.Module{Name: "m", Body: []ast.Stmt{fn, cls}}

	sink := collab.NewCollectingSink()
	result := AnalyzeModule(mod, "m.py", Dependencies{Diagnostics: sink})

	entries := sink.For("m.py")
	require.Len(t, entries, 1, "exactly one diagnostic")
	require.Equal(t, "SYM001", entries[0].Code, "InheritNonClass")

	v, ok := scope.GetInScope("A", result.Root)
	require.True(t, ok, "A is still declared")
	require.Empty(t, v.(*symbols.ClassType).Bases(), "the function base is not added")
}

func TestBaseResolutionRegistersReferenceOnBaseType(t *testing.T) {
	base := &ast.ClassDef{Name: "Base", Body: []ast.Stmt{&ast.Pass{}}}
	derived := &ast.ClassDef{
		Name:  "Derived",
		Bases: []ast.Expr{name("Base")},
		Body:  []ast.Stmt{&ast.Pass{}},
		Pos:   ast.Pos{Line: 2},
	}
	mod := &ast.Module{Name: "m", Body: []ast.Stmt{base, derived}}

	result := AnalyzeModule(mod, "m.py", Dependencies{})

	v, _ := scope.GetInScope("Base", result.Root)
	locs := v.(*symbols.ClassType).Locations()
	require.NotEmpty(t, locs, "the subclass site must be recorded on the base type")
	require.Equal(t, 2, locs[len(locs)-1].Pos.Line)
}

func TestImportedNameResolvesAsBase(t *testing.T) {
	// from pkglib import Base
	// class C(Base): ...
	baseType := symbols.NewClassType("Base", "pkglib", &ast.ClassDef{Name: "Base"})
	libMod := symbols.NewModuleType("pkglib")
	libMod.Exports.Set("Base", baseType)
	resolver := collab.NewMemoryResolver()
	resolver.Register("pkglib", libMod)

	imp := &ast.ImportFrom{DottedModule: "pkglib", Names: []*ast.ImportFromName{{Name: "Base"}}}
	cls := &ast.ClassDef{Name: "C", Bases: []ast.Expr{name("Base")}, Body: []ast.Stmt{&ast.Pass{}}}
	mod := &ast.Module{Name: "m", Body: []ast.Stmt{imp, cls}}

	sink := collab.NewCollectingSink()
	result := AnalyzeModule(mod, "m.py", Dependencies{Resolver: resolver, Diagnostics: sink})

	v, _ := scope.GetInScope("C", result.Root)
	bases := v.(*symbols.ClassType).Bases()
	require.Len(t, bases, 1, "the module-level import must be visible during base resolution")
	require.Equal(t, symbols.Type(baseType), bases[0])
	require.Empty(t, sink.For("m.py"))
}

func TestClassBodyImportBecomesMember(t *testing.T) {
	// class C:
	//     from pkglib import helper
	//     x = helper()
	helperType := symbols.NewFunctionType("helper", "pkglib", nil)
	helperType.AddOverload(&symbols.Overload{
		ReturnValues: []symbols.Member{&symbols.Constant{BuiltinTypeID: "int", Value: 5}},
	})
	libMod := symbols.NewModuleType("pkglib")
	libMod.Exports.Set("helper", helperType)
	resolver := collab.NewMemoryResolver()
	resolver.Register("pkglib", libMod)

	cls := &ast.ClassDef{Name: "C", Body: []ast.Stmt{
		&ast.ImportFrom{DottedModule: "pkglib", Names: []*ast.ImportFromName{{Name: "helper"}}},
		&ast.Assign{Target: name("x"), Value: &ast.Call{Func: name("helper")}},
	}}
	mod := &ast.Module{Name: "m", Body: []ast.Stmt{cls}}

	result := AnalyzeModule(mod, "m.py", Dependencies{Resolver: resolver})

	ct := mustClass(t, result.Root, "C")
	h, ok := ct.Members.Get("helper")
	require.True(t, ok, "the class-body import is synced into the member map")
	require.Equal(t, symbols.Type(helperType), h)

	x, ok := ct.Members.Get("x")
	require.True(t, ok)
	c, ok := x.(*symbols.Constant)
	require.True(t, ok, "x must see the imported helper's return, so the import resolved before the assignment")
	require.Equal(t, 5, c.Value)
}

func mustClass(t *testing.T, root *scope.Scope, name string) *symbols.ClassType {
	t.Helper()
	v, ok := scope.GetInScope(name, root)
	require.True(t, ok)
	ct, ok := v.(*symbols.ClassType)
	require.True(t, ok)
	return ct
}

func TestStubOverrideRequiresMatchingArity(t *testing.T) {
	stubs := collab.NewMemoryStubProvider()
	stubFn := symbols.NewFunctionType("greet", "m", nil)
	stubFn.AddOverload(&symbols.Overload{
		Params:           []*symbols.OverloadParam{{Name: "x"}, {Name: "y"}},
		ReturnAnnotation: "int",
	})
	stubs.Register("m", []string{"greet"}, stubFn)

	// Source takes one positional parameter, the stub's overload two: no
	// override, the source's own evaluation stands.
	fn := &ast.FuncDef{
		Name:   "greet",
		Params: []*ast.Param{{Name: "x"}},
		Body: []ast.Stmt{
			&ast.Return{Value: intLit(9)},
		},
	}
	mod := &ast.Module{Name: "m", Body: []ast.Stmt{fn}}

	result := AnalyzeModule(mod, "m.py", Dependencies{Stubs: stubs})

	v, _ := scope.GetInScope("greet", result.Root)
	ft := v.(*symbols.FunctionType)
	require.False(t, fn.ReplacedByStub)
	require.Len(t, ft.Overloads(), 1)
	o := ft.Overloads()[0]
	require.Empty(t, o.ReturnAnnotation, "the stub's signature must not be taken on an arity mismatch")
	require.Len(t, o.ReturnValues, 1)
}

func TestShadowedAnnotationResolvesAgainstLocalBinding(t *testing.T) {
	// s = None
	// def f(x: s): pass
	// where `s` is both a builtin (provided) and shadowed at module scope.
	builtinsMod := &ast.Module{Name: "builtins"}
	builtins := scope.NewStack("builtins", builtinsMod, nil).Root()
	scope.DeclareIn(builtins, "s", symbols.NewBuiltinType("s"), symbols.SourceBuiltin, nil)

	shadowAssign := &ast.Assign{Target: name("s"), Value: &ast.Literal{Kind: ast.NoneLit, Value: nil}}
	fn := &ast.FuncDef{
		Name: "f",
		Params: []*ast.Param{
			{Name: "x", Annotation: name("s")},
		},
		Body: []ast.Stmt{&ast.Pass{}},
	}
	mod := &ast.Module{Name: "m", Body: []ast.Stmt{shadowAssign, fn}}

	result := AnalyzeModule(mod, "m.py", Dependencies{Builtins: builtins})

	v, _ := scope.GetInScope("f", result.Root)
	ft := v.(*symbols.FunctionType)
	params := ft.Overloads()[0].Params
	require.Len(t, params, 1)

	annotated := params[0].AnnotatedType
	c, ok := annotated.(*symbols.Constant)
	require.True(t, ok, "want the module-level None shadow, not the builtin")
	require.Equal(t, "None", c.BuiltinTypeID)
}

func TestModuleAllExportsOnlyListedNames(t *testing.T) {
	allAssign := &ast.Assign{
		Target: name("__all__"),
		Value:  &ast.List{Elements: []ast.Expr{strLit("a")}},
	}
	a := &ast.Assign{Target: name("a"), Value: intLit(1)}
	b := &ast.Assign{Target: name("b"), Value: intLit(2)}
	mod := &ast.Module{Name: "m", Body: []ast.Stmt{allAssign, a, b}}

	result := AnalyzeModule(mod, "m.py", Dependencies{})

	require.Equal(t, 1, result.Module.Exports.Len(), "want only a")
	_, ok := result.Module.Exports.Get("a")
	require.True(t, ok, "expected a to be exported")
}

func TestModuleWithoutAllExportsEveryTopLevelName(t *testing.T) {
	a := &ast.Assign{Target: name("a"), Value: intLit(1)}
	b := &ast.Assign{Target: name("b"), Value: intLit(2)}
	mod := &ast.Module{Name: "m", Body: []ast.Stmt{a, b}}

	result := AnalyzeModule(mod, "m.py", Dependencies{})

	require.Equal(t, 2, result.Module.Exports.Len(), "want a and b")
}

func TestAnnotatedReturnIsAuthoritativeOverBody(t *testing.T) {
	// class Result: pass
	// def make() -> Result: return 1
	cls := &ast.ClassDef{Name: "Result", Body: []ast.Stmt{&ast.Pass{}}}
	fn := &ast.FuncDef{
		Name:       "make",
		ReturnType: name("Result"),
		Body: []ast.Stmt{
			&ast.Return{Value: intLit(1)},
		},
	}
	mod := &ast.Module{Name: "m", Body: []ast.Stmt{cls, fn}}

	result := AnalyzeModule(mod, "m.py", Dependencies{})

	v, _ := scope.GetInScope("make", result.Root)
	ft := v.(*symbols.FunctionType)
	o := ft.Overloads()[0]
	require.True(t, o.ReturnFromAnnotation)
	require.Len(t, o.ReturnValues, 1, "the body's int return must not widen the annotated return")
	inst, ok := o.ReturnValues[0].(*symbols.Instance)
	require.True(t, ok)
	require.Equal(t, "Result", inst.Of.Name())
}

func TestLibraryModuleClearsFunctionLocals(t *testing.T) {
	fn := &ast.FuncDef{
		Name:   "helper",
		Params: []*ast.Param{{Name: "a", Default: intLit(3)}},
		Body: []ast.Stmt{
			&ast.Return{Value: name("a")},
		},
	}
	mod := &ast.Module{Name: "lib", Body: []ast.Stmt{fn}}

	result := AnalyzeModule(mod, "lib.py", Dependencies{IsLibraryModule: true})

	sc, ok := result.Stack.ScopeOf(fn)
	require.True(t, ok)
	require.Empty(t, sc.DeclaredNames(), "library function locals are cleared once resolved")

	v, _ := scope.GetInScope("helper", result.Root)
	require.Len(t, v.(*symbols.FunctionType).Overloads(), 1)
}

func TestCancelledContextLeavesRegistryConsistent(t *testing.T) {
	fn := &ast.FuncDef{
		Name: "f",
		Body: []ast.Stmt{&ast.Return{Value: intLit(1)}},
	}
	mod := &ast.Module{Name: "m", Body: []ast.Stmt{fn}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := AnalyzeModule(mod, "m.py", Dependencies{Ctx: ctx})

	// Collection still declared f; evaluation never ran, so the pending
	// entry survives and the overload list is empty rather than partial.
	v, ok := scope.GetInScope("f", result.Root)
	require.True(t, ok)
	require.Empty(t, v.(*symbols.FunctionType).Overloads())
	require.NotEmpty(t, result.Registry.Pending())
}

func TestEvaluateAllTerminatesWithNothingPending(t *testing.T) {
	// A generated module mixing every declaration kind the collector
	// recognizes; evaluate_all must drain the registry completely, with
	// each declaration evaluated exactly once.
	var body []ast.Stmt
	for i := 0; i < 40; i++ {
		fn := &ast.FuncDef{
			Name: "f" + string(rune('a'+i%26)),
			Pos:  ast.Pos{Line: i + 1},
			Body: []ast.Stmt{&ast.Return{Value: intLit(i)}},
		}
		method := &ast.FuncDef{
			Name:   "m",
			Pos:    ast.Pos{Line: 100 + i},
			Params: []*ast.Param{{Name: "self"}},
			Body:   []ast.Stmt{&ast.Pass{}},
		}
		getter := &ast.FuncDef{
			Name:       "p",
			Pos:        ast.Pos{Line: 200 + i},
			Params:     []*ast.Param{{Name: "self"}},
			Decorators: []*ast.Decorator{{Expr: name("property")}},
			Body:       []ast.Stmt{&ast.Return{Value: intLit(i)}},
		}
		cls := &ast.ClassDef{
			Name: "C" + string(rune('A'+i%26)),
			Pos:  ast.Pos{Line: 300 + i},
			Body: []ast.Stmt{method, getter},
		}
		body = append(body, fn, cls)
	}
	mod := &ast.Module{Name: "m", Body: body}

	result := AnalyzeModule(mod, "m.py", Dependencies{})

	require.Empty(t, result.Registry.Pending(), "evaluate_all must drain every registered evaluator")
}

func TestPlatformPruningSkipsDeadBranch(t *testing.T) {
	// if sys.platform == "win32": def f(): pass
	// else: def f(): return 1
	winFn := &ast.FuncDef{Name: "f", Body: []ast.Stmt{&ast.Pass{}}}
	linuxFn := &ast.FuncDef{Name: "f", Body: []ast.Stmt{&ast.Return{Value: intLit(1)}}}
	ifStmt := &ast.If{
		Test: &ast.BinOp{
			Left:  &ast.Attribute{Value: name("sys"), Attr: "platform"},
			Op:    "==",
			Right: strLit("win32"),
		},
		Then: []ast.Stmt{winFn},
		Else: []ast.Stmt{linuxFn},
	}
	mod := &ast.Module{Name: "m", Body: []ast.Stmt{ifStmt}}

	result := AnalyzeModule(mod, "m.py", Dependencies{Host: collab.HostInfo{IsWindows: false}})

	v, ok := scope.GetInScope("f", result.Root)
	require.True(t, ok, "expected f to be declared from the live (linux) branch")
	ft := v.(*symbols.FunctionType)
	rv := ft.Overloads()[0].ReturnValues
	require.Len(t, rv, 1, "want the linux branch's return 1")
}
