package evalexpr

import (
	"testing"

	"github.com/sunholo/symscope/internal/ast"
	"github.com/sunholo/symscope/internal/scope"
	"github.com/sunholo/symscope/internal/symbols"
)

func newStack() (*scope.Stack, *scope.Scope) {
	mod := &ast.Module{Name: "m"}
	st := scope.NewStack("m", mod, nil)
	return st, st.Root()
}

func TestEvaluateLiteral(t *testing.T) {
	st, sc := newStack()
	e := &Evaluator{}
	v := e.Evaluate(&ast.Literal{Kind: ast.IntLit, Value: 1}, sc, st)
	c, ok := v.(*symbols.Constant)
	if !ok || c.BuiltinTypeID != "int" {
		t.Fatalf("v = %#v", v)
	}
}

func TestEvaluateNameResolvesThroughScope(t *testing.T) {
	st, sc := newStack()
	st.Declare("x", &symbols.Constant{BuiltinTypeID: "str", Value: "hi"}, symbols.SourceAssignment, nil)
	e := &Evaluator{}
	v := e.Evaluate(&ast.Name{Id: "x"}, sc, st)
	c, ok := v.(*symbols.Constant)
	if !ok || c.Value != "hi" {
		t.Fatalf("v = %#v", v)
	}
}

func TestEvaluateUnresolvedNameIsUnknown(t *testing.T) {
	st, sc := newStack()
	e := &Evaluator{}
	v := e.Evaluate(&ast.Name{Id: "nope"}, sc, st)
	if !symbols.IsUnknown(v) {
		t.Fatalf("v = %#v, want Unknown", v)
	}
}

func TestEvaluateAttributeOnInstanceWalksClassMembers(t *testing.T) {
	st, sc := newStack()
	ct := symbols.NewClassType("Animal", "m", nil)
	ct.Members.Set("name", &symbols.Constant{BuiltinTypeID: "str", Value: "rex"})
	st.Declare("a", symbols.NewInstance(ct), symbols.SourceAssignment, nil)

	e := &Evaluator{}
	v := e.Evaluate(&ast.Attribute{Value: &ast.Name{Id: "a"}, Attr: "name"}, sc, st)
	c, ok := v.(*symbols.Constant)
	if !ok || c.Value != "rex" {
		t.Fatalf("v = %#v", v)
	}
}

func TestEvaluateAttributeWalksBaseClasses(t *testing.T) {
	st, sc := newStack()
	base := symbols.NewClassType("Base", "m", nil)
	base.Members.Set("shared", &symbols.Constant{BuiltinTypeID: "int", Value: 7})
	derived := symbols.NewClassType("Derived", "m", nil)
	derived.AddBase(base)
	st.Declare("d", symbols.NewInstance(derived), symbols.SourceAssignment, nil)

	e := &Evaluator{}
	v := e.Evaluate(&ast.Attribute{Value: &ast.Name{Id: "d"}, Attr: "shared"}, sc, st)
	c, ok := v.(*symbols.Constant)
	if !ok || c.Value != 7 {
		t.Fatalf("v = %#v, want shared base member", v)
	}
}

func TestEvaluateCallOnClassYieldsInstance(t *testing.T) {
	st, sc := newStack()
	ct := symbols.NewClassType("Animal", "m", nil)
	st.Declare("Animal", ct, symbols.SourceDeclaration, nil)

	e := &Evaluator{}
	v := e.Evaluate(&ast.Call{Func: &ast.Name{Id: "Animal"}}, sc, st)
	inst, ok := v.(*symbols.Instance)
	if !ok || inst.Of != symbols.Type(ct) {
		t.Fatalf("v = %#v, want Instance of Animal", v)
	}
}

func TestEvaluateCallDemandsPendingClass(t *testing.T) {
	st, sc := newStack()
	ct := symbols.NewClassType("Animal", "m", nil)
	st.Declare("Animal", ct, symbols.SourceDeclaration, nil)

	demanded := false
	e := &Evaluator{Demand: func(t symbols.Type) {
		if t == symbols.Type(ct) {
			demanded = true
		}
	}}
	e.Evaluate(&ast.Call{Func: &ast.Name{Id: "Animal"}}, sc, st)
	if !demanded {
		t.Fatal("expected the class constructor call to demand the class's evaluator")
	}
}

func TestEvaluateCallPicksBestMatchingOverloadByArgCount(t *testing.T) {
	st, sc := newStack()
	ft := symbols.NewFunctionType("f", "m", nil)
	ft.AddOverload(&symbols.Overload{
		Params:       []*symbols.OverloadParam{{Name: "a"}},
		ReturnValues: []symbols.Member{&symbols.Constant{BuiltinTypeID: "str", Value: "one-arg"}},
	})
	ft.AddOverload(&symbols.Overload{
		Params:       []*symbols.OverloadParam{{Name: "a"}, {Name: "b"}},
		ReturnValues: []symbols.Member{&symbols.Constant{BuiltinTypeID: "str", Value: "two-arg"}},
	})
	st.Declare("f", ft, symbols.SourceDeclaration, nil)

	e := &Evaluator{}
	v := e.Evaluate(&ast.Call{Func: &ast.Name{Id: "f"}, Args: []ast.Expr{
		&ast.Literal{Kind: ast.IntLit, Value: 1},
		&ast.Literal{Kind: ast.IntLit, Value: 2},
	}}, sc, st)
	c, ok := v.(*symbols.Constant)
	if !ok || c.Value != "two-arg" {
		t.Fatalf("v = %#v, want two-arg overload's return", v)
	}
}

func TestEvaluateSubscriptGenericInstantiation(t *testing.T) {
	st, sc := newStack()
	ct := symbols.NewClassType("List", "m", nil)
	ct.IsGeneric = true
	st.Declare("List", ct, symbols.SourceDeclaration, nil)
	st.Declare("int", symbols.NewBuiltinType("int"), symbols.SourceBuiltin, nil)

	e := &Evaluator{}
	v := e.Evaluate(&ast.Subscript{Value: &ast.Name{Id: "List"}, Index: &ast.Name{Id: "int"}}, sc, st)
	inst, ok := v.(*symbols.Instance)
	if !ok || inst.Of != symbols.Type(ct) {
		t.Fatalf("v = %#v, want Instance of List", v)
	}
}

func TestTypeFromAnnotationRespectsOuterShadowOverBuiltin(t *testing.T) {
	mod := &ast.Module{Name: "m"}
	builtins := scope.NewStack("builtins", mod, nil).Root()
	scope.DeclareIn(builtins, "str", symbols.NewBuiltinType("str"), symbols.SourceBuiltin, nil)

	st := scope.NewStack("m", mod, builtins)
	shadow := &symbols.Constant{BuiltinTypeID: "None", Value: nil}
	st.Declare("str", shadow, symbols.SourceAssignment, nil) // module-level shadow

	fn := &ast.FuncDef{Name: "f"}
	guard := st.Open(fn)
	defer guard.Release()

	e := &Evaluator{}
	v := e.TypeFromAnnotation(&ast.Name{Id: "str"}, st.Current(), st)
	if v != symbols.Member(shadow) {
		t.Fatalf("v = %#v, want the outer-scope shadow found before falling back to builtins", v)
	}
}

func TestFoldComparisonForSystemPredicates(t *testing.T) {
	b := &ast.BinOp{
		Left:  &ast.Literal{Kind: ast.IntLit, Value: 3},
		Op:    ">=",
		Right: &ast.Literal{Kind: ast.IntLit, Value: 3},
	}
	st, sc := newStack()
	e := &Evaluator{}
	v := e.Evaluate(b, sc, st)
	c, ok := v.(*symbols.Constant)
	if !ok || c.BuiltinTypeID != "bool" || c.Value != true {
		t.Fatalf("v = %#v, want folded bool(true)", v)
	}
}
