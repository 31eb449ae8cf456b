// Package astjson decodes a JSON-encoded syntax tree into internal/ast
// nodes. It exists because this module's Parser is an external
// collaborator (spec.md §1/§6): cmd/symcheck has no lexer/parser of its
// own, so it reads a tree that something else already parsed and
// serialized, using a small discriminated-union encoding ("kind" tags
// fanning out to the matching ast.* struct).
package astjson

import (
	"encoding/json"
	"fmt"

	"github.com/sunholo/symscope/internal/ast"
)

// Decode parses a JSON document into an *ast.Module.
func Decode(data []byte) (*ast.Module, error) {
	var doc struct {
		Name   string            `json:"name"`
		Body   []json.RawMessage `json:"body"`
		IsStub bool              `json:"is_stub"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("astjson: decode module: %w", err)
	}
	body, err := decodeStmts(doc.Body)
	if err != nil {
		return nil, err
	}
	return &ast.Module{Name: doc.Name, Body: body, IsStub: doc.IsStub}, nil
}

func kindOf(raw json.RawMessage) (string, error) {
	var tag struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return "", err
	}
	return tag.Kind, nil
}

func decodeStmts(raws []json.RawMessage) ([]ast.Stmt, error) {
	out := make([]ast.Stmt, 0, len(raws))
	for _, raw := range raws {
		s, err := decodeStmt(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeExprs(raws []json.RawMessage) ([]ast.Expr, error) {
	out := make([]ast.Expr, 0, len(raws))
	for _, raw := range raws {
		e, err := decodeExpr(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func decodeExpr(raw json.RawMessage) (ast.Expr, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	kind, err := kindOf(raw)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "name":
		var v struct {
			Id string `json:"id"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return &ast.Name{Id: v.Id}, nil
	case "literal":
		var v struct {
			LitKind string      `json:"lit_kind"`
			Value   interface{} `json:"value"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return &ast.Literal{Kind: literalKind(v.LitKind), Value: normalizeLiteral(v.LitKind, v.Value)}, nil
	case "attribute":
		var v struct {
			Value json.RawMessage `json:"value"`
			Attr  string          `json:"attr"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		val, err := decodeExpr(v.Value)
		if err != nil {
			return nil, err
		}
		return &ast.Attribute{Value: val, Attr: v.Attr}, nil
	case "subscript":
		var v struct {
			Value json.RawMessage `json:"value"`
			Index json.RawMessage `json:"index"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		val, err := decodeExpr(v.Value)
		if err != nil {
			return nil, err
		}
		idx, err := decodeExpr(v.Index)
		if err != nil {
			return nil, err
		}
		return &ast.Subscript{Value: val, Index: idx}, nil
	case "call":
		var v struct {
			Func     json.RawMessage   `json:"func"`
			Args     []json.RawMessage `json:"args"`
			Keywords []struct {
				Name  string          `json:"name"`
				Value json.RawMessage `json:"value"`
			} `json:"keywords"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		fn, err := decodeExpr(v.Func)
		if err != nil {
			return nil, err
		}
		args, err := decodeExprs(v.Args)
		if err != nil {
			return nil, err
		}
		kws := make([]*ast.Keyword, 0, len(v.Keywords))
		for _, k := range v.Keywords {
			val, err := decodeExpr(k.Value)
			if err != nil {
				return nil, err
			}
			kws = append(kws, &ast.Keyword{Name: k.Name, Value: val})
		}
		return &ast.Call{Func: fn, Args: args, Keywords: kws}, nil
	case "binop":
		var v struct {
			Left  json.RawMessage `json:"left"`
			Op    string          `json:"op"`
			Right json.RawMessage `json:"right"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		l, err := decodeExpr(v.Left)
		if err != nil {
			return nil, err
		}
		rr, err := decodeExpr(v.Right)
		if err != nil {
			return nil, err
		}
		return &ast.BinOp{Left: l, Op: v.Op, Right: rr}, nil
	case "unaryop":
		var v struct {
			Op   string          `json:"op"`
			Expr json.RawMessage `json:"expr"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		e, err := decodeExpr(v.Expr)
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Op: v.Op, Expr: e}, nil
	case "tuple", "list":
		var v struct {
			Elements []json.RawMessage `json:"elements"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		elts, err := decodeExprs(v.Elements)
		if err != nil {
			return nil, err
		}
		if kind == "tuple" {
			return &ast.Tuple{Elements: elts}, nil
		}
		return &ast.List{Elements: elts}, nil
	case "dict":
		var v struct {
			Entries []struct {
				Key   json.RawMessage `json:"key"`
				Value json.RawMessage `json:"value"`
			} `json:"entries"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		entries := make([]*ast.DictEntry, 0, len(v.Entries))
		for _, en := range v.Entries {
			k, err := decodeExpr(en.Key)
			if err != nil {
				return nil, err
			}
			val, err := decodeExpr(en.Value)
			if err != nil {
				return nil, err
			}
			entries = append(entries, &ast.DictEntry{Key: k, Value: val})
		}
		return &ast.Dict{Entries: entries}, nil
	case "yield":
		var v struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		val, err := decodeExpr(v.Value)
		if err != nil {
			return nil, err
		}
		return &ast.Yield{Value: val}, nil
	case "lambda":
		var v struct {
			Params []paramJSON     `json:"params"`
			Body   json.RawMessage `json:"body"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		params, err := decodeParams(v.Params)
		if err != nil {
			return nil, err
		}
		body, err := decodeExpr(v.Body)
		if err != nil {
			return nil, err
		}
		return &ast.Lambda{Params: params, Body: body}, nil
	default:
		return nil, fmt.Errorf("astjson: unknown expr kind %q", kind)
	}
}

type paramJSON struct {
	Name       string          `json:"name"`
	Annotation json.RawMessage `json:"annotation"`
	Default    json.RawMessage `json:"default"`
	IsVariadic bool            `json:"is_variadic"`
	IsKwDict   bool            `json:"is_kwdict"`
}

func decodeParams(raws []paramJSON) ([]*ast.Param, error) {
	out := make([]*ast.Param, 0, len(raws))
	for _, p := range raws {
		ann, err := decodeExpr(p.Annotation)
		if err != nil {
			return nil, err
		}
		def, err := decodeExpr(p.Default)
		if err != nil {
			return nil, err
		}
		out = append(out, &ast.Param{
			Name:       p.Name,
			Annotation: ann,
			Default:    def,
			IsVariadic: p.IsVariadic,
			IsKwDict:   p.IsKwDict,
		})
	}
	return out, nil
}

func decodeDecorators(raws []json.RawMessage) ([]*ast.Decorator, error) {
	out := make([]*ast.Decorator, 0, len(raws))
	for _, raw := range raws {
		e, err := decodeExpr(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, &ast.Decorator{Expr: e})
	}
	return out, nil
}

func decodeStmt(raw json.RawMessage) (ast.Stmt, error) {
	kind, err := kindOf(raw)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "classdef":
		var v struct {
			Name       string            `json:"name"`
			Bases      []json.RawMessage `json:"bases"`
			Decorators []json.RawMessage `json:"decorators"`
			Body       []json.RawMessage `json:"body"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		bases, err := decodeExprs(v.Bases)
		if err != nil {
			return nil, err
		}
		decs, err := decodeDecorators(v.Decorators)
		if err != nil {
			return nil, err
		}
		body, err := decodeStmts(v.Body)
		if err != nil {
			return nil, err
		}
		return &ast.ClassDef{Name: v.Name, Bases: bases, Decorators: decs, Body: body, Doc: ast.Docstring(body)}, nil
	case "funcdef":
		var v struct {
			Name       string            `json:"name"`
			Params     []paramJSON       `json:"params"`
			ReturnType json.RawMessage   `json:"return_type"`
			Decorators []json.RawMessage `json:"decorators"`
			Body       []json.RawMessage `json:"body"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		params, err := decodeParams(v.Params)
		if err != nil {
			return nil, err
		}
		ret, err := decodeExpr(v.ReturnType)
		if err != nil {
			return nil, err
		}
		decs, err := decodeDecorators(v.Decorators)
		if err != nil {
			return nil, err
		}
		body, err := decodeStmts(v.Body)
		if err != nil {
			return nil, err
		}
		return &ast.FuncDef{Name: v.Name, Params: params, ReturnType: ret, Decorators: decs, Body: body, Doc: ast.Docstring(body)}, nil
	case "assign":
		var v struct {
			Target json.RawMessage `json:"target"`
			Value  json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		t, err := decodeExpr(v.Target)
		if err != nil {
			return nil, err
		}
		val, err := decodeExpr(v.Value)
		if err != nil {
			return nil, err
		}
		return &ast.Assign{Target: t, Value: val}, nil
	case "annassign":
		var v struct {
			Target     json.RawMessage `json:"target"`
			Annotation json.RawMessage `json:"annotation"`
			Value      json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		t, err := decodeExpr(v.Target)
		if err != nil {
			return nil, err
		}
		ann, err := decodeExpr(v.Annotation)
		if err != nil {
			return nil, err
		}
		val, err := decodeExpr(v.Value)
		if err != nil {
			return nil, err
		}
		return &ast.AnnAssign{Target: t, Annotation: ann, Value: val}, nil
	case "return":
		var v struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		val, err := decodeExpr(v.Value)
		if err != nil {
			return nil, err
		}
		return &ast.Return{Value: val}, nil
	case "if":
		var v struct {
			Test json.RawMessage   `json:"test"`
			Then []json.RawMessage `json:"then"`
			Else []json.RawMessage `json:"else"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		test, err := decodeExpr(v.Test)
		if err != nil {
			return nil, err
		}
		then, err := decodeStmts(v.Then)
		if err != nil {
			return nil, err
		}
		els, err := decodeStmts(v.Else)
		if err != nil {
			return nil, err
		}
		return &ast.If{Test: test, Then: then, Else: els}, nil
	case "import":
		var v struct {
			DottedName string `json:"dotted_name"`
			Alias      string `json:"alias"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return &ast.Import{DottedName: v.DottedName, Alias: v.Alias}, nil
	case "importfrom":
		var v struct {
			DottedModule string `json:"dotted_module"`
			Names        []struct {
				Name  string `json:"name"`
				Alias string `json:"alias"`
			} `json:"names"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		names := make([]*ast.ImportFromName, 0, len(v.Names))
		for _, n := range v.Names {
			names = append(names, &ast.ImportFromName{Name: n.Name, Alias: n.Alias})
		}
		return &ast.ImportFrom{DottedModule: v.DottedModule, Names: names}, nil
	case "raise":
		var v struct {
			Exc json.RawMessage `json:"exc"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		exc, err := decodeExpr(v.Exc)
		if err != nil {
			return nil, err
		}
		return &ast.Raise{Exc: exc}, nil
	case "pass":
		return &ast.Pass{}, nil
	case "exprstmt":
		var v struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		val, err := decodeExpr(v.Value)
		if err != nil {
			return nil, err
		}
		return &ast.ExprStmt{Value: val}, nil
	default:
		return nil, fmt.Errorf("astjson: unknown stmt kind %q", kind)
	}
}

func literalKind(s string) ast.LiteralKind {
	switch s {
	case "int":
		return ast.IntLit
	case "float":
		return ast.FloatLit
	case "str":
		return ast.StringLit
	case "bool":
		return ast.BoolLit
	case "bytes":
		return ast.BytesLit
	default:
		return ast.NoneLit
	}
}

// normalizeLiteral converts json.Unmarshal's float64-for-every-number
// default into an int when lit_kind says "int", so downstream constant
// folding (e.g. system-predicate pruning) sees the type it expects.
func normalizeLiteral(litKind string, value interface{}) interface{} {
	if litKind == "int" {
		if f, ok := value.(float64); ok {
			return int(f)
		}
	}
	return value
}
