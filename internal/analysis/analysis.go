// Package analysis is the top-level orchestration entry point (spec.md §5
// control flow "Parse → Collect → EvaluateAll"): it wires the symbol
// model, scope stack, expression evaluator, collector and registry
// together for a single module, mirroring internal/module's Loader.Load
// in shape (a single entry function producing one fully-resolved result)
// though driving evaluation instead of file loading.
package analysis

import (
	"context"
	"os"

	"github.com/sunholo/symscope/internal/ast"
	"github.com/sunholo/symscope/internal/collab"
	"github.com/sunholo/symscope/internal/collect"
	"github.com/sunholo/symscope/internal/evalexpr"
	"github.com/sunholo/symscope/internal/evaluate"
	"github.com/sunholo/symscope/internal/registry"
	"github.com/sunholo/symscope/internal/scope"
	"github.com/sunholo/symscope/internal/symbols"
)

// Dependencies bundles every external collaborator an analysis run
// needs (spec.md §1/§6). Builtins may be nil for a module analysed with
// no builtin scope (e.g. a pure unit test of collection behavior).
type Dependencies struct {
	Resolver       collab.ModuleResolver
	Stubs          collab.StubProvider
	Diagnostics    collab.DiagnosticsSink
	Host           collab.HostInfo
	Builtins       *scope.Scope
	KeepDeprecated bool

	// IsLibraryModule marks the module as library-provided rather than
	// user-authored; library functions with an annotated return skip body
	// walking and, by default, clear their scope locals once resolved
	// (spec.md §4.F.2 steps 1/6). Setting SYMSCOPE_KEEP_LIBRARY_LOCALS=1
	// disables the clearing without touching call sites.
	IsLibraryModule bool

	// Ctx, when non-nil, is polled between entries of the registry drive
	// loop; a cancelled context stops evaluation at the next loop boundary
	// and leaves the registry consistent (spec.md §5 "Cancellation").
	Ctx context.Context
}

// Result is everything a caller needs after analysing a module: the
// module's Type (carrying its export set), the root scope for ad hoc
// lookups, and the registry for introspection (e.g. a test asserting
// nothing was left pending).
type Result struct {
	Module   *symbols.ModuleType
	Root     *scope.Scope
	Stack    *scope.Stack
	Registry *registry.Registry
}

// AnalyzeModule runs the full Parse → Collect → EvaluateAll pipeline for
// an already-parsed module (parsing itself is the Parser collaborator's
// job, out of this module's scope per spec.md §1).
func AnalyzeModule(mod *ast.Module, uri string, deps Dependencies) *Result {
	st := scope.NewStack(mod.Name, mod, deps.Builtins)
	reg := registry.New(mod.Name)
	if deps.Ctx != nil {
		ctx := deps.Ctx
		reg.SetCancelled(func() bool { return ctx.Err() != nil })
	}

	expr := &evalexpr.Evaluator{
		Resolver:    deps.Resolver,
		Stubs:       deps.Stubs,
		Diagnostics: deps.Diagnostics,
		Source:      uri,
		Demand:      func(t symbols.Type) { reg.Demand(t) },
	}

	c := &collect.Collector{
		Module:             mod.Name,
		Source:             uri,
		Stack:              st,
		Registry:           reg,
		Resolver:           deps.Resolver,
		Stubs:              deps.Stubs,
		Diagnostics:        deps.Diagnostics,
		Host:               deps.Host,
		Expr:               expr,
		KeepDeprecated:     deps.KeepDeprecated,
		// A stub module's bodies are `...` placeholders; it gets the same
		// walk-skipping treatment as a library module (spec.md §4.F.2
		// step 1).
		IsLibraryModule:    deps.IsLibraryModule || mod.IsStub,
		ClearLibraryLocals: (deps.IsLibraryModule || mod.IsStub) && os.Getenv("SYMSCOPE_KEEP_LIBRARY_LOCALS") != "1",
	}

	// Module-level imports resolve before evaluation, so bases and
	// annotations referencing an imported name see the binding; scope-level
	// imports are resolved imports-first by each evaluator as it enters
	// its scope. ResolveImports afterwards drains anything queued inside a
	// scope that was never evaluated (e.g. a cancelled run).
	c.CollectModule(mod)
	c.ResolveImports()
	reg.EvaluateAll()
	c.ResolveImports()

	modType := symbols.NewModuleType(mod.Name)
	reg.AddOwned(reg.IDFor(mod, mod.Pos.Line, mod.Pos.Column, "module"), mod, registry.WaveStraggler,
		&evaluate.ModuleAllEvaluator{Module: modType, Root: st.Root()}, modType)
	reg.EvaluateAll()

	return &Result{Module: modType, Root: st.Root(), Stack: st, Registry: reg}
}
