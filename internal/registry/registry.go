// Package registry is the evaluator registry (spec.md §4.E, component E):
// a pending-evaluator table keyed by AST node identity, a processed-node
// set enforcing at-most-once evaluation, and the three-wave EvaluateAll
// driver. Mirrors internal/module's Loader — a cache keyed by identity
// plus a stack guarding re-entrant load — adapted to evaluator dispatch
// instead of file loading.
package registry

import (
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/sunholo/symscope/internal/ast"
	"github.com/sunholo/symscope/internal/sid"
)

// Wave tags which of the three evaluation passes an entry belongs to
// (spec.md §5 control flow "EvaluateAll"): functions first, so a class
// body that references a top-level function sees its signature; classes
// next; then whatever either wave's evaluators registered along the way.
type Wave int

const (
	WaveFunction Wave = iota
	WaveClass
	// WaveStraggler's pass runs every entry still pending, whatever its
	// tag (e.g. a function nested in a method, registered mid-class-wave).
	WaveStraggler
)

// Evaluator is anything the registry can run at most once. Run is called
// with the registry itself so an evaluator may register new entries
// during its own run (e.g. a class evaluator discovering a nested class).
type Evaluator interface {
	Run(r *Registry)
}

// EvaluatorFunc adapts a plain function to the Evaluator interface.
type EvaluatorFunc func(r *Registry)

// Run implements Evaluator.
func (f EvaluatorFunc) Run(r *Registry) { f(r) }

type entry struct {
	id   sid.SID
	node ast.Node
	wave Wave
	eval Evaluator
}

// Registry holds every declaration's pending evaluator, keyed by AST node
// identity, and the set of nodes whose evaluator has already run.
type Registry struct {
	mu        sync.Mutex
	module    string
	order     []sid.SID
	pending   map[sid.SID]*entry
	processed map[sid.SID]bool
	disambig  int
	depth     int
	maxDepth  int

	// cancelled is polled between entries of the drive loops (spec.md §5
	// "Cancellation"). A cancelled run leaves the registry consistent:
	// already-processed ids stay processed, the rest stay pending.
	cancelled func() bool

	// byOwner maps an arbitrary owner value (typically a *symbols.ClassType
	// or *symbols.FunctionType) to the identity of the evaluator that
	// fills it in, so Demand can force early evaluation of a declaration
	// the expression evaluator just discovered it needs the members of
	// (spec.md §4.C: a member access on a not-yet-evaluated type must
	// still resolve).
	byOwner map[any]sid.SID
}

// New creates an empty registry scoped to module (used to derive stable
// node identities via sid.NodeID).
func New(module string) *Registry {
	return &Registry{
		module:    module,
		pending:   make(map[sid.SID]*entry),
		processed: make(map[sid.SID]bool),
		byOwner:   make(map[any]sid.SID),
		maxDepth:  evalDepthLimit(),
	}
}

// evalDepthLimit reads the recursion bound for nested Evaluate calls.
// Recursion depth is normally bounded by source nesting (spec.md §5), but a
// pathological tree can stack Demand-driven evaluations arbitrarily deep;
// past the limit an entry is left pending for the outer drive loop to pick
// up iteratively instead.
func evalDepthLimit() int {
	if v := os.Getenv("SYMSCOPE_EVAL_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 512
}

// SetCancelled installs the cancellation probe the drive loops poll. Must
// be called before EvaluateAll; a nil probe means the run is never
// cancelled.
func (r *Registry) SetCancelled(fn func() bool) {
	r.cancelled = fn
}

func (r *Registry) isCancelled() bool {
	return r.cancelled != nil && r.cancelled()
}

// IDFor derives an identity for node at (line, col), tagged with kind
// (e.g. "class", "function", "property") so two declarations at the same
// position but different kinds never collide. A per-registry counter is
// mixed in, so every call returns a distinct id, even for the same node.
func (r *Registry) IDFor(node ast.Node, line, col int, kind string) sid.SID {
	r.mu.Lock()
	r.disambig++
	d := r.disambig
	r.mu.Unlock()
	return sid.NodeID(r.module, line, col, kind, d)
}

// Add registers an evaluator for node under id and wave. Add is
// idempotent per id: re-registering an id that is already pending or
// already processed is a no-op, since the collector may visit the same
// declaration more than once while re-entering a scope.
func (r *Registry) Add(id sid.SID, node ast.Node, wave Wave, eval Evaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.processed[id] {
		return
	}
	if _, ok := r.pending[id]; ok {
		return
	}
	r.pending[id] = &entry{id: id, node: node, wave: wave, eval: eval}
	r.order = append(r.order, id)
}

// AddOwned is Add plus an owner association for Demand.
func (r *Registry) AddOwned(id sid.SID, node ast.Node, wave Wave, eval Evaluator, owner any) {
	r.Add(id, node, wave, eval)
	if owner == nil {
		return
	}
	r.mu.Lock()
	r.byOwner[owner] = id
	r.mu.Unlock()
}

// Demand forces the evaluator owned by owner to run now, if it is still
// pending. A type with no registered owner (e.g. a builtin) is a no-op.
func (r *Registry) Demand(owner any) {
	if owner == nil {
		return
	}
	r.mu.Lock()
	id, ok := r.byOwner[owner]
	r.mu.Unlock()
	if !ok {
		return
	}
	r.Evaluate(id)
}

// Evaluate runs the evaluator registered for id, if it is still pending.
// It marks id processed before invoking the evaluator, so a re-entrant
// call made from inside the evaluator itself (e.g. a method referencing
// its own enclosing class) observes id as already done rather than
// recursing (spec.md §4.E "mark processed then invoke" ordering).
func (r *Registry) Evaluate(id sid.SID) {
	r.mu.Lock()
	if r.processed[id] {
		r.mu.Unlock()
		return
	}
	e, ok := r.pending[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	if r.depth >= r.maxDepth {
		// Too deep to run inline; leave pending for the drive loop.
		r.mu.Unlock()
		return
	}
	r.processed[id] = true
	delete(r.pending, id)
	r.depth++
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.depth--
		r.mu.Unlock()
	}()
	e.eval.Run(r)
}

// EvaluateAll drives every registered evaluator to completion in three
// waves (spec.md §5): all WaveFunction entries, then all WaveClass
// entries, then anything left (including entries any prior wave's
// evaluator registered along the way — the wave filter is re-applied
// after every step since the pending set can grow mid-wave).
func (r *Registry) EvaluateAll() {
	r.runWave(WaveFunction)
	r.runWave(WaveClass)
	r.runWave(WaveStraggler)
	// A straggler's own evaluator may register more entries; keep
	// draining until nothing is left pending.
	for !r.isCancelled() && r.hasWave(WaveStraggler) {
		r.runWave(WaveStraggler)
	}
}

func (r *Registry) hasWave(w Wave) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		if e, ok := r.pending[id]; ok && (w == WaveStraggler || e.wave == w) {
			return true
		}
	}
	return false
}

func (r *Registry) runWave(w Wave) {
	for !r.isCancelled() {
		id, ok := r.nextInWave(w)
		if !ok {
			return
		}
		r.Evaluate(id)
	}
}

func (r *Registry) nextInWave(w Wave) (sid.SID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		if e, ok := r.pending[id]; ok && (w == WaveStraggler || e.wave == w) {
			return id, true
		}
	}
	var zero sid.SID
	return zero, false
}

// EvaluateScope runs every pending evaluator whose declaration node is in
// children, in registration order. Used by the class
// evaluator to drive a batch of method bodies it owns directly (spec.md
// §4.F.1 step 6) without waiting for EvaluateAll's wave ordering.
func (r *Registry) EvaluateScope(children map[ast.Node]bool) {
	ids := r.idsForNodes(children)
	for _, id := range ids {
		if r.isCancelled() {
			return
		}
		r.Evaluate(id)
	}
}

func (r *Registry) idsForNodes(children map[ast.Node]bool) []sid.SID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []sid.SID
	for _, id := range r.order {
		if e, ok := r.pending[id]; ok && children[e.node] {
			ids = append(ids, id)
		}
	}
	return ids
}

// Pending returns the identities still awaiting evaluation, in a stable
// (sorted) order — used by tests asserting nothing was left undone.
func (r *Registry) Pending() []sid.SID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sid.SID, 0, len(r.pending))
	for id := range r.pending {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsProcessed reports whether id's evaluator has already run.
func (r *Registry) IsProcessed(id sid.SID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processed[id]
}
