package collab

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sunholo/symscope/internal/symbols"
)

// MemoryResolver is a read-mostly, in-memory ModuleResolver: a fixed table
// of already-resolved module handles plus a search-path-style name index.
// It mirrors internal/module's Loader (cache by identity, a fixed set of
// search roots) without touching the filesystem — suitable for tests and
// for cmd/symcheck, where the caller supplies every module's interface up
// front rather than this package re-deriving it from source.
type MemoryResolver struct {
	mu      sync.RWMutex
	modules map[string]*ModuleHandle
}

// NewMemoryResolver creates a resolver with no modules registered.
func NewMemoryResolver() *MemoryResolver {
	return &MemoryResolver{modules: make(map[string]*ModuleHandle)}
}

// Register makes a module's resolved type available under dottedName.
func (r *MemoryResolver) Register(dottedName string, typ *symbols.ModuleType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[dottedName] = &ModuleHandle{Path: dottedName, Type: typ}
}

// Import implements ModuleResolver. An unresolved name is absorbed: it
// returns (nil, nil), not an error (spec.md §7).
func (r *MemoryResolver) Import(dottedName string) (*ModuleHandle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.modules[dottedName]
	if !ok {
		return nil, nil
	}
	return h, nil
}

// CurrentPathResolver implements ModuleResolver.
func (r *MemoryResolver) CurrentPathResolver() PathResolver {
	return memoryPathResolver{r}
}

type memoryPathResolver struct{ r *MemoryResolver }

func (p memoryPathResolver) ImportableModulesByName(name string, includeImplicit bool) []string {
	p.r.mu.RLock()
	defer p.r.mu.RUnlock()
	var out []string
	for dotted := range p.r.modules {
		if dotted == name || (includeImplicit && len(dotted) > len(name) && dotted[:len(name)] == name) {
			out = append(out, dotted)
		}
	}
	sort.Strings(out)
	return out
}

func (p memoryPathResolver) ModuleNameByPath(path string) string { return path }

// MemoryStubProvider is a map-backed StubProvider: modulePath + dotted
// member path -> stub FunctionType, populated directly by the caller
// (e.g. a language server's own stub-file cache) rather than parsed here.
type MemoryStubProvider struct {
	mu    sync.RWMutex
	stubs map[string]*symbols.FunctionType
}

// NewMemoryStubProvider creates an empty stub provider.
func NewMemoryStubProvider() *MemoryStubProvider {
	return &MemoryStubProvider{stubs: make(map[string]*symbols.FunctionType)}
}

// Register associates a stub function with modulePath and a dotted path
// (e.g. []string{"MyClass", "method"}).
func (p *MemoryStubProvider) Register(modulePath string, dottedPath []string, fn *symbols.FunctionType) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stubs[stubKey(modulePath, dottedPath)] = fn
}

// LookupFunction implements StubProvider.
func (p *MemoryStubProvider) LookupFunction(modulePath string, dottedPath []string) (*symbols.FunctionType, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fn, ok := p.stubs[stubKey(modulePath, dottedPath)]
	return fn, ok
}

func stubKey(modulePath string, dottedPath []string) string {
	key := modulePath
	for _, p := range dottedPath {
		key += "." + p
	}
	return key
}

// CollectingSink is a DiagnosticsSink that accumulates every entry it
// receives, grouped by uri — the shape a test assertion or a batch CLI
// driver wants (mirrors internal/errors.Report's structured-but-inert
// accumulation pattern).
type CollectingSink struct {
	mu      sync.Mutex
	entries map[string][]DiagnosticEntry
}

// NewCollectingSink creates an empty collecting sink.
func NewCollectingSink() *CollectingSink {
	return &CollectingSink{entries: make(map[string][]DiagnosticEntry)}
}

// Report implements DiagnosticsSink.
func (s *CollectingSink) Report(uri string, entry DiagnosticEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[uri] = append(s.entries[uri], entry)
}

// For returns every entry reported against uri, in report order.
func (s *CollectingSink) For(uri string) []DiagnosticEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DiagnosticEntry, len(s.entries[uri]))
	copy(out, s.entries[uri])
	return out
}

// All returns every entry reported, across every uri, in report order
// within each uri (uri iteration order is alphabetical for determinism).
func (s *CollectingSink) All() []DiagnosticEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	uris := make([]string, 0, len(s.entries))
	for uri := range s.entries {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	var out []DiagnosticEntry
	for _, uri := range uris {
		out = append(out, s.entries[uri]...)
	}
	return out
}

// String renders every entry as "severity code: message", for quick
// debugging (fmt.Stringer rather than a dedicated pretty-printer, since
// cmd/symcheck owns the colored rendering).
func (s *CollectingSink) String() string {
	var out string
	for _, e := range s.All() {
		out += fmt.Sprintf("%s %s: %s\n", e.Severity, e.Code, e.Message)
	}
	return out
}
