package collab

import (
	"testing"

	"github.com/sunholo/symscope/internal/symbols"
)

func TestMemoryResolverUnresolvedImportIsAbsorbed(t *testing.T) {
	r := NewMemoryResolver()
	h, err := r.Import("nope.nothing")
	if err != nil {
		t.Fatalf("Import returned an error: %v", err)
	}
	if h != nil {
		t.Fatal("expected a nil handle for an unresolved import")
	}
}

func TestMemoryResolverRegisterAndImport(t *testing.T) {
	r := NewMemoryResolver()
	mt := symbols.NewModuleType("pkg.util")
	r.Register("pkg.util", mt)

	h, err := r.Import("pkg.util")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if h == nil || h.Type != mt {
		t.Fatalf("Import returned %+v, want handle wrapping mt", h)
	}
}

func TestImportableModulesByNamePrefix(t *testing.T) {
	r := NewMemoryResolver()
	r.Register("pkg.a", symbols.NewModuleType("pkg.a"))
	r.Register("pkg.b", symbols.NewModuleType("pkg.b"))
	r.Register("other", symbols.NewModuleType("other"))

	names := r.CurrentPathResolver().ImportableModulesByName("pkg", true)
	if len(names) != 2 {
		t.Fatalf("names = %v, want 2 entries under pkg", names)
	}
}

func TestMemoryStubProviderRoundTrip(t *testing.T) {
	p := NewMemoryStubProvider()
	fn := symbols.NewFunctionType("method", "pkg", nil)
	p.Register("pkg.mod", []string{"MyClass", "method"}, fn)

	got, ok := p.LookupFunction("pkg.mod", []string{"MyClass", "method"})
	if !ok || got != fn {
		t.Fatalf("LookupFunction = %v, %v", got, ok)
	}

	if _, ok := p.LookupFunction("pkg.mod", []string{"MyClass", "other"}); ok {
		t.Fatal("expected a miss for an unregistered path")
	}
}

func TestCollectingSinkGroupsByURIInOrder(t *testing.T) {
	s := NewCollectingSink()
	s.Report("b.py", DiagnosticEntry{Code: "SYM001", Message: "first"})
	s.Report("a.py", DiagnosticEntry{Code: "SYM002", Message: "second"})
	s.Report("b.py", DiagnosticEntry{Code: "SYM003", Message: "third"})

	all := s.All()
	if len(all) != 3 {
		t.Fatalf("len(All()) = %d, want 3", len(all))
	}
	// a.py sorts before b.py; within b.py, report order is preserved.
	if all[0].Code != "SYM002" || all[1].Code != "SYM001" || all[2].Code != "SYM003" {
		t.Fatalf("All() = %+v", all)
	}

	bOnly := s.For("b.py")
	if len(bOnly) != 2 {
		t.Fatalf("For(b.py) = %v", bOnly)
	}
}
