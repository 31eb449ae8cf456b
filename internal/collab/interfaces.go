// Package collab defines the external collaborators this module consumes
// (spec.md §1/§6): Parser, ModuleResolver, StubProvider, DiagnosticsSink and
// HostInfo. These are specified only by the interfaces they expose; this
// package also carries light in-memory reference implementations used by
// tests and by cmd/symcheck, not production-grade versions of the
// collaborators themselves.
package collab

import (
	"github.com/sunholo/symscope/internal/ast"
	"github.com/sunholo/symscope/internal/symbols"
)

// Parser produces the syntax tree this module consumes as input. AST
// parsing is out of scope for this module (spec.md §1); Parser is only
// named here so analysis entry points can accept one.
type Parser interface {
	Parse(source, path string) (*ast.Module, error)
}

// ModuleHandle is the opaque result of resolving an import: a dotted name
// resolves to a handle carrying the resolved module's type (its exports),
// once that module has itself been analysed.
type ModuleHandle struct {
	Path string
	Type *symbols.ModuleType
}

// PathResolver supports the finite-enumeration queries a resolver needs for
// missing-import suggestions and similar out-of-scope consumers; this
// module only calls it to decide what names are even importable.
type PathResolver interface {
	ImportableModulesByName(name string, includeImplicit bool) []string
	ModuleNameByPath(path string) string
}

// ModuleResolver resolves a dotted import path to a module handle. Import
// of an absent module is an absorbed, unresolved reference (spec.md §7):
// Import returns (nil, nil), not an error, when the name cannot be found.
type ModuleResolver interface {
	Import(dottedName string) (*ModuleHandle, error)
	CurrentPathResolver() PathResolver
}

// StubProvider looks up a stub-declared function for a dotted member path
// rooted at modulePath. Used by the symbol collector's stub-override rule
// (spec.md §4.D rule 2).
type StubProvider interface {
	LookupFunction(modulePath string, dottedPath []string) (*symbols.FunctionType, bool)
}

// Severity is a diagnostic's severity level.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// DiagnosticEntry is one structured diagnostic record (spec.md §6).
type DiagnosticEntry struct {
	Message  string
	Span     ast.Span
	Code     string
	Severity Severity
	Source   string
}

// DiagnosticsSink receives diagnostics emitted during collection or
// evaluation. uri identifies the module the diagnostic belongs to.
type DiagnosticsSink interface {
	Report(uri string, entry DiagnosticEntry)
}

// LanguageVersion is a (major, minor) pair.
type LanguageVersion struct {
	Major int
	Minor int
}

// HostInfo is static platform information used to prune if-branches that
// check system conditions (spec.md §4.D rule 3, §6).
type HostInfo struct {
	LanguageVersion LanguageVersion
	IsWindows       bool
	IsLittleEndian  bool
}
