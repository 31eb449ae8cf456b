// Package symerrors is the diagnostic taxonomy this module reports during
// collection and evaluation (spec.md §4.D/§4.F, §6): a stable code per
// condition, carried in the same structured Report/ReportError shape as
// this repo's other phases use.
package symerrors

import (
	"encoding/json"
	"errors"

	"github.com/sunholo/symscope/internal/ast"
	"github.com/sunholo/symscope/internal/collab"
)

// Stable diagnostic codes (spec.md §4.D/§4.F). These strings are part of
// this module's contract with consumers (e.g. a language server surfacing
// them to a user) and must not be renumbered once shipped.
const (
	// InheritNonClass: a class's base expression does not resolve to a
	// class type (spec.md §4.F.1 step 4).
	InheritNonClass = "SYM001"

	// NoSelfArgument: an instance method has no first parameter to bind
	// `self` to (spec.md §4.F.2).
	NoSelfArgument = "SYM002"

	// NoClsArgument: a classmethod has no first parameter to bind `cls` to.
	NoClsArgument = "SYM003"

	// NoMethodArgument: a property getter has no first parameter to bind
	// `self` to.
	NoMethodArgument = "SYM004"

	// ReturnInInit: `__init__` contains a `return <value>` (constructors
	// must return None).
	ReturnInInit = "SYM005"

	// InvalidDecoratorCombination: a function or property carries a
	// decorator combination this module does not permit (e.g. a property
	// declared with more than one getter overload).
	InvalidDecoratorCombination = "SYM006"
)

// Report is this module's structured diagnostic: code, message, source
// span, and any data useful to a consumer rendering it. Mirrors the
// repo-wide Report shape, scoped to the "symbols" phase.
type Report struct {
	Schema  string         `json:"schema"`
	Code    string         `json:"code"`
	Phase   string         `json:"phase"`
	Message string         `json:"message"`
	Span    *ast.Span      `json:"span,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// ReportError wraps a Report as an error so it survives errors.As.
type ReportError struct {
	Rep *Report
}

func (e *ReportError) Error() string {
	if e.Rep == nil {
		return "unknown symbol error"
	}
	return e.Rep.Code + ": " + e.Rep.Message
}

// AsReport extracts a Report from an error chain.
func AsReport(err error) (*Report, bool) {
	var re *ReportError
	if errors.As(err, &re) {
		return re.Rep, true
	}
	return nil, false
}

// WrapReport wraps r as an error, or returns nil if r is nil.
func WrapReport(r *Report) error {
	if r == nil {
		return nil
	}
	return &ReportError{Rep: r}
}

// New builds a Report for code at span with message, carrying data.
func New(code, message string, span ast.Span, data map[string]any) *Report {
	return &Report{
		Schema:  "symbols.error/v1",
		Code:    code,
		Phase:   "symbols",
		Message: message,
		Span:    &span,
		Data:    data,
	}
}

// severityFor maps a diagnostic code to its contractual severity
// (spec.md §6: severity is part of the stable per-code contract).
// ReturnInInit (§4.F.2 step 5) and InvalidDecoratorCombination (§4.F.3)
// are warnings; every other code is an error.
func severityFor(code string) collab.Severity {
	switch code {
	case ReturnInInit, InvalidDecoratorCombination:
		return collab.SeverityWarning
	default:
		return collab.SeverityError
	}
}

// ToEntry converts a Report into a collab.DiagnosticEntry so it can be
// handed to a DiagnosticsSink.
func (r *Report) ToEntry(source string) collab.DiagnosticEntry {
	span := ast.Span{}
	if r.Span != nil {
		span = *r.Span
	}
	return collab.DiagnosticEntry{
		Message:  r.Message,
		Span:     span,
		Code:     r.Code,
		Severity: severityFor(r.Code),
		Source:   source,
	}
}

// ToJSON renders the report as deterministic JSON.
func (r *Report) ToJSON(compact bool) (string, error) {
	if compact {
		b, err := json.Marshal(r)
		return string(b), err
	}
	b, err := json.MarshalIndent(r, "", "  ")
	return string(b), err
}
