// Package sid provides stable identifier calculation for AST nodes and
// declared types. The registry (internal/registry) uses a node's SID as its
// map key instead of a raw pointer, and the symbol model
// (internal/symbols) uses a qualified-name SID as the dotted-qualified name
// spec.md §6 requires ("<module>:<a.b.c>" for user modules, "<a.b.c>" for
// builtins).
package sid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// SID is a stable identifier.
type SID string

// NodeID calculates an ID for an AST declaration node from its module
// path, line, column, kind, and a caller-supplied disambiguator (the
// registry passes a counter that is distinct on every call).
func NodeID(modulePath string, line, col int, kind string, disambiguator int) SID {
	parts := []string{
		canonicalizePath(modulePath),
		fmt.Sprintf("%d", line),
		fmt.Sprintf("%d", col),
		kind,
		fmt.Sprintf("%d", disambiguator),
	}
	return hashParts(parts)
}

// Qualified builds the stable dotted-qualified name for a declared type:
// "<module>:<a.b.c>" for a user module, "<a.b.c>" for a builtin (empty
// module).
func Qualified(module string, dotted string) string {
	if module == "" {
		return dotted
	}
	return module + ":" + dotted
}

func hashParts(parts []string) SID {
	input := strings.Join(parts, "|")
	sum := sha256.Sum256([]byte(input))
	return SID(hex.EncodeToString(sum[:])[:16])
}

func canonicalizePath(path string) string {
	path = filepath.Clean(path)
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	if isCaseInsensitive() {
		path = strings.ToLower(path)
	}
	return filepath.ToSlash(path)
}

func isCaseInsensitive() bool {
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}
