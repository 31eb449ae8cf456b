// Package hostconfig loads the host platform description (spec.md §6
// collab.HostInfo) and engine toggles from a YAML file, in the same
// yaml.v3-tagged-struct-plus-LoadX style internal/eval_harness uses for its
// benchmark specs.
package hostconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sunholo/symscope/internal/collab"
)

// Toggles are engine-level behavior switches not dictated by the host
// platform itself, e.g. whether `deprecated`-decorated declarations are
// still collected rather than pruned (spec.md §4.D rule 4).
type Toggles struct {
	KeepDeprecated  bool `yaml:"keep_deprecated"`
	AllowStubShadow bool `yaml:"allow_stub_shadow"`
}

// Spec is the on-disk YAML shape: host platform fields mirror
// collab.HostInfo, flattened for a friendlier file format.
type Spec struct {
	LanguageMajor int     `yaml:"language_major"`
	LanguageMinor int     `yaml:"language_minor"`
	Platform      string  `yaml:"platform"` // "windows", "linux", "darwin", ...
	LittleEndian  *bool   `yaml:"little_endian"`
	Toggles       Toggles `yaml:"toggles"`
}

// Load reads and parses a host config YAML file.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read host config: %w", err)
	}
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse host config YAML: %w", err)
	}
	if spec.LanguageMajor == 0 {
		return nil, fmt.Errorf("host config missing required field: language_major")
	}
	return &spec, nil
}

// HostInfo converts the loaded spec into the collab.HostInfo shape
// consumed by the collector's system-predicate pruning (spec.md §4.D
// rule 3). Defaults little_endian to true when the file omits it, since
// every mainstream deployment target is little-endian.
func (s *Spec) HostInfo() collab.HostInfo {
	littleEndian := true
	if s.LittleEndian != nil {
		littleEndian = *s.LittleEndian
	}
	return collab.HostInfo{
		LanguageVersion: collab.LanguageVersion{Major: s.LanguageMajor, Minor: s.LanguageMinor},
		IsWindows:       s.Platform == "windows",
		IsLittleEndian:  littleEndian,
	}
}

// Default returns a host config with no file backing it: Python 3.12 on
// linux, whatever platform this process runs on. Used by tests and by
// cmd/symcheck runs with no --host flag.
func Default() *Spec {
	return &Spec{
		LanguageMajor: 3,
		LanguageMinor: 12,
		Platform:      "linux",
	}
}
