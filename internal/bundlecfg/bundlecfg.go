// Package bundlecfg loads the optional YAML manifest a compile can point at
// to describe where its predef bundle and source module roots live
// (SPEC_FULL.md DOMAIN STACK: gopkg.in/yaml.v3), parallel to the env-var
// knobs internal/config reads. Grounded in the teacher's
// internal/eval_harness.LoadSpec: a plain YAML-tagged struct, read and
// unmarshaled from a file path, with the required fields validated
// immediately after parse rather than lazily at first use.
package bundlecfg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest describes one compile's predef bundle and module search roots,
// letting a project commit this config to source instead of wiring every
// knob through environment variables.
type Manifest struct {
	// Predef is the path to the predef script bundle every compile
	// implicitly extends (spec.md §6).
	Predef string `yaml:"predef"`
	// Roots lists directories for source modules. The CLI walks only the
	// first entry; later roots are not searched.
	Roots []string `yaml:"roots"`
	// Pattern overrides the default source-discovery glob.
	Pattern string `yaml:"pattern,omitempty"`
}

// Load reads and parses path into a Manifest, validating that at least one
// module root is present (a manifest naming no roots would compile nothing).
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bundlecfg: read %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("bundlecfg: parse %s: %w", path, err)
	}

	if len(m.Roots) == 0 {
		return nil, fmt.Errorf("bundlecfg: %s: manifest must name at least one root", path)
	}

	return &m, nil
}
