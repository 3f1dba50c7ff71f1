// Package config loads compiler configuration from the environment,
// following the teacher corpus's pattern (termfx-morfx's internal/config):
// a plain struct, defaults applied when a variable is unset, optional
// .env-file loading via godotenv for local development. Grounded on
// termfx-morfx's internal/config/config.go.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every environment-tunable knob the orchestrator and CLI
// consult.
type Config struct {
	// PredefBundlePath points at the predef script bundle every compile
	// implicitly extends (spec.md §6 "predef").
	PredefBundlePath string
	// OutputBundlePath is where the final compiled bundle is written.
	OutputBundlePath string
	// MaxParseWorkers holds EMBERC_MAX_PARSE_WORKERS (default 4). Nothing
	// reads it: Pass 0 parses files one at a time.
	MaxParseWorkers int
	// DiagnosticsJSON, when true, makes the CLI emit diagnostics as JSON
	// lines instead of colorized text.
	DiagnosticsJSON bool
	// StrictWarnings, when true, makes the CLI fail and write no bundle if
	// any diagnostic was reported. Diagnostics have no separate warning
	// severity, so without it a bundle is written even when errors exist.
	StrictWarnings bool
}

// Load reads an optional .env file (ignored if absent) and then builds a
// Config from environment variables, applying defaults for anything unset —
// mirrors termfx-morfx's LoadConfig.
func Load() *Config {
	_ = godotenv.Load() // a missing .env file is not an error; envs may be set directly

	cfg := &Config{
		PredefBundlePath: os.Getenv("EMBERC_PREDEF_BUNDLE"),
		OutputBundlePath: os.Getenv("EMBERC_OUTPUT_BUNDLE"),
		MaxParseWorkers:  4,
		DiagnosticsJSON:  os.Getenv("EMBERC_DIAGNOSTICS_JSON") == "1",
		StrictWarnings:   os.Getenv("EMBERC_STRICT_WARNINGS") == "1",
	}

	if cfg.OutputBundlePath == "" {
		cfg.OutputBundlePath = "final.redscript"
	}

	if workersStr := os.Getenv("EMBERC_MAX_PARSE_WORKERS"); workersStr != "" {
		if n, err := strconv.Atoi(workersStr); err == nil && n > 0 {
			cfg.MaxParseWorkers = n
		}
	}

	return cfg
}
