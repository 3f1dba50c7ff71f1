// Package discover finds source files to hand to Pass 0. Grounded in
// termfx-morfx's core.FileWalker: pattern matching via
// github.com/bmatcuk/doublestar/v4, generalized from that package's
// multi-language, worker-pooled traversal down to this compiler's simpler
// need — a single glob pattern over one source tree, returned in sorted
// order so discovery is deterministic across runs (spec.md §9 "Deterministic
// ordering").
package discover

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPattern matches this language's source file extension.
const DefaultPattern = "**/*.script"

// Files walks root and returns every file whose path (relative to root)
// matches pattern, sorted lexicographically.
func Files(root, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}

	var matches []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		ok, err := doublestar.Match(pattern, rel)
		if err != nil {
			return err
		}
		if ok {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(matches)
	return matches, nil
}
