// Package ident normalizes and interns identifiers at the parser boundary.
// Grounded in the teacher's internal/lexer/normalize.go, which strips a BOM
// and applies Unicode NFC normalization so lexically-equivalent source
// produces identical tokens regardless of encoding; here generalized into an
// interning table so two spellings of the same path component (e.g. an
// import path and a later type-scope lookup) always compare equal.
package ident

import (
	"bytes"
	"sync"

	"golang.org/x/text/unicode/norm"
)

var bomUTF8 = []byte{0xEF, 0xBB, 0xBF}

// Normalize strips a leading UTF-8 BOM and applies NFC normalization, done
// once at the input boundary to avoid repeated processing downstream.
func Normalize(src []byte) []byte {
	src = bytes.TrimPrefix(src, bomUTF8)
	if !norm.NFC.IsNormal(src) {
		src = norm.NFC.Bytes(src)
	}
	return src
}

// NormalizeString is the string-typed convenience form of Normalize.
func NormalizeString(s string) string {
	return string(Normalize([]byte(s)))
}

// Table interns normalized identifier strings so repeated spellings of the
// same name share one backing string, cutting down on pool string-table
// duplication before it ever reaches the names table (spec.md §3 requires
// identical strings dedup to one offset; interning here keeps the orchestra
// -tor's in-memory maps keyed consistently before allocation even happens).
type Table struct {
	mu      sync.Mutex
	entries map[string]string
}

// NewTable creates an empty interning table.
func NewTable() *Table {
	return &Table{entries: make(map[string]string)}
}

// Intern normalizes s and returns the canonical shared string for it.
func (t *Table) Intern(s string) string {
	canon := NormalizeString(s)
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.entries[canon]; ok {
		return existing
	}
	t.entries[canon] = canon
	return canon
}
