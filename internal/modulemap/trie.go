// Package modulemap implements the dotted-path trie that resolves import
// statements to types or functions (spec.md §4.7). Grounded in the teacher's
// internal/module package: a path-component-keyed structure with trie-style
// lookup, the same shape as Loader's identity normalization and Resolver's
// path handling, generalized from file-path resolution to declaration
// resolution.
package modulemap

import "strings"

// ItemKind discriminates what a trie node resolves to.
type ItemKind int

const (
	ItemType ItemKind = iota
	ItemFunc
)

// Item is what a Module Map path resolves to: either a type id or a function
// overload-table key (spec.md §4.7 ImportItem).
type Item struct {
	Kind ItemKind
	Name string // TypeId or function short name, resolved further by the caller
}

// node is one trie node, keyed by a single path component.
type node struct {
	children map[string]*node
	item     *Item // set if this path names an importable item
}

func newNode() *node { return &node{children: make(map[string]*node)} }

// Map is the character-trie keyed by dotted path components.
type Map struct {
	root *node
}

// New creates an empty Module Map.
func New() *Map {
	return &Map{root: newNode()}
}

// splitPath turns "math.vector.Dot" into ["math", "vector", "Dot"].
func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Insert adds path -> item. Insert owns the key it's given (spec.md §4.7
// "owned-key insert") — callers should not mutate the path string after
// calling Insert, though in Go that's moot since strings are immutable; the
// note is kept here because it mirrors the corpus's ownership language.
func (m *Map) Insert(path string, item Item) {
	components := splitPath(path)
	cur := m.root
	for _, c := range components {
		next, ok := cur.children[c]
		if !ok {
			next = newNode()
			cur.children[c] = next
		}
		cur = next
	}
	it := item
	cur.item = &it
}

// Get resolves a dotted path to its Item, if any.
func (m *Map) Get(path string) (Item, bool) {
	components := splitPath(path)
	cur := m.root
	for _, c := range components {
		next, ok := cur.children[c]
		if !ok {
			return Item{}, false
		}
		cur = next
	}
	if cur.item == nil {
		return Item{}, false
	}
	return *cur.item, true
}

// GetDirectDescendants returns the names of every child directly beneath
// path, in no particular order — used to resolve `import pkg.*` wildcard
// imports against the trie.
func (m *Map) GetDirectDescendants(path string) []string {
	components := splitPath(path)
	cur := m.root
	for _, c := range components {
		next, ok := cur.children[c]
		if !ok {
			return nil
		}
		cur = next
	}
	out := make([]string, 0, len(cur.children))
	for name := range cur.children {
		out = append(out, name)
	}
	return out
}
