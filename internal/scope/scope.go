// Package scope implements the layered name->value scope stacks spec.md §4
// describes for both types and term-level globals/locals. Grounded in the
// teacher's internal/types/env.go TypeEnv (a linked frame with a parent
// pointer), generalized to hold arbitrary values so the same structure backs
// both the type-scope and the local-variable scope the orchestrator needs.
package scope

// Stack is a linked frame of name->value mappings. Lookup walks
// innermost-first (i.e. the most recently pushed frame shadows older ones);
// no frame below the top may be mutated except at global scope
// (spec.md §9 "Scope stacks").
type Stack[V any] struct {
	frame  map[string]V
	parent *Stack[V]
}

// New creates a root (global) scope stack with one frame.
func New[V any]() *Stack[V] {
	return &Stack[V]{frame: make(map[string]V)}
}

// Push prepends a fresh frame, returning the new top of stack. The caller
// keeps the returned *Stack[V] and discards it (or calls Pop, which is
// equivalent to just using the parent pointer) once the scope closes.
func (s *Stack[V]) Push() *Stack[V] {
	return &Stack[V]{frame: make(map[string]V), parent: s}
}

// PushWith prepends a frame pre-populated with the given bindings — used
// when entering an import scope or seeding a function body with its
// parameters.
func (s *Stack[V]) PushWith(bindings map[string]V) *Stack[V] {
	frame := make(map[string]V, len(bindings))
	for k, v := range bindings {
		frame[k] = v
	}
	return &Stack[V]{frame: frame, parent: s}
}

// Pop returns the frame below the current top. Popping the root frame
// returns nil.
func (s *Stack[V]) Pop() *Stack[V] { return s.parent }

// Bind adds a binding to the current (top) frame only — "no mutation of
// frames below the top is permitted except at global scope" (spec.md §9).
func (s *Stack[V]) Bind(name string, v V) { s.frame[name] = v }

// Lookup walks innermost-first (current frame, then parent, then
// grandparent, ...) and returns the first match.
func (s *Stack[V]) Lookup(name string) (V, bool) {
	for f := s; f != nil; f = f.parent {
		if v, ok := f.frame[name]; ok {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// LookupLocal checks only the current frame, without walking parents.
func (s *Stack[V]) LookupLocal(name string) (V, bool) {
	v, ok := s.frame[name]
	return v, ok
}

// Depth returns how many frames separate s from the root, inclusive of s.
func (s *Stack[V]) Depth() int {
	n := 0
	for f := s; f != nil; f = f.parent {
		n++
	}
	return n
}
