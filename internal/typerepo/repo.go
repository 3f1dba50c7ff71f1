package typerepo

import (
	"fmt"
	"sort"

	"github.com/emberscript/emberc/internal/pool"
)

// DataType is the tagged union of what a TypeRepo entry can be
// (spec.md §3): Class, Enum, or Builtin.
type DataType interface {
	isDataType()
}

// Parameterized is a reference to a class/struct applied to type arguments,
// used for `extends` links and for base-method signature substitution.
type Parameterized struct {
	ID   string
	Args []Type
}

// Class is the language-level record of a class or struct.
type Class struct {
	TypeVars   []string
	Extends    *Parameterized // nil for structs and for IScriptable itself
	Fields     map[string]Type
	Methods    *OverloadMap
	Statics    *OverloadMap
	Flags      ClassFlags
	Span       *Span
	// FromPredef marks classes that originated purely from the predef
	// bundle and were never touched by a user module (SPEC_FULL.md §3,
	// "Predef-only class detection"); Pass 3 skips re-deriving their
	// unimplemented sets.
	FromPredef bool
}

func (Class) isDataType() {}

// ClassFlags mirrors pool.ClassFlags at the language level.
type ClassFlags struct {
	IsNative     bool
	IsImportOnly bool
	IsAbstract   bool
	IsFinal      bool
	IsStruct     bool
}

// Span is a minimal source span, kept optional since predef classes carry
// none (spec.md §4.5 step 5: "extending a final class is an error (when the
// base class has a known source span)").
type Span struct {
	File                 string
	StartLine, StartCol  int
	EndLine, EndCol       int
}

// Enum is the language-level record of an enum's ordered members.
type Enum struct {
	Members []EnumMember
	IsFlags bool // @flags enums route to BitField at emission, SPEC_FULL.md §3
}

func (Enum) isDataType() {}

// EnumMember is one (name, value) pair.
type EnumMember struct {
	Name  string
	Value int64
}

// Builtin is a builtin type constructor: ref, wref, array, script_ref,
// IScriptable, and the primitive family.
type Builtin struct {
	Arity int
}

func (Builtin) isDataType() {}

// OverloadEntry is one signature under a short name in an overload map
// (spec.md §3).
type OverloadEntry struct {
	Index     OverloadIndex
	Signature string // mangled signature, used for dedup/distinctness
	Function  FunctionEntry
}

// OverloadIndex is a position within an overload set, assigned in insertion
// order.
type OverloadIndex int

// FunctionEntry is the language-level shape of a function signature.
type FunctionEntry struct {
	Params   []Type
	Return   Type
	Flags    FunctionFlags
	Base     *BaseLink // set by Pass 3 (spec.md §4.5)
	IsPoly   bool       // true if any parameter is_poly (generic promotion)
	IsRetPoly bool
}

// FunctionFlags mirrors pool.FunctionFlags at the language level.
type FunctionFlags struct {
	IsNative   bool
	IsCallback bool
	IsFinal    bool
	IsStatic   bool
	IsQuest    bool
	HasBody    bool
}

// BaseLink records an overridden ancestor method, the immediate base
// (spec.md §4.5 step 4: "Store M.base = B (the immediate base, not the
// root)"), plus which parameter positions were promoted to Top/Var for
// generic erasure.
type BaseLink struct {
	ClassID       string
	Name          string
	OverloadIndex OverloadIndex
	PolyParams    []bool // per base-parameter position
	RetPoly       bool
}

// OverloadMap is a per-class or global map of short name to one or more
// distinctly-signed entries, insertion ordered (spec.md §3, §8 property 5).
type OverloadMap struct {
	byName map[string][]*OverloadEntry
	order  []string // name insertion order, for deterministic iteration
}

// NewOverloadMap creates an empty overload map.
func NewOverloadMap() *OverloadMap {
	return &OverloadMap{byName: make(map[string][]*OverloadEntry)}
}

// Add inserts a new overload entry under name. Two methods with the same
// short name but distinct mangled signatures coexist (spec.md §3); adding a
// signature that already exists under name is a no-op overwrite of that
// entry's FunctionEntry so callers can safely re-add at preprocessing time.
func (m *OverloadMap) Add(name string, sig string, fn FunctionEntry) *OverloadEntry {
	if _, ok := m.byName[name]; !ok {
		m.order = append(m.order, name)
	}
	for _, e := range m.byName[name] {
		if e.Signature == sig {
			e.Function = fn
			return e
		}
	}
	e := &OverloadEntry{Index: OverloadIndex(len(m.byName[name])), Signature: sig, Function: fn}
	m.byName[name] = append(m.byName[name], e)
	return e
}

// ByName returns every overload registered under name, in insertion order.
func (m *OverloadMap) ByName(name string) []*OverloadEntry {
	return m.byName[name]
}

// ExactlyOne returns the single overload under name, or an error if zero or
// more than one exist. This implements spec.md §9's preserved limitation:
// annotated-method lookup can't target a specific overload.
func (m *OverloadMap) ExactlyOne(name string) (*OverloadEntry, error) {
	entries := m.byName[name]
	switch len(entries) {
	case 0:
		return nil, fmt.Errorf("no member named %q", name)
	case 1:
		return entries[0], nil
	default:
		return nil, fmt.Errorf("ambiguous member %q: %d overloads", name, len(entries))
	}
}

// Names returns every short name registered, in insertion order.
func (m *OverloadMap) Names() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// SortedNames returns every short name in sorted order, for the
// deterministic-emission-order passes described in spec.md §9
// ("Deterministic ordering").
func (m *OverloadMap) SortedNames() []string {
	out := m.Names()
	sort.Strings(out)
	return out
}

// TypeRepo is the mapping id -> DataType plus the table of global functions
// (spec.md §3).
type TypeRepo struct {
	types   map[string]DataType
	order   []string // insertion order of type ids, for deterministic iteration
	globals *OverloadMap
	// poolClass records, for every emitted class id, the PoolIndex it was
	// committed to — the round-trip bridge spec.md §3 requires ("For every
	// pool-loaded Class, the repo and on-disk index must round-trip").
	poolClass map[string]pool.Index
	poolEnum  map[string]pool.Index
}

// New creates an empty TypeRepo seeded with the builtin ids spec.md §3 names.
func New() *TypeRepo {
	r := &TypeRepo{
		types:     make(map[string]DataType),
		globals:   NewOverloadMap(),
		poolClass: make(map[string]pool.Index),
		poolEnum:  make(map[string]pool.Index),
	}
	r.define(IDScriptable, Class{Methods: NewOverloadMap(), Statics: NewOverloadMap(), Fields: map[string]Type{}})
	r.define(IDRef, Builtin{Arity: 1})
	r.define(IDWeakRef, Builtin{Arity: 1})
	r.define(IDArray, Builtin{Arity: 1})
	r.define(IDScriptRef, Builtin{Arity: 1})
	return r
}

func (r *TypeRepo) define(id string, dt DataType) {
	if _, exists := r.types[id]; !exists {
		r.order = append(r.order, id)
	}
	r.types[id] = dt
}

// Define registers or replaces a type id's DataType.
func (r *TypeRepo) Define(id string, dt DataType) { r.define(id, dt) }

// Lookup returns the DataType registered for id.
func (r *TypeRepo) Lookup(id string) (DataType, bool) {
	dt, ok := r.types[id]
	return dt, ok
}

// MustClass looks up id and asserts it's a Class, panicking otherwise. No
// code in this repository calls it.
func (r *TypeRepo) MustClass(id string) *Class {
	dt, ok := r.types[id]
	if !ok {
		panic(fmt.Sprintf("typerepo: no such type %q", id))
	}
	c, ok := dt.(Class)
	if !ok {
		panic(fmt.Sprintf("typerepo: %q is not a class", id))
	}
	return &c
}

// Ids returns every defined type id in insertion order.
func (r *TypeRepo) Ids() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Globals returns the repo's global-function overload map.
func (r *TypeRepo) Globals() *OverloadMap { return r.globals }

// SetClassPoolIndex records the pool index a class id was committed to.
func (r *TypeRepo) SetClassPoolIndex(id string, idx pool.Index) { r.poolClass[id] = idx }

// ClassPoolIndex returns the pool index for a class id.
func (r *TypeRepo) ClassPoolIndex(id string) (pool.Index, bool) {
	idx, ok := r.poolClass[id]
	return idx, ok
}

// SetEnumPoolIndex records the pool index an enum id was committed to.
func (r *TypeRepo) SetEnumPoolIndex(id string, idx pool.Index) { r.poolEnum[id] = idx }

// EnumPoolIndex returns the pool index for an enum id.
func (r *TypeRepo) EnumPoolIndex(id string) (pool.Index, bool) {
	idx, ok := r.poolEnum[id]
	return idx, ok
}

// AncestorChain walks `extends` links upward from id, innermost first,
// excluding id itself (spec.md §4.5 step 1: "search upward through C's
// ancestor chain (skipping C itself)").
func (r *TypeRepo) AncestorChain(id string) []string {
	var chain []string
	seen := map[string]bool{id: true}
	cur := id
	for {
		dt, ok := r.types[cur]
		if !ok {
			break
		}
		c, ok := dt.(Class)
		if !ok || c.Extends == nil {
			break
		}
		if seen[c.Extends.ID] {
			break // defend against malformed cycles; never part of a valid program
		}
		seen[c.Extends.ID] = true
		chain = append(chain, c.Extends.ID)
		cur = c.Extends.ID
	}
	return chain
}

// Depth returns the number of ancestors id has along its recorded Extends
// links. Pass 3 does not sort by it: Extends is filled in during that pass,
// so the orchestrator sorts by its own staticDepth instead.
func (r *TypeRepo) Depth(id string) int {
	return len(r.AncestorChain(id))
}
