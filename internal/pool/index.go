// Package pool implements the in-memory constant pool: a flat, index-addressed
// arena of Definitions that doubles as the bundle's decoded form and the
// emitter's target.
package pool

import "fmt"

// Kind tags a PoolIndex with the variant of entity it addresses. The tag has
// no runtime representation once a bundle is serialized (spec.md §3,
// "Phantom-typed indices") — it exists purely to keep Go call sites honest
// about which table an index belongs to.
type Kind uint8

const (
	KindType Kind = iota
	KindClass
	KindFunction
	KindField
	KindParameter
	KindLocal
	KindEnum
	KindEnumValue
	KindSourceFile
	KindString
	KindDef // untyped: any Definition, used by roots()/iteration
)

func (k Kind) String() string {
	switch k {
	case KindType:
		return "Type"
	case KindClass:
		return "Class"
	case KindFunction:
		return "Function"
	case KindField:
		return "Field"
	case KindParameter:
		return "Parameter"
	case KindLocal:
		return "Local"
	case KindEnum:
		return "Enum"
	case KindEnumValue:
		return "EnumValue"
	case KindSourceFile:
		return "SourceFile"
	case KindString:
		return "String"
	default:
		return "Def"
	}
}

// Index is a kind-tagged 32-bit handle into the pool. Index 0 is the
// universal "undefined" sentinel (spec.md §3, §8 property 8); index 1 is the
// well-known "default source" sentinel. Two indices are equal iff their raw
// values are equal — the kind carries no weight in comparisons, and indices
// are freely recast between kinds with Retag.
type Index struct {
	kind Kind
	raw  uint32
}

// Undefined is the zero value of Index and must never be replaced once the
// pool is constructed (spec.md §3 invariant, §8 property 8).
var Undefined = Index{}

// DefaultSource is the well-known "default source" sentinel at raw index 1.
var DefaultSource = Index{kind: KindSourceFile, raw: 1}

// NewIndex constructs a tagged index from a raw value. Callers normally get
// indices from Pool.reserve/Pool.add rather than constructing them by hand;
// NewIndex exists for codec round-tripping, where raw values are read
// straight off disk.
func NewIndex(kind Kind, raw uint32) Index {
	return Index{kind: kind, raw: raw}
}

// Raw returns the bare u32 storage value, with the kind tag erased — this is
// what gets written to the bundle.
func (i Index) Raw() uint32 { return i.raw }

// Kind returns the index's compile-time tag.
func (i Index) Kind() Kind { return i.kind }

// IsUndefined reports whether this index is the universal sentinel.
func (i Index) IsUndefined() bool { return i.raw == 0 }

// Eq compares two indices by raw value only, ignoring their kind tags —
// spec.md §3: "Indices are equality/hash by value only... freely castable
// between kinds." Prefer this over Go's == whenever an index may have
// crossed a kind-erasing boundary (e.g. a round trip through the bundle
// codec, which reconstructs every reference as KindDef).
func (i Index) Eq(other Index) bool { return i.raw == other.raw }

// Retag recasts an index to a different kind without changing its raw value.
// Indices are "freely castable between kinds" per spec.md §3; this is the
// only sanctioned way to do it, so a grep for Retag finds every kind-punning
// site.
func (i Index) Retag(kind Kind) Index {
	return Index{kind: kind, raw: i.raw}
}

func (i Index) String() string {
	if i.IsUndefined() {
		return "<undef>"
	}
	return fmt.Sprintf("%s#%d", i.kind, i.raw)
}
