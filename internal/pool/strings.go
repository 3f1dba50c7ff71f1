package pool

// StringTable is one of the four independent, kind-tagged string tables
// described in spec.md §3: names, tweakdb ids, resources, and free strings.
// Each maintains an ordered vector plus a reverse map for interning.
type StringTable struct {
	kind    Kind
	values  []string
	reverse map[string]uint32
	def     string // the per-table default value returned at the undefined index
}

// NewStringTable creates a table whose index-0 slot holds def (the per-table
// default — "None" for names, "" for the rest).
func NewStringTable(kind Kind, def string) *StringTable {
	t := &StringTable{
		kind:    kind,
		values:  []string{def},
		reverse: map[string]uint32{def: 0},
		def:     def,
	}
	return t
}

// Add interns s, returning its existing index if present, else appending.
// Adding the table's own default string always yields the undefined index
// (spec.md §3).
func (t *StringTable) Add(s string) Index {
	if raw, ok := t.reverse[s]; ok {
		return Index{kind: t.kind, raw: raw}
	}
	raw := uint32(len(t.values))
	t.values = append(t.values, s)
	t.reverse[s] = raw
	return Index{kind: t.kind, raw: raw}
}

// Get resolves an index back to its string.
func (t *StringTable) Get(i Index) string {
	if int(i.raw) >= len(t.values) {
		return t.def
	}
	return t.values[i.raw]
}

// Len returns the number of distinct strings, including the default at 0.
func (t *StringTable) Len() int { return len(t.values) }

// All returns the table's strings in index order — callers must not mutate
// the returned slice.
func (t *StringTable) All() []string { return t.values }

// Tables bundles the four pool-visible string tables together so callers
// don't have to thread four separate pointers through the orchestrator.
type Tables struct {
	Names     *StringTable // kind-tagged Name; default "None"
	TweakDBID *StringTable // default ""
	Resources *StringTable // default ""
	Free      *StringTable // default ""
}

// NewTables constructs the four tables with their spec-mandated defaults.
func NewTables() *Tables {
	return &Tables{
		Names:     NewStringTable(KindString, "None"),
		TweakDBID: NewStringTable(KindString, ""),
		Resources: NewStringTable(KindString, ""),
		Free:      NewStringTable(KindString, ""),
	}
}
