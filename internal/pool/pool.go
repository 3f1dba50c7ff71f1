package pool

import "fmt"

// Pool is the flat arena of Definitions described by spec.md §3/§4.2. It
// never reorders existing entries except via explicit Swap, mirroring the
// teacher's module cache (internal/module/loader.go) in spirit — a single
// owned slice plus a small set of mutating entry points, no hidden
// reordering.
type Pool struct {
	defs  []Definition
	names *StringTable
}

// New creates a pool with slot 0 pre-populated as the permanent default
// Definition (spec.md §3 invariant, §8 property 8).
func New(names *StringTable) *Pool {
	p := &Pool{
		defs:  make([]Definition, 2),
		names: names,
	}
	p.defs[0] = Definition{Value: UndefinedDef{}}
	p.defs[1] = Definition{Value: SourceFile{}}
	return p
}

// Len returns the number of Definition slots, including slot 0.
func (p *Pool) Len() int { return len(p.defs) }

// Reserve appends the default Definition and returns its freshly minted
// index. Builders call this before they know the final payload, so that
// child entries (parameters, locals, methods, fields) can be parented to an
// index that already exists (spec.md §4.4 FunctionBuilder.commit).
func (p *Pool) Reserve(kind Kind) Index {
	idx := Index{kind: kind, raw: uint32(len(p.defs))}
	p.defs = append(p.defs, Definition{Value: UndefinedDef{}})
	return idx
}

// Put overwrites the Definition at a previously reserved index.
func (p *Pool) Put(i Index, def Definition) {
	p.mustExist(i)
	p.defs[i.raw] = def
}

// Add reserves a fresh index and immediately writes def into it, returning
// the new index. This is the common case when a caller doesn't need to
// reserve ahead of time (fields, parameters, locals once their parent is
// already known).
func (p *Pool) Add(def Definition) Index {
	kind := defKindToIndexKind(def.Value.defKind())
	idx := Index{kind: kind, raw: uint32(len(p.defs))}
	p.defs = append(p.defs, def)
	return idx
}

func defKindToIndexKind(k DefKind) Kind {
	switch k {
	case DefType:
		return KindType
	case DefClass:
		return KindClass
	case DefFunction:
		return KindFunction
	case DefField:
		return KindField
	case DefParameter:
		return KindParameter
	case DefLocal:
		return KindLocal
	case DefEnum, DefBitField:
		return KindEnum
	case DefEnumValue:
		return KindEnumValue
	case DefSourceFile:
		return KindSourceFile
	default:
		return KindDef
	}
}

// Swap exchanges the Definitions at two indices in place. This is the only
// sanctioned way to reorder the pool (spec.md §4.2). The wrapper linkage
// pass does not call it: it reassigns which reserved slot each body is
// completed into instead.
func (p *Pool) Swap(a, b Index) {
	p.mustExist(a)
	p.mustExist(b)
	p.defs[a.raw], p.defs[b.raw] = p.defs[b.raw], p.defs[a.raw]
}

// Rename overwrites a Definition's name index in place.
func (p *Pool) Rename(i Index, newName Index) {
	p.mustExist(i)
	p.defs[i.raw].Name = newName
}

// Definition returns the Definition stored at i.
func (p *Pool) Definition(i Index) Definition {
	p.mustExist(i)
	return p.defs[i.raw]
}

// DefName resolves a Definition's name index through the names string table.
func (p *Pool) DefName(i Index) string {
	p.mustExist(i)
	return p.names.Get(p.defs[i.raw].Name)
}

// Roots returns the indices of every Definition whose parent is Undefined —
// i.e. every top-level class, enum, function, and source file in the pool.
func (p *Pool) Roots() []Index {
	var out []Index
	for raw := 1; raw < len(p.defs); raw++ {
		if p.defs[raw].Parent.IsUndefined() {
			out = append(out, Index{kind: defKindToIndexKind(p.defs[raw].Value.defKind()), raw: uint32(raw)})
		}
	}
	return out
}

// CompleteFunction writes a function's locals and lowered code in one step
// and rewrites every local's parent to point at fn, satisfying the
// locals-adjacency invariant (spec.md §3, §8 property 7): locals must be
// parented to their owning function and must not be separated from it by an
// unrelated definition once emission settles.
func (p *Pool) CompleteFunction(fn Index, locals []Index, code []byte) {
	p.mustExist(fn)
	def := p.defs[fn.raw]
	f, ok := def.Value.(Function)
	if !ok {
		panic(fmt.Sprintf("pool: CompleteFunction on non-function index %s", fn))
	}
	f.Locals = locals
	f.Code = code
	def.Value = f
	p.defs[fn.raw] = def

	for _, l := range locals {
		p.mustExist(l)
		p.defs[l.raw].Parent = fn
	}
}

func (p *Pool) mustExist(i Index) {
	if int(i.raw) >= len(p.defs) {
		panic(fmt.Sprintf("pool: index %s out of range (len=%d)", i, len(p.defs)))
	}
}
