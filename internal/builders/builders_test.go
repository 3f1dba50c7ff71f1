package builders

import (
	"testing"

	"github.com/emberscript/emberc/internal/pool"
	"github.com/emberscript/emberc/internal/typerepo"
)

func newFixture() (*pool.Pool, *pool.Tables, *typerepo.TypeRepo, *TypeCache) {
	tables := pool.NewTables()
	p := pool.New(tables.Names)
	repo := typerepo.New()
	cache := NewTypeCache(p, tables.Names)
	return p, tables, repo, cache
}

func TestAllocTypeIsIdempotent(t *testing.T) {
	_, _, repo, cache := newFixture()
	a := cache.Alloc(typerepo.TPrim{P: typerepo.PrimInt32}, repo)
	b := cache.Alloc(typerepo.TPrim{P: typerepo.PrimInt32}, repo)
	if !a.Eq(b) {
		t.Fatalf("identical language types must yield the same pool index: %v vs %v", a, b)
	}
}

func TestAllocTypeWrapsNonStructClassAsRef(t *testing.T) {
	p, _, repo, cache := newFixture()
	classIdx := p.Reserve(pool.KindClass)
	repo.Define("Foo", typerepo.Class{Methods: typerepo.NewOverloadMap(), Statics: typerepo.NewOverloadMap()})
	repo.SetClassPoolIndex("Foo", classIdx)

	idx := cache.Alloc(typerepo.TData{ID: "Foo"}, repo)
	def := p.Definition(idx)
	pt, ok := def.Value.(pool.PoolType)
	if !ok {
		t.Fatalf("expected a PoolType definition, got %T", def.Value)
	}
	if pt.Tag != pool.TypeRef {
		t.Fatalf("a non-struct class reference must implicitly wrap as ref<T>, got tag %v", pt.Tag)
	}
}

func TestAllocTypeDoesNotWrapStructs(t *testing.T) {
	p, _, repo, cache := newFixture()
	classIdx := p.Reserve(pool.KindClass)
	repo.Define("Vector3", typerepo.Class{
		Methods: typerepo.NewOverloadMap(), Statics: typerepo.NewOverloadMap(),
		Flags: typerepo.ClassFlags{IsStruct: true},
	})
	repo.SetClassPoolIndex("Vector3", classIdx)

	idx := cache.Alloc(typerepo.TData{ID: "Vector3"}, repo)
	def := p.Definition(idx)
	pt := def.Value.(pool.PoolType)
	if pt.Tag != pool.TypeClass {
		t.Fatalf("a struct must serialize bare, got tag %v", pt.Tag)
	}
}

func TestFunctionBuilderParentsParamsToReservedIndex(t *testing.T) {
	p, _, repo, cache := newFixture()
	classIdx := p.Reserve(pool.KindClass)

	fb := &FunctionBuilder{
		Name:   "DoThing",
		Params: []ParamSpec{{Name: "amount", Type: typerepo.TPrim{P: typerepo.PrimInt32}}},
	}
	fnIdx := fb.Commit(classIdx, repo, p, cache)

	fn := p.Definition(fnIdx).Value.(pool.Function)
	if len(fn.Params) != 1 {
		t.Fatalf("expected 1 param, got %d", len(fn.Params))
	}
	paramDef := p.Definition(fn.Params[0])
	if !paramDef.Parent.Eq(fnIdx) {
		t.Fatalf("parameter must be parented to the function it belongs to")
	}
}

func TestFunctionBuilderSuppressesCallbackOnWrapper(t *testing.T) {
	p, _, repo, cache := newFixture()
	classIdx := p.Reserve(pool.KindClass)

	fb := &FunctionBuilder{
		Name:      "OnUpdate",
		Flags:     pool.FunctionFlags{IsCallback: true},
		IsWrapper: true,
	}
	fnIdx := fb.Commit(classIdx, repo, p, cache)
	fn := p.Definition(fnIdx).Value.(pool.Function)
	if fn.Flags.IsCallback {
		t.Fatalf("a wrapper shim must never carry is_callback, even if requested")
	}
}

func TestFunctionBuilderElidesUnitReturn(t *testing.T) {
	p, _, repo, cache := newFixture()
	classIdx := p.Reserve(pool.KindClass)
	fb := &FunctionBuilder{Name: "Log"}
	fnIdx := fb.Commit(classIdx, repo, p, cache)
	fn := p.Definition(fnIdx).Value.(pool.Function)
	if !fn.ReturnType.IsUndefined() {
		t.Fatalf("a Unit return type must be stored as the undefined index")
	}
}

func TestEnumBuilderCommitsMembersParentedToEnum(t *testing.T) {
	p, tables, _, _ := newFixture()
	enumIdx := p.Reserve(pool.KindEnum)
	eb := &EnumBuilder{Members: []typerepo.EnumMember{{Name: "Red", Value: 0}, {Name: "Blue", Value: 1}}}
	nameIdx := tables.Names.Add("Color")
	eb.CommitAs(enumIdx, nameIdx, p, tables.Names)

	en := p.Definition(enumIdx).Value.(pool.Enum)
	if len(en.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(en.Members))
	}
	for _, m := range en.Members {
		if !p.Definition(m).Parent.Eq(enumIdx) {
			t.Fatalf("enum member must be parented to its enum")
		}
	}
}
