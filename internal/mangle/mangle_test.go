package mangle

import (
	"testing"

	"github.com/emberscript/emberc/internal/typerepo"
)

func TestMangleIsIdempotent(t *testing.T) {
	c := New()
	ty := typerepo.Array(typerepo.Ref(typerepo.TData{ID: "Foo"}))

	first := c.Mangle(ty)
	second := c.Mangle(ty)
	if first != second {
		t.Fatalf("mangling the same structural type twice must agree: %q vs %q", first, second)
	}

	// A freshly-built but structurally identical type must mangle the same,
	// proving the cache keys on structure, not pointer identity.
	other := typerepo.Array(typerepo.Ref(typerepo.TData{ID: "Foo"}))
	if c.Mangle(other) != first {
		t.Fatalf("structurally equal types must mangle identically")
	}
}

func TestMangleDistinguishesWrapOrder(t *testing.T) {
	c := New()
	arrayOfRef := typerepo.Array(typerepo.Ref(typerepo.TData{ID: "Foo"}))
	refOfArray := typerepo.Ref(typerepo.Array(typerepo.TData{ID: "Foo"}))

	if c.Mangle(arrayOfRef) == c.Mangle(refOfArray) {
		t.Fatalf("array<ref<Foo>> and ref<array<Foo>> must not collide")
	}
}

func TestMangleErasesPolymorphicPositions(t *testing.T) {
	c := New()
	if c.Mangle(typerepo.TVar{Name: "T"}) != typerepo.IDScriptable {
		t.Fatalf("Var must erase to IScriptable")
	}
	if c.Mangle(typerepo.TTop{}) != typerepo.IDScriptable {
		t.Fatalf("Top must erase to IScriptable")
	}
	if c.Mangle(typerepo.TBottom{}) != typerepo.IDScriptable {
		t.Fatalf("Bottom must erase to IScriptable")
	}
}

func TestSignatureJoinsParamsAndReturn(t *testing.T) {
	c := New()
	sig := Signature(c, []typerepo.Type{typerepo.TPrim{P: typerepo.PrimInt32}}, typerepo.TPrim{P: typerepo.PrimString})
	if sig != "(Int32)->String" {
		t.Fatalf("got %q", sig)
	}
}
