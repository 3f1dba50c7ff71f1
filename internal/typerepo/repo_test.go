package typerepo

import "testing"

func TestOverloadAddLaw(t *testing.T) {
	m := NewOverloadMap()
	m.Add("greet", "()->String", FunctionEntry{Return: TPrim{P: PrimString}})
	m.Add("greet", "(Int32)->String", FunctionEntry{Params: []Type{TPrim{P: PrimInt32}}, Return: TPrim{P: PrimString}})

	entries := m.ByName("greet")
	if len(entries) != 2 {
		t.Fatalf("expected 2 overloads, got %d", len(entries))
	}
	if entries[0].Signature != "()->String" {
		t.Fatalf("first entry should preserve insertion order, got %q", entries[0].Signature)
	}

	// Re-adding the same signature must not duplicate the entry
	// (spec.md §8 property 5).
	m.Add("greet", "()->String", FunctionEntry{Return: TPrim{P: PrimString}, Flags: FunctionFlags{IsFinal: true}})
	entries = m.ByName("greet")
	if len(entries) != 2 {
		t.Fatalf("re-adding an existing signature must not duplicate: got %d entries", len(entries))
	}
}

func TestExactlyOneRejectsOverloads(t *testing.T) {
	m := NewOverloadMap()
	m.Add("greet", "()->String", FunctionEntry{})
	if _, err := m.ExactlyOne("greet"); err != nil {
		t.Fatalf("single overload should resolve: %v", err)
	}
	m.Add("greet", "(Int32)->String", FunctionEntry{})
	if _, err := m.ExactlyOne("greet"); err == nil {
		t.Fatalf("ambiguous overload set must error, per spec.md's preserved exactly_one() limitation")
	}
}

func TestAncestorChainSkipsSelf(t *testing.T) {
	r := New()
	r.Define("A", Class{Methods: NewOverloadMap(), Statics: NewOverloadMap()})
	r.Define("B", Class{Extends: &Parameterized{ID: "A"}, Methods: NewOverloadMap(), Statics: NewOverloadMap()})
	r.Define("C", Class{Extends: &Parameterized{ID: "B"}, Methods: NewOverloadMap(), Statics: NewOverloadMap()})

	chain := r.AncestorChain("C")
	if len(chain) != 2 || chain[0] != "B" || chain[1] != "A" {
		t.Fatalf("AncestorChain(C) = %v, want [B A]", chain)
	}
	if r.Depth("C") != 2 || r.Depth("A") != 0 {
		t.Fatalf("depths wrong: C=%d A=%d", r.Depth("C"), r.Depth("A"))
	}
}

func TestSameShapeAllowsVarPromotion(t *testing.T) {
	if !SameShape(TVar{Name: "T"}, TPrim{P: PrimInt32}) {
		t.Fatalf("a Var position in the ancestor must align with a concrete override position")
	}
	if SameShape(TPrim{P: PrimInt32}, TData{ID: "Foo"}) {
		t.Fatalf("primitive and data-kind positions must not be shape-compatible")
	}
}
