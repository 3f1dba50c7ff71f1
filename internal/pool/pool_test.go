package pool

import "testing"

func TestUndefinedSentinel(t *testing.T) {
	if Undefined.Raw() != 0 {
		t.Fatalf("Undefined.Raw() = %d, want 0", Undefined.Raw())
	}
	names := NewStringTable(KindString, "None")
	p := New(names)
	def := p.Definition(Undefined)
	if _, ok := def.Value.(UndefinedDef); !ok {
		t.Fatalf("pool slot 0 is not UndefinedDef: %#v", def.Value)
	}
}

func TestReserveThenPut(t *testing.T) {
	p := New(NewStringTable(KindString, "None"))
	idx := p.Reserve(KindFunction)
	if idx.Kind() != KindFunction {
		t.Fatalf("reserved kind = %v, want Function", idx.Kind())
	}
	p.Put(idx, Definition{Value: Function{Flags: FunctionFlags{IsStatic: true}}})
	fn, ok := p.Definition(idx).Value.(Function)
	if !ok || !fn.Flags.IsStatic {
		t.Fatalf("Put did not stick: %#v", p.Definition(idx))
	}
}

func TestCompleteFunctionRewiresLocalParents(t *testing.T) {
	p := New(NewStringTable(KindString, "None"))
	fn := p.Reserve(KindFunction)
	p.Put(fn, Definition{Value: Function{}})

	l1 := p.Add(Definition{Parent: Undefined, Value: Local{}})
	l2 := p.Add(Definition{Parent: Undefined, Value: Local{}})

	p.CompleteFunction(fn, []Index{l1, l2}, []byte{0x01, 0x02})

	for _, l := range []Index{l1, l2} {
		if p.Definition(l).Parent != fn {
			t.Fatalf("local %s parent = %s, want %s", l, p.Definition(l).Parent, fn)
		}
	}
	f := p.Definition(fn).Value.(Function)
	if len(f.Code) != 2 || len(f.Locals) != 2 {
		t.Fatalf("function body not written: %#v", f)
	}
}

func TestSwapPreservesBothPayloads(t *testing.T) {
	p := New(NewStringTable(KindString, "None"))
	a := p.Add(Definition{Value: Function{Flags: FunctionFlags{IsCallback: true}}})
	b := p.Add(Definition{Value: Function{Flags: FunctionFlags{IsStatic: true}}})

	p.Swap(a, b)

	if !p.Definition(a).Value.(Function).Flags.IsStatic {
		t.Fatalf("slot a should now hold the static function")
	}
	if !p.Definition(b).Value.(Function).Flags.IsCallback {
		t.Fatalf("slot b should now hold the callback function")
	}
}

func TestStringTableInterning(t *testing.T) {
	names := NewStringTable(KindString, "None")
	i1 := names.Add("Foo")
	i2 := names.Add("Foo")
	if i1 != i2 {
		t.Fatalf("Add(\"Foo\") twice gave different indices: %v vs %v", i1, i2)
	}
	if names.Get(i1) != "Foo" {
		t.Fatalf("Get(%v) = %q, want Foo", i1, names.Get(i1))
	}
	if undef := names.Add("None"); !undef.IsUndefined() {
		t.Fatalf("adding the table default should yield the undefined index, got %v", undef)
	}
}

func TestRootsExcludesOwnedDefinitions(t *testing.T) {
	p := New(NewStringTable(KindString, "None"))
	root := p.Add(Definition{Parent: Undefined, Value: Class{}})
	owned := p.Add(Definition{Parent: root, Value: Function{}})

	roots := p.Roots()
	found := map[uint32]bool{}
	for _, r := range roots {
		found[r.Raw()] = true
	}
	if !found[root.Raw()] {
		t.Fatalf("expected root class to be in Roots(): %v", roots)
	}
	if found[owned.Raw()] {
		t.Fatalf("owned function should not appear in Roots(): %v", roots)
	}
}
