package bundle

import (
	"testing"

	"github.com/emberscript/emberc/internal/pool"
)

func buildSamplePool(t *testing.T) (*pool.Pool, *pool.Tables) {
	t.Helper()
	tables := pool.NewTables()
	p := pool.New(tables.Names)

	intType := tables.Names.Add("int")
	classNameIdx := tables.Names.Add("Vehicle")
	methodNameIdx := tables.Names.Add("honk")

	typeIdx := p.Add(pool.Definition{Name: intType, Value: pool.PoolType{Tag: pool.TypePrim, Prim: "int"}})

	methodIdx := p.Reserve(pool.KindFunction)
	p.Put(methodIdx, pool.Definition{
		Name:  methodNameIdx,
		Value: pool.Function{ReturnType: typeIdx, Flags: pool.FunctionFlags{IsFinal: true}},
	})
	p.CompleteFunction(methodIdx, nil, []byte{0xAA, 0xBB})

	classIdx := p.Add(pool.Definition{
		Name: classNameIdx,
		Value: pool.Class{
			Methods: []pool.Index{methodIdx},
		},
	})
	_ = classIdx

	return p, tables
}

func TestBundleRoundTrip(t *testing.T) {
	p1, tables1 := buildSamplePool(t)

	data, err := Encode(p1, tables1)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	p2, tables2, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if p1.Len() != p2.Len() {
		t.Fatalf("definition count changed: %d vs %d", p1.Len(), p2.Len())
	}
	if tables2.Names.Len() != tables1.Names.Len() {
		t.Fatalf("names table size changed: %d vs %d", tables1.Names.Len(), tables2.Names.Len())
	}

	// Semantic round trip: re-encode and decode again, expect stability.
	data2, err := Encode(p2, tables2)
	if err != nil {
		t.Fatalf("second Encode: %v", err)
	}
	p3, _, err := Decode(data2)
	if err != nil {
		t.Fatalf("second Decode: %v", err)
	}
	if p2.Len() != p3.Len() {
		t.Fatalf("second round trip changed definition count: %d vs %d", p2.Len(), p3.Len())
	}
}

func TestBundleStringDedup(t *testing.T) {
	tables := pool.NewTables()
	shared := "shared_string"
	tables.Names.Add(shared)
	tables.Free.Add(shared) // same string interned in a different table

	p := pool.New(tables.Names)
	data, err := Encode(p, tables)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Count occurrences of the length-prefixed encoding of `shared` in the
	// data blob; it must appear exactly once (spec.md §8 property 2).
	needle := append([]byte{byte(len(shared)), 0}, shared...)
	count := 0
	for i := 0; i+len(needle) <= len(data); i++ {
		match := true
		for j := range needle {
			if data[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected shared string to appear exactly once in blob, found %d", count)
	}
}

func TestUndefinedSlotNeverEmitted(t *testing.T) {
	p, tables := buildSamplePool(t)
	data, err := Encode(p, tables)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	p2, _, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := p2.Definition(pool.Undefined).Value.(pool.UndefinedDef); !ok {
		t.Fatalf("slot 0 must decode back to UndefinedDef")
	}
}

func TestLocalsStayAdjacentToFunctionAfterRoundTrip(t *testing.T) {
	tables := pool.NewTables()
	p := pool.New(tables.Names)
	fn := p.Reserve(pool.KindFunction)
	p.Put(fn, pool.Definition{Name: tables.Names.Add("f"), Value: pool.Function{}})
	l1 := p.Add(pool.Definition{Value: pool.Local{}})
	p.CompleteFunction(fn, []pool.Index{l1}, []byte{0x01})

	data, err := Encode(p, tables)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	p2, _, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	var fnIdx2 pool.Index
	for raw := 2; raw < p2.Len(); raw++ {
		idx := pool.NewIndex(pool.KindDef, uint32(raw))
		if fd, ok := p2.Definition(idx).Value.(pool.Function); ok && len(fd.Locals) == 1 {
			fnIdx2 = idx
			for _, l := range fd.Locals {
				if !p2.Definition(l).Parent.Eq(fnIdx2) {
					t.Fatalf("decoded local parent %s != function %s", p2.Definition(l).Parent, fnIdx2)
				}
			}
		}
	}
	if fnIdx2.IsUndefined() {
		t.Fatalf("did not find decoded function with locals")
	}
}
