package parser

import "testing"

func TestParseSimpleClass(t *testing.T) {
	src := `
class Foo {
	x: Int32;

	func Add(a: Int32, b: Int32) -> Int32 {
		return a + b;
	}
}
`
	mod, err := ParseFile([]byte(src), "test.script")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if len(mod.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(mod.Entries))
	}
}

func TestParseImportForms(t *testing.T) {
	src := `
import math.vector
import math.{Dot, Cross}
import util.*

func Main() {
	let x: Int32 = 1;
}
`
	mod, err := ParseFile([]byte(src), "test.script")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if len(mod.Imports) != 3 {
		t.Fatalf("expected 3 imports, got %d", len(mod.Imports))
	}
}

func TestParseAnnotatedFunction(t *testing.T) {
	src := `
@replaceMethod(Player)
func OnSpawn() {
	this.Health = 100;
}
`
	mod, err := ParseFile([]byte(src), "test.script")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if len(mod.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(mod.Entries))
	}
}

func TestParseErrorReported(t *testing.T) {
	_, err := ParseFile([]byte("class {"), "broken.script")
	if err == nil {
		t.Fatalf("expected a parse error")
	}
}
