package scope

import "testing"

func TestLookupShadowing(t *testing.T) {
	root := New[int]()
	root.Bind("x", 1)

	inner := root.Push()
	inner.Bind("x", 2)

	if v, ok := inner.Lookup("x"); !ok || v != 2 {
		t.Fatalf("inner scope should shadow: got %v, %v", v, ok)
	}
	if v, ok := root.Lookup("x"); !ok || v != 1 {
		t.Fatalf("root scope must be unaffected by inner bindings: got %v, %v", v, ok)
	}
}

func TestLookupWalksToParent(t *testing.T) {
	root := New[string]()
	root.Bind("greeting", "hi")
	child := root.Push()

	if v, ok := child.Lookup("greeting"); !ok || v != "hi" {
		t.Fatalf("child scope should see root bindings: got %v, %v", v, ok)
	}
	if _, ok := child.LookupLocal("greeting"); ok {
		t.Fatalf("LookupLocal must not see parent bindings")
	}
}

func TestPopReturnsParent(t *testing.T) {
	root := New[int]()
	child := root.Push()
	if child.Pop() != root {
		t.Fatalf("Pop() should return the exact parent frame")
	}
	if root.Pop() != nil {
		t.Fatalf("popping the root frame should yield nil")
	}
}
