package ident

import "testing"

func TestNormalizeStripsBOM(t *testing.T) {
	src := append([]byte{0xEF, 0xBB, 0xBF}, []byte("class Foo {}")...)
	got := Normalize(src)
	if string(got) != "class Foo {}" {
		t.Fatalf("expected BOM stripped, got %q", got)
	}
}

func TestNormalizeUnifiesNFCAndNFD(t *testing.T) {
	nfc := "café"        // e-acute as one precomposed code point (U+00E9)
	nfd := "café"       // e + combining acute accent (U+0065 U+0301)
	if nfc == nfd {
		t.Fatalf("test fixture error: nfc and nfd forms must differ byte-for-byte")
	}
	if NormalizeString(nfc) != NormalizeString(nfd) {
		t.Fatalf("NFC and NFD spellings of the same identifier must normalize identically")
	}
}

func TestTableInternsSameBackingString(t *testing.T) {
	tbl := NewTable()
	a := tbl.Intern("café")
	b := tbl.Intern("café")
	if a != b {
		t.Fatalf("expected interned forms to be equal: %q vs %q", a, b)
	}
}
