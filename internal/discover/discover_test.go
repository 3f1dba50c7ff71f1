package discover

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFilesMatchesPatternAndSorts(t *testing.T) {
	dir := t.TempDir()
	must := func(err error) {
		if err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}

	must(os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	must(os.WriteFile(filepath.Join(dir, "b.script"), []byte(""), 0o644))
	must(os.WriteFile(filepath.Join(dir, "a.script"), []byte(""), 0o644))
	must(os.WriteFile(filepath.Join(dir, "sub", "c.script"), []byte(""), 0o644))
	must(os.WriteFile(filepath.Join(dir, "ignore.txt"), []byte(""), 0o644))

	files, err := Files(dir, DefaultPattern)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 matches, got %d: %v", len(files), files)
	}
	for i := 1; i < len(files); i++ {
		if files[i-1] > files[i] {
			t.Fatalf("expected sorted output, got %v", files)
		}
	}
}
