package bundlecfg

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadParsesManifest(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "bundlecfg.yaml")

	content := `predef: final.redscript
roots:
  - ./src
  - ./vendor/scripts
pattern: "**/*.script"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Predef != "final.redscript" {
		t.Errorf("expected predef path, got %q", m.Predef)
	}
	if len(m.Roots) != 2 || m.Roots[0] != "./src" || m.Roots[1] != "./vendor/scripts" {
		t.Errorf("unexpected roots: %v", m.Roots)
	}
	if m.Pattern != "**/*.script" {
		t.Errorf("expected overridden pattern, got %q", m.Pattern)
	}
}

func TestLoadRejectsManifestWithNoRoots(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "bundlecfg.yaml")

	if err := os.WriteFile(path, []byte("predef: final.redscript\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a manifest with no roots")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing manifest file")
	}
}
