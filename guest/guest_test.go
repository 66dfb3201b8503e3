package guest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.wasm")
	if err := os.WriteFile(path, []byte{0x00, 0x61, 0x73, 0x6d}, 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Name() != path {
		t.Errorf("expected name %q, got %q", path, m.Name())
	}
	if len(m.Wasm()) != 4 {
		t.Errorf("expected 4 bytes, got %d", len(m.Wasm()))
	}
}

func TestLoadRejectsOtherExtensions(t *testing.T) {
	if _, err := Load("script.py"); err == nil {
		t.Error("expected error for non-wasm file")
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.wasm")); err == nil {
		t.Error("expected error for missing file")
	}
}
