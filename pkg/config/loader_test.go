package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadProblem(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "problem.yaml")
	if err := os.WriteFile(path, []byte(validProblemYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p, err := LoadProblem(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Source.WavelengthUM != 1.55 {
		t.Fatalf("wavelength: got %f", p.Source.WavelengthUM)
	}
}

func TestLoadProblemMissingFile(t *testing.T) {
	_, err := LoadProblem(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}
