package openscad

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveDependencies(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "lib")
	if err := os.Mkdir(lib, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		filepath.Join(dir, "main.scad"):  "use <lib/shapes.scad>\n// include <ignored.scad>\ninclude <./params.scad>\ncube(1);\n",
		filepath.Join(dir, "params.scad"): "size = 2;\ninclude <main.scad>\n",
		filepath.Join(lib, "shapes.scad"): "module box() { cube(size); }\n",
	}
	for path, body := range files {
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	deps, err := NewRenderer(dir, nil).ResolveDependencies("main.scad")
	if err != nil {
		t.Fatalf("ResolveDependencies() error = %v", err)
	}

	want := []string{
		filepath.Join(dir, "main.scad"),
		filepath.Join(lib, "shapes.scad"),
		filepath.Join(dir, "params.scad"),
	}
	if len(deps) != len(want) {
		t.Fatalf("expected %v, got %v", want, deps)
	}
	for i := range want {
		if deps[i] != want[i] {
			t.Errorf("dependency %d: expected %s, got %s", i, want[i], deps[i])
		}
	}
}

func TestResolveDependenciesMissingFile(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.scad")
	if err := os.WriteFile(main, []byte("use <missing.scad>\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewRenderer(dir, nil).ResolveDependencies(main); err == nil {
		t.Error("expected error for a missing dependency")
	}
}

func TestRenderNotInstalled(t *testing.T) {
	r := NewRenderer(t.TempDir(), nil).WithBinary("openscad-does-not-exist")
	err := r.RenderToSTL(context.Background(), "main.scad", "out.stl")
	if !errors.Is(err, ErrNotInstalled) {
		t.Errorf("expected ErrNotInstalled, got %v", err)
	}
}

func TestIsSource(t *testing.T) {
	for path, want := range map[string]bool{
		"part.scad": true,
		"PART.SCAD": true,
		"part.stl":  false,
		"scad":      false,
	} {
		if got := IsSource(path); got != want {
			t.Errorf("IsSource(%q) = %v, expected %v", path, got, want)
		}
	}
}
