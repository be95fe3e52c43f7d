package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const cube = `o cube
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
v 0 0 1
v 1 0 1
v 1 1 1
v 0 1 1
f 1 4 3 2
f 5 6 7 8
f 1 2 6 5
f 2 3 7 6
f 3 4 8 7
f 4 1 5 8
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestCommands(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	objPath := filepath.Join(dir, "cube.obj")
	if err := os.WriteFile(objPath, []byte(cube), 0o644); err != nil {
		t.Fatal(err)
	}
	stlPath := filepath.Join(dir, "cube.stl")

	t.Run("detect", func(t *testing.T) {
		out, err := run(t, "detect", objPath)
		if err != nil {
			t.Fatalf("detect failed: %v", err)
		}
		if !strings.Contains(out, "OBJ") {
			t.Errorf("expected OBJ, got %q", out)
		}
	})

	t.Run("parse", func(t *testing.T) {
		out, err := run(t, "parse", objPath)
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		for _, want := range []string{"Name: cube", "Triangles: 12", "Surface Area: 6.000000", "Volume: 1.000000", "Result: OK"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}
	})

	t.Run("convert", func(t *testing.T) {
		if _, err := run(t, "convert", objPath, stlPath); err != nil {
			t.Fatalf("convert failed: %v", err)
		}
		out, err := run(t, "info", stlPath)
		if err != nil {
			t.Fatalf("info failed: %v", err)
		}
		if !strings.Contains(out, "Format: STL") || !strings.Contains(out, "Triangles: 12") {
			t.Errorf("unexpected info output:\n%s", out)
		}
	})

	t.Run("edges", func(t *testing.T) {
		out, err := run(t, "edges", "--longest", "-n", "2", objPath)
		if err != nil {
			t.Fatalf("edges failed: %v", err)
		}
		if !strings.Contains(out, "Top 2 Longest Edges") || !strings.Contains(out, "1.414214") {
			t.Errorf("unexpected edges output:\n%s", out)
		}
	})

	t.Run("scan", func(t *testing.T) {
		db := filepath.Join(t.TempDir(), "catalog.db")
		out, err := run(t, "scan", "--catalog", db, "--list", dir)
		if err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		if !strings.Contains(out, "Parsed: 2") || !strings.Contains(out, "Catalog (2 entries)") {
			t.Errorf("unexpected scan output:\n%s", out)
		}
	})

	t.Run("validate failure", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.obj")
		if err := os.WriteFile(bad, []byte("v 0 0 0\nv 1 0 0\nf 1 2 7\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		defer os.Remove(bad)

		out, err := run(t, "validate", objPath, bad)
		if err == nil {
			t.Error("expected error for invalid file")
		}
		if !strings.Contains(out, "OK   "+objPath) || !strings.Contains(out, "FAIL "+bad) {
			t.Errorf("unexpected validate output:\n%s", out)
		}
	})
}
