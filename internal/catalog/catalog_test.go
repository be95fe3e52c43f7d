package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/philipparndt/gomesh/pkg/loader"
	"github.com/philipparndt/gomesh/pkg/parse"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpsertAndGet(t *testing.T) {
	db := testDB(t)
	mt := time.Unix(1700000000, 123456789)

	e := Entry{
		Path:      "/models/cube.stl",
		Format:    "STL",
		ModTime:   mt,
		Size:      684,
		Triangles: 12,
		Vertices:  36,
		Min:       [3]float64{0, 0, 0},
		Max:       [3]float64{10, 10, 10},
		ParseTime: 3,
	}
	if err := db.Upsert(e); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := db.Get(e.Path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.ModTime.Equal(mt) {
		t.Errorf("mod time = %v, want %v", got.ModTime, mt)
	}
	if got.Triangles != 12 || got.Max != e.Max || got.ParseTime.Duration() != 3*time.Millisecond {
		t.Errorf("unexpected entry %+v", got)
	}

	e.Triangles = 24
	e.Error = "parse error"
	if err := db.Upsert(e); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, _ = db.Get(e.Path)
	if got.Triangles != 24 || got.Error != "parse error" {
		t.Errorf("expected updated entry, got %+v", got)
	}
}

func TestGetMissing(t *testing.T) {
	db := testDB(t)
	if _, err := db.Get("/nope.stl"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListAndDelete(t *testing.T) {
	db := testDB(t)
	for _, e := range []Entry{
		{Path: "/m/c.obj", Format: "OBJ"},
		{Path: "/m/a.stl", Format: "STL"},
		{Path: "/m/b.stl", Format: "STL"},
	} {
		if err := db.Upsert(e); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	all, total, err := db.List("", 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 || len(all) != 3 || all[0].Path != "/m/a.stl" {
		t.Errorf("expected 3 entries ordered by path, got %d %+v", total, all)
	}

	stl, total, err := db.List("STL", 1, 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(stl) != 1 || stl[0].Path != "/m/b.stl" {
		t.Errorf("expected second STL page, got %d %+v", total, stl)
	}

	if err := db.Delete("/m/a.stl"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	mts, err := db.ModTimes()
	if err != nil {
		t.Fatalf("ModTimes: %v", err)
	}
	if len(mts) != 2 {
		t.Errorf("expected 2 entries after delete, got %d", len(mts))
	}
}

const quad = "v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nf 1 2 3 4\n"

func TestScan(t *testing.T) {
	root := t.TempDir()
	write := func(rel, body string) string {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}
	good := write("parts/quad.obj", quad)
	bad := write("broken.stl", "solid x\n  facet normal 0 0 1\nendsolid x\n")
	write("README.txt", "not a model\n")
	write(".hidden/quad.obj", quad)

	db := testDB(t)
	l := loader.New(parse.Options{})
	ctx := context.Background()

	res, err := Scan(ctx, db, l, root, ScanOptions{Workers: 2})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Parsed != 1 || res.Failed != 1 || res.Ignored != 1 {
		t.Errorf("unexpected first scan result %+v", res)
	}

	e, err := db.Get(good)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.Format != "OBJ" || e.Triangles != 2 || e.Max != [3]float64{1, 1, 0} {
		t.Errorf("unexpected entry %+v", e)
	}
	if e, err := db.Get(bad); err != nil || e.Error == "" {
		t.Errorf("expected failure recorded for %s, got %+v, %v", bad, e, err)
	}

	res, err = Scan(ctx, db, l, root, ScanOptions{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Parsed != 0 || res.Unchanged != 2 {
		t.Errorf("expected unchanged files to be skipped, got %+v", res)
	}

	if err := os.Remove(good); err != nil {
		t.Fatal(err)
	}
	res, err = Scan(ctx, db, l, root, ScanOptions{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Removed != 1 {
		t.Errorf("expected stale entry removed, got %+v", res)
	}
	if _, err := db.Get(good); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected %s gone from catalog, got %v", good, err)
	}
}

func TestScanCancelled(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "quad.obj"), []byte(quad), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Scan(ctx, testDB(t), loader.New(parse.Options{}), root, ScanOptions{}); err == nil {
		t.Error("expected error from cancelled scan")
	}
}
