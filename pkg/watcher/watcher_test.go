package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "part.stl")
	if err := os.WriteFile(path, []byte("solid a\nendsolid a\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	fw, err := NewFileWatcher(50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v", err)
	}
	defer fw.Close()

	changed := make(chan string, 10)
	if err := fw.Watch([]string{path}, func(p string) { changed <- p }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	fw.Start()

	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("solid b\nendsolid b\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	abs, _ := filepath.Abs(path)
	select {
	case got := <-changed:
		if got != abs {
			t.Errorf("expected callback for %s, got %s", abs, got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("expected a change notification")
	}

	select {
	case got := <-changed:
		t.Errorf("expected writes to be debounced into one callback, got another for %s", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestUnwatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part.obj")
	if err := os.WriteFile(path, []byte("v 0 0 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	fw, err := NewFileWatcher(10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v", err)
	}
	defer fw.Close()

	changed := make(chan string, 10)
	if err := fw.Watch([]string{path}, func(p string) { changed <- p }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	fw.Start()

	if err := fw.Unwatch(path); err != nil {
		t.Fatalf("Unwatch() error = %v", err)
	}
	if err := fw.Unwatch(path); err != nil {
		t.Errorf("second Unwatch() should be a no-op, got %v", err)
	}
	if err := os.WriteFile(path, []byte("v 1 1 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changed:
		t.Errorf("expected no callback after Unwatch, got %s", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatchMissingFile(t *testing.T) {
	fw, err := NewFileWatcher(time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v", err)
	}
	defer fw.Close()

	if err := fw.Watch([]string{filepath.Join(t.TempDir(), "missing.stl")}, func(string) {}); err == nil {
		t.Error("expected error watching a missing file")
	}
}
