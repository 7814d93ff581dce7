package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestReportsRemovedFiles(t *testing.T) {
	dir := t.TempDir()
	victim := filepath.Join(dir, "A (2).jpg")
	if err := os.WriteFile(victim, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	gone := make(chan string, 4)
	w, err := New(func(p string) { gone <- p })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Follow(dir); err != nil {
		t.Fatalf("Follow: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if err := os.Remove(victim); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-gone:
		if p != victim {
			t.Errorf("reported %q, want %q", p, victim)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("removal was not reported")
	}
}

func TestFollowSwitchesDirectory(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	oldFile := filepath.Join(first, "old.jpg")
	newFile := filepath.Join(second, "new.jpg")
	os.WriteFile(oldFile, []byte("x"), 0o644)
	os.WriteFile(newFile, []byte("x"), 0o644)

	gone := make(chan string, 4)
	w, err := New(func(p string) { gone <- p })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Follow(first); err != nil {
		t.Fatal(err)
	}
	if err := w.Follow(second); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	os.Remove(oldFile)
	os.Remove(newFile)

	select {
	case p := <-gone:
		if p != newFile {
			t.Errorf("reported %q, want only files of the followed dir", p)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("removal was not reported")
	}
}
