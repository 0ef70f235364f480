package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreWriteAndRemove(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "https://cdn.example/assets")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	key, err := store.Write(context.Background(), "jobs/j1/scenes/01/image.png", []byte("png-bytes"), "image/png")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if key != "jobs/j1/scenes/01/image.png" {
		t.Fatalf("key = %q", key)
	}

	data, err := os.ReadFile(filepath.Join(store.BasePath(), "jobs", "j1", "scenes", "01", "image.png"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("content = %q", data)
	}

	read, err := store.Read(context.Background(), key)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(read) != "png-bytes" {
		t.Fatalf("Read content = %q", read)
	}
	if _, err := store.Read(context.Background(), "jobs/j1/missing.png"); err == nil {
		t.Fatalf("reading a missing key must error")
	}

	if got := store.URL(key); got != "https://cdn.example/assets/jobs/j1/scenes/01/image.png" {
		t.Fatalf("url = %q", got)
	}

	if err := store.Remove(context.Background(), key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.BasePath(), "jobs", "j1", "scenes", "01", "image.png")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("file should be gone, stat err = %v", err)
	}
	if err := store.Remove(context.Background(), key); err != nil {
		t.Fatalf("removing a missing key should not error: %v", err)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	for _, key := range []string{"", "..", "../escape.txt", "a/../../escape.txt"} {
		if _, err := store.Write(context.Background(), key, []byte("x"), ""); err == nil {
			t.Fatalf("key %q should be rejected", key)
		}
	}

	key, err := store.Write(context.Background(), "/leading/slash.txt", []byte("x"), "")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if key != "leading/slash.txt" {
		t.Fatalf("key = %q", key)
	}
}

func TestFileStoreDefaultURLPrefix(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if got := store.URL("jobs/j1/narration.wav"); got != "/assets/jobs/j1/narration.wav" {
		t.Fatalf("url = %q", got)
	}
}
