package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFilesystemStore_PutDelete(t *testing.T) {
	root := t.TempDir()
	store, err := NewFilesystemStore(root, "https://accounts.example.com/media/")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "avatar/u1-abc.png", strings.NewReader("png-bytes"), 9, "image/png"); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(root, "avatar", "u1-abc.png"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "png-bytes" {
		t.Fatalf("unexpected content %q", got)
	}

	if url := store.URL("avatar/u1-abc.png"); url != "https://accounts.example.com/media/avatar/u1-abc.png" {
		t.Fatalf("unexpected url %q", url)
	}

	if err := store.Delete(ctx, "avatar/u1-abc.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "avatar", "u1-abc.png")); !os.IsNotExist(err) {
		t.Fatalf("expected file to be removed, stat err=%v", err)
	}
	if err := store.Delete(ctx, "avatar/u1-abc.png"); err != nil {
		t.Fatalf("deleting a missing blob must not fail: %v", err)
	}
}

func TestFilesystemStore_StaysUnderRoot(t *testing.T) {
	root := t.TempDir()
	store, err := NewFilesystemStore(filepath.Join(root, "media"), "/media")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if err := store.Put(context.Background(), "../escape.txt", strings.NewReader("x"), 1, ""); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "escape.txt")); !os.IsNotExist(err) {
		t.Fatal("blob escaped the storage root")
	}
	if _, err := os.Stat(filepath.Join(root, "media", "escape.txt")); err != nil {
		t.Fatalf("expected blob inside root: %v", err)
	}

	if err := store.Put(context.Background(), "", strings.NewReader("x"), 1, ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	if _, err := New(context.Background(), Config{Provider: "tape"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if _, err := New(context.Background(), Config{Provider: ProviderMinio}); err == nil {
		t.Fatal("expected error for incomplete minio config")
	}
}

func TestJoinURL(t *testing.T) {
	tests := map[string][2]string{
		"http://m.test/avatar/a.png": {"http://m.test/", "/avatar/a.png"},
		"/media/avatar/a.png":        {"/media", "avatar/a.png"},
	}
	for want, in := range tests {
		if got := joinURL(in[0], in[1]); got != want {
			t.Errorf("joinURL(%q, %q) = %q, want %q", in[0], in[1], got, want)
		}
	}
}
