package cache

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDiskStore_RoundTrip(t *testing.T) {
	s := NewDiskStore()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "example", "q_a=1.cbor.gz")

	if _, ok, err := s.Get(ctx, path); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v", ok, err)
	}

	payload := []byte("payload")
	if err := s.Set(ctx, path, payload); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	// Writing the same entry twice leaves one readable copy.
	if err := s.Set(ctx, path, payload); err != nil {
		t.Fatalf("second Set() error = %v", err)
	}

	got, ok, err := s.Get(ctx, path)
	if err != nil || !ok {
		t.Fatalf("Get() = ok %v, err %v", ok, err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Get() = %q, want %q", got, payload)
	}
}

func TestDiskStore_OverwriteLeavesNoTempFiles(t *testing.T) {
	s := NewDiskStore()
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "example")
	path := filepath.Join(dir, "entry.cbor.gz")

	for _, v := range []string{"one", "two", "three"} {
		if err := s.Set(ctx, path, []byte(v)); err != nil {
			t.Fatalf("Set(%q) error = %v", v, err)
		}
	}

	got, _, _ := s.Get(ctx, path)
	if string(got) != "three" {
		t.Errorf("Get() = %q, want last write", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("directory holds %v, want only the entry", names)
	}
}

func TestDiskStore_LongEntryName(t *testing.T) {
	s := NewDiskStore()
	name := strings.Repeat("n", MaxFilenameLength)
	path := filepath.Join(t.TempDir(), name)
	if err := s.Set(context.Background(), path, []byte("x")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
}

func TestDiskStore_DeleteIdempotent(t *testing.T) {
	s := NewDiskStore()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "entry")

	if err := s.Delete(ctx, path); err != nil {
		t.Fatalf("Delete(missing) error = %v", err)
	}
	_ = s.Set(ctx, path, []byte("x"))
	if err := s.Delete(ctx, path); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := s.Get(ctx, path); ok {
		t.Error("entry still present after Delete")
	}
}

func TestDiskStore_InvalidPathAndCanceledContext(t *testing.T) {
	s := NewDiskStore()
	if err := s.Set(context.Background(), "", nil); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Set(\"\") error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := s.Get(ctx, filepath.Join(t.TempDir(), "x")); !errors.Is(err, context.Canceled) {
		t.Errorf("Get(canceled) error = %v", err)
	}
}

func TestDiskStore_UnwritableRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(root, []byte("not a dir"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := NewDiskStore().Set(context.Background(), filepath.Join(root, "sub", "entry"), []byte("x"))
	if err == nil {
		t.Fatal("expected error writing beneath a regular file")
	}
}
