package kv

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func providers(t *testing.T) map[string]Provider {
	t.Helper()
	dir := t.TempDir()

	fs, err := NewFS(filepath.Join(dir, "data"))
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	db, err := OpenSQLite(filepath.Join(dir, "quire.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return map[string]Provider{
		"memory": NewMemory(),
		"file":   fs,
		"sqlite": db,
	}
}

func TestProvider_GetMissing(t *testing.T) {
	for name, p := range providers(t) {
		if _, err := p.Get("notes"); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: Get missing = %v, want ErrNotFound", name, err)
		}
	}
}

func TestProvider_SetGetOverwrite(t *testing.T) {
	for name, p := range providers(t) {
		if err := p.Set("notes", []byte(`[1]`)); err != nil {
			t.Fatalf("%s: Set: %v", name, err)
		}
		if err := p.Set("notes", []byte(`[1,2]`)); err != nil {
			t.Fatalf("%s: Set overwrite: %v", name, err)
		}
		got, err := p.Get("notes")
		if err != nil {
			t.Fatalf("%s: Get: %v", name, err)
		}
		if string(got) != `[1,2]` {
			t.Errorf("%s: value = %q, want %q", name, got, `[1,2]`)
		}
	}
}

func TestProvider_Delete(t *testing.T) {
	for name, p := range providers(t) {
		_ = p.Set("flag", []byte("true"))
		if err := p.Delete("flag"); err != nil {
			t.Fatalf("%s: Delete: %v", name, err)
		}
		if _, err := p.Get("flag"); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: Get after delete = %v", name, err)
		}
		if err := p.Delete("flag"); err != nil {
			t.Errorf("%s: deleting a missing key should not fail: %v", name, err)
		}
	}
}

func TestFS_RejectsTraversalKeys(t *testing.T) {
	p, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"../escape", "a/b", "", ".hidden"} {
		if err := p.Set(key, []byte("x")); err == nil {
			t.Errorf("expected error for key %q", key)
		}
	}
}

func TestFS_NoLeftoverTempFiles(t *testing.T) {
	dir := t.TempDir()
	p, err := NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	_ = p.Set("notes", []byte("one"))
	_ = p.Set("notes", []byte("two"))

	matches, _ := filepath.Glob(filepath.Join(dir, ".quire-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "quire-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open("etcd", ""); err == nil {
		t.Error("expected error for unknown driver")
	}
}
