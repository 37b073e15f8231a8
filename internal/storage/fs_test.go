package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/lookback/internal/models"
)

func tempArchive(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempArchive(t)
	content := []byte(`{"Date": ""}`)
	if err := s.Write("a.json", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempArchive(t)
	if err := s.Write("a/b/c.json", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempArchive(t)
	_ = s.Write("del.json", []byte("bye"))
	if err := s.Delete("del.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.json"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestScanClassifies(t *testing.T) {
	s := tempArchive(t)
	_ = s.Write("trip.json", []byte("{}"))
	_ = s.Write("trip.JPG", []byte("img"))
	_ = s.Write("sub/clip.mp4", []byte("vid"))
	_ = s.Write("notes.txt", []byte("ignored"))
	_ = s.Write(".hidden/secret.json", []byte("{}"))
	_ = s.Write(".dot.json", []byte("{}"))

	items, err := s.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(items), items)
	}
	kinds := map[string]models.FileKind{}
	for _, it := range items {
		kinds[it.Name] = it.Kind
		if !filepath.IsAbs(it.Path) {
			t.Errorf("path %q is not absolute", it.Path)
		}
	}
	if kinds["trip.json"] != models.KindMetadata {
		t.Errorf("trip.json kind = %q", kinds["trip.json"])
	}
	if kinds["trip.JPG"] != models.KindMedia || kinds["clip.mp4"] != models.KindMedia {
		t.Errorf("media kinds = %+v", kinds)
	}
}

func TestFingerprintChangesWithContent(t *testing.T) {
	s := tempArchive(t)
	_ = s.Write("a.json", []byte("{}"))
	first, err := s.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	again, _ := s.Fingerprint()
	if first != again {
		t.Error("fingerprint should be stable for an unchanged folder")
	}
	_ = s.Write("b.jpg", []byte("img"))
	changed, _ := s.Fingerprint()
	if changed == first {
		t.Error("fingerprint should change when a file is added")
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempArchive(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.json",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempArchive(t)
	_ = s.Write("atomic.json", []byte("original"))
	if err := s.Write("atomic.json", []byte("updated")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.json")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, ".lookback-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "lookback-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
