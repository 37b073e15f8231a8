package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/lookback/internal/checksum"
	"github.com/starford/lookback/internal/models"
)

var _ Provider = (*FS)(nil)

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to archive directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute archive root.
func (f *FS) Root() string { return f.root }

// safePath resolves a relative path against the root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes archive root: %s", rel)
	}
	return abs, nil
}

// Classify returns the kind of a file by extension, or false when the file
// is neither a metadata record nor a known media format.
func Classify(name string) (models.FileKind, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case ext == models.MetadataExtension:
		return models.KindMetadata, true
	case models.IsMediaExtension(ext):
		return models.KindMedia, true
	}
	return "", false
}

// Scan walks the archive in lexical order. Hidden files and directories are
// skipped.
func (f *FS) Scan() ([]models.FileEntry, error) {
	var out []models.FileEntry
	err := f.walk(func(p string, d fs.DirEntry) error {
		kind, ok := Classify(d.Name())
		if !ok {
			return nil
		}
		out = append(out, models.FileEntry{Name: d.Name(), Path: p, Kind: kind})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: scan: %w", err)
	}
	return out, nil
}

// Fingerprint returns a checksum over the relative path, size and mtime of
// every classified file.
func (f *FS) Fingerprint() (string, error) {
	fp := checksum.NewFingerprint()
	err := f.walk(func(p string, d fs.DirEntry) error {
		if _, ok := Classify(d.Name()); !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(f.root, p)
		fp.Add(filepath.ToSlash(rel), info.Size(), info.ModTime())
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("storage: fingerprint: %w", err)
	}
	return fp.Sum(), nil
}

func (f *FS) walk(fn func(p string, d fs.DirEntry) error) error {
	return filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p != f.root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		return fn(p, d)
	})
}

// Read returns the raw bytes of an archive file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".lookback-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes a file under the root.
func (f *FS) Delete(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}
