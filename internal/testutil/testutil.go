// Package testutil provides shared test helpers for archives and stores.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/lookback/internal/store"
)

// SampleArchive maps file names to contents for a small export: three dated
// memories across two places, one without a date, one without media, and a
// bulk history file that is not a record.
var SampleArchive = map[string]string{
	"a.json":                `{"Date": "2024-03-15 10:00:00 UTC", "Media Type": "Image", "Location": "Latitude, Longitude: 40.7128, -74.0060"}`,
	"a.jpg":                 "\xff\xd8\xff\xe0 jpeg body",
	"b.json":                `{"Date": "2024-03-01 10:00:00 UTC", "Media Type": "Video", "Location": "Latitude, Longitude: 40.7129, -74.0061"}`,
	"b.mp4":                 "\x00\x00\x00\x20ftypisom video body",
	"c.json":                `{"Date": "2023-12-25 10:00:00 UTC", "Location": "Latitude, Longitude: 34.0522, -118.2437"}`,
	"d.json":                `{"Date": ""}`,
	"memories_history.json": `{"Saved Media": []}`,
}

// TestStore creates a temporary SQLite catalog store that is closed on cleanup.
func TestStore(t *testing.T) *store.SQLite {
	t.Helper()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "lookback-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestArchive writes files into a temporary directory and returns its path.
// A nil files map writes SampleArchive.
func TestArchive(t *testing.T, files map[string]string) string {
	t.Helper()
	if files == nil {
		files = SampleArchive
	}
	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}
