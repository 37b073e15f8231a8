// Package store persists the reduced catalog shape between sessions.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/starford/lookback/internal/models"
	"github.com/starford/lookback/internal/storage"
)

// CatalogStore saves and restores persisted catalog records. Load returns
// apperr.ErrNoPersisted when nothing has been saved. A failed Save leaves the
// previous save intact.
type CatalogStore interface {
	Save(ctx context.Context, records []models.PersistedRecord) error
	Load(ctx context.Context) ([]models.PersistedRecord, error)
	Clear(ctx context.Context) error
	Close() error
}

var (
	_ CatalogStore = (*SQLite)(nil)
	_ CatalogStore = (*Snapshot)(nil)
)

// Drivers.
const (
	DriverSQLite = "sqlite"
	DriverJSON   = "json"
)

// Open returns the store for driver at path. For the json driver, path is
// the snapshot file; its directory is created if needed.
func Open(driver, path string) (CatalogStore, error) {
	switch driver {
	case DriverSQLite, "":
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
		return OpenSQLite(path)
	case DriverJSON:
		dir, name := filepath.Split(path)
		if dir == "" {
			dir = "."
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
		fs, err := storage.NewFS(dir)
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		return NewSnapshot(fs, name), nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}
}
