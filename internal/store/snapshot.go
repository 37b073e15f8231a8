package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/goccy/go-json"

	"github.com/starford/lookback/internal/apperr"
	"github.com/starford/lookback/internal/metrics"
	"github.com/starford/lookback/internal/models"
)

// Files is the subset of storage.Provider the snapshot store needs.
type Files interface {
	Read(path string) ([]byte, error)
	Write(path string, content []byte) error
	Delete(path string) error
}

type snapshotDoc struct {
	Version  int                      `json:"version"`
	SavedAt  time.Time                `json:"savedAt"`
	Memories []models.PersistedRecord `json:"memories"`
}

const snapshotVersion = 1

// Snapshot stores the catalog as a single JSON document written atomically.
type Snapshot struct {
	files Files
	name  string
}

// NewSnapshot stores the document at name within files.
func NewSnapshot(files Files, name string) *Snapshot {
	return &Snapshot{files: files, name: name}
}

// Save encodes records and replaces the snapshot.
func (s *Snapshot) Save(ctx context.Context, records []models.PersistedRecord) (err error) {
	defer func() { metrics.PersistOps.WithLabelValues("save", metrics.Outcome(err)).Inc() }()
	if err := ctx.Err(); err != nil {
		return err
	}
	if records == nil {
		records = []models.PersistedRecord{}
	}
	data, err := json.MarshalIndent(snapshotDoc{
		Version:  snapshotVersion,
		SavedAt:  time.Now().UTC(),
		Memories: records,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode snapshot: %w", err)
	}
	if err := s.files.Write(s.name, data); err != nil {
		return fmt.Errorf("store: write snapshot: %w", err)
	}
	return nil
}

// Load decodes the snapshot.
func (s *Snapshot) Load(ctx context.Context) (recs []models.PersistedRecord, err error) {
	defer func() {
		if !errors.Is(err, apperr.ErrNoPersisted) {
			metrics.PersistOps.WithLabelValues("load", metrics.Outcome(err)).Inc()
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.files.Read(s.name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.ErrNoPersisted
	}
	if err != nil {
		return nil, fmt.Errorf("store: read snapshot: %w", err)
	}
	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("store: decode snapshot: %w", err)
	}
	if doc.Version != snapshotVersion {
		return nil, fmt.Errorf("store: unsupported snapshot version %d", doc.Version)
	}
	return doc.Memories, nil
}

// Clear deletes the snapshot. A missing snapshot is not an error.
func (s *Snapshot) Clear(ctx context.Context) (err error) {
	defer func() { metrics.PersistOps.WithLabelValues("clear", metrics.Outcome(err)).Inc() }()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.files.Delete(s.name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("store: delete snapshot: %w", err)
	}
	return nil
}

// Close is a no-op.
func (s *Snapshot) Close() error { return nil }
