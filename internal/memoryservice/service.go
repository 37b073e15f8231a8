// Package memoryservice coordinates ingestion, persistence, projections and
// the navigation cursor for one archive session.
package memoryservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/lookback/internal/apperr"
	"github.com/starford/lookback/internal/catalog"
	"github.com/starford/lookback/internal/dates"
	"github.com/starford/lookback/internal/location"
	"github.com/starford/lookback/internal/matcher"
	"github.com/starford/lookback/internal/media"
	"github.com/starford/lookback/internal/models"
	"github.com/starford/lookback/internal/navigation"
	"github.com/starford/lookback/internal/projector"
	"github.com/starford/lookback/internal/sse"
	"github.com/starford/lookback/internal/storage"
	"github.com/starford/lookback/internal/store"
)

// Events receives user status messages and catalog change notifications.
type Events interface {
	Notify(message string)
	PublishCatalogEvent(cleared bool, change sse.CatalogChange)
}

var _ Events = (*sse.Broker)(nil)

type nopEvents struct{}

func (nopEvents) Notify(string)                               {}
func (nopEvents) PublishCatalogEvent(bool, sse.CatalogChange) {}

// IngestResult summarises one published ingest.
type IngestResult struct {
	RunID string `json:"run_id"`
	Root  string `json:"root"`
	Count int    `json:"count"`
}

// Service is the single owner of the catalog and cursor for a session.
type Service struct {
	store   store.CatalogStore
	events  Events
	logger  *slog.Logger
	cfg     settings
	catalog *catalog.Catalog
	proj    *projector.Projector
	cursor  *navigation.Cursor

	mu          sync.Mutex
	root        string
	fingerprint string
	flashbacks  []*models.Memory
	cursorView  string
}

// New creates a Service persisting through st. events may be nil.
func New(st store.CatalogStore, events Events, logger *slog.Logger, opts ...Option) *Service {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}
	if events == nil {
		events = nopEvents{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	m := matcher.New(matcher.FileReader, media.NewLoader(cfg.minMediaBytes),
		matcher.WithConcurrency(cfg.concurrency),
		matcher.WithLogger(logger))
	cat := catalog.New(m, logger)
	projOpts := []projector.Option{
		projector.WithLocation(cfg.location),
		projector.WithFlashbacks(cfg.flashbacks),
	}
	if cfg.rand != nil {
		projOpts = append(projOpts, projector.WithRand(cfg.rand))
	}

	return &Service{
		store:   st,
		events:  events,
		logger:  logger,
		cfg:     cfg,
		catalog: cat,
		proj:    projector.New(cat, location.NewResolver(), projOpts...),
		cursor:  navigation.New(),
	}
}

func openArchive(root string) (storage.Provider, error) {
	fs, err := storage.NewFS(root)
	if err != nil {
		return nil, err
	}
	return fs, nil
}

// IngestFolder scans root and replaces the catalog with what it finds.
// A newer ingest started before this one finishes makes this one return
// apperr.ErrSuperseded without touching the catalog.
func (s *Service) IngestFolder(ctx context.Context, root string) (*IngestResult, error) {
	runID := uuid.NewString()
	logger := s.logger.With(slog.String("run_id", runID), slog.String("root", root))

	fs, err := openArchive(root)
	if err != nil {
		s.events.Notify(fmt.Sprintf("Failed to load memories: %v", err))
		return nil, fmt.Errorf("memoryservice: ingest: %w", err)
	}
	files, err := fs.Scan()
	if err != nil {
		s.events.Notify(fmt.Sprintf("Failed to load memories: %v", err))
		return nil, fmt.Errorf("memoryservice: ingest: %w", err)
	}
	fingerprint, err := fs.Fingerprint()
	if err != nil {
		logger.Warn("ingest: fingerprint failed", slog.String("error", err.Error()))
	}

	logger.Info("ingest: started", slog.Int("files", len(files)))
	pub, err := s.catalog.Ingest(ctx, files)
	if errors.Is(err, apperr.ErrSuperseded) {
		logger.Info("ingest: superseded by a newer run")
		return nil, err
	}
	if err != nil {
		s.events.Notify(fmt.Sprintf("Failed to load memories: %v", err))
		return nil, err
	}
	n := pub.Count

	// A Clear or newer publish after ours owns the session state.
	committed := s.catalog.Commit(pub.Version, func() {
		s.mu.Lock()
		s.root = fs.Root()
		s.fingerprint = fingerprint
		s.flashbacks = nil
		s.cursorView = ""
		s.mu.Unlock()
	})
	if !committed {
		logger.Info("ingest: catalog changed before commit")
		return nil, apperr.ErrSuperseded
	}
	s.cursor.Close()

	logger.Info("ingest: published", slog.Int("memories", n))
	s.events.Notify(fmt.Sprintf("Loaded %d memories", n))
	s.events.PublishCatalogEvent(false, sse.CatalogChange{Version: pub.Version, Count: n, RunID: runID})

	if s.cfg.autosave {
		// Save reports its own status.
		_, _ = s.Save(ctx)
	}
	return &IngestResult{RunID: runID, Root: fs.Root(), Count: n}, nil
}

// Reingest re-scans the last ingested folder when its fingerprint changed.
// It reports whether an ingest ran.
func (s *Service) Reingest(ctx context.Context) (bool, error) {
	s.mu.Lock()
	root, prev := s.root, s.fingerprint
	s.mu.Unlock()
	if root == "" {
		return false, nil
	}
	fs, err := openArchive(root)
	if err != nil {
		return false, fmt.Errorf("memoryservice: reingest: %w", err)
	}
	if fp, err := fs.Fingerprint(); err == nil && fp == prev {
		s.logger.Debug("reingest: archive unchanged", slog.String("root", root))
		return false, nil
	}
	if _, err := s.IngestFolder(ctx, root); err != nil {
		return false, err
	}
	return true, nil
}

// Clear empties the catalog and the persisted copy.
func (s *Service) Clear(ctx context.Context) error {
	s.catalog.Clear()
	s.proj.Resolver().Reset()
	s.cursor.Close()
	s.mu.Lock()
	s.flashbacks = nil
	s.cursorView = ""
	s.root = ""
	s.fingerprint = ""
	s.mu.Unlock()
	s.events.PublishCatalogEvent(true, sse.CatalogChange{Version: s.catalog.Version()})

	if err := s.store.Clear(ctx); err != nil {
		s.logger.Error("clear: persisted catalog", slog.String("error", err.Error()))
		s.events.Notify(fmt.Sprintf("Failed to clear memories: %v", err))
		return fmt.Errorf("memoryservice: clear: %w", err)
	}
	s.events.Notify("Memories cleared")
	return nil
}

// Save persists the current catalog.
func (s *Service) Save(ctx context.Context) (int, error) {
	records := s.catalog.ToPersistable()
	if err := s.store.Save(ctx, records); err != nil {
		s.logger.Error("save: failed", slog.String("error", err.Error()))
		s.events.Notify("Failed to save data")
		return 0, fmt.Errorf("memoryservice: save: %w", err)
	}
	s.events.Notify(fmt.Sprintf("Saved %d memories", len(records)))
	return len(records), nil
}

// Restore loads the persisted catalog, reloading media from stored paths.
// It returns apperr.ErrNoPersisted when nothing was saved.
func (s *Service) Restore(ctx context.Context) (int, error) {
	records, err := s.store.Load(ctx)
	if errors.Is(err, apperr.ErrNoPersisted) {
		return 0, err
	}
	if err != nil {
		s.events.Notify(fmt.Sprintf("Failed to load memories: %v", err))
		return 0, fmt.Errorf("memoryservice: restore: %w", err)
	}
	pub, err := s.catalog.FromPersisted(ctx, records)
	if err != nil {
		if !errors.Is(err, apperr.ErrSuperseded) {
			s.events.Notify(fmt.Sprintf("Failed to load memories: %v", err))
		}
		return 0, err
	}
	n := pub.Count
	s.mu.Lock()
	s.flashbacks = nil
	s.cursorView = ""
	s.mu.Unlock()
	s.cursor.Close()

	s.logger.Info("restore: published", slog.Int("memories", n))
	s.events.Notify(fmt.Sprintf("Loaded %d memories", n))
	s.events.PublishCatalogEvent(false, sse.CatalogChange{Version: pub.Version, Count: n})
	return n, nil
}

// Root returns the folder of the last successful ingest.
func (s *Service) Root() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// Len returns the number of memories in the catalog.
func (s *Service) Len() int { return s.catalog.Len() }

// Version returns the catalog version.
func (s *Service) Version() uint64 { return s.catalog.Version() }

// Memory returns one memory by its source metadata filename.
func (s *Service) Memory(filename string) (*models.Memory, error) {
	return s.catalog.Get(filename)
}

// Feed returns the newest-first sequence, truncated to a positive limit.
func (s *Service) Feed(limit int) []*models.Memory { return s.proj.Feed(limit) }

// Flashbacks draws a new random sample and remembers it for the
// "flashbacks" cursor view.
func (s *Service) Flashbacks() []*models.Memory {
	sample := s.proj.Flashbacks()
	s.mu.Lock()
	s.flashbacks = sample
	s.mu.Unlock()
	return sample
}

// TimeGroups returns the year/month projection.
func (s *Service) TimeGroups() []projector.YearGroup { return s.proj.TimeGroups() }

// PlaceGroups returns the place projection.
func (s *Service) PlaceGroups() []projector.PlaceGroup { return s.proj.PlaceGroups() }

// PlaceName returns the display name for a memory's location.
func (s *Service) PlaceName(m *models.Memory) string { return s.proj.Resolver().DisplayName(m) }

// TimeAgo renders the age of a memory relative to now.
func (s *Service) TimeAgo(m *models.Memory) string { return dates.TimeAgo(time.Now(), m.Instant) }
