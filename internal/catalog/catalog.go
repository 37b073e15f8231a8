// Package catalog owns the ordered, published set of memories.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/starford/lookback/internal/apperr"
	"github.com/starford/lookback/internal/dates"
	"github.com/starford/lookback/internal/matcher"
	"github.com/starford/lookback/internal/metrics"
	"github.com/starford/lookback/internal/models"
)

// Matcher produces memories from scanned files and reloads media handles.
type Matcher interface {
	Match(ctx context.Context, files []models.FileEntry) ([]*models.Memory, error)
	LoadHandles(ctx context.Context, memories []*models.Memory) error
}

var _ Matcher = (*matcher.Matcher)(nil)

// Catalog is the single owner of Memory entities. Readers get a snapshot of
// the published sequence; ingest and clear replace it atomically.
//
// Concurrent ingests follow cancel-and-replace: a new Ingest, FromPersisted
// or Clear cancels any run in flight, and only the newest run publishes.
type Catalog struct {
	matcher Matcher
	logger  *slog.Logger

	mu      sync.RWMutex
	items   []*models.Memory
	byName  map[string]*models.Memory
	version uint64
	gen     uint64
	cancel  context.CancelFunc
}

// New creates an empty catalog.
func New(m Matcher, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Catalog{
		matcher: m,
		logger:  logger,
		byName:  make(map[string]*models.Memory),
	}
}

// Published describes one successful publish.
type Published struct {
	Count   int
	Version uint64
}

// Ingest replaces the catalog with the memories matched from files. It
// returns what was published, or apperr.ErrSuperseded when a newer run
// replaced this one before it finished.
func (c *Catalog) Ingest(ctx context.Context, files []models.FileEntry) (Published, error) {
	start := time.Now()
	runCtx, gen, done := c.begin(ctx)
	defer done()

	memories, err := c.matcher.Match(runCtx, files)
	if err != nil {
		return Published{}, c.finish(ctx, gen, fmt.Errorf("catalog: ingest: %w", err))
	}
	pub, err := c.publish(gen, memories)
	if err != nil {
		return Published{}, c.finish(ctx, gen, err)
	}
	metrics.IngestRuns.WithLabelValues("published").Inc()
	metrics.IngestDuration.Observe(time.Since(start).Seconds())
	return pub, nil
}

// Commit runs fn only while version is still the current version, holding
// off Clear and later publishes until fn returns. fn must not call back into
// the catalog. It reports whether fn ran.
func (c *Catalog) Commit(version uint64, fn func()) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.version != version {
		return false
	}
	fn()
	return true
}

// Clear empties the catalog and cancels any ingest in flight.
func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	c.items = nil
	c.byName = make(map[string]*models.Memory)
	c.version++
	metrics.CatalogSize.Set(0)
}

// Snapshot returns the published sequence, newest first. The slice is a
// copy; the memories are shared and must not be modified.
func (c *Catalog) Snapshot() []*models.Memory {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

// Len returns the number of published memories.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Get returns the memory with the given source metadata filename.
func (c *Catalog) Get(filename string) (*models.Memory, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byName[filename]
	if !ok {
		return nil, fmt.Errorf("catalog: memory %q: %w", filename, apperr.ErrNotFound)
	}
	return m, nil
}

// Version changes whenever a new sequence is published or the catalog is
// cleared.
func (c *Catalog) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// begin starts a new generation, cancelling the previous run.
func (c *Catalog) begin(ctx context.Context) (context.Context, uint64, func()) {
	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	c.cancel = cancel
	c.mu.Unlock()
	return runCtx, gen, cancel
}

// finish maps a failed run to ErrSuperseded when a newer generation exists.
func (c *Catalog) finish(parent context.Context, gen uint64, err error) error {
	c.mu.RLock()
	stale := c.gen != gen
	c.mu.RUnlock()
	if stale && parent.Err() == nil {
		metrics.IngestRuns.WithLabelValues("superseded").Inc()
		c.logger.Debug("catalog: run superseded", slog.Uint64("generation", gen))
		return apperr.ErrSuperseded
	}
	if !errors.Is(err, apperr.ErrSuperseded) {
		metrics.IngestRuns.WithLabelValues("failed").Inc()
	}
	return err
}

// publish sorts, dedupes and swaps in memories if gen is still current.
func (c *Catalog) publish(gen uint64, memories []*models.Memory) (Published, error) {
	items := make([]*models.Memory, 0, len(memories))
	byName := make(map[string]*models.Memory, len(memories))
	for _, m := range memories {
		if _, dup := byName[m.Filename]; dup {
			metrics.RecordsSkipped.WithLabelValues("duplicate").Inc()
			c.logger.Warn("catalog: duplicate record skipped", slog.String("filename", m.Filename))
			continue
		}
		byName[m.Filename] = m
		items = append(items, m)
	}
	slices.SortStableFunc(items, func(a, b *models.Memory) int {
		return dates.Compare(b.Instant, a.Instant)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return Published{}, apperr.ErrSuperseded
	}
	c.items = items
	c.byName = byName
	c.version++
	c.cancel = nil
	metrics.CatalogSize.Set(float64(len(items)))
	return Published{Count: len(items), Version: c.version}, nil
}
