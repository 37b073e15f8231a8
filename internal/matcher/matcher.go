// Package matcher pairs metadata records with media assets that share their
// filename stem.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/lookback/internal/dates"
	"github.com/starford/lookback/internal/metrics"
	"github.com/starford/lookback/internal/models"
	"github.com/starford/lookback/internal/parser"
)

// DefaultConcurrency bounds parallel media loads.
const DefaultConcurrency = 8

var overlayRe = regexp.MustCompile(`^(.+)_overlay_(\d+)$`)

// RecordReader reads and parses one metadata file.
type RecordReader interface {
	ReadRecord(path string) (*parser.Record, error)
}

// ReaderFunc adapts a function to RecordReader.
type ReaderFunc func(path string) (*parser.Record, error)

// ReadRecord calls fn(path).
func (fn ReaderFunc) ReadRecord(path string) (*parser.Record, error) { return fn(path) }

// FileReader reads sidecars straight from disk.
var FileReader = ReaderFunc(func(path string) (*parser.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parser.ParseRecord(data)
})

// MediaLoader turns a media path into a displayable handle.
type MediaLoader interface {
	Load(ctx context.Context, path string) (*models.Handle, error)
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithConcurrency bounds the number of concurrent media loads.
func WithConcurrency(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.limit = n
		}
	}
}

// WithLogger sets the logger used for skipped records and failed loads.
func WithLogger(l *slog.Logger) Option {
	return func(m *Matcher) {
		if l != nil {
			m.logger = l
		}
	}
}

// Matcher builds Memory candidates from a flat file listing.
type Matcher struct {
	reader RecordReader
	loader MediaLoader
	limit  int
	logger *slog.Logger
}

// New creates a Matcher.
func New(reader RecordReader, loader MediaLoader, opts ...Option) *Matcher {
	m := &Matcher{
		reader: reader,
		loader: loader,
		limit:  DefaultConcurrency,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type overlayRef struct {
	n     int
	asset models.MediaAsset
}

// Match produces one Memory per parseable metadata file, in input order.
// Unparseable records are skipped and logged. Media that fails to load
// leaves the Memory without a handle. The only error returned is context
// cancellation.
func (m *Matcher) Match(ctx context.Context, files []models.FileEntry) ([]*models.Memory, error) {
	media := make(map[string]map[string]models.FileEntry)
	for _, f := range files {
		if f.Kind != models.KindMedia {
			continue
		}
		stem := f.Stem()
		ext := strings.ToLower(filepath.Ext(f.Name))
		if media[stem] == nil {
			media[stem] = make(map[string]models.FileEntry)
		}
		if _, dup := media[stem][ext]; !dup {
			media[stem][ext] = f
		}
	}
	overlays := indexOverlays(media)

	var out []*models.Memory
	for _, f := range files {
		if f.Kind != models.KindMetadata {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := m.reader.ReadRecord(f.Path)
		if err != nil {
			reason := "parse"
			if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
				reason = "read"
			}
			metrics.RecordsSkipped.WithLabelValues(reason).Inc()
			m.logger.Warn("matcher: record skipped",
				slog.String("path", f.Path),
				slog.String("error", err.Error()))
			continue
		}

		mem := &models.Memory{
			Filename:     f.Name,
			Date:         rec.Date,
			Instant:      dates.Parse(rec.Date),
			MediaType:    rec.MediaType,
			Location:     rec.Location,
			LocationName: rec.LocationName,
		}
		stem := f.Stem()
		if asset, ok := preferred(media[stem]); ok {
			mem.Media = &asset
		}
		if base, ok := strings.CutSuffix(stem, "_main"); ok {
			for _, o := range overlays[base] {
				mem.Overlays = append(mem.Overlays, o.asset)
			}
		}
		out = append(out, mem)
	}

	if err := m.LoadHandles(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadHandles requests a displayable handle for every memory with matched
// media. Failures are logged and leave Handle nil.
func (m *Matcher) LoadHandles(ctx context.Context, memories []*models.Memory) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.limit)
	for _, mem := range memories {
		if mem.Media == nil {
			continue
		}
		g.Go(func() error {
			h, err := m.loader.Load(gctx, mem.Media.Path)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				metrics.MediaLoads.WithLabelValues("failed").Inc()
				m.logger.Warn("matcher: media load failed",
					slog.String("path", mem.Media.Path),
					slog.String("error", err.Error()))
				mem.Handle = nil
				return nil
			}
			metrics.MediaLoads.WithLabelValues("ok").Inc()
			mem.Handle = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("matcher: load media: %w", err)
	}
	return ctx.Err()
}

// preferred picks the first extension in MediaExtensions present for a stem.
func preferred(byExt map[string]models.FileEntry) (models.MediaAsset, bool) {
	for _, ext := range models.MediaExtensions {
		if f, ok := byExt[ext]; ok {
			return models.MediaAsset{Name: f.Name, Path: f.Path}, true
		}
	}
	return models.MediaAsset{}, false
}

// indexOverlays groups "<base>_overlay_<N>" media stems by base, ascending N.
func indexOverlays(media map[string]map[string]models.FileEntry) map[string][]overlayRef {
	out := make(map[string][]overlayRef)
	for stem, byExt := range media {
		sm := overlayRe.FindStringSubmatch(stem)
		if sm == nil {
			continue
		}
		n, err := strconv.Atoi(sm[2])
		if err != nil {
			continue
		}
		asset, ok := preferred(byExt)
		if !ok {
			continue
		}
		out[sm[1]] = append(out[sm[1]], overlayRef{n: n, asset: asset})
	}
	for base := range out {
		slices.SortFunc(out[base], func(a, b overlayRef) int { return a.n - b.n })
	}
	return out
}
