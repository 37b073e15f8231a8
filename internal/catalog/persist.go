package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/starford/lookback/internal/dates"
	"github.com/starford/lookback/internal/metrics"
	"github.com/starford/lookback/internal/models"
)

// ToPersistable reduces the published sequence to its stable fields.
// Media handles and parsed instants are never included.
func (c *Catalog) ToPersistable() []models.PersistedRecord {
	items := c.Snapshot()
	out := make([]models.PersistedRecord, 0, len(items))
	for _, m := range items {
		out = append(out, toRecord(m))
	}
	return out
}

// FromPersisted rebuilds the catalog from saved records, re-requesting a
// media handle for every record with a stored asset path. Individual load
// failures leave that memory without a handle.
func (c *Catalog) FromPersisted(ctx context.Context, records []models.PersistedRecord) (Published, error) {
	start := time.Now()
	runCtx, gen, done := c.begin(ctx)
	defer done()

	memories := make([]*models.Memory, 0, len(records))
	for _, r := range records {
		memories = append(memories, fromRecord(r))
	}
	if err := c.matcher.LoadHandles(runCtx, memories); err != nil {
		return Published{}, c.finish(ctx, gen, fmt.Errorf("catalog: rehydrate: %w", err))
	}
	pub, err := c.publish(gen, memories)
	if err != nil {
		return Published{}, c.finish(ctx, gen, err)
	}
	metrics.IngestRuns.WithLabelValues("published").Inc()
	metrics.IngestDuration.Observe(time.Since(start).Seconds())
	return pub, nil
}

func toRecord(m *models.Memory) models.PersistedRecord {
	r := models.PersistedRecord{
		Filename:     m.Filename,
		Date:         m.Date,
		MediaType:    m.MediaType,
		Location:     m.Location,
		LocationName: m.LocationName,
	}
	if m.Media != nil {
		path := m.Media.Path
		r.MediaName = m.Media.Name
		r.MediaPath = &path
	}
	for _, o := range m.Overlays {
		r.Overlays = append(r.Overlays, o.Path)
	}
	return r
}

func fromRecord(r models.PersistedRecord) *models.Memory {
	mediaType := r.MediaType
	if mediaType == "" {
		mediaType = models.DefaultMediaType
	}
	m := &models.Memory{
		Filename:     r.Filename,
		Date:         r.Date,
		Instant:      dates.Parse(r.Date),
		MediaType:    mediaType,
		Location:     r.Location,
		LocationName: r.LocationName,
	}
	if r.MediaPath != nil && *r.MediaPath != "" {
		name := r.MediaName
		if name == "" {
			name = filepath.Base(*r.MediaPath)
		}
		m.Media = &models.MediaAsset{Name: name, Path: *r.MediaPath}
	}
	for _, p := range r.Overlays {
		m.Overlays = append(m.Overlays, models.MediaAsset{Name: filepath.Base(p), Path: p})
	}
	return m
}
