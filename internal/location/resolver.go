// Package location turns raw export location strings into grouping keys and
// human-readable place labels.
package location

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"sync"

	"github.com/starford/lookback/internal/metrics"
	"github.com/starford/lookback/internal/models"
)

// Unknown is the label and key for memories without location data.
const Unknown = "Unknown location"

var coordRe = regexp.MustCompile(`Latitude,\s*Longitude:\s*([-+]?\d+(?:\.\d+)?)\s*,\s*([-+]?\d+(?:\.\d+)?)`)

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64
	Lon float64
}

// ParseCoordinates extracts the pair from "Latitude, Longitude: <lat>, <lon>".
func ParseCoordinates(raw string) (Coordinates, bool) {
	m := coordRe.FindStringSubmatch(raw)
	if m == nil {
		return Coordinates{}, false
	}
	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Coordinates{}, false
	}
	lon, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Coordinates{}, false
	}
	return Coordinates{Lat: lat, Lon: lon}, true
}

// Rounded rounds both values to two decimal places.
func (c Coordinates) Rounded() Coordinates {
	return Coordinates{Lat: round2(c.Lat), Lon: round2(c.Lon)}
}

// Key encodes the pair as "lat,lon" with two decimals.
func (c Coordinates) Key() string {
	return strconv.FormatFloat(c.Lat, 'f', 2, 64) + "," + strconv.FormatFloat(c.Lon, 'f', 2, 64)
}

// Label formats the pair as "40.71°N, 74.01°W".
func (c Coordinates) Label() string {
	latDir, lonDir := "N", "E"
	if c.Lat < 0 {
		latDir = "S"
	}
	if c.Lon < 0 {
		lonDir = "W"
	}
	return fmt.Sprintf("%.2f°%s, %.2f°%s", math.Abs(c.Lat), latDir, math.Abs(c.Lon), lonDir)
}

func round2(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}

// CanonicalKey returns the grouping key for a raw location: the rounded
// coordinate pair when the pattern matches, the raw string otherwise, or
// Unknown when empty.
func CanonicalKey(raw string) string {
	if raw == "" {
		return Unknown
	}
	if c, ok := ParseCoordinates(raw); ok {
		return c.Rounded().Key()
	}
	return raw
}

// Resolver produces display names and memoizes coordinate labels. Each
// Resolver owns its cache.
type Resolver struct {
	mu     sync.Mutex
	labels map[Coordinates]string
	hits   uint64
	misses uint64
}

// NewResolver creates a Resolver with an empty cache.
func NewResolver() *Resolver {
	return &Resolver{labels: make(map[Coordinates]string)}
}

// CanonicalKey is the Resolver form of the package-level CanonicalKey.
func (r *Resolver) CanonicalKey(raw string) string {
	return CanonicalKey(raw)
}

// DisplayName returns the presentable place for m. A pre-resolved name wins
// verbatim; coordinates are formatted (and cached); other strings pass
// through unchanged.
func (r *Resolver) DisplayName(m *models.Memory) string {
	if m.LocationName != "" {
		return m.LocationName
	}
	return r.Label(m.Location)
}

// Label resolves a raw location string without a pre-resolved name.
func (r *Resolver) Label(raw string) string {
	if raw == "" {
		return Unknown
	}
	c, ok := ParseCoordinates(raw)
	if !ok {
		return raw
	}
	key := c.Rounded()

	r.mu.Lock()
	defer r.mu.Unlock()
	if label, ok := r.labels[key]; ok {
		r.hits++
		metrics.LocationCacheHits.Inc()
		return label
	}
	label := key.Label()
	r.labels[key] = label
	r.misses++
	metrics.LocationCacheMisses.Inc()
	return label
}

// Stats returns cache hit and miss counts.
func (r *Resolver) Stats() (hits, misses uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits, r.misses
}

// Reset drops every cached label.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels = make(map[Coordinates]string)
	r.hits, r.misses = 0, 0
}
