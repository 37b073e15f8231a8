package location

import (
	"testing"

	"github.com/starford/lookback/internal/models"
)

func TestParseCoordinates(t *testing.T) {
	c, ok := ParseCoordinates("Latitude, Longitude: 37.54321, -77.43210")
	if !ok {
		t.Fatal("expected match")
	}
	if c.Lat != 37.54321 || c.Lon != -77.4321 {
		t.Errorf("coords = %+v", c)
	}
	if _, ok := ParseCoordinates("Richmond, VA"); ok {
		t.Error("free-form string should not match")
	}
}

func TestDisplayName_PreResolvedWins(t *testing.T) {
	r := NewResolver()
	m := &models.Memory{
		Location:     "Latitude, Longitude: 40.7128, -74.0060",
		LocationName: "  Central Park, New York ",
	}
	if got := r.DisplayName(m); got != "  Central Park, New York " {
		t.Errorf("got %q, want pre-resolved name verbatim", got)
	}
	if hits, misses := r.Stats(); hits != 0 || misses != 0 {
		t.Error("pre-resolved names should not touch the cache")
	}
}

func TestDisplayName_Coordinates(t *testing.T) {
	r := NewResolver()
	cases := map[string]string{
		"Latitude, Longitude: 40.7128, -74.0060":  "40.71°N, 74.01°W",
		"Latitude, Longitude: -33.8688, 151.2093": "33.87°S, 151.21°E",
		"Latitude, Longitude: 0.001, 0.001":       "0.00°N, 0.00°E",
	}
	for raw, want := range cases {
		if got := r.DisplayName(&models.Memory{Location: raw}); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestDisplayName_FallbacksAndUnknown(t *testing.T) {
	r := NewResolver()
	if got := r.DisplayName(&models.Memory{Location: "Somewhere nice"}); got != "Somewhere nice" {
		t.Errorf("raw passthrough = %q", got)
	}
	if got := r.DisplayName(&models.Memory{}); got != Unknown {
		t.Errorf("empty = %q, want %q", got, Unknown)
	}
}

func TestDisplayName_IdempotentAndCached(t *testing.T) {
	r := NewResolver()
	m := &models.Memory{Location: "Latitude, Longitude: 40.7128, -74.0060"}
	first := r.DisplayName(m)
	second := r.DisplayName(m)
	if first != second {
		t.Fatalf("not idempotent: %q vs %q", first, second)
	}
	hits, misses := r.Stats()
	if misses != 1 || hits != 1 {
		t.Errorf("hits=%d misses=%d, want 1/1", hits, misses)
	}
}

func TestNearbyPointsShareKeyAndLabel(t *testing.T) {
	r := NewResolver()
	a := "Latitude, Longitude: 40.7128, -74.0060"
	b := "Latitude, Longitude: 40.7129, -74.0061"
	if CanonicalKey(a) != CanonicalKey(b) {
		t.Errorf("keys differ: %q vs %q", CanonicalKey(a), CanonicalKey(b))
	}
	if r.Label(a) != r.Label(b) {
		t.Error("labels differ for the same rounded bucket")
	}
	if hits, _ := r.Stats(); hits != 1 {
		t.Errorf("second nearby lookup should be a cache hit, hits=%d", hits)
	}
}

func TestCanonicalKey(t *testing.T) {
	cases := map[string]string{
		"":                                       Unknown,
		"Paris":                                  "Paris",
		"Latitude, Longitude: 40.7128, -74.0060": "40.71,-74.01",
		"Latitude, Longitude: -0.001, 0.004":     "0.00,0.00",
	}
	for raw, want := range cases {
		if got := CanonicalKey(raw); got != want {
			t.Errorf("CanonicalKey(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestResolversDoNotShareCache(t *testing.T) {
	a, b := NewResolver(), NewResolver()
	raw := "Latitude, Longitude: 1.5, 2.5"
	a.Label(raw)
	b.Label(raw)
	if _, misses := b.Stats(); misses != 1 {
		t.Error("second resolver should miss on its own cache")
	}
}
