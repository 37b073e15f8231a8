package memoryservice

import (
	"time"

	"github.com/starford/lookback/internal/matcher"
	"github.com/starford/lookback/internal/projector"
)

type settings struct {
	concurrency   int
	minMediaBytes int64
	autosave      bool
	flashbacks    int
	location      *time.Location
	rand          projector.Rand
}

func defaultSettings() settings {
	return settings{
		concurrency: matcher.DefaultConcurrency,
		flashbacks:  projector.DefaultFlashbacks,
		location:    time.UTC,
	}
}

// Option configures a Service.
type Option func(*settings)

// WithConcurrency bounds parallel media loads during ingest.
func WithConcurrency(n int) Option {
	return func(s *settings) { s.concurrency = n }
}

// WithMinMediaBytes rejects media files smaller than n bytes.
func WithMinMediaBytes(n int64) Option {
	return func(s *settings) { s.minMediaBytes = n }
}

// WithAutosave saves the catalog after every successful ingest.
func WithAutosave(on bool) Option {
	return func(s *settings) { s.autosave = on }
}

// WithFlashbacks sets the flashback sample size.
func WithFlashbacks(n int) Option {
	return func(s *settings) { s.flashbacks = n }
}

// WithTimeZone sets the zone used for calendar grouping.
func WithTimeZone(loc *time.Location) Option {
	return func(s *settings) { s.location = loc }
}

// WithRand sets the flashback random source.
func WithRand(r projector.Rand) Option {
	return func(s *settings) { s.rand = r }
}
