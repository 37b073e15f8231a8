// Package projector derives read-only views of the catalog: the recency
// feed, flashback samples, calendar groups and place groups.
package projector

import (
	"math/rand/v2"
	"slices"
	"strconv"
	"time"

	"github.com/starford/lookback/internal/location"
	"github.com/starford/lookback/internal/models"
)

// DefaultFlashbacks is the flashback sample size.
const DefaultFlashbacks = 4

// UnknownDate labels the bucket for memories without a valid date.
const UnknownDate = "Unknown date"

// Source supplies the current published sequence, newest first.
type Source interface {
	Snapshot() []*models.Memory
}

// Rand is the random source used for flashback sampling.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Option configures a Projector.
type Option func(*Projector)

// WithRand sets the random source.
func WithRand(r Rand) Option {
	return func(p *Projector) {
		if r != nil {
			p.rand = r
		}
	}
}

// WithLocation sets the time zone used for calendar bucketing.
func WithLocation(loc *time.Location) Option {
	return func(p *Projector) {
		if loc != nil {
			p.loc = loc
		}
	}
}

// WithFlashbacks sets the flashback sample size.
func WithFlashbacks(n int) Option {
	return func(p *Projector) {
		if n > 0 {
			p.flashbacks = n
		}
	}
}

// Projector computes every view from a fresh snapshot; nothing is cached
// between calls.
type Projector struct {
	src        Source
	resolver   *location.Resolver
	rand       Rand
	loc        *time.Location
	flashbacks int
}

// New creates a Projector over src.
func New(src Source, resolver *location.Resolver, opts ...Option) *Projector {
	if resolver == nil {
		resolver = location.NewResolver()
	}
	p := &Projector{
		src:        src,
		resolver:   resolver,
		rand:       globalRand{},
		loc:        time.UTC,
		flashbacks: DefaultFlashbacks,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Resolver returns the location resolver used for place labels.
func (p *Projector) Resolver() *location.Resolver { return p.resolver }

// Feed returns the catalog order unchanged. A positive limit truncates it.
func (p *Projector) Feed(limit int) []*models.Memory {
	items := p.src.Snapshot()
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// Flashbacks returns up to the configured number of distinct memories chosen
// uniformly at random. Each call draws a new sample.
func (p *Projector) Flashbacks() []*models.Memory {
	return Sample(p.src.Snapshot(), p.flashbacks, p.rand)
}

// Sample picks up to n distinct items from pool without replacement. pool
// is consumed.
func Sample(pool []*models.Memory, n int, r Rand) []*models.Memory {
	out := make([]*models.Memory, 0, min(n, len(pool)))
	for len(out) < n && len(pool) > 0 {
		j := r.IntN(len(pool))
		out = append(out, pool[j])
		last := len(pool) - 1
		pool[j] = pool[last]
		pool = pool[:last]
	}
	return out
}

// MonthGroup is one calendar month within a year.
type MonthGroup struct {
	Month    time.Month       `json:"month"`
	Label    string           `json:"label"`
	Count    int              `json:"count"`
	Memories []*models.Memory `json:"memories"`
}

// YearGroup is one calendar year. Known is false for the bucket that holds
// memories without a valid date; it has a single month group with Month 0.
type YearGroup struct {
	Year   int          `json:"year"`
	Known  bool         `json:"known"`
	Label  string       `json:"label"`
	Count  int          `json:"count"`
	Months []MonthGroup `json:"months"`
}

// TimeGroups partitions the catalog by year then month, both descending.
// Memories without a valid date form a final "Unknown date" group.
func (p *Projector) TimeGroups() []YearGroup {
	years := make(map[int]map[time.Month][]*models.Memory)
	var unknown []*models.Memory
	for _, m := range p.src.Snapshot() {
		t, ok := m.Instant.Time()
		if !ok {
			unknown = append(unknown, m)
			continue
		}
		t = t.In(p.loc)
		if years[t.Year()] == nil {
			years[t.Year()] = make(map[time.Month][]*models.Memory)
		}
		years[t.Year()][t.Month()] = append(years[t.Year()][t.Month()], m)
	}

	keys := make([]int, 0, len(years))
	for y := range years {
		keys = append(keys, y)
	}
	slices.Sort(keys)
	slices.Reverse(keys)

	out := make([]YearGroup, 0, len(keys)+1)
	for _, y := range keys {
		g := YearGroup{Year: y, Known: true, Label: strconv.Itoa(y)}
		for month := time.December; month >= time.January; month-- {
			ms, ok := years[y][month]
			if !ok {
				continue
			}
			g.Months = append(g.Months, MonthGroup{Month: month, Label: month.String(), Count: len(ms), Memories: ms})
			g.Count += len(ms)
		}
		out = append(out, g)
	}
	if len(unknown) > 0 {
		out = append(out, YearGroup{
			Label:  UnknownDate,
			Count:  len(unknown),
			Months: []MonthGroup{{Label: UnknownDate, Count: len(unknown), Memories: unknown}},
		})
	}
	return out
}

// Month returns the memories of one calendar month.
func (p *Projector) Month(year int, month time.Month) []*models.Memory {
	for _, g := range p.TimeGroups() {
		if !g.Known || g.Year != year {
			continue
		}
		for _, mg := range g.Months {
			if mg.Month == month {
				return mg.Memories
			}
		}
	}
	return nil
}

// PlaceGroup is one canonical location bucket.
type PlaceGroup struct {
	Key      string           `json:"key"`
	Label    string           `json:"label"`
	Count    int              `json:"count"`
	Memories []*models.Memory `json:"memories"`
}

// PlaceGroups partitions the catalog by canonical location key, largest
// group first; ties keep first-encountered order. Labels come from the
// first member.
func (p *Projector) PlaceGroups() []PlaceGroup {
	var out []PlaceGroup
	index := make(map[string]int)
	for _, m := range p.src.Snapshot() {
		key := p.resolver.CanonicalKey(m.Location)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, PlaceGroup{Key: key, Label: p.resolver.DisplayName(m)})
		}
		out[i].Memories = append(out[i].Memories, m)
		out[i].Count++
	}
	slices.SortStableFunc(out, func(a, b PlaceGroup) int { return b.Count - a.Count })
	return out
}

// Place returns the members of the group with the given key.
func (p *Projector) Place(key string) []*models.Memory {
	for _, g := range p.PlaceGroups() {
		if g.Key == key {
			return g.Memories
		}
	}
	return nil
}
