package matcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/starford/lookback/internal/models"
	"github.com/starford/lookback/internal/parser"
)

type fakeLoader struct {
	mu      sync.Mutex
	calls   []string
	fail    map[string]bool
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (f *fakeLoader) Load(ctx context.Context, path string) (*models.Handle, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		cur := f.maxSeen.Load()
		if n <= cur || f.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, path)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.fail[path] {
		return nil, errors.New("boom")
	}
	return &models.Handle{MIME: "image/jpeg", Kind: "image"}, nil
}

func records(m map[string]string) RecordReader {
	return ReaderFunc(func(path string) (*parser.Record, error) {
		raw, ok := m[path]
		if !ok {
			return nil, errors.New("no such record")
		}
		return parser.ParseRecord([]byte(raw))
	})
}

func meta(name string) models.FileEntry {
	return models.FileEntry{Name: name, Path: "/a/" + name, Kind: models.KindMetadata}
}

func mediaFile(name string) models.FileEntry {
	return models.FileEntry{Name: name, Path: "/a/" + name, Kind: models.KindMedia}
}

func TestMatch_ImagePreferredOverVideo(t *testing.T) {
	loader := &fakeLoader{}
	m := New(records(map[string]string{
		"/a/trip.json": `{"Date": "2024-03-01 10:00:00 UTC", "Media Type": "Image"}`,
	}), loader)

	files := []models.FileEntry{mediaFile("trip.mp4"), meta("trip.json"), mediaFile("trip.jpg")}
	got, err := m.Match(context.Background(), files)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Media == nil || got[0].Media.Name != "trip.jpg" {
		t.Errorf("media = %+v, want trip.jpg", got[0].Media)
	}
	if !got[0].Displayable() {
		t.Error("expected a loaded handle")
	}
	if !got[0].Instant.Valid() {
		t.Error("expected a parsed instant")
	}
}

func TestMatch_NoMediaStillProducesMemory(t *testing.T) {
	m := New(records(map[string]string{"/a/lonely.json": `{"Date": ""}`}), &fakeLoader{})
	got, err := m.Match(context.Background(), []models.FileEntry{meta("lonely.json")})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].HasMedia() || got[0].Handle != nil {
		t.Errorf("expected no media, got %+v", got[0])
	}
	if got[0].MediaType != models.DefaultMediaType {
		t.Errorf("media type = %q", got[0].MediaType)
	}
}

func TestMatch_NullDateKeepsMemory(t *testing.T) {
	m := New(records(map[string]string{
		"/a/dated.json":   `{"Date": "2024-03-01 10:00:00 UTC"}`,
		"/a/undated.json": `{"Date": null, "Media Type": "Image"}`,
	}), &fakeLoader{})
	got, err := m.Match(context.Background(), []models.FileEntry{meta("dated.json"), meta("undated.json")})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	undated := got[1]
	if undated.Filename != "undated.json" || undated.Date != "" || undated.Instant.Valid() {
		t.Errorf("undated = %+v, want empty date and invalid instant", undated)
	}
}

func TestMatch_UnparseableRecordSkipped(t *testing.T) {
	m := New(records(map[string]string{
		"/a/good.json": `{"Date": "2024-01-01 00:00:00 UTC"}`,
		"/a/bad.json":  `{"Date": `,
	}), &fakeLoader{})
	got, err := m.Match(context.Background(), []models.FileEntry{meta("bad.json"), meta("good.json"), meta("missing.json")})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(got) != 1 || got[0].Filename != "good.json" {
		t.Errorf("got %+v, want only good.json", got)
	}
}

func TestMatch_LoadFailureKeepsMemory(t *testing.T) {
	loader := &fakeLoader{fail: map[string]bool{"/a/x.png": true}}
	m := New(records(map[string]string{"/a/x.json": `{"Date": ""}`}), loader)
	got, err := m.Match(context.Background(), []models.FileEntry{meta("x.json"), mediaFile("x.png")})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Media == nil || got[0].Media.Name != "x.png" {
		t.Errorf("asset ref should be kept, got %+v", got[0].Media)
	}
	if got[0].Handle != nil {
		t.Error("failed load should leave no handle")
	}
	if !got[0].HasMedia() || got[0].Displayable() {
		t.Errorf("HasMedia=%v Displayable=%v, want true/false", got[0].HasMedia(), got[0].Displayable())
	}
}

func TestMatch_StemIsBeforeFirstDot(t *testing.T) {
	m := New(records(map[string]string{"/a/clip.meta.json": `{"Date": ""}`}), &fakeLoader{})
	got, _ := m.Match(context.Background(), []models.FileEntry{meta("clip.meta.json"), mediaFile("clip.mp4")})
	if len(got) != 1 || got[0].Media == nil || got[0].Media.Name != "clip.mp4" {
		t.Errorf("got %+v", got)
	}
}

func TestMatch_Overlays(t *testing.T) {
	m := New(records(map[string]string{"/a/20240101_1_main.json": `{"Date": ""}`}), &fakeLoader{})
	files := []models.FileEntry{
		meta("20240101_1_main.json"),
		mediaFile("20240101_1_main.mp4"),
		mediaFile("20240101_1_overlay_2.png"),
		mediaFile("20240101_1_overlay_1.png"),
		mediaFile("20240101_2_overlay_1.png"),
	}
	got, err := m.Match(context.Background(), files)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d", len(got))
	}
	ov := got[0].Overlays
	if len(ov) != 2 || ov[0].Name != "20240101_1_overlay_1.png" || ov[1].Name != "20240101_1_overlay_2.png" {
		t.Errorf("overlays = %+v", ov)
	}
}

func TestMatch_BoundedConcurrency(t *testing.T) {
	recs := map[string]string{}
	var files []models.FileEntry
	for _, stem := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		recs["/a/"+stem+".json"] = `{"Date": ""}`
		files = append(files, meta(stem+".json"), mediaFile(stem+".jpg"))
	}
	loader := &fakeLoader{}
	m := New(records(recs), loader, WithConcurrency(2))
	got, err := m.Match(context.Background(), files)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(got) != 8 {
		t.Fatalf("len = %d", len(got))
	}
	if loader.maxSeen.Load() > 2 {
		t.Errorf("observed %d concurrent loads, limit 2", loader.maxSeen.Load())
	}
}

func TestMatch_Cancelled(t *testing.T) {
	m := New(records(map[string]string{"/a/x.json": `{"Date": ""}`}), &fakeLoader{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Match(ctx, []models.FileEntry{meta("x.json")}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
