package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/starford/lookback/internal/apperr"
	"github.com/starford/lookback/internal/models"
	"github.com/starford/lookback/internal/storage"
)

func strptr(s string) *string { return &s }

func sampleRecords() []models.PersistedRecord {
	return []models.PersistedRecord{
		{
			Filename:  "trip.json",
			Date:      "2024-03-01 10:00:00 UTC",
			MediaType: "Image",
			Location:  "Latitude, Longitude: 40.7128, -74.0060",
			MediaName: "trip.jpg",
			MediaPath: strptr("/archive/trip.jpg"),
		},
		{
			Filename:     "note.json",
			MediaType:    "Unknown",
			LocationName: "Home",
		},
		{
			Filename:  "x_main.json",
			Date:      "2022-06-01 00:00:00 UTC",
			MediaType: "Video",
			MediaName: "x_main.mp4",
			MediaPath: strptr("/archive/x_main.mp4"),
			Overlays:  []string{"/archive/x_overlay_1.png", "/archive/x_overlay_2.png"},
		},
	}
}

func sqliteStore(t *testing.T) *SQLite {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "lookback.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func jsonStore(t *testing.T) (*Snapshot, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return NewSnapshot(fs, "catalog.json"), dir
}

func TestStores(t *testing.T) {
	backends := map[string]func(t *testing.T) CatalogStore{
		"sqlite": func(t *testing.T) CatalogStore { return sqliteStore(t) },
		"json": func(t *testing.T) CatalogStore {
			s, _ := jsonStore(t)
			return s
		},
	}
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("LoadEmpty", func(t *testing.T) {
				s := open(t)
				if _, err := s.Load(ctx); !errors.Is(err, apperr.ErrNoPersisted) {
					t.Errorf("err = %v, want ErrNoPersisted", err)
				}
			})

			t.Run("RoundTrip", func(t *testing.T) {
				s := open(t)
				want := sampleRecords()
				if err := s.Save(ctx, want); err != nil {
					t.Fatalf("Save: %v", err)
				}
				got, err := s.Load(ctx)
				if err != nil {
					t.Fatalf("Load: %v", err)
				}
				if !reflect.DeepEqual(got, want) {
					t.Errorf("records differ:\n got  %+v\n want %+v", got, want)
				}
			})

			t.Run("SaveReplaces", func(t *testing.T) {
				s := open(t)
				if err := s.Save(ctx, sampleRecords()); err != nil {
					t.Fatal(err)
				}
				next := sampleRecords()[:1]
				if err := s.Save(ctx, next); err != nil {
					t.Fatal(err)
				}
				got, err := s.Load(ctx)
				if err != nil {
					t.Fatal(err)
				}
				if len(got) != 1 || got[0].Filename != "trip.json" {
					t.Errorf("got %+v", got)
				}
			})

			t.Run("EmptySaveIsNotMissing", func(t *testing.T) {
				s := open(t)
				if err := s.Save(ctx, nil); err != nil {
					t.Fatal(err)
				}
				got, err := s.Load(ctx)
				if err != nil {
					t.Fatalf("Load: %v", err)
				}
				if len(got) != 0 {
					t.Errorf("got %d records", len(got))
				}
			})

			t.Run("Clear", func(t *testing.T) {
				s := open(t)
				if err := s.Save(ctx, sampleRecords()); err != nil {
					t.Fatal(err)
				}
				if err := s.Clear(ctx); err != nil {
					t.Fatalf("Clear: %v", err)
				}
				if _, err := s.Load(ctx); !errors.Is(err, apperr.ErrNoPersisted) {
					t.Errorf("err = %v, want ErrNoPersisted", err)
				}
				if err := s.Clear(ctx); err != nil {
					t.Errorf("second Clear: %v", err)
				}
			})
		})
	}
}

func TestSQLite_DuplicateFilenameRollsBack(t *testing.T) {
	s := sqliteStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, sampleRecords()); err != nil {
		t.Fatal(err)
	}
	bad := []models.PersistedRecord{{Filename: "a.json"}, {Filename: "a.json"}}
	if err := s.Save(ctx, bad); err == nil {
		t.Fatal("expected unique constraint failure")
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(sampleRecords()) {
		t.Errorf("previous save lost: %d records", len(got))
	}
}

type failingWrites struct {
	Files
}

func (failingWrites) Write(string, []byte) error { return errors.New("disk full") }

func TestSnapshot_FailedSaveKeepsPrevious(t *testing.T) {
	s, dir := jsonStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, sampleRecords()); err != nil {
		t.Fatal(err)
	}
	broken := NewSnapshot(failingWrites{s.files}, "catalog.json")
	if err := broken.Save(ctx, nil); err == nil {
		t.Fatal("expected write error")
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("previous save lost: %d records", len(got))
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("unexpected files in snapshot dir: %d", len(entries))
	}
}

func TestSnapshot_CorruptDocument(t *testing.T) {
	s, dir := jsonStore(t)
	if err := os.WriteFile(filepath.Join(dir, "catalog.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := s.Load(context.Background())
	if err == nil || errors.Is(err, apperr.ErrNoPersisted) {
		t.Errorf("err = %v, want decode error", err)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, driver := range []string{DriverSQLite, DriverJSON} {
		s, err := Open(driver, filepath.Join(dir, driver, "catalog"))
		if err != nil {
			t.Fatalf("Open(%s): %v", driver, err)
		}
		if err := s.Save(context.Background(), sampleRecords()); err != nil {
			t.Errorf("%s Save: %v", driver, err)
		}
		s.Close()
	}
	if _, err := Open("bolt", filepath.Join(dir, "x")); err == nil {
		t.Error("expected unknown driver error")
	}
}
