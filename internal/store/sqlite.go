package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/lookback/internal/apperr"
	"github.com/starford/lookback/internal/metrics"
	"github.com/starford/lookback/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS memories (
	position      INTEGER PRIMARY KEY,
	filename      TEXT NOT NULL UNIQUE,
	date          TEXT NOT NULL DEFAULT '',
	media_type    TEXT NOT NULL DEFAULT '',
	location      TEXT NOT NULL DEFAULT '',
	location_name TEXT NOT NULL DEFAULT '',
	media_name    TEXT NOT NULL DEFAULT '',
	media_path    TEXT,
	overlays      TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS saves (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	saved_at   DATETIME NOT NULL,
	count      INTEGER NOT NULL
);
`

// SQLite stores the catalog in a single SQLite file.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *SQLite) Close() error {
	return db.conn.Close()
}

// Save replaces every stored record in one transaction.
func (db *SQLite) Save(ctx context.Context, records []models.PersistedRecord) (err error) {
	defer func() { metrics.PersistOps.WithLabelValues("save", metrics.Outcome(err)).Inc() }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM memories`); err != nil {
		return fmt.Errorf("store: clear rows: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO memories
			(position, filename, date, media_type, location, location_name, media_name, media_path, overlays)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("store: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		overlays, err := json.Marshal(nonNil(r.Overlays))
		if err != nil {
			return fmt.Errorf("store: encode overlays: %w", err)
		}
		var mediaPath sql.NullString
		if r.MediaPath != nil {
			mediaPath = sql.NullString{String: *r.MediaPath, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, i, r.Filename, r.Date, r.MediaType,
			r.Location, r.LocationName, r.MediaName, mediaPath, string(overlays)); err != nil {
			return fmt.Errorf("store: insert %s: %w", r.Filename, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO saves (id, saved_at, count) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET saved_at = excluded.saved_at, count = excluded.count
	`, time.Now().UTC(), len(records)); err != nil {
		return fmt.Errorf("store: record save: %w", err)
	}
	return tx.Commit()
}

// Load returns the stored records in saved order.
func (db *SQLite) Load(ctx context.Context) (recs []models.PersistedRecord, err error) {
	defer func() {
		if !errors.Is(err, apperr.ErrNoPersisted) {
			metrics.PersistOps.WithLabelValues("load", metrics.Outcome(err)).Inc()
		}
	}()

	var count int
	err = db.conn.QueryRowContext(ctx, `SELECT count FROM saves WHERE id = 1`).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNoPersisted
	}
	if err != nil {
		return nil, fmt.Errorf("store: read save marker: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT filename, date, media_type, location, location_name, media_name, media_path, overlays
		FROM memories ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("store: query memories: %w", err)
	}
	defer rows.Close()

	recs = make([]models.PersistedRecord, 0, count)
	for rows.Next() {
		var (
			r         models.PersistedRecord
			mediaPath sql.NullString
			overlays  string
		)
		if err := rows.Scan(&r.Filename, &r.Date, &r.MediaType, &r.Location,
			&r.LocationName, &r.MediaName, &mediaPath, &overlays); err != nil {
			return nil, fmt.Errorf("store: scan row: %w", err)
		}
		if mediaPath.Valid {
			p := mediaPath.String
			r.MediaPath = &p
		}
		if err := json.Unmarshal([]byte(overlays), &r.Overlays); err != nil {
			return nil, fmt.Errorf("store: decode overlays for %s: %w", r.Filename, err)
		}
		if len(r.Overlays) == 0 {
			r.Overlays = nil
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// Clear removes every stored record and the save marker.
func (db *SQLite) Clear(ctx context.Context) (err error) {
	defer func() { metrics.PersistOps.WithLabelValues("clear", metrics.Outcome(err)).Inc() }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	if _, err := tx.ExecContext(ctx, `DELETE FROM memories`); err != nil {
		return fmt.Errorf("store: clear rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM saves`); err != nil {
		return fmt.Errorf("store: clear marker: %w", err)
	}
	return tx.Commit()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
