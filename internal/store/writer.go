package store

import (
	"database/sql"
	"fmt"
	"math"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/MeKo-Tech/memorialmap/internal/types"
)

const (
	// DefaultBatchSize is the number of facilities to buffer before flushing to the database.
	DefaultBatchSize = 500
)

// Writer writes facilities to a store database. Facilities keep the order in
// which they are written; rewriting an id replaces the record in place.
type Writer struct {
	db        *sql.DB
	path      string
	batch     []types.Facility
	metadata  Metadata
	batchSize int
	position  int
	written   int
	bounds    types.Bounds
	placed    int
	mu        sync.Mutex
}

// New creates a new store writer.
// The database is created if it doesn't exist, and the schema is initialized.
func New(path string, metadata Metadata) (*Writer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	var next sql.NullInt64
	if err := db.QueryRow("SELECT MAX(position) + 1 FROM facilities").Scan(&next); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read facility positions: %w", err)
	}

	return &Writer{
		db:        db,
		path:      path,
		batch:     make([]types.Facility, 0, DefaultBatchSize),
		batchSize: DefaultBatchSize,
		metadata:  metadata,
		position:  int(next.Int64),
		bounds: types.Bounds{
			South: math.Inf(1), West: math.Inf(1),
			North: math.Inf(-1), East: math.Inf(-1),
		},
	}, nil
}

// createSchema creates the facility database schema.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS metadata (
			name TEXT NOT NULL,
			value TEXT
		);

		CREATE TABLE IF NOT EXISTS facilities (
			id TEXT NOT NULL PRIMARY KEY,
			name TEXT NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL,
			lat REAL,
			lng REAL,
			price_min INTEGER NOT NULL DEFAULT 0,
			price_max INTEGER NOT NULL DEFAULT 0,
			position INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS facilities_category ON facilities (category);
		CREATE INDEX IF NOT EXISTS facilities_position ON facilities (position);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// writeMetadata replaces the metadata table with meta.
func writeMetadata(db *sql.DB, meta Metadata) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	if _, err := tx.Exec("DELETE FROM metadata"); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO metadata (name, value) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare metadata insert: %w", err)
	}
	defer stmt.Close()

	for key, value := range meta.ToMap() {
		if _, err := stmt.Exec(key, value); err != nil {
			return fmt.Errorf("failed to insert metadata %q: %w", key, err)
		}
	}

	return tx.Commit()
}

// WriteFacility adds a facility to the batch. When the batch is full, it is
// automatically flushed.
func (w *Writer) WriteFacility(f types.Facility) error {
	if f.ID == "" {
		return fmt.Errorf("facility %q has no id", f.Name)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.batch = append(w.batch, f)
	if len(w.batch) >= w.batchSize {
		return w.flushLocked()
	}

	return nil
}

// WriteAll stores facilities in a single transaction, so either all of them
// are written or none are. Facilities buffered by WriteFacility are flushed
// first.
func (w *Writer) WriteAll(facilities []types.Facility) error {
	for i, f := range facilities {
		if f.ID == "" {
			return fmt.Errorf("facility %d (%q) has no id", i, f.Name)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.flushLocked(); err != nil {
		return err
	}
	return w.insertLocked(facilities)
}

// Flush writes any buffered facilities to the database.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// flushLocked writes buffered facilities to the database. Must be called with lock held.
func (w *Writer) flushLocked() error {
	if err := w.insertLocked(w.batch); err != nil {
		return err
	}
	w.batch = w.batch[:0]
	return nil
}

// insertLocked upserts facilities in one transaction. Must be called with lock held.
func (w *Writer) insertLocked(facilities []types.Facility) error {
	if len(facilities) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT INTO facilities (id, name, address, category, lat, lng, price_min, price_max, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address,
			category = excluded.category,
			lat = excluded.lat,
			lng = excluded.lng,
			price_min = excluded.price_min,
			price_max = excluded.price_max`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	position := w.position
	for _, f := range facilities {
		var lat, lng sql.NullFloat64
		if f.Coordinates != nil {
			lat = sql.NullFloat64{Float64: f.Coordinates.Lat, Valid: true}
			lng = sql.NullFloat64{Float64: f.Coordinates.Lng, Valid: true}
		}

		if _, err := stmt.Exec(f.ID, f.Name, f.Address, string(f.Category), lat, lng,
			f.PriceRange.Min, f.PriceRange.Max, position); err != nil {
			return fmt.Errorf("failed to insert facility %s: %w", f.ID, err)
		}
		position++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	for _, f := range facilities {
		if f.Coordinates != nil {
			w.extend(*f.Coordinates)
		}
	}
	w.position = position
	w.written += len(facilities)
	return nil
}

func (w *Writer) extend(p types.LatLng) {
	w.bounds.South = math.Min(w.bounds.South, p.Lat)
	w.bounds.North = math.Max(w.bounds.North, p.Lat)
	w.bounds.West = math.Min(w.bounds.West, p.Lng)
	w.bounds.East = math.Max(w.bounds.East, p.Lng)
	w.placed++
}

// Written returns the number of facilities flushed so far.
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Close flushes any remaining facilities, records the metadata and closes the
// database.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		w.db.Close()
		return err
	}

	meta := w.metadata
	if err := w.db.QueryRow("SELECT COUNT(*) FROM facilities").Scan(&meta.Count); err != nil {
		w.db.Close()
		return fmt.Errorf("failed to count facilities: %w", err)
	}
	if w.placed > 0 {
		meta.Bounds = w.bounds
	}
	if err := writeMetadata(w.db, meta); err != nil {
		w.db.Close()
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
