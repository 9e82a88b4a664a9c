package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/memorialmap/internal/types"
)

// Reader reads facilities from a store database.
type Reader struct {
	db   *sql.DB
	path string
}

// OpenReader opens a store database for reading.
func OpenReader(path string) (*Reader, error) {
	// Read-only and immutable: the importer is the only writer and runs offline
	db, err := sql.Open("sqlite", path+"?mode=ro&immutable=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='facilities'").Scan(&count)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify schema: %w", err)
	}
	if count == 0 {
		db.Close()
		return nil, fmt.Errorf("database does not contain facilities table")
	}

	return &Reader{
		db:   db,
		path: path,
	}, nil
}

// Filter narrows a facility listing. Zero values match everything.
type Filter struct {
	Categories []types.Category
	// Query matches a substring of the name or the address.
	Query string
	// PlacedOnly drops facilities without coordinates.
	PlacedOnly bool
	Limit      int
}

const facilityColumns = "id, name, address, category, lat, lng, price_min, price_max"

// Facility returns the facility with the given id.
func (r *Reader) Facility(ctx context.Context, id string) (types.Facility, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+facilityColumns+" FROM facilities WHERE id = ?", id)

	f, err := scanFacility(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Facility{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return types.Facility{}, fmt.Errorf("failed to query facility: %w", err)
	}
	return f, nil
}

// Facilities lists facilities in insertion order.
func (r *Reader) Facilities(ctx context.Context, filter Filter) ([]types.Facility, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.Categories) > 0 {
		marks := make([]string, len(filter.Categories))
		for i, c := range filter.Categories {
			marks[i] = "?"
			args = append(args, string(c))
		}
		where = append(where, "category IN ("+strings.Join(marks, ", ")+")")
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		where = append(where, "(instr(name, ?) > 0 OR instr(address, ?) > 0)")
		args = append(args, q, q)
	}
	if filter.PlacedOnly {
		where = append(where, "lat IS NOT NULL AND lng IS NOT NULL")
	}

	query := "SELECT " + facilityColumns + " FROM facilities"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY position"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query facilities: %w", err)
	}
	defer rows.Close()

	var out []types.Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan facility row: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating facilities: %w", err)
	}

	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFacility(s scanner) (types.Facility, error) {
	var (
		f        types.Facility
		category string
		lat, lng sql.NullFloat64
	)
	if err := s.Scan(&f.ID, &f.Name, &f.Address, &category, &lat, &lng,
		&f.PriceRange.Min, &f.PriceRange.Max); err != nil {
		return types.Facility{}, err
	}
	f.Category = types.ParseCategory(category)
	if lat.Valid && lng.Valid {
		f.Coordinates = &types.LatLng{Lat: lat.Float64, Lng: lng.Float64}
	}
	return f, nil
}

// Metadata reads metadata from the database.
func (r *Reader) Metadata() (Metadata, error) {
	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return Metadata{}, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		values[name] = value
	}

	if err := rows.Err(); err != nil {
		return Metadata{}, fmt.Errorf("error iterating metadata: %w", err)
	}

	return metadataFromMap(values), nil
}

// Close closes the database connection.
func (r *Reader) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
