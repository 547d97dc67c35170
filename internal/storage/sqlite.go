// Package storage provides persistent storage for itinerary conversions.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Conversion is a stored itinerary conversion: the pasted input, the
// rendered output and the key departure fields for filtering.
type Conversion struct {
	ID              int64
	CreatedAt       time.Time
	ReferenceDate   string
	ReservationCode string
	FlightNumber    string
	TravelDate      string
	Origin          string
	Destination     string
	HasArrival      bool
	RawText         string
	OutputText      string
	ItineraryJSON   string
}

// DB wraps a SQLite database for local conversion history.
type DB struct {
	db *sql.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TEXT DEFAULT (datetime('now')),
		reference_date TEXT NOT NULL,
		reservation_code TEXT,
		flight_number TEXT,
		travel_date TEXT,
		origin TEXT,
		destination TEXT,
		has_arrival INTEGER NOT NULL DEFAULT 0,
		raw_text TEXT NOT NULL,
		output_text TEXT NOT NULL,
		itinerary_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_conversions_flight ON conversions(flight_number);
	CREATE INDEX IF NOT EXISTS idx_conversions_origin ON conversions(origin);
	CREATE INDEX IF NOT EXISTS idx_conversions_destination ON conversions(destination);
	CREATE INDEX IF NOT EXISTS idx_conversions_created ON conversions(created_at);

	-- FTS5 virtual table for full-text search on the pasted input.
	CREATE VIRTUAL TABLE IF NOT EXISTS conversions_fts USING fts5(
		raw_text,
		content='conversions',
		content_rowid='id'
	);

	-- Triggers to keep FTS index in sync.
	CREATE TRIGGER IF NOT EXISTS conversions_ai AFTER INSERT ON conversions BEGIN
		INSERT INTO conversions_fts(rowid, raw_text) VALUES (new.id, new.raw_text);
	END;

	CREATE TRIGGER IF NOT EXISTS conversions_ad AFTER DELETE ON conversions BEGIN
		INSERT INTO conversions_fts(conversions_fts, rowid, raw_text) VALUES('delete', old.id, old.raw_text);
	END;
	`

	_, err := db.Exec(schema)
	return err
}

// InsertParams contains the parameters for recording a conversion.
type InsertParams struct {
	ReferenceDate   string
	ReservationCode string
	FlightNumber    string
	TravelDate      string
	Origin          string
	Destination     string
	HasArrival      bool
	RawText         string
	OutputText      string
	Itinerary       interface{}
}

// Insert records a conversion in the history database.
func (d *DB) Insert(p InsertParams) (int64, error) {
	itineraryJSON, err := json.Marshal(p.Itinerary)
	if err != nil {
		return 0, fmt.Errorf("marshal itinerary: %w", err)
	}

	hasArrival := 0
	if p.HasArrival {
		hasArrival = 1
	}

	result, err := d.db.Exec(`
		INSERT INTO conversions (reference_date, reservation_code, flight_number, travel_date, origin, destination, has_arrival, raw_text, output_text, itinerary_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ReferenceDate, p.ReservationCode, p.FlightNumber, p.TravelDate, p.Origin, p.Destination, hasArrival, p.RawText, p.OutputText, string(itineraryJSON))
	if err != nil {
		return 0, fmt.Errorf("insert conversion: %w", err)
	}

	return result.LastInsertId()
}

// QueryParams contains filtering options for querying conversions.
type QueryParams struct {
	ID          int64  // Filter by specific conversion ID.
	Flight      string // Filter by flight number (LIKE match).
	Origin      string // Filter by origin name (exact match).
	Destination string // Filter by destination name (exact match).
	FullText    string // FTS5 full-text search on raw_text.
	Limit       int    // Max results (default 100).
	Offset      int    // Pagination offset.
}

// Query retrieves conversions matching the given parameters, newest first.
func (d *DB) Query(p QueryParams) ([]Conversion, error) {
	var conditions []string
	var args []interface{}

	if p.ID != 0 {
		conditions = append(conditions, "id = ?")
		args = append(args, p.ID)
	}
	if p.Flight != "" {
		conditions = append(conditions, "flight_number LIKE ?")
		args = append(args, "%"+p.Flight+"%")
	}
	if p.Origin != "" {
		conditions = append(conditions, "origin = ?")
		args = append(args, p.Origin)
	}
	if p.Destination != "" {
		conditions = append(conditions, "destination = ?")
		args = append(args, p.Destination)
	}

	// FTS5 search requires a JOIN with the virtual table.
	var query string
	if p.FullText != "" {
		query = `SELECT c.id, c.created_at, c.reference_date, c.reservation_code, c.flight_number,
				c.travel_date, c.origin, c.destination, c.has_arrival, c.raw_text, c.output_text, c.itinerary_json
				FROM conversions c
				JOIN conversions_fts fts ON c.id = fts.rowid
				WHERE conversions_fts MATCH ?`
		args = append([]interface{}{p.FullText}, args...)
		if len(conditions) > 0 {
			query += " AND " + strings.Join(conditions, " AND ")
		}
	} else {
		query = `SELECT id, created_at, reference_date, reservation_code, flight_number,
				travel_date, origin, destination, has_arrival, raw_text, output_text, itinerary_json
				FROM conversions`
		if len(conditions) > 0 {
			query += " WHERE " + strings.Join(conditions, " AND ")
		}
	}

	query += " ORDER BY id DESC"

	limit := 100
	if p.Limit > 0 {
		limit = p.Limit
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, p.Offset)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var conversions []Conversion
	for rows.Next() {
		c, err := scanConversion(rows)
		if err != nil {
			return nil, err
		}
		conversions = append(conversions, c)
	}

	return conversions, rows.Err()
}

func scanConversion(rows *sql.Rows) (Conversion, error) {
	var c Conversion
	var createdAt, reservationCode sql.NullString
	var hasArrival sql.NullInt64

	err := rows.Scan(&c.ID, &createdAt, &c.ReferenceDate, &reservationCode, &c.FlightNumber,
		&c.TravelDate, &c.Origin, &c.Destination, &hasArrival, &c.RawText, &c.OutputText, &c.ItineraryJSON)
	if err != nil {
		return Conversion{}, fmt.Errorf("scan row: %w", err)
	}

	if createdAt.Valid {
		c.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdAt.String)
	}
	if reservationCode.Valid {
		c.ReservationCode = reservationCode.String
	}
	if hasArrival.Valid {
		c.HasArrival = hasArrival.Int64 == 1
	}
	return c, nil
}

// GetByID retrieves a single conversion by ID, or nil if absent.
func (d *DB) GetByID(id int64) (*Conversion, error) {
	conversions, err := d.Query(QueryParams{ID: id, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(conversions) == 0 {
		return nil, nil
	}
	return &conversions[0], nil
}

// Stats returns aggregate statistics about stored conversions.
type Stats struct {
	TotalConversions int
	WithArrival      int
	WithReservation  int
	ByOrigin         map[string]int
	ByDestination    map[string]int
}

// GetStats returns statistics about the stored conversions.
func (d *DB) GetStats() (*Stats, error) {
	stats := &Stats{
		ByOrigin:      make(map[string]int),
		ByDestination: make(map[string]int),
	}

	row := d.db.QueryRow("SELECT COUNT(*) FROM conversions")
	if err := row.Scan(&stats.TotalConversions); err != nil {
		return nil, err
	}

	row = d.db.QueryRow("SELECT COUNT(*) FROM conversions WHERE has_arrival = 1")
	if err := row.Scan(&stats.WithArrival); err != nil {
		return nil, err
	}

	row = d.db.QueryRow("SELECT COUNT(*) FROM conversions WHERE reservation_code != '' AND reservation_code IS NOT NULL")
	if err := row.Scan(&stats.WithReservation); err != nil {
		return nil, err
	}

	rows, err := d.db.Query("SELECT origin, COUNT(*) FROM conversions GROUP BY origin ORDER BY COUNT(*) DESC LIMIT 20")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var origin string
		var count int
		if err := rows.Scan(&origin, &count); err != nil {
			_ = rows.Close()
			return nil, err
		}
		stats.ByOrigin[origin] = count
	}
	_ = rows.Close()

	rows, err = d.db.Query("SELECT destination, COUNT(*) FROM conversions GROUP BY destination ORDER BY COUNT(*) DESC LIMIT 20")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var dest string
		var count int
		if err := rows.Scan(&dest, &count); err != nil {
			_ = rows.Close()
			return nil, err
		}
		stats.ByDestination[dest] = count
	}
	_ = rows.Close()

	return stats, nil
}

// All returns every stored conversion, oldest first. Used by export tools.
func (d *DB) All() ([]Conversion, error) {
	rows, err := d.db.Query(`SELECT id, created_at, reference_date, reservation_code, flight_number,
			travel_date, origin, destination, has_arrival, raw_text, output_text, itinerary_json
			FROM conversions ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query conversions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var conversions []Conversion
	for rows.Next() {
		c, err := scanConversion(rows)
		if err != nil {
			return nil, err
		}
		conversions = append(conversions, c)
	}
	return conversions, rows.Err()
}
