package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// PostgresDB wraps a PostgreSQL connection pool backing the REST API.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() {
	d.pool.Close()
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversions (
		id                  UUID PRIMARY KEY,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		reference_date      DATE NOT NULL,
		reservation_code    TEXT,
		flight_number       TEXT,
		travel_date         TEXT,
		origin              TEXT,
		destination         TEXT,
		has_arrival         BOOLEAN NOT NULL DEFAULT FALSE,
		raw_text            TEXT NOT NULL,
		output_text         TEXT NOT NULL,
		itinerary_json      JSONB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_conversions_created ON conversions(created_at);
	CREATE INDEX IF NOT EXISTS idx_conversions_flight ON conversions(flight_number);
	CREATE INDEX IF NOT EXISTS idx_conversions_route ON conversions(origin, destination);
	`

	if _, err := d.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// ConversionRecord is one conversion row as stored by the API.
type ConversionRecord struct {
	ID              uuid.UUID `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	ReferenceDate   time.Time `json:"reference_date"`
	ReservationCode string    `json:"reservation_code,omitempty"`
	FlightNumber    string    `json:"flight_number,omitempty"`
	TravelDate      string    `json:"travel_date,omitempty"`
	Origin          string    `json:"origin,omitempty"`
	Destination     string    `json:"destination,omitempty"`
	HasArrival      bool      `json:"has_arrival"`
	RawText         string    `json:"raw_text"`
	OutputText      string    `json:"output_text"`
	ItineraryJSON   []byte    `json:"-"`
}

// InsertConversion stores a conversion and returns its generated ID.
func (d *PostgresDB) InsertConversion(ctx context.Context, rec *ConversionRecord) (uuid.UUID, error) {
	id := uuid.New()
	_, err := d.pool.Exec(ctx, `
		INSERT INTO conversions (id, reference_date, reservation_code, flight_number, travel_date, origin, destination, has_arrival, raw_text, output_text, itinerary_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, id, rec.ReferenceDate, rec.ReservationCode, rec.FlightNumber, rec.TravelDate,
		rec.Origin, rec.Destination, rec.HasArrival, rec.RawText, rec.OutputText, rec.ItineraryJSON)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert conversion: %w", err)
	}
	return id, nil
}

// ListConversions returns the most recent conversions, newest first.
func (d *PostgresDB) ListConversions(ctx context.Context, limit int) ([]ConversionRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := d.pool.Query(ctx, `
		SELECT id, created_at, reference_date, reservation_code, flight_number, travel_date,
		       origin, destination, has_arrival, raw_text, output_text, itinerary_json
		FROM conversions
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversions: %w", err)
	}
	defer rows.Close()

	var records []ConversionRecord
	for rows.Next() {
		rec, err := scanConversionRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetConversion retrieves a conversion by ID, or nil if absent.
func (d *PostgresDB) GetConversion(ctx context.Context, id uuid.UUID) (*ConversionRecord, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, created_at, reference_date, reservation_code, flight_number, travel_date,
		       origin, destination, has_arrival, raw_text, output_text, itinerary_json
		FROM conversions
		WHERE id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get conversion: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, nil
	}
	rec, err := scanConversionRecord(rows)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanConversionRecord(rows pgx.Rows) (ConversionRecord, error) {
	var rec ConversionRecord
	var reservationCode, flightNumber, travelDate, origin, destination *string

	err := rows.Scan(&rec.ID, &rec.CreatedAt, &rec.ReferenceDate, &reservationCode, &flightNumber,
		&travelDate, &origin, &destination, &rec.HasArrival, &rec.RawText, &rec.OutputText, &rec.ItineraryJSON)
	if err != nil {
		return ConversionRecord{}, fmt.Errorf("scan conversion: %w", err)
	}

	if reservationCode != nil {
		rec.ReservationCode = *reservationCode
	}
	if flightNumber != nil {
		rec.FlightNumber = *flightNumber
	}
	if travelDate != nil {
		rec.TravelDate = *travelDate
	}
	if origin != nil {
		rec.Origin = *origin
	}
	if destination != nil {
		rec.Destination = *destination
	}
	return rec, nil
}
