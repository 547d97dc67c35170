package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ClickHouseDB wraps a ClickHouse connection for conversion analytics.
type ClickHouseDB struct {
	conn driver.Conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the ClickHouse tables.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS conversion_events (
		timestamp       DateTime64(3),
		layout          LowCardinality(String),
		flight_number   LowCardinality(String),
		origin          LowCardinality(String),
		destination     LowCardinality(String),
		travel_date     String,
		has_arrival     UInt8,
		has_reservation UInt8,
		input_bytes     UInt32,
		output_bytes    UInt32
	)
	ENGINE = MergeTree()
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (origin, destination, timestamp)
	SETTINGS index_granularity = 8192`

	if err := d.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("create conversion_events: %w", err)
	}
	return nil
}

// ConversionEvent is one analytics row describing a completed conversion.
type ConversionEvent struct {
	Timestamp      time.Time
	Layout         string
	FlightNumber   string
	Origin         string
	Destination    string
	TravelDate     string
	HasArrival     bool
	HasReservation bool
	InputBytes     uint32
	OutputBytes    uint32
}

// InsertEvents stores a batch of conversion events.
func (d *ClickHouseDB) InsertEvents(ctx context.Context, events []ConversionEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, `INSERT INTO conversion_events
		(timestamp, layout, flight_number, origin, destination, travel_date, has_arrival, has_reservation, input_bytes, output_bytes)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		hasArrival := uint8(0)
		if e.HasArrival {
			hasArrival = 1
		}
		hasReservation := uint8(0)
		if e.HasReservation {
			hasReservation = 1
		}
		if err := batch.Append(e.Timestamp, e.Layout, e.FlightNumber, e.Origin, e.Destination,
			e.TravelDate, hasArrival, hasReservation, e.InputBytes, e.OutputBytes); err != nil {
			return fmt.Errorf("append event: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// RouteCount is an aggregate of conversions per route.
type RouteCount struct {
	Origin      string
	Destination string
	Count       uint64
}

// TopRoutes returns the most frequently converted routes.
func (d *ClickHouseDB) TopRoutes(ctx context.Context, limit int) ([]RouteCount, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := d.conn.Query(ctx, `
		SELECT origin, destination, count() AS c
		FROM conversion_events
		GROUP BY origin, destination
		ORDER BY c DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top routes: %w", err)
	}
	defer rows.Close()

	var routes []RouteCount
	for rows.Next() {
		var r RouteCount
		if err := rows.Scan(&r.Origin, &r.Destination, &r.Count); err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}
