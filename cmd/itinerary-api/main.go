// Command itinerary-api runs the REST API server around the itinerary
// conversion core.
//
// Conversions are persisted to PostgreSQL; completed conversions can be
// published to NATS and mirrored into ClickHouse for analytics. All
// settings come from environment variables (a .env file is honoured):
//
//	ITINERARY_PORT        HTTP port (default: 8082)
//	ITINERARY_AUTH        Enable API key authentication
//	ITINERARY_API_KEYS    Comma-separated list of valid API keys
//	AIRPORTS_DATASET      Path to the region-grouped airport dataset JSON
//	POSTGRES_HOST/PORT/DATABASE/USER/PASSWORD
//	NATS_URL              Publish conversion events when set
//	CLICKHOUSE_ENABLED    Mirror conversion events into ClickHouse
//	CLICKHOUSE_HOST/PORT/DATABASE/USER/PASSWORD
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"itinerary_parser/internal/airports"
	"itinerary_parser/internal/api"
	"itinerary_parser/internal/config"
	"itinerary_parser/internal/publish"
	"itinerary_parser/internal/storage"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Airport directory: dataset load failure is not fatal, the
	// embedded fallback table still resolves common codes.
	dir := airports.NewDirectory()
	if cfg.AirportsPath != "" {
		if err := dir.Reload(cfg.AirportsPath); err != nil {
			log.Printf("airport dataset not loaded, using fallback table: %v", err)
		} else {
			log.Printf("airport dataset loaded: %d airports", dir.Len())
		}
	}

	pg, err := storage.OpenPostgres(ctx, storage.PostgresConfig{
		Host:     cfg.PGHost,
		Port:     cfg.PGPort,
		Database: cfg.PGDatabase,
		User:     cfg.PGUser,
		Password: cfg.PGPassword,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening PostgreSQL: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	if err := pg.CreateSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating schema: %v\n", err)
		os.Exit(1)
	}

	var pub api.EventPublisher
	if cfg.NatsURL != "" {
		p, err := publish.Connect(cfg.NatsURL, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error connecting to NATS: %v\n", err)
			os.Exit(1)
		}
		defer p.Close()
		pub = p
	}

	var sink api.AnalyticsSink
	if cfg.ClickHouseEnabled {
		ch, err := storage.OpenClickHouse(ctx, storage.ClickHouseConfig{
			Host:     cfg.ClickHouseHost,
			Port:     cfg.ClickHousePort,
			Database: cfg.ClickHouseDatabase,
			User:     cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening ClickHouse: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = ch.Close() }()

		if err := ch.CreateSchema(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating ClickHouse schema: %v\n", err)
			os.Exit(1)
		}
		sink = ch
	}

	var keys []string
	if cfg.APIKeys != "" {
		keys = strings.Split(cfg.APIKeys, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
	}

	server := api.NewServer(pg, dir, pub, sink, api.Config{
		Port:        cfg.Port,
		AuthEnabled: cfg.AuthEnabled,
		APIKeys:     keys,
		DatasetPath: cfg.AirportsPath,
	})

	if err := server.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
