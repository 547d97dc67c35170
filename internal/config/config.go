// Package config loads server configuration from the environment, with
// optional .env file support.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the itinerary API server configuration.
type Config struct {
	Port         int
	AuthEnabled  bool
	APIKeys      string
	AirportsPath string

	PGHost     string
	PGPort     int
	PGDatabase string
	PGUser     string
	PGPassword string

	NatsURL string

	ClickHouseEnabled  bool
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present; real environment
// variables win over it.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:         envInt("ITINERARY_PORT", 8082),
		AuthEnabled:  envBool("ITINERARY_AUTH", false),
		APIKeys:      envStr("ITINERARY_API_KEYS", ""),
		AirportsPath: envStr("AIRPORTS_DATASET", "world_airports_by_region.json"),

		PGHost:     envStr("POSTGRES_HOST", "localhost"),
		PGPort:     envInt("POSTGRES_PORT", 5432),
		PGDatabase: envStr("POSTGRES_DATABASE", "itinerary"),
		PGUser:     envStr("POSTGRES_USER", "itinerary"),
		PGPassword: envStr("POSTGRES_PASSWORD", "itinerary"),

		NatsURL: envStr("NATS_URL", ""),

		ClickHouseEnabled:  envBool("CLICKHOUSE_ENABLED", false),
		ClickHouseHost:     envStr("CLICKHOUSE_HOST", "localhost"),
		ClickHousePort:     envInt("CLICKHOUSE_PORT", 9000),
		ClickHouseDatabase: envStr("CLICKHOUSE_DATABASE", "itinerary"),
		ClickHouseUser:     envStr("CLICKHOUSE_USER", "default"),
		ClickHousePassword: envStr("CLICKHOUSE_PASSWORD", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
