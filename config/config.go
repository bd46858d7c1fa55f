// Package config loads runtime configuration from the environment.
//
// A .env file in the working directory is honored when present
// (development convenience); real deployments set the variables directly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/willowysolutions/kanza-accounts-sub002/ledger"
)

// Driver selects the backing store.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverMemory   Driver = "memory"
)

type Config struct {
	Port             int
	Driver           Driver
	SQLitePath       string
	DatabaseURL      string
	KafkaBrokers     []string
	DayOffsetMinutes int
}

// Load reads configuration from the environment, after loading .env if one
// exists. Missing values fall back to development defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:             8080,
		Driver:           DriverSQLite,
		SQLitePath:       "kanza.db",
		DayOffsetMinutes: ledger.IndiaOffsetMinutes,
	}

	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = p
	}

	switch d := Driver(os.Getenv("DB_DRIVER")); d {
	case "", DriverSQLite:
		cfg.Driver = DriverSQLite
	case DriverPostgres, DriverMemory:
		cfg.Driver = d
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", d)
	}

	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.SQLitePath = v
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.Driver == DriverPostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL required for postgres driver")
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = splitCSV(v)
	}

	if v := os.Getenv("DAY_OFFSET_MINUTES"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid DAY_OFFSET_MINUTES %q: %w", v, err)
		}
		cfg.DayOffsetMinutes = m
	}

	return cfg, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
