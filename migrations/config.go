package main

import (
	"errors"
	"net/url"

	"github.com/seqtrack-io/seqtrack/internal/config"
)

// ErrDatabaseURLEmpty is returned when DATABASE_URL is not set.
var ErrDatabaseURLEmpty = errors.New("DATABASE_URL cannot be empty")

// Config holds the migrator's settings, read from the environment.
type Config struct {
	DatabaseURL    string
	MigrationTable string
}

func LoadConfig() (*Config, error) {
	c := &Config{
		DatabaseURL:    config.GetEnvStr("DATABASE_URL", ""),
		MigrationTable: config.GetEnvStr("MIGRATION_TABLE", "schema_migrations"),
	}

	if c.DatabaseURL == "" {
		return nil, ErrDatabaseURLEmpty
	}

	return c, nil
}

// RedactedURL returns the connection string with the password masked, safe
// for logging.
func (c *Config) RedactedURL() string {
	u, err := url.Parse(c.DatabaseURL)
	if err != nil {
		return "<unparseable database url>"
	}

	return u.Redacted()
}
