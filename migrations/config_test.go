package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://migrator:secret@db:5432/seqtrack?sslmode=disable")
	t.Setenv("MIGRATION_TABLE", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres://migrator:secret@db:5432/seqtrack?sslmode=disable", cfg.DatabaseURL)
	assert.Equal(t, "schema_migrations", cfg.MigrationTable)

	t.Setenv("MIGRATION_TABLE", "seqtrack_migrations")

	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "seqtrack_migrations", cfg.MigrationTable)
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := LoadConfig()
	assert.ErrorIs(t, err, ErrDatabaseURLEmpty)
}

func TestRedactedURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "password masked",
			url:  "postgres://migrator:secret@db:5432/seqtrack",
			want: "postgres://migrator:xxxxx@db:5432/seqtrack",
		},
		{
			name: "no credentials untouched",
			url:  "postgres://db:5432/seqtrack",
			want: "postgres://db:5432/seqtrack",
		},
		{
			name: "username without password untouched",
			url:  "postgres://migrator@db:5432/seqtrack",
			want: "postgres://migrator@db:5432/seqtrack",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{DatabaseURL: tt.url}
			assert.Equal(t, tt.want, cfg.RedactedURL())
		})
	}
}
