package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://seqtrack:secret@db:5432/seqtrack")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "50")
	t.Setenv("DATABASE_CONN_MAX_LIFETIME", "1h")

	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 50, cfg.MaxOpenConns)
	assert.Equal(t, defaultMaxIdleConns, cfg.MaxIdleConns)
	assert.Equal(t, time.Hour, cfg.ConnMaxLifetime)
}

func TestConfigValidateRequiresURL(t *testing.T) {
	t.Setenv("DATABASE_URL", " ")

	cfg := LoadConfig()
	assert.ErrorIs(t, cfg.Validate(), ErrDatabaseURLEmpty)
}

func TestMaskDatabaseURL(t *testing.T) {
	cfg := &Config{databaseURL: "postgres://seqtrack:secret@db:5432/seqtrack?sslmode=disable"}
	assert.Equal(t, "postgres://seqtrack:xxxxx@db:5432/seqtrack?sslmode=disable", cfg.MaskDatabaseURL())

	cfg = &Config{databaseURL: "postgres://db:5432/seqtrack"}
	assert.Equal(t, "postgres://db:5432/seqtrack", cfg.MaskDatabaseURL())

	cfg = &Config{}
	assert.Empty(t, cfg.MaskDatabaseURL())
}
