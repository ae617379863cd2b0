package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, 15*time.Minute, cfg.S3.ExportExpiry)
	assert.False(t, cfg.S3.Enabled())
	assert.Equal(t, EventsDriverInline, cfg.Events.Driver)
	assert.Equal(t, 5, cfg.Booking.TxMaxAttempts)
	assert.Equal(t, 20*time.Millisecond, cfg.Booking.TxRetryDelay)
	assert.Equal(t, "*/15 * * * *", cfg.Sweeper.Schedule)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  address: ":9090"
jwt:
  secret: from-file
  expiration: 30m
s3:
  bucket_name: exports
sweeper:
  schedule: "0 * * * *"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("BOOKING_TX_RETRY_DELAY", "50ms")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "from-env", cfg.JWT.Secret, "environment wins over file")
	assert.Equal(t, 30*time.Minute, cfg.JWT.Expiration)
	assert.True(t, cfg.S3.Enabled())
	assert.Equal(t, "0 * * * *", cfg.Sweeper.Schedule)
	assert.Equal(t, 50*time.Millisecond, cfg.Booking.TxRetryDelay)
}

func TestLoadConfig_RejectsUnknownEventsDriver(t *testing.T) {
	t.Setenv("EVENTS_DRIVER", "kafka")
	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}

func TestValidate_RateLimitNeedsRedis(t *testing.T) {
	cfg := Config{
		Events:    EventsConfig{Driver: EventsDriverInline},
		Booking:   BookingConfig{TxMaxAttempts: 1},
		RateLimit: RateLimitConfig{Enabled: true, Capacity: 5, RefillTokens: 1, RefillInterval: time.Second, KeyStrategy: "user"},
	}
	assert.Error(t, cfg.Validate())

	cfg.Redis.Addr = "localhost:6379"
	assert.NoError(t, cfg.Validate())

	cfg.RateLimit.KeyStrategy = "cookie"
	assert.Error(t, cfg.Validate())
}
