package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 8080
  public_base_url: https://example.test
database:
  host: localhost
  port: 5432
  user: tryon
  password: secret
  dbname: tryon
  sslmode: disable
rate_limit:
  max_daily_requests: 10
  window_hours: 1
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://example.test", cfg.Server.PublicBaseURL)
	assert.Equal(t, 10, cfg.RateLimit.MaxDailyRequests)
	assert.Equal(t, time.Hour, cfg.RateLimit.Window())
	assert.Equal(t, "host=localhost port=5432 user=tryon password=secret dbname=tryon sslmode=disable",
		cfg.Database.DSN())
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.RateLimit.MaxDailyRequests)
	assert.Equal(t, 24*time.Hour, cfg.RateLimit.Window())
	assert.Equal(t, 2*time.Minute, cfg.TryOn.Timeout())
	assert.Equal(t, "A cool description of the garment", cfg.TryOn.GarmentDescription)
	assert.Equal(t, 30, cfg.TryOn.DenoiseSteps)
	assert.Equal(t, 42, cfg.TryOn.Seed)
	assert.Equal(t, "whatsapp:+14155238886", cfg.Twilio.WhatsAppFrom)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "AC-from-env")
	t.Setenv("JWT_SECRET", "env-secret")

	path := writeConfig(t, `
twilio:
  account_sid: AC-from-file
jwt:
  secret: file-secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "AC-from-env", cfg.Twilio.AccountSID)
	assert.Equal(t, "env-secret", cfg.JWT.Secret)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
