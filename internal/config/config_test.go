package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("USE_MEMORY_STORE", "true")
	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("TWILIO_WHATSAPP_FROM", "whatsapp:+14155238886")
	t.Setenv("SESSION_IDLE_TIMEOUT", "2h")
	t.Setenv("CHANNEL_PROVIDER", "CloudAPI")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.UseMemoryStore)
	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.WebhookValidation())
	assert.Equal(t, "whatsapp:+14155238886", cfg.Twilio.WhatsAppFrom)
	assert.Equal(t, 2*time.Hour, cfg.SessionIdleTimeout)
	assert.Equal(t, ProviderCloudAPI, cfg.Channel.Provider)
	assert.Equal(t, 10*time.Second, cfg.Lead.Timeout)
	assert.Equal(t, 40, cfg.Routing.BootstrapMinLength)
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "7000"
use_memory_store: true
channel:
  provider: log
routing:
  human: ["live agent", "person"]
  bootstrap_min_length: 25
lead:
  webhook_url: https://leads.example.com/hook
`), 0o600))

	t.Setenv("PORT", "7100")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DISABLE_WEBHOOK_VALIDATION", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7100", cfg.Port)
	assert.Equal(t, ProviderLog, cfg.Channel.Provider)
	assert.Equal(t, []string{"live agent", "person"}, cfg.Routing.Human)
	assert.Equal(t, 25, cfg.Routing.BootstrapMinLength)
	assert.Equal(t, "https://leads.example.com/hook", cfg.Lead.WebhookURL)
	assert.True(t, cfg.WebhookValidation())
}

func TestLoadRejectsBadSettings(t *testing.T) {
	t.Setenv("USE_MEMORY_STORE", "true")
	t.Setenv("CHANNEL_PROVIDER", "carrier-pigeon")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("CHANNEL_PROVIDER", "log")
	t.Setenv("USE_MEMORY_STORE", "false")
	t.Setenv("DB_NAME", "")
	_, err = Load("")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
