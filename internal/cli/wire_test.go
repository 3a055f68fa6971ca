package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/intake-backend/internal/config"
	"github.com/Ananth-NQI/intake-backend/internal/metrics"
	"github.com/Ananth-NQI/intake-backend/internal/models"
	"github.com/Ananth-NQI/intake-backend/internal/questions"
	"github.com/Ananth-NQI/intake-backend/internal/services"
	"github.com/Ananth-NQI/intake-backend/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewGatewayPerProvider(t *testing.T) {
	log := quietLogger()

	gw, err := newGateway(&config.Config{Channel: config.ChannelConfig{Provider: config.ProviderLog}}, log)
	require.NoError(t, err)
	assert.Equal(t, "log", gw.Name())

	gw, err = newGateway(&config.Config{
		Channel:  config.ChannelConfig{Provider: config.ProviderCloudAPI},
		CloudAPI: config.CloudAPIConfig{PhoneNumberID: "123", AccessToken: "token"},
	}, log)
	require.NoError(t, err)
	assert.Equal(t, "cloudapi", gw.Name())

	gw, err = newGateway(&config.Config{
		Channel: config.ChannelConfig{Provider: config.ProviderTwilio},
		Twilio:  config.TwilioConfig{AccountSID: "AC1", AuthToken: "secret", WhatsAppFrom: "+14155238886"},
	}, log)
	require.NoError(t, err)
	assert.Equal(t, "twilio", gw.Name())

	_, err = newGateway(&config.Config{Channel: config.ChannelConfig{Provider: config.ProviderTwilio}}, log)
	assert.Error(t, err)
}

func TestNewNotifier(t *testing.T) {
	log := quietLogger()

	_, isLog := newNotifier(&config.Config{}, log).(*services.LogLeadNotifier)
	assert.True(t, isLog)

	_, isWebhook := newNotifier(&config.Config{Lead: config.LeadConfig{WebhookURL: "https://leads.example.com"}}, log).(*services.WebhookLeadNotifier)
	assert.True(t, isWebhook)
}

func TestLoadBank(t *testing.T) {
	bank, err := loadBank("")
	require.NoError(t, err)
	assert.Equal(t, 8, bank.Len())

	_, err = loadBank(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "questions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
questions:
  - id: project_name
    ordinal: 0
    type: free_text
    prompt: What is your project called?
`), 0o600))
	_, err = loadBank(path)
	assert.ErrorIs(t, err, questions.ErrInvalidCatalog)
}

func TestBuildEngineRoutesWithConfiguredTriggers(t *testing.T) {
	store := storage.NewMemoryStore()
	cfg := &config.Config{Routing: config.RoutingConfig{Human: []string{"live agent"}}}
	gateway := services.NewLogGateway(quietLogger())
	bank, err := loadBank("")
	require.NoError(t, err)

	eng, err := buildEngine(cfg, store, bank, gateway, services.NewLogLeadNotifier(quietLogger()), nil,
		metrics.NewRecorder(prometheus.NewRegistry()), quietLogger())
	require.NoError(t, err)

	res, err := eng.conversations.HandleInbound(context.Background(), models.InboundMessage{
		From: "+15550001111", Type: "text", Body: "live agent please", ChannelMessageID: "m1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.FlowHuman, res.Flow)

	s, err := eng.operators.Takeover(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.True(t, s.OperatorActive)
}
