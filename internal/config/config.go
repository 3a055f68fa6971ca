// Package config loads service settings from the environment, .env files and an optional YAML file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Channel providers
const (
	ProviderTwilio   = "twilio"
	ProviderCloudAPI = "cloudapi"
	ProviderLog      = "log"
)

type Config struct {
	Environment              string        `mapstructure:"environment"`
	Port                     string        `mapstructure:"port"`
	LogLevel                 string        `mapstructure:"log_level"`
	UseMemoryStore           bool          `mapstructure:"use_memory_store"`
	DisableWebhookValidation bool          `mapstructure:"disable_webhook_validation"`
	PublicURL                string        `mapstructure:"public_url"`
	OperatorPhone            string        `mapstructure:"operator_phone"`
	AdminToken               string        `mapstructure:"admin_token"`
	SessionIdleTimeout       time.Duration `mapstructure:"session_idle_timeout"`
	QuestionsFile            string        `mapstructure:"questions_file"`

	Database DatabaseConfig `mapstructure:"database"`
	Channel  ChannelConfig  `mapstructure:"channel"`
	Twilio   TwilioConfig   `mapstructure:"twilio"`
	CloudAPI CloudAPIConfig `mapstructure:"cloudapi"`
	Lead     LeadConfig     `mapstructure:"lead"`
	Routing  RoutingConfig  `mapstructure:"routing"`
}

type DatabaseConfig struct {
	User                   string `mapstructure:"user"`
	Password               string `mapstructure:"password"`
	Name                   string `mapstructure:"name"`
	Host                   string `mapstructure:"host"`
	Port                   string `mapstructure:"port"`
	InstanceConnectionName string `mapstructure:"instance_connection_name"`
	SSLMode                string `mapstructure:"sslmode"`
	ConnectAttempts        int    `mapstructure:"connect_attempts"`
}

type ChannelConfig struct {
	Provider string `mapstructure:"provider"`
}

type TwilioConfig struct {
	AccountSID       string `mapstructure:"account_sid"`
	AuthToken        string `mapstructure:"auth_token"`
	WhatsAppFrom     string `mapstructure:"whatsapp_from"`
	ButtonContentSID string `mapstructure:"button_content_sid"`
	ListContentSID   string `mapstructure:"list_content_sid"`
}

type CloudAPIConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	APIVersion    string `mapstructure:"api_version"`
	PhoneNumberID string `mapstructure:"phone_number_id"`
	AccessToken   string `mapstructure:"access_token"`
	VerifyToken   string `mapstructure:"verify_token"`
}

type LeadConfig struct {
	WebhookURL        string        `mapstructure:"webhook_url"`
	WebhookToken      string        `mapstructure:"webhook_token"`
	Timeout           time.Duration `mapstructure:"timeout"`
	QueueDir          string        `mapstructure:"queue_dir"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
}

// RoutingConfig overrides the keyword tables. Empty lists keep the built-in defaults.
type RoutingConfig struct {
	Human              []string `mapstructure:"human"`
	Support            []string `mapstructure:"support"`
	HighTicket         []string `mapstructure:"high_ticket"`
	BootstrapKeywords  []string `mapstructure:"bootstrap_keywords"`
	BootstrapMinLength int      `mapstructure:"bootstrap_min_length"`
}

// envBindings maps config keys to the environment variables that set them
var envBindings = map[string]string{
	"environment":                       "ENVIRONMENT",
	"port":                              "PORT",
	"log_level":                         "LOG_LEVEL",
	"use_memory_store":                  "USE_MEMORY_STORE",
	"disable_webhook_validation":        "DISABLE_WEBHOOK_VALIDATION",
	"public_url":                        "PUBLIC_URL",
	"operator_phone":                    "OPERATOR_PHONE",
	"admin_token":                       "ADMIN_TOKEN",
	"session_idle_timeout":              "SESSION_IDLE_TIMEOUT",
	"questions_file":                    "QUESTIONS_FILE",
	"database.user":                     "DB_USER",
	"database.password":                 "DB_PASS",
	"database.name":                     "DB_NAME",
	"database.host":                     "DB_HOST",
	"database.port":                     "DB_PORT",
	"database.instance_connection_name": "INSTANCE_CONNECTION_NAME",
	"database.sslmode":                  "DB_SSLMODE",
	"channel.provider":                  "CHANNEL_PROVIDER",
	"twilio.account_sid":                "TWILIO_ACCOUNT_SID",
	"twilio.auth_token":                 "TWILIO_AUTH_TOKEN",
	"twilio.whatsapp_from":              "TWILIO_WHATSAPP_FROM",
	"twilio.button_content_sid":         "TWILIO_BUTTON_CONTENT_SID",
	"twilio.list_content_sid":           "TWILIO_LIST_CONTENT_SID",
	"cloudapi.phone_number_id":          "WHATSAPP_PHONE_NUMBER_ID",
	"cloudapi.access_token":             "WHATSAPP_ACCESS_TOKEN",
	"cloudapi.verify_token":             "WHATSAPP_VERIFY_TOKEN",
	"cloudapi.api_version":              "WHATSAPP_API_VERSION",
	"lead.webhook_url":                  "LEAD_WEBHOOK_URL",
	"lead.webhook_token":                "LEAD_WEBHOOK_TOKEN",
	"lead.queue_dir":                    "LEAD_QUEUE_DIR",
	"lead.reconcile_interval":           "LEAD_RECONCILE_INTERVAL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "production")
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("session_idle_timeout", "0s")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.connect_attempts", 5)
	v.SetDefault("channel.provider", ProviderTwilio)
	v.SetDefault("lead.timeout", "10s")
	v.SetDefault("lead.queue_dir", "data/leads")
	v.SetDefault("lead.reconcile_interval", "5m")
	v.SetDefault("routing.bootstrap_min_length", 40)
}

// LoadDotEnv loads .env for local development. On Cloud Run (INSTANCE_CONNECTION_NAME set) it does nothing.
func LoadDotEnv() {
	if os.Getenv("INSTANCE_CONNECTION_NAME") != "" {
		return
	}
	if err := godotenv.Load(".env"); err != nil {
		if err := godotenv.Load("environments/.env.development"); err != nil {
			slog.Warn("⚠️  No .env file found - checking environment variables")
		}
	}
}

// Load builds the configuration from defaults, the optional YAML file and the environment.
// Environment variables win over the file.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Channel.Provider = strings.ToLower(strings.TrimSpace(cfg.Channel.Provider))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail later at runtime
func (c *Config) Validate() error {
	switch c.Channel.Provider {
	case ProviderTwilio, ProviderCloudAPI, ProviderLog:
	default:
		return fmt.Errorf("unknown channel provider %q", c.Channel.Provider)
	}
	if c.SessionIdleTimeout < 0 {
		return fmt.Errorf("session idle timeout must not be negative")
	}
	if !c.UseMemoryStore && c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required unless USE_MEMORY_STORE=true")
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// WebhookValidation reports whether inbound webhook signatures are checked
func (c *Config) WebhookValidation() bool {
	return !c.IsDevelopment() && !c.DisableWebhookValidation
}
