package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// HardMaxAirtimeAmount is the per-transaction ceiling no configuration can raise.
const HardMaxAirtimeAmount int64 = 100000

const (
	// LycaEnvTest selects the reseller test endpoint.
	LycaEnvTest = "test"
	// LycaEnvProduction selects the reseller production endpoint.
	LycaEnvProduction = "production"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port                     string `yaml:"port" envconfig:"PORT"`
	PublicURL                string `yaml:"public_url" envconfig:"PUBLIC_URL"`
	DisableWebhookValidation bool   `yaml:"disable_webhook_validation" envconfig:"DISABLE_WEBHOOK_VALIDATION"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host                   string `yaml:"host" envconfig:"DB_HOST"`
	Port                   string `yaml:"port" envconfig:"DB_PORT"`
	User                   string `yaml:"user" envconfig:"DB_USER"`
	Password               string `yaml:"password" envconfig:"DB_PASS"`
	Name                   string `yaml:"name" envconfig:"DB_NAME" validate:"required"`
	SSLMode                string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	InstanceConnectionName string `yaml:"instance_connection_name" envconfig:"INSTANCE_CONNECTION_NAME"`
	AutoMigrate            bool   `yaml:"auto_migrate" envconfig:"DB_AUTO_MIGRATE"`
	MaxConnections         int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS" validate:"gte=1"`
	UseMemoryStore         bool   `yaml:"use_memory_store" envconfig:"USE_MEMORY_STORE"`
}

// RedisConfig configures the webhook de-duplication cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string        `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" envconfig:"REDIS_DB"`
	DedupTTL time.Duration `yaml:"dedup_ttl" envconfig:"REDIS_DEDUP_TTL"`
}

// TwilioConfig holds WhatsApp transport credentials.
type TwilioConfig struct {
	AccountSID   string `yaml:"account_sid" envconfig:"TWILIO_ACCOUNT_SID"`
	AuthToken    string `yaml:"auth_token" envconfig:"TWILIO_AUTH_TOKEN"`
	WhatsAppFrom string `yaml:"whatsapp_from" envconfig:"TWILIO_WHATSAPP_FROM"`
}

// Configured reports whether outbound messaging can be enabled.
func (t TwilioConfig) Configured() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.WhatsAppFrom != ""
}

// LycaConfig holds reseller API settings.
type LycaConfig struct {
	Environment   string        `yaml:"environment" envconfig:"LYCA_API_ENVIRONMENT"`
	TestURL       string        `yaml:"test_url" envconfig:"LYCA_API_TEST_URL" validate:"omitempty,url"`
	ProductionURL string        `yaml:"production_url" envconfig:"LYCA_API_PRODUCTION_URL" validate:"omitempty,url"`
	APIKey        string        `yaml:"api_key" envconfig:"LYCA_API_KEY" validate:"required"`
	MaxAttempts   int           `yaml:"max_attempts" envconfig:"LYCA_MAX_ATTEMPTS" validate:"gte=1"`
	RetryDelay    time.Duration `yaml:"retry_delay" envconfig:"LYCA_RETRY_DELAY"`
	Timeout       time.Duration `yaml:"timeout" envconfig:"LYCA_TIMEOUT"`
}

// BaseURL returns the endpoint for the selected API environment.
func (l LycaConfig) BaseURL() string {
	if l.Environment == LycaEnvProduction {
		return l.ProductionURL
	}
	return l.TestURL
}

// BotConfig holds conversation settings.
type BotConfig struct {
	Name               string        `yaml:"name" envconfig:"BOT_NAME"`
	SessionTTL         time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL"`
	SessionTimeout     int           `yaml:"session_timeout" envconfig:"SESSION_TIMEOUT"` // seconds, overrides SessionTTL
	MinAirtimeAmount   int64         `yaml:"min_airtime_amount" envconfig:"MIN_AIRTIME_AMOUNT" validate:"gte=1"`
	MaxAirtimeAmount   int64         `yaml:"max_airtime_amount" envconfig:"MAX_AIRTIME_AMOUNT"`
	MaxRechargePerHour int           `yaml:"max_recharge_per_hour" envconfig:"MAX_RECHARGE_PER_HOUR"`
	SupportEmail       string        `yaml:"support_email" envconfig:"ADMIN_EMAIL"`
	SupportPhone       string        `yaml:"support_phone" envconfig:"ADMIN_PHONE"`
	HistoryLimit       int           `yaml:"history_limit" envconfig:"HISTORY_LIMIT" validate:"gte=1"`
	SavedNumbersLimit  int           `yaml:"saved_numbers_limit" envconfig:"SAVED_NUMBERS_LIMIT" validate:"gte=1"`
}

// JobsConfig configures background work.
type JobsConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval" envconfig:"RECONCILE_INTERVAL"`
	ReconcileAfter    time.Duration `yaml:"reconcile_after" envconfig:"RECONCILE_AFTER"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
}

// Config aggregates all service settings. It is built once in main and injected.
type Config struct {
	Environment string         `yaml:"environment" envconfig:"ENVIRONMENT"`
	Server      ServerConfig   `yaml:"server"`
	Database    DatabaseConfig `yaml:"database"`
	Redis       RedisConfig    `yaml:"redis"`
	Twilio      TwilioConfig   `yaml:"twilio"`
	Lyca        LycaConfig     `yaml:"lyca"`
	Bot         BotConfig      `yaml:"bot"`
	Jobs        JobsConfig     `yaml:"jobs"`
	Logging     LoggingConfig  `yaml:"logging"`
}

// Default returns a configuration populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: "8080",
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           "5432",
			User:           "postgres",
			Name:           "lycapay_bot",
			SSLMode:        "disable",
			MaxConnections: 10,
		},
		Redis: RedisConfig{
			DedupTTL: 10 * time.Minute,
		},
		Lyca: LycaConfig{
			Environment: LycaEnvTest,
			MaxAttempts: 3,
			RetryDelay:  2 * time.Second,
			Timeout:     30 * time.Second,
		},
		Bot: BotConfig{
			Name:               "LycaPay",
			SessionTTL:         30 * time.Minute,
			MinAirtimeAmount:   500,
			MaxAirtimeAmount:   HardMaxAirtimeAmount,
			MaxRechargePerHour: 2,
			HistoryLimit:       10,
			SavedNumbersLimit:  5,
		},
		Jobs: JobsConfig{
			ReconcileInterval: 5 * time.Minute,
			ReconcileAfter:    10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, a .env file and
// the process environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse YAML config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// .env only fills variables that are not already set
	_ = godotenv.Load()

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize validates required fields and adjusts derived values.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	env := strings.ToLower(strings.TrimSpace(cfg.Lyca.Environment))
	switch env {
	case "", "dev", "development", LycaEnvTest:
		env = LycaEnvTest
	case "prod", LycaEnvProduction:
		env = LycaEnvProduction
	default:
		return fmt.Errorf("invalid lyca.environment %q; allowed: test, production", cfg.Lyca.Environment)
	}
	cfg.Lyca.Environment = env

	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if strings.TrimSpace(cfg.Lyca.BaseURL()) == "" {
		return fmt.Errorf("lyca %s URL is required", env)
	}

	if cfg.Bot.MaxAirtimeAmount <= 0 || cfg.Bot.MaxAirtimeAmount > HardMaxAirtimeAmount {
		cfg.Bot.MaxAirtimeAmount = HardMaxAirtimeAmount
	}
	if cfg.Bot.MinAirtimeAmount > cfg.Bot.MaxAirtimeAmount {
		return fmt.Errorf("bot.min_airtime_amount (%d) exceeds max (%d)", cfg.Bot.MinAirtimeAmount, cfg.Bot.MaxAirtimeAmount)
	}
	if cfg.Bot.SessionTimeout > 0 {
		cfg.Bot.SessionTTL = time.Duration(cfg.Bot.SessionTimeout) * time.Second
	}
	if cfg.Bot.SessionTTL <= 0 {
		cfg.Bot.SessionTTL = 30 * time.Minute
	}
	if cfg.Lyca.RetryDelay < 0 {
		cfg.Lyca.RetryDelay = 0
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
