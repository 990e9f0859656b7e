package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
)

const envPrefix = "POWERVEND_"

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
)

type Config struct {
	Primary  Primary        `koanf:"primary"`
	Server   ServerConfig   `koanf:"server"`
	Store    StoreConfig    `koanf:"store"`
	Database DatabaseConfig `koanf:"database"`
	Mongo    MongoConfig    `koanf:"mongo"`
	Paystack PaystackConfig `koanf:"paystack"`
	Retry    RetryConfig    `koanf:"retry"`
	Token    TokenConfig    `koanf:"token"`
	Logger   LoggerConfig   `koanf:"logger"`
	Worker   WorkerConfig   `koanf:"worker"`
	NATS     NATSConfig     `koanf:"nats"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port           string        `koanf:"port" validate:"required"`
	ReadTimeout    time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout   time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout    time.Duration `koanf:"idle_timeout" validate:"required"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"required"`
}

// StoreConfig selects which record store backs payments and tokens.
type StoreConfig struct {
	Driver string `koanf:"driver" validate:"required,oneof=postgres mongo"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	Name            string        `koanf:"name"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

type MongoConfig struct {
	URI            string        `koanf:"uri"`
	Database       string        `koanf:"database"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	MaxPoolSize    uint64        `koanf:"max_pool_size"`
}

type PaystackConfig struct {
	BaseURL     string        `koanf:"base_url" validate:"required,url"`
	SecretKey   string        `koanf:"secret_key" validate:"required"`
	CallbackURL string        `koanf:"callback_url"`
	Currency    string        `koanf:"currency" validate:"required,len=3"`
	Timeout     time.Duration `koanf:"timeout" validate:"required"`
}

type RetryConfig struct {
	BaseDelay  time.Duration `koanf:"base_delay"`
	MaxDelay   time.Duration `koanf:"max_delay"`
	MaxRetries int           `koanf:"max_retries" validate:"gte=1"`
}

// TokenConfig governs token issuance. RatePerUnit is the price of one unit
// in major currency units.
type TokenConfig struct {
	RatePerUnit string        `koanf:"rate_per_unit" validate:"required"`
	Validity    time.Duration `koanf:"validity" validate:"required"`
	Length      int           `koanf:"length" validate:"gte=8,lte=32"`
	MaxAttempts int           `koanf:"max_attempts" validate:"gte=1"`
}

type LoggerConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type WorkerConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Interval   time.Duration `koanf:"interval" validate:"required"`
	BatchSize  int           `koanf:"batch_size" validate:"required"`
	StaleAfter time.Duration `koanf:"stale_after" validate:"required"`
}

type NATSConfig struct {
	Enabled       bool          `koanf:"enabled"`
	URL           string        `koanf:"url"`
	Name          string        `koanf:"name"`
	Stream        string        `koanf:"stream"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
}

func defaults() map[string]any {
	return map[string]any{
		"primary.env":                 "development",
		"server.port":                 "8080",
		"server.read_timeout":         "15s",
		"server.write_timeout":        "30s",
		"server.idle_timeout":         "60s",
		"server.request_timeout":      "25s",
		"store.driver":                StoreDriverPostgres,
		"database.ssl_mode":           "disable",
		"database.max_open_conns":     10,
		"database.max_idle_conns":     2,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.auto_migrate":       true,
		"mongo.database":              "powervend",
		"mongo.connect_timeout":       "10s",
		"mongo.max_pool_size":         50,
		"paystack.base_url":           "https://api.paystack.co",
		"paystack.currency":           "NGN",
		"paystack.timeout":            "10s",
		"retry.base_delay":            "200ms",
		"retry.max_delay":             "5s",
		"retry.max_retries":           3,
		"token.rate_per_unit":         "55",
		"token.validity":              "72h",
		"token.length":                20,
		"token.max_attempts":          5,
		"logger.level":                "info",
		"logger.format":               "text",
		"worker.enabled":              true,
		"worker.interval":             "1m",
		"worker.batch_size":           50,
		"worker.stale_after":          "10m",
		"nats.name":                   "powervend",
		"nats.stream":                 "POWERVEND",
		"nats.max_reconnects":         10,
		"nats.reconnect_wait":         "2s",
	}
}

// LoadConfig reads POWERVEND_* environment variables (and a .env file when
// present) on top of built-in defaults. Nested keys use a double underscore,
// e.g. POWERVEND_DATABASE__HOST.
func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		logger.Error("failed to load defaults", "error", err)
		return nil, err
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, envPrefix)),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	if err := mainConfig.Validate(); err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}

// Validate checks struct tags and the settings that depend on the selected
// store driver.
func (c *Config) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c); err != nil {
		return err
	}

	switch c.Store.Driver {
	case StoreDriverPostgres:
		if err := c.Database.validate(); err != nil {
			return err
		}
	case StoreDriverMongo:
		if err := c.Mongo.validate(); err != nil {
			return err
		}
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return &FieldError{Field: "nats.url", Reason: "required when nats is enabled"}
	}

	if _, err := c.Token.Rate(); err != nil {
		return err
	}

	return nil
}
