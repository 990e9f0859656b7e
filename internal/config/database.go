package config

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FieldError reports a configuration value that struct tags cannot express.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func (c *DatabaseConfig) validate() error {
	switch {
	case c.Host == "":
		return &FieldError{Field: "database.host", Reason: "required for the postgres store"}
	case c.Port == 0:
		return &FieldError{Field: "database.port", Reason: "required for the postgres store"}
	case c.User == "":
		return &FieldError{Field: "database.user", Reason: "required for the postgres store"}
	case c.Name == "":
		return &FieldError{Field: "database.name", Reason: "required for the postgres store"}
	}
	return nil
}

func (c *DatabaseConfig) connString(scheme string) string {
	u := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

// PgxConfig creates and returns a pgxpool.Config with the database connection settings from the DatabaseConfig.
func (c *DatabaseConfig) PgxConfig(ctx context.Context) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(c.connString("postgres"))
	if err != nil {
		return nil, err
	}

	cfg.MaxConns = int32(c.MaxOpenConns)
	cfg.MinConns = int32(c.MaxIdleConns)
	cfg.MaxConnLifetime = c.ConnMaxLifetime
	cfg.MaxConnIdleTime = c.ConnMaxIdleTime
	cfg.HealthCheckPeriod = 30 * time.Second

	return cfg, nil
}

// MigrationURL is the connection string understood by the migrate pgx/v5 driver.
func (c *DatabaseConfig) MigrationURL() string {
	return c.connString("pgx5")
}

func (c *MongoConfig) validate() error {
	if c.URI == "" {
		return &FieldError{Field: "mongo.uri", Reason: "required for the mongo store"}
	}
	if c.Database == "" {
		return &FieldError{Field: "mongo.database", Reason: "required for the mongo store"}
	}
	return nil
}

// ClientOptions builds mongo driver options from the MongoConfig.
func (c *MongoConfig) ClientOptions() *options.ClientOptions {
	opts := options.Client().ApplyURI(c.URI)
	if c.ConnectTimeout > 0 {
		opts.SetConnectTimeout(c.ConnectTimeout)
		opts.SetServerSelectionTimeout(c.ConnectTimeout)
	}
	if c.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(c.MaxPoolSize)
	}
	return opts
}
