package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// NewLogger builds the process logger from the configured level and format.
func (c LoggerConfig) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.level()}

	var handler slog.Handler
	if strings.EqualFold(c.Format, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func (c LoggerConfig) level() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Rate parses RatePerUnit. It must be a positive decimal.
func (c TokenConfig) Rate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.RatePerUnit)
	if err != nil {
		return decimal.Zero, &FieldError{Field: "token.rate_per_unit", Reason: fmt.Sprintf("not a decimal: %v", err)}
	}
	if !rate.IsPositive() {
		return decimal.Zero, &FieldError{Field: "token.rate_per_unit", Reason: "must be positive"}
	}
	return rate, nil
}
