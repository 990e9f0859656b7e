package postgres

import (
	"time"
)

// PaymentModel mirrors a row of the payments table. Metadata is raw JSONB.
type PaymentModel struct {
	Reference     string
	AmountMinor   int64
	Currency      string
	PayerIdentity string
	Status        string
	Metadata      []byte
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TokenModel mirrors a row of the tokens table. Units is read as text to keep
// NUMERIC precision.
type TokenModel struct {
	Reference       string
	Token           string
	Units           string
	MeterIdentifier string
	ExpiresAt       time.Time
	CreatedAt       time.Time
}
