package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Token is a prepaid energy token redeemable on a meter. It is immutable once
// stored.
type Token struct {
	Reference       string
	Value           string
	Units           decimal.Decimal
	MeterIdentifier string
	ExpiresAt       time.Time
	CreatedAt       time.Time
}

func NewToken(
	reference string,
	value string,
	units decimal.Decimal,
	meterIdentifier string,
	issuedAt time.Time,
	validity time.Duration,
) (*Token, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, NewMissingRequiredFieldError("reference")
	}
	if value == "" || strings.Trim(value, "0123456789") != "" {
		return nil, NewInvalidTokenValueError(value)
	}
	if !units.IsPositive() {
		return nil, NewInvalidAmountError(units.String())
	}

	issuedAt = issuedAt.UTC()
	return &Token{
		Reference:       reference,
		Value:           value,
		Units:           units,
		MeterIdentifier: meterIdentifier,
		ExpiresAt:       issuedAt.Add(validity),
		CreatedAt:       issuedAt,
	}, nil
}

// UnitsString renders units with exactly two decimal places.
func (t *Token) UnitsString() string {
	return t.Units.StringFixed(2)
}

func (t *Token) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ParseUnits is the inverse of UnitsString, used when loading stored records.
func ParseUnits(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
