package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// minorUnitsPerMajor is the kobo-per-naira (cents-per-dollar) factor.
const minorUnitsPerMajor = 100

var minorFactor = decimal.NewFromInt(minorUnitsPerMajor)

type Money struct {
	Minor    int64
	Currency string
}

// NewMoney normalizes a major-unit amount (e.g. 1000.50 NGN) into minor units.
// Amounts must be positive and carry at most two decimal places.
func NewMoney(major decimal.Decimal, currency string) (Money, error) {
	if !major.IsPositive() {
		return Money{}, NewInvalidAmountError(major.String())
	}
	if currency == "" {
		return Money{}, NewMissingRequiredFieldError("currency")
	}

	minor := major.Mul(minorFactor)
	if !minor.Equal(minor.Truncate(0)) {
		return Money{}, NewInvalidAmountError(major.String())
	}

	return Money{Minor: minor.IntPart(), Currency: strings.ToUpper(currency)}, nil
}

// Major converts back to major currency units.
func (m Money) Major() decimal.Decimal {
	return decimal.NewFromInt(m.Minor).Div(minorFactor)
}

// ComputeUnits derives energy units from a payment amount and the price of one
// unit, truncated (never rounded up) to two decimal places.
func ComputeUnits(amount, ratePerUnit decimal.Decimal) (decimal.Decimal, error) {
	if !ratePerUnit.IsPositive() {
		return decimal.Zero, NewInvalidRateError(ratePerUnit.String())
	}
	if !amount.IsPositive() {
		return decimal.Zero, NewInvalidAmountError(amount.String())
	}
	return amount.Div(ratePerUnit).Truncate(2), nil
}
