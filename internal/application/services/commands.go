package services

import (
	"github.com/shopspring/decimal"
)

// InitiateCommand starts a hosted payment session. Amount is in major units.
type InitiateCommand struct {
	Email           string          `validate:"required,email"`
	Amount          decimal.Decimal `validate:"-"`
	MeterIdentifier string          `validate:"required,numeric,min=11,max=13"`
	CallbackURL     string          `validate:"omitempty,url"`
}

type InitiateResult struct {
	Reference        string
	AuthorizationURL string
	AccessCode       string
}

// GenerateCommand asks for the token of a payment the caller believes has
// succeeded. Amount and MeterIdentifier must agree with the stored payment.
type GenerateCommand struct {
	Reference       string          `validate:"required"`
	Amount          decimal.Decimal `validate:"-"`
	MeterIdentifier string          `validate:"required"`
}
