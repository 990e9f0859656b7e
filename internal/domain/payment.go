// Package domain holds the payment and token records and the rules that
// govern their lifecycle.
package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the current state of a payment in its lifecycle
type PaymentStatus string

const (
	StatusPending PaymentStatus = "pending"
	StatusSuccess PaymentStatus = "success"
	StatusFailed  PaymentStatus = "failed"
)

// Issuance is the denormalized copy of an issued token kept on the payment.
// The token record stays authoritative.
type Issuance struct {
	Token string `json:"token" bson:"token"`
	Units string `json:"units" bson:"units"`
}

// PaymentMetadata is the closed set of attributes a payment carries besides
// its core fields.
type PaymentMetadata struct {
	AuthorizationURL string    `json:"authorizationUrl,omitempty" bson:"authorizationUrl,omitempty"`
	MeterIdentifier  string    `json:"meterIdentifier,omitempty" bson:"meterIdentifier,omitempty"`
	IssuanceResult   *Issuance `json:"issuanceResult,omitempty" bson:"issuanceResult,omitempty"`
}

type Payment struct {
	Reference     string
	AmountMinor   int64
	Currency      string
	PayerIdentity string
	Status        PaymentStatus
	Metadata      PaymentMetadata

	PaidAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewPayment(
	reference string,
	payerIdentity string,
	amount Money,
	metadata PaymentMetadata,
) (*Payment, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, NewMissingRequiredFieldError("reference")
	}
	if strings.TrimSpace(payerIdentity) == "" {
		return nil, NewMissingRequiredFieldError("payer identity")
	}
	if amount.Minor <= 0 {
		return nil, NewInvalidAmountError(amount.Major().String())
	}

	now := time.Now().UTC()
	return &Payment{
		Reference:     reference,
		AmountMinor:   amount.Minor,
		Currency:      amount.Currency,
		PayerIdentity: payerIdentity,
		Status:        StatusPending,
		Metadata:      metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Amount returns the payment amount in major currency units.
func (p *Payment) Amount() decimal.Decimal {
	return Money{Minor: p.AmountMinor, Currency: p.Currency}.Major()
}

// MarkSuccess records a confirmed payment.
func (p *Payment) MarkSuccess(paidAt time.Time) error {
	if err := p.transition(StatusSuccess); err != nil {
		return err
	}
	p.PaidAt = &paidAt
	return nil
}

// MarkFailed records a payment the gateway reported as unsuccessful.
func (p *Payment) MarkFailed() error {
	return p.transition(StatusFailed)
}

func (p *Payment) transition(target PaymentStatus) error {
	if err := p.CanTransitionTo(target); err != nil {
		return err
	}
	p.Status = target
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// CanTransitionTo enforces monotonic status: only pending may move, and only
// to a terminal state.
func (p *Payment) CanTransitionTo(target PaymentStatus) error {
	if p.Status == StatusPending && slices.Contains([]PaymentStatus{StatusSuccess, StatusFailed}, target) {
		return nil
	}
	return NewInvalidTransitionError(p.Status, target)
}

func (p *Payment) IsTerminal() bool {
	return p.Status == StatusSuccess || p.Status == StatusFailed
}

// RecordIssuance caches the issued token on the payment.
func (p *Payment) RecordIssuance(t *Token) {
	p.Metadata.IssuanceResult = &Issuance{
		Token: t.Value,
		Units: t.UnitsString(),
	}
}
