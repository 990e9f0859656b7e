package mongostore

import (
	"fmt"
	"time"

	"github.com/DanielPopoola/powervend/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type paymentDocument struct {
	Reference     string                 `bson:"_id"`
	AmountMinor   int64                  `bson:"amount_minor"`
	Currency      string                 `bson:"currency"`
	PayerIdentity string                 `bson:"payer_identity"`
	Status        string                 `bson:"status"`
	Metadata      domain.PaymentMetadata `bson:"metadata"`
	PaidAt        *time.Time             `bson:"paid_at,omitempty"`
	CreatedAt     time.Time              `bson:"created_at"`
	UpdatedAt     time.Time              `bson:"updated_at"`
}

type tokenDocument struct {
	Reference       string               `bson:"_id"`
	Token           string               `bson:"token"`
	Units           primitive.Decimal128 `bson:"units"`
	MeterIdentifier string               `bson:"meter_identifier"`
	ExpiresAt       time.Time            `bson:"expires_at"`
	CreatedAt       time.Time            `bson:"created_at"`
}

func toPaymentDocument(p *domain.Payment) paymentDocument {
	return paymentDocument{
		Reference:     p.Reference,
		AmountMinor:   p.AmountMinor,
		Currency:      p.Currency,
		PayerIdentity: p.PayerIdentity,
		Status:        string(p.Status),
		Metadata:      p.Metadata,
		PaidAt:        p.PaidAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (d paymentDocument) toDomain() *domain.Payment {
	var paidAt *time.Time
	if d.PaidAt != nil {
		t := d.PaidAt.UTC()
		paidAt = &t
	}
	return &domain.Payment{
		Reference:     d.Reference,
		AmountMinor:   d.AmountMinor,
		Currency:      d.Currency,
		PayerIdentity: d.PayerIdentity,
		Status:        domain.PaymentStatus(d.Status),
		Metadata:      d.Metadata,
		PaidAt:        paidAt,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
}

func toTokenDocument(t *domain.Token) (tokenDocument, error) {
	units, err := primitive.ParseDecimal128(t.UnitsString())
	if err != nil {
		return tokenDocument{}, fmt.Errorf("encode units: %w", err)
	}
	return tokenDocument{
		Reference:       t.Reference,
		Token:           t.Value,
		Units:           units,
		MeterIdentifier: t.MeterIdentifier,
		ExpiresAt:       t.ExpiresAt,
		CreatedAt:       t.CreatedAt,
	}, nil
}

func (d tokenDocument) toDomain() (*domain.Token, error) {
	units, err := domain.ParseUnits(d.Units.String())
	if err != nil {
		return nil, fmt.Errorf("decode units of token %s: %w", d.Reference, err)
	}
	return &domain.Token{
		Reference:       d.Reference,
		Value:           d.Token,
		Units:           units,
		MeterIdentifier: d.MeterIdentifier,
		ExpiresAt:       d.ExpiresAt.UTC(),
		CreatedAt:       d.CreatedAt.UTC(),
	}, nil
}
