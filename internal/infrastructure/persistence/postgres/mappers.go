package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/DanielPopoola/powervend/internal/domain"
)

func toPaymentModel(p *domain.Payment) (*PaymentModel, error) {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode payment metadata: %w", err)
	}
	return &PaymentModel{
		Reference:     p.Reference,
		AmountMinor:   p.AmountMinor,
		Currency:      p.Currency,
		PayerIdentity: p.PayerIdentity,
		Status:        string(p.Status),
		Metadata:      metadata,
		PaidAt:        p.PaidAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}, nil
}

func toPaymentDomain(m *PaymentModel) (*domain.Payment, error) {
	var metadata domain.PaymentMetadata
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of payment %s: %w", m.Reference, err)
		}
	}
	return &domain.Payment{
		Reference:     m.Reference,
		AmountMinor:   m.AmountMinor,
		Currency:      m.Currency,
		PayerIdentity: m.PayerIdentity,
		Status:        domain.PaymentStatus(m.Status),
		Metadata:      metadata,
		PaidAt:        utcPtr(m.PaidAt),
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}, nil
}

func toTokenModel(t *domain.Token) *TokenModel {
	return &TokenModel{
		Reference:       t.Reference,
		Token:           t.Value,
		Units:           t.UnitsString(),
		MeterIdentifier: t.MeterIdentifier,
		ExpiresAt:       t.ExpiresAt,
		CreatedAt:       t.CreatedAt,
	}
}

func toTokenDomain(m *TokenModel) (*domain.Token, error) {
	units, err := domain.ParseUnits(m.Units)
	if err != nil {
		return nil, fmt.Errorf("decode units of token %s: %w", m.Reference, err)
	}
	return &domain.Token{
		Reference:       m.Reference,
		Value:           m.Token,
		Units:           units,
		MeterIdentifier: m.MeterIdentifier,
		ExpiresAt:       m.ExpiresAt.UTC(),
		CreatedAt:       m.CreatedAt.UTC(),
	}, nil
}
