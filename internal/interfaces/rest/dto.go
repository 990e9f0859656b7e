package rest

import (
	"time"

	"github.com/DanielPopoola/powervend/internal/application/services"
	"github.com/DanielPopoola/powervend/internal/domain"
	"github.com/oapi-codegen/runtime/types"
	"github.com/shopspring/decimal"
)

type InitializePaymentRequest struct {
	Email           types.Email     `json:"email"`
	Amount          decimal.Decimal `json:"amount"`
	MeterIdentifier string          `json:"meterIdentifier"`
	CallbackURL     string          `json:"callbackUrl,omitempty"`
}

func (r InitializePaymentRequest) ToCommand() services.InitiateCommand {
	return services.InitiateCommand{
		Email:           string(r.Email),
		Amount:          r.Amount,
		MeterIdentifier: r.MeterIdentifier,
		CallbackURL:     r.CallbackURL,
	}
}

type InitializePaymentResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorizationUrl"`
	AccessCode       string `json:"accessCode,omitempty"`
}

type GenerateTokenRequest struct {
	Reference       string          `json:"reference"`
	Amount          decimal.Decimal `json:"amount"`
	MeterIdentifier string          `json:"meterIdentifier"`
}

func (r GenerateTokenRequest) ToCommand() services.GenerateCommand {
	return services.GenerateCommand{
		Reference:       r.Reference,
		Amount:          r.Amount,
		MeterIdentifier: r.MeterIdentifier,
	}
}

// IssuanceResponse is the body of every endpoint that reports a
// reconciliation outcome or an issued token.
type IssuanceResponse struct {
	Reference       string     `json:"reference"`
	Status          string     `json:"status"`
	Token           string     `json:"token,omitempty"`
	Units           string     `json:"units,omitempty"`
	MeterIdentifier string     `json:"meterIdentifier,omitempty"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
}

func ToIssuanceResponse(reference string, outcome *services.Outcome) IssuanceResponse {
	resp := IssuanceResponse{
		Reference: reference,
		Status:    string(outcome.Kind),
	}
	if outcome.Token != nil {
		fillToken(&resp, outcome.Token)
	}
	return resp
}

func ToTokenResponse(t *domain.Token) IssuanceResponse {
	resp := IssuanceResponse{
		Reference: t.Reference,
		Status:    string(services.OutcomeAlreadyProcessed),
	}
	fillToken(&resp, t)
	return resp
}

func fillToken(resp *IssuanceResponse, t *domain.Token) {
	expiresAt := t.ExpiresAt
	resp.Token = t.Value
	resp.Units = t.UnitsString()
	resp.MeterIdentifier = t.MeterIdentifier
	resp.ExpiresAt = &expiresAt
}

type PaymentResponse struct {
	Reference       string     `json:"reference"`
	Amount          string     `json:"amount"`
	Currency        string     `json:"currency"`
	Status          string     `json:"status"`
	PayerIdentity   string     `json:"payerIdentity"`
	MeterIdentifier string     `json:"meterIdentifier,omitempty"`
	Token           string     `json:"token,omitempty"`
	Units           string     `json:"units,omitempty"`
	PaidAt          *time.Time `json:"paidAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func ToPaymentResponse(p *domain.Payment) PaymentResponse {
	resp := PaymentResponse{
		Reference:       p.Reference,
		Amount:          p.Amount().StringFixed(2),
		Currency:        p.Currency,
		Status:          string(p.Status),
		PayerIdentity:   p.PayerIdentity,
		MeterIdentifier: p.Metadata.MeterIdentifier,
		PaidAt:          p.PaidAt,
		CreatedAt:       p.CreatedAt,
	}
	if issued := p.Metadata.IssuanceResult; issued != nil {
		resp.Token = issued.Token
		resp.Units = issued.Units
	}
	return resp
}
