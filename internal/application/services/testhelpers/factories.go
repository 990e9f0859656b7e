package testhelpers

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DanielPopoola/powervend/internal/application"
	"github.com/DanielPopoola/powervend/internal/config"
	"github.com/DanielPopoola/powervend/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// DiscardLogger keeps test output quiet.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// DefaultTokenConfig mirrors the production defaults.
func DefaultTokenConfig() config.TokenConfig {
	return config.TokenConfig{
		RatePerUnit: "55",
		Validity:    72 * time.Hour,
		Length:      20,
		MaxAttempts: 5,
	}
}

func NewReference() string {
	return "ref-" + uuid.NewString()
}

// NewPendingPayment builds a pending payment for amount major units.
func NewPendingPayment(t *testing.T, reference string, amount int64) *domain.Payment {
	t.Helper()

	money, err := domain.NewMoney(decimal.NewFromInt(amount), "NGN")
	require.NoError(t, err)

	payment, err := domain.NewPayment(reference, "a@b.com", money, domain.PaymentMetadata{
		AuthorizationURL: "https://checkout.paystack.com/" + reference,
		MeterIdentifier:  "04123456789",
	})
	require.NoError(t, err)
	return payment
}

// SuccessfulVerification is the gateway answer for a paid transaction.
func SuccessfulVerification(p *domain.Payment) *application.VerifyResponse {
	paidAt := time.Now().UTC()
	return &application.VerifyResponse{
		Reference:   p.Reference,
		Status:      application.GatewayStatusSuccess,
		RawStatus:   "success",
		AmountMinor: p.AmountMinor,
		Currency:    p.Currency,
		PaidAt:      &paidAt,
	}
}

func FailedVerification(p *domain.Payment) *application.VerifyResponse {
	return &application.VerifyResponse{
		Reference:   p.Reference,
		Status:      application.GatewayStatusFailed,
		RawStatus:   "failed",
		AmountMinor: p.AmountMinor,
		Currency:    p.Currency,
	}
}

func PendingVerification(p *domain.Payment) *application.VerifyResponse {
	return &application.VerifyResponse{
		Reference: p.Reference,
		Status:    application.GatewayStatusPending,
		RawStatus: "ongoing",
	}
}

// SequenceSource returns the given values in order, then fails the test.
func SequenceSource(t *testing.T, values ...string) func(int) (string, error) {
	i := 0
	return func(int) (string, error) {
		require.Less(t, i, len(values), "value source exhausted")
		v := values[i]
		i++
		return v, nil
	}
}
