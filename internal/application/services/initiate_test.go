package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/DanielPopoola/powervend/internal/application"
	"github.com/DanielPopoola/powervend/internal/application/mocks"
	"github.com/DanielPopoola/powervend/internal/application/services"
	"github.com/DanielPopoola/powervend/internal/application/services/testhelpers"
	"github.com/DanielPopoola/powervend/internal/config"
	"github.com/DanielPopoola/powervend/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newInitiator(t *testing.T) (*services.PaymentInitiator, *testhelpers.MemoryPaymentStore, *mocks.MockGatewayClient) {
	t.Helper()
	payments := testhelpers.NewMemoryPaymentStore(testhelpers.NewMemoryTokenStore())
	gateway := mocks.NewMockGatewayClient(t)
	cfg := config.PaystackConfig{
		Currency:    "NGN",
		CallbackURL: "https://powervend.test/callback",
	}
	return services.NewPaymentInitiator(payments, gateway, cfg, testhelpers.DiscardLogger()), payments, gateway
}

func validInitiateCommand() services.InitiateCommand {
	return services.InitiateCommand{
		Email:           "buyer@example.com",
		Amount:          decimal.RequireFromString("2500.50"),
		MeterIdentifier: "04123456789",
	}
}

func TestPaymentInitiator_Initiate(t *testing.T) {
	ctx := context.Background()

	t.Run("records a pending payment under the gateway reference", func(t *testing.T) {
		initiator, payments, gateway := newInitiator(t)

		gateway.EXPECT().
			Initialize(mock.Anything, mock.MatchedBy(func(req application.InitializeRequest) bool {
				return req.AmountMinor == 250050 &&
					req.Currency == "NGN" &&
					req.Email == "buyer@example.com" &&
					req.CallbackURL == "https://powervend.test/callback" &&
					req.Metadata["meterIdentifier"] == "04123456789"
			})).
			Return(&application.InitializeResponse{
				Reference:        "ps_ref_1",
				AuthorizationURL: "https://checkout.paystack.com/abc",
				AccessCode:       "abc",
			}, nil).
			Once()

		result, err := initiator.Initiate(ctx, validInitiateCommand())

		require.NoError(t, err)
		assert.Equal(t, "ps_ref_1", result.Reference)
		assert.Equal(t, "https://checkout.paystack.com/abc", result.AuthorizationURL)

		stored, err := payments.FindByReference(ctx, "ps_ref_1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, stored.Status)
		assert.Equal(t, int64(250050), stored.AmountMinor)
		assert.Equal(t, "buyer@example.com", stored.PayerIdentity)
		assert.Equal(t, "04123456789", stored.Metadata.MeterIdentifier)
		assert.Equal(t, "https://checkout.paystack.com/abc", stored.Metadata.AuthorizationURL)
	})

	t.Run("prefers the callback from the request", func(t *testing.T) {
		initiator, _, gateway := newInitiator(t)
		cmd := validInitiateCommand()
		cmd.CallbackURL = "https://shop.test/done"

		gateway.EXPECT().
			Initialize(mock.Anything, mock.MatchedBy(func(req application.InitializeRequest) bool {
				return req.CallbackURL == "https://shop.test/done"
			})).
			Return(&application.InitializeResponse{Reference: "ps_ref_2"}, nil).
			Once()

		_, err := initiator.Initiate(ctx, cmd)
		require.NoError(t, err)
	})

	t.Run("rejects invalid input before calling the gateway", func(t *testing.T) {
		cases := map[string]func(*services.InitiateCommand){
			"bad email":     func(c *services.InitiateCommand) { c.Email = "not-an-email" },
			"short meter":   func(c *services.InitiateCommand) { c.MeterIdentifier = "1234" },
			"alpha meter":   func(c *services.InitiateCommand) { c.MeterIdentifier = "0412345678X" },
			"bad callback":  func(c *services.InitiateCommand) { c.CallbackURL = "::nope" },
			"missing email": func(c *services.InitiateCommand) { c.Email = "" },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				initiator, _, _ := newInitiator(t)
				cmd := validInitiateCommand()
				mutate(&cmd)

				_, err := initiator.Initiate(ctx, cmd)

				svcErr, ok := application.IsServiceError(err)
				require.True(t, ok)
				assert.Equal(t, application.ErrCodeInvalidInput, svcErr.Code)
			})
		}
	})

	t.Run("rejects non-positive and oversized amounts", func(t *testing.T) {
		for _, amount := range []string{"0", "-5", "10000000.01", "10.001"} {
			initiator, _, _ := newInitiator(t)
			cmd := validInitiateCommand()
			cmd.Amount = decimal.RequireFromString(amount)

			_, err := initiator.Initiate(ctx, cmd)

			assert.ErrorIs(t, err, domain.ErrInvalidAmount, amount)
		}
	})

	t.Run("gateway failure records nothing", func(t *testing.T) {
		initiator, payments, gateway := newInitiator(t)

		gateway.EXPECT().
			Initialize(mock.Anything, mock.Anything).
			Return(nil, &application.GatewayError{Code: "UPSTREAM", Message: "down", StatusCode: 503}).
			Once()

		_, err := initiator.Initiate(ctx, validInitiateCommand())

		svcErr, ok := application.IsServiceError(err)
		require.True(t, ok)
		assert.Equal(t, application.ErrCodeGateway, svcErr.Code)

		stale, err := payments.FindStale(ctx, time.Now().Add(time.Hour), 10)
		require.NoError(t, err)
		assert.Empty(t, stale)
	})
}
