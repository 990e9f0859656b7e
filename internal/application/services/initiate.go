package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DanielPopoola/powervend/internal/application"
	"github.com/DanielPopoola/powervend/internal/config"
	"github.com/DanielPopoola/powervend/internal/domain"
	"github.com/go-playground/validator"
	"github.com/shopspring/decimal"
)

type PaymentInitiator struct {
	payments    application.PaymentStore
	gateway     application.GatewayClient
	currency    string
	callbackURL string
	maxAmount   decimal.Decimal
	validate    *validator.Validate
	logger      *slog.Logger
}

func NewPaymentInitiator(
	payments application.PaymentStore,
	gateway application.GatewayClient,
	cfg config.PaystackConfig,
	logger *slog.Logger,
) *PaymentInitiator {
	return &PaymentInitiator{
		payments:    payments,
		gateway:     gateway,
		currency:    cfg.Currency,
		callbackURL: cfg.CallbackURL,
		maxAmount:   decimal.NewFromInt(10_000_000),
		validate:    validator.New(),
		logger:      logger,
	}
}

// Initiate opens a hosted checkout with the gateway and records the payment
// as pending under the reference the gateway assigned.
func (s *PaymentInitiator) Initiate(ctx context.Context, cmd InitiateCommand) (*InitiateResult, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, application.NewInvalidInputError(err)
	}
	if cmd.Amount.GreaterThan(s.maxAmount) {
		return nil, domain.NewInvalidAmountError(cmd.Amount.String())
	}

	money, err := domain.NewMoney(cmd.Amount, s.currency)
	if err != nil {
		return nil, err
	}

	callbackURL := cmd.CallbackURL
	if callbackURL == "" {
		callbackURL = s.callbackURL
	}

	session, err := s.gateway.Initialize(ctx, application.InitializeRequest{
		Email:       cmd.Email,
		AmountMinor: money.Minor,
		Currency:    money.Currency,
		CallbackURL: callbackURL,
		Metadata: map[string]string{
			"meterIdentifier": cmd.MeterIdentifier,
		},
	})
	if err != nil {
		return nil, application.NewGatewayError(err)
	}

	payment, err := domain.NewPayment(session.Reference, cmd.Email, money, domain.PaymentMetadata{
		AuthorizationURL: session.AuthorizationURL,
		MeterIdentifier:  cmd.MeterIdentifier,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway session %q: %w", session.Reference, err)
	}

	if err := s.payments.Insert(ctx, payment); err != nil {
		return nil, err
	}

	s.logger.Info("payment initiated",
		"reference", payment.Reference,
		"amount_minor", payment.AmountMinor,
		"currency", payment.Currency,
	)

	return &InitiateResult{
		Reference:        session.Reference,
		AuthorizationURL: session.AuthorizationURL,
		AccessCode:       session.AccessCode,
	}, nil
}
