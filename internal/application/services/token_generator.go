package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/DanielPopoola/powervend/internal/application"
	"github.com/DanielPopoola/powervend/internal/config"
	"github.com/DanielPopoola/powervend/internal/domain"
	"github.com/shopspring/decimal"
)

// ValueSource produces candidate token values of the given length.
type ValueSource func(length int) (string, error)

// RandomDigits draws each digit uniformly from crypto/rand.
func RandomDigits(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)

	ten := big.NewInt(10)
	for range length {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("read random digit: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

type IssueRequest struct {
	Reference       string
	Amount          decimal.Decimal
	MeterIdentifier string
}

// IssueResult is the outcome of a bounded issuance attempt. AlreadyIssued
// means another caller stored the token for this reference first.
type IssueResult struct {
	Token         *domain.Token
	AlreadyIssued bool
	Attempts      int
}

type TokenGenerator struct {
	tokens      application.TokenStore
	payments    application.PaymentStore
	rate        decimal.Decimal
	validity    time.Duration
	length      int
	maxAttempts int
	source      ValueSource
	now         func() time.Time
	logger      *slog.Logger
}

type GeneratorOption func(*TokenGenerator)

func WithValueSource(source ValueSource) GeneratorOption {
	return func(g *TokenGenerator) { g.source = source }
}

func WithClock(now func() time.Time) GeneratorOption {
	return func(g *TokenGenerator) { g.now = now }
}

func NewTokenGenerator(
	tokens application.TokenStore,
	payments application.PaymentStore,
	cfg config.TokenConfig,
	logger *slog.Logger,
	opts ...GeneratorOption,
) (*TokenGenerator, error) {
	rate, err := cfg.Rate()
	if err != nil {
		return nil, err
	}

	g := &TokenGenerator{
		tokens:      tokens,
		payments:    payments,
		rate:        rate,
		validity:    cfg.Validity,
		length:      cfg.Length,
		maxAttempts: cfg.MaxAttempts,
		source:      RandomDigits,
		now:         time.Now,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Issue stores exactly one token for req.Reference. A clash on the token value
// draws a new value, up to maxAttempts; a clash on the reference returns the
// token already stored.
func (g *TokenGenerator) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	units, err := domain.ComputeUnits(req.Amount, g.rate)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		value, err := g.source(g.length)
		if err != nil {
			return nil, err
		}

		token, err := domain.NewToken(req.Reference, value, units, req.MeterIdentifier, g.now(), g.validity)
		if err != nil {
			return nil, err
		}

		stored, inserted, err := g.tokens.InsertIfAbsent(ctx, token)
		if errors.Is(err, domain.ErrTokenCollision) {
			g.logger.Warn("token value collision, regenerating",
				"reference", req.Reference,
				"attempt", attempt,
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("store token: %w", err)
		}

		if !inserted {
			return &IssueResult{Token: stored, AlreadyIssued: true, Attempts: attempt}, nil
		}

		g.cacheIssuance(ctx, stored)
		return &IssueResult{Token: stored, Attempts: attempt}, nil
	}

	return nil, domain.NewTokenGenerationExhaustedError(req.Reference, g.maxAttempts)
}

// cacheIssuance is best effort: the token record is the source of truth.
func (g *TokenGenerator) cacheIssuance(ctx context.Context, t *domain.Token) {
	issuance := domain.Issuance{Token: t.Value, Units: t.UnitsString()}
	if err := g.payments.SetIssuance(ctx, t.Reference, issuance); err != nil {
		g.logger.Warn("failed to cache issuance on payment",
			"reference", t.Reference,
			"error", err,
		)
	}
}
