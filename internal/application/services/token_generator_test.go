package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DanielPopoola/powervend/internal/application/services"
	"github.com/DanielPopoola/powervend/internal/application/services/testhelpers"
	"github.com/DanielPopoola/powervend/internal/config"
	"github.com/DanielPopoola/powervend/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGenerator(t *testing.T, tokens *testhelpers.MemoryTokenStore, payments *testhelpers.MemoryPaymentStore, opts ...services.GeneratorOption) *services.TokenGenerator {
	t.Helper()
	g, err := services.NewTokenGenerator(tokens, payments, testhelpers.DefaultTokenConfig(), testhelpers.DiscardLogger(), opts...)
	require.NoError(t, err)
	return g
}

func TestRandomDigits(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		v, err := services.RandomDigits(20)
		require.NoError(t, err)
		require.Len(t, v, 20)
		for _, c := range v {
			require.True(t, c >= '0' && c <= '9', "non-digit %q in %s", c, v)
		}
		seen[v] = struct{}{}
	}
	assert.Len(t, seen, 100)
}

func TestNewTokenGenerator_RejectsBadRate(t *testing.T) {
	cfg := testhelpers.DefaultTokenConfig()
	cfg.RatePerUnit = "abc"

	_, err := services.NewTokenGenerator(testhelpers.NewMemoryTokenStore(), nil, cfg, testhelpers.DiscardLogger())

	var fieldErr *config.FieldError
	assert.True(t, errors.As(err, &fieldErr))
}

func TestTokenGenerator_Issue(t *testing.T) {
	ctx := context.Background()
	issuedAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("issues a 20 digit token with derived units and expiry", func(t *testing.T) {
		tokens := testhelpers.NewMemoryTokenStore()
		payments := testhelpers.NewMemoryPaymentStore(tokens)
		payment := testhelpers.NewPendingPayment(t, "ref-units", 5500)
		payments.Put(payment)

		g := newGenerator(t, tokens, payments, services.WithClock(func() time.Time { return issuedAt }))

		result, err := g.Issue(ctx, services.IssueRequest{
			Reference:       "ref-units",
			Amount:          decimal.NewFromInt(5500),
			MeterIdentifier: "04123456789",
		})

		require.NoError(t, err)
		assert.False(t, result.AlreadyIssued)
		assert.Equal(t, 1, result.Attempts)
		assert.Len(t, result.Token.Value, 20)
		assert.Equal(t, "100.00", result.Token.UnitsString())
		assert.Equal(t, issuedAt.Add(72*time.Hour), result.Token.ExpiresAt)
		assert.Equal(t, "04123456789", result.Token.MeterIdentifier)

		stored, err := payments.FindByReference(ctx, "ref-units")
		require.NoError(t, err)
		require.NotNil(t, stored.Metadata.IssuanceResult)
		assert.Equal(t, result.Token.Value, stored.Metadata.IssuanceResult.Token)
		assert.Equal(t, "100.00", stored.Metadata.IssuanceResult.Units)
	})

	t.Run("returns the existing token when the reference already has one", func(t *testing.T) {
		tokens := testhelpers.NewMemoryTokenStore()
		payments := testhelpers.NewMemoryPaymentStore(tokens)
		g := newGenerator(t, tokens, payments)

		first, err := g.Issue(ctx, services.IssueRequest{Reference: "ref-dup", Amount: decimal.NewFromInt(1000)})
		require.NoError(t, err)

		second, err := g.Issue(ctx, services.IssueRequest{Reference: "ref-dup", Amount: decimal.NewFromInt(1000)})
		require.NoError(t, err)

		assert.True(t, second.AlreadyIssued)
		assert.Equal(t, first.Token.Value, second.Token.Value)
		assert.Equal(t, 1, tokens.Count())
	})

	t.Run("regenerates on token value collision", func(t *testing.T) {
		tokens := testhelpers.NewMemoryTokenStore()
		payments := testhelpers.NewMemoryPaymentStore(tokens)

		taken := "11111111111111111111"
		seed, err := domain.NewToken("ref-other", taken, decimal.NewFromInt(1), "", issuedAt, time.Hour)
		require.NoError(t, err)
		_, _, err = tokens.InsertIfAbsent(ctx, seed)
		require.NoError(t, err)

		g := newGenerator(t, tokens, payments, services.WithValueSource(
			testhelpers.SequenceSource(t, taken, taken, "22222222222222222222"),
		))

		result, err := g.Issue(ctx, services.IssueRequest{Reference: "ref-new", Amount: decimal.NewFromInt(1000)})

		require.NoError(t, err)
		assert.Equal(t, 3, result.Attempts)
		assert.Equal(t, "22222222222222222222", result.Token.Value)
		assert.Equal(t, "ref-new", result.Token.Reference)
	})

	t.Run("succeeds on the last permitted attempt", func(t *testing.T) {
		tokens := testhelpers.NewMemoryTokenStore()
		colliding := &testhelpers.CollidingTokenStore{TokenStore: tokens, Collisions: 4}
		payments := testhelpers.NewMemoryPaymentStore(tokens)

		g, err := services.NewTokenGenerator(colliding, payments, testhelpers.DefaultTokenConfig(), testhelpers.DiscardLogger())
		require.NoError(t, err)

		result, err := g.Issue(ctx, services.IssueRequest{Reference: "ref-5th", Amount: decimal.NewFromInt(1000)})

		require.NoError(t, err)
		assert.Equal(t, 5, result.Attempts)
		assert.Equal(t, 1, tokens.Count())
	})

	t.Run("gives up after five collisions without a partial insert", func(t *testing.T) {
		tokens := testhelpers.NewMemoryTokenStore()
		colliding := &testhelpers.CollidingTokenStore{TokenStore: tokens, Collisions: 5}
		payments := testhelpers.NewMemoryPaymentStore(tokens)
		payment := testhelpers.NewPendingPayment(t, "ref-exhaust", 1000)
		payments.Put(payment)

		g, err := services.NewTokenGenerator(colliding, payments, testhelpers.DefaultTokenConfig(), testhelpers.DiscardLogger())
		require.NoError(t, err)

		result, err := g.Issue(ctx, services.IssueRequest{Reference: "ref-exhaust", Amount: decimal.NewFromInt(1000)})

		require.Error(t, err)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrTokenGenerationExhausted)
		assert.Equal(t, 5, colliding.Rejected)
		assert.Equal(t, 0, tokens.Count())

		stored, err := payments.FindByReference(ctx, "ref-exhaust")
		require.NoError(t, err)
		assert.Nil(t, stored.Metadata.IssuanceResult)
	})

	t.Run("cache failure does not fail issuance", func(t *testing.T) {
		tokens := testhelpers.NewMemoryTokenStore()
		payments := testhelpers.NewMemoryPaymentStore(tokens)
		payments.SetIssuanceErr = errors.New("write conflict")
		g := newGenerator(t, tokens, payments)

		result, err := g.Issue(ctx, services.IssueRequest{Reference: "ref-cache", Amount: decimal.NewFromInt(1000)})

		require.NoError(t, err)
		assert.Equal(t, "18.18", result.Token.UnitsString())
		assert.Equal(t, 1, tokens.Count())
	})
}
