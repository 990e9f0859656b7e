package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DanielPopoola/powervend/internal/application/services/testhelpers"
	"github.com/DanielPopoola/powervend/internal/domain"
	"github.com/DanielPopoola/powervend/internal/infrastructure/persistence/postgres"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type RepositoryTestSuite struct {
	suite.Suite
	testDB   *testhelpers.TestDatabase
	payments *postgres.PaymentRepository
	tokens   *postgres.TokenRepository
}

func TestRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	suite.Run(t, new(RepositoryTestSuite))
}

func (suite *RepositoryTestSuite) SetupSuite() {
	suite.testDB = testhelpers.SetupTestDatabase(suite.T())
	suite.payments = postgres.NewPaymentRepository(suite.testDB.DB.Pool)
	suite.tokens = postgres.NewTokenRepository(suite.testDB.DB.Pool)
}

func (suite *RepositoryTestSuite) TearDownSuite() {
	suite.testDB.Cleanup(suite.T())
}

func (suite *RepositoryTestSuite) SetupTest() {
	suite.testDB.CleanTables(suite.T())
}

func (suite *RepositoryTestSuite) insertPending(amount int64) *domain.Payment {
	payment := testhelpers.NewPendingPayment(suite.T(), testhelpers.NewReference(), amount)
	suite.Require().NoError(suite.payments.Insert(context.Background(), payment))
	return payment
}

func (suite *RepositoryTestSuite) newToken(reference, value string) *domain.Token {
	token, err := domain.NewToken(reference, value, decimal.RequireFromString("18.18"), "04123456789", time.Now(), 72*time.Hour)
	suite.Require().NoError(err)
	return token
}

// ============================================================================
// PAYMENTS
// ============================================================================

func (suite *RepositoryTestSuite) Test_Payment_InsertAndFind() {
	ctx := context.Background()
	t := suite.T()
	payment := suite.insertPending(1000)

	found, err := suite.payments.FindByReference(ctx, payment.Reference)

	require.NoError(t, err)
	assert.Equal(t, payment.Reference, found.Reference)
	assert.Equal(t, int64(100000), found.AmountMinor)
	assert.Equal(t, "NGN", found.Currency)
	assert.Equal(t, domain.StatusPending, found.Status)
	assert.Equal(t, payment.Metadata, found.Metadata)
	assert.Nil(t, found.PaidAt)
}

func (suite *RepositoryTestSuite) Test_Payment_DuplicateReference() {
	payment := suite.insertPending(1000)

	err := suite.payments.Insert(context.Background(), payment)

	suite.ErrorIs(err, domain.ErrDuplicateReference)
}

func (suite *RepositoryTestSuite) Test_Payment_NotFound() {
	_, err := suite.payments.FindByReference(context.Background(), "nope")

	suite.ErrorIs(err, domain.ErrPaymentNotFound)
}

func (suite *RepositoryTestSuite) Test_Payment_UpdateStatusIfPending_OnlyFirstWins() {
	ctx := context.Background()
	t := suite.T()
	payment := suite.insertPending(1000)
	paidAt := time.Now().UTC().Truncate(time.Microsecond)

	won, err := suite.payments.UpdateStatusIfPending(ctx, payment.Reference, domain.StatusSuccess, &paidAt)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = suite.payments.UpdateStatusIfPending(ctx, payment.Reference, domain.StatusFailed, nil)
	require.NoError(t, err)
	assert.False(t, won)

	found, err := suite.payments.FindByReference(ctx, payment.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, found.Status)
	require.NotNil(t, found.PaidAt)
	assert.True(t, paidAt.Equal(*found.PaidAt))
}

func (suite *RepositoryTestSuite) Test_Payment_UpdateStatusIfPending_Concurrent() {
	ctx := context.Background()
	payment := suite.insertPending(1000)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := suite.payments.UpdateStatusIfPending(ctx, payment.Reference, domain.StatusSuccess, nil)
			suite.NoError(err)
			if won {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	suite.Equal(int32(1), wins.Load())
}

func (suite *RepositoryTestSuite) Test_Payment_SetIssuance() {
	ctx := context.Background()
	t := suite.T()
	payment := suite.insertPending(1000)

	err := suite.payments.SetIssuance(ctx, payment.Reference, domain.Issuance{Token: "12345678901234567890", Units: "18.18"})
	require.NoError(t, err)

	found, err := suite.payments.FindByReference(ctx, payment.Reference)
	require.NoError(t, err)
	require.NotNil(t, found.Metadata.IssuanceResult)
	assert.Equal(t, "12345678901234567890", found.Metadata.IssuanceResult.Token)
	assert.Equal(t, "18.18", found.Metadata.IssuanceResult.Units)
	assert.Equal(t, payment.Metadata.MeterIdentifier, found.Metadata.MeterIdentifier)

	err = suite.payments.SetIssuance(ctx, "missing", domain.Issuance{})
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func (suite *RepositoryTestSuite) Test_Payment_FindStale() {
	ctx := context.Background()
	t := suite.T()

	stalePending := suite.insertPending(1000)
	awaitingToken := suite.insertPending(1000)
	done := suite.insertPending(1000)
	failed := suite.insertPending(1000)

	for _, ref := range []string{awaitingToken.Reference, done.Reference} {
		_, err := suite.payments.UpdateStatusIfPending(ctx, ref, domain.StatusSuccess, nil)
		require.NoError(t, err)
	}
	_, err := suite.payments.UpdateStatusIfPending(ctx, failed.Reference, domain.StatusFailed, nil)
	require.NoError(t, err)

	_, _, err = suite.tokens.InsertIfAbsent(ctx, suite.newToken(done.Reference, "11112222333344445555"))
	require.NoError(t, err)

	stale, err := suite.payments.FindStale(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)

	refs := make([]string, 0, len(stale))
	for _, p := range stale {
		refs = append(refs, p.Reference)
	}
	assert.ElementsMatch(t, []string{stalePending.Reference, awaitingToken.Reference}, refs)

	// The older pending payment must not push the paid one out of a full batch.
	stale, err = suite.payments.FindStale(ctx, time.Now().Add(time.Minute), 1)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, awaitingToken.Reference, stale[0].Reference)

	// A cutoff in the past only keeps the token-less successful payment.
	stale, err = suite.payments.FindStale(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, awaitingToken.Reference, stale[0].Reference)
}

// ============================================================================
// TOKENS
// ============================================================================

func (suite *RepositoryTestSuite) Test_Token_InsertIfAbsent() {
	ctx := context.Background()
	t := suite.T()
	payment := suite.insertPending(1000)

	first := suite.newToken(payment.Reference, "12345678901234567890")
	stored, inserted, err := suite.tokens.InsertIfAbsent(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "18.18", stored.UnitsString())

	second := suite.newToken(payment.Reference, "99999999999999999999")
	stored, inserted, err = suite.tokens.InsertIfAbsent(ctx, second)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, "12345678901234567890", stored.Value)

	byValue, err := suite.tokens.FindByValue(ctx, "12345678901234567890")
	require.NoError(t, err)
	assert.Equal(t, payment.Reference, byValue.Reference)

	_, err = suite.tokens.FindByValue(ctx, "99999999999999999999")
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func (suite *RepositoryTestSuite) Test_Token_ValueCollision() {
	ctx := context.Background()
	a := suite.insertPending(1000)
	b := suite.insertPending(1000)

	_, _, err := suite.tokens.InsertIfAbsent(ctx, suite.newToken(a.Reference, "12345678901234567890"))
	suite.Require().NoError(err)

	_, inserted, err := suite.tokens.InsertIfAbsent(ctx, suite.newToken(b.Reference, "12345678901234567890"))

	suite.False(inserted)
	suite.ErrorIs(err, domain.ErrTokenCollision)

	_, err = suite.tokens.FindByReference(ctx, b.Reference)
	suite.ErrorIs(err, domain.ErrTokenNotFound)
}

func (suite *RepositoryTestSuite) Test_Token_ConcurrentInsertsKeepOne() {
	ctx := context.Background()
	t := suite.T()
	payment := suite.insertPending(1000)

	values := []string{
		"10000000000000000001", "10000000000000000002", "10000000000000000003",
		"10000000000000000004", "10000000000000000005", "10000000000000000006",
	}

	var inserts atomic.Int32
	results := make([]string, len(values))
	var wg sync.WaitGroup
	for i, v := range values {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stored, inserted, err := suite.tokens.InsertIfAbsent(ctx, suite.newToken(payment.Reference, v))
			suite.NoError(err)
			if inserted {
				inserts.Add(1)
			}
			results[i] = stored.Value
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), inserts.Load())
	for _, v := range results {
		assert.Equal(t, results[0], v)
	}
}
