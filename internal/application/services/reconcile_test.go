package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DanielPopoola/powervend/internal/application"
	"github.com/DanielPopoola/powervend/internal/application/mocks"
	"github.com/DanielPopoola/powervend/internal/application/services"
	"github.com/DanielPopoola/powervend/internal/application/services/testhelpers"
	"github.com/DanielPopoola/powervend/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ReconcilerTestSuite struct {
	suite.Suite
	tokens      *testhelpers.MemoryTokenStore
	payments    *testhelpers.MemoryPaymentStore
	publisher   *testhelpers.RecordingPublisher
	mockGateway *mocks.MockGatewayClient
	reconciler  *services.Reconciler
}

func TestReconcilerSuite(t *testing.T) {
	suite.Run(t, new(ReconcilerTestSuite))
}

func (suite *ReconcilerTestSuite) SetupTest() {
	suite.tokens = testhelpers.NewMemoryTokenStore()
	suite.payments = testhelpers.NewMemoryPaymentStore(suite.tokens)
	suite.publisher = &testhelpers.RecordingPublisher{}
	suite.mockGateway = mocks.NewMockGatewayClient(suite.T())
	suite.reconciler = suite.newReconciler()
}

func (suite *ReconcilerTestSuite) newReconciler() *services.Reconciler {
	generator, err := services.NewTokenGenerator(
		suite.tokens,
		suite.payments,
		testhelpers.DefaultTokenConfig(),
		testhelpers.DiscardLogger(),
	)
	suite.Require().NoError(err)

	return services.NewReconciler(
		suite.payments,
		suite.tokens,
		suite.mockGateway,
		generator,
		suite.publisher,
		testhelpers.DiscardLogger(),
	)
}

func (suite *ReconcilerTestSuite) seedPending(amount int64) *domain.Payment {
	payment := testhelpers.NewPendingPayment(suite.T(), testhelpers.NewReference(), amount)
	suite.payments.Put(payment)
	return payment
}

// ============================================================================
// HAPPY PATH
// ============================================================================

func (suite *ReconcilerTestSuite) Test_Reconcile_IssuesTokenOnce() {
	ctx := context.Background()
	t := suite.T()
	payment := suite.seedPending(1000)

	suite.mockGateway.EXPECT().
		Verify(mock.Anything, payment.Reference).
		Return(testhelpers.SuccessfulVerification(payment), nil).
		Once()

	first, err := suite.reconciler.Reconcile(ctx, payment.Reference)
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeIssued, first.Kind)
	require.NotNil(t, first.Token)
	assert.Len(t, first.Token.Value, 20)
	assert.Equal(t, "18.18", first.Token.UnitsString())
	assert.Equal(t, domain.StatusSuccess, first.Payment.Status)

	second, err := suite.reconciler.Reconcile(ctx, payment.Reference)
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeAlreadyProcessed, second.Kind)
	assert.Equal(t, first.Token.Value, second.Token.Value)

	assert.Equal(t, 1, suite.tokens.Count())

	stored, err := suite.payments.FindByReference(ctx, payment.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, stored.Status)
	assert.NotNil(t, stored.PaidAt)
	require.NotNil(t, stored.Metadata.IssuanceResult)
	assert.Equal(t, first.Token.Value, stored.Metadata.IssuanceResult.Token)

	events := suite.publisher.Events(application.EventTokenIssued)
	require.Len(t, events, 1)
	data := events[0].Data.(application.TokenIssuedData)
	assert.Equal(t, first.Token.Value, data.Token)
	assert.Equal(t, "18.18", data.Units)
}

func (suite *ReconcilerTestSuite) Test_Reconcile_CompletesPendingIssuanceWithoutGateway() {
	ctx := context.Background()
	t := suite.T()
	payment := suite.seedPending(5500)
	_, err := suite.payments.UpdateStatusIfPending(ctx, payment.Reference, domain.StatusSuccess, nil)
	require.NoError(t, err)

	outcome, err := suite.reconciler.Reconcile(ctx, payment.Reference)

	require.NoError(t, err)
	assert.Equal(t, services.OutcomeIssued, outcome.Kind)
	assert.Equal(t, "100.00", outcome.Token.UnitsString())
	suite.mockGateway.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
}

func (suite *ReconcilerTestSuite) Test_Reconcile_StillPending() {
	ctx := context.Background()
	t := suite.T()
	payment := suite.seedPending(1000)

	suite.mockGateway.EXPECT().
		Verify(mock.Anything, payment.Reference).
		Return(testhelpers.PendingVerification(payment), nil).
		Once()

	outcome, err := suite.reconciler.Reconcile(ctx, payment.Reference)

	require.NoError(t, err)
	assert.Equal(t, services.OutcomeStillPending, outcome.Kind)
	assert.Nil(t, outcome.Token)
	assert.Equal(t, 0, suite.tokens.Count())

	stored, err := suite.payments.FindByReference(ctx, payment.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
}

// ============================================================================
// FAILURE PATHS
// ============================================================================

func (suite *ReconcilerTestSuite) Test_Reconcile_GatewayReportsFailure() {
	ctx := context.Background()
	t := suite.T()
	payment := suite.seedPending(1000)

	suite.mockGateway.EXPECT().
		Verify(mock.Anything, payment.Reference).
		Return(testhelpers.FailedVerification(payment), nil).
		Once()

	outcome, err := suite.reconciler.Reconcile(ctx, payment.Reference)
	require.NoError(t, err)
	assert.Equal(t, services.OutcomePaymentFailed, outcome.Kind)
	assert.Equal(t, 0, suite.tokens.Count())

	// Terminal: a second call does not consult the gateway.
	again, err := suite.reconciler.Reconcile(ctx, payment.Reference)
	require.NoError(t, err)
	assert.Equal(t, services.OutcomePaymentFailed, again.Kind)

	events := suite.publisher.Events(application.EventPaymentFailed)
	require.Len(t, events, 1)
	assert.Equal(t, "failed", events[0].Data.(application.PaymentFailedData).Reason)
}

func (suite *ReconcilerTestSuite) Test_Reconcile_AmountMismatchFailsPayment() {
	ctx := context.Background()
	t := suite.T()
	payment := suite.seedPending(1000)

	verification := testhelpers.SuccessfulVerification(payment)
	verification.AmountMinor = 100

	suite.mockGateway.EXPECT().
		Verify(mock.Anything, payment.Reference).
		Return(verification, nil).
		Once()

	outcome, err := suite.reconciler.Reconcile(ctx, payment.Reference)

	require.NoError(t, err)
	assert.Equal(t, services.OutcomePaymentFailed, outcome.Kind)
	assert.Equal(t, 0, suite.tokens.Count())

	events := suite.publisher.Events(application.EventPaymentFailed)
	require.Len(t, events, 1)
	assert.Equal(t, "amount_mismatch", events[0].Data.(application.PaymentFailedData).Reason)
}

func (suite *ReconcilerTestSuite) Test_Reconcile_UnknownReference() {
	_, err := suite.reconciler.Reconcile(context.Background(), "ref-missing")

	suite.ErrorIs(err, domain.ErrPaymentNotFound)
}

func (suite *ReconcilerTestSuite) Test_Reconcile_BlankReference() {
	_, err := suite.reconciler.Reconcile(context.Background(), "  ")

	suite.ErrorIs(err, domain.ErrMissingRequiredField)
}

func (suite *ReconcilerTestSuite) Test_Reconcile_GatewayUnavailable() {
	ctx := context.Background()
	t := suite.T()
	payment := suite.seedPending(1000)

	suite.mockGateway.EXPECT().
		Verify(mock.Anything, payment.Reference).
		Return(nil, &application.GatewayError{Code: "UPSTREAM", Message: "bad gateway", StatusCode: 502}).
		Once()

	outcome, err := suite.reconciler.Reconcile(ctx, payment.Reference)

	require.Error(t, err)
	assert.Nil(t, outcome)
	var svcErr *application.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, application.ErrCodeGateway, svcErr.Code)

	stored, err := suite.payments.FindByReference(ctx, payment.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
}

// ============================================================================
// CONCURRENCY
// ============================================================================

func (suite *ReconcilerTestSuite) Test_Reconcile_ConcurrentCallersShareOneToken() {
	ctx := context.Background()
	t := suite.T()
	payment := suite.seedPending(5500)

	suite.mockGateway.EXPECT().
		Verify(mock.Anything, payment.Reference).
		Return(testhelpers.SuccessfulVerification(payment), nil).
		Maybe()

	// Two reconcilers stand in for two processes sharing the same stores.
	reconcilers := []*services.Reconciler{suite.reconciler, suite.newReconciler()}

	const callers = 20
	outcomes := make([]*services.Outcome, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = reconcilers[i%2].Reconcile(ctx, payment.Reference)
		}(i)
	}
	wg.Wait()

	issued := 0
	for i := range callers {
		require.NoError(t, errs[i])
		require.NotNil(t, outcomes[i].Token)
		assert.Equal(t, outcomes[0].Token.Value, outcomes[i].Token.Value)
		if outcomes[i].Kind == services.OutcomeIssued {
			issued++
		}
	}

	assert.Equal(t, 1, suite.tokens.Count())
	assert.Len(t, suite.publisher.Events(application.EventTokenIssued), 1)
	assert.Equal(t, 1, issued, "exactly one caller is told the token was issued")
}

func (suite *ReconcilerTestSuite) Test_Reconcile_FollowerSurvivesLeaderCancel() {
	t := suite.T()
	payment := suite.seedPending(2500)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	suite.mockGateway.EXPECT().
		Verify(mock.Anything, payment.Reference).
		RunAndReturn(func(ctx context.Context, _ string) (*application.VerifyResponse, error) {
			once.Do(func() { close(started) })
			<-release
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return testhelpers.SuccessfulVerification(payment), nil
		}).
		Once()

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := suite.reconciler.Reconcile(leaderCtx, payment.Reference)
		leaderErr <- err
	}()
	<-started

	type result struct {
		outcome *services.Outcome
		err     error
	}
	followerRes := make(chan result, 1)
	go func() {
		outcome, err := suite.reconciler.Reconcile(context.Background(), payment.Reference)
		followerRes <- result{outcome, err}
	}()
	// Give the follower time to join the in-flight run.
	time.Sleep(50 * time.Millisecond)

	cancelLeader()
	require.ErrorIs(t, <-leaderErr, context.Canceled)
	close(release)

	res := <-followerRes
	require.NoError(t, res.err)
	assert.Equal(t, services.OutcomeIssued, res.outcome.Kind)
	require.NotNil(t, res.outcome.Token)
	assert.Equal(t, 1, suite.tokens.Count())

	stored, err := suite.payments.FindByReference(context.Background(), payment.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, stored.Status)
}

// ============================================================================
// GENERATE
// ============================================================================

func (suite *ReconcilerTestSuite) Test_Generate_MatchingRequest() {
	ctx := context.Background()
	t := suite.T()
	payment := suite.seedPending(1000)

	suite.mockGateway.EXPECT().
		Verify(mock.Anything, payment.Reference).
		Return(testhelpers.SuccessfulVerification(payment), nil).
		Once()

	outcome, err := suite.reconciler.Generate(ctx, services.GenerateCommand{
		Reference:       payment.Reference,
		Amount:          decimal.NewFromInt(1000),
		MeterIdentifier: payment.Metadata.MeterIdentifier,
	})

	require.NoError(t, err)
	assert.Equal(t, services.OutcomeIssued, outcome.Kind)
	assert.Equal(t, payment.Metadata.MeterIdentifier, outcome.Token.MeterIdentifier)
}

func (suite *ReconcilerTestSuite) Test_Generate_AmountMismatch() {
	payment := suite.seedPending(1000)

	_, err := suite.reconciler.Generate(context.Background(), services.GenerateCommand{
		Reference:       payment.Reference,
		Amount:          decimal.NewFromInt(2000),
		MeterIdentifier: payment.Metadata.MeterIdentifier,
	})

	suite.ErrorIs(err, domain.ErrAmountMismatch)
	suite.Equal(0, suite.tokens.Count())
}

func (suite *ReconcilerTestSuite) Test_Generate_MeterMismatch() {
	payment := suite.seedPending(1000)

	_, err := suite.reconciler.Generate(context.Background(), services.GenerateCommand{
		Reference:       payment.Reference,
		Amount:          decimal.NewFromInt(1000),
		MeterIdentifier: "99999999999",
	})

	suite.ErrorIs(err, domain.ErrMeterMismatch)
}
