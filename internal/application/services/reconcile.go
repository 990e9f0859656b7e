package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/DanielPopoola/powervend/internal/application"
	"github.com/DanielPopoola/powervend/internal/domain"
	"golang.org/x/sync/singleflight"
)

// sharedRunTimeout bounds a reconciliation run that no single request owns.
const sharedRunTimeout = 2 * time.Minute

type OutcomeKind string

const (
	OutcomeIssued           OutcomeKind = "issued"
	OutcomeAlreadyProcessed OutcomeKind = "already_processed"
	OutcomePaymentFailed    OutcomeKind = "payment_failed"
	OutcomeStillPending     OutcomeKind = "still_pending"
)

// Outcome is the result of reconciling one reference. Token is set for
// OutcomeIssued and OutcomeAlreadyProcessed.
type Outcome struct {
	Kind    OutcomeKind
	Payment *domain.Payment
	Token   *domain.Token
}

// Reconciler confirms a payment with the gateway and drives token issuance
// exactly once per reference. Webhooks, client polls, on-demand generation
// and the background sweeper all go through Reconcile.
type Reconciler struct {
	payments  application.PaymentStore
	tokens    application.TokenStore
	gateway   application.GatewayClient
	generator *TokenGenerator
	publisher application.EventPublisher
	logger    *slog.Logger

	inflight singleflight.Group
}

func NewReconciler(
	payments application.PaymentStore,
	tokens application.TokenStore,
	gateway application.GatewayClient,
	generator *TokenGenerator,
	publisher application.EventPublisher,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		payments:  payments,
		tokens:    tokens,
		gateway:   gateway,
		generator: generator,
		publisher: publisher,
		logger:    logger,
	}
}

// Reconcile is safe to call concurrently, from any number of processes, for
// the same reference. Concurrent calls inside this process share one run,
// and only one of them is told the token was issued.
func (r *Reconciler) Reconcile(ctx context.Context, reference string) (*Outcome, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, domain.NewMissingRequiredFieldError("reference")
	}

	// The shared run must not die with whichever caller started it.
	detached := context.WithoutCancel(ctx)
	ch := r.inflight.DoChan(reference, func() (any, error) {
		runCtx, cancel := context.WithTimeout(detached, sharedRunTimeout)
		defer cancel()

		outcome, err := r.reconcile(runCtx, reference)
		if err != nil {
			return nil, err
		}
		return &sharedOutcome{outcome: outcome}, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			r.logger.Debug("joined in-flight reconciliation", "reference", reference)
		}
		return res.Val.(*sharedOutcome).take(), nil
	}
}

// sharedOutcome hands an Issued outcome to the first caller that collects it;
// every other caller of the same run sees AlreadyProcessed.
type sharedOutcome struct {
	outcome *Outcome
	claimed atomic.Bool
}

func (s *sharedOutcome) take() *Outcome {
	if s.outcome.Kind != OutcomeIssued || s.claimed.CompareAndSwap(false, true) {
		return s.outcome
	}
	out := *s.outcome
	out.Kind = OutcomeAlreadyProcessed
	return &out
}

// Generate serves a client that already knows the payment succeeded. The
// request must describe the stored payment before it is reconciled.
func (r *Reconciler) Generate(ctx context.Context, cmd GenerateCommand) (*Outcome, error) {
	payment, err := r.payments.FindByReference(ctx, cmd.Reference)
	if err != nil {
		return nil, err
	}

	if !cmd.Amount.IsZero() && !cmd.Amount.Equal(payment.Amount()) {
		return nil, domain.NewAmountMismatchError(payment.Amount().String(), cmd.Amount.String())
	}
	if stored := payment.Metadata.MeterIdentifier; stored != "" && stored != cmd.MeterIdentifier {
		return nil, domain.NewMeterMismatchError(stored, cmd.MeterIdentifier)
	}

	return r.Reconcile(ctx, cmd.Reference)
}

func (r *Reconciler) reconcile(ctx context.Context, reference string) (*Outcome, error) {
	payment, err := r.payments.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	switch payment.Status {
	case domain.StatusFailed:
		return &Outcome{Kind: OutcomePaymentFailed, Payment: payment}, nil
	case domain.StatusSuccess:
		// Either fully processed or pending issuance; no need to ask the
		// gateway again.
		return r.completeIssuance(ctx, payment)
	}

	verification, err := r.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, application.NewGatewayError(err)
	}

	switch verification.Status {
	case application.GatewayStatusSuccess:
		if verification.AmountMinor != 0 && verification.AmountMinor != payment.AmountMinor {
			r.logger.Warn("gateway amount differs from payment",
				"reference", reference,
				"expected_minor", payment.AmountMinor,
				"gateway_minor", verification.AmountMinor,
			)
			return r.markFailed(ctx, payment, "amount_mismatch")
		}
		return r.markSucceeded(ctx, payment, paidAtOrNow(verification.PaidAt))

	case application.GatewayStatusFailed:
		return r.markFailed(ctx, payment, verification.RawStatus)

	default:
		return &Outcome{Kind: OutcomeStillPending, Payment: payment}, nil
	}
}

func (r *Reconciler) markSucceeded(ctx context.Context, payment *domain.Payment, paidAt time.Time) (*Outcome, error) {
	won, err := r.payments.UpdateStatusIfPending(ctx, payment.Reference, domain.StatusSuccess, &paidAt)
	if err != nil {
		return nil, fmt.Errorf("mark payment successful: %w", err)
	}
	if !won {
		return r.afterLostRace(ctx, payment.Reference)
	}

	if err := payment.MarkSuccess(paidAt); err != nil {
		return nil, err
	}

	r.logger.Info("payment confirmed", "reference", payment.Reference)

	// The status write is durable; issuance must finish even if the caller
	// goes away.
	return r.completeIssuance(context.WithoutCancel(ctx), payment)
}

func (r *Reconciler) markFailed(ctx context.Context, payment *domain.Payment, reason string) (*Outcome, error) {
	won, err := r.payments.UpdateStatusIfPending(ctx, payment.Reference, domain.StatusFailed, nil)
	if err != nil {
		return nil, fmt.Errorf("mark payment failed: %w", err)
	}
	if !won {
		return r.afterLostRace(ctx, payment.Reference)
	}

	if err := payment.MarkFailed(); err != nil {
		return nil, err
	}

	r.logger.Info("payment failed", "reference", payment.Reference, "reason", reason)
	r.publish(ctx, application.EventPaymentFailed, payment.Reference, application.PaymentFailedData{
		Reference:     payment.Reference,
		PayerIdentity: payment.PayerIdentity,
		AmountMinor:   payment.AmountMinor,
		Reason:        reason,
	})

	return &Outcome{Kind: OutcomePaymentFailed, Payment: payment}, nil
}

// afterLostRace handles a guarded update that found the payment already
// terminal: someone else reconciled it, so report what they decided.
func (r *Reconciler) afterLostRace(ctx context.Context, reference string) (*Outcome, error) {
	current, err := r.payments.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("payment reconciled concurrently", "reference", reference, "status", current.Status)

	switch current.Status {
	case domain.StatusFailed:
		return &Outcome{Kind: OutcomePaymentFailed, Payment: current}, nil
	case domain.StatusSuccess:
		// Normally the winner has stored the token by now. If not, the
		// token insert is guarded too, so finishing here is still safe.
		return r.completeIssuance(context.WithoutCancel(ctx), current)
	default:
		return nil, application.NewInvalidStateError(
			domain.NewInvalidTransitionError(current.Status, domain.StatusSuccess),
		)
	}
}

// completeIssuance returns the stored token for a successful payment, issuing
// it when the payment is still pending issuance.
func (r *Reconciler) completeIssuance(ctx context.Context, payment *domain.Payment) (*Outcome, error) {
	token, err := r.tokens.FindByReference(ctx, payment.Reference)
	if err == nil {
		return &Outcome{Kind: OutcomeAlreadyProcessed, Payment: payment, Token: token}, nil
	}
	if !errors.Is(err, domain.ErrTokenNotFound) {
		return nil, fmt.Errorf("load token: %w", err)
	}

	result, err := r.generator.Issue(ctx, IssueRequest{
		Reference:       payment.Reference,
		Amount:          payment.Amount(),
		MeterIdentifier: payment.Metadata.MeterIdentifier,
	})
	if err != nil {
		if errors.Is(err, domain.ErrTokenGenerationExhausted) {
			r.logger.Error("token generation exhausted, payment left pending issuance",
				"reference", payment.Reference,
				"error", err,
			)
		}
		return nil, err
	}

	if result.AlreadyIssued {
		return &Outcome{Kind: OutcomeAlreadyProcessed, Payment: payment, Token: result.Token}, nil
	}

	payment.RecordIssuance(result.Token)
	r.logger.Info("token issued",
		"reference", payment.Reference,
		"units", result.Token.UnitsString(),
		"attempts", result.Attempts,
	)
	r.publish(ctx, application.EventTokenIssued, payment.Reference, application.TokenIssuedData{
		Reference:       payment.Reference,
		Token:           result.Token.Value,
		Units:           result.Token.UnitsString(),
		MeterIdentifier: result.Token.MeterIdentifier,
		ExpiresAt:       result.Token.ExpiresAt,
	})

	return &Outcome{Kind: OutcomeIssued, Payment: payment, Token: result.Token}, nil
}

func (r *Reconciler) publish(ctx context.Context, eventType, reference string, data any) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, eventType, reference, data); err != nil {
		r.logger.Warn("failed to publish event",
			"type", eventType,
			"reference", reference,
			"error", err,
		)
	}
}

func paidAtOrNow(paidAt *time.Time) time.Time {
	if paidAt != nil && !paidAt.IsZero() {
		return paidAt.UTC()
	}
	return time.Now().UTC()
}
