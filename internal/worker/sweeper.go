package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanielPopoola/powervend/internal/application"
	"github.com/DanielPopoola/powervend/internal/application/services"
	"github.com/DanielPopoola/powervend/internal/config"
)

type PaymentReconciler interface {
	Reconcile(ctx context.Context, reference string) (*services.Outcome, error)
}

// Sweeper periodically reconciles payments that no request finished: pending
// payments nobody polled and successful payments still waiting for a token.
type Sweeper struct {
	payments   application.PaymentStore
	reconciler PaymentReconciler
	interval   time.Duration
	batchSize  int
	staleAfter time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// SweepSummary counts what one pass did, by outcome.
type SweepSummary struct {
	Candidates int
	Outcomes   map[services.OutcomeKind]int
	Errors     int
}

func NewSweeper(
	payments application.PaymentStore,
	reconciler PaymentReconciler,
	cfg config.WorkerConfig,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		payments:   payments,
		reconciler: reconciler,
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
		staleAfter: cfg.StaleAfter,
		now:        time.Now,
		logger:     logger,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("starting reconciliation sweeper",
		"interval", s.interval,
		"batch_size", s.batchSize,
		"stale_after", s.staleAfter,
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping reconciliation sweeper")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) SweepSummary {
	summary := SweepSummary{Outcomes: make(map[services.OutcomeKind]int)}

	candidates, err := s.payments.FindStale(ctx, s.now().Add(-s.staleAfter), s.batchSize)
	if err != nil {
		s.logger.Error("failed to fetch stale payments", "error", err)
		return summary
	}
	summary.Candidates = len(candidates)
	if len(candidates) == 0 {
		return summary
	}

	s.logger.Info("sweeping stale payments", "count", len(candidates))

	for _, p := range candidates {
		if ctx.Err() != nil {
			break
		}

		outcome, err := s.reconciler.Reconcile(ctx, p.Reference)
		if err != nil {
			summary.Errors++
			s.logger.Error("sweep reconciliation failed",
				"reference", p.Reference,
				"status", p.Status,
				"category", application.CategorizeError(err),
				"error", err,
			)
			continue
		}

		summary.Outcomes[outcome.Kind]++
		s.logger.Debug("swept payment", "reference", p.Reference, "outcome", outcome.Kind)
	}

	return summary
}
