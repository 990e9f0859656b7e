package paystack

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/DanielPopoola/powervend/internal/application"
	"github.com/DanielPopoola/powervend/internal/config"
)

// RetryClient retries transient gateway failures with exponential backoff.
type RetryClient struct {
	inner      application.GatewayClient
	baseDelay  time.Duration
	maxDelay   time.Duration
	maxRetries int
	logger     *slog.Logger
}

var _ application.GatewayClient = (*RetryClient)(nil)

func NewRetryClient(inner application.GatewayClient, cfg config.RetryConfig, logger *slog.Logger) *RetryClient {
	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &RetryClient{
		inner:      inner,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Initialize is retried only when Paystack throttled the request or never
// answered. A 5xx may already have opened a checkout.
func (r *RetryClient) Initialize(ctx context.Context, req application.InitializeRequest) (*application.InitializeResponse, error) {
	return retry(r, ctx, "initialize", isRetryableInitialize, func(ctx context.Context) (*application.InitializeResponse, error) {
		return r.inner.Initialize(ctx, req)
	})
}

func (r *RetryClient) Verify(ctx context.Context, reference string) (*application.VerifyResponse, error) {
	return retry(r, ctx, "verify", isRetryable, func(ctx context.Context) (*application.VerifyResponse, error) {
		return r.inner.Verify(ctx, reference)
	})
}

func retry[T any](r *RetryClient, ctx context.Context, op string, retryable func(error) bool, operation func(ctx context.Context) (*T, error)) (*T, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := operation(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !retryable(err) {
			return nil, err
		}

		if attempt == r.maxRetries-1 {
			break
		}

		delay := r.backoff(attempt)
		r.logger.Warn("gateway call failed, retrying",
			"op", op,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("maximum retries exceeded: %w", lastErr)
}

func isRetryable(err error) bool {
	if gwErr, ok := application.IsGatewayError(err); ok {
		return gwErr.IsRetryable()
	}
	return application.IsRetryable(err)
}

func isRetryableInitialize(err error) bool {
	if gwErr, ok := application.IsGatewayError(err); ok {
		return gwErr.StatusCode == http.StatusTooManyRequests
	}
	return application.IsRetryable(err)
}

// backoff doubles the base delay per attempt, caps it at maxDelay and adds up
// to one base delay of jitter.
func (r *RetryClient) backoff(attempt int) time.Duration {
	delay := r.baseDelay << attempt
	if r.maxDelay > 0 && (delay > r.maxDelay || delay <= 0) {
		delay = r.maxDelay
	}
	if r.baseDelay > 0 {
		delay += time.Duration(rand.Int64N(int64(r.baseDelay)))
	}
	return delay
}
