package events

import (
	"context"
	"log/slog"
)

// NoopPublisher logs events instead of sending them. It backs deployments
// without a broker.
type NoopPublisher struct {
	logger *slog.Logger
}

func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(ctx context.Context, eventType, aggregateID string, _ any) error {
	p.logger.DebugContext(ctx, "event dropped, no broker configured",
		"type", eventType,
		"aggregate_id", aggregateID,
	)
	return nil
}
