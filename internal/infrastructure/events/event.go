package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
)

const aggregatePayment = "payment"

// Event is the envelope published for every issuance outcome.
type Event struct {
	ID            string          `json:"event_id"`
	Type          string          `json:"type"`
	Version       int             `json:"version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent wraps data for a payment aggregate. The request id on ctx, when
// present, becomes the correlation id.
func NewEvent(ctx context.Context, eventType, aggregateID string, data any) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            ulid.Make().String(),
		Type:          eventType,
		Version:       1,
		OccurredAt:    time.Now().UTC(),
		CorrelationID: middleware.GetReqID(ctx),
		AggregateType: aggregatePayment,
		AggregateID:   aggregateID,
		Data:          dataBytes,
	}, nil
}

func (e *Event) DecodeData(v any) error {
	return json.Unmarshal(e.Data, v)
}

// Subject is the NATS subject an event type is published on.
func Subject(eventType string) string {
	return "events." + eventType
}
