package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/powervend/internal/application"
	"github.com/DanielPopoola/powervend/internal/config"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

var ErrNotConnected = errors.New("nats not connected")

// Client wraps a NATS connection with JetStream.
type Client struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

func Connect(cfg config.NATSConfig, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	logger.Info("NATS connection established", "url", conn.ConnectedUrl())

	return &Client{
		conn:   conn,
		js:     js,
		logger: logger,
	}, nil
}

func (c *Client) Close() {
	c.conn.Close()
}

func (c *Client) JetStream() jetstream.JetStream {
	return c.js
}

// Ping reports whether the connection is currently up.
func (c *Client) Ping(_ context.Context) error {
	if !c.conn.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// EnsureStream creates or updates the stream that captures every subject the
// service publishes.
func (c *Client) EnsureStream(ctx context.Context, name string) (jetstream.Stream, error) {
	subjects := []string{
		Subject(application.EventTokenIssued),
		Subject(application.EventPaymentFailed),
	}

	stream, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        name,
		Description: "prepaid token issuance outcomes",
		Subjects:    subjects,
		MaxAge:      7 * 24 * time.Hour,
		MaxBytes:    1 << 30,
		Replicas:    1,
		Retention:   jetstream.LimitsPolicy,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("creating/updating stream %s: %w", name, err)
	}

	c.logger.Info("stream ensured", "name", name, "subjects", subjects)
	return stream, nil
}

// Publisher sends events to JetStream.
type Publisher struct {
	client *Client
	logger *slog.Logger
}

var _ application.EventPublisher = (*Publisher)(nil)

func NewPublisher(client *Client, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger,
	}
}

// Publish uses the event id as the JetStream message id so the stream drops
// accidental republishes inside its duplicate window.
func (p *Publisher) Publish(ctx context.Context, eventType, aggregateID string, data any) error {
	event, err := NewEvent(ctx, eventType, aggregateID, data)
	if err != nil {
		return fmt.Errorf("building event: %w", err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	subject := Subject(eventType)
	if _, err := p.client.js.Publish(ctx, subject, payload, jetstream.WithMsgID(event.ID)); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}

	p.logger.Debug("event published",
		"event_id", event.ID,
		"type", event.Type,
		"subject", subject,
	)
	return nil
}
