package events_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DanielPopoola/powervend/internal/application"
	"github.com/DanielPopoola/powervend/internal/config"
	"github.com/DanielPopoola/powervend/internal/infrastructure/events"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewEvent(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")

	event, err := events.NewEvent(ctx, application.EventTokenIssued, "ref-1", application.TokenIssuedData{
		Reference: "ref-1",
		Token:     "12345678901234567890",
		Units:     "18.18",
	})

	require.NoError(t, err)
	assert.Len(t, event.ID, 26)
	assert.Equal(t, "token.issued", event.Type)
	assert.Equal(t, "payment", event.AggregateType)
	assert.Equal(t, "req-42", event.CorrelationID)
	assert.Equal(t, "events.token.issued", events.Subject(event.Type))

	var data application.TokenIssuedData
	require.NoError(t, event.DecodeData(&data))
	assert.Equal(t, "18.18", data.Units)
}

func TestNoopPublisher(t *testing.T) {
	p := events.NewNoopPublisher(quietLogger())
	assert.NoError(t, p.Publish(context.Background(), application.EventPaymentFailed, "ref-1", nil))
}

func TestPublisher_JetStream(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2.10-alpine",
			Cmd:          []string{"-js"},
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4222")
	require.NoError(t, err)

	client, err := events.Connect(config.NATSConfig{
		URL:           fmt.Sprintf("nats://%s:%s", host, port.Port()),
		Name:          "powervend-test",
		MaxReconnects: 1,
		ReconnectWait: time.Second,
	}, quietLogger())
	require.NoError(t, err)
	t.Cleanup(client.Close)

	require.NoError(t, client.Ping(ctx))

	stream, err := client.EnsureStream(ctx, "POWERVEND")
	require.NoError(t, err)

	publisher := events.NewPublisher(client, quietLogger())
	err = publisher.Publish(ctx, application.EventTokenIssued, "ref-1", application.TokenIssuedData{
		Reference: "ref-1",
		Token:     "12345678901234567890",
		Units:     "100.00",
	})
	require.NoError(t, err)

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject: "events.token.issued",
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	require.NoError(t, err)

	batch, err := consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
	require.NoError(t, err)

	var received []jetstream.Msg
	for msg := range batch.Messages() {
		received = append(received, msg)
		require.NoError(t, msg.Ack())
	}
	require.Len(t, received, 1)

	var event events.Event
	require.NoError(t, json.Unmarshal(received[0].Data(), &event))
	assert.Equal(t, "ref-1", event.AggregateID)

	var data application.TokenIssuedData
	require.NoError(t, event.DecodeData(&data))
	assert.Equal(t, "100.00", data.Units)
}
