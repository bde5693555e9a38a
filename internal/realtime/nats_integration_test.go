//go:build integration

package realtime

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startNATS(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2.10-alpine",
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	url, err := container.PortEndpoint(ctx, "4222/tcp", "nats")
	require.NoError(t, err)
	return url
}

func TestIntegrationNATSBrokerSharesEventsAcrossInstances(t *testing.T) {
	url := startNATS(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	server1, err := NewNATSBroker(url, logger)
	require.NoError(t, err)
	defer server1.Close()
	server2, err := NewNATSBroker(url, logger)
	require.NoError(t, err)
	defer server2.Close()

	ctx := context.Background()
	events, cancel, err := server1.Subscribe(ctx, RoomTopic(1), UserTopic(7))
	require.NoError(t, err)

	other, err := NewEvent(EventMessageCreated, RoomTopic(2), map[string]string{"content": "elsewhere"})
	require.NoError(t, err)
	require.NoError(t, server2.Publish(ctx, other))

	ev, err := NewEvent(EventMessageCreated, RoomTopic(1), map[string]string{"content": "hi"})
	require.NoError(t, err)
	require.NoError(t, server2.Publish(ctx, ev))

	select {
	case got := <-events:
		assert.Equal(t, RoomTopic(1), got.Topic)
		assert.Equal(t, EventMessageCreated, got.Type)
		assert.JSONEq(t, `{"content":"hi"}`, string(got.Payload))
	case <-time.After(5 * time.Second):
		t.Fatal("expected an event from the other instance")
	}

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok, "cancel closes the channel")
	case <-time.After(5 * time.Second):
		t.Fatal("channel was not closed after cancel")
	}
}
