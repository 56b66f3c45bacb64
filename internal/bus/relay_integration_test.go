//go:build integration

package bus_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trackguard/internal/bus"
	"trackguard/pkg/testutil/containers"
)

// TestRelayBridgesInstances verifies that an event published on one instance
// reaches subscribers of another through Redis, and does not loop back.
func TestRelayBridgesInstances(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	rc := containers.NewRedisContainer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.Default()
	busA := bus.New(16, logger, nil)
	busB := bus.New(16, logger, nil)
	defer busA.Close()
	defer busB.Close()

	relayA := bus.NewRelay(busA, rc.Client, "trackguard:test:events", logger)
	relayB := bus.NewRelay(busB, rc.Client, "trackguard:test:events", logger)
	go func() { _ = relayA.Run(ctx) }()
	go func() { _ = relayB.Run(ctx) }()

	// Both relays must be subscribed before publishing.
	require.Eventually(t, func() bool {
		n, err := rc.Client.PubSubNumSub(ctx, "trackguard:test:events").Result()
		return err == nil && n["trackguard:test:events"] >= 2
	}, 5*time.Second, 50*time.Millisecond)

	remote, cancelSub, err := busB.Subscribe("observer")
	require.NoError(t, err)
	defer cancelSub()

	loopback, cancelLoop, err := busA.Subscribe("loopback-observer")
	require.NoError(t, err)
	defer cancelLoop()

	ev, err := bus.NewEvent(bus.TypeAnalysisUpdate, "ZONE-001", map[string]string{"k": "v"})
	require.NoError(t, err)
	busA.Publish(ev)

	// Local delivery is direct and unstamped.
	select {
	case got := <-loopback:
		require.Empty(t, got.Origin)
	case <-time.After(5 * time.Second):
		t.Fatal("local subscriber did not receive the event")
	}

	// Remote delivery crosses the relay and carries the origin stamp.
	select {
	case got := <-remote:
		require.Equal(t, bus.TypeAnalysisUpdate, got.Type)
		require.NotEmpty(t, got.Origin, "relayed events are stamped with the publishing instance")
	case <-time.After(5 * time.Second):
		t.Fatal("remote subscriber did not receive the relayed event")
	}

	// The publishing instance must not re-import its own event.
	select {
	case extra := <-loopback:
		t.Fatalf("unexpected loopback event: %+v", extra)
	case <-time.After(500 * time.Millisecond):
	}
}
