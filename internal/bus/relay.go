package bus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"trackguard/pkg/platform/backoff"
)

// DefaultRelayChannel is the Redis channel the relay bridges.
const DefaultRelayChannel = "trackguard:events"

// Relay bridges the local bus to a Redis channel so observers connected to
// other instances see this instance's events. Each relay stamps outgoing
// events with its instance ID and drops its own events on the way back in.
type Relay struct {
	bus      *Bus
	client   redis.UniversalClient
	channel  string
	instance string
	logger   *slog.Logger
	policy   backoff.Policy
}

// NewRelay builds a relay over the given Redis client.
func NewRelay(b *Bus, client redis.UniversalClient, channel string, logger *slog.Logger) *Relay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &Relay{
		bus:      b,
		client:   client,
		channel:  channel,
		instance: uuid.NewString(),
		logger:   logger,
		policy:   backoff.DefaultPolicy(),
	}
}

// Run pumps events both ways until ctx is canceled or the reconnect budget
// is exhausted. It is meant to run in its own goroutine for the process
// lifetime.
func (r *Relay) Run(ctx context.Context) error {
	local, cancel, err := r.bus.Subscribe("relay-" + r.instance)
	if err != nil {
		return err
	}
	defer cancel()

	// Outgoing: local events to Redis.
	go r.pumpOutgoing(ctx, local)

	// Incoming: remote events into the local bus, reconnecting with bounded
	// backoff. A terminal failure is surfaced, never retried forever.
	return r.policy.Retry(ctx, func(ctx context.Context) error {
		return r.consume(ctx)
	})
}

func (r *Relay) pumpOutgoing(ctx context.Context, local <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-local:
			if !ok {
				return
			}
			if ev.Origin != "" {
				// Already crossed the relay once; forwarding again would loop.
				continue
			}
			ev.Origin = r.instance
			raw, err := json.Marshal(ev)
			if err != nil {
				r.logger.Error("relay marshal failed", "error", err)
				continue
			}
			if err := r.client.Publish(ctx, r.channel, raw).Err(); err != nil {
				r.logger.Warn("relay publish failed", "error", err)
			}
		}
	}
}

func (r *Relay) consume(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return redis.ErrClosed
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.logger.Warn("relay received malformed event", "error", err)
				continue
			}
			if ev.Origin == r.instance {
				continue
			}
			r.bus.Publish(ev)
		}
	}
}
