package websocket

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/models"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBus relays snapshot events through a redis channel so sessions
// connected to other instances receive them. Every instance, the
// publisher included, delivers events from its subscription.
type RedisBus struct {
	client  goredis.UniversalClient
	channel string
	hub     *Hub
	logger  zerolog.Logger
}

// NewRedisBus creates a bus on channel delivering to hub
func NewRedisBus(client goredis.UniversalClient, channel string, hub *Hub, logger zerolog.Logger) *RedisBus {
	return &RedisBus{client: client, channel: channel, hub: hub, logger: logger}
}

// Publish sends the event to the channel. When redis is unreachable the
// event is delivered to local sessions only.
func (b *RedisBus) Publish(ctx context.Context, event models.SnapshotEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to marshal snapshot event")
		return
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.logger.Warn().Err(err).Str("channel", b.channel).Msg("Redis publish failed, delivering locally")
		b.hub.Publish(ctx, event)
	}
}

// Run forwards channel messages to the hub until ctx is cancelled
func (b *RedisBus) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event models.SnapshotEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn().Err(err).Msg("Dropping malformed snapshot event")
				continue
			}
			b.hub.Publish(ctx, event)
		}
	}
}
