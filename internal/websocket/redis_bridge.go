package websocket

import (
	"context"
	"encoding/json"

	"relay-chat/internal/events"

	"go.uber.org/zap"
)

type Subscriber interface {
	Subscribe(ctx context.Context, channels []string, handler func(channel string, payload []byte)) error
}

// RedisBridge delivers fan-out frames published by any process to this process's hub.
type RedisBridge struct {
	subscriber Subscriber
	hub        *Hub
}

func NewRedisBridge(subscriber Subscriber, hub *Hub) *RedisBridge {
	return &RedisBridge{subscriber: subscriber, hub: hub}
}

func (b *RedisBridge) Run(ctx context.Context) error {
	return b.subscriber.Subscribe(ctx, []string{FanoutChannel}, func(channel string, payload []byte) {
		var frame fanoutFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			b.hub.logger.Warn("malformed fanout frame", "", "", zap.String("channel", channel), zap.Error(err))
			return
		}
		target := events.Target{Kind: frame.Kind, Room: frame.Room, ConnID: frame.ConnID}
		b.hub.Deliver(target, frame.Event, frame.Payload)
	})
}
