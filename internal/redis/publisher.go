package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Publisher pushes payloads to Redis pub/sub channels and subscribes to them. Presence
// changes go to presence:{user_id}; websocket fan-out uses its own channel.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

// Subscribe calls handler for every message on channels until ctx is done.
func (p *Publisher) Subscribe(ctx context.Context, channels []string, handler func(channel string, payload []byte)) error {
	sub := p.client.Subscribe(ctx, channels...)
	defer sub.Close()

	// wait for the subscription to be confirmed so nothing published afterwards is missed
	if _, err := sub.Receive(ctx); err != nil {
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
			handler(msg.Channel, []byte(msg.Payload))
		}
	}
}
