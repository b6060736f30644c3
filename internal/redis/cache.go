package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Key patterns:
// - conversation:{conv_id}:participants - participant ids, used for membership checks

type CacheConfig struct {
	ConversationTTL time.Duration
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		ConversationTTL: 5 * time.Minute,
	}
}

type CacheStore struct {
	client *goredis.Client
	config CacheConfig
}

func NewCacheStore(client *goredis.Client, config CacheConfig) *CacheStore {
	return &CacheStore{
		client: client,
		config: config,
	}
}

func participantsKey(conversationID uuid.UUID) string {
	return fmt.Sprintf("conversation:%s:participants", conversationID.String())
}

// GetConversationParticipants returns the cached participant ids. A miss returns nil, false.
func (c *CacheStore) GetConversationParticipants(ctx context.Context, conversationID uuid.UUID) ([]string, bool, error) {
	data, err := c.client.Get(ctx, participantsKey(conversationID)).Result()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var ids []string
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, false, err
	}
	return ids, true, nil
}

func (c *CacheStore) SetConversationParticipants(ctx context.Context, conversationID uuid.UUID, participantIDs []string) error {
	data, err := json.Marshal(participantIDs)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, participantsKey(conversationID), data, c.config.ConversationTTL).Err()
}

func (c *CacheStore) InvalidateConversationParticipants(ctx context.Context, conversationID uuid.UUID) error {
	return c.client.Del(ctx, participantsKey(conversationID)).Err()
}
