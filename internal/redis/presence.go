package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// PresenceStatus is the ephemeral view of a user's presence.
type PresenceStatus struct {
	UserID   string    `json:"userId"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

// PresenceStore mirrors online state into Redis so every gateway process sees the same
// connections, heartbeats and typing sets.
type PresenceStore struct {
	client    *goredis.Client
	publisher *Publisher
	ttl       time.Duration
	now       func() time.Time
}

const (
	presenceKeyPrefix    = "presence:"
	presenceOnlineSet    = "presence:online"
	presenceHeartbeatKey = "presence:heartbeat"
	connectionsKeyPrefix = "connections:"
	typingKeyPrefix      = "typing:"
	typingTTL            = 10 * time.Second
)

func NewPresenceStore(client *goredis.Client, publisher *Publisher, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &PresenceStore{
		client:    client,
		publisher: publisher,
		ttl:       ttl,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (p *PresenceStore) SetOnline(ctx context.Context, userID string) error {
	now := p.now()
	data, _ := json.Marshal(PresenceStatus{UserID: userID, IsOnline: true, LastSeen: now})

	pipe := p.client.Pipeline()
	pipe.Set(ctx, presenceKeyPrefix+userID, data, p.ttl)
	pipe.SAdd(ctx, presenceOnlineSet, userID)
	pipe.ZAdd(ctx, presenceHeartbeatKey, goredis.Z{Score: float64(now.Unix()), Member: userID})
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return p.publishPresenceEvent(ctx, userID, true, now)
}

func (p *PresenceStore) SetOffline(ctx context.Context, userID string) error {
	now := p.now()
	data, _ := json.Marshal(PresenceStatus{UserID: userID, IsOnline: false, LastSeen: now})

	pipe := p.client.Pipeline()
	// offline entries live longer so last-seen lookups keep working
	pipe.Set(ctx, presenceKeyPrefix+userID, data, 24*time.Hour)
	pipe.SRem(ctx, presenceOnlineSet, userID)
	pipe.ZRem(ctx, presenceHeartbeatKey, userID)
	pipe.Del(ctx, connectionsKeyPrefix+userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return p.publishPresenceEvent(ctx, userID, false, now)
}

// Heartbeat refreshes the presence TTL and the heartbeat score used by the sweeper.
func (p *PresenceStore) Heartbeat(ctx context.Context, userID string) error {
	pipe := p.client.Pipeline()
	pipe.Expire(ctx, presenceKeyPrefix+userID, p.ttl)
	pipe.ZAdd(ctx, presenceHeartbeatKey, goredis.Z{Score: float64(p.now().Unix()), Member: userID})
	_, err := pipe.Exec(ctx)
	return err
}

func (p *PresenceStore) GetPresence(ctx context.Context, userID string) (*PresenceStatus, error) {
	data, err := p.client.Get(ctx, presenceKeyPrefix+userID).Result()
	if err == goredis.Nil {
		return &PresenceStatus{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}

	var status PresenceStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (p *PresenceStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	return p.client.SIsMember(ctx, presenceOnlineSet, userID).Result()
}

func (p *PresenceStore) GetOnlineCount(ctx context.Context) (int64, error) {
	return p.client.SCard(ctx, presenceOnlineSet).Result()
}

// CleanupStalePresence marks offline every user whose last heartbeat is older than maxAge
// and returns their ids.
func (p *PresenceStore) CleanupStalePresence(ctx context.Context, maxAge time.Duration) ([]string, error) {
	threshold := p.now().Add(-maxAge).Unix()

	staleUsers, err := p.client.ZRangeByScore(ctx, presenceHeartbeatKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(threshold, 10),
	}).Result()
	if err != nil {
		return nil, err
	}

	for _, userID := range staleUsers {
		if err := p.SetOffline(ctx, userID); err != nil {
			return nil, err
		}
	}
	return staleUsers, nil
}

// AddConnection records one live socket of userID.
func (p *PresenceStore) AddConnection(ctx context.Context, userID, connID string) error {
	key := connectionsKeyPrefix + userID
	pipe := p.client.Pipeline()
	pipe.HSet(ctx, key, connID, p.now().Format(time.RFC3339))
	pipe.Expire(ctx, key, p.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// RemoveConnection forgets one socket of userID and returns how many remain.
func (p *PresenceStore) RemoveConnection(ctx context.Context, userID, connID string) (int64, error) {
	key := connectionsKeyPrefix + userID
	if err := p.client.HDel(ctx, key, connID).Err(); err != nil {
		return 0, err
	}
	return p.client.HLen(ctx, key).Result()
}

// TrackTyping adds or removes userID from the conversation's typing set. Entries expire on
// their own when a client never sends stop_typing.
func (p *PresenceStore) TrackTyping(ctx context.Context, conversationID, userID string, isTyping bool) error {
	key := typingKeyPrefix + conversationID
	if isTyping {
		pipe := p.client.Pipeline()
		pipe.SAdd(ctx, key, userID)
		pipe.Expire(ctx, key, typingTTL)
		_, err := pipe.Exec(ctx)
		return err
	}
	return p.client.SRem(ctx, key, userID).Err()
}

func (p *PresenceStore) GetTypingUsers(ctx context.Context, conversationID string) ([]string, error) {
	return p.client.SMembers(ctx, typingKeyPrefix+conversationID).Result()
}

func (p *PresenceStore) publishPresenceEvent(ctx context.Context, userID string, isOnline bool, at time.Time) error {
	if p.publisher == nil {
		return nil
	}

	data, err := json.Marshal(map[string]interface{}{
		"userId":    userID,
		"isOnline":  isOnline,
		"timestamp": at.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return p.publisher.Publish(ctx, fmt.Sprintf("presence:%s", userID), data)
}
