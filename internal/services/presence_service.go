package services

import (
	"context"
	"sync"
	"time"

	"relay-chat/internal/redis"
	"relay-chat/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PresenceMirror is the ephemeral side of presence: heartbeats and live connection sets.
type PresenceMirror interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
	Heartbeat(ctx context.Context, userID string) error
	AddConnection(ctx context.Context, userID, connID string) error
	RemoveConnection(ctx context.Context, userID, connID string) (int64, error)
	CleanupStalePresence(ctx context.Context, maxAge time.Duration) ([]string, error)
	GetPresence(ctx context.Context, userID string) (*redis.PresenceStatus, error)
	GetOnlineCount(ctx context.Context) (int64, error)
}

type Activity struct {
	IsOnline bool
	LastPing *time.Time
}

// PresenceService keeps users.is_online and last_ping in step with live connections.
// Every write is advisory: failures are logged and never returned to the caller.
type PresenceService struct {
	users         repository.UserRepository
	conversations repository.ConversationRepository
	mirror        PresenceMirror
	log           *zap.Logger
	now           func() time.Time

	mu    sync.Mutex
	conns map[string]int
}

func NewPresenceService(users repository.UserRepository, conversations repository.ConversationRepository, mirror PresenceMirror, log *zap.Logger) *PresenceService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PresenceService{
		users:         users,
		conversations: conversations,
		mirror:        mirror,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
		conns:         make(map[string]int),
	}
}

func (s *PresenceService) SetOnline(ctx context.Context, userID string, online bool) {
	if err := s.users.SetOnline(ctx, userID, online); err != nil {
		s.log.Warn("set online failed", zap.String("user_id", userID), zap.Bool("online", online), zap.Error(err))
	}
	if s.mirror == nil {
		return
	}
	var err error
	if online {
		err = s.mirror.SetOnline(ctx, userID)
	} else {
		err = s.mirror.SetOffline(ctx, userID)
	}
	if err != nil {
		s.log.Warn("presence mirror update failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *PresenceService) TouchLastPing(ctx context.Context, userID string) {
	if err := s.users.TouchLastPing(ctx, userID, s.now()); err != nil {
		s.log.Warn("touch last ping failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *PresenceService) Heartbeat(ctx context.Context, userID string) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Heartbeat(ctx, userID); err != nil {
		s.log.Warn("heartbeat failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// Connect registers connID for userID and marks the user online.
func (s *PresenceService) Connect(ctx context.Context, userID, connID string) {
	s.mu.Lock()
	s.conns[userID]++
	s.mu.Unlock()

	if s.mirror != nil {
		if err := s.mirror.AddConnection(ctx, userID, connID); err != nil {
			s.log.Warn("add connection failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	s.SetOnline(ctx, userID, true)
}

// Disconnect forgets connID. When it was the user's last connection on this process the
// user goes offline and last_ping is stamped. It reports whether the user went offline.
func (s *PresenceService) Disconnect(ctx context.Context, userID, connID string) bool {
	s.mu.Lock()
	s.conns[userID]--
	remaining := int64(s.conns[userID])
	if remaining <= 0 {
		delete(s.conns, userID)
	}
	s.mu.Unlock()

	if s.mirror != nil {
		left, err := s.mirror.RemoveConnection(ctx, userID, connID)
		if err != nil {
			s.log.Warn("remove connection failed", zap.String("user_id", userID), zap.Error(err))
		} else {
			remaining = left
		}
	}
	if remaining > 0 {
		return false
	}

	s.SetOnline(ctx, userID, false)
	s.TouchLastPing(ctx, userID)
	return true
}

// GetActivity resolves the other participant's presence in a private conversation.
// The heartbeat-backed mirror decides isOnline when it answers; the users row is the
// fallback. ok is false for groups.
func (s *PresenceService) GetActivity(ctx context.Context, conversationID uuid.UUID, excludingUserID string) (Activity, bool, error) {
	c, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return Activity{}, false, err
	}
	if c.IsGroup() {
		return Activity{}, false, nil
	}
	other, ok := c.Other(excludingUserID)
	if !ok {
		return Activity{}, false, nil
	}
	u, err := s.users.GetByID(ctx, other.UserID)
	if err != nil {
		return Activity{}, false, err
	}
	activity := Activity{IsOnline: u.IsOnline, LastPing: u.LastPing}
	if s.mirror != nil {
		status, err := s.mirror.GetPresence(ctx, other.UserID)
		if err != nil {
			s.log.Warn("presence mirror read failed", zap.String("user_id", other.UserID), zap.Error(err))
		} else {
			activity.IsOnline = status.IsOnline
		}
	}
	return activity, true, nil
}

// OnlineCount reports how many users are online. Without a mirror only this process's
// connections are counted.
func (s *PresenceService) OnlineCount(ctx context.Context) (int64, error) {
	if s.mirror == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return int64(len(s.conns)), nil
	}
	return s.mirror.GetOnlineCount(ctx)
}

// Sweep marks users offline whose heartbeat is older than maxAge.
func (s *PresenceService) Sweep(ctx context.Context, maxAge time.Duration) int {
	if s.mirror == nil {
		return 0
	}
	stale, err := s.mirror.CleanupStalePresence(ctx, maxAge)
	if err != nil {
		s.log.Warn("presence sweep failed", zap.Error(err))
		return 0
	}
	for _, userID := range stale {
		if err := s.users.SetOnline(ctx, userID, false); err != nil {
			s.log.Warn("set offline failed", zap.String("user_id", userID), zap.Error(err))
		}
		s.TouchLastPing(ctx, userID)
	}
	return len(stale)
}
