package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"relay-chat/internal/domain"
	"relay-chat/internal/domain/conversation"
	"relay-chat/internal/domain/message"
	"relay-chat/internal/domain/outbox"
	"relay-chat/internal/domain/user"
)

type UserRepository interface {
	// Upsert inserts u when no row with its id exists and returns the stored row either way.
	Upsert(ctx context.Context, u *user.User) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByUsername(ctx context.Context, username string) (user.User, error)
	Onboard(ctx context.Context, id, username string, avatar int) (user.User, error)
	UpdateAvatar(ctx context.Context, id string, avatar int) (user.User, error)
	SetOnline(ctx context.Context, id string, online bool) error
	TouchLastPing(ctx context.Context, id string, at time.Time) error
}

type ConversationRepository interface {
	// FindOrCreatePrivate returns the PRIVATE conversation between a and b, creating it when
	// absent. The bool reports whether this call created it.
	FindOrCreatePrivate(ctx context.Context, a, b string, at time.Time) (conversation.Conversation, bool, error)
	CreateGroup(ctx context.Context, c *conversation.Conversation, userIDs []string) error
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	SetReadCursor(ctx context.Context, userID string, conversationID, messageID uuid.UUID) error
	GetParticipant(ctx context.Context, conversationID uuid.UUID, userID string) (conversation.Participant, error)
	ListParticipants(ctx context.Context, conversationID uuid.UUID) ([]conversation.Participant, error)
	AddParticipant(ctx context.Context, conversationID uuid.UUID, userID string, at time.Time) error
	ListForUser(ctx context.Context, userID string) ([]conversation.Conversation, error)
	UpdateSettings(ctx context.Context, id uuid.UUID, changes ConversationChanges) error
}

// ConversationChanges lists the mutable display settings; nil fields are left untouched.
type ConversationChanges struct {
	Name            *string
	Image           *string
	BackgroundImage *string
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	Page(ctx context.Context, conversationID uuid.UUID, page, pageSize int) ([]message.Message, int64, error)
	Latest(ctx context.Context, conversationID uuid.UUID) (message.Message, error)
	LatestFromOthers(ctx context.Context, conversationID uuid.UUID, userID string) (message.Message, error)
	// CountAfter counts messages not sent by excludeSenderID that come after the position
	// (after, afterID). A nil afterID compares by time only.
	CountAfter(ctx context.Context, conversationID uuid.UUID, excludeSenderID string, after time.Time, afterID *uuid.UUID) (int64, error)
	ListByType(ctx context.Context, conversationID uuid.UUID, t domain.MessageType) ([]message.Message, error)

	UpsertReaction(ctx context.Context, r *message.Reaction) (message.Reaction, error)
	DeleteReaction(ctx context.Context, messageID uuid.UUID, userID string) error
	ListReactions(ctx context.Context, messageID uuid.UUID) ([]message.Reaction, error)
}

type FriendRepository interface {
	CreateRequest(ctx context.Context, r *user.FriendRequest) error
	FindPending(ctx context.Context, senderID, receiverID string) (user.FriendRequest, error)
	HasPendingBetween(ctx context.Context, a, b string) (bool, error)
	Accept(ctx context.Context, requestID uuid.UUID, at time.Time) error
	Reject(ctx context.Context, requestID uuid.UUID) error
	ListPending(ctx context.Context, receiverID string) ([]user.FriendRequest, error)
	CountPending(ctx context.Context, receiverID string) (int64, error)
	AreFriends(ctx context.Context, a, b string) (bool, error)
	ListFriendships(ctx context.Context, userID string) ([]user.Friendship, error)
	CountFriends(ctx context.Context, userID string) (int64, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, event *outbox.OutboxEvent) error
	GetPending(ctx context.Context, limit int) ([]outbox.OutboxEvent, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkRetry(ctx context.Context, id uuid.UUID, errMsg string) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	DeleteCompletedBefore(ctx context.Context, before time.Time) (int64, error)
}
