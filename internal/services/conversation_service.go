package services

import (
	"context"
	"errors"
	"time"

	"relay-chat/internal/domain"
	"relay-chat/internal/domain/conversation"
	"relay-chat/internal/domain/message"
	"relay-chat/internal/repository"
	relay_errors "relay-chat/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ParticipantCache keeps participant ids of hot conversations out of the database.
type ParticipantCache interface {
	GetConversationParticipants(ctx context.Context, conversationID uuid.UUID) ([]string, bool, error)
	SetConversationParticipants(ctx context.Context, conversationID uuid.UUID, participantIDs []string) error
	InvalidateConversationParticipants(ctx context.Context, conversationID uuid.UUID) error
}

type ConversationService struct {
	repo     repository.ConversationRepository
	messages repository.MessageRepository
	cache    ParticipantCache
	log      *zap.Logger
}

func NewConversationService(repo repository.ConversationRepository, messages repository.MessageRepository, cache ParticipantCache, log *zap.Logger) *ConversationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ConversationService{repo: repo, messages: messages, cache: cache, log: log}
}

type UserView struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Avatar   int    `json:"avatar"`
	IsOnline bool   `json:"isOnline"`
}

type LastMessageView struct {
	Content   string             `json:"content"`
	Type      domain.MessageType `json:"type"`
	SenderID  string             `json:"senderId"`
	CreatedAt time.Time          `json:"createdAt"`
}

type ConversationSummary struct {
	ID              uuid.UUID               `json:"id"`
	Type            domain.ConversationType `json:"type"`
	Name            *string                 `json:"name"`
	Image           *string                 `json:"image"`
	BackgroundImage *string                 `json:"backgroundImage"`
	UpdatedAt       time.Time               `json:"updatedAt"`
	OtherUser       *UserView               `json:"otherUser"`
	LastMessage     *LastMessageView        `json:"lastMessage"`
	UnreadCount     int64                   `json:"unreadCount"`
}

type ConversationHeader struct {
	ID                uuid.UUID               `json:"id"`
	Type              domain.ConversationType `json:"type"`
	Name              string                  `json:"name"`
	Avatar            int                     `json:"avatar"`
	Image             *string                 `json:"image"`
	OtherUserID       string                  `json:"otherUserId,omitempty"`
	LastReadMessageID *uuid.UUID              `json:"lastReadMessageId"`
	BackgroundImage   *string                 `json:"backgroundImage"`
}

func (s *ConversationService) FindOrCreatePrivate(ctx context.Context, a, b string, at time.Time) (conversation.Conversation, bool, error) {
	if a == "" || b == "" || a == b {
		return conversation.Conversation{}, false, relay_errors.ErrInvalidParticipantCount
	}
	return s.repo.FindOrCreatePrivate(ctx, a, b, at)
}

func (s *ConversationService) CreateGroup(ctx context.Context, name string, userIDs []string, at time.Time) (conversation.Conversation, error) {
	if len(userIDs) < 3 {
		return conversation.Conversation{}, relay_errors.ErrInvalidParticipantCount
	}
	c := conversation.Conversation{Name: &name, CreatedAt: at, UpdatedAt: at}
	if err := s.repo.CreateGroup(ctx, &c, userIDs); err != nil {
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (s *ConversationService) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	return s.repo.GetByID(ctx, id)
}

// Touch bumps updatedAt so conversation lists reorder by recency.
func (s *ConversationService) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.repo.Touch(ctx, id, at)
}

func (s *ConversationService) SetReadCursor(ctx context.Context, userID string, conversationID, messageID uuid.UUID) error {
	return s.repo.SetReadCursor(ctx, userID, conversationID, messageID)
}

// ParticipantIDs returns the member ids, served from the cache when possible.
func (s *ConversationService) ParticipantIDs(ctx context.Context, conversationID uuid.UUID) ([]string, error) {
	if s.cache != nil {
		ids, hit, err := s.cache.GetConversationParticipants(ctx, conversationID)
		if err != nil {
			s.log.Warn("participant cache read failed", zap.String("conversation_id", conversationID.String()), zap.Error(err))
		} else if hit {
			return ids, nil
		}
	}

	participants, err := s.repo.ListParticipants(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}
	if len(ids) == 0 {
		return nil, relay_errors.ErrConversationNotFound
	}

	if s.cache != nil {
		if err := s.cache.SetConversationParticipants(ctx, conversationID, ids); err != nil {
			s.log.Warn("participant cache write failed", zap.String("conversation_id", conversationID.String()), zap.Error(err))
		}
	}
	return ids, nil
}

// RequireParticipant fails with ErrNotAParticipant unless userID belongs to the conversation.
func (s *ConversationService) RequireParticipant(ctx context.Context, conversationID uuid.UUID, userID string) error {
	ids, err := s.ParticipantIDs(ctx, conversationID)
	if err != nil {
		if errors.Is(err, relay_errors.ErrConversationNotFound) {
			return relay_errors.ErrNotAParticipant
		}
		return err
	}
	for _, id := range ids {
		if id == userID {
			return nil
		}
	}
	return relay_errors.ErrNotAParticipant
}

// UnreadCount counts messages from others newer than the read cursor, or newer than the
// join time when no cursor is set.
func (s *ConversationService) UnreadCount(ctx context.Context, userID string, conversationID uuid.UUID) (int64, error) {
	p, err := s.repo.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}

	after := p.JoinedAt
	var afterID *uuid.UUID
	if p.LastReadMessageID != nil {
		cursor, err := s.messages.GetByID(ctx, *p.LastReadMessageID)
		switch {
		case err == nil:
			after, afterID = cursor.CreatedAt, &cursor.ID
		case errors.Is(err, relay_errors.ErrMessageNotFound):
			// cursor pointing at a vanished message counts from the join time
		default:
			return 0, err
		}
	}
	return s.messages.CountAfter(ctx, conversationID, userID, after, afterID)
}

func (s *ConversationService) ListForUser(ctx context.Context, userID string) ([]ConversationSummary, error) {
	conversations, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]ConversationSummary, 0, len(conversations))
	for _, c := range conversations {
		summary := ConversationSummary{
			ID:              c.ID,
			Type:            c.Type,
			Name:            c.Name,
			Image:           c.Image,
			BackgroundImage: c.BackgroundImage,
			UpdatedAt:       c.UpdatedAt,
		}
		if !c.IsGroup() {
			if other, ok := c.Other(userID); ok && other.User != nil {
				summary.OtherUser = &UserView{
					UserID:   other.User.ID,
					Username: other.User.DisplayName(),
					Avatar:   other.User.Avatar,
					IsOnline: other.User.IsOnline,
				}
			}
		}

		last, err := s.messages.Latest(ctx, c.ID)
		switch {
		case err == nil:
			summary.LastMessage = &LastMessageView{
				Content:   last.Content,
				Type:      last.Type,
				SenderID:  last.SenderID,
				CreatedAt: last.CreatedAt,
			}
		case !errors.Is(err, relay_errors.ErrMessageNotFound):
			return nil, err
		}

		unread, err := s.UnreadCount(ctx, userID, c.ID)
		if err != nil {
			return nil, err
		}
		summary.UnreadCount = unread
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *ConversationService) Header(ctx context.Context, userID string, conversationID uuid.UUID) (ConversationHeader, error) {
	c, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return ConversationHeader{}, err
	}

	header := ConversationHeader{
		ID:              c.ID,
		Type:            c.Type,
		Image:           c.Image,
		BackgroundImage: c.BackgroundImage,
	}
	member := false
	for _, p := range c.Participants {
		if p.UserID == userID {
			member = true
			header.LastReadMessageID = p.LastReadMessageID
		}
	}
	if !member {
		return ConversationHeader{}, relay_errors.ErrNotAParticipant
	}

	if c.IsGroup() {
		if c.Name != nil {
			header.Name = *c.Name
		}
		return header, nil
	}
	if other, ok := c.Other(userID); ok && other.User != nil {
		header.Name = other.User.DisplayName()
		header.Avatar = other.User.Avatar
		header.OtherUserID = other.UserID
	}
	return header, nil
}

func (s *ConversationService) UpdateBackground(ctx context.Context, userID string, conversationID uuid.UUID, backgroundImage string) error {
	if err := s.RequireParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	return s.repo.UpdateSettings(ctx, conversationID, repository.ConversationChanges{BackgroundImage: &backgroundImage})
}

func (s *ConversationService) Media(ctx context.Context, userID string, conversationID uuid.UUID) ([]message.Message, error) {
	if err := s.RequireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.messages.ListByType(ctx, conversationID, domain.MessageTypeImage)
}

// RequireGroup loads the conversation and checks that userID may administer it.
func (s *ConversationService) RequireGroup(ctx context.Context, conversationID uuid.UUID, userID string) (conversation.Conversation, error) {
	c, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if _, ok := participantOf(c, userID); !ok {
		return conversation.Conversation{}, relay_errors.ErrNotAParticipant
	}
	if !c.IsGroup() {
		return conversation.Conversation{}, relay_errors.ErrNotAGroup
	}
	return c, nil
}

func (s *ConversationService) Rename(ctx context.Context, conversationID uuid.UUID, name string) error {
	return s.repo.UpdateSettings(ctx, conversationID, repository.ConversationChanges{Name: &name})
}

func (s *ConversationService) SetImage(ctx context.Context, conversationID uuid.UUID, image string) error {
	return s.repo.UpdateSettings(ctx, conversationID, repository.ConversationChanges{Image: &image})
}

func (s *ConversationService) AddMember(ctx context.Context, conversationID uuid.UUID, userID string, at time.Time) error {
	if err := s.repo.AddParticipant(ctx, conversationID, userID, at); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.InvalidateConversationParticipants(ctx, conversationID); err != nil {
			s.log.Warn("participant cache invalidation failed", zap.String("conversation_id", conversationID.String()), zap.Error(err))
		}
	}
	return nil
}

func participantOf(c conversation.Conversation, userID string) (conversation.Participant, bool) {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return conversation.Participant{}, false
}
