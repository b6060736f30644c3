package services

import (
	"context"
	"errors"
	"time"

	"relay-chat/internal/domain"
	"relay-chat/internal/domain/message"
	"relay-chat/internal/repository"
	relay_errors "relay-chat/pkg/errors"

	"github.com/google/uuid"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 100
)

type MessageService struct {
	messageRepo repository.MessageRepository
	now         func() time.Time
}

func NewMessageService(messageRepo repository.MessageRepository) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type AppendInput struct {
	ConversationID uuid.UUID
	SenderID       string
	Content        string
	Type           domain.MessageType
	ReplyToID      *uuid.UUID
	// At overrides the creation time; zero means now.
	At time.Time
}

type MessagePage struct {
	Messages   []message.Message `json:"messages"`
	TotalCount int64             `json:"totalCount"`
	PageCount  int               `json:"pageCount"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
}

// Append persists a message and returns it with sender, reply target and reactions loaded.
// A reply must point at an existing message of the same conversation.
func (s *MessageService) Append(ctx context.Context, in AppendInput) (message.Message, error) {
	if in.Content == "" {
		return message.Message{}, relay_errors.Validation("content is required")
	}
	if in.Type == "" {
		in.Type = domain.MessageTypeText
	}

	if in.ReplyToID != nil {
		target, err := s.messageRepo.GetByID(ctx, *in.ReplyToID)
		if err != nil {
			if errors.Is(err, relay_errors.ErrMessageNotFound) {
				return message.Message{}, relay_errors.ErrReplyTargetNotFound
			}
			return message.Message{}, err
		}
		if target.ConversationID != in.ConversationID {
			return message.Message{}, relay_errors.ErrReplyTargetNotFound
		}
	}

	at := in.At
	if at.IsZero() {
		at = s.now()
	}
	m := &message.Message{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Content:        in.Content,
		Type:           in.Type,
		ReplyToID:      in.ReplyToID,
		CreatedAt:      at.UTC().Truncate(time.Microsecond),
	}
	if err := s.messageRepo.Create(ctx, m); err != nil {
		return message.Message{}, err
	}
	return s.messageRepo.GetByID(ctx, m.ID)
}

func (s *MessageService) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	return s.messageRepo.GetByID(ctx, id)
}

// Page returns the page-th newest slice of the conversation, oldest first.
func (s *MessageService) Page(ctx context.Context, conversationID uuid.UUID, page, pageSize int) (MessagePage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	messages, total, err := s.messageRepo.Page(ctx, conversationID, page, pageSize)
	if err != nil {
		return MessagePage{}, err
	}
	return MessagePage{
		Messages:   messages,
		TotalCount: total,
		PageCount:  int((total + int64(pageSize) - 1) / int64(pageSize)),
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// LatestFromOthers returns the newest message not sent by userID. ok is false when there
// is none.
func (s *MessageService) LatestFromOthers(ctx context.Context, conversationID uuid.UUID, userID string) (message.Message, bool, error) {
	m, err := s.messageRepo.LatestFromOthers(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, relay_errors.ErrMessageNotFound) {
			return message.Message{}, false, nil
		}
		return message.Message{}, false, err
	}
	return m, true, nil
}

// React stores userID's reaction on the message, replacing any earlier one.
func (s *MessageService) React(ctx context.Context, userID string, messageID uuid.UUID, t domain.ReactionType) (message.Reaction, message.Message, error) {
	if !t.Valid() {
		return message.Reaction{}, message.Message{}, relay_errors.Validation("unknown reaction type %q", t)
	}
	m, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return message.Reaction{}, message.Message{}, err
	}

	r, err := s.messageRepo.UpsertReaction(ctx, &message.Reaction{
		MessageID: messageID,
		UserID:    userID,
		Type:      t,
		CreatedAt: s.now(),
	})
	if err != nil {
		return message.Reaction{}, message.Message{}, err
	}
	return r, m, nil
}

func (s *MessageService) Unreact(ctx context.Context, userID string, messageID uuid.UUID) (message.Message, error) {
	m, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, relay_errors.ErrMessageNotFound) {
			return message.Message{}, relay_errors.ErrReactionNotFound
		}
		return message.Message{}, err
	}
	if err := s.messageRepo.DeleteReaction(ctx, messageID, userID); err != nil {
		return message.Message{}, err
	}
	return m, nil
}
