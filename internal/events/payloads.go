package events

import (
	"time"

	"relay-chat/internal/domain"
	"relay-chat/internal/domain/message"
	"relay-chat/internal/domain/user"

	"github.com/google/uuid"
)

type SenderView struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Avatar   int    `json:"avatar"`
}

type ReplyView struct {
	ID       uuid.UUID          `json:"id"`
	Content  string             `json:"content"`
	Type     domain.MessageType `json:"type"`
	SenderID string             `json:"senderId"`
}

type ReactionView struct {
	UserID string              `json:"userId"`
	Type   domain.ReactionType `json:"type"`
}

// MessageView is the single rendering of a message used by every outbound event. IMAGE
// messages carry their URL in Content.
type MessageView struct {
	ID        uuid.UUID          `json:"id"`
	ChatID    uuid.UUID          `json:"chatId"`
	Content   string             `json:"content"`
	Type      domain.MessageType `json:"type"`
	SenderID  string             `json:"senderId"`
	Sender    *SenderView        `json:"sender"`
	ReplyToID *uuid.UUID         `json:"replyToId"`
	ReplyTo   *ReplyView         `json:"replyTo"`
	Reactions []ReactionView     `json:"reactions"`
	CreatedAt time.Time          `json:"createdAt"`
}

func NewSenderView(u *user.User) *SenderView {
	if u == nil {
		return nil
	}
	return &SenderView{UserID: u.ID, Username: u.DisplayName(), Avatar: u.Avatar}
}

func NewMessageView(m message.Message) MessageView {
	v := MessageView{
		ID:        m.ID,
		ChatID:    m.ConversationID,
		Content:   m.Content,
		Type:      m.Type,
		SenderID:  m.SenderID,
		Sender:    NewSenderView(m.Sender),
		ReplyToID: m.ReplyToID,
		Reactions: make([]ReactionView, 0, len(m.Reactions)),
		CreatedAt: m.CreatedAt,
	}
	if m.ReplyTo != nil {
		v.ReplyTo = &ReplyView{
			ID:       m.ReplyTo.ID,
			Content:  m.ReplyTo.Content,
			Type:     m.ReplyTo.Type,
			SenderID: m.ReplyTo.SenderID,
		}
	}
	for _, r := range m.Reactions {
		v.Reactions = append(v.Reactions, ReactionView{UserID: r.UserID, Type: r.Type})
	}
	return v
}

func NewMessageViews(messages []message.Message) []MessageView {
	views := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, NewMessageView(m))
	}
	return views
}

type HistoryMessages struct {
	ChatID     uuid.UUID     `json:"chatId"`
	Messages   []MessageView `json:"messages"`
	TotalCount int64         `json:"totalCount"`
	PageCount  int           `json:"pageCount"`
	Page       int           `json:"page"`
}

type ActivityUser struct {
	ChatID   uuid.UUID  `json:"chatId"`
	IsOnline bool       `json:"isOnline"`
	LastPing *time.Time `json:"lastPing"`
}

type MarkAsRead struct {
	ChatID    uuid.UUID `json:"chatId"`
	MessageID uuid.UUID `json:"messageId"`
	UserID    string    `json:"userId"`
}

type ConversationRefresh struct {
	ChatID        uuid.UUID          `json:"chatId"`
	Content       string             `json:"content"`
	Type          domain.MessageType `json:"type"`
	SenderID      string             `json:"senderId"`
	Sender        *SenderView        `json:"sender"`
	Date          time.Time          `json:"date"`
	IsOtherInRoom bool               `json:"isOtherInRoom"`
	Name          *string            `json:"name,omitempty"`
	Image         *string            `json:"image,omitempty"`
}

type AddConversation struct {
	ConversationRefresh
	ParticipantIDs []string `json:"participantIds"`
}

type ChatCreated struct {
	ChatID         uuid.UUID               `json:"chatId"`
	Type           domain.ConversationType `json:"type"`
	Name           *string                 `json:"name"`
	ParticipantIDs []string                `json:"participantIds"`
}

// ReactionChanged is sent for receive_reaction and delete_reaction; Type is null on delete.
type ReactionChanged struct {
	MessageID uuid.UUID            `json:"messageId"`
	ChatID    uuid.UUID            `json:"chatId"`
	UserID    string               `json:"userId"`
	Type      *domain.ReactionType `json:"type"`
}

type Typing struct {
	ChatID   uuid.UUID `json:"chatId"`
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
}

type RefreshHeader struct {
	ChatID uuid.UUID `json:"chatId"`
	Name   *string   `json:"name,omitempty"`
	Image  *string   `json:"image,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
