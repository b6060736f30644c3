package message

import (
	"time"

	"relay-chat/internal/domain"
	"relay-chat/internal/domain/user"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message represents the messages table. IDs are UUIDv7 so they sort in creation order.
type Message struct {
	ID             uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID          `gorm:"type:uuid;not null;index:idx_messages_conv_created,priority:1" json:"chatId"`
	SenderID       string             `gorm:"type:varchar(128);not null" json:"senderId"`
	Content        string             `gorm:"type:text;not null" json:"content"`
	Type           domain.MessageType `gorm:"type:varchar(16);not null;default:'TEXT'" json:"type"`
	ReplyToID      *uuid.UUID         `gorm:"type:uuid" json:"replyToId"`
	CreatedAt      time.Time          `gorm:"not null;index:idx_messages_conv_created,priority:2" json:"createdAt"`

	Sender    *user.User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	ReplyTo   *Message   `gorm:"foreignKey:ReplyToID" json:"replyTo,omitempty"`
	Reactions []Reaction `gorm:"foreignKey:MessageID" json:"reactions,omitempty"`
}

// Reaction represents message_reactions; one row per (message, user).
type Reaction struct {
	ID        uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_reactions_message_user" json:"messageId"`
	UserID    string              `gorm:"type:varchar(128);not null;uniqueIndex:idx_reactions_message_user" json:"userId"`
	Type      domain.ReactionType `gorm:"type:varchar(16);not null" json:"type"`
	CreatedAt time.Time           `json:"createdAt"`

	User *user.User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		m.ID = id
	}
	return nil
}

func (r *Reaction) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (Message) TableName() string {
	return "messages"
}

func (Reaction) TableName() string {
	return "message_reactions"
}
