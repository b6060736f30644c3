package conversation

import (
	"fmt"
	"time"

	"relay-chat/internal/domain"
	"relay-chat/internal/domain/user"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation represents the conversations table
type Conversation struct {
	ID              uuid.UUID               `gorm:"type:uuid;primaryKey" json:"id"`
	Type            domain.ConversationType `gorm:"type:varchar(16);not null;default:'PRIVATE'" json:"type"`
	Name            *string                 `gorm:"type:varchar(128)" json:"name"`
	Image           *string                 `gorm:"type:text" json:"image"`
	BackgroundImage *string                 `gorm:"type:text" json:"backgroundImage"`
	// PairKey is set for PRIVATE conversations only; the unique index is what dedups concurrent creation.
	PairKey   *string   `gorm:"type:varchar(300);uniqueIndex:idx_conversations_pair_key" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `gorm:"index" json:"updatedAt"`

	Participants []Participant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

// Participant represents the participants table
type Participant struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_participants_conv_user" json:"conversationId"`
	UserID            string     `gorm:"type:varchar(128);not null;uniqueIndex:idx_participants_conv_user;index" json:"userId"`
	LastReadMessageID *uuid.UUID `gorm:"type:uuid" json:"lastReadMessageId"`
	JoinedAt          time.Time  `gorm:"not null" json:"joinedAt"`

	User *user.User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PrivatePairKey is the dedup key of the private conversation between a and b. The length
// prefix keeps ids containing the separator from colliding.
func PrivatePairKey(a, b string) string {
	first, second := user.OrderedPair(a, b)
	return fmt.Sprintf("%d:%s|%s", len(first), first, second)
}

// IsGroup reports whether the conversation was created as a group.
func (c Conversation) IsGroup() bool {
	return c.Type == domain.ConversationTypeGroup
}

// ParticipantIDs returns the user ids of the loaded participants.
func (c Conversation) ParticipantIDs() []string {
	ids := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// Other returns the first participant that is not userID.
func (c Conversation) Other(userID string) (Participant, bool) {
	for _, p := range c.Participants {
		if p.UserID != userID {
			return p, true
		}
	}
	return Participant{}, false
}

func (Conversation) TableName() string {
	return "conversations"
}

func (Participant) TableName() string {
	return "participants"
}
