package user

import (
	"time"

	"relay-chat/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is keyed by the subject of the identity provider's token.
type User struct {
	ID          string     `gorm:"type:varchar(128);primaryKey" json:"userId"`
	Username    *string    `gorm:"type:varchar(64);uniqueIndex:idx_users_username" json:"username"`
	Avatar      int        `gorm:"not null;default:0" json:"avatar"`
	IsOnline    bool       `gorm:"not null;default:false" json:"isOnline"`
	LastPing    *time.Time `json:"lastPing"`
	IsOnBoarded bool       `gorm:"not null;default:false" json:"isOnBoarded"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// DisplayName falls back to the id for users that never onboarded.
func (u User) DisplayName() string {
	if u.Username != nil && *u.Username != "" {
		return *u.Username
	}
	return u.ID
}

// FriendRequest is a directed invitation from Sender to Receiver.
type FriendRequest struct {
	ID         uuid.UUID                  `gorm:"type:uuid;primaryKey" json:"id"`
	SenderID   string                     `gorm:"type:varchar(128);not null;index:idx_friend_requests_pair" json:"senderId"`
	ReceiverID string                     `gorm:"type:varchar(128);not null;index:idx_friend_requests_pair;index" json:"receiverId"`
	Status     domain.FriendRequestStatus `gorm:"type:varchar(16);not null;default:'PENDING'" json:"status"`
	CreatedAt  time.Time                  `json:"createdAt"`
	UpdatedAt  time.Time                  `json:"updatedAt"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

// Friendship is stored once per pair with User1ID < User2ID.
type Friendship struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	User1ID   string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_friendships_pair" json:"user1Id"`
	User2ID   string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_friendships_pair;index" json:"user2Id"`
	CreatedAt time.Time `json:"createdAt"`

	User1 *User `gorm:"foreignKey:User1ID" json:"-"`
	User2 *User `gorm:"foreignKey:User2ID" json:"-"`
}

func (r *FriendRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (f *Friendship) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// OrderedPair returns the two ids sorted so a pair always maps to the same row.
func OrderedPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

func (User) TableName() string {
	return "users"
}

func (FriendRequest) TableName() string {
	return "friend_requests"
}

func (Friendship) TableName() string {
	return "friendships"
}
