package httpdto

import (
	"time"

	"relay-chat/internal/domain/user"
)

type CreateUserRequest struct {
	ID       string `json:"id" binding:"required"`
	Username string `json:"username" binding:"required"`
}

type OnboardRequest struct {
	Username string `json:"username" binding:"required"`
	Avatar   *int   `json:"avatar" binding:"required"`
}

type UpdateAvatarRequest struct {
	Avatar *int `json:"avatar" binding:"required"`
}

type UserResponse struct {
	UserID      string     `json:"userId"`
	Username    string     `json:"username"`
	Avatar      int        `json:"avatar"`
	IsOnBoarded bool       `json:"isOnBoarded"`
	IsOnline    bool       `json:"isOnline"`
	LastPing    *time.Time `json:"lastPing"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func FromUser(u user.User) UserResponse {
	resp := UserResponse{
		UserID:      u.ID,
		Avatar:      u.Avatar,
		IsOnBoarded: u.IsOnBoarded,
		IsOnline:    u.IsOnline,
		LastPing:    u.LastPing,
		CreatedAt:   u.CreatedAt,
	}
	if u.Username != nil {
		resp.Username = *u.Username
	}
	return resp
}

type SendFriendRequest struct {
	FriendUsername string `json:"friendUsername" binding:"required"`
}

type RespondFriendRequest struct {
	SenderID string `json:"senderId" binding:"required"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}
