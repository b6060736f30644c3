package services

import (
	"context"
	"strings"
	"time"

	"relay-chat/internal/domain/user"
	"relay-chat/internal/repository"
	relay_errors "relay-chat/pkg/errors"
)

const (
	minUserIDLength   = 6
	minUsernameLength = 3
	avatarPresets     = 8
)

type UserService struct {
	repo    repository.UserRepository
	friends repository.FriendRepository
}

func NewUserService(repo repository.UserRepository, friends repository.FriendRepository) *UserService {
	return &UserService{repo: repo, friends: friends}
}

type UserInfo struct {
	UserID        string     `json:"userId"`
	Username      string     `json:"username"`
	Avatar        int        `json:"avatar"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastPing      *time.Time `json:"lastPing"`
	IsOnline      bool       `json:"isOnline"`
	FriendsNumber int64      `json:"friendsNumber"`
}

// Create registers a user explicitly. An existing row is returned untouched.
func (s *UserService) Create(ctx context.Context, id, username string) (user.User, error) {
	id = strings.TrimSpace(id)
	username = strings.TrimSpace(username)
	if len(id) < minUserIDLength {
		return user.User{}, relay_errors.Validation("userId must be at least %d characters", minUserIDLength)
	}
	u := &user.User{ID: id}
	if username != "" {
		if len(username) < minUsernameLength {
			return user.User{}, relay_errors.Validation("username must be at least %d characters", minUsernameLength)
		}
		u.Username = &username
	}
	return s.repo.Upsert(ctx, u)
}

// EnsureUser creates the row for an authenticated subject on first contact.
func (s *UserService) EnsureUser(ctx context.Context, id string) (user.User, error) {
	return s.repo.Upsert(ctx, &user.User{ID: id})
}

func (s *UserService) Get(ctx context.Context, id string) (user.User, error) {
	return s.repo.GetByID(ctx, id)
}

// RequireAll fails with ErrUserNotFound when any id is unknown.
func (s *UserService) RequireAll(ctx context.Context, ids []string) ([]user.User, error) {
	users := make([]user.User, 0, len(ids))
	for _, id := range ids {
		u, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *UserService) Onboard(ctx context.Context, id, username string, avatar int) (user.User, error) {
	username = strings.TrimSpace(username)
	if len(username) < minUsernameLength {
		return user.User{}, relay_errors.Validation("username must be at least %d characters", minUsernameLength)
	}
	if avatar < 0 || avatar >= avatarPresets {
		return user.User{}, relay_errors.Validation("avatar must be between 0 and %d", avatarPresets-1)
	}
	return s.repo.Onboard(ctx, id, username, avatar)
}

func (s *UserService) UpdateAvatar(ctx context.Context, id string, avatar int) (user.User, error) {
	if avatar < 0 || avatar >= avatarPresets {
		return user.User{}, relay_errors.Validation("avatar must be between 0 and %d", avatarPresets-1)
	}
	return s.repo.UpdateAvatar(ctx, id, avatar)
}

func (s *UserService) Info(ctx context.Context, id string) (UserInfo, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return UserInfo{}, err
	}
	count, err := s.friends.CountFriends(ctx, id)
	if err != nil {
		return UserInfo{}, err
	}
	return UserInfo{
		UserID:        u.ID,
		Username:      u.DisplayName(),
		Avatar:        u.Avatar,
		CreatedAt:     u.CreatedAt,
		LastPing:      u.LastPing,
		IsOnline:      u.IsOnline,
		FriendsNumber: count,
	}, nil
}
