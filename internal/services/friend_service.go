package services

import (
	"context"
	"errors"
	"time"

	"relay-chat/internal/domain/user"
	"relay-chat/internal/repository"
	relay_errors "relay-chat/pkg/errors"
)

type FriendService struct {
	users   repository.UserRepository
	friends repository.FriendRepository
}

func NewFriendService(users repository.UserRepository, friends repository.FriendRepository) *FriendService {
	return &FriendService{users: users, friends: friends}
}

type FriendRequestView struct {
	SenderID  string    `json:"senderId"`
	Username  string    `json:"username"`
	Avatar    int       `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
}

type FriendView struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	Avatar   int       `json:"avatar"`
	IsOnline bool      `json:"isOnline"`
	Since    time.Time `json:"since"`
}

func (s *FriendService) SendRequest(ctx context.Context, senderID, friendUsername string) (user.FriendRequest, error) {
	receiver, err := s.users.GetByUsername(ctx, friendUsername)
	if err != nil {
		return user.FriendRequest{}, err
	}
	if receiver.ID == senderID {
		return user.FriendRequest{}, relay_errors.ErrSelfFriendRequest
	}

	friends, err := s.friends.AreFriends(ctx, senderID, receiver.ID)
	if err != nil {
		return user.FriendRequest{}, err
	}
	if friends {
		return user.FriendRequest{}, relay_errors.ErrAlreadyFriends
	}
	pending, err := s.friends.HasPendingBetween(ctx, senderID, receiver.ID)
	if err != nil {
		return user.FriendRequest{}, err
	}
	if pending {
		return user.FriendRequest{}, relay_errors.ErrFriendRequestExists
	}

	req := user.FriendRequest{SenderID: senderID, ReceiverID: receiver.ID}
	if err := s.friends.CreateRequest(ctx, &req); err != nil {
		return user.FriendRequest{}, err
	}
	return req, nil
}

func (s *FriendService) Accept(ctx context.Context, receiverID, senderID string) error {
	req, err := s.friends.FindPending(ctx, senderID, receiverID)
	if err != nil {
		return err
	}
	return s.friends.Accept(ctx, req.ID, time.Now().UTC())
}

func (s *FriendService) Refuse(ctx context.Context, receiverID, senderID string) error {
	req, err := s.friends.FindPending(ctx, senderID, receiverID)
	if err != nil {
		return err
	}
	return s.friends.Reject(ctx, req.ID)
}

func (s *FriendService) ListPending(ctx context.Context, receiverID string) ([]FriendRequestView, error) {
	requests, err := s.friends.ListPending(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	views := make([]FriendRequestView, 0, len(requests))
	for _, r := range requests {
		v := FriendRequestView{SenderID: r.SenderID, Username: r.SenderID, CreatedAt: r.CreatedAt}
		if r.Sender != nil {
			v.Username = r.Sender.DisplayName()
			v.Avatar = r.Sender.Avatar
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *FriendService) CountPending(ctx context.Context, receiverID string) (int64, error) {
	return s.friends.CountPending(ctx, receiverID)
}

func (s *FriendService) ListFriends(ctx context.Context, userID string) ([]FriendView, error) {
	friendships, err := s.friends.ListFriendships(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]FriendView, 0, len(friendships))
	for _, f := range friendships {
		other := f.User2
		if f.User2ID == userID {
			other = f.User1
		}
		if other == nil {
			return nil, relay_errors.Dependency(errors.New("friendship without user"))
		}
		views = append(views, FriendView{
			UserID:   other.ID,
			Username: other.DisplayName(),
			Avatar:   other.Avatar,
			IsOnline: other.IsOnline,
			Since:    f.CreatedAt,
		})
	}
	return views, nil
}
