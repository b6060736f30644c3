package repository

import (
	"context"
	"time"

	"relay-chat/internal/domain"
	"relay-chat/internal/domain/user"
	relay_errors "relay-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresFriendRepository struct {
	db *gorm.DB
}

func NewFriendRepository(db *gorm.DB) FriendRepository {
	return &PostgresFriendRepository{db: db}
}

func (r *PostgresFriendRepository) CreateRequest(ctx context.Context, req *user.FriendRequest) error {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		return relay_errors.Dependency(err)
	}
	return nil
}

func (r *PostgresFriendRepository) FindPending(ctx context.Context, senderID, receiverID string) (user.FriendRequest, error) {
	var req user.FriendRequest
	err := r.db.WithContext(ctx).
		Where("sender_id = ? AND receiver_id = ? AND status = ?", senderID, receiverID, domain.FriendRequestPending).
		First(&req).Error
	if err != nil {
		return user.FriendRequest{}, notFound(err, relay_errors.ErrFriendRequestNotFound)
	}
	return req, nil
}

func (r *PostgresFriendRepository) HasPendingBetween(ctx context.Context, a, b string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&user.FriendRequest{}).
		Where("status = ? AND ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))",
			domain.FriendRequestPending, a, b, b, a).
		Count(&count).Error
	if err != nil {
		return false, relay_errors.Dependency(err)
	}
	return count > 0, nil
}

// Accept flips the request to ACCEPTED and records the friendship in one transaction.
func (r *PostgresFriendRepository) Accept(ctx context.Context, requestID uuid.UUID, at time.Time) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req user.FriendRequest
		if err := tx.Where("id = ? AND status = ?", requestID, domain.FriendRequestPending).First(&req).Error; err != nil {
			return err
		}
		if err := tx.Model(&req).Update("status", domain.FriendRequestAccepted).Error; err != nil {
			return err
		}
		first, second := user.OrderedPair(req.SenderID, req.ReceiverID)
		return tx.Create(&user.Friendship{User1ID: first, User2ID: second, CreatedAt: at}).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return relay_errors.ErrAlreadyFriends
		}
		return notFound(err, relay_errors.ErrFriendRequestNotFound)
	}
	return nil
}

func (r *PostgresFriendRepository) Reject(ctx context.Context, requestID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&user.FriendRequest{}).
		Where("id = ? AND status = ?", requestID, domain.FriendRequestPending).
		Update("status", domain.FriendRequestRejected)
	if res.Error != nil {
		return relay_errors.Dependency(res.Error)
	}
	if res.RowsAffected == 0 {
		return relay_errors.ErrFriendRequestNotFound
	}
	return nil
}

func (r *PostgresFriendRepository) ListPending(ctx context.Context, receiverID string) ([]user.FriendRequest, error) {
	var requests []user.FriendRequest
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("receiver_id = ? AND status = ?", receiverID, domain.FriendRequestPending).
		Order("created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, relay_errors.Dependency(err)
	}
	return requests, nil
}

func (r *PostgresFriendRepository) CountPending(ctx context.Context, receiverID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&user.FriendRequest{}).
		Where("receiver_id = ? AND status = ?", receiverID, domain.FriendRequestPending).
		Count(&count).Error
	if err != nil {
		return 0, relay_errors.Dependency(err)
	}
	return count, nil
}

func (r *PostgresFriendRepository) AreFriends(ctx context.Context, a, b string) (bool, error) {
	first, second := user.OrderedPair(a, b)
	var count int64
	err := r.db.WithContext(ctx).
		Model(&user.Friendship{}).
		Where("user1_id = ? AND user2_id = ?", first, second).
		Count(&count).Error
	if err != nil {
		return false, relay_errors.Dependency(err)
	}
	return count > 0, nil
}

func (r *PostgresFriendRepository) ListFriendships(ctx context.Context, userID string) ([]user.Friendship, error) {
	var friendships []user.Friendship
	err := r.db.WithContext(ctx).
		Preload("User1").
		Preload("User2").
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&friendships).Error
	if err != nil {
		return nil, relay_errors.Dependency(err)
	}
	return friendships, nil
}

func (r *PostgresFriendRepository) CountFriends(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&user.Friendship{}).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Count(&count).Error
	if err != nil {
		return 0, relay_errors.Dependency(err)
	}
	return count, nil
}
