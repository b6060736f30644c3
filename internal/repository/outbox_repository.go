package repository

import (
	"context"
	"time"

	"relay-chat/internal/domain/outbox"
	relay_errors "relay-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresOutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &PostgresOutboxRepository{db: db}
}

func (r *PostgresOutboxRepository) Create(ctx context.Context, event *outbox.OutboxEvent) error {
	if event.Status == "" {
		event.Status = outbox.StatusPending
	}
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return relay_errors.Dependency(err)
	}
	return nil
}

// GetPending returns up to limit pending events, oldest first.
func (r *PostgresOutboxRepository) GetPending(ctx context.Context, limit int) ([]outbox.OutboxEvent, error) {
	var events []outbox.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("status = ?", outbox.StatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, relay_errors.Dependency(err)
	}
	return events, nil
}

func (r *PostgresOutboxRepository) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.update(ctx, id, map[string]interface{}{
		"status":       outbox.StatusCompleted,
		"processed_at": at,
		"updated_at":   at,
	})
}

// MarkRetry records a failed attempt and leaves the event pending.
func (r *PostgresOutboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.update(ctx, id, map[string]interface{}{
		"retry_count": gorm.Expr("retry_count + 1"),
		"error":       errMsg,
		"updated_at":  time.Now().UTC(),
	})
}

func (r *PostgresOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.update(ctx, id, map[string]interface{}{
		"status":     outbox.StatusFailed,
		"error":      errMsg,
		"updated_at": time.Now().UTC(),
	})
}

// DeleteCompletedBefore prunes delivered events and returns how many were removed.
func (r *PostgresOutboxRepository) DeleteCompletedBefore(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", outbox.StatusCompleted, before).
		Delete(&outbox.OutboxEvent{})
	if res.Error != nil {
		return 0, relay_errors.Dependency(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *PostgresOutboxRepository) update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	err := r.db.WithContext(ctx).
		Model(&outbox.OutboxEvent{}).
		Where("id = ?", id).
		UpdateColumns(fields).Error
	if err != nil {
		return relay_errors.Dependency(err)
	}
	return nil
}
