package repository

import (
	"context"
	"time"

	"relay-chat/internal/domain"
	"relay-chat/internal/domain/message"
	relay_errors "relay-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

// withView preloads everything a rendered message carries.
func withView(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Sender").
		Preload("ReplyTo").
		Preload("Reactions", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		})
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return relay_errors.Dependency(err)
	}
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	err := withView(r.db.WithContext(ctx)).Where("id = ?", id).First(&m).Error
	if err != nil {
		return message.Message{}, notFound(err, relay_errors.ErrMessageNotFound)
	}
	return m, nil
}

// Page returns the page-th newest slice of the conversation, oldest first.
func (r *PostgresMessageRepository) Page(ctx context.Context, conversationID uuid.UUID, page, pageSize int) ([]message.Message, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&total).Error; err != nil {
		return nil, 0, relay_errors.Dependency(err)
	}

	var messages []message.Message
	err := withView(r.db.WithContext(ctx)).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&messages).Error
	if err != nil {
		return nil, 0, relay_errors.Dependency(err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, total, nil
}

func (r *PostgresMessageRepository) Latest(ctx context.Context, conversationID uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Order("id DESC").
		First(&m).Error
	if err != nil {
		return message.Message{}, notFound(err, relay_errors.ErrMessageNotFound)
	}
	return m, nil
}

func (r *PostgresMessageRepository) LatestFromOthers(ctx context.Context, conversationID uuid.UUID, userID string) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND sender_id <> ?", conversationID, userID).
		Order("created_at DESC").
		Order("id DESC").
		First(&m).Error
	if err != nil {
		return message.Message{}, notFound(err, relay_errors.ErrMessageNotFound)
	}
	return m, nil
}

// CountAfter orders by (created_at, id); message ids are UUIDv7 so ties within one
// microsecond still resolve in creation order.
func (r *PostgresMessageRepository) CountAfter(ctx context.Context, conversationID uuid.UUID, excludeSenderID string, after time.Time, afterID *uuid.UUID) (int64, error) {
	q := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id = ? AND sender_id <> ?", conversationID, excludeSenderID)
	if afterID != nil {
		q = q.Where("(created_at > ? OR (created_at = ? AND id > ?))", after, after, *afterID)
	} else {
		q = q.Where("created_at > ?", after)
	}

	var count int64
	err := q.Count(&count).Error
	if err != nil {
		return 0, relay_errors.Dependency(err)
	}
	return count, nil
}

func (r *PostgresMessageRepository) ListByType(ctx context.Context, conversationID uuid.UUID, t domain.MessageType) ([]message.Message, error) {
	var messages []message.Message
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("conversation_id = ? AND type = ?", conversationID, t).
		Order("created_at DESC").
		Find(&messages).Error
	if err != nil {
		return nil, relay_errors.Dependency(err)
	}
	return messages, nil
}

// UpsertReaction replaces any previous reaction of the same user on the same message.
func (r *PostgresMessageRepository) UpsertReaction(ctx context.Context, reaction *message.Reaction) (message.Reaction, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"type", "created_at"}),
		}).
		Create(reaction).Error
	if err != nil {
		return message.Reaction{}, relay_errors.Dependency(err)
	}

	var stored message.Reaction
	if err := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ?", reaction.MessageID, reaction.UserID).
		First(&stored).Error; err != nil {
		return message.Reaction{}, notFound(err, relay_errors.ErrReactionNotFound)
	}
	return stored, nil
}

func (r *PostgresMessageRepository) DeleteReaction(ctx context.Context, messageID uuid.UUID, userID string) error {
	res := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		Delete(&message.Reaction{})
	if res.Error != nil {
		return relay_errors.Dependency(res.Error)
	}
	if res.RowsAffected == 0 {
		return relay_errors.ErrReactionNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) ListReactions(ctx context.Context, messageID uuid.UUID) ([]message.Reaction, error) {
	var reactions []message.Reaction
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&reactions).Error
	if err != nil {
		return nil, relay_errors.Dependency(err)
	}
	return reactions, nil
}
