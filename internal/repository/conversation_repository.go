package repository

import (
	"context"
	"time"

	"relay-chat/internal/domain"
	"relay-chat/internal/domain/conversation"
	relay_errors "relay-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

// FindOrCreatePrivate relies on the unique pair_key: the insert is a no-op when another
// caller already created the conversation, and the row is then re-read by key.
func (r *PostgresConversationRepository) FindOrCreatePrivate(ctx context.Context, a, b string, at time.Time) (conversation.Conversation, bool, error) {
	key := conversation.PrivatePairKey(a, b)
	created := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c := conversation.Conversation{
			Type:      domain.ConversationTypePrivate,
			PairKey:   &key,
			CreatedAt: at,
			UpdatedAt: at,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pair_key"}},
			DoNothing: true,
		}).Create(&c)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true

		participants := []conversation.Participant{
			{ConversationID: c.ID, UserID: a, JoinedAt: at},
			{ConversationID: c.ID, UserID: b, JoinedAt: at},
		}
		return tx.Create(&participants).Error
	})
	if err != nil {
		return conversation.Conversation{}, false, relay_errors.Dependency(err)
	}

	var c conversation.Conversation
	if err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("pair_key = ?", key).
		First(&c).Error; err != nil {
		return conversation.Conversation{}, false, notFound(err, relay_errors.ErrConversationNotFound)
	}
	return c, created, nil
}

func (r *PostgresConversationRepository) CreateGroup(ctx context.Context, c *conversation.Conversation, userIDs []string) error {
	return relay_errors.Dependency(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c.Type = domain.ConversationTypeGroup
		c.PairKey = nil
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		participants := make([]conversation.Participant, 0, len(userIDs))
		for _, id := range userIDs {
			participants = append(participants, conversation.Participant{
				ConversationID: c.ID,
				UserID:         id,
				JoinedAt:       c.CreatedAt,
			})
		}
		if err := tx.Create(&participants).Error; err != nil {
			return err
		}
		c.Participants = participants
		return nil
	}))
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Preload("Participants.User").
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return conversation.Conversation{}, notFound(err, relay_errors.ErrConversationNotFound)
	}
	return c, nil
}

func (r *PostgresConversationRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", id).
		UpdateColumn("updated_at", at)
	if res.Error != nil {
		return relay_errors.Dependency(res.Error)
	}
	if res.RowsAffected == 0 {
		return relay_errors.ErrConversationNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) SetReadCursor(ctx context.Context, userID string, conversationID, messageID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		UpdateColumn("last_read_message_id", messageID)
	if res.Error != nil {
		return relay_errors.Dependency(res.Error)
	}
	if res.RowsAffected == 0 {
		return relay_errors.ErrNotAParticipant
	}
	return nil
}

func (r *PostgresConversationRepository) GetParticipant(ctx context.Context, conversationID uuid.UUID, userID string) (conversation.Participant, error) {
	var p conversation.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&p).Error
	if err != nil {
		return conversation.Participant{}, notFound(err, relay_errors.ErrNotAParticipant)
	}
	return p, nil
}

func (r *PostgresConversationRepository) ListParticipants(ctx context.Context, conversationID uuid.UUID) ([]conversation.Participant, error) {
	var participants []conversation.Participant
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("conversation_id = ?", conversationID).
		Order("joined_at ASC").
		Find(&participants).Error
	if err != nil {
		return nil, relay_errors.Dependency(err)
	}
	return participants, nil
}

func (r *PostgresConversationRepository) AddParticipant(ctx context.Context, conversationID uuid.UUID, userID string, at time.Time) error {
	p := conversation.Participant{ConversationID: conversationID, UserID: userID, JoinedAt: at}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&p)
	if res.Error != nil {
		return relay_errors.Dependency(res.Error)
	}
	if res.RowsAffected == 0 {
		return relay_errors.ErrAlreadyParticipant
	}
	return nil
}

func (r *PostgresConversationRepository) ListForUser(ctx context.Context, userID string) ([]conversation.Conversation, error) {
	var conversations []conversation.Conversation

	subQuery := r.db.Model(&conversation.Participant{}).
		Select("conversation_id").
		Where("user_id = ?", userID)

	err := r.db.WithContext(ctx).
		Preload("Participants").
		Preload("Participants.User").
		Where("id IN (?)", subQuery).
		Order("updated_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, relay_errors.Dependency(err)
	}
	return conversations, nil
}

func (r *PostgresConversationRepository) UpdateSettings(ctx context.Context, id uuid.UUID, changes ConversationChanges) error {
	updates := map[string]interface{}{}
	if changes.Name != nil {
		updates["name"] = *changes.Name
	}
	if changes.Image != nil {
		updates["image"] = *changes.Image
	}
	if changes.BackgroundImage != nil {
		updates["background_image"] = *changes.BackgroundImage
	}
	if len(updates) == 0 {
		return relay_errors.Validation("no settings to update")
	}

	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", id).
		UpdateColumns(updates)
	if res.Error != nil {
		return relay_errors.Dependency(res.Error)
	}
	if res.RowsAffected == 0 {
		return relay_errors.ErrConversationNotFound
	}
	return nil
}

