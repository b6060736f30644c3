package repository

import (
	"fmt"

	"relay-chat/internal/domain/conversation"
	"relay-chat/internal/domain/message"
	"relay-chat/internal/domain/outbox"
	"relay-chat/internal/domain/user"

	"gorm.io/gorm"
)

// Models lists every table owned by this service, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&user.User{},
		&user.FriendRequest{},
		&user.Friendship{},
		&conversation.Conversation{},
		&conversation.Participant{},
		&message.Message{},
		&message.Reaction{},
		&outbox.OutboxEvent{},
	}
}

// InitSchema runs the GORM auto-migration for all models.
func InitSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}
	return nil
}

// DropSchema drops every table in reverse dependency order.
func DropSchema(db *gorm.DB) error {
	models := Models()
	for i := len(models) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(models[i]); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}
	return nil
}
