package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"relay-chat/internal/domain"
	"relay-chat/internal/domain/conversation"
	"relay-chat/internal/domain/message"
	"relay-chat/internal/domain/user"
	"relay-chat/internal/repository"

	"gorm.io/gorm"
)

// SeedConfig holds configuration for seeding the database
type SeedConfig struct {
	Usernames       []string
	MessagesPerChat int
}

// DefaultSeedConfig returns default seed configuration
func DefaultSeedConfig() *SeedConfig {
	return &SeedConfig{
		Usernames:       []string{"alice", "bob", "carol"},
		MessagesPerChat: 6,
	}
}

// SeedResult holds the result of the seeding operation
type SeedResult struct {
	Users         []user.User
	Conversations []conversation.Conversation
	Messages      []message.Message
}

// Seed creates onboarded demo users, a private chat between each consecutive pair and a short
// alternating history in each chat. Running it twice reuses the same users and chats.
func Seed(ctx context.Context, db *gorm.DB, cfg *SeedConfig) (*SeedResult, error) {
	if cfg == nil {
		cfg = DefaultSeedConfig()
	}

	users := repository.NewUserRepository(db)
	conversations := repository.NewConversationRepository(db)
	messages := repository.NewMessageRepository(db)
	result := &SeedResult{}

	log.Println("Starting database seeding...")

	for i, name := range cfg.Usernames {
		username := name
		u, err := users.Upsert(ctx, &user.User{
			ID:          "seed|" + name,
			Username:    &username,
			Avatar:      i % 8,
			IsOnBoarded: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to seed user %s: %w", name, err)
		}
		result.Users = append(result.Users, u)
	}

	start := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i+1 < len(result.Users); i++ {
		a, b := result.Users[i], result.Users[i+1]
		c, created, err := conversations.FindOrCreatePrivate(ctx, a.ID, b.ID, start)
		if err != nil {
			return nil, fmt.Errorf("failed to seed conversation: %w", err)
		}
		result.Conversations = append(result.Conversations, c)
		if !created {
			continue
		}

		var last time.Time
		for n := 0; n < cfg.MessagesPerChat; n++ {
			sender := a
			if n%2 == 1 {
				sender = b
			}
			last = start.Add(time.Duration(n+1) * time.Minute)
			m := &message.Message{
				ConversationID: c.ID,
				SenderID:       sender.ID,
				Content:        fmt.Sprintf("hello from %s (%d)", sender.DisplayName(), n+1),
				Type:           domain.MessageTypeText,
				CreatedAt:      last,
			}
			if err := messages.Create(ctx, m); err != nil {
				return nil, fmt.Errorf("failed to seed message: %w", err)
			}
			result.Messages = append(result.Messages, *m)
		}
		if cfg.MessagesPerChat > 0 {
			if err := conversations.Touch(ctx, c.ID, last); err != nil {
				return nil, fmt.Errorf("failed to touch conversation: %w", err)
			}
		}
	}

	log.Println("Database seeding completed successfully!")
	return result, nil
}

// SeedDevelopment seeds the global connection with the default data set.
func SeedDevelopment() (*SeedResult, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return Seed(context.Background(), DB, DefaultSeedConfig())
}
