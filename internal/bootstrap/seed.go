package bootstrap

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"chatapp/internal/commands"
	"chatapp/internal/repository"
	"chatapp/internal/services"
	"chatapp/pkg/logger"
)

type SeedConfig struct {
	Users int
	// MessagesPerChat are sent alternately by both members.
	MessagesPerChat int
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{Users: 4, MessagesPerChat: 3}
}

type SeedResult struct {
	Users    []uuid.UUID
	Chats    []uuid.UUID
	Messages int
}

// Seed creates demo users and a chat between the first user and each of the
// others. It goes through the services so the data obeys the usual rules.
func Seed(ctx context.Context, store repository.Store, cfg SeedConfig, log *logger.Logger) (*SeedResult, error) {
	seeder, ok := store.Users.(repository.UserSeeder)
	if !ok {
		return nil, fmt.Errorf("storage driver cannot seed users")
	}
	if cfg.Users < 2 {
		return nil, fmt.Errorf("need at least two users, got %d", cfg.Users)
	}

	result := &SeedResult{}
	names := make(map[uuid.UUID]string, cfg.Users)
	for i := 1; i <= cfg.Users; i++ {
		id := uuid.New()
		name := fmt.Sprintf("Demo User %d", i)
		if err := seeder.PutUser(ctx, id, name, fmt.Sprintf("demo%d@example.com", i)); err != nil {
			return nil, fmt.Errorf("seed user %d: %w", i, err)
		}
		names[id] = name
		result.Users = append(result.Users, id)
	}

	chats := services.NewChatService(store.Chats, log)
	messages := services.NewMessageService(store.Messages, store.Chats, nil, services.DefaultMessageConfig(), log)

	owner := result.Users[0]
	for _, other := range result.Users[1:] {
		c, _, err := chats.FindOrCreate(ctx, commands.CreateChatCommand{UserA: owner, UserB: other})
		if err != nil {
			return nil, fmt.Errorf("seed chat: %w", err)
		}
		result.Chats = append(result.Chats, c.ID)

		for i := 0; i < cfg.MessagesPerChat; i++ {
			sender := owner
			if i%2 == 1 {
				sender = other
			}
			_, err := messages.Send(ctx, commands.SendMessageCommand{
				ChatID:     c.ID,
				SenderID:   sender,
				SenderName: names[sender],
				Body:       fmt.Sprintf("Hello #%d from %s", i+1, names[sender]),
			})
			if err != nil {
				return nil, fmt.Errorf("seed message: %w", err)
			}
			result.Messages++
		}
	}
	return result, nil
}
