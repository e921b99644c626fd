package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chatapp/internal/domain/chat"
	"chatapp/internal/domain/message"
	chatapp_errors "chatapp/pkg/errors"
)

//go:generate go run go.uber.org/mock/mockgen -source=interfaces.go -destination=../mocks/mock_repository.go -package=mocks

type ChatRepository interface {
	// Create stores a new chat. It fails with ErrConflict when a chat for the
	// same member pair already exists.
	Create(ctx context.Context, c *chat.Chat) error
	GetByID(ctx context.Context, id uuid.UUID) (*chat.Chat, error)
	GetByMemberKey(ctx context.Context, key string) (*chat.Chat, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]chat.Chat, error)
	IncrementMessageCount(ctx context.Context, id uuid.UUID) error
}

type MessageRepository interface {
	// Create stores m and assigns its Seq.
	Create(ctx context.Context, msg *message.Message) error
	// GetByID returns the message even when it is soft deleted.
	GetByID(ctx context.Context, id uuid.UUID) (*message.Message, error)
	ListActive(ctx context.Context, chatID uuid.UUID) ([]message.Message, error)
	// LatestActive returns ErrNotFound when the chat has no active message.
	LatestActive(ctx context.Context, chatID uuid.UUID) (*message.Message, error)
	CountUnreadFor(ctx context.Context, chatID, viewerID uuid.UUID) (int64, error)
	ApplyEdit(ctx context.Context, id, requesterID uuid.UUID, newBody string, now time.Time, window time.Duration) (*message.Message, error)
	ApplyDelete(ctx context.Context, id, requesterID uuid.UUID, now time.Time, window time.Duration) (*message.Message, error)
}

type UserRepository interface {
	// DisplayName returns ErrNotFound for unknown users.
	DisplayName(ctx context.Context, userID uuid.UUID) (string, error)
}

// UserSeeder writes directory entries. Only local tooling uses it, the
// account service owns users in production.
type UserSeeder interface {
	PutUser(ctx context.Context, userID uuid.UUID, displayName, email string) error
}

// Store groups the repositories of one storage driver.
type Store struct {
	Chats    ChatRepository
	Messages MessageRepository
	Users    UserRepository
	Ping     func(ctx context.Context) error
	Close    func(ctx context.Context) error
}

// ClassifyRejectedMutation explains why a conditional edit or delete matched
// no row, given the message as it is now. The checked conditions only ever
// become stricter, so a passing check means a concurrent writer interfered.
func ClassifyRejectedMutation(m *message.Message, requesterID uuid.UUID, now time.Time, window time.Duration) error {
	if err := m.CheckMutable(requesterID, now, window); err != nil {
		return err
	}
	return chatapp_errors.ErrConflict
}
