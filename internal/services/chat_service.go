package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"chatapp/internal/commands"
	"chatapp/internal/domain/chat"
	"chatapp/internal/repository"
	chatapp_errors "chatapp/pkg/errors"
	"chatapp/pkg/logger"
)

// ChatService is the chat registry: it owns deduplicated creation and
// membership lookup of two-party chats.
type ChatService struct {
	chats repository.ChatRepository
	now   func() time.Time
	log   *logger.Logger
}

func NewChatService(chats repository.ChatRepository, log *logger.Logger, opts ...Option) *ChatService {
	o := applyOptions(opts)
	return &ChatService{chats: chats, now: o.clock, log: log}
}

// FindOrCreate returns the chat for the pair, creating it when absent.
// The boolean reports whether this call created it. Argument order does not
// matter, and a lost creation race resolves to the winner's chat.
func (s *ChatService) FindOrCreate(ctx context.Context, cmd commands.CreateChatCommand) (*chat.Chat, bool, error) {
	if err := cmd.Validate(); err != nil {
		return nil, false, err
	}
	key := chat.MemberKey(cmd.UserA, cmd.UserB)

	existing, err := s.chats.GetByMemberKey(ctx, key)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, chatapp_errors.ErrNotFound) {
		return nil, false, err
	}

	c, err := chat.New(cmd.UserA, cmd.UserB, s.now())
	if err != nil {
		return nil, false, err
	}
	if err := s.chats.Create(ctx, c); err != nil {
		if !errors.Is(err, chatapp_errors.ErrConflict) {
			return nil, false, err
		}
		winner, err := s.chats.GetByMemberKey(ctx, key)
		if err != nil {
			return nil, false, err
		}
		s.log.WithContext(ctx).Debug("chat creation race resolved to existing chat")
		return winner, false, nil
	}
	return c, true, nil
}

func (s *ChatService) ListForUser(ctx context.Context, userID uuid.UUID) ([]chat.Chat, error) {
	if userID == uuid.Nil {
		return nil, chatapp_errors.ErrInvalidIdentifier
	}
	return s.chats.ListForUser(ctx, userID)
}

func (s *ChatService) GetByID(ctx context.Context, chatID uuid.UUID) (*chat.Chat, error) {
	if chatID == uuid.Nil {
		return nil, chatapp_errors.ErrInvalidIdentifier
	}
	return s.chats.GetByID(ctx, chatID)
}

// IsMember reports whether userID belongs to the chat. Unknown chats yield NotFound.
func (s *ChatService) IsMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error) {
	c, err := s.GetByID(ctx, chatID)
	if err != nil {
		return false, err
	}
	return c.HasMember(userID), nil
}
