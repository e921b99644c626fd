package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatapp/internal/commands"
	"chatapp/internal/domain/message"
	"chatapp/internal/repository"
	chatapp_errors "chatapp/pkg/errors"
	"chatapp/pkg/keylock"
	"chatapp/pkg/logger"
)

//go:generate go run go.uber.org/mock/mockgen -source=message_service.go -destination=../mocks/mock_broadcaster.go -package=mocks

// Broadcaster pushes persisted changes to the sessions joined to a chat.
// Implementations must not block on slow sessions and never fail the caller.
type Broadcaster interface {
	PublishMessage(ctx context.Context, chatID uuid.UUID, msg *message.Message)
	PublishMessageEdited(ctx context.Context, chatID uuid.UUID, msg *message.Message)
	PublishMessageDeleted(ctx context.Context, chatID uuid.UUID, msg *message.Message)
}

type MessageConfig struct {
	EditWindow time.Duration
	// RequireContent rejects messages with neither body nor attachment.
	RequireContent bool
	// EnforceMembership rejects senders who are not members of the chat.
	EnforceMembership bool
	// MaxLength caps the body in characters. Zero disables the check.
	MaxLength int
}

func DefaultMessageConfig() MessageConfig {
	return MessageConfig{
		EditWindow:        message.DefaultEditWindow,
		RequireContent:    true,
		EnforceMembership: true,
		MaxLength:         4000,
	}
}

// MessageService is the message store. Appends to one chat are serialized and
// published while still serialized, so every session in the room sees
// messages in the order they were persisted.
type MessageService struct {
	messages    repository.MessageRepository
	chats       repository.ChatRepository
	broadcaster Broadcaster
	rooms       *keylock.KeyLock
	cfg         MessageConfig
	now         func() time.Time
	log         *logger.Logger
}

func NewMessageService(
	messages repository.MessageRepository,
	chats repository.ChatRepository,
	broadcaster Broadcaster,
	cfg MessageConfig,
	log *logger.Logger,
	opts ...Option,
) *MessageService {
	if cfg.EditWindow <= 0 {
		cfg.EditWindow = message.DefaultEditWindow
	}
	if broadcaster == nil {
		broadcaster = noopBroadcaster{}
	}
	o := applyOptions(opts)
	return &MessageService{
		messages:    messages,
		chats:       chats,
		broadcaster: broadcaster,
		rooms:       keylock.New(),
		cfg:         cfg,
		now:         o.clock,
		log:         log,
	}
}

func (s *MessageService) Send(ctx context.Context, cmd commands.SendMessageCommand) (*message.Message, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if s.cfg.RequireContent && !cmd.HasContent() {
		return nil, fmt.Errorf("%w: message or attachment is required", chatapp_errors.ErrInvalidInput)
	}
	if err := s.checkLength(cmd.Body); err != nil {
		return nil, err
	}

	if err := s.checkSender(ctx, cmd.ChatID, cmd.SenderID); err != nil {
		return nil, err
	}

	unlock := s.rooms.Lock(cmd.ChatID.String())
	defer unlock()

	m := message.New(cmd.ChatID, cmd.SenderID, strings.TrimSpace(cmd.SenderName), cmd.Body, cmd.AttachmentRef, s.now())
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}

	if err := s.chats.IncrementMessageCount(ctx, cmd.ChatID); err != nil {
		s.log.WithContext(ctx).Warn("failed to bump message count",
			zap.String("chat_id", cmd.ChatID.String()), zap.Error(err))
	}

	s.broadcaster.PublishMessage(ctx, cmd.ChatID, m.Clone())
	return m, nil
}

// CheckSend reports whether Send would accept senderID writing to chatID,
// before an attachment is stored for it. Content is not checked since the
// attachment may supply it.
func (s *MessageService) CheckSend(ctx context.Context, chatID, senderID uuid.UUID, body string) error {
	if chatID == uuid.Nil || senderID == uuid.Nil {
		return chatapp_errors.ErrInvalidIdentifier
	}
	if err := s.checkLength(body); err != nil {
		return err
	}
	return s.checkSender(ctx, chatID, senderID)
}

func (s *MessageService) checkSender(ctx context.Context, chatID, senderID uuid.UUID) error {
	c, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return err
	}
	if s.cfg.EnforceMembership && !c.HasMember(senderID) {
		return fmt.Errorf("%w: sender is not a member of this chat", chatapp_errors.ErrForbidden)
	}
	return nil
}

func (s *MessageService) ListActive(ctx context.Context, chatID uuid.UUID) ([]message.Message, error) {
	if chatID == uuid.Nil {
		return nil, chatapp_errors.ErrInvalidIdentifier
	}
	if _, err := s.chats.GetByID(ctx, chatID); err != nil {
		return nil, err
	}
	return s.messages.ListActive(ctx, chatID)
}

// GetByID returns the message including soft deleted ones.
func (s *MessageService) GetByID(ctx context.Context, messageID uuid.UUID) (*message.Message, error) {
	if messageID == uuid.Nil {
		return nil, chatapp_errors.ErrInvalidIdentifier
	}
	return s.messages.GetByID(ctx, messageID)
}

func (s *MessageService) Edit(ctx context.Context, cmd commands.EditMessageCommand) (*message.Message, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkLength(cmd.NewBody); err != nil {
		return nil, err
	}
	m, err := s.messages.ApplyEdit(ctx, cmd.MessageID, cmd.RequesterID, cmd.NewBody, message.StoredTime(s.now()), s.cfg.EditWindow)
	if err != nil {
		return nil, err
	}
	s.publishLocked(ctx, m, s.broadcaster.PublishMessageEdited)
	return m, nil
}

func (s *MessageService) Delete(ctx context.Context, cmd commands.DeleteMessageCommand) (*message.Message, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	m, err := s.messages.ApplyDelete(ctx, cmd.MessageID, cmd.RequesterID, message.StoredTime(s.now()), s.cfg.EditWindow)
	if err != nil {
		return nil, err
	}
	s.publishLocked(ctx, m, s.broadcaster.PublishMessageDeleted)
	return m, nil
}

func (s *MessageService) CountUnreadFor(ctx context.Context, chatID, viewerID uuid.UUID) (int64, error) {
	if chatID == uuid.Nil || viewerID == uuid.Nil {
		return 0, chatapp_errors.ErrInvalidIdentifier
	}
	return s.messages.CountUnreadFor(ctx, chatID, viewerID)
}

func (s *MessageService) checkLength(body string) error {
	if s.cfg.MaxLength > 0 && utf8.RuneCountInString(body) > s.cfg.MaxLength {
		return fmt.Errorf("%w: message exceeds %d characters", chatapp_errors.ErrInvalidInput, s.cfg.MaxLength)
	}
	return nil
}

// publishLocked takes the room lock so a change notice cannot overtake the
// message it refers to.
func (s *MessageService) publishLocked(ctx context.Context, m *message.Message, fn func(context.Context, uuid.UUID, *message.Message)) {
	unlock := s.rooms.Lock(m.ChatID.String())
	defer unlock()
	fn(ctx, m.ChatID, m.Clone())
}

type noopBroadcaster struct{}

func (noopBroadcaster) PublishMessage(context.Context, uuid.UUID, *message.Message)        {}
func (noopBroadcaster) PublishMessageEdited(context.Context, uuid.UUID, *message.Message)  {}
func (noopBroadcaster) PublishMessageDeleted(context.Context, uuid.UUID, *message.Message) {}
