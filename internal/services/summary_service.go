package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatapp/internal/domain"
	"chatapp/internal/domain/chat"
	"chatapp/internal/repository"
	chatapp_errors "chatapp/pkg/errors"
	"chatapp/pkg/logger"
)

// AttachmentPlaceholder stands in for the body of an attachment-only last message.
const AttachmentPlaceholder = "Attachment"

// ChatSummary is one row of a user's chat list.
type ChatSummary struct {
	ChatID                 uuid.UUID
	Members                []uuid.UUID
	CounterpartID          uuid.UUID
	CounterpartDisplayName string
	LastMessageBody        string
	LastMessageTimestamp   *time.Time
	UnreadCount            int64
	// IsOnline is always false, presence is not tracked.
	IsOnline bool
}

// SummaryService derives per viewer chat summaries. It only reads.
type SummaryService struct {
	chats     repository.ChatRepository
	messages  repository.MessageRepository
	directory UserDirectory
	log       *logger.Logger
}

func NewSummaryService(chats repository.ChatRepository, messages repository.MessageRepository, directory UserDirectory, log *logger.Logger) *SummaryService {
	return &SummaryService{chats: chats, messages: messages, directory: directory, log: log}
}

func (s *SummaryService) ChatSummary(ctx context.Context, c *chat.Chat, viewerID uuid.UUID) (ChatSummary, error) {
	summary := ChatSummary{
		ChatID:                 c.ID,
		Members:                append([]uuid.UUID{}, c.Members...),
		CounterpartDisplayName: domain.UnknownUserName,
		LastMessageBody:        domain.NoMessagesPlaceholder,
	}

	if counterpart, ok := c.Counterpart(viewerID); ok {
		summary.CounterpartID = counterpart
		summary.CounterpartDisplayName = s.resolveName(ctx, counterpart)
	}

	last, err := s.messages.LatestActive(ctx, c.ID)
	switch {
	case err == nil:
		ts := last.Timestamp
		summary.LastMessageTimestamp = &ts
		switch {
		case last.Body != "":
			summary.LastMessageBody = last.Body
		case last.AttachmentRef != "":
			summary.LastMessageBody = AttachmentPlaceholder
		}
	case !errors.Is(err, chatapp_errors.ErrNotFound):
		return ChatSummary{}, err
	}

	unread, err := s.messages.CountUnreadFor(ctx, c.ID, viewerID)
	if err != nil {
		return ChatSummary{}, err
	}
	summary.UnreadCount = unread
	return summary, nil
}

func (s *SummaryService) ListForUser(ctx context.Context, userID uuid.UUID) ([]ChatSummary, error) {
	if userID == uuid.Nil {
		return nil, chatapp_errors.ErrInvalidIdentifier
	}
	chats, err := s.chats.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	summaries := make([]ChatSummary, 0, len(chats))
	for i := range chats {
		summary, err := s.ChatSummary(ctx, &chats[i], userID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// resolveName never fails: unknown or unreachable users get a placeholder.
func (s *SummaryService) resolveName(ctx context.Context, userID uuid.UUID) string {
	if s.directory == nil {
		return domain.UnknownUserName
	}
	name, err := s.directory.DisplayName(ctx, userID)
	if err != nil {
		if !errors.Is(err, chatapp_errors.ErrNotFound) {
			s.log.WithContext(ctx).Error("display name lookup failed",
				zap.String("target_user_id", userID.String()), zap.Error(err))
		}
		return domain.UnknownUserName
	}
	if name == "" {
		return domain.UnknownUserName
	}
	return name
}
