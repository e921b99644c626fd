package commands

import (
	"fmt"
	"strings"

	chatapp_errors "chatapp/pkg/errors"

	"github.com/google/uuid"
)

type SendMessageCommand struct {
	ChatID        uuid.UUID
	SenderID      uuid.UUID
	SenderName    string
	Body          string
	AttachmentRef string
}

func (SendMessageCommand) CommandType() string {
	return "message.send"
}

// Validate checks identifiers and the sender name. Whether an empty message
// is acceptable is a service setting.
func (c SendMessageCommand) Validate() error {
	if c.ChatID == uuid.Nil || c.SenderID == uuid.Nil {
		return chatapp_errors.ErrInvalidIdentifier
	}
	if strings.TrimSpace(c.SenderName) == "" {
		return fmt.Errorf("%w: senderName is required", chatapp_errors.ErrInvalidInput)
	}
	return nil
}

func (c SendMessageCommand) HasContent() bool {
	return strings.TrimSpace(c.Body) != "" || strings.TrimSpace(c.AttachmentRef) != ""
}

type EditMessageCommand struct {
	MessageID   uuid.UUID
	RequesterID uuid.UUID
	NewBody     string
}

func (EditMessageCommand) CommandType() string {
	return "message.edit"
}

func (c EditMessageCommand) Validate() error {
	if c.MessageID == uuid.Nil || c.RequesterID == uuid.Nil {
		return chatapp_errors.ErrInvalidIdentifier
	}
	if strings.TrimSpace(c.NewBody) == "" {
		return fmt.Errorf("%w: new message cannot be empty", chatapp_errors.ErrInvalidInput)
	}
	return nil
}

type DeleteMessageCommand struct {
	MessageID   uuid.UUID
	RequesterID uuid.UUID
}

func (DeleteMessageCommand) CommandType() string {
	return "message.delete"
}

func (c DeleteMessageCommand) Validate() error {
	if c.MessageID == uuid.Nil || c.RequesterID == uuid.Nil {
		return chatapp_errors.ErrInvalidIdentifier
	}
	return nil
}
