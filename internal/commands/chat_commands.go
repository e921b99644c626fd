package commands

import (
	chatapp_errors "chatapp/pkg/errors"

	"github.com/google/uuid"
)

type CreateChatCommand struct {
	UserA uuid.UUID
	UserB uuid.UUID
}

func (CreateChatCommand) CommandType() string {
	return "chat.create"
}

func (c CreateChatCommand) Validate() error {
	if c.UserA == uuid.Nil || c.UserB == uuid.Nil {
		return chatapp_errors.ErrInvalidIdentifier
	}
	if c.UserA == c.UserB {
		return chatapp_errors.ErrSameUser
	}
	return nil
}
