package domain

import (
	"fmt"
	"strings"

	chatapp_errors "chatapp/pkg/errors"

	"github.com/google/uuid"
)

// Placeholders used when a summary cannot be fully resolved.
const (
	NoMessagesPlaceholder = "No messages yet"
	UnknownUserName       = "Unknown User"
)

// ParseID converts the canonical string form of an identifier.
func ParseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %q", chatapp_errors.ErrInvalidIdentifier, raw)
	}
	return id, nil
}
