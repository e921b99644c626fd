package websocket

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	chatapp_errors "chatapp/pkg/errors"
)

type MembershipChecker interface {
	IsMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error)
}

// RoomAuthorizer decides whether a session may join a chat room or act in
// it.
type RoomAuthorizer struct {
	chats   MembershipChecker
	enforce bool
}

// NewRoomAuthorizer only checks membership when enforce is set. Otherwise
// any session may join any room.
func NewRoomAuthorizer(chats MembershipChecker, enforce bool) *RoomAuthorizer {
	return &RoomAuthorizer{chats: chats, enforce: enforce}
}

// RequiresIdentity reports whether anonymous sessions are refused.
func (a *RoomAuthorizer) RequiresIdentity() bool {
	return a.enforce
}

func (a *RoomAuthorizer) CanJoin(ctx context.Context, userID, chatID uuid.UUID) error {
	if !a.enforce {
		return nil
	}
	if userID == uuid.Nil {
		return fmt.Errorf("%w: session is not identified", chatapp_errors.ErrForbidden)
	}
	ok, err := a.chats.IsMember(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: not a member of this chat", chatapp_errors.ErrForbidden)
	}
	return nil
}
