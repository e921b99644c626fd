package chat

import (
	"time"

	chatapp_errors "chatapp/pkg/errors"

	"github.com/google/uuid"
)

// Chat is a conversation between exactly two users.
type Chat struct {
	ID           uuid.UUID
	Members      []uuid.UUID
	MemberKey    string
	CreatedAt    time.Time
	MessageCount int64
}

// MemberKey is the order independent key of a member pair.
// Storage enforces uniqueness on it.
func MemberKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if y < x {
		x, y = y, x
	}
	return x + ":" + y
}

// New builds a chat for the pair, keeping the caller's member order.
func New(userA, userB uuid.UUID, now time.Time) (*Chat, error) {
	if userA == uuid.Nil || userB == uuid.Nil {
		return nil, chatapp_errors.ErrInvalidIdentifier
	}
	if userA == userB {
		return nil, chatapp_errors.ErrSameUser
	}
	return &Chat{
		ID:        uuid.New(),
		Members:   []uuid.UUID{userA, userB},
		MemberKey: MemberKey(userA, userB),
		CreatedAt: now.UTC(),
	}, nil
}

func (c *Chat) HasMember(userID uuid.UUID) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Counterpart returns the member that is not the viewer.
func (c *Chat) Counterpart(viewerID uuid.UUID) (uuid.UUID, bool) {
	if !c.HasMember(viewerID) {
		return uuid.Nil, false
	}
	for _, m := range c.Members {
		if m != viewerID {
			return m, true
		}
	}
	return uuid.Nil, false
}
