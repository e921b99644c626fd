package message

import (
	"time"

	chatapp_errors "chatapp/pkg/errors"

	"github.com/google/uuid"
)

// DefaultEditWindow bounds how long after sending a message can be changed.
const DefaultEditWindow = 4 * time.Hour

// Precision is the finest time unit every storage driver keeps. Mongo stores
// milliseconds.
const Precision = time.Millisecond

// StoredTime returns t as storage will hold it. Window checks compare
// stored times so every driver agrees on the boundary.
func StoredTime(t time.Time) time.Time {
	return t.UTC().Truncate(Precision)
}

// Message is a single chat message. Messages are soft deleted only.
type Message struct {
	ID            uuid.UUID
	ChatID        uuid.UUID
	SenderID      uuid.UUID
	SenderName    string
	Body          string
	AttachmentRef string
	Timestamp     time.Time
	// Seq breaks timestamp ties in insertion order within a chat.
	Seq          int64
	IsEdited     bool
	IsDeleted    bool
	EditHistory  []Edit
	LastEditedAt *time.Time
	DeletedAt    *time.Time
}

// Edit is one entry of a message's edit history, oldest first.
type Edit struct {
	PreviousBody string
	EditedAt     time.Time
}

func New(chatID, senderID uuid.UUID, senderName, body, attachmentRef string, now time.Time) *Message {
	return &Message{
		ID:            uuid.New(),
		ChatID:        chatID,
		SenderID:      senderID,
		SenderName:    senderName,
		Body:          body,
		AttachmentRef: attachmentRef,
		Timestamp:     StoredTime(now),
		EditHistory:   []Edit{},
	}
}

func (m *Message) HasContent() bool {
	return m.Body != "" || m.AttachmentRef != ""
}

// WindowOpen reports whether now is still within window of the original timestamp.
// A message exactly window old is still mutable.
func (m *Message) WindowOpen(now time.Time, window time.Duration) bool {
	return !now.After(m.Timestamp.Add(window))
}

// CheckMutable validates that requesterID may edit or delete the message at now.
func (m *Message) CheckMutable(requesterID uuid.UUID, now time.Time, window time.Duration) error {
	if m.SenderID != requesterID {
		return chatapp_errors.ErrForbidden
	}
	if !m.WindowOpen(now, window) {
		return chatapp_errors.ErrWindowExpired
	}
	if m.IsDeleted {
		return chatapp_errors.ErrAlreadyDeleted
	}
	return nil
}

// ApplyEdit records the current body in the history and replaces it.
func (m *Message) ApplyEdit(newBody string, now time.Time) {
	at := StoredTime(now)
	m.EditHistory = append(m.EditHistory, Edit{PreviousBody: m.Body, EditedAt: at})
	m.Body = newBody
	m.IsEdited = true
	m.LastEditedAt = &at
}

func (m *Message) MarkDeleted(now time.Time) {
	at := StoredTime(now)
	m.IsDeleted = true
	m.DeletedAt = &at
}

// Clone returns a deep copy so callers cannot alias stored state.
func (m *Message) Clone() *Message {
	out := *m
	out.EditHistory = append([]Edit{}, m.EditHistory...)
	if m.LastEditedAt != nil {
		t := *m.LastEditedAt
		out.LastEditedAt = &t
	}
	if m.DeletedAt != nil {
		t := *m.DeletedAt
		out.DeletedAt = &t
	}
	return &out
}
