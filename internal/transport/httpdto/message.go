package httpdto

import (
	"time"

	"github.com/samber/lo"

	"chatapp/internal/domain/message"
)

// SendMessageRequest is accepted as JSON or as multipart form fields next to
// a "file" part.
type SendMessageRequest struct {
	ChatID        string `json:"chatId" form:"chatId" validate:"required"`
	SenderID      string `json:"senderId" form:"senderId" validate:"required"`
	SenderName    string `json:"senderName" form:"senderName" validate:"required"`
	Message       string `json:"message" form:"message"`
	AttachmentRef string `json:"attachmentRef" form:"attachmentRef"`
}

type EditMessageRequest struct {
	NewMessage string `json:"newMessage" validate:"required"`
	UserID     string `json:"userId" validate:"required"`
}

type DeleteMessageRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type EditResponse struct {
	PreviousMessage string    `json:"previousMessage"`
	EditedAt        time.Time `json:"editedAt"`
}

type MessageResponse struct {
	ID            string         `json:"_id"`
	ChatID        string         `json:"chatId"`
	SenderID      string         `json:"senderId"`
	SenderName    string         `json:"senderName"`
	Message       string         `json:"message,omitempty"`
	AttachmentRef string         `json:"attachmentRef,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	IsEdited      bool           `json:"isEdited"`
	IsDeleted     bool           `json:"isDeleted"`
	EditHistory   []EditResponse `json:"editHistory"`
	LastEditedAt  *time.Time     `json:"lastEditedAt,omitempty"`
	DeletedAt     *time.Time     `json:"deletedAt,omitempty"`
}

// NewMessageResponse withholds the content of deleted messages.
func NewMessageResponse(m *message.Message) MessageResponse {
	resp := MessageResponse{
		ID:           m.ID.String(),
		ChatID:       m.ChatID.String(),
		SenderID:     m.SenderID.String(),
		SenderName:   m.SenderName,
		Timestamp:    m.Timestamp,
		IsEdited:     m.IsEdited,
		IsDeleted:    m.IsDeleted,
		EditHistory:  []EditResponse{},
		LastEditedAt: m.LastEditedAt,
		DeletedAt:    m.DeletedAt,
	}
	if m.IsDeleted {
		return resp
	}
	resp.Message = m.Body
	resp.AttachmentRef = m.AttachmentRef
	resp.EditHistory = lo.Map(m.EditHistory, func(e message.Edit, _ int) EditResponse {
		return EditResponse{PreviousMessage: e.PreviousBody, EditedAt: e.EditedAt}
	})
	return resp
}

func NewMessageResponses(list []message.Message) []MessageResponse {
	return lo.Map(list, func(m message.Message, _ int) MessageResponse {
		return NewMessageResponse(&m)
	})
}
