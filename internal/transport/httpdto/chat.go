package httpdto

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"chatapp/internal/domain/chat"
	"chatapp/internal/services"
)

type CreateChatRequest struct {
	UserID1 string `json:"userId1" validate:"required"`
	UserID2 string `json:"userId2" validate:"required"`
}

type ChatResponse struct {
	ID           string    `json:"_id"`
	Members      []string  `json:"members"`
	CreatedAt    time.Time `json:"createdAt"`
	MessageCount int64     `json:"messageCount"`
}

func NewChatResponse(c *chat.Chat) ChatResponse {
	return ChatResponse{
		ID:           c.ID.String(),
		Members:      idStrings(c.Members),
		CreatedAt:    c.CreatedAt,
		MessageCount: c.MessageCount,
	}
}

// ChatSummaryResponse is one entry of GET /chats/user/:userId. Name and
// UserName both carry the counterpart's display name.
type ChatSummaryResponse struct {
	ID              string     `json:"_id"`
	Name            string     `json:"name"`
	UserName        string     `json:"userName"`
	CounterpartID   string     `json:"counterpartId,omitempty"`
	LastMessage     string     `json:"lastMessage"`
	LastMessageTime *time.Time `json:"lastMessageTime"`
	UnreadCount     int64      `json:"unreadCount"`
	IsOnline        bool       `json:"isOnline"`
	Members         []string   `json:"members"`
}

func NewChatSummaryResponse(s services.ChatSummary) ChatSummaryResponse {
	resp := ChatSummaryResponse{
		ID:              s.ChatID.String(),
		Name:            s.CounterpartDisplayName,
		UserName:        s.CounterpartDisplayName,
		LastMessage:     s.LastMessageBody,
		LastMessageTime: s.LastMessageTimestamp,
		UnreadCount:     s.UnreadCount,
		IsOnline:        s.IsOnline,
		Members:         idStrings(s.Members),
	}
	if s.CounterpartID != uuid.Nil {
		resp.CounterpartID = s.CounterpartID.String()
	}
	return resp
}

func NewChatSummaryResponses(list []services.ChatSummary) []ChatSummaryResponse {
	return lo.Map(list, func(s services.ChatSummary, _ int) ChatSummaryResponse {
		return NewChatSummaryResponse(s)
	})
}

func idStrings(ids []uuid.UUID) []string {
	return lo.Map(ids, func(id uuid.UUID, _ int) string { return id.String() })
}
