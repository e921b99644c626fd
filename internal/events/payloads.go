package events

type JoinRoomPayload struct {
	ChatID string `json:"chatId" validate:"required"`
}

type SendMessagePayload struct {
	ChatID        string `json:"chatId" validate:"required"`
	SenderID      string `json:"senderId" validate:"required"`
	SenderName    string `json:"senderName" validate:"required"`
	Message       string `json:"message"`
	AttachmentRef string `json:"attachmentRef,omitempty"`
}

// TypingPayload is both the inbound typing/stop_typing payload and the
// user_typing/user_stop_typing notice.
type TypingPayload struct {
	ChatID   string `json:"chatId" validate:"required"`
	UserID   string `json:"userId" validate:"required"`
	UserName string `json:"userName"`
}

type RoomJoinedPayload struct {
	ChatID string `json:"chatId"`
}

type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
