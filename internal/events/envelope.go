package events

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const chatChannelPrefix = "channel:chat:"

// ChatChannelPattern matches the relay channels of every chat.
const ChatChannelPattern = chatChannelPrefix + "*"

// Envelope carries a frame to every instance serving the room. Instance
// names the publishing hub, which has already delivered to its own
// sessions. Origin is the session excluded from delivery, empty when
// nobody is.
type Envelope struct {
	ChatID   uuid.UUID       `json:"chatId"`
	Instance string          `json:"instance"`
	Origin   string          `json:"origin,omitempty"`
	Frame    json.RawMessage `json:"frame"`
}

func ChatChannel(chatID uuid.UUID) string {
	return chatChannelPrefix + chatID.String()
}

func ChatFromChannel(channel string) (uuid.UUID, error) {
	raw, ok := strings.CutPrefix(channel, chatChannelPrefix)
	if !ok {
		return uuid.Nil, fmt.Errorf("not a chat channel: %s", channel)
	}
	return uuid.Parse(raw)
}
