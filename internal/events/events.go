// Package events defines the realtime frames exchanged with websocket
// sessions and relayed between instances.
package events

import (
	"encoding/json"
	"fmt"
)

// Inbound events, sent by sessions.
const (
	EventJoinRoom    = "join_room"
	EventSendMessage = "send_message"
	EventTyping      = "typing"
	EventStopTyping  = "stop_typing"
)

// Outbound events, pushed to sessions.
const (
	EventReceiveMessage = "receive_message"
	EventUserTyping     = "user_typing"
	EventUserStopTyping = "user_stop_typing"
	EventMessageEdited  = "message_edited"
	EventMessageDeleted = "message_deleted"
	EventRoomJoined     = "room_joined"
	EventError          = "error"
)

// Frame is the wire shape of every realtime event.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds the serialized frame for event with data as payload.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

func Decode(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Payload unmarshals the frame data into v.
func (f Frame) Payload(v any) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%s: missing data", f.Event)
	}
	return json.Unmarshal(f.Data, v)
}
