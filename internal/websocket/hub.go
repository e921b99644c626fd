package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatapp/internal/domain/message"
	"chatapp/internal/events"
	"chatapp/internal/transport/httpdto"
	"chatapp/pkg/keylock"
	"chatapp/pkg/logger"
)

// Relay carries room frames between instances. Frames published for a
// room must reach Run's deliver callback in publish order.
type Relay interface {
	Publish(ctx context.Context, env events.Envelope) error
	Run(ctx context.Context, deliver func(events.Envelope)) error
}

// Hub tracks which sessions are joined to which chat and pushes frames to
// them. Delivery only enqueues, so a slow session never holds up a room.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[uuid.UUID]map[*Client]struct{}

	// order serializes deliveries per room so every session sees the same
	// sequence.
	order *keylock.KeyLock

	// instance tags envelopes this hub publishes so it can skip them when
	// the relay hands them back.
	instance string
	relay    Relay
	log      *Logger
}

type HubOption func(*Hub)

// WithRelay forwards room frames to other instances through relay. Local
// sessions are always served directly.
func WithRelay(relay Relay) HubOption {
	return func(h *Hub) { h.relay = relay }
}

func NewHub(log *logger.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[uuid.UUID]map[*Client]struct{}),
		order:    keylock.New(),
		instance: uuid.NewString(),
		log:      NewLogger(log),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run consumes the relay until ctx is done, then closes every session.
func (h *Hub) Run(ctx context.Context) {
	defer h.closeAll()
	if h.relay == nil {
		<-ctx.Done()
		return
	}
	for {
		err := h.relay.Run(ctx, h.receive)
		if ctx.Err() != nil {
			return
		}
		h.log.Error("relay_stopped", nil, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Info("connected", c)
}

// Unregister removes the session from all rooms and closes its queue.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	h.leaveLocked(c)
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
	h.log.Info("disconnected", c)
}

// Join subscribes the session to a chat. Frames published after Join
// returns reach the session.
func (h *Hub) Join(c *Client, chatID uuid.UUID) {
	if c.isClosed() {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[chatID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[chatID] = room
	}
	room[c] = struct{}{}
	c.rooms[chatID] = struct{}{}
}

// Leave removes the session from every room it joined.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	h.leaveLocked(c)
	h.mu.Unlock()
}

func (h *Hub) leaveLocked(c *Client) {
	for chatID := range c.rooms {
		if room, ok := h.rooms[chatID]; ok {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, chatID)
			}
		}
		delete(c.rooms, chatID)
	}
}

func (h *Hub) RoomSize(chatID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[chatID])
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) PublishMessage(ctx context.Context, chatID uuid.UUID, msg *message.Message) {
	h.publish(ctx, chatID, nil, events.EventReceiveMessage, httpdto.NewMessageResponse(msg))
}

func (h *Hub) PublishMessageEdited(ctx context.Context, chatID uuid.UUID, msg *message.Message) {
	h.publish(ctx, chatID, nil, events.EventMessageEdited, httpdto.NewMessageResponse(msg))
}

func (h *Hub) PublishMessageDeleted(ctx context.Context, chatID uuid.UUID, msg *message.Message) {
	h.publish(ctx, chatID, nil, events.EventMessageDeleted, httpdto.NewMessageResponse(msg))
}

// PublishTyping notifies everyone in the room except origin.
func (h *Hub) PublishTyping(ctx context.Context, chatID uuid.UUID, origin *Client, notice events.TypingPayload) {
	h.publish(ctx, chatID, origin, events.EventUserTyping, notice)
}

func (h *Hub) PublishStopTyping(ctx context.Context, chatID uuid.UUID, origin *Client, notice events.TypingPayload) {
	h.publish(ctx, chatID, origin, events.EventUserStopTyping, notice)
}

func (h *Hub) publish(ctx context.Context, chatID uuid.UUID, origin *Client, event string, payload any) {
	frame, err := events.Encode(event, payload)
	if err != nil {
		h.log.Error("encode_failed", origin, err, zap.String("chat_id", chatID.String()))
		return
	}
	env := events.Envelope{ChatID: chatID, Instance: h.instance, Frame: frame}
	if origin != nil {
		env.Origin = origin.ID.String()
	}
	h.deliver(env)
	if h.relay == nil {
		return
	}
	if err := h.relay.Publish(ctx, env); err != nil {
		h.log.Warn("relay_publish_failed", origin,
			zap.String("chat_id", chatID.String()), zap.String("frame_event", event), zap.Error(err))
	}
}

// receive delivers frames relayed from other instances.
func (h *Hub) receive(env events.Envelope) {
	if env.Instance == h.instance {
		return
	}
	h.deliver(env)
}

func (h *Hub) deliver(env events.Envelope) {
	unlock := h.order.Lock(env.ChatID.String())
	defer unlock()

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[env.ChatID]))
	for c := range h.rooms[env.ChatID] {
		if env.Origin != "" && c.ID.String() == env.Origin {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(env.Frame) {
			h.log.Warn("frame_dropped", c, zap.String("chat_id", env.ChatID.String()))
		}
	}
}

// send pushes a frame to one session only.
func (h *Hub) send(c *Client, event string, payload any) {
	frame, err := events.Encode(event, payload)
	if err != nil {
		h.log.Error("encode_failed", c, err)
		return
	}
	if !c.enqueue(frame) {
		h.log.Warn("frame_dropped", c, zap.String("frame_event", event))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		h.leaveLocked(c)
		clients = append(clients, c)
	}
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}
