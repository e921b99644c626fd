package websocket

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatapp/internal/commands"
	"chatapp/internal/domain"
	"chatapp/internal/domain/message"
	"chatapp/internal/events"
	"chatapp/internal/transport/httpdto"
	chatapp_errors "chatapp/pkg/errors"
	"chatapp/pkg/logger"
)

type MessageSender interface {
	Send(ctx context.Context, cmd commands.SendMessageCommand) (*message.Message, error)
}

type TokenVerifier interface {
	VerifyUser(token string) (uuid.UUID, error)
}

type HandlerConfig struct {
	SendBuffer  int
	TypingLimit int
	// CheckOrigin defaults to accepting every origin.
	CheckOrigin func(r *http.Request) bool
}

// Handler upgrades HTTP requests to sessions and runs their commands.
type Handler struct {
	hub        *Hub
	messages   MessageSender
	authorizer *RoomAuthorizer
	tokens     TokenVerifier
	cfg        HandlerConfig
	upgrader   websocket.Upgrader
	log        *Logger
	base       *logger.Logger
}

// NewHandler requires a ?token= access token when tokens is set. Without a
// verifier sessions may identify themselves with ?userId= or stay anonymous.
func NewHandler(hub *Hub, messages MessageSender, authorizer *RoomAuthorizer, tokens TokenVerifier, cfg HandlerConfig, log *logger.Logger) *Handler {
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Handler{
		hub:        hub,
		messages:   messages,
		authorizer: authorizer,
		tokens:     tokens,
		cfg:        cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		log:  NewLogger(log),
		base: log,
	}
}

func (h *Handler) Connect(c *gin.Context) {
	userID, err := h.identify(c)
	if err != nil {
		c.JSON(chatapp_errors.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), chatapp_errors.Kind(err)))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("upgrade_failed", nil, zap.Error(err))
		return
	}

	client := NewClient(conn, userID, h.cfg.SendBuffer)
	if h.cfg.TypingLimit > 0 {
		client.limiter = NewTypingLimiter(h.cfg.TypingLimit, nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = context.WithValue(ctx, logger.RequestIdKey, client.ID.String())
	if userID != uuid.Nil {
		ctx = context.WithValue(ctx, logger.UserIdKey, userID.String())
	}

	h.hub.Register(client)
	go client.writePump()

	err = client.readPump(func(raw []byte) { h.dispatch(ctx, client, raw) })
	if err != nil {
		h.log.Warn("read_failed", client, zap.Error(err))
	}
	h.hub.Unregister(client)
}

func (h *Handler) identify(c *gin.Context) (uuid.UUID, error) {
	if h.tokens != nil {
		return h.tokens.VerifyUser(c.Query("token"))
	}
	raw := c.Query("userId")
	if raw == "" {
		return uuid.Nil, nil
	}
	return domain.ParseID(raw)
}

func (h *Handler) dispatch(ctx context.Context, c *Client, raw []byte) {
	frame, err := events.Decode(raw)
	if err != nil {
		h.fail(ctx, c, "", fmt.Errorf("%w: malformed frame", chatapp_errors.ErrInvalidInput))
		return
	}

	switch frame.Event {
	case events.EventJoinRoom:
		err = h.joinRoom(ctx, c, frame)
	case events.EventSendMessage:
		err = h.sendMessage(ctx, c, frame)
	case events.EventTyping, events.EventStopTyping:
		err = h.typing(ctx, c, frame)
	default:
		err = fmt.Errorf("%w: unknown event %q", chatapp_errors.ErrInvalidInput, frame.Event)
	}
	if err != nil {
		h.fail(ctx, c, frame.Event, err)
	}
}

func (h *Handler) joinRoom(ctx context.Context, c *Client, frame events.Frame) error {
	var p events.JoinRoomPayload
	if err := decodePayload(frame, &p); err != nil {
		return err
	}
	chatID, err := domain.ParseID(p.ChatID)
	if err != nil {
		return err
	}
	if err := h.authorizer.CanJoin(ctx, c.UserID, chatID); err != nil {
		return err
	}
	h.hub.Join(c, chatID)
	h.hub.send(c, events.EventRoomJoined, events.RoomJoinedPayload{ChatID: chatID.String()})
	return nil
}

func (h *Handler) sendMessage(ctx context.Context, c *Client, frame events.Frame) error {
	var p events.SendMessagePayload
	if err := decodePayload(frame, &p); err != nil {
		return err
	}
	chatID, err := domain.ParseID(p.ChatID)
	if err != nil {
		return err
	}
	senderID, err := domain.ParseID(p.SenderID)
	if err != nil {
		return err
	}
	if err := h.checkIdentity(c, senderID); err != nil {
		return err
	}
	_, err = h.messages.Send(ctx, commands.SendMessageCommand{
		ChatID:        chatID,
		SenderID:      senderID,
		SenderName:    p.SenderName,
		Body:          p.Message,
		AttachmentRef: p.AttachmentRef,
	})
	return err
}

func (h *Handler) typing(ctx context.Context, c *Client, frame events.Frame) error {
	var p events.TypingPayload
	if err := decodePayload(frame, &p); err != nil {
		return err
	}
	chatID, err := domain.ParseID(p.ChatID)
	if err != nil {
		return err
	}
	userID, err := domain.ParseID(p.UserID)
	if err != nil {
		return err
	}
	if err := h.checkIdentity(c, userID); err != nil {
		return err
	}
	if !c.limiter.Allow() {
		return chatapp_errors.ErrRateLimited
	}
	if err := h.authorizer.CanJoin(ctx, c.UserID, chatID); err != nil {
		return err
	}

	notice := events.TypingPayload{ChatID: chatID.String(), UserID: userID.String(), UserName: p.UserName}
	if frame.Event == events.EventTyping {
		h.hub.PublishTyping(ctx, chatID, c, notice)
	} else {
		h.hub.PublishStopTyping(ctx, chatID, c, notice)
	}
	return nil
}

// checkIdentity stops a session from acting as someone else. Anonymous
// sessions may only act when membership is not enforced.
func (h *Handler) checkIdentity(c *Client, claimed uuid.UUID) error {
	if c.UserID == uuid.Nil {
		if h.authorizer.RequiresIdentity() {
			return fmt.Errorf("%w: session is not identified", chatapp_errors.ErrForbidden)
		}
		return nil
	}
	if c.UserID != claimed {
		return fmt.Errorf("%w: user does not match the session", chatapp_errors.ErrForbidden)
	}
	return nil
}

func (h *Handler) fail(ctx context.Context, c *Client, event string, err error) {
	payload := events.ErrorPayload{Event: event, Code: chatapp_errors.Kind(err), Message: err.Error()}
	if !chatapp_errors.IsExpected(err) {
		h.base.WithContext(ctx).Error("websocket command failed", zap.String("frame_event", event), zap.Error(err))
		payload.Message = "internal server error"
	}
	h.hub.send(c, events.EventError, payload)
}

func decodePayload(frame events.Frame, v any) error {
	if err := frame.Payload(v); err != nil {
		return fmt.Errorf("%w: %v", chatapp_errors.ErrInvalidInput, err)
	}
	return httpdto.Validate(v)
}
