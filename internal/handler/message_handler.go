package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chatapp/internal/commands"
	"chatapp/internal/domain"
	"chatapp/internal/services"
	"chatapp/internal/storage"
	"chatapp/internal/transport/httpdto"
	chatapp_errors "chatapp/pkg/errors"
	"chatapp/pkg/logger"
)

type MessageHandler struct {
	messages       *services.MessageService
	attachments    storage.AttachmentStore
	maxUploadBytes int64
}

// NewMessageHandler accepts a nil store, in which case file parts are rejected.
func NewMessageHandler(messages *services.MessageService, attachments storage.AttachmentStore, maxUploadBytes int64) *MessageHandler {
	return &MessageHandler{messages: messages, attachments: attachments, maxUploadBytes: maxUploadBytes}
}

// Send answers POST /messages/send. Multipart requests may carry the
// attachment as a "file" part.
func (h *MessageHandler) Send(c *gin.Context) {
	var req httpdto.SendMessageRequest
	multipart := strings.HasPrefix(c.ContentType(), "multipart/form-data")
	if multipart && h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+(1<<20))
	}

	var bindErr error
	if multipart {
		bindErr = c.ShouldBind(&req)
	} else {
		bindErr = c.ShouldBindJSON(&req)
	}
	if bindErr != nil {
		fail(c, bindError(bindErr))
		return
	}
	if err := httpdto.Validate(req); err != nil {
		fail(c, err)
		return
	}
	chatID, err := domain.ParseID(req.ChatID)
	if err != nil {
		fail(c, err)
		return
	}
	senderID, err := domain.ParseID(req.SenderID)
	if err != nil {
		fail(c, err)
		return
	}

	ctx := c.Request.Context()
	attachmentRef := strings.TrimSpace(req.AttachmentRef)
	uploaded := ""
	if multipart {
		if err := h.messages.CheckSend(ctx, chatID, senderID, req.Message); err != nil {
			fail(c, err)
			return
		}
		ref, err := h.saveAttachment(c)
		if err != nil {
			fail(c, err)
			return
		}
		if ref != "" {
			attachmentRef, uploaded = ref, ref
		}
	}

	m, err := h.messages.Send(ctx, commands.SendMessageCommand{
		ChatID:        chatID,
		SenderID:      senderID,
		SenderName:    req.SenderName,
		Body:          req.Message,
		AttachmentRef: attachmentRef,
	})
	if err != nil {
		if uploaded != "" {
			h.discardAttachment(ctx, uploaded)
		}
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, httpdto.NewMessageResponse(m))
}

func (h *MessageHandler) saveAttachment(c *gin.Context) (string, error) {
	file, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", bindError(err)
	}
	if h.attachments == nil {
		return "", fmt.Errorf("%w: attachments are not enabled", chatapp_errors.ErrInvalidInput)
	}
	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		return "", fmt.Errorf("%w: attachment exceeds %d bytes", chatapp_errors.ErrTooLarge, h.maxUploadBytes)
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	return h.attachments.Save(c.Request.Context(), file.Filename, file.Header.Get("Content-Type"), file.Size, src)
}

// discardAttachment removes an upload whose message was rejected.
func (h *MessageHandler) discardAttachment(ctx context.Context, ref string) {
	if err := h.attachments.Delete(context.WithoutCancel(ctx), ref); err != nil {
		logger.GetGlobalLogger().WithContext(ctx).Warn("failed to discard attachment",
			zap.String("ref", ref), zap.Error(err))
	}
}

func (h *MessageHandler) ListActive(c *gin.Context) {
	chatID, err := domain.ParseID(c.Param("chatId"))
	if err != nil {
		fail(c, err)
		return
	}
	list, err := h.messages.ListActive(c.Request.Context(), chatID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, httpdto.NewMessageResponses(list))
}

// Get returns a message even when it was deleted.
func (h *MessageHandler) Get(c *gin.Context) {
	messageID, err := domain.ParseID(c.Param("messageId"))
	if err != nil {
		fail(c, err)
		return
	}
	m, err := h.messages.GetByID(c.Request.Context(), messageID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, httpdto.NewMessageResponse(m))
}

func (h *MessageHandler) Edit(c *gin.Context) {
	messageID, err := domain.ParseID(c.Param("messageId"))
	if err != nil {
		fail(c, err)
		return
	}
	var req httpdto.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, bindError(err))
		return
	}
	if err := httpdto.Validate(req); err != nil {
		fail(c, err)
		return
	}
	userID, err := domain.ParseID(req.UserID)
	if err != nil {
		fail(c, err)
		return
	}

	m, err := h.messages.Edit(c.Request.Context(), commands.EditMessageCommand{
		MessageID:   messageID,
		RequesterID: userID,
		NewBody:     req.NewMessage,
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, httpdto.NewMessageResponse(m))
}

func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, err := domain.ParseID(c.Param("messageId"))
	if err != nil {
		fail(c, err)
		return
	}
	var req httpdto.DeleteMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, bindError(err))
		return
	}
	if err := httpdto.Validate(req); err != nil {
		fail(c, err)
		return
	}
	userID, err := domain.ParseID(req.UserID)
	if err != nil {
		fail(c, err)
		return
	}

	m, err := h.messages.Delete(c.Request.Context(), commands.DeleteMessageCommand{
		MessageID:   messageID,
		RequesterID: userID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, httpdto.NewMessageResponse(m))
}

func bindError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: request body exceeds %d bytes", chatapp_errors.ErrTooLarge, tooLarge.Limit)
	}
	return fmt.Errorf("%w: %v", chatapp_errors.ErrInvalidInput, err)
}
