package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"chatapp/internal/commands"
	"chatapp/internal/domain"
	"chatapp/internal/services"
	"chatapp/internal/transport/httpdto"
	chatapp_errors "chatapp/pkg/errors"
)

type ChatHandler struct {
	chats     *services.ChatService
	summaries *services.SummaryService
}

func NewChatHandler(chats *services.ChatService, summaries *services.SummaryService) *ChatHandler {
	return &ChatHandler{chats: chats, summaries: summaries}
}

// ListForUser answers GET /chats/user/:userId with the user's chat summaries.
func (h *ChatHandler) ListForUser(c *gin.Context) {
	userID, err := domain.ParseID(c.Param("userId"))
	if err != nil {
		fail(c, err)
		return
	}

	list, err := h.summaries.ListForUser(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, httpdto.NewChatSummaryResponses(list))
}

// Create answers 201 for a new chat and 200 when the pair already had one.
func (h *ChatHandler) Create(c *gin.Context) {
	var req httpdto.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, fmt.Errorf("%w: %v", chatapp_errors.ErrInvalidInput, err))
		return
	}
	if err := httpdto.Validate(req); err != nil {
		fail(c, err)
		return
	}
	userA, err := domain.ParseID(req.UserID1)
	if err != nil {
		fail(c, err)
		return
	}
	userB, err := domain.ParseID(req.UserID2)
	if err != nil {
		fail(c, err)
		return
	}

	chat, created, err := h.chats.FindOrCreate(c.Request.Context(), commands.CreateChatCommand{UserA: userA, UserB: userB})
	if err != nil {
		fail(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respond(c, status, httpdto.NewChatResponse(chat))
}

func (h *ChatHandler) Get(c *gin.Context) {
	chatID, err := domain.ParseID(c.Param("chatId"))
	if err != nil {
		fail(c, err)
		return
	}
	chat, err := h.chats.GetByID(c.Request.Context(), chatID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, httpdto.NewChatResponse(chat))
}
