package handler

import (
	"net/http"

	"relay-chat/internal/services"
	"relay-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	conversations *services.ConversationService
	messages      *services.MessageService
}

func NewMessageHandler(conversations *services.ConversationService, messages *services.MessageService) *MessageHandler {
	return &MessageHandler{conversations: conversations, messages: messages}
}

// Page serves ?page=&pageSize= of a conversation the caller belongs to.
func (h *MessageHandler) Page(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.conversations.RequireParticipant(ctx, id, userID); err != nil {
		fail(c, err)
		return
	}

	page, err := h.messages.Page(ctx, id, intQuery(c, "page", 1), intQuery(c, "pageSize", services.DefaultPageSize))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromMessagePage(page)))
}
