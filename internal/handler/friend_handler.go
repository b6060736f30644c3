package handler

import (
	"context"
	"net/http"

	"relay-chat/internal/services"
	"relay-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type FriendHandler struct {
	service *services.FriendService
}

func NewFriendHandler(service *services.FriendService) *FriendHandler {
	return &FriendHandler{service: service}
}

func (h *FriendHandler) SendRequest(c *gin.Context) {
	var req httpdto.SendFriendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	fr, err := h.service.SendRequest(c.Request.Context(), userID, req.FriendUsername)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(fr))
}

func (h *FriendHandler) Accept(c *gin.Context) {
	h.respond(c, h.service.Accept)
}

func (h *FriendHandler) Refuse(c *gin.Context) {
	h.respond(c, h.service.Refuse)
}

func (h *FriendHandler) respond(c *gin.Context, action func(ctx context.Context, receiverID, senderID string) error) {
	var req httpdto.RespondFriendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := action(c.Request.Context(), userID, req.SenderID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *FriendHandler) ListRequests(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	requests, err := h.service.ListPending(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(requests))
}

func (h *FriendHandler) CountRequests(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	count, err := h.service.CountPending(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.CountResponse{Count: count}))
}

func (h *FriendHandler) ListFriends(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	friends, err := h.service.ListFriends(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(friends))
}
