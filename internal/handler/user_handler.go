package handler

import (
	"net/http"

	"relay-chat/internal/services"
	"relay-chat/internal/transport/httpdto"
	relay_errors "relay-chat/pkg/errors"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// Create registers the caller. The id in the body must be the token subject.
func (h *UserHandler) Create(c *gin.Context) {
	var req httpdto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if req.ID != userID {
		fail(c, relay_errors.New(relay_errors.ErrForbidden, "cannot create another user"))
		return
	}

	u, err := h.service.Create(c.Request.Context(), req.ID, req.Username)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromUser(u)))
}

func (h *UserHandler) Onboard(c *gin.Context) {
	var req httpdto.OnboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	u, err := h.service.Onboard(c.Request.Context(), userID, req.Username, *req.Avatar)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromUser(u)))
}

func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	u, err := h.service.Get(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromUser(u)))
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req httpdto.UpdateAvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	u, err := h.service.UpdateAvatar(c.Request.Context(), userID, *req.Avatar)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromUser(u)))
}

func (h *UserHandler) Info(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	info, err := h.service.Info(c.Request.Context(), c.Param("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(info))
}
