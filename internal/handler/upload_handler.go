package handler

import (
	"net/http"

	"relay-chat/internal/services"
	"relay-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type UploadHandler struct {
	service *services.UploadService
}

func NewUploadHandler(service *services.UploadService) *UploadHandler {
	return &UploadHandler{service: service}
}

// Download signs a short-lived URL for a file under uploads/.
func (h *UploadHandler) Download(c *gin.Context) {
	var req httpdto.DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	if _, ok := currentUser(c); !ok {
		return
	}

	url, err := h.service.SignedDownloadURL(c.Request.Context(), req.Filename)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.DownloadResponse{URL: url}))
}
