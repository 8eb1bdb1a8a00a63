package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/ki-backend/internal/services"
)

type CaptureHandler struct {
	captureService services.CaptureService
}

func NewCaptureHandler(captureService services.CaptureService) *CaptureHandler {
	return &CaptureHandler{captureService: captureService}
}

func (ch *CaptureHandler) Get(c *gin.Context) {
	captureID, pErr := uuid.Parse(c.Param("id"))
	if pErr != nil {
		RespondError(c, http.StatusBadRequest, "invalid capture id")
		return
	}
	capture, err := ch.captureService.GetCapture(c.Request.Context(), captureID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"capture": capture})
}

func (ch *CaptureHandler) List(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	captures, err := ch.captureService.ListTranscribed(c.Request.Context(), limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"captures": captures})
}
