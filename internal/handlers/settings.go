package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/ki-backend/internal/services"
)

type SettingsHandler struct {
	settingsService services.SettingsService
}

func NewSettingsHandler(settingsService services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

func (sh *SettingsHandler) GetAgentPrompt(c *gin.Context) {
	prompt, custom, err := sh.settingsService.GetDefaultAgentPrompt(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"prompt": prompt, "is_custom": custom})
}

func (sh *SettingsHandler) UpdateAgentPrompt(c *gin.Context) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	prompt, err := sh.settingsService.UpdateDefaultAgentPrompt(c.Request.Context(), req.Prompt)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"prompt": prompt})
}
