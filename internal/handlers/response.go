package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RespondError writes the flat error body every endpoint uses.
func RespondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
