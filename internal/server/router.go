package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/ki-backend/internal/handlers"
	"github.com/yungbote/ki-backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler     *handlers.AuthHandler
	AuthMiddleware  *middleware.AuthMiddleware
	UserHandler     *handlers.UserHandler
	DocumentHandler *handlers.DocumentHandler
	CaptureHandler  *handlers.CaptureHandler
	SettingsHandler *handlers.SettingsHandler
	ChatHandler     *handlers.ChatHandler
	SSEHandler      *handlers.SSEHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/register", cfg.AuthHandler.Register)
	router.POST("/login", cfg.AuthHandler.Login)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Auth
	protected.POST("/refresh", cfg.AuthHandler.Refresh)
	protected.POST("/logout", cfg.AuthHandler.Logout)
	// SSE
	protected.GET("/sse/stream", cfg.SSEHandler.SSEStream)
	// User
	protected.GET("/user", cfg.UserHandler.GetMe)

	api := protected.Group("/api")
	// Chat
	api.POST("/chat", cfg.ChatHandler.Chat)
	api.GET("/conversations/:documentId/messages", cfg.ChatHandler.GetConversationMessages)
	// Documents
	api.POST("/documents", cfg.DocumentHandler.Create)
	api.GET("/documents", cfg.DocumentHandler.List)
	api.GET("/documents/:id", cfg.DocumentHandler.Get)
	api.PATCH("/documents/:id", cfg.DocumentHandler.Update)
	api.PATCH("/documents/:id/focus", cfg.DocumentHandler.SetFocus)
	api.DELETE("/documents/:id", cfg.DocumentHandler.Delete)
	// Captures
	api.GET("/captures", cfg.CaptureHandler.List)
	api.GET("/captures/:id", cfg.CaptureHandler.Get)
	// Settings
	api.GET("/settings/agent-prompt", cfg.SettingsHandler.GetAgentPrompt)
	api.PATCH("/settings/agent-prompt", cfg.SettingsHandler.UpdateAgentPrompt)

	return router
}
