package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/yungbote/ki-backend/internal/clients/anthropic"
	redisclient "github.com/yungbote/ki-backend/internal/clients/redis"
	"github.com/yungbote/ki-backend/internal/db"
	"github.com/yungbote/ki-backend/internal/handlers"
	"github.com/yungbote/ki-backend/internal/logger"
	"github.com/yungbote/ki-backend/internal/middleware"
	"github.com/yungbote/ki-backend/internal/repos"
	"github.com/yungbote/ki-backend/internal/server"
	"github.com/yungbote/ki-backend/internal/services"
	"github.com/yungbote/ki-backend/internal/sse"
	"github.com/yungbote/ki-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	userTokenRepo := repos.NewUserTokenRepo(thePG, log)
	userSettingsRepo := repos.NewUserSettingsRepo(thePG, log)
	documentRepo := repos.NewDocumentRepo(thePG, log)
	captureRepo := repos.NewCaptureRepo(thePG, log)
	conversationRepo := repos.NewConversationRepo(thePG, log)
	messageRepo := repos.NewMessageRepo(thePG, log)

	// SSE
	log.Info("Setting up SSE hub now...")
	sseHub := sse.NewSSEHub(log)

	// The redis bus is optional; without it events stay instance-local.
	var sseBus redisclient.SSEBus
	if os.Getenv("REDIS_ADDR") != "" {
		bus, busErr := redisclient.NewSSEBus(log)
		if busErr != nil {
			log.Warn("Could not init redis SSE bus", "error", busErr)
		} else {
			sseBus = bus
			if fwdErr := sseBus.StartForwarder(context.Background(), sseHub.Broadcast); fwdErr != nil {
				log.Warn("Could not start SSE forwarder", "error", fwdErr)
			}
		}
	}

	// Services
	log.Info("Setting up Services from main...")
	anthropicClient, err := anthropic.NewClient(log)
	if err != nil {
		log.Error("Could not init AnthropicClient", "error", err)
		os.Exit(1)
	}
	authService := services.NewAuthService(thePG, log, userRepo, userTokenRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second, time.Duration(refreshTokenTTL)*time.Second)
	userService := services.NewUserService(thePG, log, userRepo)
	documentService := services.NewDocumentService(thePG, log, documentRepo, captureRepo, sseBus, sseHub)
	captureService := services.NewCaptureService(thePG, log, captureRepo)
	settingsService := services.NewSettingsService(thePG, log, userSettingsRepo)
	chatService := services.NewChatService(thePG, log, documentRepo, captureRepo, userSettingsRepo, conversationRepo, messageRepo, anthropicClient, sseBus, sseHub)

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	documentHandler := handlers.NewDocumentHandler(documentService)
	captureHandler := handlers.NewCaptureHandler(captureService)
	settingsHandler := handlers.NewSettingsHandler(settingsService)
	chatHandler := handlers.NewChatHandler(chatService)
	sseHandler := handlers.NewSSEHandler(sseHub)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:     authHandler,
		AuthMiddleware:  authMiddleware,
		UserHandler:     userHandler,
		DocumentHandler: documentHandler,
		CaptureHandler:  captureHandler,
		SettingsHandler: settingsHandler,
		ChatHandler:     chatHandler,
		SSEHandler:      sseHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
