package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mkravets/safedesk/internal/api/admin"
	"github.com/mkravets/safedesk/internal/api/chat"
	"github.com/mkravets/safedesk/internal/api/middleware"
	"github.com/mkravets/safedesk/internal/api/quizapi"
	"github.com/mkravets/safedesk/internal/repository"
	"github.com/mkravets/safedesk/internal/service"
	"go.uber.org/zap"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	APIKey       string
	AllowOrigins []string
	UploadDir    string
}

// SetupRouter sets up the Gin router
func SetupRouter(
	chatService *service.ChatService,
	quizService *service.QuizService,
	adminService *service.AdminService,
	users *repository.UserRepository,
	cfg RouterConfig,
	logger *zap.Logger,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	// CORS middleware
	r.Use(middleware.CORS(cfg.AllowOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Chat API (text, image, voice, reset)
	chatHandler := chat.NewHandler(chatService, users, cfg.UploadDir, logger)
	chatGroup := r.Group("/api/chat")
	chatHandler.RegisterRoutes(chatGroup)

	// Quiz API
	quizHandler := quizapi.NewHandler(quizService, users, logger)
	quizGroup := r.Group("/api/quiz")
	quizHandler.RegisterRoutes(quizGroup)

	// Admin API (requires API key)
	adminHandler := admin.NewHandler(adminService)
	adminGroup := r.Group("/api/admin")
	adminGroup.Use(middleware.Auth(cfg.APIKey))
	adminHandler.RegisterRoutes(adminGroup)

	return r
}
