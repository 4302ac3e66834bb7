package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mkravets/safedesk/internal/api"
	"github.com/mkravets/safedesk/internal/config"
	"github.com/mkravets/safedesk/internal/conversation"
	"github.com/mkravets/safedesk/internal/index"
	"github.com/mkravets/safedesk/internal/llm"
	"github.com/mkravets/safedesk/internal/quiz"
	"github.com/mkravets/safedesk/internal/repository"
	"github.com/mkravets/safedesk/internal/service"
	"github.com/mkravets/safedesk/internal/stt"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	// Load .env if present; real environment wins
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := repository.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	interactionRepo := repository.NewInteractionRepository(db)
	quizRepo := repository.NewQuizRepository(db)

	// Build the document index
	store := index.NewStore(cfg.Knowledge, logger)
	if err := store.Reload(); err != nil {
		logger.Fatal("Failed to index knowledge base", zap.Error(err))
	}
	logger.Info("Knowledge base indexed",
		zap.Int("documents", store.DocumentCount()),
		zap.Int("chunks", store.ChunkCount()),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Watch the knowledge directory for changes
	if cfg.Knowledge.Watch {
		watcher := index.NewWatcher(store, logger)
		go func() {
			if err := watcher.Run(rootCtx); err != nil {
				logger.Warn("Knowledge watcher stopped", zap.Error(err))
			}
		}()
	}

	// Initialize services
	model := llm.NewClient(cfg.LLM, logger)
	transcriber := stt.NewWhisper(cfg.Whisper, logger)
	window := conversation.NewWindow(cfg.LLM.MaxHistoryMessages)
	engine := quiz.NewEngine(model, quizRepo, logger)

	chatService := service.NewChatService(cfg, model, store, window, userRepo, interactionRepo, transcriber, logger)
	quizService := service.NewQuizService(cfg, engine, store, userRepo, interactionRepo, logger)
	adminService := service.NewAdminService(store, interactionRepo, logger)

	// Setup router
	router := api.SetupRouter(chatService, quizService, adminService, userRepo, api.RouterConfig{
		APIKey:       cfg.Admin.APIKey,
		AllowOrigins: cfg.Server.AllowOrigins,
		UploadDir:    cfg.Whisper.WorkDir,
	}, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.ServerWriteTimeout(),
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting SafeDesk server", zap.String("address", cfg.Address()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	<-rootCtx.Done()
	stop()

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
