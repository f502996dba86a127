package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"budgetpredictor/internal/config"
	"budgetpredictor/internal/handler"
	"budgetpredictor/internal/logger"
	"budgetpredictor/internal/middleware"
	"budgetpredictor/internal/model"
	"budgetpredictor/internal/repository"
	"budgetpredictor/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Print version info
	log.Printf("Construction Budget Predictor")
	log.Printf("Version: %s", Version)
	log.Printf("Build Time: %s", BuildTime)
	log.Printf("Git Commit: %s", GitCommit)
	log.Println("")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logCloser, err := logger.Setup(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logCloser.Close()

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	// Initialize database connection (optional)
	var runs service.RunStore
	if cfg.PostgreSQL.Enabled {
		repo, err := repository.NewPostgresRepository(
			cfg.GetPostgreSQLDSN(),
			cfg.PostgreSQL.MaxConnections,
			cfg.PostgreSQL.MaxIdleConnections,
		)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer repo.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = repo.EnsureSchema(ctx)
		cancel()
		if err != nil {
			log.Fatalf("Failed to prepare database schema: %v", err)
		}
		runs = repo
		log.Println("✅ Connected to PostgreSQL database")
	} else {
		log.Println("⚠️  PostgreSQL is disabled - predictions and training runs will not be recorded")
		log.Println("   Set DATABASE_URL or PG_HOST to enable the run log")
	}

	// Initialize services
	predictor := service.NewPredictor()
	budgetService := service.NewBudgetService(predictor, repository.NewArtifactStore(), runs, cfg.Model.ArtifactPath)

	if _, err := budgetService.Reload(); err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			log.Fatalf("Failed to load model: %v", err)
		}
		log.Printf("⚠️  No model at %s - predictions return 503 until one is trained and reloaded", cfg.Model.ArtifactPath)
		log.Println("   Run 'budgetctl train' then POST /api/v1/model/reload")
	} else {
		log.Printf("✅ Model loaded from %s", cfg.Model.ArtifactPath)
	}

	// Initialize handlers
	predictHandler := handler.NewPredictHandler(budgetService, cfg.Predict.MaxBatchSize)
	modelHandler := handler.NewModelHandler(budgetService)
	trainingHandler := handler.NewTrainingHandler(budgetService, 20, 100)
	historyHandler := handler.NewHistoryHandler(budgetService, 10, 100)

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.AllowedOrigins}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", middleware.RequestIDKey}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       "healthy",
			"service":      "construction-budget-predictor",
			"model_loaded": budgetService.Ready(),
			"run_log":      budgetService.RunsEnabled(),
			"version":      Version,
			"build_time":   BuildTime,
			"git_commit":   GitCommit,
		})
	})

	// Version endpoint
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	// API routes
	apiV1 := router.Group("/api/v1")
	{
		// Prediction endpoints
		apiV1.POST("/predict", predictHandler.Predict)
		apiV1.POST("/predict/batch", predictHandler.PredictBatch)

		// Model endpoints
		apiV1.GET("/model", modelHandler.Info)
		apiV1.GET("/model/importance", modelHandler.Importance)
		apiV1.POST("/model/reload", modelHandler.Reload)

		// Training run endpoints
		apiV1.GET("/training-runs", trainingHandler.List)
		apiV1.GET("/training-runs/:id", trainingHandler.Get)

		// Prediction log endpoints
		apiV1.GET("/predictions/recent", historyHandler.Recent)
		apiV1.POST("/predictions/similar", historyHandler.Similar)
	}

	setupFallbackRoutes(router)

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}
	log.Printf("🚀 Starting server on %s", addr)
	log.Printf("📝 API: http://localhost:%d/api/v1", cfg.Server.Port)

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	budgetService.Wait()
	log.Println("✅ Server stopped")
}
