package main

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/ChanceW/WiseTowerBuilders/internal/api"
	"github.com/ChanceW/WiseTowerBuilders/internal/config"
	"github.com/ChanceW/WiseTowerBuilders/internal/generation"
	"github.com/ChanceW/WiseTowerBuilders/internal/repository"
	"github.com/ChanceW/WiseTowerBuilders/internal/service"
	"github.com/ChanceW/WiseTowerBuilders/internal/utils"
)

func main() {
	// Load .env if present; real environments set variables directly
	_ = godotenv.Load()

	// Load configuration
	cfg := config.LoadConfig()

	logger := utils.NewLogger(cfg.LogLevel)

	// Set up database connection and run migrations
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to set up database")
	}
	defer db.Close()

	// Create repository
	repo := repository.NewPostgresRepository(db)

	// Create the question generator
	generator := generation.NewOpenAIGenerator(
		cfg.Generation.BaseURL,
		cfg.Generation.Model,
		cfg.Generation.APIKey,
		cfg.Generation.Timeout,
	)

	// Create service
	svc := service.NewDefaultService(repo, generator, cfg.Auth.JWTSecret)

	// Create API handler
	handler := api.NewHandler(svc, logger)

	// Set up Gin router
	router := gin.Default()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Infof("Starting server on %s", serverAddr)
	if err := http.ListenAndServe(serverAddr, router); err != nil {
		logger.WithError(err).Fatal("Failed to start server")
	}
}
