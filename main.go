package main

import (
	"log"
	"time"

	"github.com/actionos/actionos-backend/config"
	"github.com/actionos/actionos-backend/database"
	"github.com/actionos/actionos-backend/handlers"
	"github.com/actionos/actionos-backend/jobs"
	"github.com/actionos/actionos-backend/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load config
	cfg := config.LoadConfig()

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	// Connect to database
	store, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	// Run migrations
	if err := store.Migrate("database/schema.sql"); err != nil {
		log.Printf("Migration warning: %v", err)
	}

	// Initialize services
	profileService := services.NewProfileService(store)
	cacheService := services.NewSignatureCache(store, cfg.GetCacheTTL())
	tokenTracker := services.NewTokenTracker(store, cfg.GetQuotaConfig())

	if cfg.CompletionURL == "" {
		logrus.Warn("COMPLETION_API_URL is not set, suggestion requests will fail")
	}
	completionClient := services.NewCompletionClient(cfg.CompletionURL, cfg.CompletionKey, 60*time.Second)
	suggestionService := services.NewSuggestionService(completionClient, cacheService, tokenTracker)

	quota := cfg.GetQuotaConfig()
	log.Println("ActionOS backend services initialized:")
	log.Printf("  - Signature cache (TTL: %v)", cfg.GetCacheTTL())
	log.Printf("  - Token tracker (daily limit: %d, policy: %s)", quota.DailyTokenLimit, quota.Policy)

	// Initialize Jobs
	cleanupJob := jobs.NewCacheCleanupJob(cacheService)

	// Initialize handlers
	profileHandler := handlers.NewProfileHandler(profileService)
	usageHandler := handlers.NewUsageHandler(tokenTracker)
	cacheHandler := handlers.NewCacheHandler(cacheService)
	suggestHandler := handlers.NewSuggestHandler(suggestionService)

	// Start Background Jobs
	go func() {
		cleanupTicker := time.NewTicker(12 * time.Hour)
		defer cleanupTicker.Stop()

		for range cleanupTicker.C {
			cleanupJob.Run()
		}
	}()

	// Setup Fiber
	app := fiber.New()

	// Middleware
	app.Use(logger.New())
	app.Use(cors.New())

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		if err := store.HealthCheck(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "degraded",
				"error":  err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	// Routes
	api := app.Group("/api/v1")
	api.Use(handlers.IdentityMiddleware())

	// Profile Routes
	api.Post("/auth/create-profile", handlers.RequireUser(), profileHandler.CreateProfile)

	// Usage Routes
	api.Get("/usage", handlers.RequireUser(), usageHandler.GetUsage)
	api.Get("/usage/limit-reached", handlers.RequireUser(), usageHandler.GetLimitReached)

	// Suggestion Route
	api.Post("/suggest", handlers.RequireUser(), suggestHandler.Suggest)

	// Cache Routes
	api.Delete("/cache/:signature", handlers.RequireUser(), cacheHandler.InvalidateSignature)
	api.Delete("/cache", handlers.RequireUser(), cacheHandler.InvalidateOwned)

	// Admin Routes
	admin := api.Group("/admin")
	admin.Use(handlers.RequireAdminToken(cfg.AdminToken))
	admin.Get("/cache/stats", cacheHandler.GetCacheStats)

	// Start server
	log.Printf("Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
