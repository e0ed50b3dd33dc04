package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"rewards-bot/internal/auth"
	"rewards-bot/internal/config"
	"rewards-bot/internal/database"
	"rewards-bot/internal/handlers"
	"rewards-bot/internal/jobs"
	"rewards-bot/internal/repository"
	"rewards-bot/internal/services"
	"rewards-bot/internal/telegram"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize store and ledger
	accountRepo := repository.NewAccountRepository(database.GetDB(), cfg.Ledger.Cooldown())
	ledgerService := services.NewLedgerService(
		accountRepo,
		cfg.Ledger.ReferralPoints,
		cfg.Ledger.ClaimMin,
		cfg.Ledger.ClaimMax,
	)

	// Initialize Telegram client
	bot := telegram.NewClient(cfg.Telegram.BotToken)

	// Initialize handlers
	webhookHandler := handlers.NewWebhookHandler(ledgerService, bot, cfg.Telegram.WebhookSecret, cfg.Telegram.WelcomePhotoURL)
	accountHandler := handlers.NewAccountHandler(ledgerService)
	authHandler := handlers.NewAuthHandler(cfg.App.AdminAPIKey)

	// Start claim reminder job
	reminderJob := jobs.NewClaimReminderJob(accountRepo, bot)
	reminderJob.Start(cfg.Ledger.ReminderInterval())
	log.Println("Claim reminder job started")

	// Set up Gin router
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint: must answer even when the store is unreachable
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Telegram webhook (verified by secret token header)
	router.POST("/telegram", webhookHandler.HandleUpdate)

	// Operator token exchange (public)
	router.POST("/auth/token", authHandler.IssueToken)

	// Operator API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		api.GET("/accounts/:id", accountHandler.GetAccount)
		api.GET("/leaderboard", accountHandler.GetLeaderboard)
	}

	// Register the webhook with Telegram when a public URL is configured
	if cfg.Telegram.WebhookURL != "" {
		if err := bot.SetWebhook(cfg.Telegram.WebhookURL+"/telegram", cfg.Telegram.WebhookSecret); err != nil {
			log.Fatalf("Failed to set webhook: %v", err)
		}
		log.Printf("Webhook registered at %s/telegram", cfg.Telegram.WebhookURL)
	} else {
		log.Println("WEBHOOK_URL not set, skipping webhook registration")
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		log.Printf("Health check: http://localhost:%s/health", cfg.Server.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
