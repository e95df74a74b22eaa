// Package routes defines the API routing configuration. It wires the
// repositories, services, and handlers together and applies middleware.
package routes

import (
	"time"

	"kobopay/internal/config"
	"kobopay/internal/handlers"
	"kobopay/internal/middleware"
	"kobopay/internal/providers/paystack"
	"kobopay/internal/repositories"
	"kobopay/internal/repositories/cache"
	"kobopay/internal/services/funding"
	"kobopay/internal/services/ledger"
	"kobopay/internal/services/notification"
	"kobopay/internal/services/webhook"
	"kobopay/internal/services/withdrawal"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// SetupRoutes builds the service graph and registers all application routes.
func SetupRoutes(app *fiber.App, db *gorm.DB, redisClient *redis.Client, provider *paystack.Client) {
	// Repositories
	ledgerRepo := repositories.NewLedgerRepository(db)
	userRepo := repositories.NewUserRepository(db)
	recipientRepo := repositories.NewRecipientRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)

	var walletCache *cache.WalletCache
	if redisClient != nil {
		ttl := config.GetDurationEnv("WALLET_CACHE_TTL", 5*time.Minute)
		walletCache = cache.NewWalletCache(redisClient, ttl)
	}

	// Services
	var ledgerService ledger.Service
	if walletCache != nil {
		ledgerService = ledger.NewService(ledgerRepo, walletCache)
	} else {
		ledgerService = ledger.NewService(ledgerRepo, nil)
	}
	notificationService := notification.NewService(notificationRepo, nil)

	fundingService := funding.NewService(ledgerService, userRepo, provider, notificationService, funding.Config{
		MinimumAmount: config.GetFloatEnv("FUNDING_MINIMUM", 100),
	})
	withdrawalService := withdrawal.NewService(ledgerService, recipientRepo, provider, notificationService, withdrawal.Config{
		MinimumAmount: config.GetFloatEnv("WITHDRAWAL_MINIMUM", 100),
	})
	webhookService := webhook.NewService(ledgerService, userRepo, notificationService)

	// Handlers
	walletHandler := handlers.NewWalletHandler(ledgerService, fundingService, withdrawalService)
	webhookHandler := handlers.NewWebhookHandler(webhookService, config.GetEnv("PAYSTACK_SECRET_KEY", ""))
	healthHandler := handlers.NewHealthHandler(db, walletCache)

	app.Get("/health", healthHandler.Check)

	api := app.Group("/api")

	// Provider callbacks authenticate by signature, not JWT.
	api.Post("/webhooks/paystack", webhookHandler.HandlePaystack)

	authMiddleware := middleware.NewAuthMiddleware(config.GetEnv("JWT_SECRET", "kobopay"))
	protected := api.Use(authMiddleware.Handler)

	wallet := protected.Group("/wallet")
	wallet.Get("/", walletHandler.GetWallet)
	wallet.Get("/transactions", walletHandler.GetTransactions)
	wallet.Post("/fund", walletHandler.FundWallet)
	wallet.Get("/fund/:reference/status", walletHandler.GetFundingStatus)
	wallet.Post("/verify-account", walletHandler.VerifyAccount)
	wallet.Post("/withdraw", walletHandler.Withdraw)
	wallet.Post("/pin", walletHandler.SetPin)
	wallet.Get("/banks", walletHandler.ListBanks)
}
