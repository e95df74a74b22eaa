// Package main is the entry point for the background job runner. It shares
// the server's service graph but runs only the scheduled maintenance loops.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kobopay/internal/config"
	"kobopay/internal/jobs"
	"kobopay/internal/providers/paystack"
	"kobopay/internal/repositories"
	"kobopay/internal/services/ledger"
	"kobopay/internal/services/notification"
	"kobopay/internal/services/reconcile"
	"kobopay/internal/services/withdrawal"
)

func main() {
	config.LoadEnv()

	db, err := repositories.Connect(repositories.DBConfigFromEnv())
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	provider := paystack.NewClient(paystack.Config{
		BaseURL:        config.GetEnv("PAYSTACK_BASE_URL", ""),
		SecretKey:      config.GetEnv("PAYSTACK_SECRET_KEY", ""),
		Timeout:        config.GetDurationEnv("PAYSTACK_TIMEOUT", 15*time.Second),
		PoolSize:       config.GetIntEnv("PAYSTACK_POOL_SIZE", 4),
		MinCallSpacing: config.GetDurationEnv("PAYSTACK_CALL_SPACING", 100*time.Millisecond),
	})

	// The job runner skips the Redis cache on purpose: jobs mutate through
	// the same ledger service, and cache invalidation on a stale entry is
	// handled by the short TTL.
	ledgerService := ledger.NewService(repositories.NewLedgerRepository(db), nil)
	notificationService := notification.NewService(repositories.NewNotificationRepository(db), nil)

	reconcileService := reconcile.NewService(ledgerService, provider, notificationService, reconcile.Config{
		PendingTimeout: config.GetDurationEnv("PENDING_TIMEOUT", 24*time.Hour),
	})
	withdrawalService := withdrawal.NewService(
		ledgerService,
		repositories.NewRecipientRepository(db),
		provider,
		notificationService,
		withdrawal.Config{},
	)

	runner := jobs.NewRunner(
		jobs.Job{
			Name:     "sync-all-wallets",
			Interval: config.GetDurationEnv("SYNC_INTERVAL", 10*time.Minute),
			Run:      reconcileService.SyncAllWallets,
		},
		jobs.Job{
			Name:     "cleanup-timed-out-transactions",
			Interval: config.GetDurationEnv("CLEANUP_INTERVAL", time.Hour),
			Run:      reconcileService.CleanupTimedOut,
		},
		jobs.Job{
			Name:     "retry-pending-transfers",
			Interval: config.GetDurationEnv("RETRY_INTERVAL", 15*time.Minute),
			Run:      withdrawalService.RetryPending,
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	runner.Start(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Println("shutting down job runner")
	cancel()
	runner.Wait()
}
