// Package notification persists user-facing notifications and emits real-time
// balance updates to whatever transport is plugged in.
package notification

import (
	"context"
	"log"

	"kobopay/internal/models"
	"kobopay/internal/repositories"
)

// BalanceUpdate is the real-time payload pushed after a balance mutation.
type BalanceUpdate struct {
	UserID             uint    `json:"user_id"`
	Balance            float64 `json:"balance"`
	TotalDeposits      float64 `json:"total_deposits"`
	TransactionSummary string  `json:"transaction_summary"`
}

// BalanceEmitter pushes balance updates to connected clients. The transport
// (websocket hub, push gateway) lives outside this module.
type BalanceEmitter interface {
	EmitBalanceUpdate(ctx context.Context, update BalanceUpdate) error
}

// LogEmitter is the default emitter used when no transport is wired.
type LogEmitter struct{}

func (LogEmitter) EmitBalanceUpdate(_ context.Context, update BalanceUpdate) error {
	log.Printf("balance update: user=%d balance=%.2f deposits=%.2f %s",
		update.UserID, update.Balance, update.TotalDeposits, update.TransactionSummary)
	return nil
}

// Service records notifications and forwards balance updates.
type Service struct {
	repo    repositories.NotificationRepository
	emitter BalanceEmitter
}

// NewService creates the notification service. A nil emitter falls back to
// logging.
func NewService(repo repositories.NotificationRepository, emitter BalanceEmitter) *Service {
	if emitter == nil {
		emitter = LogEmitter{}
	}
	return &Service{repo: repo, emitter: emitter}
}

// CreateNotification persists a notification record. Failures are logged, not
// propagated: a missing notification must never abort a balance mutation that
// already committed.
func (s *Service) CreateNotification(ctx context.Context, userID uint, title, message, reference, notifType, status string) {
	n := &models.Notification{
		UserID:    userID,
		Title:     title,
		Message:   message,
		Reference: reference,
		Type:      notifType,
		Status:    status,
	}
	if err := s.repo.Create(n); err != nil {
		log.Printf("failed to create notification for user %d: %v", userID, err)
	}
}

// OperatorAlert records an operator-facing alert, distinct from the
// user-facing notification stream, and logs loudly.
func (s *Service) OperatorAlert(ctx context.Context, userID uint, title, message, reference string) {
	log.Printf("OPERATOR ALERT: %s: %s (user=%d ref=%s)", title, message, userID, reference)
	s.CreateNotification(ctx, userID, title, message, reference, models.NotificationTypeOperator, "unresolved")
}

// EmitBalanceUpdate pushes the wallet's new state to the real-time channel.
func (s *Service) EmitBalanceUpdate(ctx context.Context, wallet *models.Wallet, summary string) {
	update := BalanceUpdate{
		UserID:             wallet.UserID,
		Balance:            wallet.Balance,
		TotalDeposits:      wallet.TotalDeposits,
		TransactionSummary: summary,
	}
	if err := s.emitter.EmitBalanceUpdate(ctx, update); err != nil {
		log.Printf("failed to emit balance update for user %d: %v", wallet.UserID, err)
	}
}
