// Package reconcile is the fallback resolution path: it periodically polls
// the provider for transactions still pending beyond a threshold and resolves
// or times them out. It assumes no exclusive access; a webhook may resolve
// the same transaction concurrently, so every transition here is a guarded
// compare-and-set and a lost race is a no-op.
//
// Policy: a verified deposit is credited immediately. Rebalancing the
// provider-side float is the provider's concern, never a precondition of the
// user credit.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"kobopay/internal/models"
	"kobopay/internal/providers/paystack"
	"kobopay/internal/services/ledger"
)

// ProviderVerifier is the slice of the provider client the sweeper needs.
type ProviderVerifier interface {
	VerifyTransaction(ctx context.Context, reference string) (*paystack.VerifiedTransaction, error)
}

// Notifier is the notification collaborator.
type Notifier interface {
	CreateNotification(ctx context.Context, userID uint, title, message, reference, notifType, status string)
	OperatorAlert(ctx context.Context, userID uint, title, message, reference string)
	EmitBalanceUpdate(ctx context.Context, wallet *models.Wallet, summary string)
}

// Config holds sweep policy.
type Config struct {
	// PendingTimeout is how long a transaction may stay pending before it
	// is abandoned without a provider call.
	PendingTimeout time.Duration
}

// Service is the reconciliation sweeper.
type Service struct {
	ledger   ledger.Service
	provider ProviderVerifier
	notifier Notifier
	cfg      Config

	// now is swappable in tests.
	now func() time.Time
}

// NewService creates the sweeper.
func NewService(ledgerSvc ledger.Service, provider ProviderVerifier, notifier Notifier, cfg Config) *Service {
	if ledgerSvc == nil {
		panic("ledger service is required")
	}
	if provider == nil {
		panic("provider verifier is required")
	}
	if cfg.PendingTimeout <= 0 {
		cfg.PendingTimeout = 24 * time.Hour
	}
	return &Service{
		ledger:   ledgerSvc,
		provider: provider,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SyncAllWallets sweeps every wallet holding pending transactions. Idempotent
// and re-entrant: overlapping runs are safe because all transitions are
// guarded.
func (s *Service) SyncAllWallets(ctx context.Context) error {
	wallets, err := s.ledger.WalletsWithPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to list wallets for sync: %w", err)
	}

	var firstErr error
	for _, wallet := range wallets {
		if err := s.SyncWallet(ctx, wallet); err != nil {
			log.Printf("sync failed for wallet %d: %v", wallet.ID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// SyncWallet resolves the wallet's pending transactions, checks the balance
// invariant, and refreshes the sync timestamp.
func (s *Service) SyncWallet(ctx context.Context, wallet *models.Wallet) error {
	pending, err := s.ledger.PendingTransactions(ctx, wallet.ID)
	if err != nil {
		return err
	}

	for _, txn := range pending {
		if err := s.resolvePending(ctx, wallet, txn); err != nil {
			log.Printf("failed to resolve %s: %v", txn.Reference, err)
		}
	}

	if err := s.ledger.VerifyInvariant(ctx, wallet.ID); err != nil {
		if errors.Is(err, ledger.ErrInvariantViolated) && s.notifier != nil {
			s.notifier.OperatorAlert(ctx, wallet.UserID,
				"Ledger invariant violated", err.Error(), "")
		}
		// Reported, not corrected; the sweep still counts as done.
	}

	return s.ledger.TouchSynced(ctx, wallet.ID, s.now())
}

// CleanupTimedOut abandons transactions pending past the threshold without
// contacting the provider.
func (s *Service) CleanupTimedOut(ctx context.Context) error {
	wallets, err := s.ledger.WalletsWithPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to list wallets for cleanup: %w", err)
	}

	for _, wallet := range wallets {
		pending, err := s.ledger.PendingTransactions(ctx, wallet.ID)
		if err != nil {
			log.Printf("cleanup: failed to list pending for wallet %d: %v", wallet.ID, err)
			continue
		}
		for _, txn := range pending {
			if s.age(txn) <= s.cfg.PendingTimeout {
				continue
			}
			if err := s.timeOut(ctx, txn); err != nil {
				log.Printf("cleanup: failed to time out %s: %v", txn.Reference, err)
			}
		}
	}
	return nil
}

func (s *Service) resolvePending(ctx context.Context, wallet *models.Wallet, txn *models.Transaction) error {
	// Abandoned transactions are timed out without a provider call.
	if s.age(txn) > s.cfg.PendingTimeout {
		return s.timeOut(ctx, txn)
	}

	verified, err := s.provider.VerifyTransaction(ctx, txn.Reference)
	if err != nil {
		var apiErr *paystack.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			// Provider has not seen the reference yet; the timeout
			// threshold will eventually collect it.
			return nil
		}
		// Transient failures are left for the next sweep.
		return err
	}

	switch {
	case verified.Succeeded():
		return s.applySuccess(ctx, wallet, txn, verified)
	case verified.Failed():
		return s.applyFailure(ctx, txn, verified.GatewayResponse)
	default:
		// Still pending at the provider; leave untouched.
		return nil
	}
}

func (s *Service) applySuccess(ctx context.Context, wallet *models.Wallet, txn *models.Transaction, verified *paystack.VerifiedTransaction) error {
	providerRef := verified.Reference
	if providerRef == "" {
		providerRef = fmt.Sprintf("%d", verified.ID)
	}

	switch txn.Type {
	case models.TransactionTypeDeposit:
		if settled := float64(verified.AmountKobo) / 100.0; settled > 0 && settled != txn.Amount {
			txn.Amount = settled
		}
		won, err := s.ledger.ApplyDepositCredit(ctx, txn, providerRef, verified.PaidAt)
		if err != nil {
			return err
		}
		if won {
			s.announce(ctx, txn.UserID, "Wallet funded",
				fmt.Sprintf("Your wallet was credited with ₦%.2f.", txn.Amount),
				txn, models.TransactionStatusCompleted)
		}
		return nil

	case models.TransactionTypeWithdrawal:
		won, err := s.ledger.CompleteWithdrawal(ctx, txn, providerRef)
		if err != nil {
			return err
		}
		if won {
			s.announce(ctx, txn.UserID, "Withdrawal completed",
				fmt.Sprintf("Your withdrawal of ₦%.2f was paid out.", txn.Amount),
				txn, models.TransactionStatusCompleted)
		}
		return nil

	default:
		return fmt.Errorf("unknown transaction type %q", txn.Type)
	}
}

func (s *Service) applyFailure(ctx context.Context, txn *models.Transaction, reason string) error {
	if reason == "" {
		reason = "provider reported failure"
	}

	if txn.Type == models.TransactionTypeWithdrawal {
		won, err := s.ledger.RefundWithdrawal(ctx, txn, models.TransactionStatusFailed, reason)
		if err != nil {
			return err
		}
		if won {
			s.announce(ctx, txn.UserID, "Withdrawal failed",
				fmt.Sprintf("Your withdrawal of ₦%.2f failed and the amount was returned to your wallet.", txn.Amount),
				txn, models.TransactionStatusFailed)
		}
		return nil
	}

	won, err := s.ledger.FailTransaction(ctx, txn, models.TransactionStatusFailed, reason)
	if err != nil {
		return err
	}
	if won {
		s.announce(ctx, txn.UserID, "Funding failed",
			fmt.Sprintf("Your deposit of ₦%.2f could not be confirmed: %s", txn.Amount, reason),
			txn, models.TransactionStatusFailed)
	}
	return nil
}

// timeOut abandons a pending transaction. Deposits fail; withdrawals were
// already debited, so they are cancelled with a compensating credit.
func (s *Service) timeOut(ctx context.Context, txn *models.Transaction) error {
	const reason = "timed out waiting for provider confirmation"

	if txn.Type == models.TransactionTypeWithdrawal {
		won, err := s.ledger.RefundWithdrawal(ctx, txn, models.TransactionStatusCancelled, reason)
		if err != nil {
			return err
		}
		if won {
			s.announce(ctx, txn.UserID, "Withdrawal cancelled",
				fmt.Sprintf("Your withdrawal of ₦%.2f timed out and the amount was returned to your wallet.", txn.Amount),
				txn, models.TransactionStatusCancelled)
		}
		return nil
	}

	won, err := s.ledger.FailTransaction(ctx, txn, models.TransactionStatusFailed, reason)
	if err != nil {
		return err
	}
	if won {
		s.announce(ctx, txn.UserID, "Funding expired",
			fmt.Sprintf("Your deposit of ₦%.2f was not received in time.", txn.Amount),
			txn, models.TransactionStatusFailed)
	}
	return nil
}

func (s *Service) announce(ctx context.Context, userID uint, title, message string, txn *models.Transaction, status string) {
	if s.notifier == nil {
		return
	}
	notifType := models.NotificationTypeFunding
	if txn.Type == models.TransactionTypeWithdrawal {
		notifType = models.NotificationTypeWithdrawal
	}
	s.notifier.CreateNotification(ctx, userID, title, message, txn.Reference, notifType, status)

	if wallet, err := s.ledger.GetWallet(ctx, userID); err == nil {
		s.notifier.EmitBalanceUpdate(ctx, wallet, fmt.Sprintf("%s %s %s", txn.Type, txn.Reference, status))
	}
}

func (s *Service) age(txn *models.Transaction) time.Duration {
	return s.now().Sub(txn.CreatedAt)
}

// SetClock overrides the time source. Test hook.
func (s *Service) SetClock(now func() time.Time) { s.now = now }
