// Package webhook ingests provider events idempotently. Duplicate and
// out-of-order deliveries resolve to no-ops; every balance mutation rides on
// a guarded pending-state transition so a concurrent sweep cannot double
// apply.
package webhook

import (
	"context"
	"fmt"
	"log"

	"kobopay/internal/models"
	"kobopay/internal/repositories"
	"kobopay/internal/services/ledger"
)

// Service is the webhook ingestor.
type Service struct {
	ledger   ledger.Service
	users    UserDirectory
	notifier Notifier
}

// NewService creates the ingestor.
func NewService(ledgerSvc ledger.Service, users UserDirectory, notifier Notifier) *Service {
	if ledgerSvc == nil {
		panic("ledger service is required")
	}
	if users == nil {
		panic("user directory is required")
	}
	return &Service{ledger: ledgerSvc, users: users, notifier: notifier}
}

// Ingest applies one verified event. Events outside the allow-list are
// acknowledged without side effects.
func (s *Service) Ingest(ctx context.Context, evt Event) error {
	switch evt.Event {
	case EventChargeSuccess:
		return s.ingestDeposit(ctx, evt)
	case EventTransferSuccess, EventTransferFailed, EventTransferReversed:
		return s.finalizeWithdrawal(ctx, evt)
	default:
		log.Printf("ignoring webhook event %q", evt.Event)
		return nil
	}
}

func (s *Service) ingestDeposit(ctx context.Context, evt Event) error {
	amount := evt.Data.AmountNaira()
	if amount <= 0 {
		return fmt.Errorf("invalid webhook amount %d", evt.Data.AmountKobo)
	}

	user, err := s.users.GetByEmail(evt.Data.Customer.Email)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrWalletNotResolved, evt.Data.Customer.Email)
	}
	wallet, err := s.ledger.GetWallet(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("%w: user %d", ErrWalletNotResolved, user.ID)
	}

	// A heuristic (wallet, amount) match can lose its CAS race to a
	// different same-amount delivery; when that happens this event still
	// carries a credit, so rematch once instead of acking.
	for attempt := 0; attempt < 2; attempt++ {
		// Duplicate delivery: already completed under this external
		// reference.
		if _, err := s.ledger.FindCompletedByProviderReference(ctx, evt.Data.Reference); err == nil {
			log.Printf("duplicate webhook for %s, acknowledging", evt.Data.Reference)
			return nil
		}

		txn, err := s.matchDeposit(ctx, wallet, evt)
		if err != nil {
			return err
		}
		if txn == nil {
			// Out-of-band credit: no pending intent existed. The ledger
			// records and credits it in one unit; a duplicate reference here
			// means a concurrent delivery won, which is a clean ack.
			created, err := s.ledger.CreateOutOfBandDeposit(ctx, wallet, amount,
				"EXT_"+evt.Data.Reference, evt.Data.Reference,
				models.DepositMetadata{
					Gateway: "paystack",
					PaidAt:  evt.Data.PaidAt,
					Extra:   map[string]interface{}{"out_of_band": true},
				}.ToJSON())
			if err != nil {
				if err == repositories.ErrDuplicateReference {
					return nil
				}
				return err
			}
			s.announceDeposit(ctx, wallet, created)
			return nil
		}

		if txn.IsTerminal() {
			// Out-of-order delivery for an already resolved transaction.
			return nil
		}

		// The provider-settled amount is authoritative; sync it onto the
		// intent before crediting.
		if txn.Amount != amount {
			log.Printf("webhook amount %.2f differs from intent %.2f on %s, using settled amount",
				amount, txn.Amount, txn.Reference)
			txn.Amount = amount
		}

		matchedByReference := txn.Reference == evt.Data.Reference

		won, err := s.ledger.ApplyDepositCredit(ctx, txn, evt.Data.Reference, evt.Data.PaidAt)
		if err != nil {
			return err
		}
		if won {
			s.announceDeposit(ctx, wallet, txn)
			return nil
		}
		if matchedByReference {
			// Lost the race on our own reference; the concurrent winner
			// applied this same event's credit.
			return nil
		}

		// The heuristic match was resolved by a different delivery. This
		// event's credit has not landed anywhere; go around again.
		log.Printf("heuristic match for %s lost its race, rematching", evt.Data.Reference)
	}

	// Two lost races in a row; a non-2xx answer gets the event redelivered.
	return fmt.Errorf("could not resolve deposit %s", evt.Data.Reference)
}

// matchDeposit resolves the owning transaction: by external reference first,
// then by the (wallet, amount) heuristic. A nil result means no pre-existing
// intent.
func (s *Service) matchDeposit(ctx context.Context, wallet *models.Wallet, evt Event) (*models.Transaction, error) {
	if txn, err := s.ledger.FindByReference(ctx, evt.Data.Reference); err == nil {
		if txn.WalletID != wallet.ID {
			return nil, fmt.Errorf("%w: reference %s belongs to another wallet",
				ErrWalletNotResolved, evt.Data.Reference)
		}
		return txn, nil
	}

	if txn, err := s.ledger.FindPendingDeposit(ctx, wallet.ID, evt.Data.AmountNaira()); err == nil {
		return txn, nil
	}
	return nil, nil
}

func (s *Service) finalizeWithdrawal(ctx context.Context, evt Event) error {
	txn, err := s.ledger.FindByReference(ctx, evt.Data.Reference)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrTransactionNotResolved, evt.Data.Reference)
	}
	if txn.Type != models.TransactionTypeWithdrawal {
		return fmt.Errorf("%w: %s is not a withdrawal", ErrTransactionNotResolved, evt.Data.Reference)
	}
	if txn.IsTerminal() {
		return nil
	}

	switch evt.Event {
	case EventTransferSuccess:
		providerRef := evt.Data.TransferCode
		if providerRef == "" {
			providerRef = fmt.Sprintf("%d", evt.Data.ID)
		}
		won, err := s.ledger.CompleteWithdrawal(ctx, txn, providerRef)
		if err != nil {
			return err
		}
		if won && s.notifier != nil {
			s.notifier.CreateNotification(ctx, txn.UserID,
				"Withdrawal completed",
				fmt.Sprintf("Your withdrawal of ₦%.2f was paid out.", txn.Amount),
				txn.Reference, models.NotificationTypeWithdrawal, models.TransactionStatusCompleted)
			s.emitBalance(ctx, txn.UserID, fmt.Sprintf("withdrawal %s completed", txn.Reference))
		}
		return nil

	default: // transfer.failed, transfer.reversed
		reason := fmt.Sprintf("provider reported %s", evt.Event)
		won, err := s.ledger.RefundWithdrawal(ctx, txn, models.TransactionStatusFailed, reason)
		if err != nil {
			return err
		}
		if won && s.notifier != nil {
			s.notifier.CreateNotification(ctx, txn.UserID,
				"Withdrawal reversed",
				fmt.Sprintf("Your withdrawal of ₦%.2f failed and the amount was returned to your wallet.", txn.Amount),
				txn.Reference, models.NotificationTypeWithdrawal, models.TransactionStatusFailed)
			s.emitBalance(ctx, txn.UserID, fmt.Sprintf("withdrawal %s refunded", txn.Reference))
		}
		return nil
	}
}

func (s *Service) announceDeposit(ctx context.Context, wallet *models.Wallet, txn *models.Transaction) {
	if s.notifier == nil {
		return
	}
	s.notifier.CreateNotification(ctx, wallet.UserID,
		"Wallet funded",
		fmt.Sprintf("Your wallet was credited with ₦%.2f.", txn.Amount),
		txn.Reference, models.NotificationTypeFunding, models.TransactionStatusCompleted)
	s.emitBalance(ctx, wallet.UserID, fmt.Sprintf("deposit %s completed", txn.Reference))
}

// emitBalance re-reads the wallet so the pushed snapshot reflects the commit.
func (s *Service) emitBalance(ctx context.Context, userID uint, summary string) {
	wallet, err := s.ledger.GetWallet(ctx, userID)
	if err != nil {
		log.Printf("failed to load wallet %d for balance emit: %v", userID, err)
		return
	}
	s.notifier.EmitBalanceUpdate(ctx, wallet, summary)
}
