// Package withdrawal pays out wallet funds to external bank accounts. The
// debit happens before the provider payout call, so a crash or provider
// failure leaves a pending record whose funds are already reserved; the
// compensating credit on failure restores them exactly once.
package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"

	"kobopay/internal/models"
	"kobopay/internal/providers/paystack"
	"kobopay/internal/repositories"
	"kobopay/internal/retry"
	"kobopay/internal/services/ledger"
	"kobopay/internal/validation"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ReferencePrefix marks references generated by the withdrawal path.
const ReferencePrefix = "WDR_"

// Service is the withdrawal initiator.
type Service struct {
	ledger     ledger.Service
	recipients repositories.RecipientRepository
	provider   ProviderGateway
	notifier   Notifier
	cfg        Config
}

// NewService creates the withdrawal service.
func NewService(ledgerSvc ledger.Service, recipients repositories.RecipientRepository, provider ProviderGateway, notifier Notifier, cfg Config) *Service {
	if ledgerSvc == nil {
		panic("ledger service is required")
	}
	if recipients == nil {
		panic("recipient repository is required")
	}
	if provider == nil {
		panic("provider gateway is required")
	}
	if cfg.MinimumAmount <= 0 {
		cfg.MinimumAmount = 100
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultConfig()
	}

	return &Service{
		ledger:     ledgerSvc,
		recipients: recipients,
		provider:   provider,
		notifier:   notifier,
		cfg:        cfg,
	}
}

// VerifyAccount performs a name enquiry on a destination account without
// recording anything.
func (s *Service) VerifyAccount(ctx context.Context, accountNumber, bankCode string) (*paystack.ResolvedAccount, error) {
	if err := validation.AccountNumber(accountNumber); err != nil {
		return nil, err
	}
	if err := validation.BankCode(bankCode); err != nil {
		return nil, err
	}

	resolved, err := s.provider.ResolveAccount(ctx, accountNumber, bankCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountResolution, err)
	}
	return resolved, nil
}

// ListBanks returns the supported destination banks.
func (s *Service) ListBanks(ctx context.Context) ([]paystack.Bank, error) {
	return s.provider.ListBanks(ctx)
}

// Withdraw validates, debits, then initiates the payout. The returned receipt
// usually reports a pending status; transfer webhooks or the sweeper finalize
// it.
func (s *Service) Withdraw(ctx context.Context, userID uint, req WithdrawRequest) (*Receipt, error) {
	if err := validation.Amount(req.Amount, s.cfg.MinimumAmount); err != nil {
		return nil, err
	}
	if err := validation.AccountNumber(req.AccountNumber); err != nil {
		return nil, err
	}
	if err := validation.BankCode(req.BankCode); err != nil {
		return nil, err
	}

	wallet, err := s.ledger.GetWallet(ctx, userID)
	if err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}

	if err := s.checkPin(wallet, req.Pin); err != nil {
		return nil, err
	}

	// Pre-check against the cached balance for a clean error; the guarded
	// debit below is the authoritative gate.
	if wallet.Balance < req.Amount {
		return nil, ErrInsufficientFunds
	}

	resolved, err := s.provider.ResolveAccount(ctx, req.AccountNumber, req.BankCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountResolution, err)
	}

	recipientCode, err := s.ensureRecipient(ctx, userID, resolved.AccountName, req.AccountNumber, req.BankCode)
	if err != nil {
		return nil, err
	}

	reference := NewReference()
	txn := &models.Transaction{
		WalletID:  wallet.ID,
		UserID:    userID,
		Amount:    req.Amount,
		Reference: reference,
		Metadata: models.WithdrawalMetadata{
			BankCode:      req.BankCode,
			AccountNumber: req.AccountNumber,
			AccountName:   resolved.AccountName,
			RecipientCode: recipientCode,
		}.ToJSON(),
	}

	if err := s.ledger.DebitForWithdrawal(ctx, txn); err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return nil, ErrInsufficientFunds
		}
		return nil, err
	}

	s.initiatePayout(ctx, txn, recipientCode, req.Reason)

	// Re-read so the receipt reflects the committed state: still pending on
	// the happy path, refunded if the payout already failed terminally.
	current, err := s.ledger.FindByReference(ctx, reference)
	if err != nil {
		current = txn
	}
	updated, err := s.ledger.GetWallet(ctx, userID)
	if err != nil {
		updated = wallet
	}

	if s.notifier != nil {
		s.notifier.CreateNotification(ctx, userID,
			"Withdrawal initiated",
			fmt.Sprintf("Your withdrawal of ₦%.2f to %s is being processed.", req.Amount, resolved.AccountName),
			reference, models.NotificationTypeWithdrawal, current.Status)
		s.notifier.EmitBalanceUpdate(ctx, updated, fmt.Sprintf("withdrawal %s %s", reference, current.Status))
	}

	return &Receipt{
		Reference:   reference,
		Amount:      req.Amount,
		Status:      current.Status,
		AccountName: resolved.AccountName,
		Balance:     updated.Balance,
	}, nil
}

// SetPin hashes and stores the withdrawal PIN on the wallet. Changing an
// existing PIN requires the current one.
func (s *Service) SetPin(ctx context.Context, userID uint, currentPin, newPin string) error {
	if len(newPin) < 4 {
		return fmt.Errorf("pin must be at least 4 digits")
	}

	wallet, err := s.ledger.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return err
	}
	if wallet.PinHash != "" {
		if err := s.checkPin(wallet, currentPin); err != nil {
			return err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPin), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash pin: %w", err)
	}
	wallet.PinHash = string(hash)
	return s.ledger.UpdateWallet(ctx, wallet)
}

// RetryPending re-initiates payouts for pending withdrawals that never
// reached the provider. Safe to run repeatedly: the provider deduplicates by
// our reference, and anything that already carries a transfer code is left
// for the webhook or the sweeper.
func (s *Service) RetryPending(ctx context.Context) error {
	wallets, err := s.ledger.WalletsWithPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to list wallets for payout retry: %w", err)
	}

	for _, wallet := range wallets {
		pending, err := s.ledger.PendingTransactions(ctx, wallet.ID)
		if err != nil {
			log.Printf("payout retry: failed to list pending for wallet %d: %v", wallet.ID, err)
			continue
		}
		for _, txn := range pending {
			if txn.Type != models.TransactionTypeWithdrawal {
				continue
			}
			if txn.MetadataString("transfer_code") != "" {
				continue
			}
			recipientCode := txn.MetadataString("recipient_code")
			if recipientCode == "" {
				log.Printf("payout retry: %s has no recipient code, leaving for cleanup", txn.Reference)
				continue
			}
			s.initiatePayout(ctx, txn, recipientCode, "")
		}
	}
	return nil
}

// initiatePayout runs the provider transfer through the retry schedule and
// resolves the outcome. Any initiation failure, terminal or exhausted,
// refunds the debit; only an accepted transfer stays pending for the webhook
// or the sweeper.
func (s *Service) initiatePayout(ctx context.Context, txn *models.Transaction, recipientCode, reason string) {
	var transfer *paystack.Transfer
	result, err := retry.Do(ctx, s.cfg.Retry, func() error {
		t, callErr := s.provider.InitiateTransfer(ctx, paystack.TransferRequest{
			// Round, don't truncate: the payout must match the debited
			// naira amount to the kobo.
			AmountKobo: int64(math.Round(txn.Amount * 100)),
			Recipient:  recipientCode,
			Reference:  txn.Reference,
			Reason:     reason,
		})
		if callErr != nil {
			return callErr
		}
		transfer = t
		return nil
	}, paystack.IsTransient)

	if err != nil {
		s.handlePayoutFailure(ctx, txn, result.Attempts, err)
		return
	}

	if err := s.ledger.RecordPayoutAttempt(ctx, txn, transfer.TransferCode, result.Attempts); err != nil {
		log.Printf("failed to record transfer code for %s: %v", txn.Reference, err)
	}

	// Some transfers settle synchronously; finalize without waiting for the
	// webhook.
	if transfer.Status == "success" {
		if _, err := s.ledger.CompleteWithdrawal(ctx, txn, transfer.TransferCode); err != nil {
			log.Printf("failed to complete settled withdrawal %s: %v", txn.Reference, err)
		}
	}
}

func (s *Service) handlePayoutFailure(ctx context.Context, txn *models.Transaction, attempts int, err error) {
	log.Printf("payout initiation failed for %s after %d attempt(s): %v", txn.Reference, attempts, err)

	if err := s.ledger.RecordPayoutAttempt(ctx, txn, "", attempts); err != nil {
		log.Printf("failed to record payout attempts for %s: %v", txn.Reference, err)
	}

	switch {
	case errors.Is(err, paystack.ErrAuth):
		// Configuration problem; the transfer was never accepted.
		s.refund(ctx, txn, models.TransactionStatusFailed, "provider rejected credentials")
		if s.notifier != nil {
			s.notifier.OperatorAlert(ctx, txn.UserID,
				"Payout authentication failure",
				fmt.Sprintf("Transfer initiation for %s rejected with an authentication error.", txn.Reference),
				txn.Reference)
		}

	case errors.Is(err, retry.ErrAttemptsExhausted):
		// Transient trouble outlasted the schedule. Release the debit and
		// flag it for an operator: the reference stays burned at the
		// provider, so a later duplicate payout cannot slip through.
		s.refund(ctx, txn, models.TransactionStatusCancelled, fmt.Sprintf("payout initiation failed after %d attempts", attempts))
		if s.notifier != nil {
			s.notifier.OperatorAlert(ctx, txn.UserID,
				"Payout retries exhausted",
				fmt.Sprintf("Transfer initiation for %s failed %d times.", txn.Reference, attempts),
				txn.Reference)
		}

	default:
		// Non-retryable provider rejection: the transfer never existed,
		// refund now.
		s.refund(ctx, txn, models.TransactionStatusFailed, fmt.Sprintf("payout rejected: %v", err))
	}
}

func (s *Service) refund(ctx context.Context, txn *models.Transaction, status, reason string) {
	won, err := s.ledger.RefundWithdrawal(ctx, txn, status, reason)
	if err != nil {
		log.Printf("failed to refund withdrawal %s: %v", txn.Reference, err)
		return
	}
	if won && s.notifier != nil {
		s.notifier.CreateNotification(ctx, txn.UserID,
			"Withdrawal failed",
			fmt.Sprintf("Your withdrawal of ₦%.2f failed and the amount was returned to your wallet.", txn.Amount),
			txn.Reference, models.NotificationTypeWithdrawal, status)
	}
}

func (s *Service) ensureRecipient(ctx context.Context, userID uint, accountName, accountNumber, bankCode string) (string, error) {
	if existing, err := s.recipients.Find(userID, bankCode, accountNumber); err == nil {
		return existing.RecipientCode, nil
	}

	code, err := s.provider.CreateTransferRecipient(ctx, accountName, accountNumber, bankCode)
	if err != nil {
		return "", fmt.Errorf("failed to register transfer recipient: %w", err)
	}

	recipient := &models.TransferRecipient{
		UserID:        userID,
		BankCode:      bankCode,
		AccountNumber: accountNumber,
		AccountName:   accountName,
		RecipientCode: code,
	}
	if err := s.recipients.Create(recipient); err != nil {
		// A concurrent withdrawal may have stored it first; the provider
		// code we hold is still valid.
		log.Printf("failed to store recipient for user %d: %v", userID, err)
	}
	return code, nil
}

func (s *Service) checkPin(wallet *models.Wallet, pin string) error {
	if wallet.PinHash == "" {
		return nil
	}
	if pin == "" {
		return ErrPinRequired
	}
	if err := bcrypt.CompareHashAndPassword([]byte(wallet.PinHash), []byte(pin)); err != nil {
		return ErrInvalidPin
	}
	return nil
}

// NewReference generates a unique withdrawal reference.
func NewReference() string {
	return ReferencePrefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
