package ledger

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"kobopay/internal/models"
	"kobopay/internal/repositories"
)

// balanceEpsilon absorbs float rounding when comparing recomputed sums
// against the stored balance.
const balanceEpsilon = 0.01

type service struct {
	repo  repositories.LedgerRepository
	cache WalletCache
}

// NewService creates the ledger service.
func NewService(repo repositories.LedgerRepository, cache WalletCache) Service {
	if repo == nil {
		panic("repo is required")
	}
	return &service{repo: repo, cache: cache}
}

func (s *service) GetWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	if s.cache != nil {
		if wallet, err := s.cache.GetWallet(ctx, userID); err == nil {
			return wallet, nil
		}
	}

	wallet, err := s.repo.GetWalletByUserID(userID)
	if err != nil {
		if err == repositories.ErrWalletNotFound {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetWallet(ctx, wallet); err != nil {
			log.Printf("failed to cache wallet %d: %v", userID, err)
		}
	}
	return wallet, nil
}

func (s *service) GetOrCreateWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	wallet, err := s.GetWallet(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if err != ErrWalletNotFound {
		return nil, err
	}

	wallet = &models.Wallet{UserID: userID, Currency: "NGN"}
	if err := s.repo.CreateWallet(wallet); err != nil {
		// A concurrent request may have created it first.
		if existing, getErr := s.repo.GetWalletByUserID(userID); getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	return wallet, nil
}

func (s *service) UpdateWallet(ctx context.Context, wallet *models.Wallet) error {
	if wallet == nil {
		return fmt.Errorf("wallet cannot be nil")
	}
	if err := s.repo.UpdateWallet(wallet); err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	s.invalidate(ctx, wallet.UserID)
	return nil
}

func (s *service) GetTransactionHistory(ctx context.Context, walletID uint, limit, offset int) ([]models.Transaction, error) {
	return s.repo.GetTransactionHistory(ctx, walletID, limit, offset)
}

func (s *service) FindByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	return s.repo.GetTransactionByReference(reference)
}

func (s *service) FindCompletedByProviderReference(ctx context.Context, providerRef string) (*models.Transaction, error) {
	return s.repo.GetCompletedByProviderReference(providerRef)
}

func (s *service) FindPendingDeposit(ctx context.Context, walletID uint, amount float64) (*models.Transaction, error) {
	return s.repo.FindPendingDeposit(walletID, amount)
}

func (s *service) WalletsWithPending(ctx context.Context) ([]*models.Wallet, error) {
	return s.repo.GetWalletsWithPendingTransactions()
}

func (s *service) PendingTransactions(ctx context.Context, walletID uint) ([]*models.Transaction, error) {
	return s.repo.GetPendingTransactions(walletID)
}

func (s *service) TouchSynced(ctx context.Context, walletID uint, at time.Time) error {
	return s.repo.TouchLastSynced(walletID, at)
}

func (s *service) CreatePendingDeposit(ctx context.Context, txn *models.Transaction) error {
	if txn.Amount <= 0 {
		return ErrInvalidAmount
	}
	txn.Type = models.TransactionTypeDeposit
	txn.Status = models.TransactionStatusPending
	if err := s.repo.CreateTransaction(txn); err != nil {
		return err
	}
	return nil
}

// ApplyDepositCredit moves a pending deposit to completed and credits the
// wallet in one unit. Returns false without mutating anything when another
// actor already resolved the transaction.
func (s *service) ApplyDepositCredit(ctx context.Context, txn *models.Transaction, providerRef, paidAt string) (bool, error) {
	won := false
	err := s.repo.ExecuteInTransaction(func(tx repositories.LedgerRepository) error {
		metadata := txn.Metadata
		if metadata == nil {
			metadata = models.JSON{}
		}
		if paidAt != "" {
			metadata["paid_at"] = paidAt
		}
		metadata["reconciled_at"] = time.Now().UTC().Format(time.RFC3339)

		ok, err := tx.MarkTransactionCompleted(txn.ID, providerRef, txn.Amount, metadata)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := tx.CreditBalance(txn.WalletID, txn.Amount, true); err != nil {
			return err
		}
		won = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to apply deposit credit: %w", err)
	}
	if won {
		s.invalidate(ctx, txn.UserID)
	}
	return won, nil
}

// CreateOutOfBandDeposit records and credits a deposit the system had no
// pending intent for (provider-initiated credit).
func (s *service) CreateOutOfBandDeposit(ctx context.Context, wallet *models.Wallet, amount float64, reference, providerRef string, metadata models.JSON) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	txn := &models.Transaction{
		WalletID:          wallet.ID,
		UserID:            wallet.UserID,
		Type:              models.TransactionTypeDeposit,
		Amount:            amount,
		Reference:         reference,
		ProviderReference: providerRef,
		Status:            models.TransactionStatusCompleted,
		Metadata:          metadata,
	}

	err := s.repo.ExecuteInTransaction(func(tx repositories.LedgerRepository) error {
		if err := tx.CreateTransaction(txn); err != nil {
			return err
		}
		return tx.CreditBalance(wallet.ID, amount, true)
	})
	if err != nil {
		if err == repositories.ErrDuplicateReference {
			return nil, err
		}
		return nil, fmt.Errorf("failed to record out-of-band deposit: %w", err)
	}

	s.invalidate(ctx, wallet.UserID)
	return txn, nil
}

func (s *service) FailTransaction(ctx context.Context, txn *models.Transaction, status, reason string) (bool, error) {
	won, err := s.repo.MarkTransactionFailed(txn.ID, status, reason)
	if err != nil {
		return false, err
	}
	return won, nil
}

// DebitForWithdrawal debits the wallet and appends the pending withdrawal
// record atomically, before any provider payout call is made.
func (s *service) DebitForWithdrawal(ctx context.Context, txn *models.Transaction) error {
	if txn.Amount <= 0 {
		return ErrInvalidAmount
	}
	txn.Type = models.TransactionTypeWithdrawal
	txn.Status = models.TransactionStatusPending

	err := s.repo.ExecuteInTransaction(func(tx repositories.LedgerRepository) error {
		debited, err := tx.DebitBalance(txn.WalletID, txn.Amount)
		if err != nil {
			return err
		}
		if !debited {
			return ErrInsufficientFunds
		}
		return tx.CreateTransaction(txn)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, txn.UserID)
	return nil
}

// RecordPayoutAttempt annotates a pending withdrawal with the provider's
// transfer code and the attempt count. Metadata only; status and balance are
// untouched, so this cannot conflict with a concurrent finalization.
func (s *service) RecordPayoutAttempt(ctx context.Context, txn *models.Transaction, transferCode string, attempts int) error {
	if txn.Metadata == nil {
		txn.Metadata = models.JSON{}
	}
	if transferCode != "" {
		txn.Metadata["transfer_code"] = transferCode
	}
	if attempts > 0 {
		txn.Metadata["retry_attempts"] = attempts
	}
	if err := s.repo.SaveTransaction(txn); err != nil {
		return fmt.Errorf("failed to record payout attempt: %w", err)
	}
	return nil
}

// CompleteWithdrawal finalizes a payout. The funds left at debit time, so no
// balance movement happens here.
func (s *service) CompleteWithdrawal(ctx context.Context, txn *models.Transaction, providerRef string) (bool, error) {
	won, err := s.repo.MarkTransactionCompleted(txn.ID, providerRef, 0, txn.Metadata)
	if err != nil {
		return false, err
	}
	if won {
		s.invalidate(ctx, txn.UserID)
	}
	return won, nil
}

// RefundWithdrawal fails/cancels a pending withdrawal and credits the debited
// amount back, in one unit.
func (s *service) RefundWithdrawal(ctx context.Context, txn *models.Transaction, status, reason string) (bool, error) {
	won := false
	err := s.repo.ExecuteInTransaction(func(tx repositories.LedgerRepository) error {
		ok, err := tx.MarkTransactionFailed(txn.ID, status, reason)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		// Compensating credit: not a deposit, TotalDeposits untouched.
		if err := tx.CreditBalance(txn.WalletID, txn.Amount, false); err != nil {
			return err
		}
		won = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to refund withdrawal: %w", err)
	}
	if won {
		s.invalidate(ctx, txn.UserID)
	}
	return won, nil
}

func (s *service) VerifyInvariant(ctx context.Context, walletID uint) error {
	wallet, err := s.repo.GetWalletByID(walletID)
	if err != nil {
		return err
	}

	deposits, err := s.repo.SumCompleted(walletID, models.TransactionTypeDeposit)
	if err != nil {
		return err
	}
	withdrawals, err := s.repo.SumCompleted(walletID, models.TransactionTypeWithdrawal)
	if err != nil {
		return err
	}

	// Pending withdrawals were debited up front but have no completed row
	// yet, so they are still out of the balance.
	pending, err := s.repo.GetPendingTransactions(walletID)
	if err != nil {
		return err
	}
	var pendingWithdrawals float64
	for _, txn := range pending {
		if txn.Type == models.TransactionTypeWithdrawal {
			pendingWithdrawals += txn.Amount
		}
	}

	expected := deposits - withdrawals - pendingWithdrawals
	if math.Abs(wallet.Balance-expected) > balanceEpsilon {
		log.Printf("INVARIANT: wallet %d balance %.2f does not match ledger sum %.2f (deposits %.2f, withdrawals %.2f, pending withdrawals %.2f)",
			walletID, wallet.Balance, expected, deposits, withdrawals, pendingWithdrawals)
		return fmt.Errorf("%w: wallet %d balance %.2f, expected %.2f",
			ErrInvariantViolated, walletID, wallet.Balance, expected)
	}
	return nil
}

func (s *service) invalidate(ctx context.Context, userID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateWallet(ctx, userID); err != nil {
		log.Printf("failed to invalidate wallet cache %d: %v", userID, err)
	}
}
