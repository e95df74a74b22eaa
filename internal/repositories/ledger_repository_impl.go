package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kobopay/internal/models"

	"gorm.io/gorm"
)

type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a GORM-backed ledger repository.
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) CreateWallet(wallet *models.Wallet) error {
	if err := r.db.Create(wallet).Error; err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (r *ledgerRepository) GetWalletByID(id uint) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.First(&wallet, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

func (r *ledgerRepository) GetWalletByUserID(userID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

func (r *ledgerRepository) UpdateWallet(wallet *models.Wallet) error {
	if err := r.db.Save(wallet).Error; err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	return nil
}

func (r *ledgerRepository) TouchLastSynced(walletID uint, at time.Time) error {
	err := r.db.Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Update("last_synced_at", at).Error
	if err != nil {
		return fmt.Errorf("failed to update last synced: %w", err)
	}
	return nil
}

func (r *ledgerRepository) GetWalletsWithPendingTransactions() ([]*models.Wallet, error) {
	var wallets []*models.Wallet
	err := r.db.
		Where("id IN (?)", r.db.Model(&models.Transaction{}).
			Select("DISTINCT wallet_id").
			Where("status = ?", models.TransactionStatusPending)).
		Find(&wallets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets with pending transactions: %w", err)
	}
	return wallets, nil
}

func (r *ledgerRepository) CreateTransaction(tx *models.Transaction) error {
	if err := r.db.Create(tx).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *ledgerRepository) SaveTransaction(tx *models.Transaction) error {
	if err := r.db.Save(tx).Error; err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

func (r *ledgerRepository) GetTransactionByReference(reference string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.db.Where("reference = ?", reference).First(&tx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

func (r *ledgerRepository) GetTransactionByProviderReference(providerRef string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.Where("provider_reference = ?", providerRef).First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

func (r *ledgerRepository) GetCompletedByProviderReference(providerRef string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.
		Where("provider_reference = ? AND status = ?", providerRef, models.TransactionStatusCompleted).
		First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

func (r *ledgerRepository) GetPendingTransactions(walletID uint) ([]*models.Transaction, error) {
	var txs []*models.Transaction
	err := r.db.
		Where("wallet_id = ? AND status = ?", walletID, models.TransactionStatusPending).
		Order("created_at ASC").
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transactions: %w", err)
	}
	return txs, nil
}

func (r *ledgerRepository) FindPendingDeposit(walletID uint, amount float64) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.
		Where("wallet_id = ? AND type = ? AND status = ? AND amount = ?",
			walletID, models.TransactionTypeDeposit, models.TransactionStatusPending, amount).
		Order("created_at ASC").
		First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to find pending deposit: %w", err)
	}
	return &tx, nil
}

func (r *ledgerRepository) GetTransactionHistory(ctx context.Context, walletID uint, limit, offset int) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	return txs, nil
}

func (r *ledgerRepository) MarkTransactionCompleted(txID uint, providerRef string, amount float64, metadata models.JSON) (bool, error) {
	updates := map[string]interface{}{
		"status":     models.TransactionStatusCompleted,
		"updated_at": time.Now(),
	}
	if providerRef != "" {
		updates["provider_reference"] = providerRef
	}
	if amount > 0 {
		updates["amount"] = amount
	}
	if metadata != nil {
		updates["metadata"] = metadata
	}

	result := r.db.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", txID, models.TransactionStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to complete transaction: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *ledgerRepository) MarkTransactionFailed(txID uint, status, reason string) (bool, error) {
	if status != models.TransactionStatusFailed && status != models.TransactionStatusCancelled {
		return false, fmt.Errorf("invalid terminal status %q", status)
	}

	result := r.db.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", txID, models.TransactionStatusPending).
		Updates(map[string]interface{}{
			"status":         status,
			"failure_reason": reason,
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to fail transaction: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *ledgerRepository) CreditBalance(walletID uint, amount float64, countDeposit bool) error {
	updates := map[string]interface{}{
		"balance":    gorm.Expr("balance + ?", amount),
		"updated_at": time.Now(),
	}
	if countDeposit {
		updates["total_deposits"] = gorm.Expr("total_deposits + ?", amount)
	}

	result := r.db.Model(&models.Wallet{}).Where("id = ?", walletID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to credit wallet: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func (r *ledgerRepository) DebitBalance(walletID uint, amount float64) (bool, error) {
	result := r.db.Model(&models.Wallet{}).
		Where("id = ? AND balance >= ?", walletID, amount).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to debit wallet: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *ledgerRepository) SumCompleted(walletID uint, txType string) (float64, error) {
	var total float64
	err := r.db.Model(&models.Transaction{}).
		Where("wallet_id = ? AND type = ? AND status = ?",
			walletID, txType, models.TransactionStatusCompleted).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum completed transactions: %w", err)
	}
	return total, nil
}

func (r *ledgerRepository) ExecuteInTransaction(fn func(LedgerRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&ledgerRepository{db: tx})
	})
}
