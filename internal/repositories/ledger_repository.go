package repositories

import (
	"context"
	"errors"
	"time"

	"kobopay/internal/models"
)

var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicateReference  = errors.New("duplicate transaction reference")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// LedgerRepository defines the durable wallet + transaction store. All
// balance-affecting callers are expected to run inside ExecuteInTransaction so
// the status transition and the balance mutation commit or abort together.
type LedgerRepository interface {
	// Wallet operations
	CreateWallet(wallet *models.Wallet) error
	GetWalletByID(id uint) (*models.Wallet, error)
	GetWalletByUserID(userID uint) (*models.Wallet, error)
	UpdateWallet(wallet *models.Wallet) error
	TouchLastSynced(walletID uint, at time.Time) error
	GetWalletsWithPendingTransactions() ([]*models.Wallet, error)

	// Transaction operations
	CreateTransaction(tx *models.Transaction) error
	SaveTransaction(tx *models.Transaction) error
	GetTransactionByReference(reference string) (*models.Transaction, error)
	GetTransactionByProviderReference(providerRef string) (*models.Transaction, error)
	GetCompletedByProviderReference(providerRef string) (*models.Transaction, error)
	GetPendingTransactions(walletID uint) ([]*models.Transaction, error)
	FindPendingDeposit(walletID uint, amount float64) (*models.Transaction, error)
	GetTransactionHistory(ctx context.Context, walletID uint, limit, offset int) ([]models.Transaction, error)

	// Guarded transitions. The update applies only while status is still
	// pending; a false return means another actor won the race and the
	// caller must not mutate the balance. A positive amount also syncs the
	// row's amount to the provider-settled figure.
	MarkTransactionCompleted(txID uint, providerRef string, amount float64, metadata models.JSON) (bool, error)
	MarkTransactionFailed(txID uint, status, reason string) (bool, error)

	// Balance mutations. DebitBalance is guarded on balance >= amount and
	// reports whether the debit applied.
	CreditBalance(walletID uint, amount float64, countDeposit bool) error
	DebitBalance(walletID uint, amount float64) (bool, error)

	// SumCompleted returns the sum of completed transaction amounts of the
	// given type, for invariant verification during sweeps.
	SumCompleted(walletID uint, txType string) (float64, error)

	// ExecuteInTransaction runs fn against a repository bound to a single
	// database transaction.
	ExecuteInTransaction(fn func(LedgerRepository) error) error
}
