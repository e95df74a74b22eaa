package ledger

import (
	"context"
	"time"

	"kobopay/internal/models"
)

// Service is the ledger's transactional surface. Every method that moves a
// balance pairs the movement with its transaction status transition in one
// atomic unit; the bool returns report whether this caller won the
// pending-state race.
type Service interface {
	// Wallet access
	GetWallet(ctx context.Context, userID uint) (*models.Wallet, error)
	GetOrCreateWallet(ctx context.Context, userID uint) (*models.Wallet, error)
	UpdateWallet(ctx context.Context, wallet *models.Wallet) error
	GetTransactionHistory(ctx context.Context, walletID uint, limit, offset int) ([]models.Transaction, error)

	// Lookups used by the ingestion and reconciliation paths
	FindByReference(ctx context.Context, reference string) (*models.Transaction, error)
	FindCompletedByProviderReference(ctx context.Context, providerRef string) (*models.Transaction, error)
	FindPendingDeposit(ctx context.Context, walletID uint, amount float64) (*models.Transaction, error)
	WalletsWithPending(ctx context.Context) ([]*models.Wallet, error)
	PendingTransactions(ctx context.Context, walletID uint) ([]*models.Transaction, error)
	TouchSynced(ctx context.Context, walletID uint, at time.Time) error

	// Deposit lifecycle
	CreatePendingDeposit(ctx context.Context, txn *models.Transaction) error
	ApplyDepositCredit(ctx context.Context, txn *models.Transaction, providerRef, paidAt string) (bool, error)
	CreateOutOfBandDeposit(ctx context.Context, wallet *models.Wallet, amount float64, reference, providerRef string, metadata models.JSON) (*models.Transaction, error)
	FailTransaction(ctx context.Context, txn *models.Transaction, status, reason string) (bool, error)

	// Withdrawal lifecycle
	DebitForWithdrawal(ctx context.Context, txn *models.Transaction) error
	RecordPayoutAttempt(ctx context.Context, txn *models.Transaction, transferCode string, attempts int) error
	CompleteWithdrawal(ctx context.Context, txn *models.Transaction, providerRef string) (bool, error)
	RefundWithdrawal(ctx context.Context, txn *models.Transaction, status, reason string) (bool, error)

	// VerifyInvariant recomputes the completed-transaction sums and compares
	// them to the stored balance. A mismatch is reported, never corrected.
	VerifyInvariant(ctx context.Context, walletID uint) error
}

// WalletCache is the read cache in front of wallet lookups.
type WalletCache interface {
	GetWallet(ctx context.Context, userID uint) (*models.Wallet, error)
	SetWallet(ctx context.Context, wallet *models.Wallet) error
	InvalidateWallet(ctx context.Context, userID uint) error
}
