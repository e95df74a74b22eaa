// Package ledgertest provides an in-memory ledger.Service for service tests.
// It mirrors the guarded-transition semantics of the real implementation:
// completed/failed transitions only apply while the row is still pending, and
// balance movement rides with the winning transition.
package ledgertest

import (
	"context"
	"time"

	"kobopay/internal/models"
	"kobopay/internal/repositories"
	"kobopay/internal/services/ledger"
)

// Fake is an in-memory ledger.Service.
type Fake struct {
	Wallets map[uint]*models.Wallet        // by user id
	Txns    map[string]*models.Transaction // by reference

	// InvariantErr is returned from VerifyInvariant when set.
	InvariantErr error

	nextID uint
}

var _ ledger.Service = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		Wallets: make(map[uint]*models.Wallet),
		Txns:    make(map[string]*models.Transaction),
		nextID:  1,
	}
}

// AddWallet seeds a wallet for the given user.
func (f *Fake) AddWallet(userID uint, balance float64) *models.Wallet {
	w := &models.Wallet{ID: f.nextID, UserID: userID, Balance: balance, TotalDeposits: balance, Currency: "NGN"}
	f.nextID++
	f.Wallets[userID] = w
	return w
}

// AddTxn seeds a transaction. Status defaults to pending.
func (f *Fake) AddTxn(txn *models.Transaction) *models.Transaction {
	txn.ID = f.nextID
	f.nextID++
	if txn.Status == "" {
		txn.Status = models.TransactionStatusPending
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	f.Txns[txn.Reference] = txn
	return txn
}

// WalletByID looks a wallet up by its primary key.
func (f *Fake) WalletByID(id uint) *models.Wallet {
	for _, w := range f.Wallets {
		if w.ID == id {
			return w
		}
	}
	return nil
}

func (f *Fake) GetWallet(_ context.Context, userID uint) (*models.Wallet, error) {
	if w, ok := f.Wallets[userID]; ok {
		return w, nil
	}
	return nil, ledger.ErrWalletNotFound
}

func (f *Fake) GetOrCreateWallet(_ context.Context, userID uint) (*models.Wallet, error) {
	if w, ok := f.Wallets[userID]; ok {
		return w, nil
	}
	w := &models.Wallet{ID: f.nextID, UserID: userID, Currency: "NGN"}
	f.nextID++
	f.Wallets[userID] = w
	return w, nil
}

func (f *Fake) UpdateWallet(_ context.Context, wallet *models.Wallet) error {
	f.Wallets[wallet.UserID] = wallet
	return nil
}

func (f *Fake) GetTransactionHistory(_ context.Context, walletID uint, _, _ int) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, t := range f.Txns {
		if t.WalletID == walletID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *Fake) FindByReference(_ context.Context, reference string) (*models.Transaction, error) {
	if t, ok := f.Txns[reference]; ok {
		return t, nil
	}
	return nil, repositories.ErrTransactionNotFound
}

func (f *Fake) FindCompletedByProviderReference(_ context.Context, providerRef string) (*models.Transaction, error) {
	for _, t := range f.Txns {
		if t.ProviderReference == providerRef && t.Status == models.TransactionStatusCompleted {
			return t, nil
		}
	}
	return nil, repositories.ErrTransactionNotFound
}

func (f *Fake) FindPendingDeposit(_ context.Context, walletID uint, amount float64) (*models.Transaction, error) {
	for _, t := range f.Txns {
		if t.WalletID == walletID && t.Type == models.TransactionTypeDeposit &&
			t.Status == models.TransactionStatusPending && t.Amount == amount {
			return t, nil
		}
	}
	return nil, repositories.ErrTransactionNotFound
}

func (f *Fake) WalletsWithPending(_ context.Context) ([]*models.Wallet, error) {
	seen := map[uint]bool{}
	var out []*models.Wallet
	for _, t := range f.Txns {
		if t.Status == models.TransactionStatusPending && !seen[t.WalletID] {
			seen[t.WalletID] = true
			if w := f.WalletByID(t.WalletID); w != nil {
				out = append(out, w)
			}
		}
	}
	return out, nil
}

func (f *Fake) PendingTransactions(_ context.Context, walletID uint) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for _, t := range f.Txns {
		if t.WalletID == walletID && t.Status == models.TransactionStatusPending {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *Fake) TouchSynced(_ context.Context, walletID uint, at time.Time) error {
	if w := f.WalletByID(walletID); w != nil {
		w.LastSyncedAt = &at
	}
	return nil
}

func (f *Fake) CreatePendingDeposit(_ context.Context, txn *models.Transaction) error {
	if txn.Amount <= 0 {
		return ledger.ErrInvalidAmount
	}
	if _, exists := f.Txns[txn.Reference]; exists {
		return repositories.ErrDuplicateReference
	}
	txn.Type = models.TransactionTypeDeposit
	txn.Status = models.TransactionStatusPending
	f.AddTxn(txn)
	return nil
}

func (f *Fake) ApplyDepositCredit(_ context.Context, txn *models.Transaction, providerRef, _ string) (bool, error) {
	stored, ok := f.Txns[txn.Reference]
	if !ok || stored.Status != models.TransactionStatusPending {
		return false, nil
	}
	stored.Status = models.TransactionStatusCompleted
	stored.ProviderReference = providerRef
	stored.Amount = txn.Amount
	if w := f.WalletByID(stored.WalletID); w != nil {
		w.Balance += stored.Amount
		w.TotalDeposits += stored.Amount
	}
	return true, nil
}

func (f *Fake) CreateOutOfBandDeposit(_ context.Context, wallet *models.Wallet, amount float64, reference, providerRef string, metadata models.JSON) (*models.Transaction, error) {
	if _, exists := f.Txns[reference]; exists {
		return nil, repositories.ErrDuplicateReference
	}
	txn := f.AddTxn(&models.Transaction{
		WalletID:          wallet.ID,
		UserID:            wallet.UserID,
		Type:              models.TransactionTypeDeposit,
		Amount:            amount,
		Reference:         reference,
		ProviderReference: providerRef,
		Status:            models.TransactionStatusCompleted,
		Metadata:          metadata,
	})
	wallet.Balance += amount
	wallet.TotalDeposits += amount
	return txn, nil
}

func (f *Fake) FailTransaction(_ context.Context, txn *models.Transaction, status, reason string) (bool, error) {
	stored, ok := f.Txns[txn.Reference]
	if !ok || stored.Status != models.TransactionStatusPending {
		return false, nil
	}
	stored.Status = status
	stored.FailureReason = reason
	return true, nil
}

func (f *Fake) DebitForWithdrawal(_ context.Context, txn *models.Transaction) error {
	if txn.Amount <= 0 {
		return ledger.ErrInvalidAmount
	}
	w := f.WalletByID(txn.WalletID)
	if w == nil || w.Balance < txn.Amount {
		return ledger.ErrInsufficientFunds
	}
	if _, exists := f.Txns[txn.Reference]; exists {
		return repositories.ErrDuplicateReference
	}
	w.Balance -= txn.Amount
	txn.Type = models.TransactionTypeWithdrawal
	txn.Status = models.TransactionStatusPending
	f.AddTxn(txn)
	return nil
}

func (f *Fake) RecordPayoutAttempt(_ context.Context, txn *models.Transaction, transferCode string, attempts int) error {
	if txn.Metadata == nil {
		txn.Metadata = models.JSON{}
	}
	if transferCode != "" {
		txn.Metadata["transfer_code"] = transferCode
	}
	if attempts > 0 {
		txn.Metadata["retry_attempts"] = attempts
	}
	if stored, ok := f.Txns[txn.Reference]; ok {
		stored.Metadata = txn.Metadata
	}
	return nil
}

func (f *Fake) CompleteWithdrawal(_ context.Context, txn *models.Transaction, providerRef string) (bool, error) {
	stored, ok := f.Txns[txn.Reference]
	if !ok || stored.Status != models.TransactionStatusPending {
		return false, nil
	}
	stored.Status = models.TransactionStatusCompleted
	stored.ProviderReference = providerRef
	return true, nil
}

func (f *Fake) RefundWithdrawal(_ context.Context, txn *models.Transaction, status, reason string) (bool, error) {
	stored, ok := f.Txns[txn.Reference]
	if !ok || stored.Status != models.TransactionStatusPending {
		return false, nil
	}
	stored.Status = status
	stored.FailureReason = reason
	if w := f.WalletByID(stored.WalletID); w != nil {
		w.Balance += stored.Amount
	}
	return true, nil
}

func (f *Fake) VerifyInvariant(_ context.Context, _ uint) error {
	return f.InvariantErr
}
