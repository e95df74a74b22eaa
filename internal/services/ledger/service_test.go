package ledger

import (
	"context"
	"testing"
	"time"

	"kobopay/internal/models"
	"kobopay/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryRepo is an in-memory LedgerRepository with the same guarded-transition
// semantics as the SQL implementation.
type memoryRepo struct {
	wallets map[uint]*models.Wallet
	txns    map[uint]*models.Transaction
	nextID  uint
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		wallets: make(map[uint]*models.Wallet),
		txns:    make(map[uint]*models.Transaction),
		nextID:  1,
	}
}

func (r *memoryRepo) CreateWallet(wallet *models.Wallet) error {
	for _, w := range r.wallets {
		if w.UserID == wallet.UserID {
			return repositories.ErrDuplicateReference
		}
	}
	wallet.ID = r.nextID
	r.nextID++
	r.wallets[wallet.ID] = wallet
	return nil
}

func (r *memoryRepo) GetWalletByID(id uint) (*models.Wallet, error) {
	if w, ok := r.wallets[id]; ok {
		return w, nil
	}
	return nil, repositories.ErrWalletNotFound
}

func (r *memoryRepo) GetWalletByUserID(userID uint) (*models.Wallet, error) {
	for _, w := range r.wallets {
		if w.UserID == userID {
			return w, nil
		}
	}
	return nil, repositories.ErrWalletNotFound
}

func (r *memoryRepo) UpdateWallet(wallet *models.Wallet) error {
	r.wallets[wallet.ID] = wallet
	return nil
}

func (r *memoryRepo) TouchLastSynced(walletID uint, at time.Time) error {
	if w, ok := r.wallets[walletID]; ok {
		w.LastSyncedAt = &at
	}
	return nil
}

func (r *memoryRepo) GetWalletsWithPendingTransactions() ([]*models.Wallet, error) {
	seen := map[uint]bool{}
	var out []*models.Wallet
	for _, t := range r.txns {
		if t.Status == models.TransactionStatusPending && !seen[t.WalletID] {
			seen[t.WalletID] = true
			if w, ok := r.wallets[t.WalletID]; ok {
				out = append(out, w)
			}
		}
	}
	return out, nil
}

func (r *memoryRepo) CreateTransaction(tx *models.Transaction) error {
	for _, t := range r.txns {
		if t.Reference == tx.Reference {
			return repositories.ErrDuplicateReference
		}
	}
	tx.ID = r.nextID
	r.nextID++
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	r.txns[tx.ID] = tx
	return nil
}

func (r *memoryRepo) SaveTransaction(tx *models.Transaction) error {
	r.txns[tx.ID] = tx
	return nil
}

func (r *memoryRepo) GetTransactionByReference(reference string) (*models.Transaction, error) {
	for _, t := range r.txns {
		if t.Reference == reference {
			return t, nil
		}
	}
	return nil, repositories.ErrTransactionNotFound
}

func (r *memoryRepo) GetTransactionByProviderReference(providerRef string) (*models.Transaction, error) {
	for _, t := range r.txns {
		if t.ProviderReference == providerRef {
			return t, nil
		}
	}
	return nil, repositories.ErrTransactionNotFound
}

func (r *memoryRepo) GetCompletedByProviderReference(providerRef string) (*models.Transaction, error) {
	for _, t := range r.txns {
		if t.ProviderReference == providerRef && t.Status == models.TransactionStatusCompleted {
			return t, nil
		}
	}
	return nil, repositories.ErrTransactionNotFound
}

func (r *memoryRepo) GetPendingTransactions(walletID uint) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for _, t := range r.txns {
		if t.WalletID == walletID && t.Status == models.TransactionStatusPending {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memoryRepo) FindPendingDeposit(walletID uint, amount float64) (*models.Transaction, error) {
	for _, t := range r.txns {
		if t.WalletID == walletID && t.Type == models.TransactionTypeDeposit &&
			t.Status == models.TransactionStatusPending && t.Amount == amount {
			return t, nil
		}
	}
	return nil, repositories.ErrTransactionNotFound
}

func (r *memoryRepo) GetTransactionHistory(_ context.Context, walletID uint, limit, offset int) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, t := range r.txns {
		if t.WalletID == walletID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *memoryRepo) MarkTransactionCompleted(txID uint, providerRef string, amount float64, metadata models.JSON) (bool, error) {
	t, ok := r.txns[txID]
	if !ok || t.Status != models.TransactionStatusPending {
		return false, nil
	}
	t.Status = models.TransactionStatusCompleted
	t.ProviderReference = providerRef
	if amount > 0 {
		t.Amount = amount
	}
	t.Metadata = metadata
	return true, nil
}

func (r *memoryRepo) MarkTransactionFailed(txID uint, status, reason string) (bool, error) {
	t, ok := r.txns[txID]
	if !ok || t.Status != models.TransactionStatusPending {
		return false, nil
	}
	t.Status = status
	t.FailureReason = reason
	return true, nil
}

func (r *memoryRepo) CreditBalance(walletID uint, amount float64, countDeposit bool) error {
	w, ok := r.wallets[walletID]
	if !ok {
		return repositories.ErrWalletNotFound
	}
	w.Balance += amount
	if countDeposit {
		w.TotalDeposits += amount
	}
	return nil
}

func (r *memoryRepo) DebitBalance(walletID uint, amount float64) (bool, error) {
	w, ok := r.wallets[walletID]
	if !ok {
		return false, repositories.ErrWalletNotFound
	}
	if w.Balance < amount {
		return false, nil
	}
	w.Balance -= amount
	return true, nil
}

func (r *memoryRepo) SumCompleted(walletID uint, txType string) (float64, error) {
	var sum float64
	for _, t := range r.txns {
		if t.WalletID == walletID && t.Type == txType && t.Status == models.TransactionStatusCompleted {
			sum += t.Amount
		}
	}
	return sum, nil
}

func (r *memoryRepo) ExecuteInTransaction(fn func(repositories.LedgerRepository) error) error {
	return fn(r)
}

func seedWallet(t *testing.T, repo *memoryRepo, userID uint, balance float64) *models.Wallet {
	t.Helper()
	wallet := &models.Wallet{UserID: userID, Balance: balance, TotalDeposits: balance, Currency: "NGN"}
	require.NoError(t, repo.CreateWallet(wallet))
	return wallet
}

func TestApplyDepositCredit(t *testing.T) {
	ctx := context.Background()

	t.Run("credits balance and completes transaction", func(t *testing.T) {
		repo := newMemoryRepo()
		svc := NewService(repo, nil)
		wallet := seedWallet(t, repo, 1, 0)

		txn := &models.Transaction{WalletID: wallet.ID, UserID: 1, Amount: 5000, Reference: "FUND_A"}
		require.NoError(t, svc.CreatePendingDeposit(ctx, txn))

		won, err := svc.ApplyDepositCredit(ctx, txn, "PSK_1", "2025-03-01T10:00:00Z")
		require.NoError(t, err)
		assert.True(t, won)

		assert.Equal(t, 5000.0, wallet.Balance)
		assert.Equal(t, 5000.0, wallet.TotalDeposits)

		stored, err := svc.FindByReference(ctx, "FUND_A")
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusCompleted, stored.Status)
		assert.Equal(t, "PSK_1", stored.ProviderReference)
	})

	t.Run("second credit is a no-op", func(t *testing.T) {
		repo := newMemoryRepo()
		svc := NewService(repo, nil)
		wallet := seedWallet(t, repo, 1, 0)

		txn := &models.Transaction{WalletID: wallet.ID, UserID: 1, Amount: 5000, Reference: "FUND_A"}
		require.NoError(t, svc.CreatePendingDeposit(ctx, txn))

		won, err := svc.ApplyDepositCredit(ctx, txn, "PSK_1", "")
		require.NoError(t, err)
		require.True(t, won)

		// Duplicate delivery or concurrent sweep arrives after completion.
		won, err = svc.ApplyDepositCredit(ctx, txn, "PSK_1", "")
		require.NoError(t, err)
		assert.False(t, won)
		assert.Equal(t, 5000.0, wallet.Balance, "balance credited exactly once")
	})

	t.Run("settled amount overrides intent amount", func(t *testing.T) {
		repo := newMemoryRepo()
		svc := NewService(repo, nil)
		wallet := seedWallet(t, repo, 1, 0)

		txn := &models.Transaction{WalletID: wallet.ID, UserID: 1, Amount: 5000, Reference: "FUND_A"}
		require.NoError(t, svc.CreatePendingDeposit(ctx, txn))

		txn.Amount = 4500 // provider settled less than the intent
		won, err := svc.ApplyDepositCredit(ctx, txn, "PSK_1", "")
		require.NoError(t, err)
		require.True(t, won)
		assert.Equal(t, 4500.0, wallet.Balance)

		stored, _ := svc.FindByReference(ctx, "FUND_A")
		assert.Equal(t, 4500.0, stored.Amount)
	})
}

func TestCreatePendingDeposit_DuplicateReference(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	wallet := seedWallet(t, repo, 1, 0)

	first := &models.Transaction{WalletID: wallet.ID, UserID: 1, Amount: 100, Reference: "FUND_DUP"}
	require.NoError(t, svc.CreatePendingDeposit(ctx, first))

	second := &models.Transaction{WalletID: wallet.ID, UserID: 1, Amount: 100, Reference: "FUND_DUP"}
	err := svc.CreatePendingDeposit(ctx, second)
	assert.ErrorIs(t, err, repositories.ErrDuplicateReference)
}

func TestWithdrawalLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("debit then complete leaves balance reduced", func(t *testing.T) {
		repo := newMemoryRepo()
		svc := NewService(repo, nil)
		wallet := seedWallet(t, repo, 1, 10000)

		txn := &models.Transaction{WalletID: wallet.ID, UserID: 1, Amount: 4000, Reference: "WDR_A"}
		require.NoError(t, svc.DebitForWithdrawal(ctx, txn))
		assert.Equal(t, 6000.0, wallet.Balance)

		won, err := svc.CompleteWithdrawal(ctx, txn, "TRF_1")
		require.NoError(t, err)
		assert.True(t, won)
		assert.Equal(t, 6000.0, wallet.Balance, "completion moves no money")
	})

	t.Run("debit then refund is net zero", func(t *testing.T) {
		repo := newMemoryRepo()
		svc := NewService(repo, nil)
		wallet := seedWallet(t, repo, 1, 10000)

		txn := &models.Transaction{WalletID: wallet.ID, UserID: 1, Amount: 4000, Reference: "WDR_A"}
		require.NoError(t, svc.DebitForWithdrawal(ctx, txn))

		won, err := svc.RefundWithdrawal(ctx, txn, models.TransactionStatusFailed, "transfer failed")
		require.NoError(t, err)
		assert.True(t, won)
		assert.Equal(t, 10000.0, wallet.Balance)
		assert.Equal(t, 10000.0, wallet.TotalDeposits, "refund is not a deposit")

		stored, _ := svc.FindByReference(ctx, "WDR_A")
		assert.Equal(t, models.TransactionStatusFailed, stored.Status)
		assert.Equal(t, "transfer failed", stored.FailureReason)
	})

	t.Run("insufficient balance rejects before any record", func(t *testing.T) {
		repo := newMemoryRepo()
		svc := NewService(repo, nil)
		wallet := seedWallet(t, repo, 1, 1000)

		txn := &models.Transaction{WalletID: wallet.ID, UserID: 1, Amount: 4000, Reference: "WDR_A"}
		err := svc.DebitForWithdrawal(ctx, txn)
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Equal(t, 1000.0, wallet.Balance)

		_, err = svc.FindByReference(ctx, "WDR_A")
		assert.Error(t, err, "no transaction recorded")
	})

	t.Run("refund after completion is a no-op", func(t *testing.T) {
		repo := newMemoryRepo()
		svc := NewService(repo, nil)
		wallet := seedWallet(t, repo, 1, 10000)

		txn := &models.Transaction{WalletID: wallet.ID, UserID: 1, Amount: 4000, Reference: "WDR_A"}
		require.NoError(t, svc.DebitForWithdrawal(ctx, txn))

		won, err := svc.CompleteWithdrawal(ctx, txn, "TRF_1")
		require.NoError(t, err)
		require.True(t, won)

		won, err = svc.RefundWithdrawal(ctx, txn, models.TransactionStatusFailed, "late failure event")
		require.NoError(t, err)
		assert.False(t, won)
		assert.Equal(t, 6000.0, wallet.Balance, "no compensating credit after completion")
	})
}

func TestVerifyInvariant(t *testing.T) {
	ctx := context.Background()

	t.Run("holds through a full lifecycle", func(t *testing.T) {
		repo := newMemoryRepo()
		svc := NewService(repo, nil)
		wallet := seedWallet(t, repo, 1, 0)
		wallet.TotalDeposits = 0

		dep := &models.Transaction{WalletID: wallet.ID, UserID: 1, Amount: 9000, Reference: "FUND_A"}
		require.NoError(t, svc.CreatePendingDeposit(ctx, dep))
		_, err := svc.ApplyDepositCredit(ctx, dep, "PSK_1", "")
		require.NoError(t, err)

		wd := &models.Transaction{WalletID: wallet.ID, UserID: 1, Amount: 2500, Reference: "WDR_A"}
		require.NoError(t, svc.DebitForWithdrawal(ctx, wd))

		// Pending withdrawal already left the balance.
		assert.NoError(t, svc.VerifyInvariant(ctx, wallet.ID))

		_, err = svc.CompleteWithdrawal(ctx, wd, "TRF_1")
		require.NoError(t, err)
		assert.NoError(t, svc.VerifyInvariant(ctx, wallet.ID))
	})

	t.Run("reports a drifted balance", func(t *testing.T) {
		repo := newMemoryRepo()
		svc := NewService(repo, nil)
		wallet := seedWallet(t, repo, 1, 0)
		wallet.TotalDeposits = 0

		wallet.Balance = 777 // no ledger entries back this

		err := svc.VerifyInvariant(ctx, wallet.ID)
		assert.ErrorIs(t, err, ErrInvariantViolated)
	})
}

func TestGetOrCreateWallet(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	wallet, err := svc.GetOrCreateWallet(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "NGN", wallet.Currency)
	assert.Zero(t, wallet.Balance)

	again, err := svc.GetOrCreateWallet(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, wallet.ID, again.ID)
}
