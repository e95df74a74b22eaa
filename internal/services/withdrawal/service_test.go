package withdrawal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"kobopay/internal/models"
	"kobopay/internal/providers/paystack"
	"kobopay/internal/repositories"
	"kobopay/internal/retry"
	"kobopay/internal/services/ledger/ledgertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeRecipients struct {
	stored map[string]*models.TransferRecipient
}

func newFakeRecipients() *fakeRecipients {
	return &fakeRecipients{stored: make(map[string]*models.TransferRecipient)}
}

func recipientKey(userID uint, bankCode, accountNumber string) string {
	return fmt.Sprintf("%d:%s:%s", userID, bankCode, accountNumber)
}

func (f *fakeRecipients) Find(userID uint, bankCode, accountNumber string) (*models.TransferRecipient, error) {
	if r, ok := f.stored[recipientKey(userID, bankCode, accountNumber)]; ok {
		return r, nil
	}
	return nil, repositories.ErrRecipientNotFound
}

func (f *fakeRecipients) Create(recipient *models.TransferRecipient) error {
	f.stored[recipientKey(recipient.UserID, recipient.BankCode, recipient.AccountNumber)] = recipient
	return nil
}

type fakeGateway struct {
	resolveErr     error
	recipientCalls int
	transferCalls  int
	transferKobo   []int64
	transferErr    error
	transferErrs   []error // consumed per call when set
	transferStatus string
}

func (f *fakeGateway) ResolveAccount(_ context.Context, accountNumber, bankCode string) (*paystack.ResolvedAccount, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return &paystack.ResolvedAccount{AccountNumber: accountNumber, AccountName: "ADA OKAFOR"}, nil
}

func (f *fakeGateway) CreateTransferRecipient(_ context.Context, name, accountNumber, bankCode string) (string, error) {
	f.recipientCalls++
	return "RCP_1", nil
}

func (f *fakeGateway) InitiateTransfer(_ context.Context, req paystack.TransferRequest) (*paystack.Transfer, error) {
	f.transferCalls++
	f.transferKobo = append(f.transferKobo, req.AmountKobo)
	if len(f.transferErrs) > 0 {
		err := f.transferErrs[0]
		f.transferErrs = f.transferErrs[1:]
		if err != nil {
			return nil, err
		}
	} else if f.transferErr != nil {
		return nil, f.transferErr
	}
	status := f.transferStatus
	if status == "" {
		status = "pending"
	}
	return &paystack.Transfer{ID: 1, TransferCode: "TRF_1", Reference: req.Reference, Status: status, AmountKobo: req.AmountKobo}, nil
}

func (f *fakeGateway) ListBanks(_ context.Context) ([]paystack.Bank, error) {
	return paystack.FallbackBanks(), nil
}

type recordingNotifier struct {
	notifications []string
	alerts        []string
}

func (r *recordingNotifier) CreateNotification(_ context.Context, _ uint, title, _, _, _, _ string) {
	r.notifications = append(r.notifications, title)
}

func (r *recordingNotifier) OperatorAlert(_ context.Context, _ uint, title, _, _ string) {
	r.alerts = append(r.alerts, title)
}

func (r *recordingNotifier) EmitBalanceUpdate(_ context.Context, _ *models.Wallet, _ string) {}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}
}

func newTestService(t *testing.T) (*Service, *ledgertest.Fake, *fakeGateway, *fakeRecipients, *recordingNotifier) {
	t.Helper()
	fl := ledgertest.New()
	gateway := &fakeGateway{}
	recipients := newFakeRecipients()
	notifier := &recordingNotifier{}
	svc := NewService(fl, recipients, gateway, notifier, Config{MinimumAmount: 100, Retry: fastRetry()})
	return svc, fl, gateway, recipients, notifier
}

func validRequest() WithdrawRequest {
	return WithdrawRequest{
		Amount:        4000,
		BankCode:      "058",
		AccountNumber: "0123456789",
	}
}

func TestWithdraw_HappyPath(t *testing.T) {
	svc, fl, gateway, _, notifier := newTestService(t)
	wallet := fl.AddWallet(1, 10000)

	receipt, err := svc.Withdraw(context.Background(), 1, validRequest())
	require.NoError(t, err)

	assert.Equal(t, 4000.0, receipt.Amount)
	assert.Equal(t, models.TransactionStatusPending, receipt.Status)
	assert.Equal(t, "ADA OKAFOR", receipt.AccountName)
	assert.Equal(t, 6000.0, receipt.Balance)
	assert.Equal(t, 6000.0, wallet.Balance)

	txn := fl.Txns[receipt.Reference]
	require.NotNil(t, txn)
	assert.Equal(t, models.TransactionTypeWithdrawal, txn.Type)
	assert.Equal(t, "TRF_1", txn.MetadataString("transfer_code"))
	assert.Equal(t, 1, gateway.transferCalls)
	assert.Contains(t, notifier.notifications, "Withdrawal initiated")
}

func TestWithdraw_FractionalAmountConvertsExactly(t *testing.T) {
	svc, fl, gateway, _, _ := newTestService(t)
	wallet := fl.AddWallet(1, 1000)

	req := validRequest()
	req.Amount = 128.14 // 128.14 * 100 is 12813.999... in float64

	receipt, err := svc.Withdraw(context.Background(), 1, req)
	require.NoError(t, err)

	require.Len(t, gateway.transferKobo, 1)
	assert.Equal(t, int64(12814), gateway.transferKobo[0],
		"payout kobo amount must match the debited naira amount")
	assert.InDelta(t, 871.86, wallet.Balance, 0.001)
	assert.Equal(t, 128.14, receipt.Amount)
}

func TestWithdraw_InsufficientFunds(t *testing.T) {
	svc, fl, gateway, _, _ := newTestService(t)
	wallet := fl.AddWallet(1, 1000)

	_, err := svc.Withdraw(context.Background(), 1, validRequest())
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, 1000.0, wallet.Balance)
	assert.Empty(t, fl.Txns, "nothing recorded")
	assert.Zero(t, gateway.transferCalls)
}

func TestWithdraw_RecipientReuse(t *testing.T) {
	svc, fl, gateway, _, _ := newTestService(t)
	fl.AddWallet(1, 20000)

	_, err := svc.Withdraw(context.Background(), 1, validRequest())
	require.NoError(t, err)
	_, err = svc.Withdraw(context.Background(), 1, validRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, gateway.recipientCalls, "second withdrawal reuses the stored recipient")
}

func TestWithdraw_RecipientNotSharedAcrossUsers(t *testing.T) {
	svc, fl, gateway, recipients, _ := newTestService(t)
	fl.AddWallet(1, 20000)
	fl.AddWallet(2, 20000)

	_, err := svc.Withdraw(context.Background(), 1, validRequest())
	require.NoError(t, err)
	_, err = svc.Withdraw(context.Background(), 2, validRequest())
	require.NoError(t, err)

	assert.Equal(t, 2, gateway.recipientCalls, "same destination, separate users, separate recipients")
	assert.Len(t, recipients.stored, 2)
}

func TestWithdraw_SynchronousSettlement(t *testing.T) {
	svc, fl, gateway, _, _ := newTestService(t)
	fl.AddWallet(1, 10000)
	gateway.transferStatus = "success"

	receipt, err := svc.Withdraw(context.Background(), 1, validRequest())
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, receipt.Status)
	assert.Equal(t, models.TransactionStatusCompleted, fl.Txns[receipt.Reference].Status)
}

func TestWithdraw_TerminalRejectionRefunds(t *testing.T) {
	svc, fl, gateway, _, _ := newTestService(t)
	wallet := fl.AddWallet(1, 10000)
	gateway.transferErr = &paystack.APIError{StatusCode: 422, Message: "Invalid recipient"}

	receipt, err := svc.Withdraw(context.Background(), 1, validRequest())
	require.NoError(t, err, "the withdrawal request itself succeeds; the payout failed after debit")

	assert.Equal(t, models.TransactionStatusFailed, receipt.Status)
	assert.Equal(t, 10000.0, wallet.Balance, "debit refunded")
	assert.Equal(t, 1, gateway.transferCalls, "terminal rejection is not retried")
}

func TestWithdraw_TransientExhaustionRefundsAndAlerts(t *testing.T) {
	svc, fl, gateway, _, notifier := newTestService(t)
	wallet := fl.AddWallet(1, 10000)
	gateway.transferErr = &paystack.APIError{StatusCode: 503, Message: "unavailable"}

	receipt, err := svc.Withdraw(context.Background(), 1, validRequest())
	require.NoError(t, err)

	assert.Equal(t, models.TransactionStatusCancelled, receipt.Status)
	assert.Equal(t, 10000.0, wallet.Balance)
	assert.Equal(t, 2, gateway.transferCalls, "retried to exhaustion")
	assert.Contains(t, notifier.alerts, "Payout retries exhausted")

	txn := fl.Txns[receipt.Reference]
	assert.Equal(t, 2, txn.Metadata["retry_attempts"])
}

func TestWithdraw_TransientThenSuccess(t *testing.T) {
	svc, fl, gateway, _, _ := newTestService(t)
	fl.AddWallet(1, 10000)
	gateway.transferErrs = []error{&paystack.APIError{StatusCode: 503, Message: "unavailable"}, nil}

	receipt, err := svc.Withdraw(context.Background(), 1, validRequest())
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, receipt.Status)
	assert.Equal(t, 2, gateway.transferCalls)
	assert.Equal(t, 2, fl.Txns[receipt.Reference].Metadata["retry_attempts"])
}

func TestWithdraw_ValidationRejects(t *testing.T) {
	svc, fl, _, _, _ := newTestService(t)
	fl.AddWallet(1, 10000)

	tests := []struct {
		name   string
		mutate func(*WithdrawRequest)
	}{
		{name: "below minimum", mutate: func(r *WithdrawRequest) { r.Amount = 50 }},
		{name: "bad account number", mutate: func(r *WithdrawRequest) { r.AccountNumber = "123" }},
		{name: "bad bank code", mutate: func(r *WithdrawRequest) { r.BankCode = "xx" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := svc.Withdraw(context.Background(), 1, req)
			assert.Error(t, err)
		})
	}
	assert.Empty(t, fl.Txns)
}

func TestWithdraw_PinEnforcement(t *testing.T) {
	svc, fl, _, _, _ := newTestService(t)
	wallet := fl.AddWallet(1, 10000)

	hash, err := bcrypt.GenerateFromPassword([]byte("4321"), bcrypt.MinCost)
	require.NoError(t, err)
	wallet.PinHash = string(hash)

	t.Run("missing pin", func(t *testing.T) {
		_, err := svc.Withdraw(context.Background(), 1, validRequest())
		assert.ErrorIs(t, err, ErrPinRequired)
	})

	t.Run("wrong pin", func(t *testing.T) {
		req := validRequest()
		req.Pin = "0000"
		_, err := svc.Withdraw(context.Background(), 1, req)
		assert.ErrorIs(t, err, ErrInvalidPin)
	})

	t.Run("correct pin", func(t *testing.T) {
		req := validRequest()
		req.Pin = "4321"
		_, err := svc.Withdraw(context.Background(), 1, req)
		assert.NoError(t, err)
	})
}

func TestSetPin(t *testing.T) {
	svc, fl, _, _, _ := newTestService(t)
	fl.AddWallet(1, 0)

	require.NoError(t, svc.SetPin(context.Background(), 1, "", "4321"))
	wallet := fl.Wallets[1]
	assert.NotEmpty(t, wallet.PinHash)

	t.Run("change requires current pin", func(t *testing.T) {
		err := svc.SetPin(context.Background(), 1, "0000", "9999")
		assert.ErrorIs(t, err, ErrInvalidPin)

		assert.NoError(t, svc.SetPin(context.Background(), 1, "4321", "9999"))
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(wallet.PinHash), []byte("9999")))
	})

	t.Run("short pin rejected", func(t *testing.T) {
		err := svc.SetPin(context.Background(), 1, "9999", "12")
		assert.Error(t, err)
	})
}

func TestRetryPending_ReinitiatesLostPayouts(t *testing.T) {
	svc, fl, gateway, _, _ := newTestService(t)
	wallet := fl.AddWallet(1, 6000)

	// Debited before a crash: no transfer code recorded.
	fl.AddTxn(&models.Transaction{
		WalletID: wallet.ID, UserID: 1, Type: models.TransactionTypeWithdrawal,
		Amount: 4000, Reference: "WDR_LOST",
		Metadata: models.WithdrawalMetadata{RecipientCode: "RCP_1"}.ToJSON(),
	})
	// This one already reached the provider; must not be re-sent.
	fl.AddTxn(&models.Transaction{
		WalletID: wallet.ID, UserID: 1, Type: models.TransactionTypeWithdrawal,
		Amount: 1000, Reference: "WDR_SENT",
		Metadata: models.WithdrawalMetadata{RecipientCode: "RCP_1", TransferCode: "TRF_9"}.ToJSON(),
	})

	require.NoError(t, svc.RetryPending(context.Background()))

	assert.Equal(t, 1, gateway.transferCalls)
	assert.Equal(t, "TRF_1", fl.Txns["WDR_LOST"].MetadataString("transfer_code"))
	assert.Equal(t, "TRF_9", fl.Txns["WDR_SENT"].MetadataString("transfer_code"))
}

func TestVerifyAccount(t *testing.T) {
	svc, _, gateway, _, _ := newTestService(t)

	resolved, err := svc.VerifyAccount(context.Background(), "0123456789", "058")
	require.NoError(t, err)
	assert.Equal(t, "ADA OKAFOR", resolved.AccountName)

	gateway.resolveErr = &paystack.APIError{StatusCode: 422, Message: "Could not resolve account name"}
	_, err = svc.VerifyAccount(context.Background(), "0123456789", "058")
	assert.ErrorIs(t, err, ErrAccountResolution)

	_, err = svc.VerifyAccount(context.Background(), "123", "058")
	assert.Error(t, err, "short account number rejected before any provider call")
}
