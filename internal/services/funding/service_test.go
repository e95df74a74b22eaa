package funding

import (
	"context"
	"strings"
	"testing"

	"kobopay/internal/models"
	"kobopay/internal/providers/paystack"
	"kobopay/internal/repositories"
	"kobopay/internal/services/ledger/ledgertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	users   map[uint]*models.User
	updates int
}

func (f *fakeUsers) GetByID(id uint) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, repositories.ErrUserNotFound
}

func (f *fakeUsers) Update(user *models.User) error {
	f.users[user.ID] = user
	f.updates++
	return nil
}

type fakeProvider struct {
	customerCalls int
	// failBanks holds bank slugs whose dedicated-account creation fails.
	failBanks    map[string]bool
	accountCalls []string
}

func (f *fakeProvider) CreateCustomer(_ context.Context, req paystack.CustomerRequest) (*paystack.Customer, error) {
	f.customerCalls++
	return &paystack.Customer{ID: 10, CustomerCode: "CUS_1", Email: req.Email}, nil
}

func (f *fakeProvider) CreateDedicatedAccount(_ context.Context, customerCode, preferredBank string) (*paystack.DedicatedAccount, error) {
	f.accountCalls = append(f.accountCalls, preferredBank)
	if f.failBanks[preferredBank] {
		return nil, &paystack.APIError{StatusCode: 400, Message: "Dedicated account not available"}
	}
	account := &paystack.DedicatedAccount{ID: 55, AccountNumber: "9912345678", AccountName: "ADA OKAFOR", Active: true}
	account.Bank.Name = "Wema Bank"
	account.Bank.Slug = preferredBank
	return account, nil
}

type recordingNotifier struct {
	notifications []string
}

func (r *recordingNotifier) CreateNotification(_ context.Context, _ uint, title, _, _, _, _ string) {
	r.notifications = append(r.notifications, title)
}

func newTestService(t *testing.T) (*Service, *ledgertest.Fake, *fakeUsers, *fakeProvider, *recordingNotifier) {
	t.Helper()
	fl := ledgertest.New()
	users := &fakeUsers{users: map[uint]*models.User{
		1: {ID: 1, Email: "ada@example.com", Phone: "+2348012345678", FirstName: "Ada", LastName: "Okafor"},
	}}
	provider := &fakeProvider{failBanks: map[string]bool{}}
	notifier := &recordingNotifier{}
	svc := NewService(fl, users, provider, notifier, Config{MinimumAmount: 100})
	return svc, fl, users, provider, notifier
}

func TestInitiate_CreatesPendingIntent(t *testing.T) {
	svc, fl, users, provider, notifier := newTestService(t)

	intent, err := svc.Initiate(context.Background(), 1, 5000)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(intent.Reference, ReferencePrefix))
	assert.Equal(t, "9912345678", intent.AccountNumber)
	assert.Equal(t, "Wema Bank", intent.Bank)
	assert.Equal(t, 5000.0, intent.Amount)

	txn := fl.Txns[intent.Reference]
	require.NotNil(t, txn)
	assert.Equal(t, models.TransactionTypeDeposit, txn.Type)
	assert.Equal(t, models.TransactionStatusPending, txn.Status)
	assert.Equal(t, models.MetadataKindDeposit, txn.MetadataKind())

	wallet := fl.Wallets[1]
	assert.Equal(t, 0.0, wallet.Balance, "initiation never credits")
	assert.Equal(t, "9912345678", wallet.AccountNumber, "account snapshot persisted")

	assert.Equal(t, "CUS_1", users.users[1].ProviderCustomerCode)
	assert.Equal(t, 1, provider.customerCalls)
	assert.Contains(t, notifier.notifications, "Funding initiated")
}

func TestInitiate_ReusesProvisionedIdentity(t *testing.T) {
	svc, _, _, provider, _ := newTestService(t)

	_, err := svc.Initiate(context.Background(), 1, 5000)
	require.NoError(t, err)
	_, err = svc.Initiate(context.Background(), 1, 2000)
	require.NoError(t, err)

	assert.Equal(t, 1, provider.customerCalls, "customer created once")
	assert.Len(t, provider.accountCalls, 1, "receiving account created once")
}

func TestInitiate_UniqueReferences(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	first, err := svc.Initiate(context.Background(), 1, 5000)
	require.NoError(t, err)
	second, err := svc.Initiate(context.Background(), 1, 5000)
	require.NoError(t, err)

	assert.NotEqual(t, first.Reference, second.Reference)
}

func TestInitiate_BankFallbackOrder(t *testing.T) {
	svc, fl, _, provider, _ := newTestService(t)
	provider.failBanks[paystack.DefaultDedicatedAccountBanks[0]] = true

	_, err := svc.Initiate(context.Background(), 1, 5000)
	require.NoError(t, err)

	require.Len(t, provider.accountCalls, 2)
	assert.Equal(t, paystack.DefaultDedicatedAccountBanks[0], provider.accountCalls[0])
	assert.Equal(t, paystack.DefaultDedicatedAccountBanks[1], provider.accountCalls[1])
	assert.Equal(t, paystack.DefaultDedicatedAccountBanks[1], fl.Wallets[1].BankSlug,
		"second candidate served the account")
}

func TestInitiate_AllBanksFail(t *testing.T) {
	svc, fl, _, provider, _ := newTestService(t)
	for _, bank := range paystack.DefaultDedicatedAccountBanks {
		provider.failBanks[bank] = true
	}

	_, err := svc.Initiate(context.Background(), 1, 5000)
	assert.ErrorIs(t, err, ErrNoReceivingAccount)
	assert.Empty(t, fl.Txns, "no intent recorded without a receiving account")
}

func TestInitiate_RejectsBelowMinimum(t *testing.T) {
	svc, fl, _, _, _ := newTestService(t)

	_, err := svc.Initiate(context.Background(), 1, 50)
	assert.Error(t, err)
	assert.Empty(t, fl.Txns)
}

func TestInitiate_UnknownUser(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, err := svc.Initiate(context.Background(), 99, 5000)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStatus(t *testing.T) {
	svc, fl, _, _, _ := newTestService(t)

	intent, err := svc.Initiate(context.Background(), 1, 5000)
	require.NoError(t, err)

	status, err := svc.Status(context.Background(), 1, intent.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, status.Status)
	assert.Equal(t, 0.0, status.Balance)

	// Credit lands; status reflects it.
	txn := fl.Txns[intent.Reference]
	txn.Status = models.TransactionStatusCompleted
	fl.Wallets[1].Balance = 5000

	status, err = svc.Status(context.Background(), 1, intent.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, status.Status)
	assert.Equal(t, 5000.0, status.Balance)

	t.Run("foreign reference hidden", func(t *testing.T) {
		_, err := svc.Status(context.Background(), 2, intent.Reference)
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})

	t.Run("unknown reference", func(t *testing.T) {
		_, err := svc.Status(context.Background(), 1, "FUND_NOPE")
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})
}
