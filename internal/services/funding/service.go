// Package funding creates deposit intents: it provisions the user's dedicated
// receiving account and records a pending transaction for the webhook or the
// sweeper to resolve. It never waits for funds to arrive.
package funding

import (
	"context"
	"fmt"
	"log"
	"strings"

	"kobopay/internal/models"
	"kobopay/internal/providers/paystack"
	"kobopay/internal/repositories"
	"kobopay/internal/services/ledger"
	"kobopay/internal/validation"

	"github.com/google/uuid"
)

// ReferencePrefix marks references generated by the funding path.
const ReferencePrefix = "FUND_"

// Service is the funding initiator.
type Service struct {
	ledger   ledger.Service
	users    UserDirectory
	provider ProviderGateway
	notifier Notifier
	cfg      Config
}

// NewService creates the funding service.
func NewService(ledgerSvc ledger.Service, users UserDirectory, provider ProviderGateway, notifier Notifier, cfg Config) *Service {
	if ledgerSvc == nil {
		panic("ledger service is required")
	}
	if provider == nil {
		panic("provider gateway is required")
	}
	if cfg.MinimumAmount <= 0 {
		cfg.MinimumAmount = 100
	}
	if len(cfg.DedicatedAccountBanks) == 0 {
		cfg.DedicatedAccountBanks = paystack.DefaultDedicatedAccountBanks
	}

	return &Service{
		ledger:   ledgerSvc,
		users:    users,
		provider: provider,
		notifier: notifier,
		cfg:      cfg,
	}
}

// Initiate validates the request, ensures provider identity and receiving
// account, and records the pending deposit intent.
func (s *Service) Initiate(ctx context.Context, userID uint, amount float64) (*FundingIntent, error) {
	if err := validation.Amount(amount, s.cfg.MinimumAmount); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(userID)
	if err != nil {
		if err == repositories.ErrUserNotFound {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if err := validation.Email(user.Email); err != nil {
		return nil, err
	}
	if err := validation.Phone(user.Phone); err != nil {
		return nil, err
	}

	wallet, err := s.ledger.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.ensureCustomer(ctx, user); err != nil {
		return nil, err
	}
	if err := s.ensureReceivingAccount(ctx, user, wallet); err != nil {
		return nil, err
	}

	reference := NewReference()
	txn := &models.Transaction{
		WalletID:  wallet.ID,
		UserID:    userID,
		Amount:    amount,
		Reference: reference,
		Metadata: models.DepositMetadata{
			AccountNumber: wallet.AccountNumber,
			Bank:          wallet.BankName,
			Gateway:       "paystack",
		}.ToJSON(),
	}
	if err := s.ledger.CreatePendingDeposit(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to record deposit intent: %w", err)
	}

	if s.notifier != nil {
		s.notifier.CreateNotification(ctx, userID,
			"Funding initiated",
			fmt.Sprintf("Transfer ₦%.2f to %s (%s) to fund your wallet.", amount, wallet.AccountNumber, wallet.BankName),
			reference, models.NotificationTypeFunding, models.TransactionStatusPending)
	}

	return &FundingIntent{
		AccountNumber: wallet.AccountNumber,
		AccountName:   wallet.AccountName,
		Bank:          wallet.BankName,
		Reference:     reference,
		Amount:        amount,
	}, nil
}

// Status reports the state of a funding reference owned by the user.
func (s *Service) Status(ctx context.Context, userID uint, reference string) (*FundingStatus, error) {
	txn, err := s.ledger.FindByReference(ctx, reference)
	if err != nil {
		return nil, ErrTransactionNotFound
	}
	if txn.UserID != userID {
		return nil, ErrTransactionNotFound
	}

	wallet, err := s.ledger.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &FundingStatus{Status: txn.Status, Balance: wallet.Balance}, nil
}

func (s *Service) ensureCustomer(ctx context.Context, user *models.User) error {
	if user.ProviderCustomerCode != "" {
		return nil
	}

	customer, err := s.provider.CreateCustomer(ctx, paystack.CustomerRequest{
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
	})
	if err != nil {
		return fmt.Errorf("failed to create provider customer: %w", err)
	}

	user.ProviderCustomerCode = customer.CustomerCode
	if err := s.users.Update(user); err != nil {
		return fmt.Errorf("failed to persist customer code: %w", err)
	}
	return nil
}

// ensureReceivingAccount walks the candidate bank list in order and accepts
// the first success. All candidates failing is a hard error for this call;
// no retry happens here.
func (s *Service) ensureReceivingAccount(ctx context.Context, user *models.User, wallet *models.Wallet) error {
	if wallet.HasReceivingAccount() {
		return nil
	}

	var lastErr error
	for _, bank := range s.cfg.DedicatedAccountBanks {
		account, err := s.provider.CreateDedicatedAccount(ctx, user.ProviderCustomerCode, bank)
		if err != nil {
			log.Printf("dedicated account creation failed at %s for user %d: %v", bank, user.ID, err)
			lastErr = err
			continue
		}

		wallet.AccountNumber = account.AccountNumber
		wallet.AccountName = account.AccountName
		wallet.BankName = account.Bank.Name
		wallet.BankSlug = account.Bank.Slug
		wallet.ProviderAccountID = fmt.Sprintf("%d", account.ID)
		if err := s.ledger.UpdateWallet(ctx, wallet); err != nil {
			return fmt.Errorf("failed to persist receiving account: %w", err)
		}
		return nil
	}

	return fmt.Errorf("%w: %v", ErrNoReceivingAccount, lastErr)
}

// NewReference generates a unique funding reference.
func NewReference() string {
	return ReferencePrefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
