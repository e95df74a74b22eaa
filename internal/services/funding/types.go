package funding

import (
	"context"

	"kobopay/internal/models"
	"kobopay/internal/providers/paystack"
)

// Config holds funding policy knobs.
type Config struct {
	// MinimumAmount in naira.
	MinimumAmount float64
	// DedicatedAccountBanks is the ordered fallback list for receiving
	// account creation; the first provider that accepts wins.
	DedicatedAccountBanks []string
}

// FundingIntent is returned to the caller. Funds arrive asynchronously; this
// only carries where to pay and the reference to watch.
type FundingIntent struct {
	AccountNumber string  `json:"account_number"`
	AccountName   string  `json:"account_name"`
	Bank          string  `json:"bank"`
	Reference     string  `json:"reference"`
	Amount        float64 `json:"amount"`
}

// FundingStatus reports where a funding reference currently stands.
type FundingStatus struct {
	Status  string  `json:"status"`
	Balance float64 `json:"balance"`
}

// ProviderGateway is the slice of the provider client the initiator needs.
type ProviderGateway interface {
	CreateCustomer(ctx context.Context, req paystack.CustomerRequest) (*paystack.Customer, error)
	CreateDedicatedAccount(ctx context.Context, customerCode, preferredBank string) (*paystack.DedicatedAccount, error)
}

// UserDirectory resolves and persists the provider customer identity.
type UserDirectory interface {
	GetByID(id uint) (*models.User, error)
	Update(user *models.User) error
}

// Notifier is the notification collaborator.
type Notifier interface {
	CreateNotification(ctx context.Context, userID uint, title, message, reference, notifType, status string)
}
