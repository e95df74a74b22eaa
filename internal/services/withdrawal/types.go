package withdrawal

import (
	"context"

	"kobopay/internal/models"
	"kobopay/internal/providers/paystack"
	"kobopay/internal/retry"
)

// Config holds withdrawal policy.
type Config struct {
	// MinimumAmount is the smallest accepted withdrawal in naira.
	MinimumAmount float64
	// Retry controls the payout initiation backoff schedule.
	Retry retry.Config
}

// WithdrawRequest is the caller's payout instruction.
type WithdrawRequest struct {
	Amount        float64 `json:"amount"`
	BankCode      string  `json:"bank_code"`
	AccountNumber string  `json:"account_number"`
	AccountName   string  `json:"account_name"`
	Pin           string  `json:"pin"`
	Reason        string  `json:"reason"`
}

// Receipt reports the recorded withdrawal back to the caller. Status is
// usually pending; the webhook or the sweeper finalizes it later.
type Receipt struct {
	Reference   string  `json:"reference"`
	Amount      float64 `json:"amount"`
	Status      string  `json:"status"`
	AccountName string  `json:"account_name"`
	Balance     float64 `json:"balance"`
}

// ProviderGateway is the slice of the provider client the withdrawal path
// needs.
type ProviderGateway interface {
	ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*paystack.ResolvedAccount, error)
	CreateTransferRecipient(ctx context.Context, name, accountNumber, bankCode string) (string, error)
	InitiateTransfer(ctx context.Context, req paystack.TransferRequest) (*paystack.Transfer, error)
	ListBanks(ctx context.Context) ([]paystack.Bank, error)
}

// Notifier is the notification collaborator.
type Notifier interface {
	CreateNotification(ctx context.Context, userID uint, title, message, reference, notifType, status string)
	OperatorAlert(ctx context.Context, userID uint, title, message, reference string)
	EmitBalanceUpdate(ctx context.Context, wallet *models.Wallet, summary string)
}
