package webhook

import (
	"context"

	"kobopay/internal/models"
)

// Event types this ingestor acts on. Everything else is acknowledged without
// side effects.
const (
	EventChargeSuccess    = "charge.success"
	EventTransferSuccess  = "transfer.success"
	EventTransferFailed   = "transfer.failed"
	EventTransferReversed = "transfer.reversed"
)

// Event is the provider's webhook payload.
type Event struct {
	Event string    `json:"event"`
	Data  EventData `json:"data"`
}

// EventData carries the transaction details. Amount is in kobo.
type EventData struct {
	ID           int64  `json:"id"`
	Reference    string `json:"reference"`
	AmountKobo   int64  `json:"amount"`
	Status       string `json:"status"`
	PaidAt       string `json:"paid_at"`
	TransferCode string `json:"transfer_code"`
	Customer     struct {
		Email string `json:"email"`
	} `json:"customer"`
	AccountDetails *struct {
		AccountNumber string `json:"account_number"`
		BankName      string `json:"bank_name"`
	} `json:"account_details,omitempty"`
}

// AmountNaira converts the kobo amount once at the ingestion boundary.
func (d EventData) AmountNaira() float64 {
	return float64(d.AmountKobo) / 100.0
}

// UserDirectory resolves the owning user by counterparty email.
type UserDirectory interface {
	GetByEmail(email string) (*models.User, error)
}

// Notifier is the notification collaborator.
type Notifier interface {
	CreateNotification(ctx context.Context, userID uint, title, message, reference, notifType, status string)
	EmitBalanceUpdate(ctx context.Context, wallet *models.Wallet, summary string)
}
