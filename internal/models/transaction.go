package models

import (
	"time"
)

// Transaction types
const (
	TransactionTypeDeposit    = "deposit"
	TransactionTypeWithdrawal = "withdrawal"
)

// Transaction statuses. Transitions are monotone: pending moves to exactly one
// of completed/failed/cancelled and never back.
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
	TransactionStatusCancelled = "cancelled"
)

// Transaction is a ledger entry owned by exactly one wallet. Reference is the
// caller-generated idempotency key; ProviderReference is the external id
// assigned once the provider has seen the transaction.
type Transaction struct {
	ID                uint    `gorm:"primarykey"`
	WalletID          uint    `gorm:"index;not null"`
	UserID            uint    `gorm:"index;not null"`
	Type              string  `gorm:"not null"`
	Amount            float64 `gorm:"not null"`
	Reference         string  `gorm:"uniqueIndex;not null"`
	ProviderReference string  `gorm:"index"`
	Status            string  `gorm:"not null;default:'pending'"`
	FailureReason     string
	Metadata          JSON `gorm:"type:jsonb"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsTerminal reports whether the transaction has reached a final status.
func (t *Transaction) IsTerminal() bool {
	return t.Status != TransactionStatusPending
}

// Metadata kinds for the tagged union stored in Transaction.Metadata.
const (
	MetadataKindDeposit    = "deposit"
	MetadataKindWithdrawal = "withdrawal"
)

// DepositMetadata is the deposit variant of transaction metadata. It snapshots
// the receiving account the payer was given, so the record stays auditable
// even if the wallet is later re-provisioned.
type DepositMetadata struct {
	AccountNumber string
	Bank          string
	Gateway       string
	PaidAt        string
	ReconciledAt  string
	Extra         map[string]interface{}
}

// ToJSON converts the metadata to its stored form.
func (m DepositMetadata) ToJSON() JSON {
	j := JSON{
		"kind":           MetadataKindDeposit,
		"account_number": m.AccountNumber,
		"bank":           m.Bank,
		"gateway":        m.Gateway,
	}
	if m.PaidAt != "" {
		j["paid_at"] = m.PaidAt
	}
	if m.ReconciledAt != "" {
		j["reconciled_at"] = m.ReconciledAt
	}
	if len(m.Extra) > 0 {
		j["extra"] = m.Extra
	}
	return j
}

// WithdrawalMetadata is the withdrawal variant of transaction metadata.
type WithdrawalMetadata struct {
	BankCode      string
	AccountNumber string
	AccountName   string
	RecipientCode string
	TransferCode  string
	RetryAttempts int
	Extra         map[string]interface{}
}

// ToJSON converts the metadata to its stored form.
func (m WithdrawalMetadata) ToJSON() JSON {
	j := JSON{
		"kind":           MetadataKindWithdrawal,
		"bank_code":      m.BankCode,
		"account_number": m.AccountNumber,
		"account_name":   m.AccountName,
	}
	if m.RecipientCode != "" {
		j["recipient_code"] = m.RecipientCode
	}
	if m.TransferCode != "" {
		j["transfer_code"] = m.TransferCode
	}
	if m.RetryAttempts > 0 {
		j["retry_attempts"] = m.RetryAttempts
	}
	if len(m.Extra) > 0 {
		j["extra"] = m.Extra
	}
	return j
}

// MetadataKind returns the tagged-union discriminator of the stored metadata,
// or an empty string when none is set.
func (t *Transaction) MetadataKind() string {
	if t.Metadata == nil {
		return ""
	}
	kind, _ := t.Metadata["kind"].(string)
	return kind
}

// MetadataString reads a string field from the metadata bag.
func (t *Transaction) MetadataString(key string) string {
	if t.Metadata == nil {
		return ""
	}
	v, _ := t.Metadata[key].(string)
	return v
}
