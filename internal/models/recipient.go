package models

import "time"

// TransferRecipient is a payee record registered with the provider. One row
// per (user, bank, account) so repeat withdrawals reuse the recipient code.
type TransferRecipient struct {
	ID            uint   `gorm:"primarykey"`
	UserID        uint   `gorm:"index:idx_recipient_identity,unique;not null"`
	BankCode      string `gorm:"index:idx_recipient_identity,unique;not null"`
	AccountNumber string `gorm:"index:idx_recipient_identity,unique;not null"`
	AccountName   string
	RecipientCode string `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
