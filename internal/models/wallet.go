package models

import (
	"time"

	"gorm.io/gorm"
)

// Wallet is the authoritative ledger record for a single user. Balance and
// TotalDeposits only move together with a transaction status transition.
type Wallet struct {
	ID            uint    `gorm:"primarykey"`
	UserID        uint    `gorm:"uniqueIndex;not null"`
	Balance       float64 `gorm:"not null;default:0"`
	TotalDeposits float64 `gorm:"not null;default:0"`
	Currency      string  `gorm:"default:'NGN'"`

	// Dedicated receiving account issued by the provider. Empty until the
	// first funding request provisions one.
	AccountNumber     string
	AccountName       string
	BankName          string
	BankSlug          string
	ProviderAccountID string

	// PIN guarding withdrawals, bcrypt hash. Optional.
	PinHash string `gorm:"default:''" json:"-"`

	LastSyncedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	// Ensure balances start at 0
	w.Balance = 0.0
	w.TotalDeposits = 0.0
	return nil
}

// HasReceivingAccount reports whether a dedicated provider account has been
// provisioned for this wallet.
func (w *Wallet) HasReceivingAccount() bool {
	return w.AccountNumber != "" && w.ProviderAccountID != ""
}
