package models

import (
	"time"
)

// User carries the identity the funding path needs: contact details and the
// provider-side customer code persisted after first contact with the gateway.
type User struct {
	ID                   uint   `gorm:"primarykey"`
	Email                string `gorm:"uniqueIndex;not null"`
	Phone                string `gorm:"index"`
	FirstName            string
	LastName             string
	ProviderCustomerCode string `gorm:"index"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// FullName joins first and last name for provider payloads.
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
