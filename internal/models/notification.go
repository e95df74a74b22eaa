package models

import "time"

// Notification types
const (
	NotificationTypeFunding    = "funding"
	NotificationTypeWithdrawal = "withdrawal"
	NotificationTypeOperator   = "operator_alert"
)

// Notification is a user-facing (or operator-facing) record paired with every
// balance-affecting event, so state stays discoverable even if the immediate
// API response is lost.
type Notification struct {
	ID        uint   `gorm:"primarykey"`
	UserID    uint   `gorm:"index;not null"`
	Title     string `gorm:"not null"`
	Message   string
	Reference string `gorm:"index"`
	Type      string `gorm:"not null"`
	Status    string
	Read      bool `gorm:"default:false"`
	CreatedAt time.Time
}
