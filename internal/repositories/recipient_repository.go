package repositories

import (
	"errors"
	"fmt"

	"kobopay/internal/models"

	"gorm.io/gorm"
)

var ErrRecipientNotFound = errors.New("transfer recipient not found")

// RecipientRepository stores payee recipient records so repeat withdrawals to
// the same account reuse the provider-issued recipient code.
type RecipientRepository interface {
	Find(userID uint, bankCode, accountNumber string) (*models.TransferRecipient, error)
	Create(recipient *models.TransferRecipient) error
}

type recipientRepository struct {
	db *gorm.DB
}

func NewRecipientRepository(db *gorm.DB) RecipientRepository {
	return &recipientRepository{db: db}
}

func (r *recipientRepository) Find(userID uint, bankCode, accountNumber string) (*models.TransferRecipient, error) {
	var recipient models.TransferRecipient
	err := r.db.
		Where("user_id = ? AND bank_code = ? AND account_number = ?", userID, bankCode, accountNumber).
		First(&recipient).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, fmt.Errorf("failed to find recipient: %w", err)
	}
	return &recipient, nil
}

func (r *recipientRepository) Create(recipient *models.TransferRecipient) error {
	if err := r.db.Create(recipient).Error; err != nil {
		return fmt.Errorf("failed to create recipient: %w", err)
	}
	return nil
}
