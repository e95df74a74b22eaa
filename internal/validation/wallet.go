// Package validation holds the synchronous input checks. Anything rejected
// here is a caller error and is never retried.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrAmountBelowMinimum   = errors.New("amount below minimum")
	ErrInvalidEmail         = errors.New("invalid email address")
	ErrInvalidPhone         = errors.New("invalid phone number")
	ErrInvalidAccountNumber = errors.New("invalid account number")
	ErrInvalidBankCode      = errors.New("invalid bank code")
)

var (
	emailPattern  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phonePattern  = regexp.MustCompile(`^\+?[0-9]{10,14}$`)
	nubanPattern  = regexp.MustCompile(`^[0-9]{10}$`)
	bankCodeChars = regexp.MustCompile(`^[0-9]{3,6}$`)
)

// Amount checks a positive amount against a minimum threshold.
func Amount(amount, minimum float64) error {
	if amount < minimum {
		return fmt.Errorf("%w: minimum is %.2f", ErrAmountBelowMinimum, minimum)
	}
	return nil
}

// Email checks basic address shape.
func Email(email string) error {
	if !emailPattern.MatchString(strings.TrimSpace(email)) {
		return ErrInvalidEmail
	}
	return nil
}

// Phone checks a local or international phone number.
func Phone(phone string) error {
	if phone == "" {
		return nil // optional
	}
	if !phonePattern.MatchString(strings.TrimSpace(phone)) {
		return ErrInvalidPhone
	}
	return nil
}

// AccountNumber checks a 10-digit NUBAN.
func AccountNumber(accountNumber string) error {
	if !nubanPattern.MatchString(accountNumber) {
		return ErrInvalidAccountNumber
	}
	return nil
}

// BankCode checks the provider bank code shape.
func BankCode(code string) error {
	if !bankCodeChars.MatchString(code) {
		return ErrInvalidBankCode
	}
	return nil
}
