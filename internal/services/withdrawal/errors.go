package withdrawal

import "errors"

var (
	// ErrInsufficientFunds rejects a withdrawal exceeding the balance. This
	// is terminal: no transaction record is created.
	ErrInsufficientFunds = errors.New("insufficient wallet balance")

	// ErrInvalidPin rejects a withdrawal when the wallet has a PIN set and
	// the supplied one does not match.
	ErrInvalidPin = errors.New("invalid withdrawal pin")

	// ErrPinRequired rejects a withdrawal when the wallet has a PIN set and
	// none was supplied.
	ErrPinRequired = errors.New("withdrawal pin required")

	// ErrAccountResolution means the destination account failed the name
	// enquiry and the withdrawal was not recorded.
	ErrAccountResolution = errors.New("could not resolve destination account")

	// ErrWalletNotFound means the user holds no wallet to withdraw from.
	ErrWalletNotFound = errors.New("wallet not found")
)
