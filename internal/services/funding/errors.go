package funding

import "errors"

var (
	// ErrNoReceivingAccount means every candidate bank refused to provision
	// a dedicated account. Surfaces as 503; the caller may try again later.
	ErrNoReceivingAccount = errors.New("no receiving account could be provisioned")

	ErrUserNotFound        = errors.New("user not found")
	ErrTransactionNotFound = errors.New("transaction not found")
)
