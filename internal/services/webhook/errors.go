package webhook

import "errors"

var (
	// ErrSignatureMismatch rejects the request before any processing.
	ErrSignatureMismatch = errors.New("webhook signature mismatch")

	// ErrWalletNotResolved means the event names a counterparty we hold no
	// wallet for. This indicates a data-consistency problem, not routine work.
	ErrWalletNotResolved = errors.New("no wallet for webhook counterparty")

	// ErrTransactionNotResolved means a transfer event references a payout
	// this ledger never initiated.
	ErrTransactionNotResolved = errors.New("no transaction for webhook reference")
)
