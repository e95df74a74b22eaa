package paystack

import "encoding/json"

// envelope is the provider's standard response wrapper.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// CustomerRequest creates a provider-side customer identity.
type CustomerRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Customer is the provider's customer record.
type Customer struct {
	ID           int64  `json:"id"`
	CustomerCode string `json:"customer_code"`
	Email        string `json:"email"`
}

// DedicatedAccount is a virtual receiving account assigned to one customer.
type DedicatedAccount struct {
	ID            int64  `json:"id"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	Active        bool   `json:"active"`
	Bank          struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	} `json:"bank"`
}

// VerifiedTransaction is the provider's view of a transaction looked up by
// reference.
type VerifiedTransaction struct {
	ID              int64  `json:"id"`
	Reference       string `json:"reference"`
	Status          string `json:"status"` // "success", "failed", "abandoned", "pending"
	AmountKobo      int64  `json:"amount"`
	GatewayResponse string `json:"gateway_response"`
	PaidAt          string `json:"paid_at"`
	Channel         string `json:"channel"`
	Currency        string `json:"currency"`
}

// Succeeded reports whether the provider settled the transaction.
func (v *VerifiedTransaction) Succeeded() bool { return v.Status == "success" }

// Failed reports whether the provider terminally rejected the transaction.
// "abandoned" is still resolvable and is treated as pending.
func (v *VerifiedTransaction) Failed() bool {
	return v.Status == "failed" || v.Status == "reversed"
}

// Balance is one currency bucket of the provider-side float.
type Balance struct {
	Currency    string `json:"currency"`
	BalanceKobo int64  `json:"balance"`
}

// ResolvedAccount is the provider's answer to a NUBAN name enquiry.
type ResolvedAccount struct {
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

// RecipientRequest registers a payout destination.
type RecipientRequest struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	Currency      string `json:"currency"`
}

type recipientData struct {
	RecipientCode string `json:"recipient_code"`
}

// TransferRequest initiates a payout to a registered recipient.
type TransferRequest struct {
	Source     string `json:"source"`
	AmountKobo int64  `json:"amount"`
	Recipient  string `json:"recipient"`
	Reference  string `json:"reference"`
	Reason     string `json:"reason,omitempty"`
}

// Transfer is the provider's record of an initiated payout.
type Transfer struct {
	ID           int64  `json:"id"`
	TransferCode string `json:"transfer_code"`
	Reference    string `json:"reference"`
	Status       string `json:"status"` // "pending", "success", "failed", "reversed"
	AmountKobo   int64  `json:"amount"`
}

// Bank is one entry of the supported bank list.
type Bank struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
	Code string `json:"code"`
}
