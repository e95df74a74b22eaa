// Package paystack wraps the external payment provider's REST API behind a
// rate-limited client. All outbound calls funnel through one bounded
// concurrency gate so the provider's limits are respected process-wide.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Config holds client construction parameters.
type Config struct {
	BaseURL   string
	SecretKey string
	// Timeout applies per outbound call.
	Timeout time.Duration
	// PoolSize bounds concurrent in-flight calls; excess callers block.
	PoolSize int
	// MinCallSpacing is the minimum gap between consecutive calls.
	MinCallSpacing time.Duration
}

// Client talks to the provider. Construct once at startup and inject into the
// services that need it.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	timeout    time.Duration
	sem        chan struct{}
	limiter    *rate.Limiter
}

// NewClient creates a provider client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.paystack.co"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}
	if cfg.MinCallSpacing <= 0 {
		cfg.MinCallSpacing = 100 * time.Millisecond
	}

	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:  cfg.SecretKey,
		timeout:    cfg.Timeout,
		sem:        make(chan struct{}, cfg.PoolSize),
		limiter:    rate.NewLimiter(rate.Every(cfg.MinCallSpacing), 1),
	}
}

// do performs one provider call: acquire the pool slot, wait for rate
// spacing, then issue the request with a per-call timeout. The decoded
// envelope data is unmarshalled into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read provider response: %w", err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("failed to decode provider response: %w", err)
		}
	}

	if resp.StatusCode >= 300 {
		return c.classifyError(resp.StatusCode, env.Message)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode provider data: %w", err)
		}
	}
	return nil
}

func (c *Client) classifyError(status int, message string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuth, message)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, message)
	case status == http.StatusBadRequest && strings.Contains(strings.ToLower(message), "balance"):
		return fmt.Errorf("%w: %s", ErrInsufficientProviderBalance, message)
	default:
		return &APIError{StatusCode: status, Message: message}
	}
}

// CreateCustomer registers a customer identity with the provider.
func (c *Client) CreateCustomer(ctx context.Context, req CustomerRequest) (*Customer, error) {
	var customer Customer
	if err := c.do(ctx, http.MethodPost, "/customer", req, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// CreateDedicatedAccount provisions a virtual receiving account for the
// customer at the preferred bank.
func (c *Client) CreateDedicatedAccount(ctx context.Context, customerCode, preferredBank string) (*DedicatedAccount, error) {
	body := map[string]string{
		"customer":       customerCode,
		"preferred_bank": preferredBank,
	}
	var account DedicatedAccount
	if err := c.do(ctx, http.MethodPost, "/dedicated_account", body, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// VerifyTransaction looks up a transaction by our reference.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*VerifiedTransaction, error) {
	var tx VerifiedTransaction
	path := "/transaction/verify/" + url.PathEscape(reference)
	if err := c.do(ctx, http.MethodGet, path, nil, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// CheckBalance returns the provider-side float per currency.
func (c *Client) CheckBalance(ctx context.Context) ([]Balance, error) {
	var balances []Balance
	if err := c.do(ctx, http.MethodGet, "/balance", nil, &balances); err != nil {
		return nil, err
	}
	return balances, nil
}

// ResolveAccount performs a NUBAN name enquiry.
func (c *Client) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*ResolvedAccount, error) {
	var resolved ResolvedAccount
	path := fmt.Sprintf("/bank/resolve?account_number=%s&bank_code=%s",
		url.QueryEscape(accountNumber), url.QueryEscape(bankCode))
	if err := c.do(ctx, http.MethodGet, path, nil, &resolved); err != nil {
		return nil, err
	}
	return &resolved, nil
}

// CreateTransferRecipient registers a payout destination and returns its code.
func (c *Client) CreateTransferRecipient(ctx context.Context, name, accountNumber, bankCode string) (string, error) {
	req := RecipientRequest{
		Type:          "nuban",
		Name:          name,
		AccountNumber: accountNumber,
		BankCode:      bankCode,
		Currency:      "NGN",
	}
	var data recipientData
	if err := c.do(ctx, http.MethodPost, "/transferrecipient", req, &data); err != nil {
		return "", err
	}
	return data.RecipientCode, nil
}

// InitiateTransfer starts a payout to a registered recipient.
func (c *Client) InitiateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	if req.Source == "" {
		req.Source = "balance"
	}
	var transfer Transfer
	if err := c.do(ctx, http.MethodPost, "/transfer", req, &transfer); err != nil {
		return nil, err
	}
	return &transfer, nil
}

// ListBanks returns the supported bank list, falling back to the static list
// when the live call fails.
func (c *Client) ListBanks(ctx context.Context) ([]Bank, error) {
	var banks []Bank
	if err := c.do(ctx, http.MethodGet, "/bank?currency=NGN", nil, &banks); err != nil {
		log.Printf("bank list call failed, using static fallback: %v", err)
		return FallbackBanks(), nil
	}
	return banks, nil
}
