package handlers

import (
	"errors"

	"kobopay/internal/models"
	"kobopay/internal/services/funding"
	"kobopay/internal/services/ledger"
	"kobopay/internal/services/withdrawal"
	"kobopay/internal/utils"
	"kobopay/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type WalletHandler struct {
	ledgerService     ledger.Service
	fundingService    *funding.Service
	withdrawalService *withdrawal.Service
}

func NewWalletHandler(ledgerSvc ledger.Service, fundingSvc *funding.Service, withdrawalSvc *withdrawal.Service) *WalletHandler {
	return &WalletHandler{
		ledgerService:     ledgerSvc,
		fundingService:    fundingSvc,
		withdrawalService: withdrawalSvc,
	}
}

// extractUserClaims is a helper function to reduce duplication
func extractUserClaims(c *fiber.Ctx) (*models.UserClaims, error) {
	claims, ok := c.Locals("claims").(*models.UserClaims)
	if !ok || claims == nil {
		return nil, fiber.ErrUnauthorized
	}
	return claims, nil
}

func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	wallet, err := h.ledgerService.GetOrCreateWallet(c.Context(), claims.UserID)
	if err != nil {
		return utils.InternalError(c, "failed to get wallet")
	}

	return utils.Success(c, fiber.Map{
		"wallet": wallet,
	})
}

func (h *WalletHandler) GetTransactions(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	wallet, err := h.ledgerService.GetWallet(c.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
			return utils.Success(c, fiber.Map{"transactions": []models.Transaction{}})
		}
		return utils.InternalError(c, "failed to get wallet")
	}

	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	transactions, err := h.ledgerService.GetTransactionHistory(c.Context(), wallet.ID, limit, offset)
	if err != nil {
		return utils.InternalError(c, "failed to get transactions")
	}

	return utils.Success(c, fiber.Map{
		"transactions": transactions,
		"limit":        limit,
		"offset":       offset,
	})
}

func (h *WalletHandler) FundWallet(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input struct {
		Amount float64 `json:"amount"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	intent, err := h.fundingService.Initiate(c.Context(), claims.UserID, input.Amount)
	if err != nil {
		switch {
		case errors.Is(err, validation.ErrAmountBelowMinimum):
			return utils.BadRequest(c, err.Error())
		case errors.Is(err, funding.ErrUserNotFound):
			return utils.NotFound(c, "user not found")
		case errors.Is(err, funding.ErrNoReceivingAccount):
			return utils.ServiceUnavailable(c, "could not provision a receiving account, try again later")
		default:
			return utils.InternalError(c, err.Error())
		}
	}

	return utils.Success(c, fiber.Map{
		"message":        "Transfer to the account below to fund your wallet",
		"account_number": intent.AccountNumber,
		"account_name":   intent.AccountName,
		"bank":           intent.Bank,
		"reference":      intent.Reference,
		"amount":         intent.Amount,
	})
}

func (h *WalletHandler) GetFundingStatus(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	reference := c.Params("reference")
	if reference == "" {
		return utils.BadRequest(c, "reference is required")
	}

	status, err := h.fundingService.Status(c.Context(), claims.UserID, reference)
	if err != nil {
		if errors.Is(err, funding.ErrTransactionNotFound) {
			return utils.NotFound(c, "transaction not found")
		}
		return utils.InternalError(c, "failed to get funding status")
	}

	return utils.Success(c, fiber.Map{
		"status":  status.Status,
		"balance": status.Balance,
	})
}

func (h *WalletHandler) VerifyAccount(c *fiber.Ctx) error {
	if _, err := extractUserClaims(c); err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input struct {
		BankCode      string `json:"bank_code"`
		AccountNumber string `json:"account_number"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	resolved, err := h.withdrawalService.VerifyAccount(c.Context(), input.AccountNumber, input.BankCode)
	if err != nil {
		switch {
		case errors.Is(err, validation.ErrInvalidAccountNumber), errors.Is(err, validation.ErrInvalidBankCode):
			return utils.BadRequest(c, err.Error())
		case errors.Is(err, withdrawal.ErrAccountResolution):
			return utils.BadRequest(c, "could not resolve account")
		default:
			return utils.InternalError(c, err.Error())
		}
	}

	return utils.Success(c, fiber.Map{
		"account_name":   resolved.AccountName,
		"account_number": resolved.AccountNumber,
	})
}

func (h *WalletHandler) Withdraw(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input withdrawal.WithdrawRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	receipt, err := h.withdrawalService.Withdraw(c.Context(), claims.UserID, input)
	if err != nil {
		switch {
		case errors.Is(err, validation.ErrAmountBelowMinimum),
			errors.Is(err, validation.ErrInvalidAccountNumber),
			errors.Is(err, validation.ErrInvalidBankCode):
			return utils.BadRequest(c, err.Error())
		case errors.Is(err, withdrawal.ErrInsufficientFunds):
			return utils.BadRequest(c, "insufficient balance")
		case errors.Is(err, withdrawal.ErrPinRequired), errors.Is(err, withdrawal.ErrInvalidPin):
			return utils.Unauthorized(c, err.Error())
		case errors.Is(err, withdrawal.ErrAccountResolution):
			return utils.BadRequest(c, "could not resolve account")
		case errors.Is(err, withdrawal.ErrWalletNotFound):
			return utils.NotFound(c, "wallet not found")
		default:
			return utils.InternalError(c, err.Error())
		}
	}

	return utils.Success(c, fiber.Map{
		"message":      "Withdrawal is being processed",
		"reference":    receipt.Reference,
		"amount":       receipt.Amount,
		"status":       receipt.Status,
		"account_name": receipt.AccountName,
		"balance":      receipt.Balance,
	})
}

func (h *WalletHandler) SetPin(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input struct {
		CurrentPin string `json:"current_pin"`
		NewPin     string `json:"new_pin"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	if err := h.withdrawalService.SetPin(c.Context(), claims.UserID, input.CurrentPin, input.NewPin); err != nil {
		switch {
		case errors.Is(err, withdrawal.ErrPinRequired), errors.Is(err, withdrawal.ErrInvalidPin):
			return utils.Unauthorized(c, err.Error())
		default:
			return utils.BadRequest(c, err.Error())
		}
	}

	return utils.Success(c, fiber.Map{"message": "PIN updated"})
}

func (h *WalletHandler) ListBanks(c *fiber.Ctx) error {
	if _, err := extractUserClaims(c); err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	banks, err := h.withdrawalService.ListBanks(c.Context())
	if err != nil {
		return utils.InternalError(c, "failed to list banks")
	}
	return utils.Success(c, fiber.Map{"banks": banks})
}
