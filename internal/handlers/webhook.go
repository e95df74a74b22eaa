package handlers

import (
	"encoding/json"
	"errors"
	"log"

	"kobopay/internal/services/webhook"
	"kobopay/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// WebhookHandler receives provider callbacks. The signature check runs over
// the raw body before anything is parsed.
type WebhookHandler struct {
	service *webhook.Service
	secret  string
}

func NewWebhookHandler(service *webhook.Service, secret string) *WebhookHandler {
	return &WebhookHandler{service: service, secret: secret}
}

// HandlePaystack ingests one provider event. A non-2xx response makes the
// provider redeliver, so only signature and payload problems reject outright;
// resolvable processing failures return 500 to get a retry.
func (h *WebhookHandler) HandlePaystack(c *fiber.Ctx) error {
	body := c.Body()

	if !webhook.VerifySignature(body, c.Get(webhook.SignatureHeader), h.secret) {
		log.Printf("webhook rejected: %v", webhook.ErrSignatureMismatch)
		return utils.Unauthorized(c, "invalid signature")
	}

	var evt webhook.Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return utils.BadRequest(c, "invalid payload")
	}

	if err := h.service.Ingest(c.Context(), evt); err != nil {
		if errors.Is(err, webhook.ErrWalletNotResolved) || errors.Is(err, webhook.ErrTransactionNotResolved) {
			log.Printf("webhook counterparty unresolved: %v", err)
			return utils.NotFound(c, "unknown counterparty")
		}
		log.Printf("webhook processing failed: %v", err)
		return utils.InternalError(c, "processing failed")
	}

	return utils.Success(c, fiber.Map{"status": "ok"})
}
