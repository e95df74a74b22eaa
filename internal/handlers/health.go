package handlers

import (
	"kobopay/internal/repositories/cache"
	"kobopay/internal/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// HealthHandler reports readiness of the backing stores.
type HealthHandler struct {
	db    *gorm.DB
	cache *cache.WalletCache
}

func NewHealthHandler(db *gorm.DB, walletCache *cache.WalletCache) *HealthHandler {
	return &HealthHandler{db: db, cache: walletCache}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := fiber.Map{"status": "ok"}

	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.Ping() != nil {
		status["status"] = "degraded"
		status["database"] = "unreachable"
	} else {
		status["database"] = "ok"
	}

	if h.cache != nil {
		if err := h.cache.HealthCheck(c.Context()); err != nil {
			status["status"] = "degraded"
			status["cache"] = "unreachable"
		} else {
			status["cache"] = "ok"
		}
	}

	if status["status"] != "ok" {
		return utils.Respond(c, fiber.StatusServiceUnavailable, status)
	}
	return utils.Success(c, status)
}
