package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/classpulse/classpulse-api/internal/config"
	"github.com/classpulse/classpulse-api/internal/utils"
)

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
}

// HealthCheck reports process liveness. It deliberately touches no
// dependencies; broker or database trouble shows up in metrics, not here.
func HealthCheck(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return utils.SendSuccess(c, "service healthy", HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		})
	}
}
