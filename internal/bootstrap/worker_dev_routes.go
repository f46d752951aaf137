package bootstrap

import (
	"order_worker/adapter/in/http"
	"order_worker/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RegisterDevRoutes mounts the extraction routes under /dev without
// authentication, acting as devUserID.
// WARNING: Only enable in development environment!
func RegisterDevRoutes(app *fiber.App, handler *http.ExtractionHandler, devUserID string) {
	userID, err := uuid.Parse(devUserID)
	if err != nil {
		logger.Error("[DevRoutes] Invalid DEV_USER_ID: %s", devUserID)
		return
	}

	dev := app.Group("/dev")
	dev.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		return c.Next()
	})
	handler.Register(dev)

	logger.Info("Development routes enabled for user: %s", userID)
}
