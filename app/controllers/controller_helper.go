package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/plexora/meterpay/internal/pkg/settlement"
)

var settlementService *settlement.Service

// SetSettlementService wires the settlement core into the controllers.
// Called once at startup before the router is installed.
func SetSettlementService(svc *settlement.Service) {
	settlementService = svc
}

func serviceUnavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Settlement service unavailable"})
}

// GetClientIP returns the client IP and the header it was derived from.
func GetClientIP(c *fiber.Ctx) (string, string) {
	if ip := strings.TrimSpace(c.Get("CF-Connecting-IP")); ip != "" {
		return ip, "CF-Connecting-IP"
	}
	if xff := strings.TrimSpace(c.Get("X-Forwarded-For")); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0]), "X-Forwarded-For"
	}
	return c.IP(), "remote"
}
