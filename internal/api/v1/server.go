package apiv1

import (
	"github.com/gofiber/fiber/v2"
)

// ServerInterface lists the handlers for the public v1 API.
type ServerInterface interface {
	GetPing(c *fiber.Ctx) error
	PostPaymentMethodSetup(c *fiber.Ctx) error
	PostDefaultPaymentMethod(c *fiber.Ctx) error
	GetPaymentMethods(c *fiber.Ctx) error
	PostSettlement(c *fiber.Ctx) error
	PostSettlementReconcile(c *fiber.Ctx) error
	GetSettlements(c *fiber.Ctx) error
	GetBalance(c *fiber.Ctx) error
	PostPayout(c *fiber.Ctx) error
}

// RegisterHandlers attaches the public routes to the given router group.
// Ping stays unauthenticated; everything else requires the auth middleware
// and admin-only routes additionally take the superadmin guard.
func RegisterHandlers(router fiber.Router, si ServerInterface, auth, superadminOnly fiber.Handler) {
	router.Get("/ping", si.GetPing)

	router.Post("/payment-methods/setup", auth, si.PostPaymentMethodSetup)
	router.Post("/payment-methods/default", auth, si.PostDefaultPaymentMethod)
	router.Get("/payment-methods", auth, si.GetPaymentMethods)

	router.Post("/settlements", auth, si.PostSettlement)
	router.Post("/settlements/reconcile", auth, si.PostSettlementReconcile)
	router.Get("/settlements", auth, si.GetSettlements)

	router.Get("/balance", auth, superadminOnly, si.GetBalance)
	router.Post("/payouts", auth, superadminOnly, si.PostPayout)
}
