package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/plexora/meterpay/internal/pkg/settlement"
	"github.com/plexora/meterpay/internal/pkg/usercontext"
)

// HandleBeginPaymentMethodSetup opens a provider-side setup flow for
// attaching a new card and returns its client secret.
func HandleBeginPaymentMethodSetup(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}
	if settlementService == nil {
		return serviceUnavailable(c)
	}

	clientSecret, err := settlementService.BeginAttach(c.Context(), userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_error", "message": "Failed to start payment method setup"})
	}

	return c.JSON(fiber.Map{"client_secret": clientSecret})
}

type setDefaultPaymentMethodRequest struct {
	PaymentMethodID string `json:"payment_method_id"`
}

// HandleSetDefaultPaymentMethod designates a card as the user's default and
// returns the mirrored display snapshot.
func HandleSetDefaultPaymentMethod(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}
	if settlementService == nil {
		return serviceUnavailable(c)
	}

	var req setDefaultPaymentMethodRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	display, err := settlementService.SetDefaultPaymentMethod(c.Context(), userCtx.UserID, req.PaymentMethodID)
	if err != nil {
		if errors.Is(err, settlement.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "payment_method_id is required"})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_error", "message": "Failed to set default payment method"})
	}

	return c.JSON(fiber.Map{"card": display})
}

// HandleListPaymentMethods lists the user's card instruments with the
// current default marked.
func HandleListPaymentMethods(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}
	if settlementService == nil {
		return serviceUnavailable(c)
	}

	methods, err := settlementService.ListPaymentMethods(c.Context(), userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_error", "message": "Failed to list payment methods"})
	}

	return c.JSON(fiber.Map{"payment_methods": methods})
}
