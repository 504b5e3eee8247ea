package controllers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/plexora/meterpay/internal/pkg/settlement"
	"github.com/plexora/meterpay/internal/pkg/usercontext"
)

type payoutRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// HandlePayout moves the platform's available balance to its external
// account. Superadmin only; routing enforces that before this handler runs.
func HandlePayout(c *fiber.Ctx) error {
	if settlementService == nil {
		return serviceUnavailable(c)
	}

	var req payoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	record, err := settlementService.Payout(c.Context(), settlement.PayoutInput{Amount: req.Amount, Currency: req.Currency})
	if err != nil {
		switch {
		case errors.Is(err, settlement.ErrInvalidInput), errors.Is(err, settlement.ErrInvalidAmount):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid payout amount"})
		case errors.Is(err, settlement.ErrNoAvailableBalance):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "no_available_balance", "message": "No available balance to pay out"})
		}
		log.Printf("payout by user %d failed: %v", usercontext.GetUserID(c), err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_error", "message": "Payout failed"})
	}

	return c.JSON(fiber.Map{"payout": fiber.Map{
		"id":           record.ID,
		"amount_cents": record.AmountCents,
		"currency":     record.Currency,
		"status":       record.Status,
		"arrival_date": record.ArrivalDate.Format(time.RFC3339),
	}})
}

// HandleBalance reports the provider balance. Superadmin only.
func HandleBalance(c *fiber.Ctx) error {
	if settlementService == nil {
		return serviceUnavailable(c)
	}

	balance, err := settlementService.Balance(c.Context())
	if err != nil {
		log.Printf("balance read failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_error", "message": "Failed to read balance"})
	}

	available := make([]fiber.Map, 0, len(balance.Available))
	for _, b := range balance.Available {
		available = append(available, fiber.Map{"amount_cents": b.Amount, "currency": b.Currency})
	}
	pending := make([]fiber.Map, 0, len(balance.Pending))
	for _, b := range balance.Pending {
		pending = append(pending, fiber.Map{"amount_cents": b.Amount, "currency": b.Currency})
	}

	return c.JSON(fiber.Map{"available": available, "pending": pending})
}
