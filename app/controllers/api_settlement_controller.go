package controllers

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/plexora/meterpay/app/models"
	"github.com/plexora/meterpay/internal/pkg/cache"
	"github.com/plexora/meterpay/internal/pkg/chain"
	"github.com/plexora/meterpay/internal/pkg/usercontext"
)

type settleRequest struct {
	WorkspaceID string `json:"workspace_id"`
}

// HandleSettle settles the authenticated user's outstanding usage for one
// workspace. Invocations for the same (user, workspace) pair are serialized
// through a cache lock; a second caller gets 409 instead of a double charge.
func HandleSettle(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}
	if settlementService == nil {
		return serviceUnavailable(c)
	}

	var req settleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	workspaceID := strings.TrimSpace(req.WorkspaceID)
	if workspaceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "workspace_id is required"})
	}

	acquired, err := cache.AcquireSettlementLock(userCtx.UserID, workspaceID)
	if err != nil {
		log.Printf("settlement lock for user %d failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to acquire settlement lock"})
	}
	if !acquired {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Settlement already in progress"})
	}
	defer func() {
		if err := cache.ReleaseSettlementLock(userCtx.UserID, workspaceID); err != nil {
			log.Printf("settlement lock release for user %d failed: %v", userCtx.UserID, err)
		}
	}()

	history, err := settlementService.Settle(c.Context(), userCtx.UserID, workspaceID)
	if err != nil {
		if errors.Is(err, chain.ErrConfirmationTimeout) && history != nil {
			// The transfer was submitted but not yet confirmed. The batch is
			// consumed; report the pending record instead of failing.
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"settlement": settlementResponse(history), "message": "Transfer submitted, confirmation pending"})
		}
		log.Printf("settlement for user %d workspace %s failed: %v", userCtx.UserID, workspaceID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "settlement_failed", "message": "Settlement failed"})
	}
	if history == nil {
		return c.JSON(fiber.Map{"settlement": nil, "message": "Nothing to settle"})
	}

	ip, _ := GetClientIP(c)
	log.Printf("settlement %s for user %d workspace %s via %s (from %s)", history.UUID, userCtx.UserID, workspaceID, history.Rail, ip)
	return c.JSON(fiber.Map{"settlement": settlementResponse(history)})
}

// HandleReconcileSettlements re-checks pending on-chain settlements against
// the network and transitions confirmed ones to succeeded.
func HandleReconcileSettlements(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}
	if settlementService == nil {
		return serviceUnavailable(c)
	}

	var req settleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	workspaceID := strings.TrimSpace(req.WorkspaceID)
	if workspaceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "workspace_id is required"})
	}

	resolved, err := settlementService.ReconcilePending(c.Context(), userCtx.UserID, workspaceID)
	if err != nil {
		log.Printf("reconcile for user %d workspace %s failed: %v", userCtx.UserID, workspaceID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Reconciliation failed"})
	}

	return c.JSON(fiber.Map{"resolved": resolved})
}

// HandleSettlementHistory returns the user's most recent settlements for a
// workspace, newest first.
func HandleSettlementHistory(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}
	if settlementService == nil {
		return serviceUnavailable(c)
	}

	workspaceID := strings.TrimSpace(c.Query("workspace_id"))
	if workspaceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "workspace_id is required"})
	}
	limit := c.QueryInt("limit", 50)

	rows := settlementService.History(c.Context(), userCtx.UserID, workspaceID, limit)
	out := make([]fiber.Map, 0, len(rows))
	for i := range rows {
		out = append(out, settlementResponse(&rows[i]))
	}

	return c.JSON(fiber.Map{"settlements": out})
}

func settlementResponse(h *models.SettlementHistory) fiber.Map {
	return fiber.Map{
		"id":                h.UUID,
		"workspace_id":      h.WorkspaceID,
		"amount_cents":      h.AmountCents,
		"rail":              h.Rail,
		"status":            h.Status,
		"payment_intent_id": emptyToNil(h.StripePaymentIntentID),
		"tx_hash":           emptyToNil(h.TxHash),
		"usage_count":       h.UsageCount,
		"charge_count":      h.ChargeCount,
		"card_last4":        emptyToNil(h.CardLast4),
		"card_brand":        emptyToNil(h.CardBrand),
		"created_at":        h.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func emptyToNil(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
