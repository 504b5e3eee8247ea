package controllers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexora/meterpay/app/models"
	"github.com/plexora/meterpay/app/repository"
	"github.com/plexora/meterpay/internal/pkg/settlement"
	"github.com/plexora/meterpay/internal/pkg/usercontext"
)

func newAuthedApp(userCtx usercontext.UserContext) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("USER_CONTEXT", userCtx)
		return c.Next()
	})
	return app
}

func TestHandleSettle_Unauthorized(t *testing.T) {
	app := fiber.New()
	app.Post("/settlements", HandleSettle)

	req := httptest.NewRequest(http.MethodPost, "/settlements", strings.NewReader(`{"workspace_id":"ws"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestHandleSettle_MissingWorkspace(t *testing.T) {
	SetSettlementService(settlement.NewService(&repository.Repositories{}, nil, nil))
	t.Cleanup(func() { SetSettlementService(nil) })

	app := newAuthedApp(usercontext.UserContext{UserID: 1, IsLoggedIn: true})
	app.Post("/settlements", HandleSettle)

	req := httptest.NewRequest(http.MethodPost, "/settlements", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandleSettlementHistory_MissingWorkspace(t *testing.T) {
	SetSettlementService(settlement.NewService(&repository.Repositories{}, nil, nil))
	t.Cleanup(func() { SetSettlementService(nil) })

	app := newAuthedApp(usercontext.UserContext{UserID: 1, IsLoggedIn: true})
	app.Get("/settlements", HandleSettlementHistory)

	req := httptest.NewRequest(http.MethodGet, "/settlements", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSettlementResponse(t *testing.T) {
	created := time.Date(2025, 8, 14, 10, 0, 0, 0, time.UTC)
	h := &models.SettlementHistory{
		UUID:        "b0b4...",
		WorkspaceID: "ws",
		AmountCents: 375,
		Rail:        models.SettlementRailOnChain,
		TxHash:      "0xfeed",
		UsageCount:  2,
		Status:      models.SettlementStatusSucceeded,
		CreatedAt:   created,
	}

	out := settlementResponse(h)
	assert.Equal(t, int64(375), out["amount_cents"])
	assert.Equal(t, "0xfeed", out["tx_hash"])
	assert.Nil(t, out["payment_intent_id"], "card fields stay null on the on-chain rail")
	assert.Nil(t, out["card_last4"])
	assert.Equal(t, created.Format(time.RFC3339), out["created_at"])
}

func TestEmptyToNil(t *testing.T) {
	assert.Nil(t, emptyToNil(""))
	assert.Equal(t, "pi_1", emptyToNil("pi_1"))
}
