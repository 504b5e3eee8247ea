package controllers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleBeginPaymentMethodSetup_Unauthorized(t *testing.T) {
	app := fiber.New()
	app.Post("/payment-methods/setup", HandleBeginPaymentMethodSetup)

	req := httptest.NewRequest(http.MethodPost, "/payment-methods/setup", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestHandleSetDefaultPaymentMethod_Unauthorized(t *testing.T) {
	app := fiber.New()
	app.Post("/payment-methods/default", HandleSetDefaultPaymentMethod)

	req := httptest.NewRequest(http.MethodPost, "/payment-methods/default", strings.NewReader(`{"payment_method_id":"pm_1"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestHandleListPaymentMethods_Unauthorized(t *testing.T) {
	app := fiber.New()
	app.Get("/payment-methods", HandleListPaymentMethods)

	req := httptest.NewRequest(http.MethodGet, "/payment-methods", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
