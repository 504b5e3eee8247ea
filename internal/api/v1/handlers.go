package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/plexora/meterpay/app/controllers"
)

// Pong is the ping response body.
type Pong struct {
	Ping string `json:"ping"`
}

// APIServer implements the ServerInterface
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// PostPaymentMethodSetup opens a provider-side setup flow for attaching a
// card. Security is enforced via API key middleware attached in the router.
func (s *APIServer) PostPaymentMethodSetup(c *fiber.Ctx) error {
	return controllers.HandleBeginPaymentMethodSetup(c)
}

// PostDefaultPaymentMethod designates a card as the user's default.
func (s *APIServer) PostDefaultPaymentMethod(c *fiber.Ctx) error {
	return controllers.HandleSetDefaultPaymentMethod(c)
}

// GetPaymentMethods lists the user's card instruments.
func (s *APIServer) GetPaymentMethods(c *fiber.Ctx) error {
	return controllers.HandleListPaymentMethods(c)
}

// PostSettlement settles the user's outstanding usage for a workspace.
func (s *APIServer) PostSettlement(c *fiber.Ctx) error {
	return controllers.HandleSettle(c)
}

// PostSettlementReconcile resolves pending on-chain settlements.
func (s *APIServer) PostSettlementReconcile(c *fiber.Ctx) error {
	return controllers.HandleReconcileSettlements(c)
}

// GetSettlements returns the user's settlement history for a workspace.
func (s *APIServer) GetSettlements(c *fiber.Ctx) error {
	return controllers.HandleSettlementHistory(c)
}

// GetBalance reports the provider balance (superadmin only).
func (s *APIServer) GetBalance(c *fiber.Ctx) error {
	return controllers.HandleBalance(c)
}

// PostPayout pays out the platform balance (superadmin only).
func (s *APIServer) PostPayout(c *fiber.Ctx) error {
	return controllers.HandlePayout(c)
}
