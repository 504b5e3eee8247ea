package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/plexora/meterpay/internal/pkg/chain"
	"github.com/plexora/meterpay/internal/pkg/stripe"
)

var (
	// ErrInvalidInput marks a missing or malformed required field. Rejected
	// before any external call, no partial effects.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoAvailableBalance means the platform balance for the requested
	// currency is zero or absent.
	ErrNoAvailableBalance = errors.New("no available balance")
	// ErrInvalidAmount means the resolved payout amount is not positive.
	ErrInvalidAmount = errors.New("invalid payout amount")
)

// ProviderClient is the payment provider surface the settlement core
// consumes. *stripe.Client satisfies it; tests substitute fakes.
type ProviderClient interface {
	CreateCustomer(ctx context.Context, email string, userID uint) (*stripe.Customer, error)
	GetCustomer(ctx context.Context, customerID string) (*stripe.Customer, error)
	CreateSetupIntent(ctx context.Context, customerID string) (*stripe.SetupIntent, error)
	ListCardPaymentMethods(ctx context.Context, customerID string, limit int) ([]stripe.PaymentMethod, error)
	GetPaymentMethod(ctx context.Context, paymentMethodID string) (*stripe.PaymentMethod, error)
	SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error
	ChargeCustomer(ctx context.Context, customerID, paymentMethodID string, amountCents int64, currency, description string) (*stripe.PaymentIntent, error)
	GetBalance(ctx context.Context) (*stripe.Balance, error)
	CreatePayout(ctx context.Context, amountCents int64, currency string) (*stripe.Payout, error)
}

// SettlementRail executes the on-chain leg of a settlement.
type SettlementRail interface {
	Mode() chain.Mode
	Submit(ctx context.Context, userID uint, items []chain.BatchItem, totalCents int64) (string, []byte, error)
	Confirmed(ctx context.Context, ref string) (bool, error)
}

// PayloadArchiver stores submitted payload bytes for audit. Optional.
type PayloadArchiver interface {
	ArchivePayload(ctx context.Context, historyUUID string, payload []byte) error
}

// CardDisplay is the display snapshot of a card instrument.
type CardDisplay struct {
	Last4 string `json:"last4"`
	Brand string `json:"brand"`
}

// PaymentMethodInfo is one card instrument as listed to the caller.
type PaymentMethodInfo struct {
	ID       string `json:"id"`
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
	Default  bool   `json:"default"`
}

// PayoutInput is a payout request. Amount is a major-unit decimal string;
// empty means "pay out the full available balance".
type PayoutInput struct {
	Amount   string
	Currency string
}

// PayoutRecord is the provider's answer to one payout submission.
type PayoutRecord struct {
	ID          string    `json:"id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	ArrivalDate time.Time `json:"arrival_date"`
}
