package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/plexora/meterpay/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api.stripe.com/v1"

// ErrCustomerNotFound is the one tolerated verification failure during
// identity binding: the stored customer no longer exists in the provider's
// current account context. Every other provider error is propagated.
var ErrCustomerNotFound = errors.New("stripe customer not found")

// APIError is a non-2xx response from the Stripe API.
type APIError struct {
	StatusCode int
	Code       string
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stripe api error: status=%d code=%s type=%s message=%s", e.StatusCode, e.Code, e.Type, e.Message)
}

// Client is a minimal Stripe REST client covering the operations the
// settlement core needs. All amounts are minor units (integer cents).
type Client struct {
	SecretKey  string
	APIBaseURL string

	HTTPClient *http.Client
}

// NewClientFromEnv builds the process-wide Stripe client from configuration.
// Construct once at startup and inject; never re-read env per call.
func NewClientFromEnv() *Client {
	return &Client{
		SecretKey:  strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		APIBaseURL: strings.TrimRight(env.GetEnv("STRIPE_API_BASE_URL", defaultAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Configured reports whether a secret key is present.
func (c *Client) Configured() bool {
	return c.SecretKey != ""
}

type Customer struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	Deleted         bool   `json:"deleted"`
	InvoiceSettings struct {
		DefaultPaymentMethod string `json:"default_payment_method"`
	} `json:"invoice_settings"`
}

type CardDetails struct {
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
}

type PaymentMethod struct {
	ID   string      `json:"id"`
	Type string      `json:"type"`
	Card CardDetails `json:"card"`
}

type SetupIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

type PaymentIntent struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type BalanceAmount struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type Balance struct {
	Available []BalanceAmount `json:"available"`
	Pending   []BalanceAmount `json:"pending"`
}

type Payout struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	ArrivalDate int64  `json:"arrival_date"`
}

// CreateCustomer creates a customer tagged with the internal user id.
func (c *Client) CreateCustomer(ctx context.Context, email string, userID uint) (*Customer, error) {
	form := url.Values{}
	if strings.TrimSpace(email) != "" {
		form.Set("email", strings.TrimSpace(email))
	}
	form.Set("metadata[user_id]", strconv.FormatUint(uint64(userID), 10))

	var out Customer
	if err := c.do(ctx, http.MethodPost, "/customers", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCustomer verifies that a stored customer reference is still live.
// A missing or deleted customer returns ErrCustomerNotFound; any other
// failure is returned as-is.
func (c *Client) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	id := strings.TrimSpace(customerID)
	if id == "" {
		return nil, fmt.Errorf("%w: empty customer id", ErrCustomerNotFound)
	}

	var out Customer
	if err := c.do(ctx, http.MethodGet, "/customers/"+url.PathEscape(id), nil, &out); err != nil {
		if isResourceMissing(err) {
			return nil, fmt.Errorf("%w: %s", ErrCustomerNotFound, id)
		}
		return nil, err
	}
	// Stripe returns 200 with deleted=true for soft-deleted customers.
	if out.Deleted {
		return nil, fmt.Errorf("%w: %s (deleted)", ErrCustomerNotFound, id)
	}
	return &out, nil
}

// CreateSetupIntent opens a provider-side flow for collecting a new card
// out-of-band. The returned client secret completes the flow on the caller
// side; no local state is written until the flow finishes.
func (c *Client) CreateSetupIntent(ctx context.Context, customerID string) (*SetupIntent, error) {
	form := url.Values{}
	form.Set("customer", customerID)
	form.Add("payment_method_types[]", "card")
	form.Set("usage", "off_session")

	var out SetupIntent
	if err := c.do(ctx, http.MethodPost, "/setup_intents", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCardPaymentMethods returns up to limit card instruments for a customer.
func (c *Client) ListCardPaymentMethods(ctx context.Context, customerID string, limit int) ([]PaymentMethod, error) {
	if limit <= 0 {
		limit = 10
	}
	path := fmt.Sprintf("/customers/%s/payment_methods?type=card&limit=%d", url.PathEscape(customerID), limit)

	var out struct {
		Data []PaymentMethod `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		if isResourceMissing(err) {
			return nil, fmt.Errorf("%w: %s", ErrCustomerNotFound, customerID)
		}
		return nil, err
	}
	return out.Data, nil
}

// GetPaymentMethod reads back a payment method's display fields.
func (c *Client) GetPaymentMethod(ctx context.Context, paymentMethodID string) (*PaymentMethod, error) {
	var out PaymentMethod
	if err := c.do(ctx, http.MethodGet, "/payment_methods/"+url.PathEscape(paymentMethodID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AttachPaymentMethod attaches an instrument to a customer.
func (c *Client) AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) (*PaymentMethod, error) {
	form := url.Values{}
	form.Set("customer", customerID)

	var out PaymentMethod
	if err := c.do(ctx, http.MethodPost, "/payment_methods/"+url.PathEscape(paymentMethodID)+"/attach", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetDefaultPaymentMethod designates the customer's default instrument for
// future charges. A single atomic designation on the provider side.
func (c *Client) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	form := url.Values{}
	form.Set("invoice_settings[default_payment_method]", paymentMethodID)

	var out Customer
	return c.do(ctx, http.MethodPost, "/customers/"+url.PathEscape(customerID), form, &out)
}

// ChargeCustomer creates and confirms an off-session payment intent against
// the customer's default payment method. Exactly one charge attempt.
func (c *Client) ChargeCustomer(ctx context.Context, customerID, paymentMethodID string, amountCents int64, currency, description string) (*PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	form.Set("currency", currency)
	form.Set("customer", customerID)
	form.Set("payment_method", paymentMethodID)
	form.Set("off_session", "true")
	form.Set("confirm", "true")
	if description != "" {
		form.Set("description", description)
	}

	var out PaymentIntent
	if err := c.do(ctx, http.MethodPost, "/payment_intents", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBalance fetches the platform's balance. Transient; never stored locally.
func (c *Client) GetBalance(ctx context.Context) (*Balance, error) {
	var out Balance
	if err := c.do(ctx, http.MethodGet, "/balance", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePayout submits one payout of the platform's own balance.
func (c *Client) CreatePayout(ctx context.Context, amountCents int64, currency string) (*Payout, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	form.Set("currency", currency)

	var out Payout
	if err := c.do(ctx, http.MethodPost, "/payouts", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	if !c.Configured() {
		return errors.New("STRIPE_SECRET_KEY is not configured")
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error struct {
				Code    string `json:"code"`
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(raw, &errBody)
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       errBody.Error.Code,
			Type:       errBody.Error.Type,
			Message:    errBody.Error.Message,
		}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// isResourceMissing reports whether an error is Stripe's distinguishable
// "no such resource" response.
func isResourceMissing(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusNotFound && (apiErr.Code == "resource_missing" || apiErr.Code == "")
}
