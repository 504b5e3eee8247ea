package stripe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := &Client{
		SecretKey:  "sk_test_123",
		APIBaseURL: srv.URL,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
	return c, srv
}

func TestGetCustomer_NotFoundIsDistinguishable(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"resource_missing","type":"invalid_request_error","message":"No such customer: 'cus_gone'"}}`))
	}))
	defer srv.Close()

	_, err := c.GetCustomer(context.Background(), "cus_gone")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCustomerNotFound))
}

func TestGetCustomer_DeletedIsNotFound(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"cus_123","deleted":true}`))
	}))
	defer srv.Close()

	_, err := c.GetCustomer(context.Background(), "cus_123")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCustomerNotFound))
}

func TestGetCustomer_OtherErrorsPropagate(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"type":"api_error","message":"boom"}}`))
	}))
	defer srv.Close()

	_, err := c.GetCustomer(context.Background(), "cus_123")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCustomerNotFound))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "boom", apiErr.Message)
}

func TestCreateCustomer_SendsUserMetadata(t *testing.T) {
	var gotForm string
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm.Encode()
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"cus_new"}`))
	}))
	defer srv.Close()

	cust, err := c.CreateCustomer(context.Background(), "u@example.com", 42)
	require.NoError(t, err)
	assert.Equal(t, "cus_new", cust.ID)
	assert.Contains(t, gotForm, "email=u%40example.com")
	assert.Contains(t, gotForm, "metadata%5Buser_id%5D=42")
}

func TestChargeCustomer_FormFields(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "999", r.PostForm.Get("amount"))
		assert.Equal(t, "usd", r.PostForm.Get("currency"))
		assert.Equal(t, "cus_1", r.PostForm.Get("customer"))
		assert.Equal(t, "pm_1", r.PostForm.Get("payment_method"))
		assert.Equal(t, "true", r.PostForm.Get("off_session"))
		assert.Equal(t, "true", r.PostForm.Get("confirm"))
		_, _ = w.Write([]byte(`{"id":"pi_1","status":"succeeded","amount":999,"currency":"usd"}`))
	}))
	defer srv.Close()

	pi, err := c.ChargeCustomer(context.Background(), "cus_1", "pm_1", 999, "usd", "usage settlement")
	require.NoError(t, err)
	assert.Equal(t, "pi_1", pi.ID)
	assert.Equal(t, "succeeded", pi.Status)
}

func TestGetBalance(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"available":[{"amount":3000,"currency":"usd"}],"pending":[{"amount":120,"currency":"usd"}]}`))
	}))
	defer srv.Close()

	b, err := c.GetBalance(context.Background())
	require.NoError(t, err)
	require.Len(t, b.Available, 1)
	assert.Equal(t, int64(3000), b.Available[0].Amount)
	assert.Equal(t, "usd", b.Available[0].Currency)
}

func TestListCardPaymentMethods_MissingCustomer(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"resource_missing","message":"No such customer"}}`))
	}))
	defer srv.Close()

	_, err := c.ListCardPaymentMethods(context.Background(), "cus_gone", 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCustomerNotFound))
}

func TestDo_Unconfigured(t *testing.T) {
	c := &Client{HTTPClient: http.DefaultClient, APIBaseURL: defaultAPIBaseURL}
	_, err := c.GetBalance(context.Background())
	require.Error(t, err)
}
