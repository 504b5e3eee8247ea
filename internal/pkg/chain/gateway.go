package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GatewayClient talks to the chain gateway: submit a signed transaction,
// poll its confirmations. The network is treated as produce-a-hash-then-
// await-confirmations; everything else is the gateway's business.
type GatewayClient struct {
	BaseURL string

	HTTPClient *http.Client
}

// NewGatewayClient creates a gateway client for the given base URL.
func NewGatewayClient(baseURL string) *GatewayClient {
	return &GatewayClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SubmitRequest carries a signed transfer-to-self with auxiliary data.
type SubmitRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Data      string `json:"data"`
	Signature string `json:"signature"`
	PublicKey string `json:"public_key"`
}

type submitResponse struct {
	Hash string `json:"hash"`
}

type transactionStatus struct {
	Hash          string `json:"hash"`
	Confirmations int    `json:"confirmations"`
}

// SubmitTransaction submits the transaction and returns its hash.
func (g *GatewayClient) SubmitTransaction(ctx context.Context, in SubmitRequest) (string, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/v1/transactions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("chain gateway submit failed: status=%d body=%s", resp.StatusCode, string(raw))
	}

	var out submitResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Hash) == "" {
		return "", fmt.Errorf("chain gateway submit returned empty hash")
	}
	return out.Hash, nil
}

// Confirmations returns the current confirmation count for a transaction.
func (g *GatewayClient) Confirmations(ctx context.Context, hash string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"/v1/transactions/"+url.PathEscape(hash), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("chain gateway status failed: status=%d body=%s", resp.StatusCode, string(raw))
	}

	var out transactionStatus
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, err
	}
	return out.Confirmations, nil
}
