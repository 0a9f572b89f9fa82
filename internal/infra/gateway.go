package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Gateway payment status values as reported by the provider.
const (
	GatewayApproved = "approved"
	GatewayDeclined = "declined"
	GatewayPending  = "pending"
)

// GatewayStatus is the provider's answer for one payment.
type GatewayStatus struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
}

// GatewayClient queries the external online-payment provider for payment
// status. This core never speaks the gateway protocol itself — the provider
// pushes webhooks, and this client only polls status for payments whose
// webhook never arrived.
type GatewayClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewGatewayClient(baseURL, apiKey string) *GatewayClient {
	return &GatewayClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// CheckStatus fetches the current status of a payment from the provider.
func (c *GatewayClient) CheckStatus(ctx context.Context, paymentID string) (*GatewayStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/payments/%s", c.baseURL, paymentID), nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway: unexpected status %d", resp.StatusCode)
	}

	var status GatewayStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("gateway: decode response: %w", err)
	}
	return &status, nil
}
