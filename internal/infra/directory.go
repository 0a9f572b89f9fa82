package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DirectoryClient resolves operator ids against the employee directory
// service. Read-only: this core only needs display names for openedBy/closedBy
// attribution. Calls go through the circuit breaker so a downed directory
// never stalls session operations.
type DirectoryClient struct {
	baseURL    string
	httpClient *http.Client
	cb         *CircuitBreaker
}

func NewDirectoryClient(baseURL string, cb *CircuitBreaker) *DirectoryClient {
	return &DirectoryClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		cb:         cb,
	}
}

// ResolveName returns the display name for an operator id.
func (c *DirectoryClient) ResolveName(ctx context.Context, operatorID uuid.UUID) (string, error) {
	var name string
	err := c.cb.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s/v1/employees/%s", c.baseURL, operatorID), nil)
		if err != nil {
			return fmt.Errorf("directory: create request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("directory: request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("directory: unexpected status %d", resp.StatusCode)
		}
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("directory: decode response: %w", err)
		}
		name = body.Name
		return nil
	})
	return name, err
}
