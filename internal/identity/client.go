package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/confhub/confhub/internal/domain"
	"github.com/confhub/confhub/internal/metrics"
)

// HTTPClient is the JSON-over-HTTP identity client. All calls share one
// bounded timeout; the config store never waits on identity indefinitely.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// Ensure HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates an identity client for the given endpoint.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// CheckWorkspace confirms the workspace exists under the domain.
func (c *HTTPClient) CheckWorkspace(ctx context.Context, workspaceID, domainID string) error {
	req := map[string]string{"workspace_id": workspaceID, "domain_id": domainID}
	err := c.post(ctx, "/workspace/check", req, nil)
	if errors.Is(err, domain.ErrNotFound) {
		err = fmt.Errorf("%w: workspace %s not found in domain %s",
			domain.ErrInvalidScope, workspaceID, domainID)
	}
	metrics.IdentityCalls.WithLabelValues("workspace_check", outcome(err)).Inc()
	return err
}

// GetProject fetches a project within a domain.
func (c *HTTPClient) GetProject(ctx context.Context, projectID, domainID string) (*Project, error) {
	req := map[string]string{"project_id": projectID, "domain_id": domainID}
	var project Project
	err := c.post(ctx, "/project/get", req, &project)
	metrics.IdentityCalls.WithLabelValues("project_get", outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "invalid_scope"
	}
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: identity service: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decoding identity response: %v", domain.ErrUnavailable, err)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: identity service returned %d", domain.ErrUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("%w: identity service returned %d", domain.ErrInvalidScope, resp.StatusCode)
	}
}
