package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Auth probes the auth subsystem's health endpoint over HTTP
type Auth struct {
	client *http.Client
	url    string
}

// NewAuth creates an auth probe against the given health URL
func NewAuth(url string) *Auth {
	return &Auth{
		// Per-probe timeouts come from the monitor's context
		client: &http.Client{},
		url:    url,
	}
}

func (a *Auth) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return fmt.Errorf("failed to build auth probe request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("auth probe failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("auth probe returned status %d", resp.StatusCode)
	}

	return nil
}
