package health

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPProbe returns a Probe that issues a GET against the tier's
// /health endpoint and treats any non-200 response as unhealthy.
// A nil client gets its own 5-second timeout.
func HTTPProbe(client *http.Client, base *url.URL) Probe {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	healthURL := base.ResolveReference(&url.URL{Path: "/health"}).String()

	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
		if err != nil {
			return err
		}

		res, err := client.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		if res.StatusCode != http.StatusOK {
			return fmt.Errorf("health endpoint returned %d", res.StatusCode)
		}
		return nil
	}
}
