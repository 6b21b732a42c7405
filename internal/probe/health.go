package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// healthInterval paces the polling in WaitHealthy. Tests shorten it.
var healthInterval = 2 * time.Second

// WaitHealthy polls each base URL's /health endpoint until it answers 200 or
// the context expires. It is the only retrying surface in this package; the
// probe steps themselves stay attempt-once.
func WaitHealthy(ctx context.Context, urls ...string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	for _, base := range urls {
		endpoint := base + "/health"
		op := func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return backoff.Permanent(err)
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("%s returned %s", endpoint, resp.Status)
			}
			return nil
		}
		notify := func(err error, next time.Duration) {
			slog.Debug("service not ready", "endpoint", endpoint, "error", err, "retry_in", next)
		}
		err := backoff.RetryNotify(op, backoff.WithContext(backoff.NewConstantBackOff(healthInterval), ctx), notify)
		if err != nil {
			return fmt.Errorf("waiting for %s: %w", endpoint, err)
		}
		slog.Info("service healthy", "endpoint", endpoint)
	}
	return nil
}
