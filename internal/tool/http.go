// Package tool holds the side-effecting helpers agents use during their
// testing phases: checking external URLs and verifying generated code.
package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/autodev/internal/errors"
	"github.com/p-blackswan/autodev/internal/retry"
)

// URLChecker checks external URLs with a GET request.
type URLChecker struct {
	client *http.Client
	retry  retry.Config
	logger zerolog.Logger
}

// URLCheckerOption configures a URLChecker.
type URLCheckerOption func(*URLChecker)

// WithCheckRetry replaces the backoff used between check attempts.
func WithCheckRetry(cfg retry.Config) URLCheckerOption {
	return func(c *URLChecker) { c.retry = cfg }
}

// NewURLChecker creates a URLChecker. timeout is per request (0 = 10s default).
// Checks back off with retry.DefaultConfig unless overridden.
func NewURLChecker(timeout time.Duration, logger zerolog.Logger, opts ...URLCheckerOption) *URLChecker {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	c := &URLChecker{
		client: &http.Client{Timeout: timeout},
		retry:  retry.DefaultConfig(),
		logger: logger.With().Str("component", "urlcheck").Logger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Status performs a GET on url and returns the response status code.
// Network failures, 429 and 5xx answers are retried; after the last attempt
// a 5xx status is returned as is, a network failure as an error.
func (c *URLChecker) Status(ctx context.Context, url string) (int, error) {
	if _, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil); err != nil {
		return 0, fmt.Errorf("urlcheck: create request: %w", err)
	}

	cfg := c.retry
	cfg.OnRetry = func(attempt int, err error) {
		c.logger.Debug().Err(err).Str("url", url).Int("attempt", attempt).Msg("retrying url check")
	}

	var status int
	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
		status = 0
		code, err := c.get(ctx, url)
		if err != nil {
			return fmt.Errorf("urlcheck: %s: %w: %w", url, perrors.ErrUnavailable, err)
		}
		status = code
		if code == http.StatusTooManyRequests || code >= 500 {
			return fmt.Errorf("urlcheck: %s: %w: status %d", url, perrors.ErrUnavailable, code)
		}
		return nil
	})
	if status != 0 {
		return status, nil
	}
	return 0, err
}

func (c *URLChecker) get(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	c.logger.Debug().Str("url", url).Msg("checking url")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	return resp.StatusCode, nil
}
