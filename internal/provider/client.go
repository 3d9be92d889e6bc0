// Package provider implements the resilient HTTP client for per-source
// imaging APIs. Each source owns one Client instance, and with it one rate
// limiter and one circuit breaker; failure state is never shared between
// sources.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/resilience"
)

const maxResponseBytes = 64 << 20 // raw image feeds for a busy sol run large

// Client fetches raw unit payloads from one source's provider endpoint,
// applying per-source rate limiting, per-call timeouts, transient-error
// retry with exponential backoff, and a circuit breaker.
type Client struct {
	src     config.SourceConfig
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewClient builds a Client for one source. metrics may be nil.
func NewClient(src config.SourceConfig, m *metrics.Metrics) *Client {
	c := &Client{
		src: src,
		// The per-call timeout lives on the request context, not here: the
		// same transport serves payload and frontier calls.
		http:    &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(src.RequestsPerSec), 1),
		metrics: m,
		logger:  slog.Default().With("component", "provider", "source", src.ID),
	}
	c.breaker = resilience.NewCircuitBreaker(src.ID, resilience.CircuitBreakerConfig{
		FailureThreshold: src.BreakerFailures,
		ResetTimeout:     src.BreakerCooldown,
		IsFailure:        apperrors.IsTransient,
		OnStateChange: func(from, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(src.ID).Set(float64(to))
			}
		},
	})
	c.retry = resilience.RetryConfig{
		MaxRetries: src.RetryAttempts,
		BaseDelay:  src.RetryBaseDelay,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			if m != nil {
				m.FetchRetriesTotal.WithLabelValues(src.ID).Inc()
			}
		},
	}
	return c
}

// Fetch retrieves the raw JSON payload for one unit (sol). Transient
// failures (network, timeout, 429, 5xx) are retried on the configured
// backoff schedule; other 4xx responses are returned immediately as
// permanent errors. An open breaker rejects the call without a network
// attempt and without burning retries.
func (c *Client) Fetch(ctx context.Context, unit int) ([]byte, error) {
	return c.get(ctx, fmt.Sprintf("unit %d", unit), c.unitURL(unit))
}

// LatestUnit queries the provider's live frontier endpoint for the most
// recent unit it knows about. Returns an error when the source has no
// frontier endpoint configured or when the query fails; the scheduler then
// falls back to stored data.
func (c *Client) LatestUnit(ctx context.Context) (int, error) {
	if c.src.FrontierURL == "" {
		return 0, fmt.Errorf("source %s: no frontier endpoint configured", c.src.ID)
	}
	body, err := c.get(ctx, "frontier", c.src.FrontierURL)
	if err != nil {
		return 0, err
	}
	unit, err := parseFrontier(body)
	if err != nil {
		return 0, fmt.Errorf("source %s: %w", c.src.ID, err)
	}
	return unit, nil
}

// BreakerState exposes the breaker's current state for reporting.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.GetState()
}

func (c *Client) get(ctx context.Context, op, url string) ([]byte, error) {
	var body []byte
	shouldRetry := func(err error) bool {
		// An open breaker already decided the dependency is down; waiting
		// out the backoff schedule against it is pointless.
		return apperrors.IsTransient(err) && !errors.Is(err, apperrors.ErrCircuitOpen)
	}
	err := resilience.Retry(ctx, c.src.ID+" "+op, c.retry, shouldRetry, func() error {
		return c.breaker.Execute(func() error {
			var err error
			body, err = c.doRequest(ctx, url)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// doRequest performs a single HTTP attempt with the source's configured
// timeout, mapping failures into the error taxonomy.
func (c *Client) doRequest(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", apperrors.ErrNetwork, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.src.FetchTimeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", apperrors.ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.observe("error", start)
		if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %s after %v", apperrors.ErrTimeout, url, c.src.FetchTimeout)
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		c.observe(fmt.Sprintf("http_%d", resp.StatusCode), start)
		return nil, apperrors.HTTPStatus(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.observe("error", start)
		return nil, fmt.Errorf("%w: reading body: %v", apperrors.ErrNetwork, err)
	}
	c.observe("ok", start)
	return body, nil
}

func (c *Client) observe(result string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.FetchAttemptsTotal.WithLabelValues(c.src.ID, result).Inc()
	c.metrics.FetchDuration.WithLabelValues(c.src.ID).Observe(time.Since(start).Seconds())
}

// unitURL builds the per-unit request URL. A BaseURL containing a %d verb is
// treated as a template; otherwise the unit is appended as a sol query
// parameter.
func (c *Client) unitURL(unit int) string {
	if strings.Contains(c.src.BaseURL, "%d") {
		return fmt.Sprintf(c.src.BaseURL, unit)
	}
	sep := "?"
	if strings.Contains(c.src.BaseURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%ssol=%d", c.src.BaseURL, sep, unit)
}
