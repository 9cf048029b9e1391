package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/damon-houk/subly-resolution-service/internal/domain/entity"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/logger"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/metrics"
)

// DefaultUserAgent is sent with every outbound request
const DefaultUserAgent = "Subly/1.0 (+https://localhost)"

const maxResponseBytes = 4 << 20

// ClientOptions configures the shared HTTP behaviour of the provider clients
type ClientOptions struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Retries    int
	Backoff    time.Duration
	UserAgent  string
	Logger     logger.Logger
}

// jsonClient performs bounded GET requests that decode JSON bodies
type jsonClient struct {
	httpClient *http.Client
	timeout    time.Duration
	retries    int
	backoff    time.Duration
	userAgent  string
	logger     logger.Logger
}

func newJSONClient(opts ClientOptions, defaultTimeout time.Duration) jsonClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	retries := opts.Retries
	if retries < 0 {
		retries = 0
	}

	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}

	return jsonClient{
		httpClient: httpClient,
		timeout:    timeout,
		retries:    retries,
		backoff:    backoff,
		userAgent:  userAgent,
		logger:     logger.OrDefault(opts.Logger),
	}
}

// getJSON fetches reqURL and decodes the body into out. Transport failures
// and non-200 statuses wrap entity.ErrUnavailable; decode failures wrap
// entity.ErrMalformed.
func (c jsonClient) getJSON(ctx context.Context, provider, reqURL string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	body, err := c.getWithRetry(ctx, provider, reqURL)
	if err == nil {
		if jsonErr := json.Unmarshal(body, out); jsonErr != nil {
			err = fmt.Errorf("%w: %s: %v", entity.ErrMalformed, provider, jsonErr)
		}
	}
	metrics.ObserveProvider(provider, err, time.Since(start).Seconds())

	return err
}

func (c jsonClient) getWithRetry(ctx context.Context, provider, reqURL string) ([]byte, error) {
	var lastErr error
	attempts := c.retries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		body, retryable, err := c.get(ctx, reqURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !retryable || attempt == attempts {
			break
		}

		// Wait with quadratic backoff before retrying
		wait := time.Duration(attempt*attempt) * c.backoff
		c.logger.Warn("Provider request failed, retrying", map[string]interface{}{
			"provider": provider,
			"attempt":  attempt,
			"attempts": attempts,
			"wait_ms":  wait.Milliseconds(),
			"error":    err.Error(),
		})

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", entity.ErrUnavailable, provider, ctx.Err())
		case <-time.After(wait):
		}
	}

	return nil, fmt.Errorf("%w: %s: %v", entity.ErrUnavailable, provider, lastErr)
}

// get performs one request. The boolean reports whether a retry may help.
func (c jsonClient) get(ctx context.Context, reqURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("Error closing response body", map[string]interface{}{
				"error": closeErr.Error(),
			})
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("API returned error status: %d", resp.StatusCode)
	}

	return body, false, nil
}

// parseRateValue accepts JSON numbers and numeric strings
func parseRateValue(value interface{}) (float64, bool) {
	var rate float64
	switch v := value.(type) {
	case float64:
		rate = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		rate = parsed
	default:
		return 0, false
	}
	if rate <= 0 {
		return 0, false
	}
	return rate, true
}
