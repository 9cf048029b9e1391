package api

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/logger"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/metrics"
)

// peekBytes is how much of an untyped body is read to decide it is non-empty
const peekBytes = 64

// HTTPIconProber validates icon candidates with a bounded GET request
type HTTPIconProber struct {
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	logger     logger.Logger
}

// NewHTTPIconProber creates a prober. A zero timeout defaults to 4 seconds.
func NewHTTPIconProber(opts ClientOptions) *HTTPIconProber {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 4 * time.Second
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &HTTPIconProber{
		httpClient: httpClient,
		timeout:    timeout,
		userAgent:  userAgent,
		logger:     logger.OrDefault(opts.Logger),
	}
}

// Probe reports whether url serves image-like content. Every failure,
// including timeouts and non-2xx statuses, is reported as false.
func (p *HTTPIconProber) Probe(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ok := p.probe(ctx, url)
	if ok {
		metrics.IconProbesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	} else {
		metrics.IconProbesTotal.WithLabelValues(metrics.OutcomeError).Inc()
	}
	return ok
}

func (p *HTTPIconProber) probe(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "image/*,*/*;q=0.8")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Debug("Icon probe failed", map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
		return false
	}
	defer resp.Body.Close()

	if !StatusAccepted(resp.StatusCode) {
		p.logger.Debug("Icon probe rejected status", map[string]interface{}{
			"url":    url,
			"status": resp.StatusCode,
		})
		return false
	}

	if ImageContentType(resp.Header.Get("Content-Type")) {
		return true
	}

	// Some favicon endpoints omit the content type; accept any payload
	return BodyNonEmpty(resp.Body)
}

// StatusAccepted is the status gate applied before any content check
func StatusAccepted(status int) bool {
	return status >= 200 && status < 300
}

// ImageContentType reports whether a Content-Type names an image or icon format
func ImageContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "image") || strings.Contains(ct, "svg") || strings.Contains(ct, "icon")
}

// BodyNonEmpty reads a small prefix of body and reports whether it had data
func BodyNonEmpty(body io.Reader) bool {
	buf := make([]byte, peekBytes)
	n, _ := io.ReadFull(body, buf)
	return n > 0
}
