// internal/httpx/client.go
package httpx

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"energypulse/config"
	"energypulse/logger"
)

// Client executes HTTP requests with a fixed timeout and retries transient
// failures with exponential backoff. Retry configuration is fixed at
// construction.
type Client struct {
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	retryable  map[int]bool
	limiter    *rate.Limiter
	log        *logger.Log
}

// retryAttempt threads the per-request attempt state through the retry loop
// as an immutable value. The id correlates every attempt of one logical
// request in the logs.
type retryAttempt struct {
	id      string
	url     string
	attempt int
	max     int
}

func (a retryAttempt) next() retryAttempt {
	a.attempt++
	return a
}

// NewClient builds a Client from the loaded HTTP configuration.
func NewClient(cfg config.HTTPConfig) *Client {
	retryable := make(map[int]bool, len(cfg.Retry.RetryableStatuses))
	for _, s := range cfg.Retry.RetryableStatuses {
		retryable[s] = true
	}

	var limiter *rate.Limiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		burst := cfg.RateLimit.BurstSize
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), burst)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: userAgentTransport{
				agent: cfg.UserAgent,
				base:  http.DefaultTransport,
			},
		},
		maxRetries: cfg.Retry.MaxRetries,
		baseDelay:  cfg.Retry.BaseDelay,
		retryable:  retryable,
		limiter:    limiter,
		log:        logger.GetLogger(),
	}
}

// Get issues a GET against rawURL with the given query params and headers,
// returning the response body.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values, headers http.Header) ([]byte, error) {
	return c.request(ctx, http.MethodGet, rawURL, params, headers, nil)
}

// Post issues a POST with the given body.
func (c *Client) Post(ctx context.Context, rawURL string, params url.Values, headers http.Header, body []byte) ([]byte, error) {
	return c.request(ctx, http.MethodPost, rawURL, params, headers, body)
}

func (c *Client) request(ctx context.Context, method, rawURL string, params url.Values, headers http.Header, body []byte) ([]byte, error) {
	fullURL := rawURL
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		fullURL = rawURL + sep + params.Encode()
	}

	attempt := retryAttempt{
		id:      uuid.NewString(),
		url:     fullURL,
		attempt: 1,
		max:     c.maxRetries,
	}
	log := c.log.WithComponent("httpx").WithFields(logger.Fields{"request_id": attempt.id, "method": method, "url": rawURL})

	for {
		respBody, retryAfter, err := c.do(ctx, method, fullURL, headers, body, attempt, log)
		if err == nil {
			return respBody, nil
		}
		if !retryAfter {
			return nil, err
		}
		if attempt.attempt > attempt.max {
			return nil, err
		}

		// Delay for retry n is baseDelay * 2^(n-1): 1s, 2s, 4s, ...
		delay := c.baseDelay << (attempt.attempt - 1)
		log.WithFields(logger.Fields{"attempt": attempt.attempt, "max_retries": attempt.max, "delay": delay.String()}).Warn("retrying transient failure")
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, &NetworkError{Cause: err}
		}
		attempt = attempt.next()
	}
}

// do runs a single attempt. The second return value reports whether the
// failure is eligible for another attempt.
func (c *Client) do(ctx context.Context, method, fullURL string, headers http.Header, body []byte, attempt retryAttempt, log *logger.Entry) ([]byte, bool, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, false, &NetworkError{Cause: err}
		}
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = strings.NewReader(string(body))
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, false, &NetworkError{Cause: err}
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// A timeout consumes an attempt like any retryable status; it is
		// not gated by the status set because no status exists.
		if isTimeout(err) {
			if attempt.attempt > attempt.max {
				return nil, false, &TimeoutError{URL: attempt.url}
			}
			return nil, true, &TimeoutError{URL: attempt.url}
		}
		// No response reached us: propagate immediately, no retry.
		return nil, false, &NetworkError{Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, &NetworkError{Cause: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		log.WithFields(logger.Fields{"status": resp.StatusCode, "duration_ms": time.Since(start).Milliseconds()}).Debug("request completed")
		return respBody, false, nil
	}

	httpErr := &HTTPError{Status: resp.StatusCode, Body: string(respBody)}
	return nil, c.retryable[resp.StatusCode], httpErr
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// sleepCtx blocks for d without holding a goroutine past cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
