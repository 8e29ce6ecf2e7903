// internal/httpx/errors.go
package httpx

import "fmt"

// HTTPError reports a response with a non-2xx status, either non-retryable
// or after retries were exhausted.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: status %d", e.Status)
}

// NetworkError reports a request that produced no response at all. These
// are not retried: only server-indicated transient conditions are.
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// TimeoutError reports an attempt that exceeded the per-request deadline
// after all retries were consumed.
type TimeoutError struct {
	URL string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout fetching %s", e.URL)
}
