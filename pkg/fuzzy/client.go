// Package fuzzy provides a client for the external fuzzy-inference
// service, which scores one measurement's indicator values with three
// independent methods (Mamdani, Sugeno, Tsukamoto).
package fuzzy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the fuzzy-inference service operations.
type Client interface {
	// Classify scores one measurement's indicator values with all three
	// inference methods.
	Classify(ctx context.Context, req Request) (*Classification, error)
}

// Request carries the four indicator values for one measurement. Field
// names match the service's input schema.
type Request struct {
	Rainfall          float64 `json:"curah_hujan"`
	FloodHistory      float64 `json:"history_banjir"`
	PopulationDensity float64 `json:"kepadatan_penduduk"`
	ParkDrainage      float64 `json:"taman_drainase"`
}

// Score is one method's crisp value and label as returned by the service.
// Labels are spelled in the deployment's language (Rendah/Sedang/Tinggi).
type Score struct {
	Crisp float64 `json:"crisp"`
	Label string  `json:"kategori"`
}

// Classification is the parsed response: one score per inference method.
type Classification struct {
	Mamdani   Score `json:"mamdani"`
	Sugeno    Score `json:"sugeno"`
	Tsukamoto Score `json:"tsukamoto"`
}

// UnavailableError reports that the service could not produce a result
// for transient reasons (connection failure, 5xx, rate limit). The
// triggering measurement stays unprocessed and is retried on a later run.
type UnavailableError struct {
	StatusCode int
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fuzzy: service unavailable (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fuzzy: service unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Option configures the fuzzy client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithMaxAttempts overrides the retry attempt count.
func WithMaxAttempts(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackoff overrides the initial retry backoff (for testing).
func WithBackoff(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.backoff = d
		}
	}
}

type httpClient struct {
	baseURL     string
	http        *http.Client
	maxAttempts int
	backoff     time.Duration
}

// NewClient creates a fuzzy-inference service client.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL:     baseURL,
		maxAttempts: 3,
		backoff:     1 * time.Second,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

func (c *httpClient) Classify(ctx context.Context, req Request) (*Classification, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "fuzzy: marshal request")
	}

	url := c.baseURL + "/fuzzy"
	backoff := c.backoff

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, eris.Wrap(err, "fuzzy: create request")
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			lastErr = &UnavailableError{Err: err}
			if attempt < c.maxAttempts {
				if sleepErr := sleepCtx(ctx, backoff); sleepErr != nil {
					return nil, lastErr
				}
				backoff *= 2
				continue
			}
			return nil, lastErr
		}

		var body Classification
		decodeErr := json.NewDecoder(resp.Body).Decode(&body)
		_ = resp.Body.Close()

		switch {
		case retryableStatusCode(resp.StatusCode):
			lastErr = &UnavailableError{StatusCode: resp.StatusCode, Err: eris.Errorf("fuzzy: status %d", resp.StatusCode)}
			if attempt < c.maxAttempts {
				if sleepErr := sleepCtx(ctx, backoff); sleepErr != nil {
					return nil, lastErr
				}
				backoff *= 2
				continue
			}
			return nil, lastErr
		case resp.StatusCode != http.StatusOK:
			return nil, eris.Errorf("fuzzy: unexpected status %d", resp.StatusCode)
		case decodeErr != nil:
			return nil, eris.Wrap(decodeErr, "fuzzy: decode response")
		}

		return &body, nil
	}

	return nil, lastErr
}

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
