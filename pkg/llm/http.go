package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTimeout = 30 * time.Second

// httpBackend is the base implementation for HTTP-based backend adapters. It
// provides connection pooling, bounded retry with exponential backoff, and
// status-code to typed-error mapping. Concrete adapters embed it and build
// their provider-specific request bodies on top of doJSON.
type httpBackend struct {
	name   string
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func newHTTPBackend(name string, cfg Config) *httpBackend {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &httpBackend{
		name: name,
		cfg:  cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		logger: slog.Default().With("component", "llm", "provider", name),
	}
}

// Name returns the provider name.
func (b *httpBackend) Name() string {
	return b.name
}

// doRequest performs an HTTP request with retry logic. Authentication and
// client errors never retry; 429 and 5xx retry within the configured budget,
// honoring Retry-After when the provider supplies one.
func (b *httpBackend) doRequest(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	var lastErr error
	var wait time.Duration

	for attempt := 0; attempt <= b.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if wait < backoff {
				wait = backoff
			}
			b.logger.Debug("retrying request",
				"attempt", attempt,
				"max_retries", b.cfg.MaxRetries,
				"backoff", wait,
			)

			select {
			case <-ctx.Done():
				return nil, &TimeoutError{Provider: b.name, Timeout: b.client.Timeout}
			case <-time.After(wait):
			}
			wait = 0
		}

		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		for key, value := range headers {
			req.Header.Set(key, value)
		}
		if req.Header.Get("Content-Type") == "" && body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := b.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				// Caller deadline or cancellation, never retried.
				return nil, &TimeoutError{Provider: b.name, Timeout: b.client.Timeout}
			}
			lastErr = &ProviderError{Provider: b.name, Message: "request failed", Cause: err}
			b.logger.Warn("request failed, will retry",
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		errorBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, &AuthError{
				Provider: b.name,
				Message:  string(errorBody),
			}

		case http.StatusTooManyRequests:
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			lastErr = &RateLimitError{
				Provider:   b.name,
				RetryAfter: retryAfter,
				Message:    string(errorBody),
			}
			if retryAfter > 0 {
				wait = retryAfter
			}
			b.logger.Warn("rate limited",
				"retry_after", retryAfter,
				"attempt", attempt+1,
			)

		case http.StatusBadRequest:
			return nil, &ProviderError{
				Provider:   b.name,
				StatusCode: resp.StatusCode,
				Message:    string(errorBody),
			}

		default:
			lastErr = &ProviderError{
				Provider:   b.name,
				StatusCode: resp.StatusCode,
				Message:    string(errorBody),
			}
			b.logger.Warn("request returned error status, will retry",
				"status", resp.StatusCode,
				"attempt", attempt+1,
			)
		}
	}

	return nil, lastErr
}

// doJSON performs a JSON request and decodes the response. It covers the
// whole exchange, retries included, with one llm.complete span.
func (b *httpBackend) doJSON(ctx context.Context, method, url string, reqBody, respBody any, headers map[string]string) (err error) {
	ctx, span := otel.Tracer("phylax.llm").Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.String("llm.provider", b.name),
		attribute.String("llm.model", b.cfg.Model),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var bodyBytes []byte
	if reqBody != nil {
		bodyBytes, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	resp, err := b.doRequest(ctx, method, url, bodyBytes, headers)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ParseError{
			Provider: b.name,
			Cause:    fmt.Errorf("failed to read response: %w", err),
		}
	}

	if respBody != nil && len(responseBytes) > 0 {
		if err := json.Unmarshal(responseBytes, respBody); err != nil {
			return &ParseError{
				Provider:    b.name,
				RawResponse: string(responseBytes),
				Cause:       fmt.Errorf("failed to unmarshal response: %w", err),
			}
		}
	}

	return nil
}

// parseRetryAfter parses the Retry-After header value. It supports both
// delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}
