package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"
)

// Errors
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrMissingCode  = errors.New("response has no status code")
)

// APIError represents an error from the node service, either an HTTP status
// or a non-zero code in the response envelope.
type APIError struct {
	StatusCode int    // HTTP status
	Code       int    // Envelope code, 0 for HTTP-level failures
	Message    string // Envelope msg or HTTP status text
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("node api error code %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("node api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
// Envelope errors are answers, not failures, and never retry.
func (e *APIError) IsRetryable() bool {
	if e.Code != 0 {
		return false
	}
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Unwrap lets errors.Is(err, ErrUnauthorized) match HTTP 401.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// envelope is the wrapper every endpoint responds with.
type envelope struct {
	Code *int            `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// doRequest performs one HTTP request through the current client context.
func (m *Manager) doRequest(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	client, header := m.snapshot()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header = header

	m.identity.Bandwidth.AddSent(len(body))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	m.identity.Bandwidth.AddReceived(len(respBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       respBody,
		}
	}

	return respBody, nil
}

// doWithRetry performs a request with exponential backoff retry.
func (m *Manager) doWithRetry(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var lastErr error
	backoff := m.retryBackoff

	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)+1))
			m.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"url", url,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		respBody, err := m.doRequest(ctx, method, url, body)
		if err == nil {
			return respBody, nil
		}

		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// call performs a request, unwraps the response envelope and decodes its
// data into out (if non-nil).
func (m *Manager) call(ctx context.Context, method, url string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	respBody, err := m.doWithRetry(ctx, method, url, body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if env.Code == nil {
		return ErrMissingCode
	}
	if *env.Code != 0 {
		msg := env.Msg
		if msg == "" {
			msg = "unknown error"
		}
		return &APIError{
			StatusCode: http.StatusOK,
			Code:       *env.Code,
			Message:    msg,
			Body:       respBody,
		}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("unmarshal data: %w", err)
		}
	}

	return nil
}
