package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	defaultRequestTimeout = 2 * time.Minute
	defaultRetryBase      = 500 * time.Millisecond
	defaultMaxRetries     = 3
	maxErrorBody          = 512
)

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// transport posts JSON to a provider, retrying rate limits and server
// errors with exponential backoff.
type transport struct {
	provider   string
	httpClient *http.Client
	retryBase  time.Duration
	maxRetries uint64
}

func newTransport(provider string) transport {
	return transport{
		provider:   provider,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		retryBase:  defaultRetryBase,
		maxRetries: defaultMaxRetries,
	}
}

func (t transport) postJSON(ctx context.Context, url string, header http.Header, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", t.provider, err)
	}

	b := retry.WithMaxRetries(t.maxRetries, retry.NewExponential(t.retryBase))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := t.once(ctx, url, header, body, out)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.retryable() {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (t transport) once(ctx context.Context, url string, header http.Header, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", t.provider, err)
	}
	for k, vs := range header {
		req.Header[k] = vs
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", t.provider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", t.provider, err)
	}
	if resp.StatusCode != http.StatusOK {
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		return &APIError{Provider: t.provider, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal %s response: %w", t.provider, err)
	}
	return nil
}
