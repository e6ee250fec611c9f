package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultRetryBase  = 200 * time.Millisecond
	defaultMaxRetries = 4
)

// StatusError is a non-2xx answer from the coordinator.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("coordinator returned status %d: %s", e.StatusCode, e.Message)
}

// Is makes a 409 answer match domain.ErrSubmissionRejected.
func (e *StatusError) Is(target error) bool {
	return target == domain.ErrSubmissionRejected && e.StatusCode == http.StatusConflict
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Client talks to the coordinator HTTP API. Transport failures, 5xx and 429
// answers are retried with exponential backoff; anything else is returned.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retryBase  time.Duration
	maxRetries uint64
	logger     *zap.Logger
}

func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		retryBase:  defaultRetryBase,
		maxRetries: defaultMaxRetries,
		logger:     logger,
	}
}

// SetRetry changes the backoff base and the number of retries after the
// first attempt.
func (c *Client) SetRetry(base time.Duration, maxRetries uint64) {
	if base > 0 {
		c.retryBase = base
	}
	c.maxRetries = maxRetries
}

type roundResponse struct {
	Round          int          `json:"round"`
	Stage          domain.Stage `json:"stage"`
	StageStartedAt time.Time    `json:"stage_started_at"`
}

type rewardRequest struct {
	Round   int          `json:"round"`
	Stage   domain.Stage `json:"stage"`
	Reward  int          `json:"reward"`
	NodeKey string       `json:"node_key"`
}

type winnersRequest struct {
	Round   int      `json:"round"`
	Winners []string `json:"winners"`
	NodeKey string   `json:"node_key"`
}

type registerRequest struct {
	NodeKey string `json:"node_key"`
}

// Registration is returned once, when a node key is registered.
type Registration struct {
	ID      string `json:"id"`
	NodeKey string `json:"node_key"`
	APIKey  string `json:"api_key"`
}

type winnersResponse struct {
	Round   int                  `json:"round"`
	Winners []domain.WinnerTally `json:"winners"`
}

func (c *Client) GetRoundAndStage(ctx context.Context) (int, domain.Stage, error) {
	var resp roundResponse
	if err := c.do(ctx, http.MethodGet, "/v1/round", nil, &resp); err != nil {
		return 0, 0, fmt.Errorf("get round: %w", err)
	}
	return resp.Round, resp.Stage, nil
}

func (c *Client) SubmitReward(ctx context.Context, round int, stage domain.Stage, reward int, nodeKey string) error {
	req := rewardRequest{Round: round, Stage: stage, Reward: reward, NodeKey: nodeKey}
	if err := c.do(ctx, http.MethodPost, "/v1/rewards", req, nil); err != nil {
		return fmt.Errorf("submit reward: %w", err)
	}
	return nil
}

func (c *Client) SubmitWinners(ctx context.Context, round int, winners []string, nodeKey string) error {
	req := winnersRequest{Round: round, Winners: winners, NodeKey: nodeKey}
	if err := c.do(ctx, http.MethodPost, "/v1/winners", req, nil); err != nil {
		return fmt.Errorf("submit winners: %w", err)
	}
	return nil
}

// Register creates a peer for nodeKey and returns its API key.
func (c *Client) Register(ctx context.Context, nodeKey string) (*Registration, error) {
	var resp Registration
	if err := c.do(ctx, http.MethodPost, "/v1/peers", registerRequest{NodeKey: nodeKey}, &resp); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &resp, nil
}

// Winners returns the coordinator's vote tally for round.
func (c *Client) Winners(ctx context.Context, round int) ([]domain.WinnerTally, error) {
	var resp winnersResponse
	if err := c.do(ctx, http.MethodGet, "/v1/rounds/"+strconv.Itoa(round)+"/winners", nil, &resp); err != nil {
		return nil, fmt.Errorf("get winners: %w", err)
	}
	return resp.Winners, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	b := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryBase))
	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := c.once(ctx, method, path, body, out)
		if err == nil {
			return nil
		}

		var se *StatusError
		if errors.As(err, &se) && se.StatusCode != http.StatusTooManyRequests && se.StatusCode < 500 {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		c.logger.Debug("coordinator request failed, retrying",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return retry.RetryableError(err)
	})
}

func (c *Client) once(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
