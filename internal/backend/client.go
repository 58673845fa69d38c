// Package backend talks to the external merchant store over its JSON action
// envelope: POST {auth_token, action, payload} and read {status, message, data}.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/merchant-intake/internal/resilience"
)

type Options struct {
	URL       string
	AuthToken string
	Timeout   time.Duration
	// RatePerSecond caps outbound calls; 0 disables pacing.
	RatePerSecond float64
	Burst         int

	HTTPClient *http.Client
	Executor   *resilience.Executor
}

type Client struct {
	url      string
	token    string
	http     *http.Client
	limiter  *rate.Limiter
	executor *resilience.Executor
	logger   *slog.Logger
}

type envelope struct {
	AuthToken string `json:"auth_token"`
	Action    string `json:"action"`
	Payload   any    `json:"payload"`
}

type response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(opts.URL) == "" {
		return nil, ErrNotConfigured
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	c := &Client{
		url:      opts.URL,
		token:    opts.AuthToken,
		http:     hc,
		executor: opts.Executor,
		logger:   logger,
	}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return c, nil
}

// Call runs one action and decodes the envelope's data into out (when out is
// non-nil). Idempotent actions are retried on transient failures; others
// only when the backend refused them outright.
func (c *Client) Call(ctx context.Context, action string, payload any, out any) error {
	if c == nil {
		return ErrNotConfigured
	}
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(envelope{AuthToken: c.token, Action: action, Payload: payload})
	if err != nil {
		return fmt.Errorf("backend %s: encode: %w", action, err)
	}

	var data json.RawMessage
	attempt := func(ctx context.Context) error {
		d, err := c.send(ctx, action, body)
		if err != nil {
			return err
		}
		data = d
		return nil
	}

	if c.executor != nil {
		classifier := ClassifyNonIdempotent
		if idempotent[action] {
			classifier = Classify
		}
		err = c.executor.Execute(ctx, action, attempt, classifier)
	} else {
		err = attempt(ctx)
	}
	if err != nil {
		return err
	}

	if out == nil || len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("backend %s: decode data: %w", action, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, action string, body []byte) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	reqID := uuid.New().String()
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("backend %s: build request: %w", action, err)
	}
	// text/plain keeps the scripting host from answering a CORS preflight
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")
	req.Header.Set("X-Request-ID", reqID)

	c.logger.Debug("backend.http.request", "req_id", reqID, "action", action, "content_length", len(body))

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend.http.send_error", "req_id", reqID, "action", action, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("backend.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("backend %s: read body: %w", action, err)
	}

	c.logger.Info("backend.http.response",
		"req_id", reqID,
		"action", action,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return nil, &HTTPStatusError{
			Action:     action,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(raw), 512),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}

	var env response
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("backend %s: decode envelope: %w", action, err)
	}
	if strings.EqualFold(env.Status, "error") {
		return nil, &ActionError{Action: action, Message: env.Message}
	}
	return env.Data, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
