package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// WebhookError is a non-2xx response from the webhook endpoint.
type WebhookError struct {
	StatusCode int
	Body       string
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("webhook delivery failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx). Client errors are permanent.
func (e *WebhookError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// IsRetryable classifies a delivery error. Transport failures are retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var werr *WebhookError
	if errors.As(err, &werr) {
		return werr.IsRetryable()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

type WebhookClient struct {
	url        string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewWebhookClient(url, token string, logger *slog.Logger) *WebhookClient {
	return &WebhookClient{
		url:   url,
		token: token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

func (c *WebhookClient) ComparisonFinished(ctx context.Context, event ComparisonEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Posematch-Event", "comparison.finished")
	req.Header.Set("X-Posematch-Delivery", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.logger.Info("webhook delivered",
			"comparison_id", event.ComparisonID,
			"status", event.Status,
			"body_bytes", len(body),
		)
		return nil
	}

	return &WebhookError{StatusCode: resp.StatusCode, Body: string(respBody)}
}
