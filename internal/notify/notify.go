// Package notify delivers comparison outcomes to an external webhook.
package notify

import (
	"context"
	"log/slog"
)

// ComparisonEvent is the payload sent when a queued comparison finishes.
type ComparisonEvent struct {
	ComparisonID      string   `json:"comparison_id"`
	ReferenceVideoID  string   `json:"reference_video_id"`
	ComparisonVideoID string   `json:"comparison_video_id"`
	Status            string   `json:"status"`
	OverallScore      *float64 `json:"overall_score,omitempty"`
	Error             string   `json:"error,omitempty"`
}

type Notifier interface {
	ComparisonFinished(ctx context.Context, event ComparisonEvent) error
}

// StubNotifier only logs; it is used when no webhook is configured.
type StubNotifier struct {
	logger *slog.Logger
}

func NewStubNotifier(logger *slog.Logger) *StubNotifier {
	return &StubNotifier{logger: logger}
}

func (n *StubNotifier) ComparisonFinished(ctx context.Context, event ComparisonEvent) error {
	n.logger.Debug("notify stub: comparison finished",
		"comparison_id", event.ComparisonID,
		"status", event.Status,
	)
	return nil
}
