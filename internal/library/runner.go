package library

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/posematch/posematch/internal/notify"
)

const maxNotifyAttempts = 3

// Runner works through queued comparison jobs one at a time.
type Runner struct {
	service      LibraryService
	repo         Repository
	notifier     notify.Notifier
	logger       *slog.Logger
	pollInterval time.Duration
	retryDelay   time.Duration
	wake         chan struct{}
	running      atomic.Bool
	paused       atomic.Bool
	busy         atomic.Bool
	completed    atomic.Int64
}

func NewRunner(service LibraryService, repo Repository, notifier notify.Notifier, pollInterval time.Duration, logger *slog.Logger) *Runner {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Runner{
		service:      service,
		repo:         repo,
		notifier:     notifier,
		logger:       logger,
		pollInterval: pollInterval,
		retryDelay:   time.Second,
		wake:         make(chan struct{}, 1),
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("comparison runner started", "poll_interval", r.pollInterval)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("comparison runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
		case <-r.wake:
		}
		if !r.paused.Load() {
			r.drain(ctx)
		}
	}
}

// Wake asks the runner to look for work now instead of at the next tick.
func (r *Runner) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("comparison runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("comparison runner resumed")
	r.Wake()
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// IsBusy reports whether a job is being processed right now.
func (r *Runner) IsBusy() bool {
	return r.busy.Load()
}

// Completed counts jobs finished since start, successful or not.
func (r *Runner) Completed() int64 {
	return r.completed.Load()
}

func (r *Runner) drain(ctx context.Context) {
	for ctx.Err() == nil && !r.paused.Load() {
		if !r.processNextJob(ctx) {
			return
		}
	}
}

// processNextJob handles the oldest pending job and reports whether one was found.
func (r *Runner) processNextJob(ctx context.Context) bool {
	jobs, err := r.repo.ListPendingJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending jobs", "error", err)
		return false
	}
	if len(jobs) == 0 {
		return false
	}

	job := jobs[0]
	r.busy.Store(true)
	defer r.busy.Store(false)
	defer r.completed.Add(1)

	r.logger.Info("processing job", "job_id", job.ID, "type", job.Type)

	switch job.Type {
	case JobTypeCompare:
		r.processCompareJob(ctx, job)
	default:
		r.logger.Warn("unknown job type", "type", job.Type)
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "unknown job type")
	}
	return true
}

func (r *Runner) processCompareJob(ctx context.Context, job *Job) {
	start := time.Now()
	comparison, err := r.service.ExecuteComparison(ctx, job)
	if comparison == nil {
		r.logger.Error("comparison job failed", "job_id", job.ID, "error", err)
		return
	}

	if err != nil {
		r.logger.Warn("comparison failed", "job_id", job.ID, "comparison_id", comparison.ID, "error", err)
	} else {
		r.logger.Info("comparison completed",
			"job_id", job.ID,
			"comparison_id", comparison.ID,
			"overall_score", comparison.Result.OverallScore,
			"frames", len(comparison.Result.FrameScores),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	r.deliver(ctx, notify.ComparisonEvent{
		ComparisonID:      comparison.ID,
		ReferenceVideoID:  comparison.ReferenceVideoID,
		ComparisonVideoID: comparison.ComparisonVideoID,
		Status:            comparison.Status,
		OverallScore:      comparison.OverallScore,
		Error:             comparison.Error,
	})
}

// deliver sends the event, retrying transient failures with a linear backoff.
func (r *Runner) deliver(ctx context.Context, event notify.ComparisonEvent) {
	if r.notifier == nil {
		return
	}

	for attempt := 1; attempt <= maxNotifyAttempts; attempt++ {
		err := r.notifier.ComparisonFinished(ctx, event)
		if err == nil {
			return
		}
		if !notify.IsRetryable(err) || attempt == maxNotifyAttempts {
			r.logger.Error("comparison notification failed",
				"comparison_id", event.ComparisonID, "attempt", attempt, "error", err)
			return
		}

		r.logger.Warn("comparison notification will be retried",
			"comparison_id", event.ComparisonID, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * r.retryDelay):
		}
	}
}

// ActiveJobCount returns the number of jobs currently marked running.
func (r *Runner) ActiveJobCount(ctx context.Context) int {
	jobs, err := r.repo.ListJobs(ctx, 100)
	if err != nil {
		return 0
	}
	count := 0
	for _, j := range jobs {
		if j.Status == JobStatusRunning {
			count++
		}
	}
	return count
}
