package library

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/posematch/posematch/internal/notify"
	"github.com/posematch/posematch/internal/scoring"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.ComparisonEvent
	calls  int
	err    error
}

func (n *recordingNotifier) ComparisonFinished(ctx context.Context, event notify.ComparisonEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, event)
	return nil
}

func setupRunnerTest(t *testing.T, notifier notify.Notifier) (*Runner, *Service, Repository) {
	t.Helper()
	svc, repo := newTestService(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	runner := NewRunner(svc, repo, notifier, 10*time.Millisecond, logger)
	runner.retryDelay = time.Millisecond
	return runner, svc, repo
}

func TestRunner_ProcessNextJob(t *testing.T) {
	notifier := &recordingNotifier{}
	runner, svc, repo := setupRunnerTest(t, notifier)
	ctx := context.Background()

	video := recordVideo(t, svc, 4, 40)
	comparison, job, err := svc.RequestComparison(ctx, video.ID, video.ID, "", scoring.DefaultConfig())
	if err != nil {
		t.Fatalf("RequestComparison() error = %v", err)
	}

	if !runner.processNextJob(ctx) {
		t.Fatal("processNextJob() found no job")
	}
	if runner.processNextJob(ctx) {
		t.Error("processNextJob() should report an empty queue")
	}
	if runner.Completed() != 1 {
		t.Errorf("Completed() = %d, want 1", runner.Completed())
	}

	storedJob, _ := repo.GetJob(ctx, job.ID)
	if storedJob.Status != JobStatusCompleted {
		t.Errorf("job status = %s, want completed", storedJob.Status)
	}

	if len(notifier.events) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifier.events))
	}
	event := notifier.events[0]
	if event.ComparisonID != comparison.ID || event.Status != JobStatusCompleted || event.OverallScore == nil {
		t.Errorf("event = %+v", event)
	}
}

func TestRunner_NotifiesFailure(t *testing.T) {
	notifier := &recordingNotifier{}
	runner, svc, _ := setupRunnerTest(t, notifier)
	ctx := context.Background()

	ref := recordVideo(t, svc, 3, 40)
	empty, _ := svc.CreateVideo(ctx, "")
	if _, _, err := svc.RequestComparison(ctx, ref.ID, empty.ID, "", scoring.DefaultConfig()); err != nil {
		t.Fatalf("RequestComparison() error = %v", err)
	}

	runner.processNextJob(ctx)

	if len(notifier.events) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifier.events))
	}
	if notifier.events[0].Status != JobStatusFailed || notifier.events[0].Error == "" {
		t.Errorf("event = %+v, want failed with error", notifier.events[0])
	}
}

func TestRunner_DeliverRetries(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCalls int
	}{
		{name: "retryable", err: &notify.WebhookError{StatusCode: 503, Body: "unavailable"}, wantCalls: maxNotifyAttempts},
		{name: "permanent", err: &notify.WebhookError{StatusCode: 400, Body: "bad payload"}, wantCalls: 1},
		{name: "canceled", err: context.Canceled, wantCalls: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			notifier := &recordingNotifier{err: tc.err}
			runner, _, _ := setupRunnerTest(t, notifier)

			runner.deliver(context.Background(), notify.ComparisonEvent{ComparisonID: "c1"})

			if notifier.calls != tc.wantCalls {
				t.Errorf("calls = %d, want %d", notifier.calls, tc.wantCalls)
			}
		})
	}
}

func TestRunner_PauseResume(t *testing.T) {
	runner, svc, repo := setupRunnerTest(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner.Pause()
	if !runner.IsPaused() {
		t.Fatal("IsPaused() = false after Pause")
	}

	video := recordVideo(t, svc, 2, 40)
	_, job, err := svc.RequestComparison(ctx, video.ID, video.ID, "", scoring.DefaultConfig())
	if err != nil {
		t.Fatalf("RequestComparison() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		runner.Start(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if j, _ := repo.GetJob(ctx, job.ID); j.Status != JobStatusPending {
		t.Fatalf("job status while paused = %s, want pending", j.Status)
	}

	runner.Resume()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if j, _ := repo.GetJob(ctx, job.ID); j.Status == JobStatusCompleted {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if j, _ := repo.GetJob(ctx, job.ID); j.Status != JobStatusCompleted {
		t.Errorf("job status after resume = %s, want completed", j.Status)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancel")
	}
	if runner.IsRunning() {
		t.Error("IsRunning() = true after stop")
	}
}

func TestRunner_UnknownJobType(t *testing.T) {
	runner, _, repo := setupRunnerTest(t, nil)
	ctx := context.Background()

	job := &Job{ID: NewID(), Type: "transcode", Status: JobStatusPending, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := repo.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	runner.processNextJob(ctx)

	stored, _ := repo.GetJob(ctx, job.ID)
	if stored.Status != JobStatusFailed {
		t.Errorf("status = %s, want failed", stored.Status)
	}
}
