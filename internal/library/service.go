package library

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/posematch/posematch/internal/pose"
	"github.com/posematch/posematch/internal/scoring"
)

type LibraryService interface {
	CreateVideo(ctx context.Context, label string) (*Video, error)
	AppendFrames(ctx context.Context, videoID string, frames []pose.Frame) (*Video, error)
	SealVideo(ctx context.Context, videoID string) (*Video, error)
	GetVideo(ctx context.Context, id string) (*Video, error)
	ListVideos(ctx context.Context, limit int) ([]*Video, error)
	DeleteVideo(ctx context.Context, id string) error
	CountVideos(ctx context.Context) (int, error)
	GetFrames(ctx context.Context, videoID string) (pose.Sequence, error)
	ImportRecording(ctx context.Context, rec *pose.Recording) (*Video, error)

	Compare(ctx context.Context, referenceID, comparisonID string, cfg scoring.Config) (*scoring.Result, error)
	RequestComparison(ctx context.Context, referenceID, comparisonID, preset string, cfg scoring.Config) (*Comparison, *Job, error)
	ExecuteComparison(ctx context.Context, job *Job) (*Comparison, error)
	GetComparison(ctx context.Context, id string) (*Comparison, error)
	ListComparisons(ctx context.Context, limit int) ([]*Comparison, error)
}

type Service struct {
	repo       Repository
	comparator *scoring.Comparator
	logger     *slog.Logger
}

func NewService(repo Repository, comparator *scoring.Comparator, logger *slog.Logger) *Service {
	return &Service{repo: repo, comparator: comparator, logger: logger}
}

func (s *Service) CreateVideo(ctx context.Context, label string) (*Video, error) {
	now := time.Now()
	video := &Video{
		ID:        NewID(),
		Label:     label,
		StartTime: now,
		CreatedAt: now,
	}
	if err := s.repo.CreateVideo(ctx, video); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("video started", "video_id", video.ID, "label", label)
	}
	return video, nil
}

// AppendFrames validates a batch of streamed frames and stores them in order.
// The whole batch is rejected if any frame is malformed or out of order.
func (s *Service) AppendFrames(ctx context.Context, videoID string, frames []pose.Frame) (*Video, error) {
	for i, f := range frames {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("%w: frame %d: %v", ErrInvalidFrame, i, err)
		}
	}
	return s.repo.AppendFrames(ctx, videoID, frames)
}

func (s *Service) SealVideo(ctx context.Context, videoID string) (*Video, error) {
	video, err := s.repo.SealVideo(ctx, videoID, time.Now())
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("video ended", "video_id", videoID, "frames", video.FrameCount, "duration_ms", *video.DurationMs)
	}
	return video, nil
}

func (s *Service) GetVideo(ctx context.Context, id string) (*Video, error) {
	video, err := s.repo.GetVideo(ctx, id)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, ErrVideoNotFound
	}
	return video, nil
}

func (s *Service) ListVideos(ctx context.Context, limit int) ([]*Video, error) {
	return s.repo.ListVideos(ctx, limit)
}

func (s *Service) DeleteVideo(ctx context.Context, id string) error {
	if _, err := s.GetVideo(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteVideo(ctx, id)
}

func (s *Service) CountVideos(ctx context.Context) (int, error) {
	return s.repo.CountVideos(ctx)
}

func (s *Service) GetFrames(ctx context.Context, videoID string) (pose.Sequence, error) {
	if _, err := s.GetVideo(ctx, videoID); err != nil {
		return nil, err
	}
	return s.repo.GetFrames(ctx, videoID)
}

// importBatchSize bounds the frames written per transaction during import.
const importBatchSize = 500

// ImportRecording stores a complete recording as a new, already ended video.
// A recording that fails part way is deleted again.
func (s *Service) ImportRecording(ctx context.Context, rec *pose.Recording) (*Video, error) {
	video, err := s.CreateVideo(ctx, rec.Label)
	if err != nil {
		return nil, err
	}

	for start := 0; start < len(rec.Frames); start += importBatchSize {
		end := min(start+importBatchSize, len(rec.Frames))
		if _, err := s.AppendFrames(ctx, video.ID, rec.Frames[start:end]); err != nil {
			if derr := s.repo.DeleteVideo(ctx, video.ID); derr != nil {
				s.logCleanup("delete partial import", derr, "video_id", video.ID)
			}
			return nil, fmt.Errorf("import frames %d-%d: %w", start, end-1, err)
		}
	}

	return s.SealVideo(ctx, video.ID)
}

// Compare scores two stored videos using the frames present right now.
func (s *Service) Compare(ctx context.Context, referenceID, comparisonID string, cfg scoring.Config) (*scoring.Result, error) {
	scored, err := s.compareVideos(ctx, referenceID, comparisonID, cfg)
	if err != nil {
		return nil, err
	}
	return scored.result, nil
}

// scoredVideos is a result plus the frame counts it was computed from.
type scoredVideos struct {
	result    *scoring.Result
	refFrames int
	cmpFrames int
}

func (s *Service) compareVideos(ctx context.Context, referenceID, comparisonID string, cfg scoring.Config) (*scoredVideos, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ref, err := s.GetFrames(ctx, referenceID)
	if err != nil {
		return nil, fmt.Errorf("reference video: %w", err)
	}
	cmp, err := s.GetFrames(ctx, comparisonID)
	if err != nil {
		return nil, fmt.Errorf("comparison video: %w", err)
	}

	result, err := s.comparator.Compare(ctx, ref, cmp, cfg)
	if err != nil {
		return nil, err
	}
	return &scoredVideos{result: result, refFrames: len(ref), cmpFrames: len(cmp)}, nil
}

// RequestComparison records a pending comparison and queues a job for the
// runner to compute it.
func (s *Service) RequestComparison(ctx context.Context, referenceID, comparisonID, preset string, cfg scoring.Config) (*Comparison, *Job, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	for _, id := range []string{referenceID, comparisonID} {
		if _, err := s.GetVideo(ctx, id); err != nil {
			return nil, nil, err
		}
	}

	now := time.Now()
	comparison := &Comparison{
		ID:                NewID(),
		ReferenceVideoID:  referenceID,
		ComparisonVideoID: comparisonID,
		Preset:            preset,
		Config:            cfg,
		Status:            JobStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.CreateComparison(ctx, comparison); err != nil {
		return nil, nil, err
	}

	job := &Job{
		ID:           NewID(),
		Type:         JobTypeCompare,
		Status:       JobStatusPending,
		ComparisonID: comparison.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, nil, err
	}

	if s.logger != nil {
		s.logger.Info("comparison queued",
			"comparison_id", comparison.ID,
			"job_id", job.ID,
			"reference_video_id", referenceID,
			"comparison_video_id", comparisonID,
		)
	}
	return comparison, job, nil
}

// ExecuteComparison runs a queued comparison job to completion. A scoring
// failure is recorded on the comparison and the job; the returned error is
// the same failure.
func (s *Service) ExecuteComparison(ctx context.Context, job *Job) (*Comparison, error) {
	comparison, err := s.repo.GetComparison(ctx, job.ComparisonID)
	if err != nil {
		return nil, err
	}
	if comparison == nil {
		if err := s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, ErrComparisonNotFound.Error()); err != nil {
			s.logCleanup("mark job failed", err, "job_id", job.ID)
		}
		return nil, ErrComparisonNotFound
	}

	if err := s.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, ""); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateComparisonStatus(ctx, comparison.ID, JobStatusRunning); err != nil {
		return nil, err
	}

	scored, err := s.compareVideos(ctx, comparison.ReferenceVideoID, comparison.ComparisonVideoID, comparison.Config)
	if err != nil {
		if ferr := s.repo.FailComparison(ctx, comparison.ID, err.Error()); ferr != nil {
			s.logCleanup("mark comparison failed", ferr, "comparison_id", comparison.ID)
		}
		if ferr := s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, err.Error()); ferr != nil {
			s.logCleanup("mark job failed", ferr, "job_id", job.ID)
		}
		comparison.Status = JobStatusFailed
		comparison.Error = err.Error()
		return comparison, err
	}

	result := scored.result
	if err := s.repo.CompleteComparison(ctx, comparison.ID, result, scored.refFrames, scored.cmpFrames); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateJobProgress(ctx, job.ID, 100); err != nil {
		s.logCleanup("update job progress", err, "job_id", job.ID)
	}
	if err := s.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, ""); err != nil {
		return nil, err
	}

	comparison.Status = JobStatusCompleted
	comparison.Result = result
	comparison.OverallScore = &result.OverallScore
	comparison.ReferenceFrames = scored.refFrames
	comparison.ComparisonFrames = scored.cmpFrames
	return comparison, nil
}

// logCleanup reports a failed bookkeeping write that must not mask the
// error already being returned.
func (s *Service) logCleanup(op string, err error, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Error("cleanup failed", append([]any{"op", op, "error", err}, args...)...)
}

func (s *Service) GetComparison(ctx context.Context, id string) (*Comparison, error) {
	comparison, err := s.repo.GetComparison(ctx, id)
	if err != nil {
		return nil, err
	}
	if comparison == nil {
		return nil, ErrComparisonNotFound
	}
	return comparison, nil
}

func (s *Service) ListComparisons(ctx context.Context, limit int) ([]*Comparison, error) {
	return s.repo.ListComparisons(ctx, limit)
}
