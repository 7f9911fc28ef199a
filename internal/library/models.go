package library

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/posematch/posematch/internal/scoring"
)

var (
	ErrVideoNotFound      = errors.New("video not found")
	ErrVideoSealed        = errors.New("video already ended")
	ErrNonMonotonic       = errors.New("frame timestamps must not decrease")
	ErrInvalidFrame       = errors.New("invalid frame")
	ErrComparisonNotFound = errors.New("comparison not found")
)

// Video is a recorded landmark stream. Frames are stored separately and
// loaded with GetFrames.
type Video struct {
	ID             string     `json:"id"`
	Label          string     `json:"label,omitempty"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	DurationMs     *float64   `json:"duration_ms,omitempty"`
	FrameCount     int        `json:"frame_count"`
	FirstTimestamp *float64   `json:"-"`
	LastTimestamp  *float64   `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Sealed reports whether the stream has ended and no more frames are accepted.
func (v *Video) Sealed() bool {
	return v.EndTime != nil
}

const (
	JobTypeCompare = "compare"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

type Comparison struct {
	ID                string          `json:"id"`
	ReferenceVideoID  string          `json:"reference_video_id"`
	ComparisonVideoID string          `json:"comparison_video_id"`
	Preset            string          `json:"preset,omitempty"`
	Config            scoring.Config  `json:"config"`
	Status            string          `json:"status"`
	OverallScore      *float64        `json:"overall_score,omitempty"`
	Result            *scoring.Result `json:"result,omitempty"`
	ReferenceFrames   int             `json:"reference_frames,omitempty"`
	ComparisonFrames  int             `json:"comparison_frames,omitempty"`
	Error             string          `json:"error,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type Job struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	ComparisonID string    `json:"comparison_id,omitempty"`
	Progress     int       `json:"progress"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewID() string {
	return uuid.NewString()
}
