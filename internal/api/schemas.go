package api

import (
	"time"

	"github.com/posematch/posematch/internal/library"
	"github.com/posematch/posematch/internal/pose"
	"github.com/posematch/posematch/internal/scoring"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State            string       `json:"state"`
	LastError        string       `json:"last_error,omitempty"`
	VideosCount      int          `json:"videos_count"`
	JobsRunning      int          `json:"jobs_running"`
	JobsCompleted    int64        `json:"jobs_completed"`
	ActiveJob        *JobResponse `json:"active_job,omitempty"`
	Started          string       `json:"started"`
	TimingBlend      float64      `json:"timing_blend"`
	RunnerPaused     bool         `json:"runner_paused"`
	AvailablePresets []string     `json:"available_presets"`
}

type PresetsResponse struct {
	Presets map[string]scoring.Config `json:"presets"`
	Default scoring.Config            `json:"default"`
}

type CreateVideoRequest struct {
	Label string `json:"label,omitempty"`
}

type AppendFramesRequest struct {
	Frames []pose.Frame `json:"frames"`
}

type VideoResponse struct {
	ID         string       `json:"id"`
	Label      string       `json:"label,omitempty"`
	StartTime  string       `json:"start_time"`
	EndTime    string       `json:"end_time,omitempty"`
	DurationMs *float64     `json:"duration_ms,omitempty"`
	FrameCount int          `json:"frame_count"`
	Sealed     bool         `json:"sealed"`
	Frames     []pose.Frame `json:"frames,omitempty"`
}

type VideosResponse struct {
	Videos []VideoResponse `json:"videos"`
}

// CompareRequest mirrors the client contract, which is camelCase.
type CompareRequest struct {
	ReferenceVideoID  string          `json:"referenceVideoId"`
	ComparisonVideoID string          `json:"comparisonVideoId"`
	Preset            string          `json:"preset,omitempty"`
	Config            *scoring.Config `json:"config,omitempty"`
}

type ComparisonQueuedResponse struct {
	ComparisonID string `json:"comparison_id"`
	JobID        string `json:"job_id"`
}

type ComparisonResponse struct {
	ID                string          `json:"id"`
	ReferenceVideoID  string          `json:"reference_video_id"`
	ComparisonVideoID string          `json:"comparison_video_id"`
	Preset            string          `json:"preset,omitempty"`
	Config            scoring.Config  `json:"config"`
	Status            string          `json:"status"`
	OverallScore      *float64        `json:"overall_score,omitempty"`
	Result            *scoring.Result `json:"result,omitempty"`
	Error             string          `json:"error,omitempty"`
	CreatedAt         string          `json:"created_at"`
	UpdatedAt         string          `json:"updated_at"`
}

type ComparisonsResponse struct {
	Comparisons []ComparisonResponse `json:"comparisons"`
}

type JobResponse struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	ComparisonID string `json:"comparison_id,omitempty"`
	Progress     int    `json:"progress"`
	Error        string `json:"error,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type RunnerResponse struct {
	Paused bool `json:"paused"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func VideoToResponse(v *library.Video) VideoResponse {
	resp := VideoResponse{
		ID:         v.ID,
		Label:      v.Label,
		StartTime:  v.StartTime.Format(time.RFC3339),
		DurationMs: v.DurationMs,
		FrameCount: v.FrameCount,
		Sealed:     v.Sealed(),
	}
	if v.EndTime != nil {
		resp.EndTime = v.EndTime.Format(time.RFC3339)
	}
	return resp
}

func ComparisonToResponse(c *library.Comparison) ComparisonResponse {
	return ComparisonResponse{
		ID:                c.ID,
		ReferenceVideoID:  c.ReferenceVideoID,
		ComparisonVideoID: c.ComparisonVideoID,
		Preset:            c.Preset,
		Config:            c.Config,
		Status:            c.Status,
		OverallScore:      c.OverallScore,
		Result:            c.Result,
		Error:             c.Error,
		CreatedAt:         c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         c.UpdatedAt.Format(time.RFC3339),
	}
}

func JobToResponse(j *library.Job) JobResponse {
	return JobResponse{
		ID:           j.ID,
		Type:         j.Type,
		Status:       j.Status,
		ComparisonID: j.ComparisonID,
		Progress:     j.Progress,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    j.UpdatedAt.Format(time.RFC3339),
	}
}
