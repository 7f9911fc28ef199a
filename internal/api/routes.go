package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/posematch/posematch/internal/library"
	"github.com/posematch/posematch/internal/scoring"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())
	r.Use(BodyLimitMiddleware())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Get("/presets", presetsHandler())

		r.Route("/videos", func(r chi.Router) {
			r.Post("/", createVideoHandler(cfg))
			r.Get("/", listVideosHandler(cfg))
			r.Get("/{id}", getVideoHandler(cfg))
			r.Delete("/{id}", deleteVideoHandler(cfg))
			r.Post("/{id}/frames", appendFramesHandler(cfg))
			r.Post("/{id}/end", endVideoHandler(cfg))
		})

		r.Post("/compare", compareHandler(cfg))

		r.Route("/comparisons", func(r chi.Router) {
			r.Post("/", requestComparisonHandler(cfg))
			r.Get("/", listComparisonsHandler(cfg))
			r.Get("/{id}", getComparisonHandler(cfg))
			r.With(LoopbackGuard()).Post("/{id}/export", exportComparisonHandler(cfg))
		})

		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))

		r.Post("/runner/pause", pauseRunnerHandler(cfg))
		r.Post("/runner/resume", resumeRunnerHandler(cfg))
	})

	return r
}

// writeServiceError maps library and scoring errors onto HTTP responses.
func writeServiceError(w http.ResponseWriter, cfg ServerConfig, err error) {
	switch {
	case errors.Is(err, library.ErrVideoNotFound), errors.Is(err, library.ErrComparisonNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, library.ErrVideoSealed), errors.Is(err, library.ErrNonMonotonic):
		WriteError(w, http.StatusConflict, err.Error(), "CONFLICT")
	case errors.Is(err, library.ErrInvalidFrame), errors.Is(err, scoring.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
	case errors.Is(err, scoring.ErrComputeBudgetExceeded):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "BUDGET_EXCEEDED")
	default:
		cfg.Logger.Error("request failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return false
	}
	return true
}

func limitParam(r *http.Request, def int) int {
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 500 {
		return l
	}
	return def
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  cfg.Version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		videosCount, _ := cfg.Service.CountVideos(ctx)
		jobs, _ := cfg.Repository.ListJobs(ctx, 10)

		state := "idle"
		var activeJob *JobResponse
		jobsRunning := 0
		lastError := ""

		for _, j := range jobs {
			if j.Status == library.JobStatusRunning {
				state = "comparing"
				resp := JobToResponse(j)
				activeJob = &resp
				jobsRunning++
			}
			if j.Status == library.JobStatusFailed && lastError == "" {
				lastError = j.Error
			}
		}

		if lastError != "" && state == "idle" {
			state = "error"
		}

		resp := StatusResponse{
			State:       state,
			LastError:   lastError,
			VideosCount: videosCount,
			JobsRunning: jobsRunning,
			ActiveJob:   activeJob,
			Started:     humanize.Time(cfg.StartTime),
			TimingBlend: cfg.TimingBlend,
		}
		for _, p := range scoring.Presets() {
			resp.AvailablePresets = append(resp.AvailablePresets, string(p))
		}

		if cfg.Runner != nil {
			resp.JobsCompleted = cfg.Runner.Completed()
			resp.RunnerPaused = cfg.Runner.IsPaused()
			if resp.RunnerPaused {
				resp.State = "paused"
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func presetsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := PresetsResponse{
			Presets: make(map[string]scoring.Config),
			Default: scoring.DefaultConfig(),
		}
		for _, name := range scoring.Presets() {
			cfg, _ := scoring.PresetConfig(name)
			resp.Presets[string(name)] = cfg
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func createVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateVideoRequest
		if r.ContentLength != 0 && !decodeBody(w, r, &req) {
			return
		}

		video, err := cfg.Service.CreateVideo(r.Context(), req.Label)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusCreated, VideoToResponse(video))
	}
}

func listVideosHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videos, err := cfg.Service.ListVideos(r.Context(), limitParam(r, 50))
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		resp := VideosResponse{Videos: make([]VideoResponse, len(videos))}
		for i, v := range videos {
			resp.Videos[i] = VideoToResponse(v)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		video, err := cfg.Service.GetVideo(r.Context(), id)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		resp := VideoToResponse(video)

		if r.URL.Query().Get("frames") == "true" {
			frames, err := cfg.Service.GetFrames(r.Context(), id)
			if err != nil {
				writeServiceError(w, cfg, err)
				return
			}
			resp.Frames = frames
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func deleteVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Service.DeleteVideo(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func appendFramesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AppendFramesRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if len(req.Frames) == 0 {
			WriteError(w, http.StatusBadRequest, "frames must not be empty", "BAD_REQUEST")
			return
		}

		video, err := cfg.Service.AppendFrames(r.Context(), chi.URLParam(r, "id"), req.Frames)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, VideoToResponse(video))
	}
}

func endVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video, err := cfg.Service.SealVideo(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, VideoToResponse(video))
	}
}

func decodeCompareRequest(w http.ResponseWriter, r *http.Request) (CompareRequest, scoring.Config, bool) {
	var req CompareRequest
	if !decodeBody(w, r, &req) {
		return req, scoring.Config{}, false
	}
	if req.ReferenceVideoID == "" || req.ComparisonVideoID == "" {
		WriteError(w, http.StatusBadRequest, "referenceVideoId and comparisonVideoId are required", "BAD_REQUEST")
		return req, scoring.Config{}, false
	}

	scoringCfg, err := scoring.ResolveConfig(req.Preset, req.Config)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
		return req, scoring.Config{}, false
	}
	return req, scoringCfg, true
}

func compareHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, scoringCfg, ok := decodeCompareRequest(w, r)
		if !ok {
			return
		}

		result, err := cfg.Service.Compare(r.Context(), req.ReferenceVideoID, req.ComparisonVideoID, scoringCfg)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, result)
	}
}

func requestComparisonHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, scoringCfg, ok := decodeCompareRequest(w, r)
		if !ok {
			return
		}

		comparison, job, err := cfg.Service.RequestComparison(r.Context(),
			req.ReferenceVideoID, req.ComparisonVideoID, req.Preset, scoringCfg)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		if cfg.Runner != nil {
			cfg.Runner.Wake()
		}

		WriteJSON(w, http.StatusAccepted, ComparisonQueuedResponse{
			ComparisonID: comparison.ID,
			JobID:        job.ID,
		})
	}
}

func listComparisonsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		comparisons, err := cfg.Service.ListComparisons(r.Context(), limitParam(r, 50))
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		resp := ComparisonsResponse{Comparisons: make([]ComparisonResponse, len(comparisons))}
		for i, c := range comparisons {
			resp.Comparisons[i] = ComparisonToResponse(c)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getComparisonHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		comparison, err := cfg.Service.GetComparison(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, ComparisonToResponse(comparison))
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.Repository.ListJobs(r.Context(), limitParam(r, 50))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		job, err := cfg.Repository.GetJob(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func pauseRunnerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Runner == nil {
			WriteError(w, http.StatusServiceUnavailable, "runner not available", "UNAVAILABLE")
			return
		}
		cfg.Runner.Pause()
		WriteJSON(w, http.StatusOK, RunnerResponse{Paused: true})
	}
}

func resumeRunnerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Runner == nil {
			WriteError(w, http.StatusServiceUnavailable, "runner not available", "UNAVAILABLE")
			return
		}
		cfg.Runner.Resume()
		WriteJSON(w, http.StatusOK, RunnerResponse{Paused: false})
	}
}
