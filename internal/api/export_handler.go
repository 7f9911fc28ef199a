package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/posematch/posematch/internal/export"
	"github.com/posematch/posematch/internal/library"
)

// exportComparisonHandler writes a completed comparison to disk as CSV or
// JSON. Without output_dir the server's export directory is used.
func exportComparisonHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.ExportRequest
		if r.ContentLength != 0 && !decodeBody(w, r, &req) {
			return
		}

		format, err := export.ParseFormat(req.Format)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		outputDir := req.OutputDir
		if outputDir == "" {
			outputDir = cfg.ExportDir
		}
		if err := export.ValidateOutputDir(outputDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		ctx := r.Context()
		comparison, err := cfg.Service.GetComparison(ctx, chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		if comparison.Status != library.JobStatusCompleted || comparison.Result == nil {
			WriteError(w, http.StatusConflict, "comparison is "+comparison.Status, "CONFLICT")
			return
		}

		ref, err := cfg.Service.GetFrames(ctx, comparison.ReferenceVideoID)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		cmp, err := cfg.Service.GetFrames(ctx, comparison.ComparisonVideoID)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		rows, err := export.Rows(ref, cmp, comparison.ReferenceFrames, comparison.ComparisonFrames, comparison.Result)
		if err != nil {
			WriteError(w, http.StatusConflict, err.Error(), "CONFLICT")
			return
		}

		outputPath, err := export.WriteFile(outputDir, req.FileName, format, export.Document{
			ComparisonID:      comparison.ID,
			ReferenceVideoID:  comparison.ReferenceVideoID,
			ComparisonVideoID: comparison.ComparisonVideoID,
			Preset:            comparison.Preset,
			Config:            comparison.Config,
			Result:            comparison.Result,
			Pairs:             rows,
		})
		if err != nil {
			cfg.Logger.Error("export failed", "comparison_id", comparison.ID, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to write export file", "INTERNAL_ERROR")
			return
		}

		cfg.Logger.Info("comparison exported", "comparison_id", comparison.ID, "path", outputPath, "format", format)
		WriteJSON(w, http.StatusOK, export.ExportResponse{
			Status:     "ok",
			Format:     string(format),
			OutputPath: outputPath,
			PairCount:  len(rows),
		})
	}
}
