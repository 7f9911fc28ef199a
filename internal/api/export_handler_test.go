package api

import (
	"encoding/csv"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/posematch/posematch/internal/export"
	"github.com/posematch/posematch/internal/pose/posetest"
	"github.com/posematch/posematch/internal/scoring"
)

func (e *testEnv) completedComparison(t *testing.T, refFrames, cmpFrames int) string {
	t.Helper()
	ref := e.recordVideo(t, refFrames)
	cmp := e.recordVideo(t, cmpFrames)

	comparison, job, err := e.svc.RequestComparison(t.Context(), ref, cmp, "", scoring.DefaultConfig())
	if err != nil {
		t.Fatalf("RequestComparison() error = %v", err)
	}
	if _, err := e.svc.ExecuteComparison(t.Context(), job); err != nil {
		t.Fatalf("ExecuteComparison() error = %v", err)
	}
	return comparison.ID
}

func TestExportComparison_CSV(t *testing.T) {
	env := newTestEnv(t)
	id := env.completedComparison(t, 4, 8)
	outDir := t.TempDir()

	rr := env.do(t, http.MethodPost, "/comparisons/"+id+"/export", export.ExportRequest{Format: "csv", OutputDir: outDir, FileName: "session 1"})
	expectCode(t, rr, http.StatusOK, "")

	body := decodeJSONBody(t, rr)
	wantPath := filepath.Join(outDir, "session_1.csv")
	if body["output_path"] != wantPath || body["pair_count"] != float64(4) {
		t.Fatalf("response = %v", body)
	}

	f, err := os.Open(wantPath)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 5 {
		t.Errorf("records = %d, want header plus 4", len(records))
	}
	if last := records[4]; last[1] != "3" || last[2] != "7" {
		t.Errorf("last row = %v, want frames 3 and 7", last)
	}
}

func TestExportComparison_DefaultDirJSON(t *testing.T) {
	env := newTestEnv(t)
	id := env.completedComparison(t, 3, 3)

	rr := env.do(t, http.MethodPost, "/comparisons/"+id+"/export", export.ExportRequest{Format: "json"})
	expectCode(t, rr, http.StatusOK, "")

	want := filepath.Join(env.cfg.ExportDir, "comparison_"+id+".json")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("export not written to %s: %v", want, err)
	}
}

func TestExportComparison_Errors(t *testing.T) {
	env := newTestEnv(t)
	id := env.completedComparison(t, 3, 3)
	path := "/comparisons/" + id + "/export"

	rr := env.do(t, http.MethodPost, path, export.ExportRequest{Format: "edl"})
	expectCode(t, rr, http.StatusBadRequest, "BAD_REQUEST")

	rr = env.do(t, http.MethodPost, path, export.ExportRequest{OutputDir: "/tmp/../etc"})
	expectCode(t, rr, http.StatusBadRequest, "BAD_REQUEST")

	rr = env.do(t, http.MethodPost, path, export.ExportRequest{OutputDir: filepath.Join(t.TempDir(), "missing")})
	expectCode(t, rr, http.StatusBadRequest, "BAD_REQUEST")

	rr = env.do(t, http.MethodPost, "/comparisons/missing/export", export.ExportRequest{})
	expectCode(t, rr, http.StatusNotFound, "NOT_FOUND")

	ref := env.recordVideo(t, 2)
	pending, _, err := env.svc.RequestComparison(t.Context(), ref, ref, "", scoring.DefaultConfig())
	if err != nil {
		t.Fatalf("RequestComparison() error = %v", err)
	}
	rr = env.do(t, http.MethodPost, "/comparisons/"+pending.ID+"/export", export.ExportRequest{})
	expectCode(t, rr, http.StatusConflict, "CONFLICT")
}

func TestExportComparison_VideoGrewAfterScoring(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	ref := env.recordVideo(t, 10)
	live, err := env.svc.CreateVideo(ctx, "live")
	if err != nil {
		t.Fatalf("CreateVideo() error = %v", err)
	}
	frames := posetest.Sequence(25, 33)
	if _, err := env.svc.AppendFrames(ctx, live.ID, frames[:20]); err != nil {
		t.Fatalf("AppendFrames() error = %v", err)
	}

	comparison, job, err := env.svc.RequestComparison(ctx, ref, live.ID, "", scoring.DefaultConfig())
	if err != nil {
		t.Fatalf("RequestComparison() error = %v", err)
	}
	if _, err := env.svc.ExecuteComparison(ctx, job); err != nil {
		t.Fatalf("ExecuteComparison() error = %v", err)
	}
	path := "/comparisons/" + comparison.ID + "/export"

	rr := env.do(t, http.MethodPost, path, export.ExportRequest{Format: "json"})
	expectCode(t, rr, http.StatusOK, "")

	if _, err := env.svc.AppendFrames(ctx, live.ID, frames[20:]); err != nil {
		t.Fatalf("AppendFrames(more) error = %v", err)
	}
	rr = env.do(t, http.MethodPost, path, export.ExportRequest{Format: "json"})
	expectCode(t, rr, http.StatusConflict, "CONFLICT")
}

func TestExportComparison_RejectsRemoteCallers(t *testing.T) {
	env := newTestEnv(t)
	id := env.completedComparison(t, 2, 2)

	req := newAuthedRequest(http.MethodPost, "/comparisons/"+id+"/export")
	req.RemoteAddr = "10.0.0.8:5555"
	rr := serve(env, req)
	expectCode(t, rr, http.StatusForbidden, "FORBIDDEN")
}
