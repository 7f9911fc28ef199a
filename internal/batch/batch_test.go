package batch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/posematch/posematch/internal/pose"
	"github.com/posematch/posematch/internal/pose/posetest"
	"github.com/posematch/posematch/internal/scoring"
)

func writeRecording(t *testing.T, dir, name string, rec pose.Recording) string {
	t.Helper()
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal recording: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write recording: %v", err)
	}
	return path
}

func TestCollectPaths(t *testing.T) {
	dir := t.TempDir()
	ref := writeRecording(t, dir, "ref.json", pose.Recording{Frames: posetest.Sequence(2, 10)})
	writeRecording(t, dir, "b.json", pose.Recording{Frames: posetest.Sequence(2, 10)})
	writeRecording(t, dir, "a.json", pose.Recording{Frames: posetest.Sequence(2, 10)})
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)

	paths, err := CollectPaths(dir, "", ref)
	if err != nil {
		t.Fatalf("CollectPaths() error = %v", err)
	}
	if len(paths) != 2 || filepath.Base(paths[0]) != "a.json" || filepath.Base(paths[1]) != "b.json" {
		t.Errorf("paths = %v", paths)
	}

	single, _ := CollectPaths(dir, "/some/file.json", ref)
	if len(single) != 1 || single[0] != "/some/file.json" {
		t.Errorf("single = %v", single)
	}

	if _, err := CollectPaths(t.TempDir(), "", ref); err == nil {
		t.Error("CollectPaths() should fail for an empty directory")
	}
	if _, err := CollectPaths("", "", ref); err == nil {
		t.Error("CollectPaths() should require a source")
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	ref := posetest.Sequence(10, 33)
	paths := []string{
		writeRecording(t, dir, "same.json", pose.Recording{ID: "same", Frames: posetest.Sequence(10, 33)}),
		writeRecording(t, dir, "slow.json", pose.Recording{Label: "slow take", Frames: posetest.Sequence(20, 33)}),
		writeRecording(t, dir, "empty.json", pose.Recording{Frames: pose.Sequence{}}),
		filepath.Join(dir, "missing.json"),
	}

	comparator, err := scoring.NewComparator(scoring.DefaultOptions())
	if err != nil {
		t.Fatalf("NewComparator() error = %v", err)
	}
	cfg := scoring.DefaultConfig()
	cfg.VisibilityThreshold = 0

	outcomes := Run(context.Background(), comparator, ref, paths, cfg, 2, nil)
	if len(outcomes) != 4 {
		t.Fatalf("outcomes = %d, want 4", len(outcomes))
	}

	same := outcomes[0]
	if same.Result == nil || same.Result.OverallScore < 99.999 {
		t.Errorf("self comparison = %+v", same)
	}
	if outcomes[1].Result == nil || len(outcomes[1].Result.FrameScores) != 10 {
		t.Errorf("slow comparison = %+v", outcomes[1])
	}
	if outcomes[2].Error == "" || outcomes[3].Error == "" {
		t.Errorf("empty and missing recordings should fail: %+v / %+v", outcomes[2], outcomes[3])
	}

	s := Summarize(outcomes)
	if s.Compared != 2 || s.Failed != 2 || s.Frames != 20 {
		t.Errorf("summary = %+v", s)
	}
	if s.Best.DisplayName() != "same" || s.Worst.DisplayName() != "slow take" {
		t.Errorf("best = %q, worst = %q", s.Best.DisplayName(), s.Worst.DisplayName())
	}
	if outcomes[3].DisplayName() != "missing" {
		t.Errorf("DisplayName() = %q", outcomes[3].DisplayName())
	}
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	comparator, _ := scoring.NewComparator(scoring.DefaultOptions())
	outcomes := Run(ctx, comparator, posetest.Sequence(3, 10), []string{"a.json", "b.json"}, scoring.DefaultConfig(), 1, nil)
	for _, o := range outcomes {
		if o.Error == "" {
			t.Errorf("outcome %s should carry an error after cancel", o.Path)
		}
	}
}
