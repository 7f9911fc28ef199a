package pose_test

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/posematch/posematch/internal/pose"
	"github.com/posematch/posematch/internal/pose/posetest"
)

func TestLandmark_Visible(t *testing.T) {
	l := pose.Landmark{}
	if !l.Visible(1) {
		t.Error("landmark without visibility should count as fully visible")
	}

	l.Visibility = pose.Float(0.4)
	if l.Visible(0.5) {
		t.Error("0.4 should be below a 0.5 threshold")
	}
	if !l.Visible(0.4) {
		t.Error("threshold comparison should be inclusive")
	}
}

func TestFrame_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*pose.Frame)
		wantErr string
	}{
		{name: "valid", mutate: func(*pose.Frame) {}},
		{name: "short skeleton", mutate: func(f *pose.Frame) { f.Landmarks = f.Landmarks[:32] }, wantErr: "expected 33"},
		{name: "nan coordinate", mutate: func(f *pose.Frame) { f.Landmarks[3].X = math.NaN() }, wantErr: "non-finite"},
		{name: "infinite timestamp", mutate: func(f *pose.Frame) { f.Timestamp = math.Inf(1) }, wantErr: "timestamp"},
		{name: "visibility above one", mutate: func(f *pose.Frame) { f.Landmarks[0].Visibility = pose.Float(1.2) }, wantErr: "visibility"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := pose.Frame{Timestamp: 10, Landmarks: posetest.StandingPose()}
			tc.mutate(&f)
			err := f.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestSequence_Duration(t *testing.T) {
	if d := (pose.Sequence{}).Duration(); d != 0 {
		t.Errorf("empty duration = %g, want 0", d)
	}
	if d := posetest.Sequence(1, 40).Duration(); d != 0 {
		t.Errorf("single frame duration = %g, want 0", d)
	}
	if d := posetest.Sequence(4, 40).Duration(); d != 120 {
		t.Errorf("duration = %g, want 120", d)
	}
}

func TestReadRecording(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.json")
	content := `{"id":"r1","frames":[{"timestamp":0,"landmarks":[` + strings.Repeat(`{"x":0.1,"y":0.2,"z":0},`, 32) + `{"x":0.1,"y":0.2,"z":0}]}]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	rec, err := pose.ReadRecording(path)
	if err != nil {
		t.Fatalf("ReadRecording() error = %v", err)
	}
	if rec.ID != "r1" || len(rec.Frames) != 1 || len(rec.Frames[0].Landmarks) != pose.LandmarkCount {
		t.Fatalf("recording = %+v", rec)
	}
}

func TestReadRecording_RejectsBackwardsTime(t *testing.T) {
	lm := strings.TrimSuffix(strings.Repeat(`{"x":0,"y":0,"z":0},`, 33), ",")
	content := `{"frames":[{"timestamp":50,"landmarks":[` + lm + `]},{"timestamp":10,"landmarks":[` + lm + `]}]}`
	path := filepath.Join(t.TempDir(), "rec.json")
	os.WriteFile(path, []byte(content), 0o644)

	if _, err := pose.ReadRecording(path); err == nil {
		t.Fatal("ReadRecording() should reject decreasing timestamps")
	}
}
