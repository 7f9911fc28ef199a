package library

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/posematch/posematch/internal/pose"
	"github.com/posematch/posematch/internal/pose/posetest"
	"github.com/posematch/posematch/internal/watcher"
)

func TestInbox_Handle(t *testing.T) {
	svc, _ := newTestService(t)
	dir := t.TempDir()
	doneDir := filepath.Join(dir, "imported")
	inbox := NewInbox(svc, doneDir, slog.New(slog.NewTextHandler(io.Discard, nil)))

	data, _ := json.Marshal(pose.Recording{Frames: posetest.Sequence(4, 25)})
	path := filepath.Join(dir, "lunge.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write recording: %v", err)
	}

	inbox.Handle(context.Background(), path, watcher.EventModify)
	if count, _ := svc.CountVideos(context.Background()); count != 0 {
		t.Fatalf("modify events should be ignored, got %d videos", count)
	}

	inbox.Handle(context.Background(), path, watcher.EventCreate)

	videos, _ := svc.ListVideos(context.Background(), 10)
	if len(videos) != 1 || videos[0].Label != "lunge.json" || !videos[0].Sealed() {
		t.Fatalf("videos = %+v", videos)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("imported file should be moved out of the inbox")
	}
	if _, err := os.Stat(filepath.Join(doneDir, videos[0].ID+".json")); err != nil {
		t.Errorf("imported file missing from done dir: %v", err)
	}
}

func TestInbox_ImportInvalidLeavesFile(t *testing.T) {
	svc, _ := newTestService(t)
	dir := t.TempDir()
	inbox := NewInbox(svc, filepath.Join(dir, "imported"), slog.New(slog.NewTextHandler(io.Discard, nil)))

	path := filepath.Join(dir, "broken.json")
	os.WriteFile(path, []byte(`{"frames":[{"timestamp":0,"landmarks":[]}]}`), 0o644)

	if _, err := inbox.Import(context.Background(), path); err == nil {
		t.Fatal("Import() should reject a frame without landmarks")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("failed import should leave the file: %v", err)
	}
}

func TestInbox_ImportUsesCallerContext(t *testing.T) {
	svc, _ := newTestService(t)
	dir := t.TempDir()
	inbox := NewInbox(svc, filepath.Join(dir, "imported"), slog.New(slog.NewTextHandler(io.Discard, nil)))

	data, _ := json.Marshal(pose.Recording{Frames: posetest.Sequence(2, 25)})
	path := filepath.Join(dir, "late.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write recording: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inbox.Handle(ctx, path, watcher.EventCreate)

	if count, _ := svc.CountVideos(context.Background()); count != 0 {
		t.Errorf("CountVideos() = %d, want no import after shutdown", count)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file should stay in the inbox: %v", err)
	}
}
