package library

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/posematch/posematch/internal/pose"
	"github.com/posematch/posematch/internal/watcher"
)

// Inbox imports recording files reported by a watcher. Imported files are
// moved into doneDir so a restart does not import them twice; files that fail
// to import are left in place.
type Inbox struct {
	service LibraryService
	doneDir string
	logger  *slog.Logger
}

func NewInbox(service LibraryService, doneDir string, logger *slog.Logger) *Inbox {
	return &Inbox{service: service, doneDir: doneDir, logger: logger}
}

// Handle imports newly created files and ignores other events.
func (in *Inbox) Handle(ctx context.Context, path string, event watcher.EventType) {
	if event != watcher.EventCreate {
		return
	}
	if _, err := in.Import(ctx, path); err != nil {
		in.logger.Warn("recording import failed", "path", path, "error", err)
	}
}

func (in *Inbox) Import(ctx context.Context, path string) (*Video, error) {
	rec, err := pose.ReadRecording(path)
	if err != nil {
		return nil, err
	}
	if rec.Label == "" {
		rec.Label = filepath.Base(path)
	}

	video, err := in.service.ImportRecording(ctx, rec)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(in.doneDir, 0755); err != nil {
		return video, err
	}
	if err := os.Rename(path, filepath.Join(in.doneDir, video.ID+".json")); err != nil {
		return video, err
	}

	in.logger.Info("recording imported", "video_id", video.ID, "path", path, "frames", video.FrameCount)
	return video, nil
}
