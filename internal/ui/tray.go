package ui

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/getlantern/systray"

	"github.com/posematch/posematch/internal/library"
)

const refreshInterval = 5 * time.Second

type Tray struct {
	service library.LibraryService
	runner  *library.Runner
	logger  *slog.Logger

	statusItem      *systray.MenuItem
	videosItem      *systray.MenuItem
	comparisonsItem *systray.MenuItem
	pauseItem       *systray.MenuItem

	mu sync.Mutex

	onQuit func()
}

type TrayConfig struct {
	Service library.LibraryService
	Runner  *library.Runner
	Logger  *slog.Logger
	OnQuit  func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		service: cfg.Service,
		runner:  cfg.Runner,
		logger:  cfg.Logger,
		onQuit:  cfg.OnQuit,
	}
}

// Run blocks until the tray exits.
func (t *Tray) Run(ctx context.Context) {
	systray.Run(func() { t.onReady(ctx) }, t.onExit)
}

func (t *Tray) onReady(ctx context.Context) {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Posematch")
	systray.SetTooltip("Posematch pose comparison server")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Comparison runner status")
	t.statusItem.Disable()

	t.videosItem = systray.AddMenuItem("Videos: 0", "Recorded videos")
	t.videosItem.Disable()

	t.comparisonsItem = systray.AddMenuItem("Comparisons: 0", "Comparisons finished since start")
	t.comparisonsItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause", "Pause queued comparisons")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Posematch")

	go t.refreshLoop(ctx)

	go func() {
		for {
			select {
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			case <-ctx.Done():
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		t.refresh(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (t *Tray) refresh(ctx context.Context) {
	count, err := t.service.CountVideos(ctx)
	if err != nil {
		t.logger.Warn("tray refresh failed", "error", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.videosItem.SetTitle(videosTitle(count))
	if t.runner == nil {
		return
	}
	t.comparisonsItem.SetTitle(comparisonsTitle(t.runner.Completed()))
	t.statusItem.SetTitle("Status: " + runnerState(t.runner.IsPaused(), t.runner.IsBusy()))
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner == nil {
		return
	}

	if t.runner.IsPaused() {
		t.runner.Resume()
		t.pauseItem.SetTitle("Pause")
	} else {
		t.runner.Pause()
		t.pauseItem.SetTitle("Resume")
	}
	t.statusItem.SetTitle("Status: " + runnerState(t.runner.IsPaused(), t.runner.IsBusy()))
}

func (t *Tray) Quit() {
	systray.Quit()
}

func runnerState(paused, busy bool) string {
	switch {
	case paused:
		return "Paused"
	case busy:
		return "Comparing"
	default:
		return "Idle"
	}
}

func videosTitle(count int) string {
	return "Videos: " + humanize.Comma(int64(count))
}

func comparisonsTitle(count int64) string {
	return "Comparisons: " + humanize.Comma(count)
}
