package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/posematch/posematch/internal/api"
	"github.com/posematch/posematch/internal/config"
	"github.com/posematch/posematch/internal/db"
	"github.com/posematch/posematch/internal/library"
	"github.com/posematch/posematch/internal/logging"
	"github.com/posematch/posematch/internal/notify"
	"github.com/posematch/posematch/internal/scoring"
	"github.com/posematch/posematch/internal/ui"
	"github.com/posematch/posematch/internal/watcher"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	// A missing .env is normal; the environment alone is enough.
	_ = godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.ExportDir(), 0755); err != nil {
		return fmt.Errorf("failed to create export dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting posematch", "version", config.Version, "data_dir", logging.SanitizePath(cfg.DataDir()))

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := library.NewRepository(database.Conn())

	deviceID, err := ensureDeviceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║  POSEMATCH v%-46s║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	comparator, err := scoring.NewComparator(scoring.Options{
		TimingBlend: cfg.TimingBlend(),
		MaxPairs:    cfg.MaxPairs(),
		MaxDuration: cfg.CompareTimeout(),
		Logger:      logging.WithComponent(logger, "comparator"),
	})
	if err != nil {
		return fmt.Errorf("failed to create comparator: %w", err)
	}

	service := library.NewService(repo, comparator, logger)

	var notifier notify.Notifier
	if cfg.WebhookURL() != "" {
		notifier = notify.NewWebhookClient(cfg.WebhookURL(), cfg.WebhookToken(), logging.WithComponent(logger, "notify"))
		logger.Info("webhook notifications enabled", "url", cfg.WebhookURL())
	} else {
		notifier = notify.NewStubNotifier(logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := library.NewRunner(service, repo, notifier, cfg.RunnerPollInterval(), logging.WithComponent(logger, "runner"))
	go runner.Start(ctx)

	if dir := cfg.InboxDir(); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create inbox dir: %w", err)
		}
		inbox := library.NewInbox(service, filepath.Join(dir, "imported"), logging.WithComponent(logger, "inbox"))
		w := watcher.NewPollingWatcher(cfg.RunnerPollInterval(), logger)
		w.OnChange(func(path string, event watcher.EventType) {
			inbox.Handle(ctx, path, event)
		})
		go func() {
			if err := w.Watch(ctx, dir); err != nil {
				logger.Error("inbox watcher stopped", "error", err)
			}
		}()
	}

	apiServer := api.NewServer(api.ServerConfig{
		Port:        cfg.Port(),
		ExportDir:   cfg.ExportDir(),
		Service:     service,
		Repository:  repo,
		Runner:      runner,
		Logger:      logger,
		StartTime:   startTime,
		DeviceID:    deviceID,
		Version:     config.Version,
		TimingBlend: cfg.TimingBlend(),
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})
	var quitOnce sync.Once
	quit := func() { quitOnce.Do(func() { close(quitCh) }) }

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			quit()
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Service: service,
			Runner:  runner,
			Logger:  logger,
			OnQuit:  quit,
		})
		go tray.Run(ctx)
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureDeviceID(repo library.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "device_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	deviceID := uuid.NewString()
	if err := repo.SetConfig(ctx, "device_id", deviceID); err != nil {
		return "", err
	}
	return deviceID, nil
}

func ensureAuthToken(repo library.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, api.AuthTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}
	return token, nil
}
