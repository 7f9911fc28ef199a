package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"github.com/posematch/posematch/internal/batch"
	"github.com/posematch/posematch/internal/config"
	"github.com/posematch/posematch/internal/logging"
	"github.com/posematch/posematch/internal/pose"
	"github.com/posematch/posematch/internal/scoring"
)

var (
	referencePath  string
	dirPath        string
	comparisonPath string
	preset         string
	logLevel       string
	blend          float64
	workers        int
	maxPairs       int
)

func init() {
	flag.StringVar(&referencePath, "reference", "", "reference recording (JSON)")
	flag.StringVar(&dirPath, "dir", "", "directory of recordings to compare")
	flag.StringVar(&comparisonPath, "comparison", "", "single recording to compare")
	flag.StringVar(&preset, "preset", "", "scoring preset: dance, yoga or sports")
	flag.StringVar(&logLevel, "logLevel", "warn", "set log level")
	flag.Float64Var(&blend, "blend", -1, "timing share of the overall score (default from env)")
	flag.IntVar(&workers, "workers", 0, "concurrent comparisons (default CPU count)")
	flag.IntVar(&maxPairs, "maxPairs", -1, "aligned frame budget per comparison (default from env)")
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	_ = godotenv.Load()

	if referencePath == "" {
		return fmt.Errorf("-reference is required")
	}

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.New(os.Stderr, logLevel)

	opts := scoring.DefaultOptions()
	opts.TimingBlend = cfg.TimingBlend()
	opts.MaxPairs = cfg.MaxPairs()
	opts.MaxDuration = cfg.CompareTimeout()
	opts.Logger = logger
	if blend >= 0 {
		opts.TimingBlend = blend
	}
	if maxPairs >= 0 {
		opts.MaxPairs = maxPairs
	}
	comparator, err := scoring.NewComparator(opts)
	if err != nil {
		return err
	}

	scoringCfg, err := scoring.ResolveConfig(preset, nil)
	if err != nil {
		return err
	}

	ref, err := pose.ReadRecording(referencePath)
	if err != nil {
		return fmt.Errorf("reference: %w", err)
	}

	paths, err := batch.CollectPaths(dirPath, comparisonPath, referencePath)
	if err != nil {
		return err
	}

	logger.Info("comparing recordings",
		"reference", referencePath,
		"reference_frames", len(ref.Frames),
		"targets", len(paths),
		"preset", preset,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bar := batch.NewProgressBar(len(paths), "Compare")
	outcomes := batch.Run(ctx, comparator, ref.Frames, paths, scoringCfg, workers, bar)
	bar.Finish()

	enc := json.NewEncoder(os.Stdout)
	for _, o := range outcomes {
		if err := enc.Encode(o); err != nil {
			return err
		}
		if o.Error != "" {
			logger.Warn("comparison failed", "path", o.Path, "error", o.Error)
		}
	}

	printSummary(batch.Summarize(outcomes))
	return nil
}

func printSummary(s batch.Summary) {
	fmt.Fprintf(os.Stderr, "compared %s recordings (%s aligned frames), %s failed\n",
		humanize.Comma(int64(s.Compared)), humanize.Comma(int64(s.Frames)), humanize.Comma(int64(s.Failed)))
	if s.Best != nil {
		fmt.Fprintf(os.Stderr, "best:  %-30s %6.2f\n", s.Best.DisplayName(), s.Best.Result.OverallScore)
		fmt.Fprintf(os.Stderr, "worst: %-30s %6.2f\n", s.Worst.DisplayName(), s.Worst.Result.OverallScore)
	}
}
