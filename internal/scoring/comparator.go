package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/posematch/posematch/internal/pose"
)

const cancelCheckInterval = 256

// Options bound the comparator. Zero MaxPairs or MaxDuration means no limit.
type Options struct {
	TimingBlend float64
	MaxPairs    int
	MaxDuration time.Duration
	Logger      *slog.Logger
}

// Comparator scores pose sequences. It holds no per-call state and is safe
// for concurrent use.
type Comparator struct {
	timingBlend float64
	maxPairs    int
	maxDuration time.Duration
	logger      *slog.Logger
}

func DefaultOptions() Options {
	return Options{TimingBlend: DefaultTimingBlend}
}

func NewComparator(opts Options) (*Comparator, error) {
	blend := opts.TimingBlend
	if blend < 0 || blend > 1 {
		return nil, fmt.Errorf("timing blend %g outside [0,1]", blend)
	}
	if opts.MaxPairs < 0 {
		return nil, fmt.Errorf("max pairs must not be negative")
	}
	return &Comparator{
		timingBlend: blend,
		maxPairs:    opts.MaxPairs,
		maxDuration: opts.MaxDuration,
		logger:      opts.Logger,
	}, nil
}

// Compare scores cmp against ref. It returns either a complete Result or an
// error; ErrInvalidInput and ErrComputeBudgetExceeded are checked before any
// frame is scored.
func (c *Comparator) Compare(ctx context.Context, ref, cmp pose.Sequence, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(ref) == 0 || len(cmp) == 0 {
		return nil, fmt.Errorf("%w: sequences must not be empty (reference %d frames, comparison %d frames)",
			ErrInvalidInput, len(ref), len(cmp))
	}

	pairs := Align(len(ref), len(cmp))
	if c.maxPairs > 0 && len(pairs) > c.maxPairs {
		return nil, fmt.Errorf("%w: %d aligned frames exceeds limit of %d", ErrComputeBudgetExceeded, len(pairs), c.maxPairs)
	}

	start := time.Now()
	scores := make([]FrameScore, len(pairs))
	for i, p := range pairs {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if c.maxDuration > 0 && time.Since(start) > c.maxDuration {
				return nil, fmt.Errorf("%w: scoring exceeded %s after %d of %d frames",
					ErrComputeBudgetExceeded, c.maxDuration, i, len(pairs))
			}
		}

		a := Normalize(ref[p.Reference].Landmarks, cfg.Normalization, cfg.VisibilityThreshold)
		b := Normalize(cmp[p.Comparison].Landmarks, cfg.Normalization, cfg.VisibilityThreshold)
		scores[i] = ScoreFrames(a, b, cfg)
	}

	result := Aggregate(scores, ref.Duration(), cmp.Duration(), c.timingBlend)

	if c.logger != nil {
		c.logger.Debug("comparison scored",
			"pairs", len(pairs),
			"overall_score", result.OverallScore,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return &result, nil
}
