// Package batch scores a set of recordings against one reference recording.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/cheggaaa/pb/v3"

	"github.com/posematch/posematch/internal/pose"
	"github.com/posematch/posematch/internal/scoring"
)

const progressTemplate = `{{ string . "prefix" }} {{counters . "%s/%s" "%s/?"}} {{bar . }} {{percent . "%.01f%%" "?"}} {{etime . "%s elapsed"}} {{rtime . "%s remain" "%s total" "???"}}`

// Outcome is the result of comparing one file against the reference. Exactly
// one of Result and Error is set.
type Outcome struct {
	Path   string          `json:"path"`
	ID     string          `json:"id,omitempty"`
	Label  string          `json:"label,omitempty"`
	Frames int             `json:"frames"`
	Result *scoring.Result `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Summary aggregates a batch for the closing report.
type Summary struct {
	Compared int
	Failed   int
	Frames   int
	Best     *Outcome
	Worst    *Outcome
}

// CollectPaths returns the comparison files to score: the single file if one
// is named, otherwise every *.json in dir except the reference itself.
func CollectPaths(dir, single, reference string) ([]string, error) {
	if single != "" {
		return []string{single}, nil
	}
	if dir == "" {
		return nil, fmt.Errorf("either a comparison file or a directory is required")
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	refAbs, _ := filepath.Abs(reference)
	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		if abs, _ := filepath.Abs(m); abs == refAbs {
			continue
		}
		paths = append(paths, m)
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no recordings found in %s", dir)
	}
	return paths, nil
}

// NewProgressBar returns a started bar on stderr so stdout stays parseable.
func NewProgressBar(total int, prefix string) *pb.ProgressBar {
	bar := pb.ProgressBarTemplate(progressTemplate).New(total)
	bar.SetWriter(os.Stderr)
	bar.Set("prefix", prefix)
	return bar.Start()
}

// Run compares every path against ref with up to workers goroutines. Outcomes
// are returned in path order. bar may be nil.
func Run(ctx context.Context, comparator *scoring.Comparator, ref pose.Sequence, paths []string, cfg scoring.Config, workers int, bar *pb.ProgressBar) []Outcome {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	outcomes := make([]Outcome, len(paths))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			if bar != nil {
				defer bar.Increment()
			}

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				outcomes[i] = Outcome{Path: path, Error: ctx.Err().Error()}
				return
			}
			outcomes[i] = compareFile(ctx, comparator, ref, path, cfg)
		}(i, path)
	}

	wg.Wait()
	return outcomes
}

func compareFile(ctx context.Context, comparator *scoring.Comparator, ref pose.Sequence, path string, cfg scoring.Config) Outcome {
	out := Outcome{Path: path}

	rec, err := pose.ReadRecording(path)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.ID, out.Label, out.Frames = rec.ID, rec.Label, len(rec.Frames)

	res, err := comparator.Compare(ctx, ref, rec.Frames, cfg)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Result = res
	return out
}

func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for i := range outcomes {
		o := &outcomes[i]
		if o.Result == nil {
			s.Failed++
			continue
		}
		s.Compared++
		s.Frames += len(o.Result.FrameScores)
		if s.Best == nil || o.Result.OverallScore > s.Best.Result.OverallScore {
			s.Best = o
		}
		if s.Worst == nil || o.Result.OverallScore < s.Worst.Result.OverallScore {
			s.Worst = o
		}
	}
	return s
}

// DisplayName is the label, id or file name of an outcome, in that order.
func (o *Outcome) DisplayName() string {
	switch {
	case o.Label != "":
		return o.Label
	case o.ID != "":
		return o.ID
	default:
		return strings.TrimSuffix(filepath.Base(o.Path), filepath.Ext(o.Path))
	}
}
