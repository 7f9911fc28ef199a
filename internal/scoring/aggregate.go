package scoring

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultTimingBlend is the share of the overall score taken by timing.
const DefaultTimingBlend = 0.2

type Statistics struct {
	Mean     float64 `json:"mean"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Variance float64 `json:"variance"`
}

type Breakdown struct {
	PositionScore float64    `json:"positionScore"`
	AngularScore  float64    `json:"angularScore"`
	TimingScore   float64    `json:"timingScore"`
	Statistics    Statistics `json:"statistics"`
}

// Result is the outcome of one comparison.
type Result struct {
	OverallScore float64   `json:"overallScore"`
	FrameScores  []float64 `json:"frameScores"`
	Breakdown    Breakdown `json:"breakdown"`
}

// Aggregate reduces per-pair scores into a Result. durations are the spans of
// the original, unaligned sequences in ms.
func Aggregate(scores []FrameScore, refDuration, cmpDuration, timingBlend float64) Result {
	frameScores := make([]float64, len(scores))
	positions := make([]float64, len(scores))
	angulars := make([]float64, len(scores))
	for i, s := range scores {
		frameScores[i] = s.Score
		positions[i] = s.Position
		angulars[i] = s.Angular
	}

	stats := Summarize(frameScores)
	timing := TimingScore(refDuration, cmpDuration)

	return Result{
		OverallScore: clampScore((1-timingBlend)*stats.Mean + timingBlend*timing),
		FrameScores:  frameScores,
		Breakdown: Breakdown{
			PositionScore: clampScore(mean(positions)),
			AngularScore:  clampScore(mean(angulars)),
			TimingScore:   timing,
			Statistics:    stats,
		},
	}
}

// Summarize computes mean, extremes and population variance of scores.
func Summarize(scores []float64) Statistics {
	if len(scores) == 0 {
		return Statistics{}
	}
	m, v := stat.PopMeanVariance(scores, nil)
	return Statistics{
		Mean:     m,
		Min:      floats.Min(scores),
		Max:      floats.Max(scores),
		Variance: v,
	}
}

// TimingScore compares two durations: 100 when equal, falling linearly with
// their ratio. Two zero durations match trivially.
func TimingScore(a, b float64) float64 {
	a, b = max(a, 0), max(b, 0)
	hi := max(a, b)
	if hi == 0 {
		return 100
	}
	return clampScore(100 * min(a, b) / hi)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}
