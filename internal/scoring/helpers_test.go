package scoring

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/posematch/posematch/internal/pose"
	"github.com/posematch/posematch/internal/pose/posetest"
)

const tolerance = 1e-6

func standingPose() []pose.Landmark {
	return posetest.StandingPose()
}

func movingSequence(frames int, stepMs float64) pose.Sequence {
	return posetest.Sequence(frames, stepMs)
}

func transform(lms []pose.Landmark, f func(r3.Vec) r3.Vec) []pose.Landmark {
	out := make([]pose.Landmark, len(lms))
	for i, l := range lms {
		out[i] = l.WithVec(f(l.Vec()))
	}
	return out
}

func withVisibility(lms []pose.Landmark, v float64) []pose.Landmark {
	out := make([]pose.Landmark, len(lms))
	for i, l := range lms {
		l.Visibility = pose.Float(v)
		out[i] = l
	}
	return out
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func zeroThresholdConfig() Config {
	cfg := DefaultConfig()
	cfg.VisibilityThreshold = 0
	return cfg
}
