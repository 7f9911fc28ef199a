package scoring

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/posematch/posematch/internal/pose"
)

const (
	// Distance, in normalized units, at which position similarity drops to 1/e.
	positionFalloff = 0.5
	// Angular difference, in degrees, at which joint similarity drops to 1/e.
	angleFalloff = 45.0
)

// landmarkWeights ranks body parts for the position score: legs and core
// count most, the face least.
var landmarkWeights = func() [pose.LandmarkCount]float64 {
	var w [pose.LandmarkCount]float64
	for i := pose.Nose; i <= pose.MouthRight; i++ {
		w[i] = 0.2
	}
	for i := pose.LeftPinky; i <= pose.RightThumb; i++ {
		w[i] = 0.3
	}
	for i := pose.LeftHeel; i <= pose.RightFootIndex; i++ {
		w[i] = 0.6
	}
	w[pose.LeftShoulder], w[pose.RightShoulder] = 1.0, 1.0
	w[pose.LeftElbow], w[pose.RightElbow] = 0.8, 0.8
	w[pose.LeftWrist], w[pose.RightWrist] = 0.8, 0.8
	for _, i := range []int{pose.LeftHip, pose.RightHip, pose.LeftKnee, pose.RightKnee, pose.LeftAnkle, pose.RightAnkle} {
		w[i] = 1.5
	}
	return w
}()

// Joint is an angle measured at Vertex between the bones to A and B.
type Joint struct {
	Name         string
	A, Vertex, B int
}

var joints = []Joint{
	{"left_elbow", pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist},
	{"right_elbow", pose.RightShoulder, pose.RightElbow, pose.RightWrist},
	{"left_shoulder", pose.LeftElbow, pose.LeftShoulder, pose.LeftHip},
	{"right_shoulder", pose.RightElbow, pose.RightShoulder, pose.RightHip},
	{"left_hip", pose.LeftShoulder, pose.LeftHip, pose.LeftKnee},
	{"right_hip", pose.RightShoulder, pose.RightHip, pose.RightKnee},
	{"left_knee", pose.LeftHip, pose.LeftKnee, pose.LeftAnkle},
	{"right_knee", pose.RightHip, pose.RightKnee, pose.RightAnkle},
}

// FrameScore is the similarity of one aligned frame pair.
type FrameScore struct {
	Position float64
	Angular  float64
	Score    float64
}

// ScoreFrames compares two normalized frames. Landmarks or joints that are
// below the visibility threshold in either frame are left out of the averages;
// a sub-score with nothing left to compare is 0.
func ScoreFrames(ref, cmp []pose.Landmark, cfg Config) FrameScore {
	fs := FrameScore{
		Position: positionScore(ref, cmp, cfg.VisibilityThreshold),
		Angular:  angularScore(ref, cmp, cfg.VisibilityThreshold),
	}
	fs.Score = clampScore(cfg.PositionWeight*fs.Position + cfg.AngularWeight*fs.Angular)
	return fs
}

func positionScore(ref, cmp []pose.Landmark, threshold float64) float64 {
	n := min(len(ref), len(cmp), pose.LandmarkCount)

	var sum, weights float64
	for i := 0; i < n; i++ {
		if !ref[i].Visible(threshold) || !cmp[i].Visible(threshold) {
			continue
		}
		d := r3.Norm(r3.Sub(ref[i].Vec(), cmp[i].Vec()))
		sum += landmarkWeights[i] * 100 * math.Exp(-d/positionFalloff)
		weights += landmarkWeights[i]
	}
	if weights == 0 {
		return 0
	}
	return clampScore(sum / weights)
}

func angularScore(ref, cmp []pose.Landmark, threshold float64) float64 {
	if len(ref) < pose.LandmarkCount || len(cmp) < pose.LandmarkCount {
		return 0
	}

	var sum float64
	var count int
	for _, j := range joints {
		a, ok := jointAngle(ref, j, threshold)
		if !ok {
			continue
		}
		b, ok := jointAngle(cmp, j, threshold)
		if !ok {
			continue
		}
		sum += 100 * math.Exp(-angleDiff(a, b)/angleFalloff)
		count++
	}
	if count == 0 {
		return 0
	}
	return clampScore(sum / float64(count))
}

// jointAngle returns the angle in degrees at the joint vertex, in [0,180].
func jointAngle(lms []pose.Landmark, j Joint, threshold float64) (float64, bool) {
	a, v, b := lms[j.A], lms[j.Vertex], lms[j.B]
	if !a.Visible(threshold) || !v.Visible(threshold) || !b.Visible(threshold) {
		return 0, false
	}
	u := r3.Sub(a.Vec(), v.Vec())
	w := r3.Sub(b.Vec(), v.Vec())
	if r3.Norm(u) < minReferenceLength || r3.Norm(w) < minReferenceLength {
		return 0, false
	}
	cos := math.Max(-1, math.Min(1, r3.Cos(u, w)))
	return math.Acos(cos) * 180 / math.Pi, true
}

// angleDiff is the absolute difference wrapped into [0,180].
func angleDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
