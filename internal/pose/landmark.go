// Package pose defines the body-pose data model shared by ingestion, storage and
// scoring: MediaPipe-style 33-point landmarks, timestamped frames and sequences.
package pose

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// LandmarkCount is the number of landmarks in every frame.
const LandmarkCount = 33

// Landmark indices. The order is fixed by the detector and must never change.
const (
	Nose = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex
)

type Landmark struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          float64  `json:"z"`
	Visibility *float64 `json:"visibility,omitempty"`
	Presence   *float64 `json:"presence,omitempty"`
}

// Vec returns the landmark position as a 3D vector.
func (l Landmark) Vec() r3.Vec {
	return r3.Vec{X: l.X, Y: l.Y, Z: l.Z}
}

// WithVec returns a copy of l moved to v, keeping the confidence fields.
func (l Landmark) WithVec(v r3.Vec) Landmark {
	l.X, l.Y, l.Z = v.X, v.Y, v.Z
	return l
}

// VisibilityOrDefault treats a missing visibility as fully visible.
func (l Landmark) VisibilityOrDefault() float64 {
	if l.Visibility == nil {
		return 1
	}
	return *l.Visibility
}

// Visible reports whether the landmark meets the visibility threshold.
func (l Landmark) Visible(threshold float64) bool {
	return l.VisibilityOrDefault() >= threshold
}

type Frame struct {
	Timestamp float64    `json:"timestamp"`
	Landmarks []Landmark `json:"landmarks"`
}

// Validate checks the frame has a full skeleton with finite values.
func (f Frame) Validate() error {
	if math.IsNaN(f.Timestamp) || math.IsInf(f.Timestamp, 0) {
		return fmt.Errorf("timestamp is not finite")
	}
	if len(f.Landmarks) != LandmarkCount {
		return fmt.Errorf("expected %d landmarks, got %d", LandmarkCount, len(f.Landmarks))
	}
	for i, l := range f.Landmarks {
		for _, v := range []float64{l.X, l.Y, l.Z} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("landmark %d has a non-finite coordinate", i)
			}
		}
		if l.Visibility != nil && (*l.Visibility < 0 || *l.Visibility > 1) {
			return fmt.Errorf("landmark %d visibility out of range", i)
		}
	}
	return nil
}

// Sequence is an ordered run of frames from one recording.
type Sequence []Frame

// Duration is the span between the first and last frame timestamps in ms.
// Sequences with fewer than two frames have zero duration.
func (s Sequence) Duration() float64 {
	if len(s) < 2 {
		return 0
	}
	return s[len(s)-1].Timestamp - s[0].Timestamp
}

// Midpoint returns the point halfway between landmarks a and b.
func Midpoint(a, b Landmark) r3.Vec {
	return r3.Scale(0.5, r3.Add(a.Vec(), b.Vec()))
}

// Float returns a pointer to v, for filling optional confidence fields.
func Float(v float64) *float64 {
	return &v
}
