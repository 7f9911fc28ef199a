package scoring

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/posematch/posematch/internal/pose"
)

const minReferenceLength = 1e-9

var verticalAxis = r3.Vec{Y: 1}

// Normalize maps a frame's landmarks into the canonical body frame selected
// by n. Reference points only use landmarks meeting threshold. When a needed
// reference cannot be computed the landmarks are returned unchanged.
// The result always has the same length and order as the input.
func Normalize(landmarks []pose.Landmark, n Normalization, threshold float64) []pose.Landmark {
	out, err := normalize(landmarks, n, threshold)
	if err != nil {
		return append([]pose.Landmark(nil), landmarks...)
	}
	return out
}

func normalize(landmarks []pose.Landmark, n Normalization, threshold float64) ([]pose.Landmark, error) {
	out := append([]pose.Landmark(nil), landmarks...)
	if !n.Center && !n.Scale && !n.Rotation {
		return out, nil
	}
	if len(landmarks) != pose.LandmarkCount {
		return nil, errInsufficientLandmarks
	}

	hip, err := hipCenter(landmarks, threshold)
	if err != nil {
		return nil, err
	}

	if n.Center {
		for i := range out {
			out[i] = out[i].WithVec(r3.Sub(out[i].Vec(), hip))
		}
		hip = r3.Vec{}
	}

	if n.Rotation {
		angle, err := facingAngle(landmarks, threshold)
		if err != nil {
			return nil, err
		}
		rot := r3.NewRotation(angle, verticalAxis)
		for i := range out {
			rel := r3.Sub(out[i].Vec(), hip)
			out[i] = out[i].WithVec(r3.Add(hip, rot.Rotate(rel)))
		}
	}

	if n.Scale {
		size, err := bodyScale(landmarks, threshold)
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i] = out[i].WithVec(r3.Scale(1/size, out[i].Vec()))
		}
	}

	return out, nil
}

func hipCenter(lms []pose.Landmark, threshold float64) (r3.Vec, error) {
	l, r := lms[pose.LeftHip], lms[pose.RightHip]
	if !l.Visible(threshold) || !r.Visible(threshold) {
		return r3.Vec{}, errInsufficientLandmarks
	}
	return pose.Midpoint(l, r), nil
}

func shouldersVisible(lms []pose.Landmark, threshold float64) bool {
	return lms[pose.LeftShoulder].Visible(threshold) && lms[pose.RightShoulder].Visible(threshold)
}

// bodyScale is the torso length (mid-shoulder to mid-hip), or the hip width
// when the shoulders are occluded. Rotation and translation do not change it,
// so it is measured on the raw landmarks.
func bodyScale(lms []pose.Landmark, threshold float64) (float64, error) {
	hip, err := hipCenter(lms, threshold)
	if err != nil {
		return 0, err
	}

	var size float64
	if shouldersVisible(lms, threshold) {
		shoulder := pose.Midpoint(lms[pose.LeftShoulder], lms[pose.RightShoulder])
		size = r3.Norm(r3.Sub(shoulder, hip))
	} else {
		size = r3.Norm(r3.Sub(lms[pose.RightHip].Vec(), lms[pose.LeftHip].Vec()))
	}
	if size < minReferenceLength {
		return 0, errInsufficientLandmarks
	}
	return size, nil
}

// facingAngle is the rotation about the vertical axis that turns the shoulder
// line, projected onto the x-z plane, to point along +x.
func facingAngle(lms []pose.Landmark, threshold float64) (float64, error) {
	if !shouldersVisible(lms, threshold) {
		return 0, errInsufficientLandmarks
	}
	line := r3.Sub(lms[pose.RightShoulder].Vec(), lms[pose.LeftShoulder].Vec())
	if math.Hypot(line.X, line.Z) < minReferenceLength {
		return 0, errInsufficientLandmarks
	}
	return math.Atan2(line.Z, line.X), nil
}
