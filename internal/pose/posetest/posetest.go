// Package posetest provides landmark fixtures for tests.
package posetest

import "github.com/posematch/posematch/internal/pose"

// StandingPose is a plausible upright skeleton in image coordinates.
func StandingPose() []pose.Landmark {
	pts := [pose.LandmarkCount][3]float64{
		pose.Nose:           {0.50, 0.20, -0.05},
		pose.LeftEyeInner:   {0.52, 0.18, -0.04},
		pose.LeftEye:        {0.53, 0.18, -0.04},
		pose.LeftEyeOuter:   {0.54, 0.18, -0.04},
		pose.RightEyeInner:  {0.48, 0.18, -0.04},
		pose.RightEye:       {0.47, 0.18, -0.04},
		pose.RightEyeOuter:  {0.46, 0.18, -0.04},
		pose.LeftEar:        {0.56, 0.19, 0.00},
		pose.RightEar:       {0.44, 0.19, 0.00},
		pose.MouthLeft:      {0.52, 0.23, -0.04},
		pose.MouthRight:     {0.48, 0.23, -0.04},
		pose.LeftShoulder:   {0.60, 0.32, 0.00},
		pose.RightShoulder:  {0.40, 0.32, 0.01},
		pose.LeftElbow:      {0.66, 0.46, 0.02},
		pose.RightElbow:     {0.34, 0.46, -0.02},
		pose.LeftWrist:      {0.69, 0.58, 0.05},
		pose.RightWrist:     {0.31, 0.57, 0.00},
		pose.LeftPinky:      {0.70, 0.61, 0.05},
		pose.RightPinky:     {0.30, 0.60, 0.00},
		pose.LeftIndex:      {0.70, 0.62, 0.04},
		pose.RightIndex:     {0.30, 0.61, -0.01},
		pose.LeftThumb:      {0.69, 0.60, 0.03},
		pose.RightThumb:     {0.31, 0.59, -0.01},
		pose.LeftHip:        {0.56, 0.60, 0.00},
		pose.RightHip:       {0.44, 0.60, 0.00},
		pose.LeftKnee:       {0.57, 0.78, 0.03},
		pose.RightKnee:      {0.43, 0.78, 0.00},
		pose.LeftAnkle:      {0.57, 0.95, 0.00},
		pose.RightAnkle:     {0.43, 0.95, 0.02},
		pose.LeftHeel:       {0.57, 0.97, 0.03},
		pose.RightHeel:      {0.43, 0.97, 0.04},
		pose.LeftFootIndex:  {0.58, 0.98, -0.05},
		pose.RightFootIndex: {0.42, 0.98, -0.04},
	}
	lms := make([]pose.Landmark, pose.LandmarkCount)
	for i, p := range pts {
		lms[i] = pose.Landmark{X: p[0], Y: p[1], Z: p[2], Visibility: pose.Float(0.99)}
	}
	return lms
}

// Sequence sways the arms so that frames differ from each other.
func Sequence(frames int, stepMs float64) pose.Sequence {
	seq := make(pose.Sequence, frames)
	for i := range seq {
		lms := StandingPose()
		lift := 0.02 * float64(i%5)
		for _, idx := range []int{pose.LeftWrist, pose.RightWrist, pose.LeftElbow, pose.RightElbow} {
			lms[idx].Y -= lift
		}
		seq[i] = pose.Frame{Timestamp: float64(i) * stepMs, Landmarks: lms}
	}
	return seq
}
