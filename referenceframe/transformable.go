package referenceframe

import (
	"time"

	"go.viam.com/costmapclient/spatialmath"
)

// PoseInFrame is a data structure that packages a pose with the name of the
// frame in which it was observed and the time it is valid for.
type PoseInFrame struct {
	frame string
	pose  spatialmath.Pose
	stamp time.Time
}

// NewPoseInFrame generates a new PoseInFrame.
func NewPoseInFrame(frame string, pose spatialmath.Pose, stamp time.Time) *PoseInFrame {
	return &PoseInFrame{
		frame: frame,
		pose:  pose,
		stamp: stamp,
	}
}

// FrameName returns the name of the frame in which the pose was observed.
func (pF *PoseInFrame) FrameName() string {
	return pF.frame
}

// Pose returns the pose that was observed.
func (pF *PoseInFrame) Pose() spatialmath.Pose {
	return pF.pose
}

// Stamp returns the time at which the pose was valid.
func (pF *PoseInFrame) Stamp() time.Time {
	return pF.stamp
}

// StampedTransform is the pose of Child expressed in Parent at time Stamp.
type StampedTransform struct {
	Parent    string
	Child     string
	Stamp     time.Time
	Transform spatialmath.Pose
}

// PoseInParent returns the child's origin as a PoseInFrame of the parent frame.
func (st *StampedTransform) PoseInParent() *PoseInFrame {
	return NewPoseInFrame(st.Parent, st.Transform, st.Stamp)
}
