package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/costmapclient/utils"
)

// Pose represents a position in meters together with an orientation.
type Pose interface {
	Point() r3.Vector
	Orientation() Orientation
}

type pose struct {
	point       r3.Vector
	orientation quat.Number
}

// NewPose returns a Pose at point with orientation o. A nil orientation means no rotation.
func NewPose(point r3.Vector, o Orientation) Pose {
	if o == nil {
		o = NewZeroOrientation()
	}
	return &pose{point: point, orientation: o.Quaternion()}
}

// NewZeroPose returns a pose at the origin with no rotation.
func NewZeroPose() Pose {
	return NewPose(r3.Vector{}, nil)
}

// NewPoseFromPoint returns a pose at point with no rotation.
func NewPoseFromPoint(point r3.Vector) Pose {
	return NewPose(point, nil)
}

func (p *pose) Point() r3.Vector {
	return p.point
}

func (p *pose) Orientation() Orientation {
	q := Quaternion(p.orientation)
	return &q
}

func (p *pose) String() string {
	return fmt.Sprintf("{X:%.4f Y:%.4f Z:%.4f Yaw:%.4f}", p.point.X, p.point.Y, p.point.Z, Yaw(p.Orientation()))
}

// Compose returns the pose reached by applying b in the frame described by a.
func Compose(a, b Pose) Pose {
	aq := a.Orientation().Quaternion()
	point := a.Point().Add(RotateVector(a.Orientation(), b.Point()))
	return &pose{point: point, orientation: quat.Mul(aq, b.Orientation().Quaternion())}
}

// PoseInverse returns the pose that undoes p, such that Compose(p, PoseInverse(p)) is the zero pose.
func PoseInverse(p Pose) Pose {
	inv := Quaternion(quat.Conj(p.Orientation().Quaternion()))
	point := RotateVector(&inv, p.Point().Mul(-1))
	return &pose{point: point, orientation: quat.Number(inv)}
}

// PoseAlmostEqual determines whether two poses are approximately equal.
func PoseAlmostEqual(a, b Pose) bool {
	return PoseAlmostCoincidentEps(a, b, 1e-6) && OrientationAlmostEqual(a.Orientation(), b.Orientation())
}

// PoseAlmostCoincidentEps reports whether the positions of two poses are within epsilon.
func PoseAlmostCoincidentEps(a, b Pose, epsilon float64) bool {
	return utils.Float64AlmostEqual(a.Point().Sub(b.Point()).Norm(), 0, epsilon)
}
