// Package spatialmath defines poses and orientations used when locating the robot in a frame.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/costmapclient/utils"
)

// Orientation is an interface used to express the orientation of a rigid object or a frame of
// reference in 3D Euclidean space.
type Orientation interface {
	Quaternion() quat.Number
}

// Quaternion is an Orientation stored as a unit quaternion.
type Quaternion quat.Number

// Quaternion returns the underlying quaternion.
func (q *Quaternion) Quaternion() quat.Number {
	return quat.Number(*q)
}

// NewZeroOrientation returns an orientatation which signifies no rotation.
func NewZeroOrientation() Orientation {
	return &Quaternion{Real: 1}
}

// NewQuaternion returns the orientation described by the (possibly non-normalized) quaternion
// w + xi + yj + zk. A zero quaternion is treated as no rotation.
func NewQuaternion(w, x, y, z float64) Orientation {
	q := quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}
	norm := quat.Abs(q)
	if norm == 0 {
		return NewZeroOrientation()
	}
	q = quat.Scale(1/norm, q)
	ret := Quaternion(q)
	return &ret
}

// NewOrientationFromYaw returns a rotation of yaw radians about the Z axis.
func NewOrientationFromYaw(yaw float64) Orientation {
	return &Quaternion{Real: math.Cos(yaw / 2), Kmag: math.Sin(yaw / 2)}
}

// Yaw returns the rotation about the Z axis, in radians, of the given orientation.
func Yaw(o Orientation) float64 {
	q := o.Quaternion()
	sinyCosp := 2 * (q.Real*q.Kmag + q.Imag*q.Jmag)
	cosyCosp := 1 - 2*(q.Jmag*q.Jmag+q.Kmag*q.Kmag)
	return math.Atan2(sinyCosp, cosyCosp)
}

// OrientationAlmostEqual will return a bool describing whether 2 poses have approximately the same orientation.
func OrientationAlmostEqual(o1, o2 Orientation) bool {
	return QuaternionAlmostEqual(o1.Quaternion(), o2.Quaternion(), 1e-5)
}

// QuaternionAlmostEqual is an equality test for two quaternions. q and -q describe the same
// rotation and compare equal.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	near := func(a, b quat.Number) bool {
		return utils.Float64AlmostEqual(a.Real, b.Real, tol) &&
			utils.Float64AlmostEqual(a.Imag, b.Imag, tol) &&
			utils.Float64AlmostEqual(a.Jmag, b.Jmag, tol) &&
			utils.Float64AlmostEqual(a.Kmag, b.Kmag, tol)
	}
	return near(a, b) || near(a, quat.Scale(-1, b))
}

// RotateVector applies the orientation to v.
func RotateVector(o Orientation, v r3.Vector) r3.Vector {
	q := o.Quaternion()
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	rotated := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}
}
