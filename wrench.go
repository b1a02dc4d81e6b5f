package control_toolbox

import (
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/spatialmath"
	"gonum.org/v1/gonum/mat"
)

// Wrench is a 6-dimensional force/torque reading.
type Wrench struct {
	Force  r3.Vector
	Torque r3.Vector
}

// WrenchStamped is a wrench tagged with the frame it is expressed in.
type WrenchStamped struct {
	FrameID string
	Time    time.Time
	Wrench  Wrench
}

// Vector returns the wrench as a 6-vector (fx, fy, fz, tx, ty, tz).
func (w Wrench) Vector() *mat.VecDense {
	return mat.NewVecDense(6, []float64{
		w.Force.X, w.Force.Y, w.Force.Z,
		w.Torque.X, w.Torque.Y, w.Torque.Z,
	})
}

// WrenchFromVector builds a wrench from a 6-vector.
func WrenchFromVector(v mat.Vector) (Wrench, error) {
	if v.Len() != 6 {
		return Wrench{}, errors.Errorf("wrench vector must have 6 entries, got %d", v.Len())
	}
	return Wrench{
		Force:  r3.Vector{X: v.AtVec(0), Y: v.AtVec(1), Z: v.AtVec(2)},
		Torque: r3.Vector{X: v.AtVec(3), Y: v.AtVec(4), Z: v.AtVec(5)},
	}, nil
}

// ApplyCalibration multiplies the wrench by a 6x6 calibration matrix.
func (w Wrench) ApplyCalibration(c *mat.Dense) Wrench {
	var out mat.VecDense
	out.MulVec(c, w.Vector())
	calibrated, _ := WrenchFromVector(&out)
	return calibrated
}

// TransformWrench expresses a wrench measured at the origin of one frame in a
// second frame, given the pose of the first frame in the second. The torque
// picks up the moment of the rotated force about the second frame's origin:
//
//	f' = R f
//	t' = R t + p x (R f)
func TransformWrench(pose spatialmath.Pose, w Wrench) Wrench {
	rm := pose.Orientation().RotationMatrix()
	force := rm.Mul(w.Force)
	torque := rm.Mul(w.Torque).Add(pose.Point().Cross(force))
	return Wrench{Force: force, Torque: torque}
}
