package control_toolbox

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/spatialmath"
	"gonum.org/v1/gonum/mat"
)

func assertVectorNear(t *testing.T, want, got r3.Vector) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-9)
	assert.InDelta(t, want.Y, got.Y, 1e-9)
	assert.InDelta(t, want.Z, got.Z, 1e-9)
}

func TestWrenchVectorRoundTrip(t *testing.T) {
	w := Wrench{
		Force:  r3.Vector{X: 1, Y: 2, Z: 3},
		Torque: r3.Vector{X: -4, Y: 5, Z: -6},
	}

	back, err := WrenchFromVector(w.Vector())
	require.NoError(t, err)
	assert.Equal(t, w, back)

	_, err = WrenchFromVector(mat.NewVecDense(5, nil))
	assert.Error(t, err)
}

func TestApplyCalibration(t *testing.T) {
	w := Wrench{
		Force:  r3.Vector{X: 1, Y: 2, Z: 3},
		Torque: r3.Vector{X: 4, Y: 5, Z: 6},
	}

	t.Run("identity", func(t *testing.T) {
		identity := mat.NewDense(6, 6, identityCalibration())
		assert.Equal(t, w, w.ApplyCalibration(identity))
	})

	t.Run("scaling", func(t *testing.T) {
		data := identityCalibration()
		for i := 0; i < 6; i++ {
			data[i*6+i] = 2
		}
		scaled := w.ApplyCalibration(mat.NewDense(6, 6, data))
		assertVectorNear(t, r3.Vector{X: 2, Y: 4, Z: 6}, scaled.Force)
		assertVectorNear(t, r3.Vector{X: 8, Y: 10, Z: 12}, scaled.Torque)
	})

	t.Run("cross coupling", func(t *testing.T) {
		// calibration that maps fx from raw fy only
		data := make([]float64, 36)
		data[0*6+1] = 1
		coupled := w.ApplyCalibration(mat.NewDense(6, 6, data))
		assert.InDelta(t, 2.0, coupled.Force.X, 1e-9)
		assert.Zero(t, coupled.Force.Y)
	})
}

func TestTransformWrench(t *testing.T) {
	t.Run("pure translation adds the force moment", func(t *testing.T) {
		pose := spatialmath.NewPoseFromPoint(r3.Vector{Z: 1})
		w := Wrench{Force: r3.Vector{X: 1, Y: 2, Z: 3}}

		out := TransformWrench(pose, w)
		assertVectorNear(t, w.Force, out.Force)
		// (0,0,1) x (1,2,3) = (-2, 1, 0)
		assertVectorNear(t, r3.Vector{X: -2, Y: 1}, out.Torque)
	})

	t.Run("pure rotation rotates both components", func(t *testing.T) {
		pose := spatialmath.NewPose(r3.Vector{}, &spatialmath.EulerAngles{Yaw: math.Pi / 2})
		w := Wrench{
			Force:  r3.Vector{X: 1},
			Torque: r3.Vector{Y: 1},
		}

		out := TransformWrench(pose, w)
		assertVectorNear(t, r3.Vector{Y: 1}, out.Force)
		assertVectorNear(t, r3.Vector{X: -1}, out.Torque)
	})

	t.Run("identity is a no-op", func(t *testing.T) {
		w := Wrench{
			Force:  r3.Vector{X: 1, Y: -2, Z: 3},
			Torque: r3.Vector{X: 0.5, Y: 0, Z: -0.25},
		}
		out := TransformWrench(spatialmath.NewZeroPose(), w)
		assertVectorNear(t, w.Force, out.Force)
		assertVectorNear(t, w.Torque, out.Torque)
	})
}
