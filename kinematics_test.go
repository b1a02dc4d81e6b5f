package control_toolbox

import (
	"context"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/spatialmath"
	rdkutils "go.viam.com/rdk/utils"
)

// lineChain is a fake kinematic model that translates along X by the sum of
// its joint values.
type lineChain struct {
	dof int
}

func (c *lineChain) Transform(inputs []referenceframe.Input) (spatialmath.Pose, error) {
	var sum float64
	for _, in := range inputs {
		sum += in.Value
	}
	return spatialmath.NewPoseFromPoint(r3.Vector{X: sum}), nil
}

func (c *lineChain) DoF() []referenceframe.Limit {
	limits := make([]referenceframe.Limit, c.dof)
	for i := range limits {
		limits[i] = referenceframe.Limit{Min: -3.14, Max: 3.14}
	}
	return limits
}

func testKinematicsManager(t *testing.T, lookup TransformLookup) *KinematicsManager {
	t.Helper()
	logger := logging.NewTestLogger(t)
	params := NewMapParameterStore(rdkutils.AttributeMap{paramMaxTFAttempts: 1})
	return NewKinematicsManager(params, lookup, logger)
}

func TestInitializeArm(t *testing.T) {
	manager := testKinematicsManager(t, &mapLookup{})

	t.Run("registers a chain", func(t *testing.T) {
		err := manager.InitializeArm("left_eef", &lineChain{dof: 2}, []string{"j1", "j2"})
		require.NoError(t, err)

		names, err := manager.JointNames("left_eef")
		require.NoError(t, err)
		assert.Equal(t, []string{"j1", "j2"}, names)
	})

	t.Run("duplicate end-effector is rejected", func(t *testing.T) {
		err := manager.InitializeArm("left_eef", &lineChain{dof: 2}, []string{"j1", "j2"})
		assert.ErrorIs(t, err, ErrAlreadyRegistered)
	})

	t.Run("joint name count must match degrees of freedom", func(t *testing.T) {
		err := manager.InitializeArm("right_eef", &lineChain{dof: 3}, []string{"j1", "j2"})
		assert.Error(t, err)
	})

	t.Run("duplicate joint names are rejected", func(t *testing.T) {
		err := manager.InitializeArm("right_eef", &lineChain{dof: 2}, []string{"j1", "j1"})
		assert.Error(t, err)
	})

	t.Run("nil model is rejected", func(t *testing.T) {
		err := manager.InitializeArm("right_eef", nil, nil)
		assert.Error(t, err)
	})
}

func TestGetJointState(t *testing.T) {
	manager := testKinematicsManager(t, &mapLookup{})
	require.NoError(t, manager.InitializeArm("left_eef", &lineChain{dof: 2}, []string{"j1", "j2"}))

	state, err := manager.GetJointState("left_eef", []float64{0.5, 1.5}, []float64{0.1, 0.2})
	require.NoError(t, err)
	assert.Equal(t, []string{"j1", "j2"}, state.Names)
	assert.Equal(t, []float64{0.5, 1.5}, state.Positions)
	assert.Equal(t, []float64{0.1, 0.2}, state.Velocities)

	_, err = manager.GetJointState("left_eef", []float64{0.5}, []float64{0.1, 0.2})
	assert.Error(t, err)

	_, err = manager.GetJointState("missing_eef", []float64{0.5, 1.5}, []float64{0.1, 0.2})
	assert.ErrorIs(t, err, ErrUnknownEndEffector)
}

func TestExtractChainState(t *testing.T) {
	manager := testKinematicsManager(t, &mapLookup{})
	require.NoError(t, manager.InitializeArm("left_eef", &lineChain{dof: 2}, []string{"j1", "j2"}))

	full := JointState{
		Names:      []string{"base", "j2", "j1", "head"},
		Positions:  []float64{9, 2, 1, 7},
		Velocities: []float64{0.9, 0.2, 0.1, 0.7},
	}

	state, err := manager.ExtractChainState("left_eef", full)
	require.NoError(t, err)
	assert.Equal(t, []string{"j1", "j2"}, state.Names)
	assert.Equal(t, []float64{1, 2}, state.Positions)
	assert.Equal(t, []float64{0.1, 0.2}, state.Velocities)

	t.Run("missing chain joint", func(t *testing.T) {
		_, err := manager.ExtractChainState("left_eef", JointState{
			Names:     []string{"j1"},
			Positions: []float64{1},
		})
		assert.Error(t, err)
	})
}

func TestPointPoses(t *testing.T) {
	ctx := context.Background()
	// The gripping point sits 0.1m along Z from the end-effector frame.
	lookup := &mapLookup{poses: map[[2]string]spatialmath.Pose{
		{"left_grip", "left_eef"}:   spatialmath.NewPoseFromPoint(r3.Vector{Z: 0.1}),
		{"left_sensor", "left_eef"}: spatialmath.NewPoseFromPoint(r3.Vector{Y: 0.05}),
	}}
	manager := testKinematicsManager(t, lookup)
	require.NoError(t, manager.InitializeArm("left_eef", &lineChain{dof: 2}, []string{"j1", "j2"}))

	state := JointState{
		Names:      []string{"j1", "j2"},
		Positions:  []float64{1, 2},
		Velocities: []float64{0, 0},
	}

	t.Run("default points coincide with the end-effector", func(t *testing.T) {
		pose, err := manager.GrippingPointPose("left_eef", state)
		require.NoError(t, err)
		assertVectorNear(t, r3.Vector{X: 3}, pose.Point())
	})

	require.NoError(t, manager.SetGrippingPoint(ctx, "left_eef", "left_grip"))
	require.NoError(t, manager.SetSensorPoint(ctx, "left_eef", "left_sensor"))

	t.Run("gripping point composes the offset", func(t *testing.T) {
		pose, err := manager.GrippingPointPose("left_eef", state)
		require.NoError(t, err)
		assertVectorNear(t, r3.Vector{X: 3, Z: 0.1}, pose.Point())
	})

	t.Run("sensor point composes the offset", func(t *testing.T) {
		pose, err := manager.SensorPointPose("left_eef", state)
		require.NoError(t, err)
		assertVectorNear(t, r3.Vector{X: 3, Y: 0.05}, pose.Point())
	})

	t.Run("offset for unknown chain fails", func(t *testing.T) {
		err := manager.SetGrippingPoint(ctx, "missing_eef", "left_grip")
		assert.ErrorIs(t, err, ErrUnknownEndEffector)
	})

	t.Run("unresolvable offset frame fails", func(t *testing.T) {
		err := manager.SetGrippingPoint(ctx, "left_eef", "nowhere")
		assert.Error(t, err)
	})

	t.Run("wrong position count fails", func(t *testing.T) {
		_, err := manager.GrippingPointPose("left_eef", JointState{Positions: []float64{1}})
		assert.Error(t, err)
	})
}
