package control_toolbox

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/spatialmath"
)

// ChainModel is the kinematic-chain surface the manager needs: forward
// kinematics over joint inputs plus the chain's degrees of freedom. Any
// referenceframe.Model satisfies it.
type ChainModel interface {
	Transform([]referenceframe.Input) (spatialmath.Pose, error)
	DoF() []referenceframe.Limit
}

type kinematicChain struct {
	endEffector    string
	model          ChainModel
	jointNames     []string
	nameToJoint    map[string]int
	grippingOffset spatialmath.Pose
	sensorOffset   spatialmath.Pose
}

// KinematicsManager maintains kinematic chains per end-effector and answers
// gripping-point and sensor-point pose queries. Both points default to the
// end-effector frame itself until set from the transform tree.
type KinematicsManager struct {
	mu     sync.RWMutex
	lookup TransformLookup
	logger logging.Logger
	clk    clock.Clock

	maxAttempts int
	index       *indexManager
	chains      []*kinematicChain
}

func NewKinematicsManager(params ParameterStore, lookup TransformLookup, logger logging.Logger) *KinematicsManager {
	return &KinematicsManager{
		lookup:      lookup,
		logger:      logger,
		clk:         clock.New(),
		maxAttempts: maxTFAttempts(params, logger),
		index:       newIndexManager(),
	}
}

// InitializeArm registers a kinematic chain for an end-effector. jointNames
// must match the model's degrees of freedom one to one.
func (k *KinematicsManager) InitializeArm(endEffector string, model ChainModel, jointNames []string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, ok := k.index.lookup(endEffector); ok {
		return errors.Wrapf(ErrAlreadyRegistered, "cannot initialize chain for end-effector %s", endEffector)
	}
	if model == nil {
		return errors.Errorf("no kinematic model for end-effector %s", endEffector)
	}
	if dof := len(model.DoF()); dof != len(jointNames) {
		return errors.Errorf("end-effector %s: model has %d degrees of freedom, got %d joint names",
			endEffector, dof, len(jointNames))
	}

	nameToJoint := make(map[string]int, len(jointNames))
	for i, name := range jointNames {
		if _, ok := nameToJoint[name]; ok {
			return errors.Errorf("end-effector %s: duplicate joint name %s", endEffector, name)
		}
		nameToJoint[name] = i
	}

	if _, err := k.index.add(endEffector); err != nil {
		return err
	}
	names := make([]string, len(jointNames))
	copy(names, jointNames)
	k.chains = append(k.chains, &kinematicChain{
		endEffector:    endEffector,
		model:          model,
		jointNames:     names,
		nameToJoint:    nameToJoint,
		grippingOffset: spatialmath.NewZeroPose(),
		sensorOffset:   spatialmath.NewZeroPose(),
	})

	return nil
}

// SetGrippingPoint resolves the rigid transform between the end-effector
// frame and the gripping-point frame and stores it as the chain's gripping
// offset.
func (k *KinematicsManager) SetGrippingPoint(ctx context.Context, endEffector, grippingPointFrame string) error {
	return k.setOffset(ctx, endEffector, grippingPointFrame, func(c *kinematicChain, p spatialmath.Pose) {
		c.grippingOffset = p
	})
}

// SetSensorPoint resolves the rigid transform between the end-effector frame
// and the sensor frame and stores it as the chain's sensor offset.
func (k *KinematicsManager) SetSensorPoint(ctx context.Context, endEffector, sensorPointFrame string) error {
	return k.setOffset(ctx, endEffector, sensorPointFrame, func(c *kinematicChain, p spatialmath.Pose) {
		c.sensorOffset = p
	})
}

func (k *KinematicsManager) setOffset(
	ctx context.Context,
	endEffector, frame string,
	assign func(*kinematicChain, spatialmath.Pose),
) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	i, ok := k.index.lookup(endEffector)
	if !ok {
		return errors.Wrap(ErrUnknownEndEffector, endEffector)
	}

	// The offset frame is rigidly attached to the end-effector, so resolving
	// it once at setup time is enough.
	offset, err := resolveTransform(
		ctx, k.lookup, frame, endEffector, k.maxAttempts, tfRetryDelay, k.clk, k.logger)
	if err != nil {
		return err
	}

	assign(k.chains[i], offset)
	return nil
}

// GetJointState assembles a joint state for the chain from position and
// velocity vectors ordered like the chain's joints.
func (k *KinematicsManager) GetJointState(endEffector string, q, qdot []float64) (JointState, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	i, ok := k.index.lookup(endEffector)
	if !ok {
		return JointState{}, errors.Wrap(ErrUnknownEndEffector, endEffector)
	}
	chain := k.chains[i]

	if len(q) != len(chain.jointNames) || len(qdot) != len(chain.jointNames) {
		return JointState{}, errors.Errorf(
			"end-effector %s expects %d joint values, got %d positions and %d velocities",
			endEffector, len(chain.jointNames), len(q), len(qdot))
	}

	state := JointState{
		Names:      make([]string, len(chain.jointNames)),
		Positions:  make([]float64, len(q)),
		Velocities: make([]float64, len(qdot)),
	}
	copy(state.Names, chain.jointNames)
	copy(state.Positions, q)
	copy(state.Velocities, qdot)
	return state, nil
}

// ExtractChainState filters a full robot joint state down to the chain's own
// joints, in chain order. Every chain joint must be present in the input.
func (k *KinematicsManager) ExtractChainState(endEffector string, full JointState) (JointState, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	i, ok := k.index.lookup(endEffector)
	if !ok {
		return JointState{}, errors.Wrap(ErrUnknownEndEffector, endEffector)
	}
	chain := k.chains[i]

	positions := make(map[string]float64, len(full.Names))
	velocities := make(map[string]float64, len(full.Names))
	for j, name := range full.Names {
		if j < len(full.Positions) {
			positions[name] = full.Positions[j]
		}
		if j < len(full.Velocities) {
			velocities[name] = full.Velocities[j]
		}
	}

	state := JointState{
		Names:      make([]string, len(chain.jointNames)),
		Positions:  make([]float64, len(chain.jointNames)),
		Velocities: make([]float64, len(chain.jointNames)),
	}
	copy(state.Names, chain.jointNames)
	for j, name := range chain.jointNames {
		p, ok := positions[name]
		if !ok {
			return JointState{}, errors.Errorf("joint %s of end-effector %s missing from state", name, endEffector)
		}
		state.Positions[j] = p
		state.Velocities[j] = velocities[name]
	}
	return state, nil
}

// GrippingPointPose returns the pose of the chain's gripping point for the
// given joint state, in the chain's base frame.
func (k *KinematicsManager) GrippingPointPose(endEffector string, state JointState) (spatialmath.Pose, error) {
	return k.pointPose(endEffector, state, func(c *kinematicChain) spatialmath.Pose {
		return c.grippingOffset
	})
}

// SensorPointPose returns the pose of the chain's sensor point for the given
// joint state, in the chain's base frame.
func (k *KinematicsManager) SensorPointPose(endEffector string, state JointState) (spatialmath.Pose, error) {
	return k.pointPose(endEffector, state, func(c *kinematicChain) spatialmath.Pose {
		return c.sensorOffset
	})
}

func (k *KinematicsManager) pointPose(
	endEffector string,
	state JointState,
	offset func(*kinematicChain) spatialmath.Pose,
) (spatialmath.Pose, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	i, ok := k.index.lookup(endEffector)
	if !ok {
		return nil, errors.Wrap(ErrUnknownEndEffector, endEffector)
	}
	chain := k.chains[i]

	if len(state.Positions) != len(chain.jointNames) {
		return nil, errors.Errorf("end-effector %s expects %d joint positions, got %d",
			endEffector, len(chain.jointNames), len(state.Positions))
	}

	eefPose, err := chain.model.Transform(state.ToInputs())
	if err != nil {
		return nil, errors.Wrapf(err, "forward kinematics failed for end-effector %s", endEffector)
	}

	return spatialmath.Compose(eefPose, offset(chain)), nil
}

// JointNames returns the chain's joint names in order.
func (k *KinematicsManager) JointNames(endEffector string) ([]string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	i, ok := k.index.lookup(endEffector)
	if !ok {
		return nil, errors.Wrap(ErrUnknownEndEffector, endEffector)
	}
	out := make([]string, len(k.chains[i].jointNames))
	copy(out, k.chains[i].jointNames)
	return out, nil
}
