package control_toolbox

import (
	"math"

	"go.viam.com/rdk/referenceframe"
)

// JointState is a snapshot of joint positions and velocities, mirroring the
// middleware's joint state message. Names, Positions and Velocities are
// parallel slices.
type JointState struct {
	Names      []string
	Positions  []float64
	Velocities []float64
}

// Clone deep-copies the state.
func (s JointState) Clone() JointState {
	out := JointState{
		Names:      make([]string, len(s.Names)),
		Positions:  make([]float64, len(s.Positions)),
		Velocities: make([]float64, len(s.Velocities)),
	}
	copy(out.Names, s.Names)
	copy(out.Positions, s.Positions)
	copy(out.Velocities, s.Velocities)
	return out
}

// ToInputs converts the joint positions to frame-system inputs.
func (s JointState) ToInputs() []referenceframe.Input {
	inputs := make([]referenceframe.Input, len(s.Positions))
	for i, p := range s.Positions {
		inputs[i] = referenceframe.Input(p)
	}
	return inputs
}

// IsFinite reports whether every position and velocity is a finite number.
func (s JointState) IsFinite() bool {
	for _, p := range s.Positions {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return false
		}
	}
	for _, v := range s.Velocities {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
