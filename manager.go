package control_toolbox

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrAlreadyRegistered is returned when an end-effector identifier is
	// initialized a second time.
	ErrAlreadyRegistered = errors.New("end-effector already registered")
	// ErrUnknownEndEffector is returned by queries against an identifier that
	// was never initialized.
	ErrUnknownEndEffector = errors.New("end-effector not registered")
)

// indexManager keeps the identifier bookkeeping shared by the wrench and
// kinematics managers. Identifiers are unique; lookups go through a map
// rather than a list scan.
type indexManager struct {
	keys  []string
	index map[string]int
}

func newIndexManager() *indexManager {
	return &indexManager{
		index: make(map[string]int),
	}
}

// add registers a new identifier and returns its slot.
func (m *indexManager) add(key string) (int, error) {
	if _, ok := m.index[key]; ok {
		return -1, errors.Wrap(ErrAlreadyRegistered, key)
	}
	i := len(m.keys)
	m.keys = append(m.keys, key)
	m.index[key] = i
	return i, nil
}

func (m *indexManager) lookup(key string) (int, bool) {
	i, ok := m.index[key]
	return i, ok
}

func (m *indexManager) names() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// ArmInfo collects the per-arm parameters needed to wire sensor feedback for
// an end-effector.
type ArmInfo struct {
	Name          string
	EEFFrame      string
	GrippingFrame string
	HasFTSensor   bool
	SensorFrame   string
	SensorTopic   string
}

// GetArmInfo loads an arm's registration parameters from the store. All keys
// live under the arm's name, e.g. "left_arm/sensor_topic".
func GetArmInfo(armName string, params ParameterStore) (ArmInfo, error) {
	info := ArmInfo{Name: armName}

	var ok bool
	if info.EEFFrame, ok = params.GetString(armName + "/eef_frame"); !ok {
		return ArmInfo{}, fmt.Errorf("missing kinematic chain eef (%s/eef_frame)", armName)
	}
	if info.GrippingFrame, ok = params.GetString(armName + "/gripping_frame"); !ok {
		return ArmInfo{}, fmt.Errorf("missing gripping frame (%s/gripping_frame)", armName)
	}
	if info.HasFTSensor, ok = params.GetBool(armName + "/has_ft_sensor"); !ok {
		return ArmInfo{}, fmt.Errorf("missing sensor info (%s/has_ft_sensor)", armName)
	}
	if info.SensorFrame, ok = params.GetString(armName + "/sensor_frame"); !ok {
		return ArmInfo{}, fmt.Errorf("missing sensor info (%s/sensor_frame)", armName)
	}
	if info.SensorTopic, ok = params.GetString(armName + "/sensor_topic"); !ok {
		return ArmInfo{}, fmt.Errorf("missing sensor info (%s/sensor_topic)", armName)
	}

	return info, nil
}
