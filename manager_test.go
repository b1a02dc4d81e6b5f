package control_toolbox

import (
	"testing"

	"github.com/pkg/errors"
	rdkutils "go.viam.com/rdk/utils"
)

func TestIndexManager(t *testing.T) {
	m := newIndexManager()

	if _, ok := m.lookup("left_arm"); ok {
		t.Fatal("lookup on empty manager should fail")
	}

	i, err := m.add("left_arm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if i != 0 {
		t.Fatalf("expected first slot 0, got %d", i)
	}

	if _, err := m.add("left_arm"); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}

	j, err := m.add("right_arm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j != 1 {
		t.Fatalf("expected slot 1, got %d", j)
	}

	if got, ok := m.lookup("right_arm"); !ok || got != 1 {
		t.Fatalf("lookup right_arm = (%d, %v), want (1, true)", got, ok)
	}

	names := m.names()
	if len(names) != 2 || names[0] != "left_arm" || names[1] != "right_arm" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func armInfoAttrs() rdkutils.AttributeMap {
	return rdkutils.AttributeMap{
		"left_arm/eef_frame":      "left_eef",
		"left_arm/gripping_frame": "left_grip",
		"left_arm/has_ft_sensor":  true,
		"left_arm/sensor_frame":   "left_ft",
		"left_arm/sensor_topic":   "left_ft_topic",
	}
}

func TestGetArmInfo(t *testing.T) {
	t.Run("complete entry", func(t *testing.T) {
		info, err := GetArmInfo("left_arm", NewMapParameterStore(armInfoAttrs()))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := ArmInfo{
			Name:          "left_arm",
			EEFFrame:      "left_eef",
			GrippingFrame: "left_grip",
			HasFTSensor:   true,
			SensorFrame:   "left_ft",
			SensorTopic:   "left_ft_topic",
		}
		if info != want {
			t.Fatalf("got %+v, want %+v", info, want)
		}
	})

	for _, key := range []string{
		"left_arm/eef_frame",
		"left_arm/gripping_frame",
		"left_arm/has_ft_sensor",
		"left_arm/sensor_frame",
		"left_arm/sensor_topic",
	} {
		t.Run("missing "+key, func(t *testing.T) {
			attrs := armInfoAttrs()
			delete(attrs, key)
			if _, err := GetArmInfo("left_arm", NewMapParameterStore(attrs)); err == nil {
				t.Fatalf("expected error when %s is missing", key)
			}
		})
	}
}
