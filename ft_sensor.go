package control_toolbox

import (
	"context"
	"fmt"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/spatialmath"
	rdkutils "go.viam.com/rdk/utils"
)

// FTSensorModel exposes a registered end-effector's calibrated wrench
// readings as a sensor component.
var FTSensorModel = resource.NewModel("gct", "control-toolbox", "ft-sensor")

func init() {
	resource.RegisterComponent(sensor.API, FTSensorModel,
		resource.Registration[sensor.Sensor, *FTSensorConfig]{
			Constructor: newFTSensor,
		},
	)
}

// StaticFrameConfig declares one rigid frame of the transform tree. Parents
// must be declared before their children; an empty parent means the world
// frame.
type StaticFrameConfig struct {
	Name         string     `json:"name"`
	Parent       string     `json:"parent,omitempty"`
	Translation  [3]float64 `json:"translation,omitempty"`    // meters
	RollPitchYaw [3]float64 `json:"roll_pitch_yaw,omitempty"` // degrees
}

// FTSensorConfig wires one end-effector's force/torque pipeline.
type FTSensorConfig struct {
	EndEffector        string `json:"end_effector"`
	SensorFrame        string `json:"sensor_frame"`
	GrippingPointFrame string `json:"gripping_point_frame"`
	SensorTopic        string `json:"sensor_topic"`

	// Row-major 6x6 calibration matrix; identity when omitted.
	CalibrationMatrix []float64 `json:"calibration_matrix,omitempty"`

	MaxTransformAttempts int                 `json:"max_transform_attempts,omitempty"`
	Frames               []StaticFrameConfig `json:"frames,omitempty"`

	// Transport selection: in-process bus by default, MQTT when configured.
	MQTT   *MQTTBusConfig      `json:"mqtt,omitempty"`
	Serial *SerialSourceConfig `json:"serial,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *FTSensorConfig) Validate(path string) ([]string, []string, error) {
	if cfg.EndEffector == "" {
		return nil, nil, fmt.Errorf("end_effector must be specified")
	}
	if cfg.SensorFrame == "" {
		return nil, nil, fmt.Errorf("sensor_frame must be specified")
	}
	if cfg.GrippingPointFrame == "" {
		return nil, nil, fmt.Errorf("gripping_point_frame must be specified")
	}
	if cfg.SensorTopic == "" {
		return nil, nil, fmt.Errorf("sensor_topic must be specified")
	}

	if n := len(cfg.CalibrationMatrix); n != 0 && n != 36 {
		return nil, nil, fmt.Errorf("calibration_matrix must have 36 entries (6x6), got %d", n)
	}

	known := map[string]bool{"": true, referenceframe.World: true}
	for i, f := range cfg.Frames {
		if f.Name == "" {
			return nil, nil, fmt.Errorf("frames[%d] is missing a name", i)
		}
		if known[f.Name] {
			return nil, nil, fmt.Errorf("duplicate frame name %s", f.Name)
		}
		if !known[f.Parent] {
			return nil, nil, fmt.Errorf("frame %s references unknown parent %s (declare parents first)", f.Name, f.Parent)
		}
		known[f.Name] = true
	}

	if cfg.Serial != nil && cfg.Serial.Topic == "" {
		cfg.Serial.Topic = cfg.SensorTopic
	}
	if cfg.Serial != nil && cfg.Serial.FrameID == "" {
		cfg.Serial.FrameID = cfg.SensorFrame
	}

	return nil, nil, nil
}

// buildFrameSystem assembles the static transform tree from config.
func (cfg *FTSensorConfig) buildFrameSystem() (*referenceframe.FrameSystem, error) {
	fs := referenceframe.NewEmptyFrameSystem("control_toolbox")

	for _, fc := range cfg.Frames {
		pose := spatialmath.NewPose(
			r3.Vector{X: fc.Translation[0], Y: fc.Translation[1], Z: fc.Translation[2]},
			&spatialmath.EulerAngles{
				Roll:  rdkutils.DegToRad(fc.RollPitchYaw[0]),
				Pitch: rdkutils.DegToRad(fc.RollPitchYaw[1]),
				Yaw:   rdkutils.DegToRad(fc.RollPitchYaw[2]),
			},
		)
		frame, err := referenceframe.NewStaticFrame(fc.Name, pose)
		if err != nil {
			return nil, fmt.Errorf("failed to build frame %s: %w", fc.Name, err)
		}

		parent := fs.World()
		if fc.Parent != "" && fc.Parent != referenceframe.World {
			parent = fs.Frame(fc.Parent)
			if parent == nil {
				return nil, fmt.Errorf("frame %s references unknown parent %s", fc.Name, fc.Parent)
			}
		}
		if err := fs.AddFrame(frame, parent); err != nil {
			return nil, fmt.Errorf("failed to add frame %s: %w", fc.Name, err)
		}
	}

	return fs, nil
}

// parameterStore exposes the component attributes under the parameter keys
// the managers expect.
func (cfg *FTSensorConfig) parameterStore() ParameterStore {
	attrs := rdkutils.AttributeMap{}

	calib := cfg.CalibrationMatrix
	if len(calib) == 0 {
		calib = identityCalibration()
	}
	attrs[cfg.EndEffector+"/sensor_calib"] = calib

	if cfg.MaxTransformAttempts > 0 {
		attrs[paramMaxTFAttempts] = cfg.MaxTransformAttempts
	}

	return NewMapParameterStore(attrs)
}

func identityCalibration() []float64 {
	out := make([]float64, 36)
	for i := 0; i < 6; i++ {
		out[i*6+i] = 1
	}
	return out
}

type ftSensor struct {
	resource.AlwaysRebuild

	name   resource.Name
	logger logging.Logger
	cfg    *FTSensorConfig

	manager  *WrenchManager
	localBus *LocalBus
	mqttBus  *MQTTBus
	serial   *SerialWrenchSource
}

func newFTSensor(
	ctx context.Context,
	deps resource.Dependencies,
	rawConf resource.Config,
	logger logging.Logger,
) (sensor.Sensor, error) {
	conf, err := resource.NativeConfig[*FTSensorConfig](rawConf)
	if err != nil {
		return nil, err
	}

	fs, err := conf.buildFrameSystem()
	if err != nil {
		return nil, err
	}

	s := &ftSensor{
		name:   rawConf.ResourceName(),
		logger: logger,
		cfg:    conf,
	}

	var bus WrenchBus
	if conf.MQTT != nil {
		mqttBus, err := NewMQTTBus(*conf.MQTT, logger)
		if err != nil {
			return nil, err
		}
		s.mqttBus = mqttBus
		bus = mqttBus
	} else {
		s.localBus = NewLocalBus(logger)
		bus = s.localBus
	}

	s.manager = NewWrenchManager(conf.parameterStore(), NewFrameSystemLookup(fs), bus, logger)

	if err := s.manager.InitializeWrenchComm(
		ctx,
		conf.EndEffector, conf.SensorFrame, conf.GrippingPointFrame,
		conf.SensorTopic, conf.EndEffector+"/sensor_calib",
	); err != nil {
		s.closeTransports()
		return nil, err
	}

	if conf.Serial != nil {
		src, err := NewSerialWrenchSource(*conf.Serial, bus, logger)
		if err != nil {
			s.closeTransports()
			return nil, err
		}
		s.serial = src
	}

	logger.Infof("force/torque sensor initialized for end-effector %s on topic %s",
		conf.EndEffector, conf.SensorTopic)
	return s, nil
}

func (s *ftSensor) Name() resource.Name {
	return s.name
}

// Readings reports the latest calibrated wrench at both reference points.
func (s *ftSensor) Readings(ctx context.Context, extra map[string]any) (map[string]any, error) {
	atSensor, err := s.manager.WrenchAtSensorPoint(s.cfg.EndEffector)
	if err != nil {
		return nil, err
	}
	atGripping, err := s.manager.WrenchAtGrippingPoint(s.cfg.EndEffector)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"end_effector":   s.cfg.EndEffector,
		"sensor_point":   wrenchReading(atSensor),
		"gripping_point": wrenchReading(atGripping),
	}, nil
}

func wrenchReading(w Wrench) map[string]any {
	return map[string]any{
		"force_x":  w.Force.X,
		"force_y":  w.Force.Y,
		"force_z":  w.Force.Z,
		"torque_x": w.Torque.X,
		"torque_y": w.Torque.Y,
		"torque_z": w.Torque.Z,
	}
}

func (s *ftSensor) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	switch cmd["command"] {
	case "wrench_at_gripping_point":
		w, err := s.manager.WrenchAtGrippingPoint(s.cfg.EndEffector)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"wrench": wrenchReading(w)}, nil

	case "wrench_at_sensor_point":
		w, err := s.manager.WrenchAtSensorPoint(s.cfg.EndEffector)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"wrench": wrenchReading(w)}, nil

	case "status":
		registered := s.manager.RegisteredEndEffectors()
		out := make([]interface{}, len(registered))
		for i, name := range registered {
			out[i] = name
		}
		return map[string]interface{}{
			"registered_end_effectors": out,
			"sensor_topic":             s.cfg.SensorTopic,
			"converted_topic":          s.cfg.SensorTopic + ConvertedTopicSuffix,
		}, nil

	default:
		return nil, fmt.Errorf("unknown command: %v", cmd["command"])
	}
}

func (s *ftSensor) Close(context.Context) error {
	s.logger.Info("closing force/torque sensor")
	var err error
	if s.serial != nil {
		err = s.serial.Close()
	}
	s.manager.Close()
	s.closeTransports()
	return err
}

func (s *ftSensor) closeTransports() {
	if s.localBus != nil {
		s.localBus.Close()
	}
	if s.mqttBus != nil {
		s.mqttBus.Close()
	}
}
