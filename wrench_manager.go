package control_toolbox

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
	"gonum.org/v1/gonum/mat"
)

// ConvertedTopicSuffix is appended to a sensor topic to name the stream of
// calibrated, frame-transformed wrenches republished for diagnostics.
const ConvertedTopicSuffix = "_converted"

type wrenchEntry struct {
	endEffector           string
	sensorFrame           string
	grippingFrame         string
	sensorToGrippingPoint spatialmath.Pose
	calibration           *mat.Dense
	measured              Wrench
	convertedTopic        string
	sub                   Subscription
}

// WrenchManager subscribes to force/torque sensor streams and answers wrench
// queries per end-effector. Calibration is applied once at ingestion and the
// sensor-to-gripping-point transform is resolved once at registration (the
// sensor is rigidly mounted), so queries are O(1).
type WrenchManager struct {
	mu     sync.RWMutex
	params ParameterStore
	lookup TransformLookup
	bus    WrenchBus
	logger logging.Logger
	clk    clock.Clock

	maxAttempts int
	index       *indexManager
	entries     []*wrenchEntry
	byFrame     map[string]*wrenchEntry
}

// NewWrenchManager builds a wrench manager on top of the injected transform
// lookup and wrench bus. The transform retry budget comes from the
// "wrench_manager/max_tf_attempts" parameter (default 5).
func NewWrenchManager(
	params ParameterStore,
	lookup TransformLookup,
	bus WrenchBus,
	logger logging.Logger,
) *WrenchManager {
	return &WrenchManager{
		params:      params,
		lookup:      lookup,
		bus:         bus,
		logger:      logger,
		clk:         clock.New(),
		maxAttempts: maxTFAttempts(params, logger),
		index:       newIndexManager(),
		byFrame:     make(map[string]*wrenchEntry),
	}
}

// InitializeWrenchComm registers a new end-effector's force/torque wiring.
// It fails when the identifier is already registered, when the rigid
// transform from the sensor frame to the gripping-point frame cannot be
// resolved within the retry budget, or when the calibration matrix under
// calibMatrixParam is missing or not 6x6. On success the manager subscribes
// to sensorTopic and republishes converted readings on
// sensorTopic + "_converted".
func (w *WrenchManager) InitializeWrenchComm(
	ctx context.Context,
	endEffector, sensorFrame, grippingPointFrame, sensorTopic, calibMatrixParam string,
) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.index.lookup(endEffector); ok {
		return errors.Wrapf(ErrAlreadyRegistered,
			"cannot initialize wrench subscriber for end-effector %s", endEffector)
	}
	if _, ok := w.byFrame[sensorFrame]; ok {
		return errors.Errorf("sensor frame %s is already wired to another end-effector", sensorFrame)
	}

	sensorToGripping, err := resolveTransform(
		ctx, w.lookup, sensorFrame, grippingPointFrame, w.maxAttempts, tfRetryDelay, w.clk, w.logger)
	if err != nil {
		return err
	}

	calibration, err := ParseMatrixData(w.params, calibMatrixParam)
	if err != nil {
		return errors.Wrapf(err, "missing force torque sensor calibration matrix parameter %s", calibMatrixParam)
	}
	if r, c := calibration.Dims(); r != 6 || c != 6 {
		return errors.Errorf("calibration matrix must be 6x6, got %dx%d", r, c)
	}

	entry := &wrenchEntry{
		endEffector:           endEffector,
		sensorFrame:           sensorFrame,
		grippingFrame:         grippingPointFrame,
		sensorToGrippingPoint: sensorToGripping,
		calibration:           calibration,
		convertedTopic:        sensorTopic + ConvertedTopicSuffix,
	}

	sub, err := w.bus.Subscribe(sensorTopic, w.forceTorqueCB)
	if err != nil {
		return errors.Wrapf(err, "failed to subscribe to sensor topic %s", sensorTopic)
	}
	entry.sub = sub

	// Everything is ok, commit the registration.
	if _, err := w.index.add(endEffector); err != nil {
		sub.Close()
		return err
	}
	w.entries = append(w.entries, entry)
	w.byFrame[sensorFrame] = entry

	w.logger.Infof("initialized wrench comms for end-effector %s (sensor frame %s, topic %s)",
		endEffector, sensorFrame, sensorTopic)
	return nil
}

// forceTorqueCB ingests a raw sensor reading: it matches the message's frame
// id against the registered sensor frames, applies that entry's calibration
// matrix and stores the result. Readings from unregistered frames are logged
// and dropped.
func (w *WrenchManager) forceTorqueCB(msg WrenchStamped) {
	w.mu.Lock()
	defer w.mu.Unlock()

	entry, ok := w.byFrame[msg.FrameID]
	if !ok {
		w.logger.Errorf("got wrench message from sensor at frame %s, which was not configured in the wrench manager",
			msg.FrameID)
		return
	}

	entry.measured = msg.Wrench.ApplyCalibration(entry.calibration)
}

// WrenchAtGrippingPoint returns the last calibrated wrench expressed at the
// end-effector's gripping point, and republishes it on the converted topic
// for diagnostics.
func (w *WrenchManager) WrenchAtGrippingPoint(endEffector string) (Wrench, error) {
	w.mu.RLock()
	i, ok := w.index.lookup(endEffector)
	if !ok {
		w.mu.RUnlock()
		return Wrench{}, errors.Wrap(ErrUnknownEndEffector, endEffector)
	}
	entry := w.entries[i]
	converted := TransformWrench(entry.sensorToGrippingPoint, entry.measured)
	out := WrenchStamped{
		FrameID: entry.grippingFrame,
		Time:    w.clk.Now(),
		Wrench:  converted,
	}
	topic := entry.convertedTopic
	w.mu.RUnlock()

	// Publish outside the lock; bus delivery may run handlers inline.
	if err := w.bus.Publish(topic, out); err != nil {
		w.logger.Warnf("failed to republish converted wrench for %s: %v", endEffector, err)
	}

	return converted, nil
}

// WrenchAtSensorPoint returns the last calibrated wrench in the sensor's own
// frame, without any transform.
func (w *WrenchManager) WrenchAtSensorPoint(endEffector string) (Wrench, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	i, ok := w.index.lookup(endEffector)
	if !ok {
		return Wrench{}, errors.Wrap(ErrUnknownEndEffector, endEffector)
	}
	return w.entries[i].measured, nil
}

// RegisteredEndEffectors lists the identifiers registered so far.
func (w *WrenchManager) RegisteredEndEffectors() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.index.names()
}

// Close drops all sensor subscriptions. Registrations themselves have no
// unregister operation; they live for the process lifetime.
func (w *WrenchManager) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, entry := range w.entries {
		if entry.sub != nil {
			entry.sub.Close()
		}
	}
}

// SetWrenchManager wires an arm's sensor information into the manager. Arms
// without a force/torque sensor are skipped with a warning, mirroring the
// registration glue the toolbox grew up with.
func SetWrenchManager(ctx context.Context, info ArmInfo, manager *WrenchManager) error {
	if !info.HasFTSensor {
		manager.logger.Warnf("end-effector %s has no F/T sensor", info.EEFFrame)
		return nil
	}

	if err := manager.InitializeWrenchComm(
		ctx, info.EEFFrame, info.SensorFrame, info.GrippingFrame,
		info.SensorTopic, info.Name+"/sensor_calib",
	); err != nil {
		return err
	}

	manager.logger.Debugf("successfully initialized wrench comms for arm %s", info.Name)
	return nil
}
