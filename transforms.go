package control_toolbox

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/spatialmath"
)

const (
	// DefaultMaxTFAttempts bounds the transform-resolution retry loop when
	// the parameter store does not say otherwise.
	DefaultMaxTFAttempts = 5

	// tfRetryDelay separates consecutive transform-resolution attempts.
	tfRetryDelay = 100 * time.Millisecond

	paramMaxTFAttempts = "wrench_manager/max_tf_attempts"
)

// TransformLookup resolves the rigid transform of one frame expressed in
// another. Lookups can fail transiently while the frame tree is still being
// assembled, so callers retry with a bounded budget.
type TransformLookup interface {
	Transform(from, to string) (spatialmath.Pose, error)
}

// FrameSystemLookup adapts a frame system into a TransformLookup. Only static
// frames participate; all joint inputs are taken as zero.
type FrameSystemLookup struct {
	fs *referenceframe.FrameSystem
}

func NewFrameSystemLookup(fs *referenceframe.FrameSystem) *FrameSystemLookup {
	return &FrameSystemLookup{fs: fs}
}

func (l *FrameSystemLookup) Transform(from, to string) (spatialmath.Pose, error) {
	origin := referenceframe.NewPoseInFrame(from, spatialmath.NewZeroPose())
	tf, err := l.fs.Transform(referenceframe.FrameSystemInputs{}.ToLinearInputs(), origin, to)
	if err != nil {
		return nil, err
	}
	pif, ok := tf.(*referenceframe.PoseInFrame)
	if !ok {
		return nil, errors.Errorf("unexpected transform result %T for %s -> %s", tf, from, to)
	}
	return pif.Pose(), nil
}

// resolveTransform looks up the transform from one frame to another,
// retrying up to attempts times with a fixed delay between tries.
func resolveTransform(
	ctx context.Context,
	lookup TransformLookup,
	from, to string,
	attempts int,
	delay time.Duration,
	clk clock.Clock,
	logger logging.Logger,
) (spatialmath.Pose, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		pose, err := lookup.Transform(from, to)
		if err == nil {
			return pose, nil
		}
		lastErr = err
		logger.Warnf("transform lookup %s -> %s failed: %v", from, to, err)

		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-clk.After(delay):
		}
	}

	return nil, errors.Wrapf(lastErr,
		"could not find the transform between frame %s and frame %s after %d attempts", from, to, attempts)
}

// maxTFAttempts reads the retry budget from the parameter store, warning and
// defaulting when the parameter is absent.
func maxTFAttempts(params ParameterStore, logger logging.Logger) int {
	attempts, ok := params.GetInt(paramMaxTFAttempts)
	if !ok {
		logger.Warnf("missing %s parameter, setting default %d", paramMaxTFAttempts, DefaultMaxTFAttempts)
		return DefaultMaxTFAttempts
	}
	if attempts < 1 {
		logger.Warnf("%s must be positive, got %d; using default %d",
			paramMaxTFAttempts, attempts, DefaultMaxTFAttempts)
		return DefaultMaxTFAttempts
	}
	return attempts
}
