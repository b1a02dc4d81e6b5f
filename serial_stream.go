package control_toolbox

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.viam.com/rdk/logging"
	goutils "go.viam.com/utils"
)

// SerialSourceConfig configures a serial-attached force/torque sensor feed.
type SerialSourceConfig struct {
	Port     string `json:"port"`
	Baudrate int    `json:"baudrate,omitempty"`
	Topic    string `json:"topic"`
	FrameID  string `json:"frame_id"`
}

// SerialWrenchSource reads newline-delimited readings from a serial-attached
// force/torque sensor ("fx fy fz tx ty tz") and publishes them on a wrench
// bus under a fixed topic and frame id. Malformed lines are skipped.
type SerialWrenchSource struct {
	cfg    SerialSourceConfig
	port   serial.Port
	bus    WrenchBus
	logger logging.Logger
	clk    clock.Clock
	done   chan struct{}
}

func NewSerialWrenchSource(cfg SerialSourceConfig, bus WrenchBus, logger logging.Logger) (*SerialWrenchSource, error) {
	if cfg.Port == "" {
		return nil, errors.New("serial wrench source requires a port")
	}
	if cfg.Topic == "" || cfg.FrameID == "" {
		return nil, errors.New("serial wrench source requires a topic and frame id")
	}
	if cfg.Baudrate == 0 {
		cfg.Baudrate = 115200
	}

	port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.Baudrate})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s", cfg.Port)
	}

	s := &SerialWrenchSource{
		cfg:    cfg,
		port:   port,
		bus:    bus,
		logger: logger,
		clk:    clock.New(),
		done:   make(chan struct{}),
	}

	goutils.PanicCapturingGo(s.readLoop)

	logger.Infof("serial wrench source on %s publishing to %s (frame %s)",
		cfg.Port, cfg.Topic, cfg.FrameID)
	return s, nil
}

func (s *SerialWrenchSource) readLoop() {
	defer close(s.done)

	scanner := bufio.NewScanner(s.port)
	for scanner.Scan() {
		w, err := parseWrenchLine(scanner.Text())
		if err != nil {
			s.logger.Debugf("skipping malformed sensor line: %v", err)
			continue
		}
		msg := WrenchStamped{
			FrameID: s.cfg.FrameID,
			Time:    s.clk.Now(),
			Wrench:  w,
		}
		if err := s.bus.Publish(s.cfg.Topic, msg); err != nil {
			s.logger.Warnf("failed to publish sensor reading: %v", err)
		}
	}
	if err := scanner.Err(); err != nil {
		s.logger.Debugf("serial read loop stopped: %v", err)
	}
}

// Close stops the read loop and releases the port.
func (s *SerialWrenchSource) Close() error {
	err := s.port.Close()
	<-s.done
	return err
}

func parseWrenchLine(line string) (Wrench, error) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) != 6 {
		return Wrench{}, errors.Errorf("expected 6 values, got %d", len(fields))
	}

	var vals [6]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Wrench{}, errors.Wrapf(err, "value %d", i)
		}
		vals[i] = v
	}

	return Wrench{
		Force:  r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]},
		Torque: r3.Vector{X: vals[3], Y: vals[4], Z: vals[5]},
	}, nil
}
