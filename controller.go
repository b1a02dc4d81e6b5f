package control_toolbox

import (
	"sync"
	"time"

	"go.viam.com/rdk/logging"
)

// MaxDT is the longest acceptable gap between control ticks for an active
// goal. Longer gaps are treated as lost communication and abort the goal.
const MaxDT = 500 * time.Millisecond

// Control is the subclass hook of the controller template: the actual
// control law, goal validation, and internal-state reset.
type Control interface {
	// ControlAlgorithm computes the desired joint state from the current one.
	// A finished law reports completion through the template's goal server.
	ControlAlgorithm(current JointState, dt time.Duration) JointState

	// ParseGoal validates goal data; an error rejects the goal.
	ParseGoal(goal any) error

	// ResetController returns the control law to its default state.
	ResetController()
}

// ControllerBase is the generic controller surface consumers tick.
type ControllerBase interface {
	UpdateControl(current JointState, dt time.Duration) JointState
	IsActive() bool
	ResetInternalState()
}

// ControllerTemplate wraps a control law with goal lifecycle management:
// goal acceptance and rejection, preemption, a communication-loss deadline,
// feedback publication, and output sanity checks. While no goal is active it
// holds the last commanded position with zero velocity, so the system never
// emits motion without an accepted, validated goal.
type ControllerTemplate struct {
	name    string
	control Control
	server  GoalServer
	logger  logging.Logger

	mu           sync.Mutex
	lastState    JointState
	hasState     bool
	acquiredGoal bool
	feedback     any
	result       any
}

func NewControllerTemplate(name string, control Control, server GoalServer, logger logging.Logger) *ControllerTemplate {
	c := &ControllerTemplate{
		name:    name,
		control: control,
		server:  server,
		logger:  logger,
	}

	server.RegisterGoalCallback(c.goalCallback)
	server.RegisterPreemptCallback(c.preemptCallback)
	server.Start()

	logger.Infof("%s initialized successfully", name)
	return c
}

// Server exposes the goal server so the control law can report completion.
func (c *ControllerTemplate) Server() GoalServer {
	return c.server
}

// SetFeedback stores the payload published on every active control tick.
func (c *ControllerTemplate) SetFeedback(feedback any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feedback = feedback
}

// SetResult stores the payload attached to terminal goal states.
func (c *ControllerTemplate) SetResult(result any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = result
}

// UpdateControl runs one control tick.
func (c *ControllerTemplate) UpdateControl(current JointState, dt time.Duration) JointState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.server.IsActive() || !c.acquiredGoal {
		return c.lastStateLocked(current)
	}

	if dt > MaxDT {
		c.logger.Errorf("%s did not receive updates for more than %v, aborting", c.name, MaxDT)
		c.server.SetAborted(c.result)
		return c.lastStateLocked(current)
	}

	ret := c.control.ControlAlgorithm(current, dt)
	c.server.PublishFeedback(c.feedback)

	// The control law may have finished the goal during this tick.
	if !c.server.IsActive() {
		c.resetInternalStateLocked()
	}

	if !ret.IsFinite() {
		c.logger.Errorf("invalid joint states in %s", c.name)
		return c.lastStateLocked(current)
	}

	return ret
}

// IsActive reports whether a goal is currently being pursued.
func (c *ControllerTemplate) IsActive() bool {
	return c.server.IsActive()
}

// ResetInternalState clears the goal flags and the control law's state.
func (c *ControllerTemplate) ResetInternalState() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetInternalStateLocked()
}

func (c *ControllerTemplate) resetInternalStateLocked() {
	c.hasState = false
	c.acquiredGoal = false
	c.control.ResetController()
}

// lastStateLocked returns the last commanded joint state. The first valid
// sample seen while idle is cached with velocities zeroed; an empty current
// state falls back to whatever was cached before.
func (c *ControllerTemplate) lastStateLocked(current JointState) JointState {
	if len(current.Positions) == 0 {
		c.logger.Warnf("%s: last state requested with an invalid joint state", c.name)
		return c.lastState
	}

	if !c.hasState {
		c.lastState = current.Clone()
		for i := range c.lastState.Velocities {
			c.lastState.Velocities[i] = 0
		}
		c.hasState = true
	}

	return c.lastState
}

func (c *ControllerTemplate) goalCallback() {
	goal := c.server.AcceptNewGoal()

	if err := c.control.ParseGoal(goal); err != nil {
		c.logger.Errorf("%s rejected goal: %v", c.name, err)
		c.mu.Lock()
		result := c.result
		c.mu.Unlock()
		c.server.SetAborted(result)
		return
	}

	c.mu.Lock()
	c.acquiredGoal = true
	c.hasState = false
	c.mu.Unlock()
	c.logger.Infof("new goal received in %s", c.name)
}

func (c *ControllerTemplate) preemptCallback() {
	c.mu.Lock()
	result := c.result
	c.mu.Unlock()

	c.server.SetPreempted(result)
	c.logger.Warnf("%s preempted", c.name)
	c.ResetInternalState()
}
