package control_toolbox

import (
	"sync"

	"go.viam.com/rdk/logging"
)

// GoalStatus is the terminal or running disposition of a goal.
type GoalStatus string

const (
	GoalStatusNone      GoalStatus = "none"
	GoalStatusActive    GoalStatus = "active"
	GoalStatusSucceeded GoalStatus = "succeeded"
	GoalStatusAborted   GoalStatus = "aborted"
	GoalStatusPreempted GoalStatus = "preempted"
)

// GoalServer is the goal-driven lifecycle surface the controller template
// wraps. It mirrors the simple action server protocol: goals are delivered
// through a registered callback, the controller accepts or aborts them, and
// terminal results are reported back through the server.
type GoalServer interface {
	RegisterGoalCallback(cb func())
	RegisterPreemptCallback(cb func())
	Start()

	// AcceptNewGoal consumes the pending goal and marks the server active.
	AcceptNewGoal() any
	IsActive() bool

	SetSucceeded(result any)
	SetAborted(result any)
	SetPreempted(result any)
	PublishFeedback(feedback any)
}

// SimpleGoalServer is an in-process GoalServer. Clients hand in goals with
// SendGoal and request preemption with Preempt; the wrapped controller sees
// them through the registered callbacks.
type SimpleGoalServer struct {
	name   string
	logger logging.Logger

	mu         sync.Mutex
	goalCB     func()
	preemptCB  func()
	feedbackCB func(any)
	started    bool

	pendingGoal any
	hasPending  bool
	currentGoal any
	active      bool

	lastStatus GoalStatus
	lastResult any
}

func NewSimpleGoalServer(name string, logger logging.Logger) *SimpleGoalServer {
	return &SimpleGoalServer{
		name:       name,
		logger:     logger,
		lastStatus: GoalStatusNone,
	}
}

func (s *SimpleGoalServer) RegisterGoalCallback(cb func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goalCB = cb
}

func (s *SimpleGoalServer) RegisterPreemptCallback(cb func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preemptCB = cb
}

// SetFeedbackHandler installs the consumer of periodic feedback messages.
func (s *SimpleGoalServer) SetFeedbackHandler(cb func(any)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedbackCB = cb
}

// Start enables goal delivery. A goal sent before Start is delivered now.
func (s *SimpleGoalServer) Start() {
	s.mu.Lock()
	s.started = true
	deliver := s.hasPending && s.goalCB != nil
	cb := s.goalCB
	s.mu.Unlock()

	if deliver {
		cb()
	}
}

// SendGoal hands a new goal to the server. If the server is started, the
// goal callback runs on the caller's goroutine before SendGoal returns.
func (s *SimpleGoalServer) SendGoal(goal any) {
	s.mu.Lock()
	s.pendingGoal = goal
	s.hasPending = true
	deliver := s.started && s.goalCB != nil
	cb := s.goalCB
	s.mu.Unlock()

	if deliver {
		cb()
	} else {
		s.logger.Debugf("%s: goal queued until server start", s.name)
	}
}

// Preempt requests cancellation of the active goal.
func (s *SimpleGoalServer) Preempt() {
	s.mu.Lock()
	deliver := s.active && s.preemptCB != nil
	cb := s.preemptCB
	s.mu.Unlock()

	if deliver {
		cb()
	}
}

func (s *SimpleGoalServer) AcceptNewGoal() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasPending {
		s.logger.Warnf("%s: accept requested with no pending goal", s.name)
		return nil
	}
	s.currentGoal = s.pendingGoal
	s.pendingGoal = nil
	s.hasPending = false
	s.active = true
	s.lastStatus = GoalStatusActive
	s.lastResult = nil
	return s.currentGoal
}

func (s *SimpleGoalServer) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *SimpleGoalServer) SetSucceeded(result any) {
	s.finish(GoalStatusSucceeded, result)
}

func (s *SimpleGoalServer) SetAborted(result any) {
	s.finish(GoalStatusAborted, result)
}

func (s *SimpleGoalServer) SetPreempted(result any) {
	s.finish(GoalStatusPreempted, result)
}

func (s *SimpleGoalServer) finish(status GoalStatus, result any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.currentGoal = nil
	s.lastStatus = status
	s.lastResult = result
}

func (s *SimpleGoalServer) PublishFeedback(feedback any) {
	s.mu.Lock()
	cb := s.feedbackCB
	s.mu.Unlock()

	if cb != nil {
		cb(feedback)
	}
}

// LastResult reports the disposition and result of the most recent goal.
func (s *SimpleGoalServer) LastResult() (GoalStatus, any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStatus, s.lastResult
}
