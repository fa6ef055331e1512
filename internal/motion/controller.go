// Package motion executes pick-and-place transactions against the planning
// service, the arm actuator and the suction sensor.
//
// A transaction is a linear state machine (see Step) with early abort: the
// first failing call ends it and the error is returned to the caller, who is
// free to continue with the next request. Whatever an aborted transaction
// leaves behind (the arm away from home, an object in the gripper) is cleaned
// up by Recover, which the next transaction also runs first. At most one transaction or
// calibration runs at a time per Controller; a second concurrent call fails
// with types.ErrTransactionInFlight before touching the scene.
package motion

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/mesh-intelligence/pickplace/pkg/types"
)

// Options tunes timing and bounds of the controller.
type Options struct {
	// SettleDelay is waited after every joint configuration sent.
	SettleDelay time.Duration
	// PathStabilize is waited once after the last configuration of a path.
	PathStabilize time.Duration
	// PostPathDelay is waited after the passive shape of a move is removed.
	PostPathDelay time.Duration

	// VisualizePath draws every path in the scene before executing it.
	VisualizePath  bool
	VisualizeHold  time.Duration
	VisualizeSteps int

	// DescentStep is the vertical decrement per descent iteration, in meters.
	DescentStep float64
	// DescentMaxSteps bounds the number of descent iterations.
	DescentMaxSteps int
	// DescentTimeout bounds the elapsed time of the descent. Zero disables
	// the time bound; DescentMaxSteps always applies.
	DescentTimeout time.Duration

	// CalibrationPause is waited after each calibration leg.
	CalibrationPause time.Duration
}

// DefaultOptions returns the timings the scene was tuned with.
func DefaultOptions() Options {
	return Options{
		SettleDelay:      75 * time.Millisecond,
		PathStabilize:    time.Second,
		PostPathDelay:    150 * time.Millisecond,
		VisualizeHold:    3 * time.Second,
		VisualizeSteps:   20,
		DescentStep:      0.001,
		DescentMaxSteps:  400,
		DescentTimeout:   60 * time.Second,
		CalibrationPause: 2 * time.Second,
	}
}

// Controller drives one arm.
type Controller struct {
	planner  types.Planner
	actuator types.Actuator
	sensor   types.GraspSensor
	params   types.Params
	opts     Options

	settler Settler
	logger  *zap.Logger
	now     func() time.Time

	inflight *semaphore.Weighted

	graspMu sync.Mutex
	grasp   GraspState

	// away is the path whose reversal brings the arm home; nil at home.
	// pending is where the held object goes. Both are only touched by the
	// holder of inflight.
	away    types.Trajectory
	pending types.LocationID

	commands atomic.Int64
	toggles  atomic.Int64
}

// Option configures a Controller.
type Option func(*Controller)

// WithSettler replaces the wall-clock settler.
func WithSettler(s Settler) Option {
	return func(c *Controller) { c.settler = s }
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces time.Now for the descent time bound.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a controller. params are the arm parameters read from the
// scene at startup.
func New(planner types.Planner, actuator types.Actuator, sensor types.GraspSensor, params types.Params, opts Options, options ...Option) *Controller {
	c := &Controller{
		planner:  planner,
		actuator: actuator,
		sensor:   sensor,
		params:   params,
		opts:     opts,
		settler:  TimerSettler{},
		logger:   zap.NewNop(),
		now:      time.Now,
		inflight: semaphore.NewWeighted(1),
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// Params returns the arm parameters the controller was created with.
func (c *Controller) Params() types.Params { return c.params }

// Grasp returns the current gripper state.
func (c *Controller) Grasp() GraspState {
	c.graspMu.Lock()
	defer c.graspMu.Unlock()
	return c.grasp
}

// acquire claims the exclusive right to move the arm.
func (c *Controller) acquire() error {
	if !c.inflight.TryAcquire(1) {
		return types.ErrTransactionInFlight
	}
	return nil
}

func (c *Controller) releaseArm() { c.inflight.Release(1) }

func (c *Controller) settle(ctx context.Context, d time.Duration) error {
	return c.settler.Settle(ctx, d)
}
