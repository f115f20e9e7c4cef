// Package steered drives a steering odometry engine and speed limiters
// once per control cycle for a steered mobile base: wheel feedback in,
// pose and velocity estimate out, and body velocity requests converted to
// limited per-wheel commands.
package steered

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/rovershed/steering/control"
	"github.com/rovershed/steering/odometry"
	"github.com/rovershed/steering/utils"
)

// Config is how you configure a steered base controller.
type Config struct {
	Wheels                    odometry.WheelParams       `json:"wheels"`
	VelocityRollingWindowSize int                        `json:"velocity_rolling_window_size"`
	SteeringConfig            odometry.Configuration     `json:"steering_config"`
	PositionFeedback          bool                       `json:"position_feedback"`
	OpenLoop                  bool                       `json:"open_loop"`
	LinearLimits              control.SpeedLimiterConfig `json:"linear_limits"`
	AngularLimits             control.SpeedLimiterConfig `json:"angular_limits"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	var err error
	if e := cfg.Wheels.Validate(path + ".wheels"); e != nil {
		err = multierr.Combine(err, e)
	}
	if cfg.VelocityRollingWindowSize <= 0 {
		err = multierr.Combine(err, goutils.NewConfigValidationFieldRequiredError(path, "velocity_rolling_window_size"))
	}
	if e := cfg.SteeringConfig.Validate(path); e != nil {
		err = multierr.Combine(err, e)
	}
	if cfg.SteeringConfig == odometry.FourSteering && cfg.PositionFeedback {
		err = multierr.Combine(err, goutils.NewConfigValidationError(path,
			errors.New("four_steering odometry requires velocity feedback")))
	}
	return err
}

// wheelCounts returns how many traction and steering readings one cycle
// of feedback must carry for the configuration.
func (cfg *Config) wheelCounts() (int, int) {
	switch cfg.SteeringConfig {
	case odometry.Bicycle:
		return 1, 1
	case odometry.Tricycle:
		return 2, 1
	case odometry.Ackermann:
		return 2, 2
	case odometry.FourSteering:
		return 4, 2
	}
	return 0, 0
}

// Measurement is one cycle of raw wheel feedback. Traction readings are
// wheel angular positions in radians under position feedback, angular
// velocities in rad/s otherwise. For four_steering the traction order is
// front-right, front-left, rear-right, rear-left and SteerPositions holds
// the front and rear steering angles; other configurations order traction
// right before left.
type Measurement struct {
	TractionPositions  []float64
	TractionVelocities []float64
	SteerPositions     []float64
}

// State reports the integrated pose and the smoothed body velocity.
// Linear.X is m/s forward; Angular.Z is rad/s about the vertical axis.
type State struct {
	X, Y, Heading float64
	Linear        r3.Vector
	Angular       r3.Vector
}

// Controller owns one odometry engine plus linear and angular speed
// limiters and must be driven by a single control loop.
type Controller struct {
	cfg    Config
	odom   *odometry.SteeringOdometry
	linear *control.SpeedLimiter
	angVel *control.SpeedLimiter

	clk    clock.Clock
	logger golog.Logger

	lastUpdate  time.Time
	lastCommand time.Time

	// last two limited commands, newest first
	lastLinear  [2]float64
	lastAngular [2]float64
}

// NewController wires an odometry engine and command limiters according
// to cfg. The clock drives cycle timing; pass clock.New() outside tests.
func NewController(cfg Config, clk clock.Clock, logger golog.Logger) (*Controller, error) {
	if err := cfg.Validate("steered"); err != nil {
		return nil, err
	}

	linear, err := control.NewSpeedLimiter(cfg.LinearLimits)
	if err != nil {
		return nil, errors.Wrap(err, "linear limits")
	}
	angVel, err := control.NewSpeedLimiter(cfg.AngularLimits)
	if err != nil {
		return nil, errors.Wrap(err, "angular limits")
	}

	odom := odometry.NewSteeringOdometry(cfg.VelocityRollingWindowSize)
	odom.SetWheelParams(cfg.Wheels)
	odom.SetConfiguration(cfg.SteeringConfig)

	now := clk.Now()
	odom.Init(now)

	return &Controller{
		cfg:         cfg,
		odom:        odom,
		linear:      linear,
		angVel:      angVel,
		clk:         clk,
		logger:      logger,
		lastUpdate:  now,
		lastCommand: now,
	}, nil
}

// Update runs one odometry cycle from m, timing the interval off the
// controller's clock. The returned bool is false when the interval was
// too small to refresh the velocity estimate; the pose is still advanced.
func (c *Controller) Update(m Measurement) (State, bool, error) {
	now := c.clk.Now()
	dt := now.Sub(c.lastUpdate).Seconds()
	c.lastUpdate = now

	ok := true
	if c.cfg.OpenLoop {
		c.odom.UpdateOpenLoop(c.lastLinear[0], c.lastAngular[0], dt)
	} else {
		var err error
		if ok, err = c.updateFromMeasurement(m, dt); err != nil {
			return State{}, false, err
		}
	}
	if !ok {
		c.logger.Debugf("interval %.6fs too small to estimate velocity, keeping previous estimate", dt)
	}
	return c.state(), ok, nil
}

func (c *Controller) updateFromMeasurement(m Measurement, dt float64) (bool, error) {
	traction := m.TractionVelocities
	if c.cfg.PositionFeedback {
		traction = m.TractionPositions
	}
	wantTraction, wantSteer := c.cfg.wheelCounts()
	if len(traction) != wantTraction || len(m.SteerPositions) != wantSteer {
		return false, errors.Errorf("%s expects %d traction and %d steering readings, got %d and %d",
			c.cfg.SteeringConfig, wantTraction, wantSteer, len(traction), len(m.SteerPositions))
	}

	switch c.cfg.SteeringConfig {
	case odometry.Bicycle:
		if c.cfg.PositionFeedback {
			return c.odom.UpdateFromPosition(traction[0], m.SteerPositions[0], dt), nil
		}
		return c.odom.UpdateFromVelocity(traction[0], m.SteerPositions[0], dt), nil
	case odometry.Tricycle:
		if c.cfg.PositionFeedback {
			return c.odom.UpdateFromPositions(traction[0], traction[1], m.SteerPositions[0], dt), nil
		}
		return c.odom.UpdateFromVelocities(traction[0], traction[1], m.SteerPositions[0], dt), nil
	case odometry.Ackermann:
		if c.cfg.PositionFeedback {
			return c.odom.UpdateFromPositionsDualSteer(
				traction[0], traction[1], m.SteerPositions[0], m.SteerPositions[1], dt), nil
		}
		return c.odom.UpdateFromVelocitiesDualSteer(
			traction[0], traction[1], m.SteerPositions[0], m.SteerPositions[1], dt), nil
	case odometry.FourSteering:
		return c.odom.UpdateFourSteering(
			traction[0], traction[1], traction[2], traction[3],
			m.SteerPositions[0], m.SteerPositions[1], dt), nil
	}
	return false, errors.Errorf("unsupported steering configuration %q", c.cfg.SteeringConfig)
}

// SetVelocity limits the requested body velocity against the command
// history and converts it into per-wheel traction and steering setpoints.
// linear.X is m/s forward and angular.Z rad/s.
func (c *Controller) SetVelocity(linear, angular r3.Vector) ([]float64, []float64, error) {
	now := c.clk.Now()
	dt := now.Sub(c.lastCommand).Seconds()
	c.lastCommand = now

	c.logger.Debugf("received a SetVelocity with linear.X: %.2f m/s, angular.Z: %.2f rad/s (%.1f deg/s)",
		linear.X, angular.Z, utils.RadToDeg(angular.Z))

	lin, linRatio := c.linear.Limit(linear.X, c.lastLinear[0], c.lastLinear[1], dt)
	ang, angRatio := c.angVel.Limit(angular.Z, c.lastAngular[0], c.lastAngular[1], dt)
	if linRatio != 1.0 || angRatio != 1.0 {
		c.logger.Debugf("command limited: linear ratio %.3f, angular ratio %.3f", linRatio, angRatio)
	}

	c.lastLinear[1], c.lastLinear[0] = c.lastLinear[0], lin
	c.lastAngular[1], c.lastAngular[0] = c.lastAngular[0], ang

	return c.odom.Commands(lin, ang, true)
}

// Reset zeros the pose and discards filter and command history.
func (c *Controller) Reset() {
	c.odom.ResetOdometry()
	c.lastLinear = [2]float64{}
	c.lastAngular = [2]float64{}
}

func (c *Controller) state() State {
	return State{
		X:       c.odom.X(),
		Y:       c.odom.Y(),
		Heading: c.odom.Heading(),
		Linear:  r3.Vector{X: c.odom.LinearVelocity()},
		Angular: r3.Vector{Z: c.odom.AngularVelocity()},
	}
}
