// Package control conditions speed commands before they reach actuators,
// clamping them to configured velocity, acceleration and jerk bounds.
package control

import (
	"math"

	"github.com/pkg/errors"

	"github.com/rovershed/steering/utils"
)

// SpeedLimiterConfig enables and bounds each stage of a SpeedLimiter. A
// nil minimum defaults to the negation of the corresponding maximum; an
// enabled stage requires a finite maximum.
type SpeedLimiterConfig struct {
	HasVelocityLimits     bool `json:"has_velocity_limits"`
	HasAccelerationLimits bool `json:"has_acceleration_limits"`
	HasJerkLimits         bool `json:"has_jerk_limits"`

	MinVelocity     *float64 `json:"min_velocity,omitempty"`
	MaxVelocity     *float64 `json:"max_velocity,omitempty"`
	MinAcceleration *float64 `json:"min_acceleration,omitempty"`
	MaxAcceleration *float64 `json:"max_acceleration,omitempty"`
	MinJerk         *float64 `json:"min_jerk,omitempty"`
	MaxJerk         *float64 `json:"max_jerk,omitempty"`
}

// SpeedLimiter clamps a scalar speed signal to velocity, acceleration and
// jerk bounds. It is immutable after construction and holds no per-call
// state, so one limiter may serve concurrent independent signals.
type SpeedLimiter struct {
	hasVelocityLimits     bool
	hasAccelerationLimits bool
	hasJerkLimits         bool

	minVelocity     float64
	maxVelocity     float64
	minAcceleration float64
	maxAcceleration float64
	minJerk         float64
	maxJerk         float64
}

func resolveLimit(name string, min, max *float64) (float64, float64, error) {
	if max == nil || math.IsNaN(*max) || math.IsInf(*max, 0) {
		return 0, 0, errors.Errorf("cannot apply %s limits if max_%s is not specified", name, name)
	}
	lo := -*max
	if min != nil {
		lo = *min
	}
	return lo, *max, nil
}

// NewSpeedLimiter builds a limiter from cfg. Enabling a stage without its
// maximum is a configuration error and no limiter is returned.
func NewSpeedLimiter(cfg SpeedLimiterConfig) (*SpeedLimiter, error) {
	l := &SpeedLimiter{
		hasVelocityLimits:     cfg.HasVelocityLimits,
		hasAccelerationLimits: cfg.HasAccelerationLimits,
		hasJerkLimits:         cfg.HasJerkLimits,
	}

	var err error
	if l.hasVelocityLimits {
		if l.minVelocity, l.maxVelocity, err = resolveLimit("velocity", cfg.MinVelocity, cfg.MaxVelocity); err != nil {
			return nil, err
		}
	}
	if l.hasAccelerationLimits {
		if l.minAcceleration, l.maxAcceleration, err = resolveLimit(
			"acceleration", cfg.MinAcceleration, cfg.MaxAcceleration); err != nil {
			return nil, err
		}
	}
	if l.hasJerkLimits {
		if l.minJerk, l.maxJerk, err = resolveLimit("jerk", cfg.MinJerk, cfg.MaxJerk); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func ratio(after, before float64) float64 {
	if before == 0 {
		return 1.0
	}
	return after / before
}

// Limit clamps v given the previous sample v0, the sample before that v1,
// and the cycle duration dt in seconds, applying the jerk, acceleration
// and velocity stages in that order. It returns the limited value and the
// ratio of the result to the input (1.0 for a zero input); callers use
// the ratio to rescale paired signals by the same factor.
func (l *SpeedLimiter) Limit(v, v0, v1, dt float64) (float64, float64) {
	in := v
	v, _ = l.LimitJerk(v, v0, v1, dt)
	v, _ = l.LimitAcceleration(v, v0, dt)
	v, _ = l.LimitVelocity(v)
	return v, ratio(v, in)
}

// LimitVelocity clamps v to the velocity bounds.
func (l *SpeedLimiter) LimitVelocity(v float64) (float64, float64) {
	in := v
	if l.hasVelocityLimits {
		v = utils.Clamp(v, l.minVelocity, l.maxVelocity)
	}
	return v, ratio(v, in)
}

// LimitAcceleration clamps the change from the previous sample v0 to the
// acceleration bounds scaled by dt.
func (l *SpeedLimiter) LimitAcceleration(v, v0, dt float64) (float64, float64) {
	in := v
	if l.hasAccelerationLimits {
		dv := utils.Clamp(v-v0, l.minAcceleration*dt, l.maxAcceleration*dt)
		v = v0 + dv
	}
	return v, ratio(v, in)
}

// LimitJerk clamps the change in acceleration given the two previous
// samples v0 and v1.
func (l *SpeedLimiter) LimitJerk(v, v0, v1, dt float64) (float64, float64) {
	in := v
	if l.hasJerkLimits {
		dv := v - v0
		dv0 := v0 - v1
		dt2 := 2 * dt * dt
		da := utils.Clamp(dv-dv0, l.minJerk*dt2, l.maxJerk*dt2)
		v = v0 + dv0 + da
	}
	return v, ratio(v, in)
}
