package control

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func fp(v float64) *float64 { return &v }

func TestSpeedLimiterConstruction(t *testing.T) {
	t.Run("no limits enabled", func(t *testing.T) {
		l, err := NewSpeedLimiter(SpeedLimiterConfig{})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, l, test.ShouldNotBeNil)
	})

	t.Run("enabled limit without max fails", func(t *testing.T) {
		for _, cfg := range []SpeedLimiterConfig{
			{HasVelocityLimits: true},
			{HasAccelerationLimits: true},
			{HasJerkLimits: true},
			{HasVelocityLimits: true, MaxVelocity: fp(math.NaN())},
			{HasVelocityLimits: true, MaxVelocity: fp(math.Inf(1))},
		} {
			l, err := NewSpeedLimiter(cfg)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, l, test.ShouldBeNil)
		}
	})

	t.Run("min defaults to negated max", func(t *testing.T) {
		l, err := NewSpeedLimiter(SpeedLimiterConfig{HasVelocityLimits: true, MaxVelocity: fp(1.0)})
		test.That(t, err, test.ShouldBeNil)
		v, _ := l.LimitVelocity(-5)
		test.That(t, v, test.ShouldEqual, -1.0)
	})

	t.Run("explicit min respected", func(t *testing.T) {
		l, err := NewSpeedLimiter(SpeedLimiterConfig{
			HasVelocityLimits: true, MinVelocity: fp(-0.5), MaxVelocity: fp(1.0),
		})
		test.That(t, err, test.ShouldBeNil)
		v, _ := l.LimitVelocity(-5)
		test.That(t, v, test.ShouldEqual, -0.5)
	})
}

func TestSpeedLimiterDisabledStagesAreNoOps(t *testing.T) {
	l, err := NewSpeedLimiter(SpeedLimiterConfig{})
	test.That(t, err, test.ShouldBeNil)

	v, ratio := l.Limit(1e9, 0, 0, 0.01)
	test.That(t, v, test.ShouldEqual, 1e9)
	test.That(t, ratio, test.ShouldEqual, 1.0)
}

func TestSpeedLimiterVelocity(t *testing.T) {
	l, err := NewSpeedLimiter(SpeedLimiterConfig{HasVelocityLimits: true, MaxVelocity: fp(1.0)})
	test.That(t, err, test.ShouldBeNil)

	t.Run("clamp and ratio", func(t *testing.T) {
		v, ratio := l.Limit(2.0, 0, 0, 0.1)
		test.That(t, v, test.ShouldEqual, 1.0)
		test.That(t, ratio, test.ShouldEqual, 0.5)
	})

	t.Run("idempotent for in-range values", func(t *testing.T) {
		v, ratio := l.Limit(0.7, 0, 0, 0.1)
		test.That(t, v, test.ShouldEqual, 0.7)
		test.That(t, ratio, test.ShouldEqual, 1.0)

		v, ratio = l.Limit(v, 0, 0, 0.1)
		test.That(t, v, test.ShouldEqual, 0.7)
		test.That(t, ratio, test.ShouldEqual, 1.0)
	})

	t.Run("zero input never divides by zero", func(t *testing.T) {
		v, ratio := l.Limit(0, 0.5, 0.5, 0.1)
		test.That(t, v, test.ShouldEqual, 0.0)
		test.That(t, ratio, test.ShouldEqual, 1.0)
		test.That(t, math.IsNaN(ratio), test.ShouldBeFalse)
	})
}

func TestSpeedLimiterAcceleration(t *testing.T) {
	l, err := NewSpeedLimiter(SpeedLimiterConfig{HasAccelerationLimits: true, MaxAcceleration: fp(1.0)})
	test.That(t, err, test.ShouldBeNil)

	// From rest, one second at max acceleration allows a delta of 1.
	v, ratio := l.Limit(5.0, 0, 0, 1.0)
	test.That(t, v, test.ShouldEqual, 1.0)
	test.That(t, ratio, test.ShouldEqual, 0.2)

	// Deceleration bound defaults to the negated max.
	v, _ = l.Limit(-5.0, 0, 0, 1.0)
	test.That(t, v, test.ShouldEqual, -1.0)
}

func TestSpeedLimiterJerk(t *testing.T) {
	l, err := NewSpeedLimiter(SpeedLimiterConfig{HasJerkLimits: true, MaxJerk: fp(0.5)})
	test.That(t, err, test.ShouldBeNil)

	// dv0 = 1, requested dv = 3; the acceleration change is clamped to
	// maxJerk*2*dt^2 = 1, so the result is v0 + dv0 + 1.
	v, _ := l.Limit(4.0, 1.0, 0.0, 1.0)
	test.That(t, v, test.ShouldEqual, 3.0)
}

func TestSpeedLimiterCascadeOrder(t *testing.T) {
	// Jerk must run before acceleration. With v1=-10, v0=0 the jerk stage
	// rebuilds v = v0 + dv0 + da = 9, which the acceleration stage then
	// clamps to 2. Applying acceleration first would clamp to 1 and the
	// jerk stage would rebuild 9.
	l, err := NewSpeedLimiter(SpeedLimiterConfig{
		HasAccelerationLimits: true,
		MaxAcceleration:       fp(2.0),
		HasJerkLimits:         true,
		MaxJerk:               fp(0.5),
	})
	test.That(t, err, test.ShouldBeNil)

	v, ratio := l.Limit(1.0, 0.0, -10.0, 1.0)
	test.That(t, v, test.ShouldEqual, 2.0)
	test.That(t, ratio, test.ShouldEqual, 2.0)
}
