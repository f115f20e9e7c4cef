package utils

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestClamp(t *testing.T) {
	test.That(t, Clamp(0.5, -1, 1), test.ShouldEqual, 0.5)
	test.That(t, Clamp(2, -1, 1), test.ShouldEqual, 1.0)
	test.That(t, Clamp(-2, -1, 1), test.ShouldEqual, -1.0)
	test.That(t, Clamp(-1, -1, 1), test.ShouldEqual, -1.0)
}

func TestAngleConversions(t *testing.T) {
	test.That(t, DegToRad(180), test.ShouldAlmostEqual, math.Pi, 1e-12)
	test.That(t, RadToDeg(math.Pi/2), test.ShouldAlmostEqual, 90, 1e-12)
	test.That(t, Square(-3), test.ShouldEqual, 9.0)
}
