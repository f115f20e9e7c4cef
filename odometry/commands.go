package odometry

import (
	"math"

	"github.com/pkg/errors"
)

// Commands converts a requested velocity into per-wheel traction and
// steering setpoints for the active configuration. When fromTwist is true
// the request is a body twist: vx in m/s and angular in rad/s. Otherwise
// vx and angular are taken directly as the wheel speed and steering angle
// at the reference point. An unrecognized configuration is an error.
//
// Traction speeds are wheel angular velocities in rad/s and steering
// setpoints are angles in radians. Their order per configuration:
//
//	bicycle:       traction {center},              steering {center}
//	tricycle:      traction {right, left},         steering {center}
//	ackermann:     traction {right, left},         steering {right, left}
//	four_steering: traction {fl, fr, rl, rr},      steering {fl, fr, rl, rr}
func (o *SteeringOdometry) Commands(vx, angular float64, fromTwist bool) ([]float64, []float64, error) {
	// Desired wheel speed and steering angle at the middle of the
	// traction and steering axes.
	var ws, alpha float64

	if fromTwist {
		if vx == 0 && angular != 0 {
			// turning on the spot
			alpha = math.Copysign(math.Pi/2, angular)
			ws = math.Abs(angular) * o.wheelbase / o.wheelRadius
		} else {
			alpha = o.steeringAngleFromTwist(vx, angular)
			ws = vx / (o.wheelRadius * math.Cos(o.steerPos))
		}
	} else {
		ws = vx
		alpha = angular
	}

	switch o.config {
	case Bicycle:
		return []float64{ws}, []float64{alpha}, nil

	case Tricycle:
		traction := []float64{ws, ws}
		if math.Abs(o.steerPos) >= steerEps {
			turningRadius := o.wheelbase / math.Tan(o.steerPos)
			traction = []float64{
				ws * (turningRadius + o.wheelTrack*0.5) / turningRadius,
				ws * (turningRadius - o.wheelTrack*0.5) / turningRadius,
			}
		}
		return traction, []float64{alpha}, nil

	case Ackermann:
		if math.Abs(o.steerPos) < steerEps {
			return []float64{ws, ws}, []float64{alpha, alpha}, nil
		}
		turningRadius := o.wheelbase / math.Tan(o.steerPos)
		wr := ws * (turningRadius + o.wheelTrack*0.5) / turningRadius
		wl := ws * (turningRadius - o.wheelTrack*0.5) / turningRadius

		// Inner and outer wheels follow concentric arcs and need
		// different angles.
		numerator := 2 * o.wheelbase * math.Sin(alpha)
		denomCos := 2 * o.wheelbase * math.Cos(alpha)
		denomTrack := o.wheelTrack * math.Sin(alpha)
		alphaRight := math.Atan2(numerator, denomCos-denomTrack)
		alphaLeft := math.Atan2(numerator, denomCos+denomTrack)
		return []float64{wr, wl}, []float64{alphaRight, alphaLeft}, nil

	case FourSteering:
		// Steering axes sit inboard of the wheel contact points by the
		// lateral offset, shrinking the effective track.
		steeringTrack := o.wheelTrack - 2*o.ySteeringOffset
		velSteeringOffset := alpha * o.ySteeringOffset / o.wheelRadius
		sign := math.Copysign(1, ws)

		velLeft := sign*math.Hypot(ws-alpha*steeringTrack/2, o.wheelbase*alpha/2)/o.wheelRadius -
			velSteeringOffset
		velRight := sign*math.Hypot(ws+alpha*steeringTrack/2, o.wheelbase*alpha/2)/o.wheelRadius +
			velSteeringOffset
		traction := []float64{velLeft, velRight, velLeft, velRight}

		var frontLeft, frontRight float64
		switch {
		case math.Abs(2*ws) > math.Abs(alpha*steeringTrack):
			frontLeft = math.Atan(alpha * o.wheelbase / (2*ws - alpha*steeringTrack))
			frontRight = math.Atan(alpha * o.wheelbase / (2*ws + alpha*steeringTrack))
		case math.Abs(ws) > 1e-3:
			frontLeft = math.Copysign(math.Pi/2, alpha)
			frontRight = math.Copysign(math.Pi/2, alpha)
		}
		// Rear wheels mirror the front.
		steering := []float64{frontLeft, frontRight, -frontLeft, -frontRight}
		return traction, steering, nil

	default:
		return nil, nil, errors.Errorf("unsupported steering configuration %q", o.config)
	}
}
