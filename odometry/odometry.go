// Package odometry estimates the pose and body velocity of a steered
// mobile base from raw wheel measurements, and converts desired body
// velocities into per-wheel traction and steering commands. It supports
// bicycle, tricycle, ackermann and four-wheel-steering configurations.
package odometry

import (
	"math"
	"time"

	"github.com/rovershed/steering/utils"
)

const (
	// Intervals shorter than this are too small for a reliable rate
	// estimate; pose integration still happens.
	minIntervalSec = 1e-4

	// Below this angular displacement the exact arc formulas are ill
	// conditioned and midpoint integration is used instead.
	exactIntegrationEps = 1e-6

	// Steering angles under this magnitude select the straight-line
	// command branch.
	steerEps = 1e-6
)

// SteeringOdometry tracks one vehicle. It is a single-owner object meant
// to be driven by one control loop; concurrent calls must be serialized
// by the caller.
type SteeringOdometry struct {
	timestamp time.Time

	x, y, heading   float64
	linear, angular float64

	wheelRadius     float64
	wheelbase       float64
	wheelTrack      float64
	ySteeringOffset float64

	steerPos float64

	tractionOldPos      float64
	tractionRightOldPos float64
	tractionLeftOldPos  float64

	rollingWindowSize int
	linearMean        *utils.RollingMean
	angularMean       *utils.RollingMean

	config Configuration
}

// NewSteeringOdometry returns an engine smoothing its velocity estimate
// over the given rolling window size. The steering configuration must be
// set before requesting commands.
func NewSteeringOdometry(velocityRollingWindowSize int) *SteeringOdometry {
	return &SteeringOdometry{
		rollingWindowSize: velocityRollingWindowSize,
		linearMean:        utils.NewRollingMean(velocityRollingWindowSize),
		angularMean:       utils.NewRollingMean(velocityRollingWindowSize),
	}
}

// Init clears the velocity filters and stamps the engine with the given
// time.
func (o *SteeringOdometry) Init(t time.Time) {
	o.resetAccumulators()
	o.timestamp = t
}

// SetWheelParams fixes the vehicle geometry. Params are assumed validated.
func (o *SteeringOdometry) SetWheelParams(p WheelParams) {
	o.wheelRadius = p.WheelRadius
	o.wheelbase = p.Wheelbase
	o.wheelTrack = p.WheelTrack
	o.ySteeringOffset = p.YSteeringOffset
}

// SetVelocityRollingWindowSize resizes the velocity filters, discarding
// any accumulated history.
func (o *SteeringOdometry) SetVelocityRollingWindowSize(size int) {
	o.rollingWindowSize = size
	o.resetAccumulators()
}

// SetConfiguration selects the kinematic model used by Commands.
func (o *SteeringOdometry) SetConfiguration(c Configuration) {
	o.config = c
}

// updateOdometry integrates the pose and refreshes the smoothed velocity
// estimate. It reports false when dt is too small to estimate a rate; the
// pose has still been integrated.
func (o *SteeringOdometry) updateOdometry(linearVelocity, angular, dt float64) bool {
	o.integrate(linearVelocity*dt, angular)

	if dt < minIntervalSec {
		return false
	}

	o.linearMean.Add(linearVelocity)
	o.angularMean.Add(angular / dt)
	o.linear = o.linearMean.Mean()
	o.angular = o.angularMean.Mean()
	return true
}

// UpdateFromPosition advances the odometry from a single traction wheel
// position (radians) and a steering position, finite-differencing against
// the previously stored sample. The stored sample is updated even when
// the interval is too small to refresh the velocity estimate.
func (o *SteeringOdometry) UpdateFromPosition(tractionPos, steerPos, dt float64) bool {
	cur := tractionPos * o.wheelRadius
	diff := cur - o.tractionOldPos
	o.tractionOldPos = cur

	linearVelocity := diff / dt
	o.steerPos = steerPos
	angular := math.Tan(steerPos) * linearVelocity / o.wheelbase

	return o.updateOdometry(linearVelocity, angular, dt)
}

// UpdateFromPositions advances the odometry from right and left traction
// wheel positions sharing one steering position.
func (o *SteeringOdometry) UpdateFromPositions(rightPos, leftPos, steerPos, dt float64) bool {
	rightCur := rightPos * o.wheelRadius
	leftCur := leftPos * o.wheelRadius
	rightDiff := rightCur - o.tractionRightOldPos
	leftDiff := leftCur - o.tractionLeftOldPos
	o.tractionRightOldPos = rightCur
	o.tractionLeftOldPos = leftCur

	linearVelocity := (rightDiff + leftDiff) * 0.5 / dt
	o.steerPos = steerPos
	angular := math.Tan(o.steerPos) * linearVelocity / o.wheelbase

	return o.updateOdometry(linearVelocity, angular, dt)
}

// UpdateFromPositionsDualSteer is UpdateFromPositions for a vehicle with
// independently measured right and left steering positions, which are
// averaged into the reference steering angle.
func (o *SteeringOdometry) UpdateFromPositionsDualSteer(rightPos, leftPos, rightSteer, leftSteer, dt float64) bool {
	rightCur := rightPos * o.wheelRadius
	leftCur := leftPos * o.wheelRadius
	rightDiff := rightCur - o.tractionRightOldPos
	leftDiff := leftCur - o.tractionLeftOldPos
	o.tractionRightOldPos = rightCur
	o.tractionLeftOldPos = leftCur

	linearVelocity := (rightDiff + leftDiff) * 0.5 / dt
	o.steerPos = (rightSteer + leftSteer) * 0.5
	angular := math.Tan(o.steerPos) * linearVelocity / o.wheelbase

	return o.updateOdometry(linearVelocity, angular, dt)
}

// UpdateFromVelocity advances the odometry from a single traction wheel
// angular velocity (rad/s) and a steering position.
func (o *SteeringOdometry) UpdateFromVelocity(tractionVel, steerPos, dt float64) bool {
	o.steerPos = steerPos
	linearVelocity := tractionVel * o.wheelRadius
	angular := math.Tan(steerPos) * linearVelocity / o.wheelbase

	return o.updateOdometry(linearVelocity, angular, dt)
}

// UpdateFromVelocities advances the odometry from right and left traction
// wheel angular velocities sharing one steering position.
func (o *SteeringOdometry) UpdateFromVelocities(rightVel, leftVel, steerPos, dt float64) bool {
	linearVelocity := (rightVel + leftVel) * o.wheelRadius * 0.5
	o.steerPos = steerPos
	angular := math.Tan(o.steerPos) * linearVelocity / o.wheelbase

	return o.updateOdometry(linearVelocity, angular, dt)
}

// UpdateFromVelocitiesDualSteer is UpdateFromVelocities with independently
// measured steering positions. The angular rate here uses the averaged
// steering angle directly rather than its tangent.
func (o *SteeringOdometry) UpdateFromVelocitiesDualSteer(rightVel, leftVel, rightSteer, leftSteer, dt float64) bool {
	o.steerPos = (rightSteer + leftSteer) * 0.5
	linearVelocity := (rightVel + leftVel) * o.wheelRadius * 0.5
	angular := o.steerPos * linearVelocity / o.wheelbase

	return o.updateOdometry(linearVelocity, angular, dt)
}

// UpdateFourSteering advances the odometry from four independently steered
// wheels: front-right, front-left, rear-right and rear-left angular
// velocities (rad/s) plus the front and rear steering angles. The axle
// speeds are corrected for a non-zero lateral steering offset, and the
// direction of travel is preserved via the sign of the combined wheel
// speeds.
func (o *SteeringOdometry) UpdateFourSteering(frVel, flVel, rrVel, rlVel, frontSteer, rearSteer, dt float64) bool {
	frontTmp := math.Cos(frontSteer) * (math.Tan(frontSteer) - math.Tan(rearSteer)) / o.wheelbase
	frontLeftTmp := frontTmp / math.Sqrt(1-o.wheelTrack*frontTmp*math.Cos(frontSteer)+
		utils.Square(o.wheelTrack*frontTmp/2))
	frontRightTmp := frontTmp / math.Sqrt(1+o.wheelTrack*frontTmp*math.Cos(frontSteer)+
		utils.Square(o.wheelTrack*frontTmp/2))

	flVelTmp := flVel / (1 - o.ySteeringOffset*frontLeftTmp)
	frVelTmp := frVel / (1 - o.ySteeringOffset*frontRightTmp)

	frontLinearSpeed := o.wheelRadius * math.Copysign(1, flVelTmp+frVelTmp) *
		math.Sqrt((utils.Square(flVel)+utils.Square(frVel))/(2+utils.Square(o.wheelTrack*frontTmp)/2))

	rearTmp := math.Cos(rearSteer) * (math.Tan(frontSteer) - math.Tan(rearSteer)) / o.wheelbase
	rearLeftTmp := rearTmp / math.Sqrt(1-o.wheelTrack*rearTmp*math.Cos(rearSteer)+
		utils.Square(o.wheelTrack*rearTmp/2))
	rearRightTmp := rearTmp / math.Sqrt(1+o.wheelTrack*rearTmp*math.Cos(rearSteer)+
		utils.Square(o.wheelTrack*rearTmp/2))

	rlVelTmp := rlVel / (1 - o.ySteeringOffset*rearLeftTmp)
	rrVelTmp := rrVel / (1 - o.ySteeringOffset*rearRightTmp)

	rearLinearSpeed := o.wheelRadius * math.Copysign(1, rlVelTmp+rrVelTmp) *
		math.Sqrt((utils.Square(rlVelTmp)+utils.Square(rrVelTmp))/(2+utils.Square(o.wheelTrack*rearTmp)/2))

	angular := (frontLinearSpeed*frontTmp + rearLinearSpeed*rearTmp) / 2
	linearX := (frontLinearSpeed*math.Cos(frontSteer) + rearLinearSpeed*math.Cos(rearSteer)) / 2
	linearY := (frontLinearSpeed*math.Sin(frontSteer) - o.wheelbase*angular/2 +
		rearLinearSpeed*math.Sin(rearSteer) + o.wheelbase*angular/2) / 2

	linearVelocity := math.Copysign(1, rearLinearSpeed) * math.Hypot(linearX, linearY)

	return o.updateOdometry(linearVelocity, angular, dt)
}

// UpdateOpenLoop integrates the pose directly from a commanded body
// velocity, bypassing wheel feedback. The command becomes the velocity
// estimate as-is.
func (o *SteeringOdometry) UpdateOpenLoop(linear, angular, dt float64) {
	o.linear = linear
	o.angular = angular
	o.integrate(linear*dt, angular*dt)
}

// ResetOdometry zeros the pose and clears the velocity filters.
func (o *SteeringOdometry) ResetOdometry() {
	o.x = 0
	o.y = 0
	o.heading = 0
	o.resetAccumulators()
}

// X returns the estimated x coordinate in meters.
func (o *SteeringOdometry) X() float64 { return o.x }

// Y returns the estimated y coordinate in meters.
func (o *SteeringOdometry) Y() float64 { return o.y }

// Heading returns the estimated heading in radians, unwrapped.
func (o *SteeringOdometry) Heading() float64 { return o.heading }

// LinearVelocity returns the smoothed linear body velocity in m/s.
func (o *SteeringOdometry) LinearVelocity() float64 { return o.linear }

// AngularVelocity returns the smoothed angular body velocity in rad/s.
func (o *SteeringOdometry) AngularVelocity() float64 { return o.angular }

// Configuration returns the active steering configuration.
func (o *SteeringOdometry) Configuration() Configuration { return o.config }

// steeringAngleFromTwist converts a body twist into the reference steering
// angle. Zero when either component is zero.
func (o *SteeringOdometry) steeringAngleFromTwist(vx, thetaDot float64) float64 {
	if thetaDot == 0 || vx == 0 {
		return 0
	}
	return math.Atan(thetaDot * o.wheelbase / vx)
}

// integrateRungeKutta2 advances the pose by projecting the linear
// displacement along the midpoint heading. Stable when the angular step
// is near zero.
func (o *SteeringOdometry) integrateRungeKutta2(linear, angular float64) {
	direction := o.heading + angular*0.5

	o.x += linear * math.Cos(direction)
	o.y += linear * math.Sin(direction)
	o.heading += angular
}

// integrate applies the closed-form constant-curvature chord update,
// falling back to midpoint integration when the angular step is too small
// for the arc formulas.
func (o *SteeringOdometry) integrate(linear, angular float64) {
	if math.Abs(angular) < exactIntegrationEps {
		o.integrateRungeKutta2(linear, angular)
		return
	}

	headingOld := o.heading
	r := linear / angular
	o.heading += angular
	o.x += r * (math.Sin(o.heading) - math.Sin(headingOld))
	o.y += -r * (math.Cos(o.heading) - math.Cos(headingOld))
}

func (o *SteeringOdometry) resetAccumulators() {
	o.linearMean = utils.NewRollingMean(o.rollingWindowSize)
	o.angularMean = utils.NewRollingMean(o.rollingWindowSize)
}
