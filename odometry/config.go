package odometry

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
)

// Configuration selects the kinematic model used when converting a body
// velocity into per-wheel commands.
type Configuration string

// Supported steering configurations.
const (
	Bicycle      Configuration = "bicycle"
	Tricycle     Configuration = "tricycle"
	Ackermann    Configuration = "ackermann"
	FourSteering Configuration = "four_steering"
)

// Validate ensures the configuration names a supported kinematic model.
func (c Configuration) Validate(path string) error {
	switch c {
	case Bicycle, Tricycle, Ackermann, FourSteering:
		return nil
	}
	return goutils.NewConfigValidationError(path, errors.Errorf("unsupported steering configuration %q", c))
}

// WheelParams describes the fixed geometry of a vehicle: all distances in
// meters. YSteeringOffset is the lateral offset between each steering axis
// and its wheel contact point; it may be zero.
type WheelParams struct {
	WheelRadius     float64 `json:"wheel_radius"`
	Wheelbase       float64 `json:"wheelbase"`
	WheelTrack      float64 `json:"wheel_track"`
	YSteeringOffset float64 `json:"y_steering_offset,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (p *WheelParams) Validate(path string) error {
	var err error
	if p.WheelRadius == 0 {
		err = multierr.Combine(err, goutils.NewConfigValidationFieldRequiredError(path, "wheel_radius"))
	} else if p.WheelRadius < 0 {
		err = multierr.Combine(err, goutils.NewConfigValidationError(path, errors.New("wheel_radius must be positive")))
	}
	if p.Wheelbase == 0 {
		err = multierr.Combine(err, goutils.NewConfigValidationFieldRequiredError(path, "wheelbase"))
	} else if p.Wheelbase < 0 {
		err = multierr.Combine(err, goutils.NewConfigValidationError(path, errors.New("wheelbase must be positive")))
	}
	if p.WheelTrack == 0 {
		err = multierr.Combine(err, goutils.NewConfigValidationFieldRequiredError(path, "wheel_track"))
	} else if p.WheelTrack < 0 {
		err = multierr.Combine(err, goutils.NewConfigValidationError(path, errors.New("wheel_track must be positive")))
	}
	return err
}
