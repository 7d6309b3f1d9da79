// Package sensor samples the physical sensors feeding the bridge. Each Source
// owns one device role and converts driver units into telemetry readings.
package sensor

import (
	"context"

	"periph.io/x/conn/v3/physic"

	"github.com/srg/telebridge/internal/telemetry"
)

// Source is one sampled device role.
type Source interface {
	Name() string
	// Init binds the device and confirms it is ready. Failures wrap
	// ErrDeviceUnavailable.
	Init(ctx context.Context) error
	// Sample fetches the latest values. Failures are *FetchError.
	Sample(ctx context.Context) ([]telemetry.Sample, error)
}

// EnvDriver senses temperature, humidity and pressure.
type EnvDriver interface {
	Open(ctx context.Context) error
	Sense(env *physic.Env) error
}

// MotionDriver reads acceleration in micro-g and rotation in micro-degrees
// per second.
type MotionDriver interface {
	Open(ctx context.Context) error
	ReadAcceleration() (x, y, z int32, err error)
	ReadRotation() (x, y, z int32, err error)
}

// MagnetometerDriver reads the magnetic field in nanotesla.
type MagnetometerDriver interface {
	Open(ctx context.Context) error
	ReadMagneticField() (x, y, z int32, err error)
}

// Names of the three device roles, in sampling order.
const (
	NameEnvironmental = "environmental"
	NameInertial      = "inertial"
	NameMagnetic      = "magnetic"
)
