package sensor

import (
	"context"
	"fmt"

	"github.com/srg/telebridge/internal/telemetry"
)

// Inertial samples an accelerometer/gyroscope device.
type Inertial struct {
	driver MotionDriver
}

var _ Source = (*Inertial)(nil)

func NewInertial(driver MotionDriver) *Inertial {
	return &Inertial{driver: driver}
}

func (s *Inertial) Name() string { return NameInertial }

func (s *Inertial) Init(ctx context.Context) error {
	if err := s.driver.Open(ctx); err != nil {
		return unavailable(s.Name(), err)
	}
	return nil
}

func (s *Inertial) Sample(_ context.Context) ([]telemetry.Sample, error) {
	ax, ay, az, err := s.driver.ReadAcceleration()
	if err != nil {
		return nil, &FetchError{Source: s.Name(), Err: fmt.Errorf("acceleration: %w", err)}
	}
	gx, gy, gz, err := s.driver.ReadRotation()
	if err != nil {
		return nil, &FetchError{Source: s.Name(), Err: fmt.Errorf("rotation: %w", err)}
	}

	return []telemetry.Sample{
		{Channel: telemetry.ChannelAcceleration, Reading: telemetry.Acceleration(
			telemetry.Micro(ax), telemetry.Micro(ay), telemetry.Micro(az))},
		{Channel: telemetry.ChannelAngularRate, Reading: telemetry.AngularRate(
			telemetry.Micro(gx), telemetry.Micro(gy), telemetry.Micro(gz))},
	}, nil
}

// Magnetic samples a magnetometer.
type Magnetic struct {
	driver MagnetometerDriver
}

var _ Source = (*Magnetic)(nil)

func NewMagnetic(driver MagnetometerDriver) *Magnetic {
	return &Magnetic{driver: driver}
}

func (s *Magnetic) Name() string { return NameMagnetic }

func (s *Magnetic) Init(ctx context.Context) error {
	if err := s.driver.Open(ctx); err != nil {
		return unavailable(s.Name(), err)
	}
	return nil
}

func (s *Magnetic) Sample(_ context.Context) ([]telemetry.Sample, error) {
	x, y, z, err := s.driver.ReadMagneticField()
	if err != nil {
		return nil, &FetchError{Source: s.Name(), Err: err}
	}
	// nanotesla to micro-microtesla
	return []telemetry.Sample{
		{Channel: telemetry.ChannelMagneticField, Reading: telemetry.MagneticField(
			telemetry.Micro(x)*1000, telemetry.Micro(y)*1000, telemetry.Micro(z)*1000)},
	}, nil
}
