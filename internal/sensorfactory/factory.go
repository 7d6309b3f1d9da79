// Package sensorfactory builds the sensor sources named by the configuration.
package sensorfactory

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/srg/telebridge/internal/sensor"
	"github.com/srg/telebridge/internal/sensor/hw"
	"github.com/srg/telebridge/pkg/config"
)

// SimulatedSecondaryOffset shifts the simulated secondary temperature so the
// two environmental devices are distinguishable.
const SimulatedSecondaryOffset = 0.4

// Set is the ordered list of sources plus whatever must be released on
// shutdown.
type Set struct {
	Sources []sensor.Source
	closers []io.Closer
}

// Close releases every device opened by the set.
func (s *Set) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// New builds the environmental, inertial and magnetic sources, in that order.
// It is a variable so that it can be overridden in tests.
var New = func(cfg config.SensorsConfig, logger *logrus.Logger) (*Set, error) {
	switch cfg.Driver {
	case config.DriverSimulated:
		return newSimulated(cfg), nil
	case config.DriverHardware:
		return newHardware(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown sensor driver %q", cfg.Driver)
	}
}

func newSimulated(cfg config.SensorsConfig) *Set {
	opts := sensor.SimOptions{FailEvery: cfg.SimFailEvery}
	return &Set{
		Sources: []sensor.Source{
			sensor.NewEnvironmental(sensor.NewSimEnv(opts, 0), sensor.NewSimEnv(opts, SimulatedSecondaryOffset)),
			sensor.NewInertial(sensor.NewSimMotion(opts)),
			sensor.NewMagnetic(sensor.NewSimMagnetometer(opts)),
		},
	}
}

func newHardware(cfg config.SensorsConfig, logger *logrus.Logger) (*Set, error) {
	bus := hw.NewBus(cfg.Bus, logger)
	set := &Set{}

	var primary, secondary sensor.EnvDriver
	switch cfg.EnvDriver {
	case config.EnvBMxx80:
		dev := hw.NewBMxx80(bus, cfg.EnvPrimary)
		set.closers = append(set.closers, dev)
		primary = dev
		if cfg.EnvSecondary != 0 {
			dev := hw.NewBMxx80(bus, cfg.EnvSecondary)
			set.closers = append(set.closers, dev)
			secondary = dev
		}
	case config.EnvHTS221:
		humidity := hw.NewHTS221(bus)
		pressure := hw.NewLPS22(bus, cfg.PressureAddress)
		set.closers = append(set.closers, humidity, pressure)
		primary, secondary = humidity, pressure
	default:
		return nil, fmt.Errorf("unknown environmental driver %q", cfg.EnvDriver)
	}

	imu := hw.NewLSM6DSO(bus, cfg.IMUAddress)
	mag := hw.NewLIS2MDL(bus)
	set.closers = append(set.closers, imu, mag)

	set.Sources = []sensor.Source{
		sensor.NewEnvironmental(primary, secondary),
		sensor.NewInertial(imu),
		sensor.NewMagnetic(mag),
	}
	return set, nil
}
