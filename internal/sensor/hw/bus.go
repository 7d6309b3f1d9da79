// Package hw binds the sensor roles to real devices on an I2C bus opened
// through periph.io. The environmental role uses either the periph bmxx80
// driver or the TinyGo HTS221/LPS22 drivers, the inertial and magnetic roles
// use TinyGo drivers which accept the periph bus directly.
package hw

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Opener opens the named I2C bus.
type Opener func(name string) (i2c.BusCloser, error)

// OpenHost initializes the periph host drivers and opens name from the
// registry ("" picks the first available bus).
func OpenHost(name string) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", name, err)
	}
	return bus, nil
}

// Bus is a reference-counted I2C bus shared by every device on it.
type Bus struct {
	name   string
	open   Opener
	logger *logrus.Logger

	mu   sync.Mutex
	bus  i2c.BusCloser
	refs int
}

// NewBus prepares the host bus name.
func NewBus(name string, logger *logrus.Logger) *Bus {
	return NewBusWithOpener(name, OpenHost, logger)
}

// NewBusWithOpener prepares a bus opened by open on first use.
func NewBusWithOpener(name string, open Opener, logger *logrus.Logger) *Bus {
	if logger == nil {
		logger = logrus.New()
	}
	return &Bus{name: name, open: open, logger: logger}
}

// Acquire opens the bus on first use.
func (b *Bus) Acquire() (i2c.Bus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bus == nil {
		bus, err := b.open(b.name)
		if err != nil {
			return nil, err
		}
		b.bus = bus
		b.logger.WithField("bus", bus.String()).Debug("I2C bus opened")
	}
	b.refs++
	return b.bus, nil
}

// Release closes the bus once the last device lets go.
func (b *Bus) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.refs == 0 {
		return nil
	}
	b.refs--
	if b.refs > 0 {
		return nil
	}
	err := b.bus.Close()
	b.bus = nil
	return err
}

// attach acquires the bus for a device and runs setup on it. The bus is
// released again when setup fails.
func (b *Bus) attach(setup func(bus i2c.Bus) error) error {
	bus, err := b.Acquire()
	if err != nil {
		return err
	}
	if err := setup(bus); err != nil {
		_ = b.Release()
		return err
	}
	return nil
}

// whoAmI reads the identification register reg of the device at addr.
func whoAmI(bus i2c.Bus, addr uint16, reg byte) (byte, error) {
	id := []byte{0}
	if err := bus.Tx(addr, []byte{reg}, id); err != nil {
		return 0, err
	}
	return id[0], nil
}
