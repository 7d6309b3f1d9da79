package hw

import (
	"context"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"tinygo.org/x/drivers/lis2mdl"
	"tinygo.org/x/drivers/lsm6dsox"

	"github.com/srg/telebridge/internal/sensor"
)

type triple func() (x, y, z int32, err error)

// LSM6DSO is an accelerometer/gyroscope sampled at 208 Hz. The LSM6DSO and
// LSM6DSOX share the register map and identity, so the lsm6dsox driver serves
// both.
type LSM6DSO struct {
	bus  *Bus
	addr uint16

	mu           sync.Mutex
	acceleration triple
	rotation     triple
}

var _ sensor.MotionDriver = (*LSM6DSO)(nil)

// NewLSM6DSO binds the device at addr; zero selects the driver default.
func NewLSM6DSO(bus *Bus, addr uint16) *LSM6DSO {
	if addr == 0 {
		addr = lsm6dsox.Address
	}
	return &LSM6DSO{bus: bus, addr: addr}
}

func (d *LSM6DSO) Open(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.acceleration != nil {
		return nil
	}

	return d.bus.attach(func(b i2c.Bus) error {
		dev := lsm6dsox.New(b)
		dev.Address = d.addr
		if !dev.Connected() {
			return fmt.Errorf("lsm6dso at 0x%02x not responding", d.addr)
		}
		err := dev.Configure(lsm6dsox.Configuration{
			AccelRange:      lsm6dsox.ACCEL_2G,
			AccelSampleRate: lsm6dsox.ACCEL_SR_208,
			GyroRange:       lsm6dsox.GYRO_250DPS,
			GyroSampleRate:  lsm6dsox.GYRO_SR_208,
		})
		if err != nil {
			return fmt.Errorf("lsm6dso at 0x%02x: %w", d.addr, err)
		}

		d.acceleration = dev.ReadAcceleration
		d.rotation = dev.ReadRotation
		return nil
	})
}

// ReadAcceleration returns micro-g.
func (d *LSM6DSO) ReadAcceleration() (x, y, z int32, err error) {
	return d.read(func() triple { return d.acceleration })
}

// ReadRotation returns micro-degrees per second.
func (d *LSM6DSO) ReadRotation() (x, y, z int32, err error) {
	return d.read(func() triple { return d.rotation })
}

func (d *LSM6DSO) read(pick func() triple) (x, y, z int32, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn := pick()
	if fn == nil {
		return 0, 0, 0, errNotOpen
	}
	return fn()
}

func (d *LSM6DSO) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.acceleration == nil {
		return nil
	}
	d.acceleration, d.rotation = nil, nil
	return d.bus.Release()
}

// LIS2MDL is a magnetometer at its default address in continuous 100 Hz mode.
type LIS2MDL struct {
	bus *Bus

	mu    sync.Mutex
	field triple
}

var _ sensor.MagnetometerDriver = (*LIS2MDL)(nil)

func NewLIS2MDL(bus *Bus) *LIS2MDL {
	return &LIS2MDL{bus: bus}
}

func (d *LIS2MDL) Open(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.field != nil {
		return nil
	}

	return d.bus.attach(func(b i2c.Bus) error {
		dev := lis2mdl.New(b)
		if !dev.Connected() {
			return fmt.Errorf("lis2mdl at 0x%02x not responding", dev.Address)
		}
		dev.Configure(lis2mdl.Configuration{DataRate: lis2mdl.DATARATE_100HZ})

		d.field = func() (int32, int32, int32, error) {
			x, y, z := dev.ReadMagneticField()
			return milliGaussToNanoTesla(x), milliGaussToNanoTesla(y), milliGaussToNanoTesla(z), nil
		}
		return nil
	})
}

// 1 mG = 100 nT
func milliGaussToNanoTesla(v int32) int32 {
	return v * 100
}

// ReadMagneticField returns nanotesla.
func (d *LIS2MDL) ReadMagneticField() (x, y, z int32, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.field == nil {
		return 0, 0, 0, errNotOpen
	}
	return d.field()
}

func (d *LIS2MDL) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.field == nil {
		return nil
	}
	d.field = nil
	return d.bus.Release()
}
