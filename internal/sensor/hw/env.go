package hw

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"tinygo.org/x/drivers/hts221"
	"tinygo.org/x/drivers/lps22hb"

	"github.com/srg/telebridge/internal/sensor"
)

var errNotOpen = errors.New("device not open")

// BMxx80 is an environmental device (BME280, BMP280 or BMP180).
type BMxx80 struct {
	bus  *Bus
	addr uint16

	mu  sync.Mutex
	dev *bmxx80.Dev
}

var _ sensor.EnvDriver = (*BMxx80)(nil)

func NewBMxx80(bus *Bus, addr uint16) *BMxx80 {
	return &BMxx80{bus: bus, addr: addr}
}

// Open binds the device; bmxx80.NewI2C verifies the chip id.
func (d *BMxx80) Open(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev != nil {
		return nil
	}

	return d.bus.attach(func(b i2c.Bus) error {
		dev, err := bmxx80.NewI2C(b, d.addr, &bmxx80.DefaultOpts)
		if err != nil {
			return fmt.Errorf("bmxx80 at 0x%02x: %w", d.addr, err)
		}
		d.dev = dev
		return nil
	})
}

func (d *BMxx80) Sense(env *physic.Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return errNotOpen
	}
	return d.dev.Sense(env)
}

// Close halts the device and releases the bus.
func (d *BMxx80) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return nil
	}
	err := d.dev.Halt()
	d.dev = nil
	return errors.Join(err, d.bus.Release())
}

// HTS221 is a humidity/temperature device at its fixed address, powered in
// block data update mode with one-shot conversions.
type HTS221 struct {
	bus *Bus

	mu  sync.Mutex
	dev *hts221.Device
}

var _ sensor.EnvDriver = (*HTS221)(nil)

func NewHTS221(bus *Bus) *HTS221 {
	return &HTS221{bus: bus}
}

// Open checks the identity and loads the factory calibration.
func (d *HTS221) Open(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev != nil {
		return nil
	}

	return d.bus.attach(func(b i2c.Bus) error {
		dev := hts221.New(b)
		if !dev.Connected() {
			return fmt.Errorf("hts221 at 0x%02x not responding", dev.Address)
		}
		dev.Configure()
		d.dev = &dev
		return nil
	})
}

// Sense fills temperature and humidity.
func (d *HTS221) Sense(env *physic.Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return errNotOpen
	}

	t, err := d.dev.ReadTemperature()
	if err != nil {
		return err
	}
	h, err := d.dev.ReadHumidity()
	if err != nil {
		return err
	}
	env.Temperature = physic.ZeroCelsius + physic.Temperature(t)*physic.MilliCelsius
	// h is hundredths of a percent
	env.Humidity = physic.RelativeHumidity(h) * (physic.PercentRH / 100)
	return nil
}

// Close powers the device down and releases the bus.
func (d *HTS221) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return nil
	}
	d.dev.Power(false)
	d.dev = nil
	return d.bus.Release()
}

const (
	lps22WhoAmIReg = 0x0F
	lps22hbID      = 0xB1
	lps22hhID      = 0xB3
)

// LPS22 is a pressure/temperature device (LPS22HB or LPS22HH) in one-shot
// mode. Both share the output and one-shot registers the lps22hb driver uses.
type LPS22 struct {
	bus  *Bus
	addr uint16

	mu  sync.Mutex
	dev *lps22hb.Device
}

var _ sensor.EnvDriver = (*LPS22)(nil)

// NewLPS22 binds the device at addr; zero selects the driver default.
func NewLPS22(bus *Bus, addr uint16) *LPS22 {
	if addr == 0 {
		addr = lps22hb.LPS22HB_ADDRESS
	}
	return &LPS22{bus: bus, addr: addr}
}

func (d *LPS22) Open(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev != nil {
		return nil
	}

	return d.bus.attach(func(b i2c.Bus) error {
		id, err := whoAmI(b, d.addr, lps22WhoAmIReg)
		if err != nil {
			return fmt.Errorf("lps22 at 0x%02x: %w", d.addr, err)
		}
		if id != lps22hbID && id != lps22hhID {
			return fmt.Errorf("lps22 at 0x%02x: unexpected id 0x%02x", d.addr, id)
		}
		dev := lps22hb.New(b)
		dev.Address = uint8(d.addr)
		dev.Configure()
		d.dev = &dev
		return nil
	})
}

// Sense fills pressure and temperature.
func (d *LPS22) Sense(env *physic.Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return errNotOpen
	}

	// milli-hectopascal, 1 unit = 100 mPa
	p, err := d.dev.ReadPressure()
	if err != nil {
		return err
	}
	t, err := d.dev.ReadTemperature()
	if err != nil {
		return err
	}
	env.Pressure = physic.Pressure(p) * 100 * physic.MilliPascal
	env.Temperature = physic.ZeroCelsius + physic.Temperature(t)*physic.MilliCelsius
	return nil
}

func (d *LPS22) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return nil
	}
	d.dev = nil
	return d.bus.Release()
}
