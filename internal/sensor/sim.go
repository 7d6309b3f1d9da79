package sensor

import (
	"context"
	"errors"
	"math"
	"sync"

	"periph.io/x/conn/v3/physic"
)

// ErrSimulatedFault is returned by simulated drivers on injected failures.
var ErrSimulatedFault = errors.New("simulated fault")

// SimOptions tunes simulated drivers.
type SimOptions struct {
	// FailEvery makes every Nth read fail; 0 never fails.
	FailEvery int
	// FailOpen makes Open fail.
	FailOpen bool
}

type simBase struct {
	mu   sync.Mutex
	opts SimOptions
	open bool
	n    int
}

func (b *simBase) Open(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.opts.FailOpen {
		return ErrSimulatedFault
	}
	b.open = true
	return nil
}

// tick advances the sample counter and reports the phase or an injected fault.
func (b *simBase) tick() (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return 0, errors.New("device not open")
	}
	b.n++
	if b.opts.FailEvery > 0 && b.n%b.opts.FailEvery == 0 {
		return 0, ErrSimulatedFault
	}
	return float64(b.n) / 10, nil
}

// SimEnv produces a slow diurnal-looking environment around 22.5 °C, 45 %RH
// and 101.3 kPa. Offset shifts the temperature so paired devices differ.
type SimEnv struct {
	simBase
	Offset float64
}

var _ EnvDriver = (*SimEnv)(nil)

func NewSimEnv(opts SimOptions, offset float64) *SimEnv {
	return &SimEnv{simBase: simBase{opts: opts}, Offset: offset}
}

func (d *SimEnv) Sense(env *physic.Env) error {
	phase, err := d.tick()
	if err != nil {
		return err
	}
	tempC := 22.5 + d.Offset + 1.5*math.Sin(phase)
	env.Temperature = physic.ZeroCelsius + physic.Temperature(tempC*float64(physic.Kelvin))
	env.Humidity = physic.RelativeHumidity((45 + 5*math.Cos(phase)) * float64(physic.PercentRH))
	env.Pressure = physic.Pressure((101325 + 150*math.Sin(phase/3)) * float64(physic.Pascal))
	return nil
}

// SimMotion reports a device lying flat with a small wobble.
type SimMotion struct {
	simBase
}

var _ MotionDriver = (*SimMotion)(nil)

func NewSimMotion(opts SimOptions) *SimMotion {
	return &SimMotion{simBase: simBase{opts: opts}}
}

func (d *SimMotion) ReadAcceleration() (x, y, z int32, err error) {
	phase, err := d.tick()
	if err != nil {
		return 0, 0, 0, err
	}
	return int32(20_000 * math.Sin(phase)), int32(20_000 * math.Cos(phase)), 980_000, nil
}

func (d *SimMotion) ReadRotation() (x, y, z int32, err error) {
	d.mu.Lock()
	phase := float64(d.n) / 10
	d.mu.Unlock()
	return int32(500_000 * math.Sin(phase)), 0, int32(-250_000 * math.Cos(phase)), nil
}

// SimMagnetometer reports a mid-latitude field.
type SimMagnetometer struct {
	simBase
}

var _ MagnetometerDriver = (*SimMagnetometer)(nil)

func NewSimMagnetometer(opts SimOptions) *SimMagnetometer {
	return &SimMagnetometer{simBase: simBase{opts: opts}}
}

func (d *SimMagnetometer) ReadMagneticField() (x, y, z int32, err error) {
	phase, err := d.tick()
	if err != nil {
		return 0, 0, 0, err
	}
	return int32(12_340 + 200*math.Sin(phase)), int32(-5_210 + 200*math.Cos(phase)), 48_900, nil
}
