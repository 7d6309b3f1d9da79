package testutils

import (
	"context"
	"sync"

	"github.com/srg/telebridge/internal/sensor"
	"github.com/srg/telebridge/internal/telemetry"
)

// FakeSource is a scripted sensor.Source.
type FakeSource struct {
	name string

	mu      sync.Mutex
	samples []telemetry.Sample
	initErr error
	err     error
	panics  bool
	inits   int
	calls   int
}

var _ sensor.Source = (*FakeSource)(nil)

func NewFakeSource(name string, samples ...telemetry.Sample) *FakeSource {
	return &FakeSource{name: name, samples: samples}
}

func (f *FakeSource) Name() string { return f.name }

func (f *FakeSource) Init(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	return f.initErr
}

func (f *FakeSource) Sample(context.Context) ([]telemetry.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panics {
		panic("fake source " + f.name + " exploded")
	}
	if f.err != nil {
		return nil, &sensor.FetchError{Source: f.name, Err: f.err}
	}
	return append([]telemetry.Sample(nil), f.samples...), nil
}

// SetSamples replaces what the next Sample returns.
func (f *FakeSource) SetSamples(samples ...telemetry.Sample) *FakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = samples
	return f
}

// FailInit makes Init return err.
func (f *FakeSource) FailInit(err error) *FakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initErr = err
	return f
}

// FailWith makes Sample fail with err (nil restores).
func (f *FakeSource) FailWith(err error) *FakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
	return f
}

// Panic makes Sample panic.
func (f *FakeSource) Panic(p bool) *FakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panics = p
	return f
}

func (f *FakeSource) Inits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inits
}

func (f *FakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// StandardSources returns the three roles producing the reference frame:
// 23.41 °C, 45.2 %RH, 101.325 kPa, 22.9 °C, (0.98, -0.02, 0.05) g and
// (12.34, -5.21, 48.9) µT.
func StandardSources() (env, inertial, magnetic *FakeSource) {
	env = NewFakeSource(sensor.NameEnvironmental,
		telemetry.Sample{Channel: telemetry.ChannelTemperature, Reading: telemetry.Temperature(23_410_000)},
		telemetry.Sample{Channel: telemetry.ChannelHumidity, Reading: telemetry.Humidity(45_200_000)},
		telemetry.Sample{Channel: telemetry.ChannelPressure, Reading: telemetry.Pressure(101_325_000_000)},
		telemetry.Sample{Channel: telemetry.ChannelTemperatureSecondary, Reading: telemetry.Temperature(22_900_000)},
	)
	inertial = NewFakeSource(sensor.NameInertial,
		telemetry.Sample{Channel: telemetry.ChannelAcceleration, Reading: telemetry.Acceleration(980_000, -20_000, 50_000)},
		telemetry.Sample{Channel: telemetry.ChannelAngularRate, Reading: telemetry.AngularRate(1_500_000, 0, -250_000)},
	)
	magnetic = NewFakeSource(sensor.NameMagnetic,
		telemetry.Sample{Channel: telemetry.ChannelMagneticField, Reading: telemetry.MagneticField(12_340_000, -5_210_000, 48_900_000)},
	)
	return env, inertial, magnetic
}
