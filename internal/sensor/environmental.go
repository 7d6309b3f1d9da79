package sensor

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/physic"

	"github.com/srg/telebridge/internal/telemetry"
)

// Environmental pairs a humidity/temperature device with a
// pressure/temperature device. When secondary is nil the primary device
// serves both roles.
type Environmental struct {
	primary   EnvDriver
	secondary EnvDriver
}

var _ Source = (*Environmental)(nil)

func NewEnvironmental(primary, secondary EnvDriver) *Environmental {
	return &Environmental{primary: primary, secondary: secondary}
}

func (s *Environmental) Name() string { return NameEnvironmental }

func (s *Environmental) Init(ctx context.Context) error {
	if err := s.primary.Open(ctx); err != nil {
		return unavailable(s.Name()+"/primary", err)
	}
	if s.secondary != nil {
		if err := s.secondary.Open(ctx); err != nil {
			return unavailable(s.Name()+"/secondary", err)
		}
	}
	return nil
}

func (s *Environmental) Sample(_ context.Context) ([]telemetry.Sample, error) {
	var primary physic.Env
	if err := s.primary.Sense(&primary); err != nil {
		return nil, &FetchError{Source: s.Name(), Err: fmt.Errorf("primary: %w", err)}
	}

	secondary := primary
	if s.secondary != nil {
		secondary = physic.Env{}
		if err := s.secondary.Sense(&secondary); err != nil {
			return nil, &FetchError{Source: s.Name(), Err: fmt.Errorf("secondary: %w", err)}
		}
	}

	return []telemetry.Sample{
		{Channel: telemetry.ChannelTemperature, Reading: telemetry.Temperature(celsius(primary.Temperature))},
		{Channel: telemetry.ChannelHumidity, Reading: telemetry.Humidity(percentRH(primary.Humidity))},
		{Channel: telemetry.ChannelPressure, Reading: telemetry.Pressure(pascal(secondary.Pressure))},
		{Channel: telemetry.ChannelTemperatureSecondary, Reading: telemetry.Temperature(celsius(secondary.Temperature))},
	}, nil
}

// celsius converts nanokelvin to micro-degrees Celsius.
func celsius(t physic.Temperature) telemetry.Micro {
	return telemetry.Micro((t - physic.ZeroCelsius) / 1000)
}

func percentRH(h physic.RelativeHumidity) telemetry.Micro {
	return telemetry.Micro(int64(h) * telemetry.MicroPerUnit / int64(physic.PercentRH))
}

// pascal converts nanopascal to micropascal.
func pascal(p physic.Pressure) telemetry.Micro {
	return telemetry.Micro(p / 1000)
}
