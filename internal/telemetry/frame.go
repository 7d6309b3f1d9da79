package telemetry

import "fmt"

// Channel is a fixed reading position within a sampling cycle.
type Channel uint8

const (
	ChannelTemperature Channel = iota
	ChannelHumidity
	ChannelPressure
	ChannelTemperatureSecondary
	ChannelAcceleration
	ChannelAngularRate
	ChannelMagneticField

	NumChannels = int(ChannelMagneticField) + 1
)

var channelKinds = [NumChannels]Kind{
	ChannelTemperature:          KindTemperature,
	ChannelHumidity:             KindHumidity,
	ChannelPressure:             KindPressure,
	ChannelTemperatureSecondary: KindTemperature,
	ChannelAcceleration:         KindAcceleration,
	ChannelAngularRate:          KindAngularRate,
	ChannelMagneticField:        KindMagneticField,
}

var channelNames = [NumChannels]string{
	ChannelTemperature:          "temperature",
	ChannelHumidity:             "humidity",
	ChannelPressure:             "pressure",
	ChannelTemperatureSecondary: "temperature_secondary",
	ChannelAcceleration:         "acceleration",
	ChannelAngularRate:          "angular_rate",
	ChannelMagneticField:        "magnetic_field",
}

// Kind is the only kind a channel accepts.
func (c Channel) Kind() Kind {
	if int(c) >= NumChannels {
		return 0
	}
	return channelKinds[c]
}

func (c Channel) String() string {
	if int(c) >= NumChannels {
		return fmt.Sprintf("channel(%d)", uint8(c))
	}
	return channelNames[c]
}

// Sample is a reading produced for a channel.
type Sample struct {
	Channel Channel
	Reading Reading
}

// Slot is the state of one channel: the last good reading, whether it was
// refreshed this cycle, and whether it was ever read.
type Slot struct {
	Reading Reading
	Fresh   bool
	Valid   bool
}

// Frame holds the latest reading of every channel. Only current and previous
// values are kept.
type Frame struct {
	slots [NumChannels]Slot
}

// NewFrame returns a frame with every channel unread.
func NewFrame() *Frame {
	f := &Frame{}
	for i := range f.slots {
		f.slots[i].Reading.Kind = channelKinds[i]
	}
	return f
}

// BeginCycle marks every channel stale, keeping last good readings.
func (f *Frame) BeginCycle() {
	for i := range f.slots {
		f.slots[i].Fresh = false
	}
}

// Apply records s as the fresh value of its channel.
func (f *Frame) Apply(s Sample) error {
	if err := check(s); err != nil {
		return err
	}
	f.slots[s.Channel] = Slot{Reading: s.Reading, Fresh: true, Valid: true}
	return nil
}

// ApplyAll records every sample, or none of them when any is malformed.
func (f *Frame) ApplyAll(samples []Sample) error {
	for _, s := range samples {
		if err := check(s); err != nil {
			return err
		}
	}
	for _, s := range samples {
		f.slots[s.Channel] = Slot{Reading: s.Reading, Fresh: true, Valid: true}
	}
	return nil
}

func check(s Sample) error {
	if int(s.Channel) >= NumChannels {
		return fmt.Errorf("unknown channel %d", s.Channel)
	}
	if want := s.Channel.Kind(); s.Reading.Kind != want {
		return fmt.Errorf("channel %s carries %s, got %s", s.Channel, want, s.Reading.Kind)
	}
	return nil
}

// Slot returns the state of ch.
func (f *Frame) Slot(ch Channel) Slot {
	if int(ch) >= NumChannels {
		return Slot{}
	}
	return f.slots[ch]
}

// Snapshot returns an independent copy.
func (f *Frame) Snapshot() Frame {
	return *f
}
