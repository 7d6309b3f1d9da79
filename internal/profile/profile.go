// Package profile assembles the attribute table and matching encoder for one
// deployment variant of the bridge.
package profile

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/srg/telebridge/internal/gatt"
	"github.com/srg/telebridge/internal/telemetry"
)

// Scheme selects the wire encoding. A table only ever carries one scheme.
type Scheme string

const (
	SchemeDiscrete Scheme = "discrete"
	SchemeBlob     Scheme = "blob"
)

// Assigned numbers and vendor UUIDs of the exposed services.
const (
	EnvironmentalSensingService = "181a"
	TemperatureUUID             = "2a6e"
	HumidityUUID                = "2a6f"
	PressureUUID                = "2a6d"
	MagneticFlux3DUUID          = "2aa0"
	Acceleration3DUUID          = "2aa1"

	CurrentTimeService = "1805"
	EpochTimeUUID      = "2a2b"

	DefaultBlobService        = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	DefaultBlobCharacteristic = "6e400003-b5a3-f393-e0a9-e50e24dcca9e"
)

// Options describes a variant.
type Options struct {
	Scheme       Scheme
	ClockService bool

	BlobService        string
	BlobCharacteristic string
	BlobCapacity       int
	StalePolicy        telemetry.StalePolicy

	Logger *logrus.Logger
}

// Profile is a built variant: the table, the channel bindings and the encoder
// that targets them.
type Profile struct {
	Scheme   Scheme
	Table    *gatt.Table
	Bindings map[telemetry.Channel]gatt.Handle
	Encoder  telemetry.Encoder
	Clock    *gatt.Clock
}

type discreteCharacteristic struct {
	uuid    string
	channel telemetry.Channel
}

var discreteLayout = []discreteCharacteristic{
	{TemperatureUUID, telemetry.ChannelTemperature},
	{HumidityUUID, telemetry.ChannelHumidity},
	{PressureUUID, telemetry.ChannelPressure},
	{MagneticFlux3DUUID, telemetry.ChannelMagneticField},
	{Acceleration3DUUID, telemetry.ChannelAcceleration},
}

// Build creates the table and encoder for opts.
func Build(opts Options) (*Profile, error) {
	b := gatt.NewTableBuilder()
	p := &Profile{Scheme: opts.Scheme, Bindings: make(map[telemetry.Channel]gatt.Handle)}

	switch opts.Scheme {
	case SchemeDiscrete:
		svc := b.Service(EnvironmentalSensingService)
		for _, c := range discreteLayout {
			p.Bindings[c.channel] = svc.Characteristic(gatt.CharacteristicConfig{
				UUID:        c.uuid,
				Properties:  gatt.PropRead | gatt.PropNotify,
				Permissions: gatt.PermRead,
				Capacity:    telemetry.WireSize(c.channel.Kind()),
				Overflow:    gatt.OverflowReject,
			})
		}
	case SchemeBlob:
		capacity := opts.BlobCapacity
		if capacity <= 0 {
			capacity = telemetry.DefaultBlobCapacity
		}
		svcUUID, charUUID := opts.BlobService, opts.BlobCharacteristic
		if svcUUID == "" {
			svcUUID = DefaultBlobService
		}
		if charUUID == "" {
			charUUID = DefaultBlobCharacteristic
		}
		h := b.Service(svcUUID).Characteristic(gatt.CharacteristicConfig{
			UUID:        charUUID,
			Name:        "Telemetry Blob",
			Properties:  gatt.PropRead | gatt.PropNotify,
			Permissions: gatt.PermRead,
			Capacity:    capacity,
			Overflow:    gatt.OverflowTruncate,
		})
		for _, f := range telemetry.BlobFields {
			p.Bindings[f.Channel] = h
		}
		p.Encoder = telemetry.NewBlobEncoder(h, capacity, opts.StalePolicy)
	default:
		return nil, fmt.Errorf("unknown scheme %q (must be %s or %s)", opts.Scheme, SchemeDiscrete, SchemeBlob)
	}

	clockHandle := gatt.InvalidHandle
	if opts.ClockService {
		clockHandle = b.Service(CurrentTimeService).Characteristic(gatt.CharacteristicConfig{
			UUID:        EpochTimeUUID,
			Properties:  gatt.PropRead | gatt.PropWrite,
			Permissions: gatt.PermRead | gatt.PermWrite,
			Capacity:    gatt.EpochClockSize,
			FixedLength: true,
			Initial:     gatt.EncodeEpoch(0),
		})
	}

	p.Table = b.Build()
	if p.Scheme == SchemeDiscrete {
		p.Encoder = telemetry.NewDiscreteEncoder(p.Bindings, opts.Logger)
	}
	if clockHandle != gatt.InvalidHandle {
		clock, err := gatt.NewClock(p.Table, clockHandle)
		if err != nil {
			return nil, err
		}
		p.Clock = clock
	}
	return p, nil
}
