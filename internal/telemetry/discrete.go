package telemetry

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/srg/telebridge/internal/gatt"
)

// Wire sizes of discrete fields.
const (
	TemperatureSize = 2
	HumiditySize    = 2
	PressureSize    = 4
	VectorSize      = 6
)

// WireSize returns the discrete payload length of kind.
func WireSize(k Kind) int {
	switch k {
	case KindTemperature:
		return TemperatureSize
	case KindHumidity:
		return HumiditySize
	case KindPressure:
		return PressureSize
	case KindAcceleration, KindMagneticField, KindAngularRate:
		return VectorSize
	default:
		return 0
	}
}

// DiscreteEncoder emits one little-endian scaled payload per channel refreshed
// this cycle. Channels that failed produce nothing. Out-of-range values
// saturate to the field width.
type DiscreteEncoder struct {
	bindings map[Channel]gatt.Handle
	logger   *logrus.Logger
}

var _ Encoder = (*DiscreteEncoder)(nil)

// NewDiscreteEncoder binds channels to characteristic handles.
func NewDiscreteEncoder(bindings map[Channel]gatt.Handle, logger *logrus.Logger) *DiscreteEncoder {
	if logger == nil {
		logger = logrus.New()
	}
	return &DiscreteEncoder{bindings: bindings, logger: logger}
}

// Encode implements Encoder.
func (e *DiscreteEncoder) Encode(f *Frame) []gatt.Payload {
	var out []gatt.Payload
	for ch := Channel(0); int(ch) < NumChannels; ch++ {
		h, bound := e.bindings[ch]
		if !bound {
			continue
		}
		slot := f.Slot(ch)
		if !slot.Fresh {
			continue
		}

		data, saturated := EncodeReading(slot.Reading)
		if saturated {
			e.logger.WithFields(logrus.Fields{
				"channel": ch,
				"reading": slot.Reading,
			}).Warn("Reading out of wire range, saturated")
		}
		out = append(out, gatt.Payload{Handle: h, Data: data})
	}
	return out
}

// EncodeReading scales r and packs it little-endian. saturated reports that
// at least one field was clamped.
func EncodeReading(r Reading) (data []byte, saturated bool) {
	switch r.Kind {
	case KindTemperature:
		v, sat := clampInt16(r.Kind.Scaled(r.Value))
		data = binary.LittleEndian.AppendUint16(nil, uint16(v))
		return data, sat
	case KindHumidity:
		v, sat := clampUint(r.Kind.Scaled(r.Value), math.MaxUint16)
		data = binary.LittleEndian.AppendUint16(nil, uint16(v))
		return data, sat
	case KindPressure:
		v, sat := clampUint(r.Kind.Scaled(r.Value), math.MaxUint32)
		data = binary.LittleEndian.AppendUint32(nil, uint32(v))
		return data, sat
	case KindAcceleration, KindMagneticField, KindAngularRate:
		data = make([]byte, 0, VectorSize)
		for _, axis := range r.Vec {
			v, sat := clampInt16(r.Kind.Scaled(axis))
			saturated = saturated || sat
			data = binary.LittleEndian.AppendUint16(data, uint16(v))
		}
		return data, saturated
	default:
		return nil, false
	}
}

// DecodeDiscrete unpacks a discrete payload of kind back into a reading at
// wire resolution.
func DecodeDiscrete(k Kind, data []byte) (Reading, error) {
	if want := WireSize(k); want == 0 || len(data) != want {
		return Reading{}, fmt.Errorf("%s payload: expected %d bytes, got %d", k, want, len(data))
	}
	unscale := func(v int64) Micro { return Micro(v * MicroPerUnit / k.Scale()) }

	switch k {
	case KindTemperature:
		return Temperature(unscale(int64(int16(binary.LittleEndian.Uint16(data))))), nil
	case KindHumidity:
		return Humidity(unscale(int64(binary.LittleEndian.Uint16(data)))), nil
	case KindPressure:
		return Pressure(unscale(int64(binary.LittleEndian.Uint32(data)))), nil
	default:
		var vec Vector
		for i := range vec {
			vec[i] = unscale(int64(int16(binary.LittleEndian.Uint16(data[2*i:]))))
		}
		return Reading{Kind: k, Vec: vec}, nil
	}
}

func clampInt16(v int64) (int16, bool) {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16, true
	case v < math.MinInt16:
		return math.MinInt16, true
	default:
		return int16(v), false
	}
}

func clampUint(v int64, max int64) (int64, bool) {
	switch {
	case v > max:
		return max, true
	case v < 0:
		return 0, true
	default:
		return v, false
	}
}
