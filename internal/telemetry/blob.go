package telemetry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/srg/telebridge/internal/gatt"
)

// DefaultBlobCapacity is the size of the blob characteristic buffer.
const DefaultBlobCapacity = 128

// StalePolicy decides what the blob carries for a channel that was not
// refreshed this cycle.
type StalePolicy string

const (
	// StaleKeep repeats the last good value (zero if never read).
	StaleKeep StalePolicy = "keep"
	// StaleBlank leaves the field empty.
	StaleBlank StalePolicy = "blank"
)

// BlobField is one column of the text blob.
type BlobField struct {
	Name    string
	Channel Channel
	// Axis selects the vector component; ignored for scalar channels.
	Axis int
	// Exp is the number of decimal places between Micro and the printed
	// unit; pressure prints in kPa, so Pa micro-units need 9.
	Exp       int
	Precision int
}

// BlobFields is the fixed column order of the blob.
var BlobFields = []BlobField{
	{Name: "temp_env", Channel: ChannelTemperature, Exp: 6, Precision: 1},
	{Name: "humidity", Channel: ChannelHumidity, Exp: 6, Precision: 1},
	{Name: "pressure", Channel: ChannelPressure, Exp: 9, Precision: 3},
	{Name: "temp_secondary", Channel: ChannelTemperatureSecondary, Exp: 6, Precision: 1},
	{Name: "accel_x", Channel: ChannelAcceleration, Axis: 0, Exp: 6, Precision: 2},
	{Name: "accel_y", Channel: ChannelAcceleration, Axis: 1, Exp: 6, Precision: 2},
	{Name: "accel_z", Channel: ChannelAcceleration, Axis: 2, Exp: 6, Precision: 2},
	{Name: "mag_x", Channel: ChannelMagneticField, Axis: 0, Exp: 6, Precision: 3},
	{Name: "mag_y", Channel: ChannelMagneticField, Axis: 1, Exp: 6, Precision: 3},
	{Name: "mag_z", Channel: ChannelMagneticField, Axis: 2, Exp: 6, Precision: 3},
}

// BlobEncoder renders the whole frame as one comma-separated line every
// cycle, truncated to the characteristic capacity.
type BlobEncoder struct {
	handle   gatt.Handle
	capacity int
	stale    StalePolicy
}

var _ Encoder = (*BlobEncoder)(nil)

// NewBlobEncoder binds the blob to h.
func NewBlobEncoder(h gatt.Handle, capacity int, stale StalePolicy) *BlobEncoder {
	if capacity <= 0 {
		capacity = DefaultBlobCapacity
	}
	if stale == "" {
		stale = StaleKeep
	}
	return &BlobEncoder{handle: h, capacity: capacity, stale: stale}
}

// Encode implements Encoder.
func (e *BlobEncoder) Encode(f *Frame) []gatt.Payload {
	data := []byte(e.Format(f))
	if len(data) > e.capacity {
		data = data[:e.capacity]
	}
	return []gatt.Payload{{Handle: e.handle, Data: data}}
}

// Format renders the untruncated blob line.
func (e *BlobEncoder) Format(f *Frame) string {
	var sb strings.Builder
	for i, field := range BlobFields {
		if i > 0 {
			sb.WriteByte(',')
		}
		slot := f.Slot(field.Channel)
		if e.stale == StaleBlank && !slot.Fresh {
			continue
		}
		v := slot.Reading.Value
		if slot.Reading.Kind.Vector() {
			v = slot.Reading.Vec[field.Axis]
		}
		sb.WriteString(FormatFixed(int64(v), field.Exp, field.Precision))
	}
	return sb.String()
}

// FormatFixed prints v/10^exp with precision decimals, rounding half away
// from zero.
func FormatFixed(v int64, exp, precision int) string {
	neg := v < 0
	if neg {
		v = -v
	}
	if drop := exp - precision; drop > 0 {
		d := pow10(drop)
		v = (v + d/2) / d
	} else if drop < 0 {
		v *= pow10(-drop)
	}

	unit := pow10(precision)
	s := strconv.FormatInt(v/unit, 10)
	if precision > 0 {
		s += "." + fmt.Sprintf("%0*d", precision, v%unit)
	}
	if neg && v != 0 {
		s = "-" + s
	}
	return s
}

func pow10(n int) int64 {
	p := int64(1)
	for ; n > 0; n-- {
		p *= 10
	}
	return p
}

// ParseBlob splits a complete blob into named values. Blank fields are
// omitted from the result.
func ParseBlob(data []byte) (map[string]float64, error) {
	parts := strings.Split(string(data), ",")
	if len(parts) != len(BlobFields) {
		return nil, fmt.Errorf("blob: expected %d fields, got %d", len(BlobFields), len(parts))
	}
	out := make(map[string]float64, len(parts))
	for i, p := range parts {
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("blob: field %s: %w", BlobFields[i].Name, err)
		}
		out[BlobFields[i].Name] = v
	}
	return out, nil
}
