// Package telemetry models sensor readings and encodes them into the two wire
// formats the bridge publishes: discrete scaled binary fields and a single
// comma-separated text blob.
package telemetry

import (
	"fmt"
	"math"
)

// Micro is an engineering value in millionths of its unit. Sources convert
// driver units once; all later scaling is integer arithmetic.
type Micro int64

// MicroPerUnit is the number of Micro in one unit.
const MicroPerUnit = 1_000_000

// MicroFromFloat rounds f to the nearest millionth.
func MicroFromFloat(f float64) Micro {
	return Micro(math.Round(f * MicroPerUnit))
}

// Float returns m in whole units.
func (m Micro) Float() float64 {
	return float64(m) / MicroPerUnit
}

// Kind is the physical quantity a Reading carries.
type Kind uint8

const (
	KindTemperature Kind = iota + 1
	KindHumidity
	KindPressure
	KindAcceleration
	KindMagneticField
	KindAngularRate
)

func (k Kind) String() string {
	switch k {
	case KindTemperature:
		return "temperature"
	case KindHumidity:
		return "humidity"
	case KindPressure:
		return "pressure"
	case KindAcceleration:
		return "acceleration"
	case KindMagneticField:
		return "magnetic_field"
	case KindAngularRate:
		return "angular_rate"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Unit is the engineering unit of the kind.
func (k Kind) Unit() string {
	switch k {
	case KindTemperature:
		return "°C"
	case KindHumidity:
		return "%RH"
	case KindPressure:
		return "Pa"
	case KindAcceleration:
		return "g"
	case KindMagneticField:
		return "µT"
	case KindAngularRate:
		return "°/s"
	default:
		return ""
	}
}

// Scale is the wire multiplier of the kind. Pressure travels as whole pascals,
// everything else in hundredths.
func (k Kind) Scale() int64 {
	if k == KindPressure {
		return 1
	}
	return 100
}

// Vector reports whether the kind has three axes.
func (k Kind) Vector() bool {
	return k == KindAcceleration || k == KindMagneticField || k == KindAngularRate
}

// Scaled converts v to wire units, truncating toward zero.
func (k Kind) Scaled(v Micro) int64 {
	return int64(v) * k.Scale() / MicroPerUnit
}

// Vector is an X, Y, Z triple.
type Vector [3]Micro

// Reading is one value of a single kind. Scalar kinds use Value, vector kinds
// use Vec. Build readings with the per-kind constructors.
type Reading struct {
	Kind  Kind
	Value Micro
	Vec   Vector
}

func Temperature(c Micro) Reading { return Reading{Kind: KindTemperature, Value: c} }
func Humidity(rh Micro) Reading   { return Reading{Kind: KindHumidity, Value: rh} }
func Pressure(pa Micro) Reading   { return Reading{Kind: KindPressure, Value: pa} }

func Acceleration(x, y, z Micro) Reading {
	return Reading{Kind: KindAcceleration, Vec: Vector{x, y, z}}
}

func MagneticField(x, y, z Micro) Reading {
	return Reading{Kind: KindMagneticField, Vec: Vector{x, y, z}}
}

func AngularRate(x, y, z Micro) Reading {
	return Reading{Kind: KindAngularRate, Vec: Vector{x, y, z}}
}

func (r Reading) String() string {
	if r.Kind.Vector() {
		return fmt.Sprintf("%s{x=%.3f y=%.3f z=%.3f %s}", r.Kind, r.Vec[0].Float(), r.Vec[1].Float(), r.Vec[2].Float(), r.Kind.Unit())
	}
	return fmt.Sprintf("%s{%.3f %s}", r.Kind, r.Value.Float(), r.Kind.Unit())
}
