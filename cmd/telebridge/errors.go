package main

import (
	"errors"
	"fmt"

	"github.com/srg/telebridge/internal/sensor"
	"github.com/srg/telebridge/internal/transport/goble"
)

// FormatUserError turns known failures into actionable messages.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, sensor.ErrDeviceUnavailable):
		return fmt.Sprintf("%v\nCheck the sensor wiring and I2C addresses, or run with --sim", err)
	case errors.Is(err, goble.ErrBluetoothOff):
		return "Bluetooth adapter is unavailable or powered off; turn it on and try again"
	case errors.Is(err, goble.ErrUnsupportedPlatform):
		return "BLE peripheral mode is not supported on this platform; use --transport mqtt"
	default:
		return err.Error()
	}
}
