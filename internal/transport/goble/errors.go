package goble

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBluetoothOff is returned when the host adapter is powered down.
	ErrBluetoothOff = errors.New("bluetooth is turned off")
	// ErrUnsupportedPlatform is returned by the default device factory on
	// hosts go-ble has no backend for.
	ErrUnsupportedPlatform = errors.New("no BLE peripheral backend for this platform")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("transport already started")
	// ErrNotStarted is returned by Notify before Start.
	ErrNotStarted = errors.New("transport not started")
)

// NormalizeError maps known go-ble error strings to the sentinels above,
// keeping the original error text.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case msg == "central manager has invalid state: have=4 want=5: is Bluetooth turned on?":
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "bluetooth is turned off"),
		containsIgnoreCase(msg, "peripheral manager has invalid state"):
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "can't init hci"):
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	default:
		return err
	}
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
