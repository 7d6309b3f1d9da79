package goble

import "github.com/go-ble/ble/darwin"

func newDefaultDevice() (Peripheral, error) {
	dev, err := darwin.NewDevice()
	if err != nil {
		return nil, NormalizeError(err)
	}
	return dev, nil
}
