package goble

import "github.com/go-ble/ble/linux"

func newDefaultDevice() (Peripheral, error) {
	dev, err := linux.NewDevice()
	if err != nil {
		return nil, NormalizeError(err)
	}
	return dev, nil
}
