//go:build !linux && !darwin

package goble

func newDefaultDevice() (Peripheral, error) {
	return nil, ErrUnsupportedPlatform
}
