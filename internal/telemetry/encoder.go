package telemetry

import "github.com/srg/telebridge/internal/gatt"

// Encoder turns the current frame into payloads for the characteristics it
// was bound to at construction.
type Encoder interface {
	Encode(f *Frame) []gatt.Payload
}
