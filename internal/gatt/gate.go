package gatt

import (
	"encoding/binary"
	"fmt"
)

// DescriptorClientConfig is the 16-bit UUID of the Client Characteristic
// Configuration descriptor that carries the notification gate.
const DescriptorClientConfig = "2902"

// GateState is the per-characteristic subscription switch written by the peer.
type GateState uint16

const (
	GateDisabled GateState = 0x0000
	GateEnabled  GateState = 0x0001
)

func (g GateState) String() string {
	switch g {
	case GateDisabled:
		return "disabled"
	case GateEnabled:
		return "enabled"
	default:
		return fmt.Sprintf("gate(0x%04x)", uint16(g))
	}
}

// Bytes returns the 2-byte little-endian descriptor encoding.
func (g GateState) Bytes() []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(g))
	return b
}

// ParseGate decodes a descriptor write. Only 0x0000 and 0x0001 are accepted;
// indications and malformed lengths fail with ErrInvalidDescriptorValue.
func ParseGate(data []byte) (GateState, error) {
	if len(data) != 2 {
		return GateDisabled, fmt.Errorf("%w: expected 2 bytes, got %d", ErrInvalidDescriptorValue, len(data))
	}
	switch v := GateState(binary.LittleEndian.Uint16(data)); v {
	case GateDisabled, GateEnabled:
		return v, nil
	default:
		return GateDisabled, fmt.Errorf("%w: 0x%04x", ErrInvalidDescriptorValue, uint16(v))
	}
}
