package gatt

import "strings"

// Properties advertises which operations a characteristic supports.
type Properties uint8

const (
	PropRead Properties = 1 << iota
	PropWrite
	PropNotify
)

// Has reports whether all bits of q are set.
func (p Properties) Has(q Properties) bool {
	return p&q == q
}

// String renders properties as "read,write,notify".
func (p Properties) String() string {
	var names []string
	if p.Has(PropRead) {
		names = append(names, "read")
	}
	if p.Has(PropWrite) {
		names = append(names, "write")
	}
	if p.Has(PropNotify) {
		names = append(names, "notify")
	}
	return strings.Join(names, ",")
}

// Permissions controls what a peer may do with a characteristic value.
type Permissions uint8

const (
	PermRead Permissions = 1 << iota
	PermWrite
)

// Has reports whether all bits of q are set.
func (p Permissions) Has(q Permissions) bool {
	return p&q == q
}

func (p Permissions) String() string {
	var names []string
	if p.Has(PermRead) {
		names = append(names, "read")
	}
	if p.Has(PermWrite) {
		names = append(names, "write")
	}
	return strings.Join(names, ",")
}

// OverflowPolicy decides what a local store does with a payload longer than
// the characteristic capacity.
type OverflowPolicy int

const (
	// OverflowReject refuses the payload with ErrPayloadTooLarge.
	OverflowReject OverflowPolicy = iota
	// OverflowTruncate keeps the first Capacity bytes.
	OverflowTruncate
)

func (o OverflowPolicy) String() string {
	if o == OverflowTruncate {
		return "truncate"
	}
	return "reject"
}
