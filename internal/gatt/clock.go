package gatt

import (
	"encoding/binary"
	"fmt"
	"time"
)

// EpochClockSize is the wire length of the epoch clock value.
const EpochClockSize = 4

// Clock exposes a peer-settable wall clock: a little-endian uint32 count of
// seconds since the Unix epoch held in a table characteristic. Zero means the
// peer has not set it yet.
type Clock struct {
	table  *Table
	handle Handle
}

// NewClock binds a clock to h, which must be a writable fixed-length
// characteristic of EpochClockSize bytes.
func NewClock(table *Table, h Handle) (*Clock, error) {
	cfg, ok := table.Config(h)
	if !ok {
		return nil, attrError(ATTInvalidHandle, h, "clock characteristic not found")
	}
	if cfg.Capacity != EpochClockSize || !cfg.FixedLength || !cfg.Permissions.Has(PermWrite|PermRead) {
		return nil, fmt.Errorf("gatt: characteristic %s cannot hold an epoch clock", cfg.UUID)
	}
	return &Clock{table: table, handle: h}, nil
}

// Handle returns the characteristic backing the clock.
func (c *Clock) Handle() Handle {
	return c.handle
}

// Read returns the last accepted epoch value, or 0 if unset.
func (c *Clock) Read() uint32 {
	b, err := c.table.Read(c.handle)
	if err != nil || len(b) != EpochClockSize {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// Write accepts exactly EpochClockSize bytes. Any other length fails with
// ErrInvalidLength and leaves the value unchanged.
func (c *Clock) Write(b []byte) error {
	return c.table.PeerWrite(c.handle, b)
}

// Set stores epoch seconds.
func (c *Clock) Set(epoch uint32) error {
	return c.Write(EncodeEpoch(epoch))
}

// Time returns the clock as UTC time and whether it has been set.
func (c *Clock) Time() (time.Time, bool) {
	v := c.Read()
	if v == 0 {
		return time.Time{}, false
	}
	return time.Unix(int64(v), 0).UTC(), true
}

// EncodeEpoch returns the 4-byte little-endian wire form of epoch.
func EncodeEpoch(epoch uint32) []byte {
	b := make([]byte, EpochClockSize)
	binary.LittleEndian.PutUint32(b, epoch)
	return b
}
