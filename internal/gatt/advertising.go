package gatt

import (
	"encoding/hex"
	"fmt"

	"github.com/srg/telebridge/internal/bledb"
)

// Advertising data structure types.
const (
	adFlags              = 0x01
	adComplete16BitUUIDs = 0x03
	adComplete128BitUUID = 0x07
	adShortenedName      = 0x08
	adCompleteName       = 0x09

	// LE General Discoverable, BR/EDR not supported.
	adFlagsGeneralNoBREDR = 0x06

	maxAdvertisingPayload = 31
)

// Advertisement describes what the peripheral broadcasts for discovery.
type Advertisement struct {
	LocalName    string
	ServiceUUIDs []string
}

// NewAdvertisement advertises name and every service of table.
func NewAdvertisement(name string, table *Table) Advertisement {
	adv := Advertisement{LocalName: name}
	for _, svc := range table.Services() {
		adv.ServiceUUIDs = append(adv.ServiceUUIDs, svc.UUID)
	}
	return adv
}

// AdvertisingData returns the advertising payload: flags followed by the
// local name, shortened if it does not fit.
func (a Advertisement) AdvertisingData() []byte {
	out := []byte{2, adFlags, adFlagsGeneralNoBREDR}

	name := []byte(a.LocalName)
	nameType := byte(adCompleteName)
	if room := maxAdvertisingPayload - len(out) - 2; len(name) > room {
		name = name[:room]
		nameType = adShortenedName
	}
	if len(name) > 0 {
		out = append(out, byte(len(name)+1), nameType)
		out = append(out, name...)
	}
	return out
}

// ScanResponse returns the scan response payload: the complete lists of
// 16-bit and 128-bit service UUIDs, in that order.
func (a Advertisement) ScanResponse() ([]byte, error) {
	var short, long []byte
	for _, uuid := range a.ServiceUUIDs {
		b, err := uuidBytes(uuid)
		if err != nil {
			return nil, err
		}
		if len(b) == 2 {
			short = append(short, b...)
		} else {
			long = append(long, b...)
		}
	}

	var out []byte
	if len(short) > 0 {
		out = append(out, byte(len(short)+1), adComplete16BitUUIDs)
		out = append(out, short...)
	}
	if len(long) > 0 {
		out = append(out, byte(len(long)+1), adComplete128BitUUID)
		out = append(out, long...)
	}
	if len(out) > maxAdvertisingPayload {
		return nil, fmt.Errorf("scan response needs %d bytes, limit is %d", len(out), maxAdvertisingPayload)
	}
	return out, nil
}

// uuidBytes converts a UUID to its little-endian over-the-air form.
func uuidBytes(uuid string) ([]byte, error) {
	u := bledb.NormalizeUUID(uuid)
	b, err := hex.DecodeString(u)
	if err != nil {
		return nil, fmt.Errorf("invalid uuid %q: %w", uuid, err)
	}
	if len(b) != 2 && len(b) != 16 {
		return nil, fmt.Errorf("invalid uuid %q: %d bytes", uuid, len(b))
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return b, nil
}
