package gatt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvertisement(t *testing.T) {
	tt := newTestTable()
	adv := NewAdvertisement("ZSWatch-Env", tt.table)

	assert.Equal(t, []string{"181a", "1805", "6e400001b5a3f393e0a9e50e24dcca9e"}, adv.ServiceUUIDs)

	data := adv.AdvertisingData()
	assert.Equal(t, []byte{0x02, 0x01, 0x06, 12, 0x09}, data[:5])
	assert.Equal(t, "ZSWatch-Env", string(data[5:]))

	scan, err := adv.ScanResponse()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05, 0x03, 0x1a, 0x18, 0x05, 0x18}, scan[:6], "16-bit list MUST be little endian")
	assert.Equal(t, []byte{0x11, 0x07, 0x9e, 0xca, 0xdc, 0x24}, scan[6:12])
	assert.Len(t, scan, 24)
}

func TestAdvertisement_LongNameIsShortened(t *testing.T) {
	adv := Advertisement{LocalName: strings.Repeat("n", 40)}
	data := adv.AdvertisingData()

	assert.Len(t, data, 31)
	assert.Equal(t, byte(0x08), data[4], "overlong name MUST be advertised as shortened")
}

func TestAdvertisement_InvalidUUID(t *testing.T) {
	_, err := Advertisement{ServiceUUIDs: []string{"xyz"}}.ScanResponse()
	assert.Error(t, err)
}
