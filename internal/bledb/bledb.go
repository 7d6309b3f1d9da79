// Package bledb resolves the Bluetooth SIG and vendor UUIDs the bridge exposes
// to human-readable names. Only the assigned numbers the bridge actually
// publishes are listed; anything else resolves to "".
package bledb

import "strings"

// sigBaseSuffix is the tail of the Bluetooth SIG base UUID
// 0000xxxx-0000-1000-8000-00805f9b34fb in normalized form.
const sigBaseSuffix = "00001000800000805f9b34fb"

var services = map[string]string{
	"1800":                             "Generic Access",
	"1801":                             "Generic Attribute",
	"1805":                             "Current Time",
	"181a":                             "Environmental Sensing",
	"6e400001b5a3f393e0a9e50e24dcca9e": "Telemetry Blob",
}

var characteristics = map[string]string{
	"2a2b":                             "Current Time",
	"2a6d":                             "Pressure",
	"2a6e":                             "Temperature",
	"2a6f":                             "Humidity",
	"2aa0":                             "Magnetic Flux Density - 3D",
	"2aa1":                             "Acceleration 3D",
	"6e400003b5a3f393e0a9e50e24dcca9e": "Telemetry Blob",
}

var descriptors = map[string]string{
	"2900": "Characteristic Extended Properties",
	"2901": "Characteristic User Descriptor",
	"2902": "Client Characteristic Configuration",
	"2904": "Characteristic Presentation Format",
}

// NormalizeUUID lowercases a UUID, strips 0x, dashes and braces, and shortens
// UUIDs built on the SIG base to their 16-bit form.
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(strings.TrimSpace(uuid))
	u = strings.TrimPrefix(u, "0x")
	u = strings.ReplaceAll(u, "-", "")
	u = strings.ReplaceAll(u, "{", "")
	u = strings.ReplaceAll(u, "}", "")

	if len(u) == 32 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, sigBaseSuffix) {
		return u[4:8]
	}
	return u
}

// LookupService returns the name of a known service or "".
func LookupService(uuid string) string {
	return services[NormalizeUUID(uuid)]
}

// LookupCharacteristic returns the name of a known characteristic or "".
func LookupCharacteristic(uuid string) string {
	return characteristics[NormalizeUUID(uuid)]
}

// LookupDescriptor returns the name of a known descriptor or "".
func LookupDescriptor(uuid string) string {
	return descriptors[NormalizeUUID(uuid)]
}
