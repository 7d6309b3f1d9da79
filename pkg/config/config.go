// Package config holds the bridge configuration: compiled-in defaults,
// an optional YAML file and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	SchemeDiscrete = "discrete"
	SchemeBlob     = "blob"

	StaleKeep  = "keep"
	StaleBlank = "blank"

	TransportBLE  = "ble"
	TransportMQTT = "mqtt"

	DriverHardware  = "hw"
	DriverSimulated = "sim"

	EnvBMxx80 = "bmxx80"
	EnvHTS221 = "hts221"

	MinBlobCapacity = 20
	MaxBlobCapacity = 512
)

// BlobConfig configures the single-characteristic CSV variant.
type BlobConfig struct {
	Capacity       int    `yaml:"capacity" json:"capacity" default:"128"`
	Service        string `yaml:"service" json:"service" default:"6e400001-b5a3-f393-e0a9-e50e24dcca9e"`
	Characteristic string `yaml:"characteristic" json:"characteristic" default:"6e400003-b5a3-f393-e0a9-e50e24dcca9e"`
	Stale          string `yaml:"stale" json:"stale" default:"keep"`
}

// MQTTConfig configures the broker transport.
type MQTTConfig struct {
	Broker      string `yaml:"broker" json:"broker" default:"tcp://localhost:1883"`
	ClientID    string `yaml:"client_id" json:"client_id" default:"telebridge"`
	TopicPrefix string `yaml:"topic_prefix" json:"topic_prefix" default:"telebridge"`
	QoS         byte   `yaml:"qos" json:"qos"`
}

// TransportConfig selects how peers reach the attribute table.
type TransportConfig struct {
	Kind string     `yaml:"kind" json:"kind" default:"ble"`
	MQTT MQTTConfig `yaml:"mqtt" json:"mqtt"`
}

// SensorsConfig selects the sensor drivers.
type SensorsConfig struct {
	Driver string `yaml:"driver" json:"driver" default:"hw"`
	// Bus names the I2C bus; empty picks the first one.
	Bus string `yaml:"bus" json:"bus"`
	// EnvDriver picks the environmental pair: bmxx80, or hts221 for an
	// HTS221 humidity chip next to an LPS22 pressure chip.
	EnvDriver string `yaml:"env_driver" json:"env_driver" default:"bmxx80"`
	// EnvPrimary and EnvSecondary are the bmxx80 addresses. A zero
	// secondary address makes the primary device serve both roles.
	EnvPrimary   uint16 `yaml:"env_primary" json:"env_primary" default:"118"`
	EnvSecondary uint16 `yaml:"env_secondary" json:"env_secondary"`
	// PressureAddress is the LPS22 address used with env_driver hts221.
	PressureAddress uint16 `yaml:"pressure_address" json:"pressure_address" default:"93"`
	// IMUAddress is the LSM6DSO address.
	IMUAddress uint16 `yaml:"imu_address" json:"imu_address" default:"107"`
	// SimFailEvery makes every Nth simulated read fail.
	SimFailEvery int `yaml:"sim_fail_every" json:"sim_fail_every"`
}

// Config holds application configuration
type Config struct {
	LogLevel     logrus.Level    `yaml:"log_level" json:"log_level"`
	DeviceName   string          `yaml:"device_name" json:"device_name" default:"telebridge"`
	Period       time.Duration   `yaml:"period" json:"period" default:"2s"`
	Scheme       string          `yaml:"scheme" json:"scheme" default:"discrete"`
	ClockService bool            `yaml:"clock_service" json:"clock_service" default:"true"`
	Blob         BlobConfig      `yaml:"blob" json:"blob"`
	Transport    TransportConfig `yaml:"transport" json:"transport"`
	Sensors      SensorsConfig   `yaml:"sensors" json:"sensors"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{LogLevel: logrus.InfoLevel}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Period <= 0 {
		errs = append(errs, fmt.Errorf("period must be positive, got %s", c.Period))
	}
	if c.DeviceName == "" {
		errs = append(errs, errors.New("device_name must not be empty"))
	}
	if !oneOf(c.Scheme, SchemeDiscrete, SchemeBlob) {
		errs = append(errs, fmt.Errorf("scheme must be %s or %s, got %q", SchemeDiscrete, SchemeBlob, c.Scheme))
	}
	if c.Scheme == SchemeBlob {
		if c.Blob.Capacity < MinBlobCapacity || c.Blob.Capacity > MaxBlobCapacity {
			errs = append(errs, fmt.Errorf("blob.capacity must be within %d..%d, got %d", MinBlobCapacity, MaxBlobCapacity, c.Blob.Capacity))
		}
		if !oneOf(c.Blob.Stale, StaleKeep, StaleBlank) {
			errs = append(errs, fmt.Errorf("blob.stale must be %s or %s, got %q", StaleKeep, StaleBlank, c.Blob.Stale))
		}
	}
	if !oneOf(c.Transport.Kind, TransportBLE, TransportMQTT) {
		errs = append(errs, fmt.Errorf("transport.kind must be %s or %s, got %q", TransportBLE, TransportMQTT, c.Transport.Kind))
	}
	if c.Transport.Kind == TransportMQTT && c.Transport.MQTT.Broker == "" {
		errs = append(errs, errors.New("transport.mqtt.broker must be set"))
	}
	if c.Transport.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("transport.mqtt.qos must be 0, 1 or 2, got %d", c.Transport.MQTT.QoS))
	}
	if !oneOf(c.Sensors.Driver, DriverHardware, DriverSimulated) {
		errs = append(errs, fmt.Errorf("sensors.driver must be %s or %s, got %q", DriverHardware, DriverSimulated, c.Sensors.Driver))
	}
	if c.Sensors.Driver == DriverHardware && !oneOf(c.Sensors.EnvDriver, EnvBMxx80, EnvHTS221) {
		errs = append(errs, fmt.Errorf("sensors.env_driver must be %s or %s, got %q", EnvBMxx80, EnvHTS221, c.Sensors.EnvDriver))
	}
	return errors.Join(errs...)
}

func oneOf(v string, allowed ...string) bool {
	return slices.Contains(allowed, v)
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
