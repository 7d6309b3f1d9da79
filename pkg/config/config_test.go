package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Equal(t, "telebridge", cfg.DeviceName)
	assert.Equal(t, 2*time.Second, cfg.Period)
	assert.Equal(t, SchemeDiscrete, cfg.Scheme)
	assert.True(t, cfg.ClockService)
	assert.Equal(t, 128, cfg.Blob.Capacity)
	assert.Equal(t, StaleKeep, cfg.Blob.Stale)
	assert.Equal(t, "6e400003-b5a3-f393-e0a9-e50e24dcca9e", cfg.Blob.Characteristic)
	assert.Equal(t, TransportBLE, cfg.Transport.Kind)
	assert.Equal(t, "tcp://localhost:1883", cfg.Transport.MQTT.Broker)
	assert.Equal(t, DriverHardware, cfg.Sensors.Driver)
	assert.Equal(t, uint16(0x76), cfg.Sensors.EnvPrimary)
	assert.Zero(t, cfg.Sensors.EnvSecondary)
	assert.Equal(t, EnvBMxx80, cfg.Sensors.EnvDriver)
	assert.Equal(t, uint16(0x5D), cfg.Sensors.PressureAddress)
	assert.Equal(t, uint16(0x6B), cfg.Sensors.IMUAddress)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telebridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
period: 500ms
scheme: blob
clock_service: false
blob:
  capacity: 64
  stale: blank
transport:
  kind: mqtt
  mqtt:
    broker: tcp://broker:1883
sensors:
  driver: sim
  env_secondary: 119
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, 500*time.Millisecond, cfg.Period)
	assert.Equal(t, SchemeBlob, cfg.Scheme)
	assert.False(t, cfg.ClockService)
	assert.Equal(t, 64, cfg.Blob.Capacity)
	assert.Equal(t, StaleBlank, cfg.Blob.Stale)
	assert.Equal(t, TransportMQTT, cfg.Transport.Kind)
	assert.Equal(t, "tcp://broker:1883", cfg.Transport.MQTT.Broker)
	assert.Equal(t, "telebridge", cfg.Transport.MQTT.TopicPrefix, "unset keys MUST keep their defaults")
	assert.Equal(t, DriverSimulated, cfg.Sensors.Driver)
	assert.Equal(t, uint16(0x76), cfg.Sensors.EnvPrimary)
	assert.Equal(t, uint16(0x77), cfg.Sensors.EnvSecondary)
	assert.NoError(t, cfg.Validate())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("period: [1, 2]\n"), 0o600))
	_, err = Load(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero period", func(c *Config) { c.Period = 0 }, "period must be positive"},
		{"unknown scheme", func(c *Config) { c.Scheme = "json" }, `scheme must be discrete or blob, got "json"`},
		{"blob too small", func(c *Config) { c.Scheme = SchemeBlob; c.Blob.Capacity = 8 }, "blob.capacity must be within 20..512, got 8"},
		{"bad stale policy", func(c *Config) { c.Scheme = SchemeBlob; c.Blob.Stale = "drop" }, "blob.stale must be keep or blank"},
		{"unknown transport", func(c *Config) { c.Transport.Kind = "usb" }, "transport.kind must be ble or mqtt"},
		{"mqtt without broker", func(c *Config) { c.Transport.Kind = TransportMQTT; c.Transport.MQTT.Broker = "" }, "transport.mqtt.broker must be set"},
		{"bad qos", func(c *Config) { c.Transport.MQTT.QoS = 3 }, "transport.mqtt.qos must be 0, 1 or 2"},
		{"unknown driver", func(c *Config) { c.Sensors.Driver = "spi" }, "sensors.driver must be hw or sim"},
		{"unknown env driver", func(c *Config) { c.Sensors.EnvDriver = "sht31" }, `sensors.env_driver must be bmxx80 or hts221, got "sht31"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidateReportsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Period = -time.Second
	cfg.Sensors.Driver = "spi"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "period must be positive")
	assert.Contains(t, err.Error(), "sensors.driver must be hw or sim")
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel logrus.Level
	}{
		{name: "creates logger with debug level", logLevel: logrus.DebugLevel},
		{name: "creates logger with info level", logLevel: logrus.InfoLevel},
		{name: "creates logger with warn level", logLevel: logrus.WarnLevel},
		{name: "creates logger with error level", logLevel: logrus.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}

			logger := cfg.NewLogger()

			assert.NotNil(t, logger)
			assert.Equal(t, tt.logLevel, logger.GetLevel())

			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			assert.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}
