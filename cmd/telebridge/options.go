package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/telebridge/internal/profile"
	"github.com/srg/telebridge/internal/telemetry"
	"github.com/srg/telebridge/pkg/config"
)

// loadConfig reads --config and applies every explicitly set flag on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("scheme") {
		cfg.Scheme, _ = flags.GetString("scheme")
	}
	if flags.Changed("name") {
		cfg.DeviceName, _ = flags.GetString("name")
	}
	if flags.Changed("period") {
		cfg.Period, _ = flags.GetDuration("period")
	}
	if flags.Changed("transport") {
		cfg.Transport.Kind, _ = flags.GetString("transport")
	}
	if flags.Changed("broker") {
		cfg.Transport.MQTT.Broker, _ = flags.GetString("broker")
	}
	if flags.Changed("blob-capacity") {
		cfg.Blob.Capacity, _ = flags.GetInt("blob-capacity")
	}
	if flags.Changed("stale") {
		cfg.Blob.Stale, _ = flags.GetString("stale")
	}
	if flags.Changed("no-clock") {
		noClock, _ := flags.GetBool("no-clock")
		cfg.ClockService = !noClock
	}
	if sim, _ := flags.GetBool("sim"); sim {
		cfg.Sensors.Driver = config.DriverSimulated
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// addProfileFlags registers the flags shared by commands that build a profile.
func addProfileFlags(cmd *cobra.Command) {
	cmd.Flags().String("scheme", config.SchemeDiscrete, "Wire encoding (discrete, blob)")
	cmd.Flags().String("name", "telebridge", "Advertised device name")
	cmd.Flags().Int("blob-capacity", 128, "Capacity of the CSV telemetry characteristic in bytes")
	cmd.Flags().String("stale", config.StaleKeep, "CSV fields of sensors that failed this cycle (keep, blank)")
	cmd.Flags().Bool("no-clock", false, "Do not expose the epoch clock service")
}

func profileOptions(cfg *config.Config, logger *logrus.Logger) profile.Options {
	return profile.Options{
		Scheme:             profile.Scheme(cfg.Scheme),
		ClockService:       cfg.ClockService,
		BlobService:        cfg.Blob.Service,
		BlobCharacteristic: cfg.Blob.Characteristic,
		BlobCapacity:       cfg.Blob.Capacity,
		StalePolicy:        telemetry.StalePolicy(cfg.Blob.Stale),
		Logger:             logger,
	}
}
