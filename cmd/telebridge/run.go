package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/telebridge/internal/dashboard"
	"github.com/srg/telebridge/internal/gatt"
	"github.com/srg/telebridge/internal/groutine"
	"github.com/srg/telebridge/internal/profile"
	"github.com/srg/telebridge/internal/scheduler"
	"github.com/srg/telebridge/internal/sensorfactory"
	"github.com/srg/telebridge/internal/transportfactory"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start sampling sensors and serving telemetry to peers",
	Long: `Initializes every sensor, registers the attribute table with the
transport, starts advertising and then samples, encodes and notifies on a
fixed period until interrupted.

A sensor that cannot be initialized is fatal. Sensors that fail later are
skipped for the cycle and reported; the other readings are still delivered.`,
	Example: `  telebridge run --sim --dashboard
  telebridge run --scheme blob --blob-capacity 64
  telebridge run --transport mqtt --broker tcp://localhost:1883 --sim`,
	Args: cobra.NoArgs,
	RunE: runBridge,
}

func init() {
	addProfileFlags(runCmd)
	runCmd.Flags().Duration("period", scheduler.DefaultPeriod, "Sampling period")
	runCmd.Flags().String("transport", "ble", "Peer transport (ble, mqtt)")
	runCmd.Flags().String("broker", "", "MQTT broker URL (with --transport mqtt)")
	runCmd.Flags().Bool("sim", false, "Use simulated sensors")
	runCmd.Flags().Bool("dashboard", false, "Render a console dashboard every cycle")
	runCmd.Flags().Bool("verbose", false, "Verbose output")
}

func runBridge(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := configureLogger(cmd, cfg, "verbose")
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := profile.Build(profileOptions(cfg, logger))
	if err != nil {
		return err
	}

	sensors, err := sensorfactory.New(cfg.Sensors, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sensors.Close(); err != nil {
			logger.WithError(err).Warn("Failed to release sensors")
		}
	}()

	transport, err := transportfactory.New(cfg, logger)
	if err != nil {
		return err
	}
	dispatcher := gatt.NewDispatcher(p.Table, transport, logger)
	if p.Clock != nil {
		dispatcher.WithClock(p.Clock)
	}

	sched := scheduler.New(sensors.Sources, p.Encoder, dispatcher,
		scheduler.WithPeriod(cfg.Period),
		scheduler.WithLogger(logger),
		scheduler.WithClock(p.Clock),
	)
	if err := sched.Init(ctx); err != nil {
		return err
	}

	adv := gatt.NewAdvertisement(cfg.DeviceName, p.Table)
	if err := transport.Start(ctx, p.Table, adv, dispatcher); err != nil {
		return err
	}
	defer func() {
		if err := transport.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close transport")
		}
	}()

	logger.WithFields(logrus.Fields{
		"name":      cfg.DeviceName,
		"scheme":    cfg.Scheme,
		"transport": cfg.Transport.Kind,
		"period":    cfg.Period,
	}).Info("Bridge started")

	observers := groutine.NewGroup(ctx)
	if show, _ := cmd.Flags().GetBool("dashboard"); show {
		dash := dashboard.New(cmd.OutOrStdout())
		observers.Go("dashboard", func(ctx context.Context) {
			if err := dash.Run(ctx, sched.Reports()); err != nil && ctx.Err() == nil {
				logger.WithError(err).Warn("Dashboard stopped")
			}
		})
	}

	start := time.Now()
	err = sched.Run(ctx)
	observers.Wait()

	stats := dispatcher.Stats()
	logger.WithFields(logrus.Fields{
		"uptime":           time.Since(start).Round(time.Second),
		"sent":             stats.Sent,
		"suppressed":       stats.Suppressed,
		"transport_errors": stats.TransportErrors,
	}).Info("Bridge stopped")
	return err
}
