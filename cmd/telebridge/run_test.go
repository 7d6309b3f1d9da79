package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/srg/telebridge/internal/gatt"
	"github.com/srg/telebridge/internal/sensor"
	"github.com/srg/telebridge/internal/sensorfactory"
	"github.com/srg/telebridge/internal/telemetry"
	"github.com/srg/telebridge/internal/testutils"
	"github.com/srg/telebridge/internal/transportfactory"
	"github.com/srg/telebridge/pkg/config"
)

type RunTestSuite struct {
	CommandTestSuite

	origTransport func(*config.Config, *logrus.Logger) (gatt.Transport, error)
	origSensors   func(config.SensorsConfig, *logrus.Logger) (*sensorfactory.Set, error)
	transport     *testutils.FakeTransport
}

func (s *RunTestSuite) SetupTest() {
	s.CommandTestSuite.SetupTest()
	s.origTransport = transportfactory.New
	s.origSensors = sensorfactory.New

	s.transport = testutils.NewFakeTransport()
	transportfactory.New = func(*config.Config, *logrus.Logger) (gatt.Transport, error) {
		return s.transport, nil
	}
}

func (s *RunTestSuite) TearDownTest() {
	transportfactory.New = s.origTransport
	sensorfactory.New = s.origSensors
}

// start runs the bridge in the background and waits until the transport is up.
func (s *RunTestSuite) start(args ...string) (cancel func() (string, error)) {
	ctx, stop := context.WithCancel(context.Background())
	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, _, err := s.ExecuteCommand(ctx, append([]string{"run"}, args...)...)
		done <- result{out, err}
	}()

	s.Require().Eventually(func() bool {
		return s.transport.Advertisement().LocalName != ""
	}, 2*time.Second, 5*time.Millisecond, "transport MUST be started")

	return func() (string, error) {
		stop()
		select {
		case r := <-done:
			return r.out, r.err
		case <-time.After(2 * time.Second):
			s.FailNow("run MUST stop after cancellation")
			return "", nil
		}
	}
}

// GOAL: a started bridge samples simulated sensors and notifies subscribers
//
// TEST SCENARIO: run with --sim → peer connects and subscribes to temperature →
// notifications arrive → cancel → transport closed, context error returned
func (s *RunTestSuite) TestRunNotifiesSubscribedPeer() {
	stop := s.start("--sim", "--period", "10ms", "--log-level", "error")

	s.Equal("telebridge", s.transport.Advertisement().LocalName)
	s.Equal([]string{"181a", "1805"}, s.transport.Advertisement().ServiceUUIDs)

	s.transport.Connect("aa:bb:cc:dd:ee:ff")
	s.Require().NoError(s.transport.Subscribe(0))

	s.Eventually(func() bool {
		return len(s.transport.NotificationsFor(0)) > 0
	}, 2*time.Second, 5*time.Millisecond, "temperature MUST be notified once subscribed")

	_, err := stop()
	s.ErrorIs(err, context.Canceled)
	s.True(s.transport.Closed(), "transport MUST be closed on shutdown")

	for _, data := range s.transport.NotificationsFor(0) {
		s.Len(data, 2, "temperature MUST be a 2-byte value")
	}
}

// GOAL: the blob variant delivers a CSV line on its single characteristic
//
// TEST SCENARIO: run --scheme blob --sim → subscribe handle 0 → payload parses as CSV
func (s *RunTestSuite) TestRunBlobScheme() {
	stop := s.start("--sim", "--scheme", "blob", "--no-clock", "--name", "bench", "--period", "10ms", "--log-level", "error")

	s.Equal("bench", s.transport.Advertisement().LocalName)
	s.transport.Connect("peer")
	s.Require().NoError(s.transport.Subscribe(0))

	s.Eventually(func() bool {
		return len(s.transport.NotificationsFor(0)) > 0
	}, 2*time.Second, 5*time.Millisecond)
	_, _ = stop()

	fields, err := telemetry.ParseBlob(s.transport.NotificationsFor(0)[0])
	s.Require().NoError(err)
	s.Len(fields, len(telemetry.BlobFields))
}

// GOAL: --dashboard renders cycle reports to stdout
func (s *RunTestSuite) TestRunDashboard() {
	stop := s.start("--sim", "--dashboard", "--period", "10ms", "--log-level", "error")
	time.Sleep(50 * time.Millisecond)
	out, _ := stop()

	s.Contains(out, "=== TELEBRIDGE DASHBOARD ===")
	s.Contains(out, "Humidity/Temp")
	s.NotContains(out, "\x1b[", "non-terminal output MUST NOT carry escape sequences")
}

// GOAL: a sensor that cannot be initialized is fatal before the transport starts
func (s *RunTestSuite) TestSensorInitFailureIsFatal() {
	sensorfactory.New = func(config.SensorsConfig, *logrus.Logger) (*sensorfactory.Set, error) {
		env := testutils.NewFakeSource(sensor.NameEnvironmental).
			FailInit(fmt.Errorf("%w: environmental/primary: no ack", sensor.ErrDeviceUnavailable))
		return &sensorfactory.Set{Sources: []sensor.Source{env}}, nil
	}

	_, _, err := s.ExecuteCommand(context.Background(), "run", "--log-level", "error")

	s.ErrorIs(err, sensor.ErrDeviceUnavailable)
	s.Empty(s.transport.Advertisement().LocalName, "transport MUST NOT start")
}

func TestRunTestSuite(t *testing.T) {
	suite.Run(t, new(RunTestSuite))
}
