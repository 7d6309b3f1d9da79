package goble

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/suite"

	"github.com/srg/telebridge/internal/gatt"
	"github.com/srg/telebridge/internal/profile"
)

type fakeDevice struct {
	mu         sync.Mutex
	services   []*ble.Service
	advName    string
	advUUIDs   []ble.UUID
	advertised chan struct{}
	stopped    bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{advertised: make(chan struct{})}
}

func (d *fakeDevice) AddService(svc *ble.Service) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.services = append(d.services, svc)
	return nil
}

func (d *fakeDevice) AdvertiseNameAndServices(ctx context.Context, name string, uuids ...ble.UUID) error {
	d.mu.Lock()
	d.advName, d.advUUIDs = name, uuids
	d.mu.Unlock()
	close(d.advertised)
	<-ctx.Done()
	return ctx.Err()
}

func (d *fakeDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	return nil
}

type fakeAddr string

func (a fakeAddr) String() string { return string(a) }

type fakeConn struct {
	addr fakeAddr
	gone chan struct{}
}

func newFakeConn(addr string) *fakeConn {
	return &fakeConn{addr: fakeAddr(addr), gone: make(chan struct{})}
}

func (c *fakeConn) RemoteAddr() ble.Addr { return c.addr }
func (c *fakeConn) Disconnected() <-chan struct{} { return c.gone }

type fakeNotifier struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	writes [][]byte
}

func newFakeNotifier() *fakeNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	return &fakeNotifier{ctx: ctx, cancel: cancel}
}

func (n *fakeNotifier) Context() context.Context { return n.ctx }

func (n *fakeNotifier) Write(b []byte) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.writes = append(n.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (n *fakeNotifier) received() [][]byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][]byte(nil), n.writes...)
}

type TransportTestSuite struct {
	suite.Suite

	origFactory func() (Peripheral, error)
	device      *fakeDevice
	profile     *profile.Profile
	dispatcher  *gatt.Dispatcher
	transport   *Transport
	hook        *logtest.Hook
}

func (s *TransportTestSuite) SetupTest() {
	s.origFactory = DeviceFactory
	s.device = newFakeDevice()
	DeviceFactory = func() (Peripheral, error) { return s.device, nil }

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	s.hook = hook

	p, err := profile.Build(profile.Options{Scheme: profile.SchemeDiscrete, ClockService: true, Logger: logger})
	s.Require().NoError(err)
	s.profile = p

	s.transport = New(logger)
	s.dispatcher = gatt.NewDispatcher(p.Table, s.transport, logger).WithClock(p.Clock)

	adv := gatt.NewAdvertisement("telebridge", p.Table)
	s.Require().NoError(s.transport.Start(context.Background(), p.Table, adv, s.dispatcher))

	select {
	case <-s.device.advertised:
	case <-time.After(time.Second):
		s.FailNow("advertising MUST start")
	}
}

func (s *TransportTestSuite) TearDownTest() {
	s.Require().NoError(s.transport.Close())
	DeviceFactory = s.origFactory
}

func (s *TransportTestSuite) handle(uuid string) gatt.Handle {
	h, ok := s.profile.Table.Lookup(uuid)
	s.Require().True(ok)
	return h
}

func (s *TransportTestSuite) TestStartRegistersServicesAndAdvertises() {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()

	s.Require().Len(s.device.services, 2)
	s.True(s.device.services[0].UUID.Equal(ble.MustParse(profile.EnvironmentalSensingService)))
	s.Len(s.device.services[0].Characteristics, 5)
	s.True(s.device.services[1].UUID.Equal(ble.MustParse(profile.CurrentTimeService)))
	s.Len(s.device.services[1].Characteristics, 1)

	s.Equal("telebridge", s.device.advName)
	s.Len(s.device.advUUIDs, 2)
}

func (s *TransportTestSuite) TestSecondStartFails() {
	err := s.transport.Start(context.Background(), s.profile.Table, gatt.Advertisement{}, s.dispatcher)
	s.ErrorIs(err, ErrAlreadyStarted)
}

func (s *TransportTestSuite) TestReadReportsPeerAndValue() {
	conn := newFakeConn("aa:bb:cc:dd:ee:01")
	h := s.handle(profile.TemperatureUUID)
	_, err := s.profile.Table.Store(h, []byte{0x25, 0x09})
	s.Require().NoError(err)

	data, status := s.transport.handleRead(conn, h, 0)
	s.Equal(ble.ATTError(gatt.ATTSuccess), status)
	s.Equal([]byte{0x25, 0x09}, data)
	s.Equal([]string{"aa:bb:cc:dd:ee:01"}, s.dispatcher.Peers())

	data, status = s.transport.handleRead(conn, h, 1)
	s.Equal(ble.ATTError(gatt.ATTSuccess), status)
	s.Equal([]byte{0x09}, data)

	_, status = s.transport.handleRead(conn, h, 3)
	s.Equal(ble.ATTError(gatt.ATTInvalidAttributeLength), status)
}

func (s *TransportTestSuite) TestClockWrite() {
	conn := newFakeConn("aa:bb:cc:dd:ee:01")
	h := s.handle(profile.EpochTimeUUID)

	status := s.transport.handleWrite(conn, h, []byte{0x00, 0xe1, 0xf5, 0x05})
	s.Equal(ble.ATTError(gatt.ATTSuccess), status)
	s.Equal(uint32(100000000), s.profile.Clock.Read())

	status = s.transport.handleWrite(conn, h, []byte{0x01, 0x02, 0x03})
	s.Equal(ble.ATTError(gatt.ATTInvalidAttributeLength), status)
	s.Equal(uint32(100000000), s.profile.Clock.Read(), "rejected write MUST leave the clock unchanged")
}

func (s *TransportTestSuite) TestWriteToReadOnlyCharacteristic() {
	conn := newFakeConn("aa:bb:cc:dd:ee:01")
	status := s.transport.handleWrite(conn, s.handle(profile.TemperatureUUID), []byte{0x00, 0x00})
	s.Equal(ble.ATTError(gatt.ATTWriteNotPermitted), status)
}

func (s *TransportTestSuite) TestSubscriptionLifecycle() {
	conn := newFakeConn("aa:bb:cc:dd:ee:01")
	n := newFakeNotifier()
	h := s.handle(profile.TemperatureUUID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.transport.handleNotify(conn, h, n)
	}()

	s.Eventually(func() bool { return s.transport.activeSubscribers(h) == 1 }, time.Second, 5*time.Millisecond)
	s.Equal(gatt.GateEnabled, s.profile.Table.Gate(h))

	res := s.dispatcher.Publish([]gatt.Payload{{Handle: h, Data: []byte{0x25, 0x09}}})
	s.Equal(1, res.Sent)
	s.Equal([][]byte{{0x25, 0x09}}, n.received())

	n.cancel()
	<-done
	s.Equal(gatt.GateDisabled, s.profile.Table.Gate(h), "unsubscribe MUST disable the gate")
}

func (s *TransportTestSuite) TestDisconnectKeepsGate() {
	conn := newFakeConn("aa:bb:cc:dd:ee:02")
	n := newFakeNotifier()
	h := s.handle(profile.HumidityUUID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.transport.handleNotify(conn, h, n)
	}()
	s.Eventually(func() bool { return s.transport.activeSubscribers(h) == 1 }, time.Second, 5*time.Millisecond)

	close(conn.gone)
	n.cancel()
	<-done

	s.Eventually(func() bool { return !s.dispatcher.Connected() }, time.Second, 5*time.Millisecond)
	s.Equal(gatt.GateEnabled, s.profile.Table.Gate(h))
	s.Equal(0, s.transport.activeSubscribers(h))
}

func (s *TransportTestSuite) TestNotifyWithoutSubscribers() {
	s.NoError(s.transport.Notify(s.handle(profile.PressureUUID), []byte{1, 2, 3, 4}))
}

func (s *TransportTestSuite) TestCloseStopsDevice() {
	s.Require().NoError(s.transport.Close())
	s.device.mu.Lock()
	s.True(s.device.stopped)
	s.device.mu.Unlock()

	s.ErrorIs(s.transport.Notify(0, nil), ErrNotStarted)
}

func TestTransportTestSuite(t *testing.T) {
	suite.Run(t, new(TransportTestSuite))
}

func TestStartFailsWhenDeviceUnavailable(t *testing.T) {
	orig := DeviceFactory
	defer func() { DeviceFactory = orig }()
	DeviceFactory = func() (Peripheral, error) {
		return nil, NormalizeError(errors.New("can't init hci: no devices available"))
	}

	p, err := profile.Build(profile.Options{Scheme: profile.SchemeBlob})
	if err != nil {
		t.Fatal(err)
	}
	tr := New(nil)
	err = tr.Start(context.Background(), p.Table, gatt.NewAdvertisement("x", p.Table), gatt.NewDispatcher(p.Table, tr, nil))
	if !errors.Is(err, ErrBluetoothOff) {
		t.Fatalf("expected ErrBluetoothOff, got %v", err)
	}
}
