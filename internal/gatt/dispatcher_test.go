package gatt

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/suite"
)

type notification struct {
	handle Handle
	data   []byte
}

type recordingTransport struct {
	mu   sync.Mutex
	sent []notification
	err  error
}

func (r *recordingTransport) Start(context.Context, *Table, Advertisement, EventHandler) error {
	return nil
}

func (r *recordingTransport) Notify(h Handle, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, notification{handle: h, data: append([]byte(nil), data...)})
	return nil
}

func (r *recordingTransport) Close() error { return nil }

func (r *recordingTransport) notifications() []notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification(nil), r.sent...)
}

type DispatcherTestSuite struct {
	suite.Suite
	tt         testTable
	transport  *recordingTransport
	hook       *logtest.Hook
	dispatcher *Dispatcher
}

func (s *DispatcherTestSuite) SetupTest() {
	s.tt = newTestTable()
	s.transport = &recordingTransport{}

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	s.hook = hook

	clock, err := NewClock(s.tt.table, s.tt.clock)
	s.Require().NoError(err)
	s.dispatcher = NewDispatcher(s.tt.table, s.transport, logger).WithClock(clock)
}

func (s *DispatcherTestSuite) enable(h Handle) {
	s.Require().NoError(s.dispatcher.OnDescriptorWrite(h, []byte{0x01, 0x00}))
}

func (s *DispatcherTestSuite) TestGateDisabledIsNoop() {
	s.dispatcher.OnConnected("aa:bb")

	res := s.dispatcher.Publish([]Payload{{Handle: s.tt.temp, Data: []byte{0x25, 0x09}}})

	s.Equal(0, res.Sent)
	s.Equal(1, res.Suppressed)
	s.Empty(s.transport.notifications(), "disabled gate MUST NOT reach the transport")

	v, err := s.tt.table.Read(s.tt.temp)
	s.Require().NoError(err)
	s.Equal([]byte{0x25, 0x09}, v, "buffer MUST be updated even while the gate is disabled")
}

func (s *DispatcherTestSuite) TestNoPeerIsNoop() {
	s.enable(s.tt.temp)

	s.NoError(s.dispatcher.Notify(s.tt.temp, []byte{1, 2}))
	s.Empty(s.transport.notifications(), "no connected peer MUST mean no notification")
	s.Equal(int64(1), s.dispatcher.Stats().Suppressed)
}

func (s *DispatcherTestSuite) TestGateLifecycle() {
	// GOAL: Notifications follow the gate through enable → disable → enable
	//
	// TEST SCENARIO: Connect → enable → publish → disable → publish → enable → publish → 2 notifications

	s.dispatcher.OnConnected("aa:bb")
	payload := []Payload{{Handle: s.tt.temp, Data: []byte{0x25, 0x09}}}

	s.enable(s.tt.temp)
	s.dispatcher.Publish(payload)
	s.Require().NoError(s.dispatcher.OnDescriptorWrite(s.tt.temp, []byte{0x00, 0x00}))
	s.dispatcher.Publish(payload)
	s.enable(s.tt.temp)
	s.dispatcher.Publish(payload)

	got := s.transport.notifications()
	s.Len(got, 2)
	for _, n := range got {
		s.Equal(s.tt.temp, n.handle)
		s.Equal([]byte{0x25, 0x09}, n.data)
	}
}

func (s *DispatcherTestSuite) TestInvalidDescriptorValueIsRejected() {
	s.enable(s.tt.temp)

	err := s.dispatcher.OnDescriptorWrite(s.tt.temp, []byte{0x02, 0x00})
	s.ErrorIs(err, ErrInvalidDescriptorValue)
	s.Equal(GateEnabled, s.tt.table.Gate(s.tt.temp))
	s.Equal(logrus.WarnLevel, s.hook.LastEntry().Level, "rejected write MUST be logged")
}

func (s *DispatcherTestSuite) TestOversizeBlobIsTruncated() {
	s.dispatcher.OnConnected("aa:bb")
	s.enable(s.tt.blob)

	res := s.dispatcher.Publish([]Payload{{Handle: s.tt.blob, Data: []byte("0123456789abcdefOVERFLOW")}})
	s.Equal(1, res.Sent)

	got := s.transport.notifications()
	s.Require().Len(got, 1)
	s.Len(got[0].data, 16, "notification MUST carry exactly capacity bytes")
	s.Equal("0123456789abcdef", string(got[0].data))
}

func (s *DispatcherTestSuite) TestOversizeDiscreteIsRejected() {
	s.dispatcher.OnConnected("aa:bb")
	s.enable(s.tt.temp)

	err := s.dispatcher.Notify(s.tt.temp, []byte{1, 2, 3})
	s.ErrorIs(err, ErrPayloadTooLarge)
	s.Empty(s.transport.notifications())

	res := s.dispatcher.Publish([]Payload{{Handle: s.tt.temp, Data: []byte{1, 2, 3}}})
	s.Len(res.Errors, 1)
	s.Equal(int64(2), s.dispatcher.Stats().Rejected)
}

func (s *DispatcherTestSuite) TestTransportErrorIsContained() {
	s.dispatcher.OnConnected("aa:bb")
	s.enable(s.tt.temp)
	s.enable(s.tt.blob)
	s.transport.err = errors.New("link busy")

	res := s.dispatcher.Publish([]Payload{
		{Handle: s.tt.temp, Data: []byte{1, 2}},
		{Handle: s.tt.blob, Data: []byte("x")},
	})

	s.Require().Len(res.Errors, 2, "every payload MUST still be attempted")
	var terr *TransportError
	s.ErrorAs(res.Errors[0], &terr)
	s.Equal(s.tt.temp, terr.Handle)
	s.Equal(int64(2), s.dispatcher.Stats().TransportErrors)
}

func (s *DispatcherTestSuite) TestDisconnectKeepsGate() {
	s.dispatcher.OnConnected("aa:bb")
	s.enable(s.tt.temp)
	s.dispatcher.OnDisconnected("aa:bb")

	s.False(s.dispatcher.Connected())
	s.Equal(GateEnabled, s.tt.table.Gate(s.tt.temp), "connection events MUST NOT touch gates")

	s.dispatcher.OnConnected("cc:dd")
	s.NoError(s.dispatcher.Notify(s.tt.temp, []byte{1, 2}))
	s.Len(s.transport.notifications(), 1)
	s.Equal([]string{"cc:dd"}, s.dispatcher.Peers())
}

func (s *DispatcherTestSuite) TestPeerClockWrite() {
	s.NoError(s.dispatcher.OnWrite(s.tt.clock, []byte{0x80, 0x51, 0x01, 0x00}))
	v, _ := s.tt.table.Read(s.tt.clock)
	s.Equal([]byte{0x80, 0x51, 0x01, 0x00}, v)
	s.Equal("Clock set by peer", s.hook.LastEntry().Message)

	err := s.dispatcher.OnWrite(s.tt.clock, []byte{0x01, 0x02})
	s.ErrorIs(err, ErrInvalidLength)
	v, _ = s.tt.table.Read(s.tt.clock)
	s.Equal([]byte{0x80, 0x51, 0x01, 0x00}, v, "invalid length MUST leave the clock unchanged")

	s.ErrorIs(s.dispatcher.OnWrite(s.tt.temp, []byte{1, 2}), ErrWriteNotPermitted)
}

func TestDispatcherTestSuite(t *testing.T) {
	suite.Run(t, new(DispatcherTestSuite))
}
