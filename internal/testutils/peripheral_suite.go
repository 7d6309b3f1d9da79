package testutils

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/srg/telebridge/internal/gatt"
	"github.com/srg/telebridge/internal/profile"
)

// PeripheralSuite wires a profile, a Dispatcher and a FakeTransport for
// component tests. Set Options before calling SetupTest to pick a variant.
//
//	type BlobSuite struct {
//	    testutils.PeripheralSuite
//	}
//
//	func (s *BlobSuite) SetupTest() {
//	    s.Options = profile.Options{Scheme: profile.SchemeBlob}
//	    s.PeripheralSuite.SetupTest()
//	}
type PeripheralSuite struct {
	suite.Suite

	Options    profile.Options
	Logger     *logrus.Logger
	Profile    *profile.Profile
	Transport  *FakeTransport
	Dispatcher *gatt.Dispatcher
}

func (s *PeripheralSuite) SetupTest() {
	if s.Options.Scheme == "" {
		s.Options = profile.Options{Scheme: profile.SchemeDiscrete, ClockService: true}
	}
	s.Logger = logrus.New()
	s.Logger.SetLevel(logrus.DebugLevel)
	s.Options.Logger = s.Logger

	p, err := profile.Build(s.Options)
	s.Require().NoError(err, "profile MUST build")
	s.Profile = p

	s.Transport = NewFakeTransport()
	s.Dispatcher = gatt.NewDispatcher(p.Table, s.Transport, s.Logger)
	if p.Clock != nil {
		s.Dispatcher.WithClock(p.Clock)
	}

	adv := gatt.NewAdvertisement("telebridge-test", p.Table)
	s.Require().NoError(s.Transport.Start(context.Background(), p.Table, adv, s.Dispatcher))
}

func (s *PeripheralSuite) TearDownTest() {
	s.Options = profile.Options{}
}

// Handle resolves a characteristic UUID of the active profile.
func (s *PeripheralSuite) Handle(uuid string) gatt.Handle {
	h, ok := s.Profile.Table.Lookup(uuid)
	s.Require().True(ok, "characteristic %s MUST exist", uuid)
	return h
}

// ConnectAndSubscribeAll connects a peer and enables every notifying
// characteristic.
func (s *PeripheralSuite) ConnectAndSubscribeAll(peer string) {
	s.Transport.Connect(peer)
	for _, info := range s.Profile.Table.Characteristics() {
		if info.Properties.Has(gatt.PropNotify) {
			s.Require().NoError(s.Transport.Subscribe(info.Handle))
		}
	}
}
