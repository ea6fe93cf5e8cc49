package app

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/suite"

	"github.com/six78/feature-negotiation/internal/testcommon"
	"github.com/six78/feature-negotiation/internal/transport"
	"github.com/six78/feature-negotiation/pkg/features"
	"github.com/six78/feature-negotiation/pkg/storage"
)

func TestApp(t *testing.T) {
	suite.Run(t, new(Suite))
}

type Suite struct {
	testcommon.Suite
	ctx     context.Context
	storage *storage.MemoryStorage
	clock   clockwork.FakeClock
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.storage = storage.NewMemoryStorage()
	s.clock = clockwork.NewFakeClock()
}

func (s *Suite) newApp() *App {
	return NewApp(s.ctx,
		WithLogger(s.Logger),
		WithStorage(s.storage),
		WithClock(s.clock),
	)
}

func (s *Suite) TestInitializeRestoresPersistedFeatures() {
	err := s.storage.SetLocalParam(s.ctx, features.EnabledFeaturesKey, features.CDC)
	s.Require().NoError(err)

	a := s.newApp()
	defer a.Stop()

	s.Require().NoError(a.Initialize())

	status, err := a.Status()
	s.Require().NoError(err)
	s.Require().Contains(status, features.CDC)

	var enabled bool
	err = a.group.Submit(s.ctx, 0, func(ctx context.Context, service *features.Service) error {
		enabled = service.ClusterSupportsCDC()
		return nil
	})
	s.Require().NoError(err)
	s.Require().True(enabled)
}

func (s *Suite) TestInitializeFailsOnUnsupportedPersistedFeature() {
	// UDF is disabled by the default node configuration
	err := s.storage.SetLocalParam(s.ctx, features.EnabledFeaturesKey, features.UDF)
	s.Require().NoError(err)

	a := s.newApp()
	defer a.Stop()

	err = a.Initialize()
	s.Require().ErrorIs(err, features.ErrUnsupportedEnabledFeature)
}

func (s *Suite) TestStartWithLoopback() {
	a := s.newApp()
	defer a.Stop()
	s.Require().NoError(a.Initialize())

	bus := transport.NewLoopbackBus()
	s.Require().NoError(a.StartWithTransport(bus.Connect(s.Logger)))

	report, err := a.Report()
	s.Require().NoError(err)
	s.Require().Contains(report, "Transport: 0 peer(s)")
	s.Require().Contains(report, "no peers")
	s.Require().Contains(report, features.LWT)

	s.Require().NoError(a.Leave())
}

func (s *Suite) TestLeaveBeforeStart() {
	a := s.newApp()
	defer a.Stop()
	s.Require().NoError(a.Leave())
}

func (s *Suite) TestNodeIDSurvivesRestart() {
	a := s.newApp()
	s.Require().NoError(a.Initialize())
	first := a.NodeID()
	s.Require().False(first.Empty())

	persisted, ok, err := s.storage.LocalParam(s.ctx, NodeIDKey)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Require().Equal(first.String(), persisted)
	a.Stop()

	restarted := s.newApp()
	defer restarted.Stop()
	s.Require().NoError(restarted.Initialize())
	s.Require().Equal(first, restarted.NodeID())

	bus := transport.NewLoopbackBus()
	s.Require().NoError(restarted.StartWithTransport(bus.Connect(s.Logger)))
	s.Require().Equal(first, restarted.advertiser.NodeID())
}

func (s *Suite) TestInitializeFailsOnInvalidNodeID() {
	err := s.storage.SetLocalParam(s.ctx, NodeIDKey, "not a node id")
	s.Require().NoError(err)

	a := s.newApp()
	defer a.Stop()
	s.Require().Error(a.Initialize())
}
