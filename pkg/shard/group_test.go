package shard

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"

	"github.com/six78/feature-negotiation/internal/testcommon"
	"github.com/six78/feature-negotiation/pkg/features"
	"github.com/six78/feature-negotiation/pkg/protocol"
	"github.com/six78/feature-negotiation/pkg/storage"
)

const unitsCount = 4

func TestGroup(t *testing.T) {
	suite.Run(t, new(Suite))
}

type Suite struct {
	testcommon.Suite
	ctx     context.Context
	cancel  context.CancelFunc
	storage *storage.MemoryStorage
	group   *Group
}

func (s *Suite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.storage = storage.NewMemoryStorage()

	record := features.NewRecord(s.storage)
	cfg := features.NewConfig()
	cfg.Masked.Add(features.UsesRaftClusterManagement)

	s.group = NewGroup(s.ctx, unitsCount, func(id int) *features.Service {
		return features.NewService(cfg,
			features.WithLogger(s.Logger),
			features.WithRecord(record),
			features.WithShard(id),
		)
	}, s.Logger)
}

func (s *Suite) TearDownTest() {
	s.group.Stop()
	s.cancel()
}

func (s *Suite) TestCount() {
	s.Require().Equal(unitsCount, s.group.Count())
}

func (s *Suite) TestSubmitRunsOnUnit() {
	for id := 0; id < unitsCount; id++ {
		var shard int
		err := s.group.Submit(s.ctx, id, func(ctx context.Context, service *features.Service) error {
			shard = service.Shard()
			return nil
		})
		s.Require().NoError(err)
		s.Require().Equal(id, shard)
	}
}

func (s *Suite) TestSubmitUnknownUnit() {
	noop := func(context.Context, *features.Service) error { return nil }

	err := s.group.Submit(s.ctx, unitsCount, noop)
	s.Require().ErrorIs(err, ErrUnknownUnit)

	err = s.group.Submit(s.ctx, -1, noop)
	s.Require().ErrorIs(err, ErrUnknownUnit)
}

func (s *Suite) TestSubmitReturnsTaskError() {
	expected := errors.New("task failed")
	err := s.group.Submit(s.ctx, 1, func(context.Context, *features.Service) error {
		return expected
	})
	s.Require().ErrorIs(err, expected)
}

func (s *Suite) TestEnableFeaturesOnEveryUnit() {
	set := protocol.NewFeatureSet(features.CDC, features.LWT, s.FakeFeatureName())

	err := s.group.EnableFeatures(s.ctx, set)
	s.Require().NoError(err)

	err = s.group.InvokeOnAll(s.ctx, func(ctx context.Context, service *features.Service) error {
		if !service.ClusterSupportsCDC() || !service.ClusterSupportsLWT() {
			return errors.Errorf("features not enabled on unit %d", service.Shard())
		}
		return nil
	})
	s.Require().NoError(err)

	// All units share one record, which holds each name once.
	persisted, err := features.NewRecord(s.storage).EnabledFeatures(s.ctx)
	s.Require().NoError(err)
	s.Require().True(persisted.Equal(protocol.NewFeatureSet(features.CDC, features.LWT)))
}

func (s *Suite) TestInvokeOnAllReportsError() {
	err := s.group.InvokeOnAll(s.ctx, func(ctx context.Context, service *features.Service) error {
		if service.Shard() == 2 {
			return errors.New("failed")
		}
		return nil
	})
	s.Require().Error(err)
	s.Require().Contains(err.Error(), "unit 2")
}

func (s *Suite) TestSupportedFeatureSet() {
	supported, err := s.group.SupportedFeatureSet(s.ctx)
	s.Require().NoError(err)
	s.Require().True(supported.Contains(features.CDC))
	s.Require().False(supported.Contains(features.UsesRaftClusterManagement))
}

func (s *Suite) TestSubmitAfterStop() {
	s.group.Stop()

	err := s.group.Submit(s.ctx, 0, func(context.Context, *features.Service) error {
		s.Fail("task must not run")
		return nil
	})
	s.Require().ErrorIs(err, ErrStopped)
}

func (s *Suite) TestSubmitCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	err := s.group.Submit(ctx, 0, func(context.Context, *features.Service) error {
		s.Fail("task must not run")
		return nil
	})
	s.Require().ErrorIs(err, context.Canceled)
}
