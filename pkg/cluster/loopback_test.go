package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"

	"github.com/six78/feature-negotiation/internal/testcommon"
	"github.com/six78/feature-negotiation/internal/transport"
	"github.com/six78/feature-negotiation/pkg/features"
	"github.com/six78/feature-negotiation/pkg/protocol"
	"github.com/six78/feature-negotiation/pkg/shard"
	"github.com/six78/feature-negotiation/pkg/storage"
)

var errNotEnabled = errors.New("feature not enabled")

func TestLoopbackCluster(t *testing.T) {
	suite.Run(t, new(LoopbackSuite))
}

type clusterNode struct {
	transport  *transport.Loopback
	group      *shard.Group
	advertiser *Advertiser
}

type LoopbackSuite struct {
	testcommon.Suite
	ctx    context.Context
	cancel context.CancelFunc
	clock  clockwork.FakeClock
	bus    *transport.LoopbackBus
	nodes  []*clusterNode
}

func (s *LoopbackSuite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.clock = clockwork.NewFakeClock()
	s.bus = transport.NewLoopbackBus()
	s.nodes = nil
}

func (s *LoopbackSuite) TearDownTest() {
	for _, node := range s.nodes {
		node.advertiser.Stop()
		node.group.Stop()
		node.transport.Stop()
	}
	s.cancel()
}

func (s *LoopbackSuite) startNode(cfg features.Config, opts ...Option) *clusterNode {
	record := features.NewRecord(storage.NewMemoryStorage())
	group := shard.NewGroup(s.ctx, 2, func(id int) *features.Service {
		return features.NewService(cfg,
			features.WithLogger(s.Logger),
			features.WithRecord(record),
			features.WithShard(id),
		)
	}, s.Logger)

	t := s.bus.Connect(s.Logger)
	s.Require().NoError(t.Initialize())
	s.Require().NoError(t.Start())

	opts = append([]Option{
		WithContext(s.ctx),
		WithLogger(s.Logger),
		WithTransport(t),
		WithClock(s.clock),
		WithClusterName("loopback"),
		WithSource(group),
		WithApplier(group),
		WithPublishPeriod(time.Second),
		WithSettlePeriod(5*time.Second),
	}, opts...)

	advertiser := NewAdvertiser(opts...)
	s.Require().NotNil(advertiser)
	s.Require().NoError(advertiser.Start())

	node := &clusterNode{
		transport:  t,
		group:      group,
		advertiser: advertiser,
	}
	s.nodes = append(s.nodes, node)
	return node
}

func (s *LoopbackSuite) stopNode(node *clusterNode) {
	node.advertiser.Stop()
	node.group.Stop()
	node.transport.Stop()

	for i, n := range s.nodes {
		if n == node {
			s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
			return
		}
	}
}

func (s *LoopbackSuite) enabledOnAllUnits(node *clusterNode, name string) bool {
	err := node.group.InvokeOnAll(s.ctx, func(ctx context.Context, service *features.Service) error {
		f, ok := service.Feature(name)
		if !ok || !f.Enabled() {
			return errNotEnabled
		}
		return nil
	})
	return err == nil
}

func (s *LoopbackSuite) TestClusterAgreesOnCommonFeatures() {
	cfg := features.NewConfig()

	// The third node runs an older version without CDC and
	// has raft enabled, which masks USES_RAFT_CLUSTER_MANAGEMENT.
	oldCfg := features.NewConfig()
	oldCfg.Disabled.Add(features.CDC)
	oldCfg.Masked.Add(features.UsesRaftClusterManagement)

	s.startNode(cfg)
	s.startNode(cfg)
	s.startNode(oldCfg)

	// Nodes started earlier learn about later ones on the next round.
	s.clock.BlockUntil(6)
	s.clock.Advance(time.Second)

	for _, node := range s.nodes {
		node := node
		s.Require().Eventually(func() bool {
			return len(node.advertiser.Peers()) == 2
		}, time.Second, 10*time.Millisecond)
	}

	s.clock.BlockUntil(6)
	s.clock.Advance(4 * time.Second)

	for _, node := range s.nodes {
		node := node
		s.Require().Eventually(func() bool {
			return s.enabledOnAllUnits(node, features.LWT)
		}, time.Second, 10*time.Millisecond)

		s.Require().False(s.enabledOnAllUnits(node, features.CDC))
		s.Require().False(s.enabledOnAllUnits(node, features.UsesRaftClusterManagement))
		s.Require().False(node.advertiser.Agreed().Contains(features.CDC))
	}

	// Once the old node leaves for good, CDC is agreed by the rest.
	old := s.nodes[2]
	s.Require().NoError(old.advertiser.Leave())

	for _, node := range s.nodes[:2] {
		node := node
		s.Require().Eventually(func() bool {
			return s.enabledOnAllUnits(node, features.CDC)
		}, time.Second, 10*time.Millisecond)
		s.Require().True(node.advertiser.Applied().IsSubsetOf(supportedSet(s, node)))
	}
}

func supportedSet(s *LoopbackSuite, node *clusterNode) protocol.FeatureSet {
	set, err := node.group.SupportedFeatureSet(s.ctx)
	s.Require().NoError(err)
	return set
}

func (s *LoopbackSuite) TestUpgradeRestartWidensAgreement() {
	cfg := features.NewConfig()
	oldCfg := features.NewConfig()
	oldCfg.Disabled.Add(features.CDC)

	id, err := protocol.GenerateNodeID()
	s.Require().NoError(err)

	a := s.startNode(cfg)
	b := s.startNode(oldCfg, WithNodeID(id))

	s.clock.BlockUntil(4)
	s.clock.Advance(time.Second)
	for _, node := range s.nodes {
		node := node
		s.Require().Eventually(func() bool {
			return len(node.advertiser.Peers()) == 1
		}, time.Second, 10*time.Millisecond)
	}

	s.clock.BlockUntil(4)
	s.clock.Advance(4 * time.Second)
	s.Require().Eventually(func() bool {
		return s.enabledOnAllUnits(a, features.LWT)
	}, time.Second, 10*time.Millisecond)
	s.Require().False(s.enabledOnAllUnits(a, features.CDC))

	// A plain restart on a new version, keeping the node id and not leaving.
	s.stopNode(b)
	b = s.startNode(cfg, WithNodeID(id))

	s.Require().Eventually(func() bool {
		return s.enabledOnAllUnits(a, features.CDC)
	}, time.Second, 10*time.Millisecond)

	peers := a.advertiser.Peers()
	s.Require().Len(peers, 1)
	s.Require().Equal(id, peers[0].Node)
	s.Require().True(peers[0].Features.Contains(features.CDC))
	s.Require().True(a.advertiser.Agreed().Contains(features.CDC))

	// The restarted node agrees too once it hears from a and settles.
	// The stopped advertiser still holds one fake clock waiter.
	s.clock.BlockUntil(4)
	s.clock.Advance(time.Second)
	s.Require().Eventually(func() bool {
		return len(b.advertiser.Peers()) == 1
	}, time.Second, 10*time.Millisecond)

	s.clock.BlockUntil(3)
	s.clock.Advance(4 * time.Second)
	s.Require().Eventually(func() bool {
		return s.enabledOnAllUnits(b, features.CDC)
	}, time.Second, 10*time.Millisecond)
}
