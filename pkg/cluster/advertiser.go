// Package cluster exchanges supported features between the nodes of a
// cluster and enables the features every known node supports.
package cluster

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/six78/feature-negotiation/internal/transport"
	"github.com/six78/feature-negotiation/pkg/protocol"
)

var (
	ErrNotStarted     = errors.New("advertiser not started")
	ErrAlreadyStarted = errors.New("advertiser already started")
)

// FeatureSource provides the features this node advertises.
type FeatureSource interface {
	SupportedFeatureSet(ctx context.Context) (protocol.FeatureSet, error)
}

// FeatureApplier enables features the whole cluster agreed on.
type FeatureApplier interface {
	EnableFeatures(ctx context.Context, features protocol.FeatureSet) error
}

type peer struct {
	features  protocol.FeatureSet
	timestamp int64
	lastSeen  time.Time
}

type PeerInfo struct {
	Node     protocol.NodeID
	Features protocol.FeatureSet
	LastSeen time.Time
	Online   bool
}

type Advertiser struct {
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	transport transport.Service
	clock     clockwork.Clock
	source    FeatureSource
	applier   FeatureApplier
	node      protocol.NodeID
	cluster   string
	config    advertiserConfig

	mutex    sync.Mutex
	starting bool
	started  bool
	settled bool
	local   protocol.FeatureSet
	peers   map[protocol.NodeID]*peer
	agreed  protocol.FeatureSet
	applied protocol.FeatureSet

	applyMutex   sync.Mutex
	subscription *transport.MessagesSubscription
	wg           sync.WaitGroup
}

func NewAdvertiser(opts ...Option) *Advertiser {
	a := &Advertiser{
		cluster: DefaultClusterName,
		config:  defaultConfig,
		local:   protocol.NewFeatureSet(),
		peers:   make(map[protocol.NodeID]*peer),
		agreed:  protocol.NewFeatureSet(),
		applied: protocol.NewFeatureSet(),
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.ctx == nil {
		a.ctx = context.Background()
	}

	if a.logger == nil {
		a.logger = zap.NewNop()
	}

	if a.transport == nil {
		a.logger.Error("transport is required")
		return nil
	}

	if a.clock == nil {
		a.logger.Error("clock is required")
		return nil
	}

	if a.source == nil {
		a.logger.Error("feature source is required")
		return nil
	}

	if a.applier == nil {
		a.logger.Error("feature applier is required")
		return nil
	}

	if !a.config.settlePeriodSet {
		a.config.SettlePeriod = settlePeriods * a.config.PublishPeriod
	}

	if a.node.Empty() {
		node, err := protocol.GenerateNodeID()
		if err != nil {
			a.logger.Error("failed to generate node id", zap.Error(err))
			return nil
		}
		a.node = node
	}

	a.logger = a.logger.Named("advertiser").With(
		zap.String("node", a.node.String()),
		zap.String("cluster", a.cluster),
	)
	a.ctx, a.cancel = context.WithCancel(a.ctx)

	return a
}

func (a *Advertiser) NodeID() protocol.NodeID {
	return a.node
}

// Start subscribes to the cluster and starts advertising local features.
func (a *Advertiser) Start() error {
	a.mutex.Lock()
	if a.started || a.starting {
		a.mutex.Unlock()
		return ErrAlreadyStarted
	}
	a.starting = true
	a.mutex.Unlock()

	local, sub, err := a.prepare()

	a.mutex.Lock()
	a.starting = false
	if err != nil {
		a.mutex.Unlock()
		return err
	}
	a.started = true
	a.local = local
	a.settled = a.config.SettlePeriod <= 0
	a.subscription = sub
	a.mutex.Unlock()

	a.logger.Info("advertiser started", zap.Strings("features", local.Sorted()))

	a.wg.Add(2)
	go a.processIncomingMessages(sub)
	go a.publishLoop()

	if a.config.SettlePeriod > 0 {
		a.wg.Add(1)
		go a.settleLoop()
	} else {
		a.updateAgreement()
	}

	return nil
}

func (a *Advertiser) prepare() (protocol.FeatureSet, *transport.MessagesSubscription, error) {
	local, err := a.source.SupportedFeatureSet(a.ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to get supported features")
	}

	sub, err := a.transport.SubscribeToMessages(a.cluster)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to subscribe to messages")
	}

	return local, sub, nil
}

// Leave announces that this node is leaving the cluster for good,
// so that peers stop waiting for it to agree.
func (a *Advertiser) Leave() error {
	a.mutex.Lock()
	started := a.started
	a.mutex.Unlock()

	if !started {
		return ErrNotStarted
	}

	payload, err := protocol.NewNodeLeftMessage(a.node, a.timestamp())
	if err != nil {
		return errors.Wrap(err, "failed to build node left message")
	}

	a.logger.Info("leaving cluster")
	err = a.transport.PublishMessage(a.cluster, payload)
	return errors.Wrap(err, "failed to publish node left message")
}

// Stop cancels all loops and waits for them to finish.
func (a *Advertiser) Stop() {
	a.cancel()
	a.wg.Wait()

	a.mutex.Lock()
	sub := a.subscription
	a.subscription = nil
	a.started = false
	a.mutex.Unlock()

	if sub != nil && sub.Unsubscribe != nil {
		sub.Unsubscribe()
	}
}

// Peers returns the known peers sorted by node id.
func (a *Advertiser) Peers() []PeerInfo {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	ids := maps.Keys(a.peers)
	slices.Sort(ids)

	now := a.clock.Now()
	offlineAfter := offlineAfterPeriods * a.config.PublishPeriod

	result := make([]PeerInfo, 0, len(ids))
	for _, id := range ids {
		p := a.peers[id]
		result = append(result, PeerInfo{
			Node:     id,
			Features: p.features.Clone(),
			LastSeen: p.lastSeen,
			Online:   now.Sub(p.lastSeen) <= offlineAfter,
		})
	}
	return result
}

// Agreed returns the features supported by this node and every known peer.
func (a *Advertiser) Agreed() protocol.FeatureSet {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.agreed.Clone()
}

// Applied returns the features handed to the applier so far.
func (a *Advertiser) Applied() protocol.FeatureSet {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.applied.Clone()
}

func (a *Advertiser) publishLoop() {
	defer a.wg.Done()

	logger := a.logger.With(zap.String("source", "publish loop"))
	logger.Debug("started")

	a.publishFeatures()
	for {
		select {
		case <-a.clock.After(a.config.PublishPeriod):
			a.refreshLocalFeatures()
			a.publishFeatures()
			a.updateAgreement()
		case <-a.ctx.Done():
			logger.Debug("finished: ctx done")
			return
		}
	}
}

func (a *Advertiser) settleLoop() {
	defer a.wg.Done()

	select {
	case <-a.clock.After(a.config.SettlePeriod):
		a.mutex.Lock()
		a.settled = true
		a.mutex.Unlock()
		a.logger.Debug("settled", zap.Int("peers", len(a.Peers())))
		a.updateAgreement()
	case <-a.ctx.Done():
	}
}

func (a *Advertiser) processIncomingMessages(sub *transport.MessagesSubscription) {
	defer a.wg.Done()
	for {
		select {
		case payload, more := <-sub.Ch:
			if !more {
				return
			}
			a.handleMessage(payload)
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *Advertiser) handleMessage(payload []byte) {
	message, err := protocol.UnmarshalMessage(payload)
	if err != nil {
		a.logger.Error("failed to unmarshal message", zap.Error(err))
		return
	}
	logger := a.logger.With(zap.String("type", string(message.Type)))

	var changed bool

	switch message.Type {
	case protocol.MessageTypeFeatures:
		changed, err = a.handleFeaturesMessage(payload)
	case protocol.MessageTypeNodeLeft:
		changed, err = a.handleNodeLeftMessage(payload)
	default:
		logger.Warn("unsupported message type")
		return
	}

	if err != nil {
		logger.Warn("failed to handle message", zap.Error(err))
		return
	}

	if changed {
		a.updateAgreement()
	}
}

func (a *Advertiser) handleFeaturesMessage(payload []byte) (bool, error) {
	message, err := protocol.UnmarshalFeaturesMessage(payload)
	if err != nil {
		return false, err
	}

	if message.Node == a.node {
		return false, nil
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	p, known := a.peers[message.Node]
	if known && message.Timestamp < p.timestamp {
		a.logger.Debug("ignoring outdated features",
			zap.String("peer", message.Node.String()),
			zap.Int64("timestamp", message.Timestamp))
		return false, nil
	}

	if !known {
		p = &peer{}
		a.peers[message.Node] = p
		a.logger.Info("new peer",
			zap.String("peer", message.Node.String()),
			zap.Strings("features", message.Features.Sorted()))
	}

	changed := !known || !p.features.Equal(message.Features)
	p.features = message.Features
	p.timestamp = message.Timestamp
	p.lastSeen = a.clock.Now()

	return changed, nil
}

func (a *Advertiser) handleNodeLeftMessage(payload []byte) (bool, error) {
	message, err := protocol.UnmarshalNodeLeftMessage(payload)
	if err != nil {
		return false, err
	}

	if message.Node == a.node {
		return false, nil
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	if _, known := a.peers[message.Node]; !known {
		return false, nil
	}

	delete(a.peers, message.Node)
	a.logger.Info("peer left", zap.String("peer", message.Node.String()))
	return true, nil
}

func (a *Advertiser) refreshLocalFeatures() {
	local, err := a.source.SupportedFeatureSet(a.ctx)
	if err != nil {
		a.logger.Error("failed to get supported features", zap.Error(err))
		return
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	if !a.local.Equal(local) {
		a.logger.Info("supported features changed", zap.Strings("features", local.Sorted()))
		a.local = local
	}
}

func (a *Advertiser) publishFeatures() {
	a.mutex.Lock()
	local := a.local.Clone()
	a.mutex.Unlock()

	payload, err := protocol.NewFeaturesMessage(a.node, local, a.timestamp())
	if err != nil {
		a.logger.Error("failed to build features message", zap.Error(err))
		return
	}

	err = a.transport.PublishMessage(a.cluster, payload)
	if err != nil {
		a.logger.Error("failed to publish features", zap.Error(err))
	}
}

// updateAgreement recomputes the agreed features and applies those not
// applied yet. Failed applies are retried on the next update.
func (a *Advertiser) updateAgreement() {
	a.applyMutex.Lock()
	defer a.applyMutex.Unlock()

	a.mutex.Lock()
	agreed := a.local.Clone()
	for _, p := range a.peers {
		agreed = agreed.Intersect(p.features)
	}
	a.agreed = agreed

	if !a.settled {
		a.mutex.Unlock()
		return
	}

	pending := agreed.Difference(a.applied)
	a.mutex.Unlock()

	if len(pending) == 0 {
		return
	}

	a.logger.Info("enabling agreed features", zap.Strings("features", pending.Sorted()))

	err := a.applier.EnableFeatures(a.ctx, pending)
	if err != nil {
		a.logger.Error("failed to enable agreed features", zap.Error(err))
		return
	}

	a.mutex.Lock()
	a.applied = a.applied.Union(pending)
	a.mutex.Unlock()
}

func (a *Advertiser) timestamp() int64 {
	return a.clock.Now().UnixMilli()
}
