package transport

import (
	"context"
	"encoding/hex"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/ethereum/go-ethereum/p2p/enr"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
	"github.com/waku-org/go-waku/waku/v2/dnsdisc"
	"github.com/waku-org/go-waku/waku/v2/node"
	wp "github.com/waku-org/go-waku/waku/v2/payload"
	"github.com/waku-org/go-waku/waku/v2/protocol"
	wakuenr "github.com/waku-org/go-waku/waku/v2/protocol/enr"
	"github.com/waku-org/go-waku/waku/v2/protocol/lightpush"
	"github.com/waku-org/go-waku/waku/v2/protocol/pb"
	"github.com/waku-org/go-waku/waku/v2/protocol/relay"
	"github.com/waku-org/go-waku/waku/v2/protocol/subscription"
	"github.com/waku-org/go-waku/waku/v2/utils"
	"go.uber.org/zap"

	"github.com/six78/feature-negotiation/internal/config"
)

// Advertisements are always encrypted with the cluster key.
const encryptedMessageVersion = uint32(1)

type Node struct {
	waku   *node.WakuNode
	ctx    context.Context
	logger *zap.Logger

	fleet             FleetName
	pubsubTopic       string
	peerConnection    chan node.PeerConnection
	topics            *ContentTopicCache
	lightMode         bool
	statusMutex       sync.Mutex
	statusSubscribers []ConnectionStatusSubscription
	connectionStatus  ConnectionStatus
	connectedPeers    map[peer.ID]struct{}
}

func NewNode(ctx context.Context, logger *zap.Logger) *Node {
	fleet := FleetName(config.Fleet())
	return &Node{
		waku:           nil,
		ctx:            ctx,
		logger:         logger.Named("waku"),
		fleet:          fleet,
		pubsubTopic:    fleet.DefaultPubsubTopic(),
		peerConnection: nil,
		topics:         NewContentTopicCache(logger),
		lightMode:      config.WakuLightMode(),
	}
}

func (n *Node) Initialize() error {
	if _, err := ParseFleetName(string(n.fleet)); err != nil {
		return err
	}

	hostAddr, err := net.ResolveTCPAddr("tcp", "0.0.0.0:0")
	if err != nil {
		return errors.Wrap(err, "failed to resolve TCP address")
	}

	var discoveredNodes []dnsdisc.DiscoveredNode
	if config.WakuDnsDiscovery() {
		discoveredNodes, err = discoverNodes(n.ctx, n.fleet, n.logger.Named("dnsdiscovery"))
		if err != nil {
			return errors.Wrap(err, "failed to discover nodes")
		}
	}

	n.peerConnection = make(chan node.PeerConnection)

	options := []node.WakuNodeOption{
		node.WithLogger(n.logger),
		node.WithLogLevel(zap.DebugLevel),
		node.WithHostAddress(hostAddr),
		node.WithConnectionNotification(n.peerConnection),
	}

	if config.WakuDiscV5() {
		bootNodes := getBootNodes(discoveredNodes)
		options = append(options,
			node.WithDiscoveryV5(0, bootNodes, true),
			node.WithPeerExchange(),
		)
	}

	if n.lightMode {
		options = append(options,
			node.WithLightPush(),
			node.WithWakuFilterLightNode(),
		)
	} else {
		options = append(options,
			node.WithWakuRelay(),
		)
	}

	if n.fleet.IsSharded() {
		options = append(options,
			node.WithClusterID(DefaultClusterID),
		)
	}

	options = append(options, node.DefaultWakuNodeOptions...)

	wakuNode, err := node.New(options...)
	if err != nil {
		return errors.Wrap(err, "failed to create waku node")
	}

	n.waku = wakuNode
	n.connectedPeers = make(map[peer.ID]struct{})

	return nil
}

func (n *Node) Start() error {
	if n.waku == nil {
		return errors.New("not initialized")
	}

	go n.watchConnectionStatus()

	err := n.waku.Start(n.ctx)
	if err != nil {
		return errors.Wrap(err, "failed to start waku node")
	}

	n.logger.Info("waku started", zap.String("peerID", n.waku.ID()))

	if !n.lightMode {
		err = n.subscribeToPubsubTopic()
		if err != nil {
			return errors.Wrap(err, "failed to subscribe to pubsub topic")
		}
	}

	if config.WakuDiscV5() {
		n.logger.Debug("starting discoveryV5")
		err = n.waku.DiscV5().Start(n.ctx)
		if err != nil {
			return errors.Wrap(err, "failed to start discoverV5")
		}
		n.logger.Debug("started discoveryV5")
	}

	if staticNodes := config.WakuStaticNodes(); len(staticNodes) != 0 {
		err = n.addStaticNodes(staticNodes)
		if err != nil {
			return errors.Wrap(err, "failed to add static nodes")
		}
	}

	n.logger.Info("waku node started")

	return nil
}

func getBootNodes(discoveredNodes []dnsdisc.DiscoveredNode) []*enode.Node {
	var bootNodes []*enode.Node
	for _, n := range discoveredNodes {
		if n.ENR != nil {
			bootNodes = append(bootNodes, n.ENR)
		}
	}
	return bootNodes
}

func (n *Node) Stop() {
	if n.waku != nil {
		n.waku.Stop()
	}
}

func parseEnrProtocols(v wakuenr.WakuEnrBitfield) string {
	var out []string
	if v&(1<<3) == 8 {
		out = append(out, "lightpush")
	}
	if v&(1<<2) == 4 {
		out = append(out, "filter")
	}
	if v&(1<<1) == 2 {
		out = append(out, "store")
	}
	if v&(1<<0) == 1 {
		out = append(out, "relay")
	}
	return strings.Join(out, ",")
}

func discoverNodes(ctx context.Context, fleet FleetName, logger *zap.Logger) ([]dnsdisc.DiscoveredNode, error) {
	enrTree, ok := FleetENRTree(fleet)
	if !ok {
		return nil, errors.Errorf("fleet %s has no discovery tree", fleet)
	}

	var options []dnsdisc.DNSDiscoveryOption
	if nameserver := config.Nameserver(); nameserver != "" {
		options = append(options, dnsdisc.WithNameserver(nameserver))
	}

	discoveredNodes, err := dnsdisc.RetrieveNodes(ctx, enrTree, options...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to retrieve nodes from enr tree")
	}

	logger.Debug("discovered nodes", zap.String("entree", enrTree))

	for _, d := range discoveredNodes {
		enrField := new(wakuenr.WakuEnrBitfield)
		err = d.ENR.Record().Load(enr.WithEntry(wakuenr.WakuENRField, &enrField))
		if err != nil {
			return nil, errors.Wrap(err, "failed to load waku enr field")
		}

		logger.Debug("discover node",
			zap.String("peerID", d.PeerID.String()),
			zap.Any("peerInfo", d.PeerInfo),
			zap.Any("protocols", parseEnrProtocols(*enrField)),
		)
	}

	return discoveredNodes, nil
}

func (n *Node) addStaticNodes(staticNodes []string) error {
	for _, staticNode := range staticNodes {
		n.logger.Info("connecting to a static node",
			zap.String("address", staticNode),
		)
		addr, err := multiaddr.NewMultiaddr(staticNode)
		if err != nil {
			return errors.Wrap(err, "failed to parse multiaddr")
		}

		err = n.DialPeer(addr)
		if err != nil {
			return errors.Wrap(err, "failed to dial static peer")
		}
	}

	return nil
}

func (n *Node) DialPeer(address multiaddr.Multiaddr) error {
	const dialTimeout = 10 * time.Second

	ctx, cancel := context.WithTimeout(n.ctx, dialTimeout)
	defer cancel()

	err := n.waku.DialPeerWithMultiAddress(ctx, address)
	return errors.Wrap(err, "failed to dial peer")
}

func (n *Node) PublishMessage(cluster string, payload []byte) error {
	message, err := n.buildWakuMessage(cluster, payload)
	if err != nil {
		return errors.Wrap(err, "failed to build waku message")
	}

	err = encryptMessage(cluster, message)
	if err != nil {
		return errors.Wrap(err, "failed to encrypt message")
	}

	return n.publishWakuMessage(message)
}

func (n *Node) buildWakuMessage(cluster string, payload []byte) (*pb.WakuMessage, error) {
	version := encryptedMessageVersion

	contentTopic, err := n.topics.Get(cluster)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build content topic")
	}

	return &pb.WakuMessage{
		Payload:      payload,
		Version:      &version,
		ContentTopic: contentTopic,
		Timestamp:    utils.GetUnixEpoch(),
	}, nil
}

func encryptMessage(cluster string, message *pb.WakuMessage) error {
	keyInfo := &wp.KeyInfo{
		Kind:   wp.Symmetric,
		SymKey: ClusterKey(cluster),
	}

	err := wp.EncodeWakuMessage(message, keyInfo)
	return errors.Wrap(err, "failed to encode waku message")
}

func decryptMessage(cluster string, message *pb.WakuMessage) ([]byte, error) {
	keyInfo := &wp.KeyInfo{
		Kind:   wp.Symmetric,
		SymKey: ClusterKey(cluster),
	}

	err := wp.DecodeWakuMessage(message, keyInfo)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode waku message")
	}

	return message.Payload, nil
}

func (n *Node) publishWakuMessage(message *pb.WakuMessage) error {
	var err error
	var messageID []byte

	if n.lightMode {
		publishOptions := []lightpush.Option{
			lightpush.WithPubSubTopic(n.pubsubTopic),
		}
		messageID, err = n.waku.Lightpush().Publish(n.ctx, message, publishOptions...)
	} else {
		publishOptions := []relay.PublishOption{
			relay.WithPubSubTopic(n.pubsubTopic),
		}
		messageID, err = n.waku.Relay().Publish(n.ctx, message, publishOptions...)
	}

	if err != nil {
		n.logger.Error("failed to publish message", zap.Error(err))
		return errors.Wrap(err, "failed to publish message")
	}

	n.logger.Debug("message sent",
		zap.String("messageID", hex.EncodeToString(messageID)))

	return nil
}

func (n *Node) watchConnectionStatus() {
	for {
		select {
		case <-n.ctx.Done():
			return
		case status, more := <-n.peerConnection:
			if !more {
				return
			}
			n.logger.Debug("peer connection", zap.Any("status", status))
			if status.Connected {
				n.connectedPeers[status.PeerID] = struct{}{}
			} else {
				delete(n.connectedPeers, status.PeerID)
			}
			count := len(n.connectedPeers)
			n.notifyConnectionStatus(ConnectionStatus{
				IsOnline:   count > 0,
				PeersCount: count,
			})
		}
	}
}

func (n *Node) subscribeToPubsubTopic() error {
	filter := protocol.NewContentFilter(n.pubsubTopic)
	_, err := n.waku.Relay().Subscribe(n.ctx, filter)
	if err != nil {
		return errors.Wrap(err, "failed to subscribe to pubsub topic")
	}

	go func() {
		<-n.ctx.Done()

		err := n.waku.Relay().Unsubscribe(context.Background(), filter)
		if err != nil {
			n.logger.Warn("failed to unsubscribe from relay", zap.Error(err))
		}
	}()

	return nil
}

func (n *Node) subscribeRelay(contentFilter protocol.ContentFilter) (chan *protocol.Envelope, func(), error) {
	subs, err := n.waku.Relay().Subscribe(n.ctx, contentFilter)

	unsubscribe := func() {
		err := n.waku.Relay().Unsubscribe(n.ctx, contentFilter)
		if err != nil {
			n.logger.Warn("failed to unsubscribe from relay", zap.Error(err))
		}
	}

	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to subscribe to content topic")
	}

	if len(subs) != 1 {
		if len(subs) > 0 {
			unsubscribe()
		}
		return nil, nil, errors.Errorf("unexpected number of subscriptions: %d", len(subs))
	}

	return subs[0].Ch, unsubscribe, nil
}

func (n *Node) subscribeFilter(contentFilter protocol.ContentFilter) (chan *protocol.Envelope, func(), error) {
	var subs []*subscription.SubscriptionDetails
	subs, err := n.waku.FilterLightnode().Subscribe(n.ctx, contentFilter)

	unsubscribe := func() {
		response, err := n.waku.FilterLightnode().Unsubscribe(n.ctx, contentFilter)
		if err != nil {
			n.logger.Warn("failed to unsubscribe from lightnode", zap.Error(err))
			return
		}
		for _, err := range response.Errors() {
			n.logger.Warn("lightnode unsubscribe response error", zap.Error(err.Err))
		}
	}

	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to subscribe to content topic")
	}

	if len(subs) != 1 {
		if len(subs) > 0 {
			unsubscribe()
		}
		return nil, nil, errors.Errorf("unexpected number of subscriptions: %d", len(subs))
	}

	return subs[0].C, unsubscribe, nil
}

func (n *Node) SubscribeToMessages(cluster string) (*MessagesSubscription, error) {
	logger := n.logger.With(zap.String("cluster", cluster))
	logger.Debug("subscribing to cluster")

	contentTopic, err := n.topics.Get(cluster)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build content topic")
	}

	contentFilter := protocol.NewContentFilter(n.pubsubTopic, contentTopic)

	var in chan *protocol.Envelope
	var unsubscribe func()

	if n.lightMode {
		in, unsubscribe, err = n.subscribeFilter(contentFilter)
	} else {
		in, unsubscribe, err = n.subscribeRelay(contentFilter)
	}
	if err != nil {
		logger.Error("failed to subscribe to content topic", zap.Bool("lightMode", n.lightMode), zap.Error(err))
		return nil, err
	}

	leave := make(chan struct{})
	var leaveOnce sync.Once
	sub := &MessagesSubscription{
		Ch: make(chan []byte, 10),
		Unsubscribe: func() {
			leaveOnce.Do(func() { close(leave) })
		},
	}

	go func() {
		defer func() {
			unsubscribe()
			close(sub.Ch)
			logger.Debug("subscription channel closed")
		}()

		for {
			select {
			case <-leave:
				return
			case <-n.ctx.Done():
				return
			case value, more := <-in:
				if !more {
					return
				}
				payload, err := decryptMessage(cluster, value.Message())
				if err != nil {
					logger.Warn("failed to decrypt message payload", zap.Error(err))
					continue
				}

				select {
				case sub.Ch <- payload:
				case <-leave:
					return
				}
			}
		}
	}()

	return sub, nil
}

func (n *Node) ConnectionStatus() ConnectionStatus {
	n.statusMutex.Lock()
	defer n.statusMutex.Unlock()
	return n.connectionStatus
}

func (n *Node) SubscribeToConnectionStatus() ConnectionStatusSubscription {
	n.statusMutex.Lock()
	defer n.statusMutex.Unlock()
	channel := make(ConnectionStatusSubscription, 10)
	n.statusSubscribers = append(n.statusSubscribers, channel)
	return channel
}

func (n *Node) notifyConnectionStatus(status ConnectionStatus) {
	n.statusMutex.Lock()
	defer n.statusMutex.Unlock()

	n.connectionStatus = status

	for _, subscriber := range n.statusSubscribers {
		select {
		case subscriber <- status:
		default:
			n.logger.Warn("connection status subscriber is full")
		}
	}
}
