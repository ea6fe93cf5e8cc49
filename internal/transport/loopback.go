package transport

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var ErrLoopbackStopped = errors.New("loopback transport stopped")

// LoopbackBus connects Loopback transports of a single process.
// It stands in for a waku network in tests and single-host runs.
type LoopbackBus struct {
	mutex sync.RWMutex
	nodes map[*Loopback]struct{}
}

func NewLoopbackBus() *LoopbackBus {
	return &LoopbackBus{
		nodes: make(map[*Loopback]struct{}),
	}
}

// Connect creates a transport attached to the bus.
func (b *LoopbackBus) Connect(logger *zap.Logger) *Loopback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loopback{
		bus:    b,
		logger: logger.Named("loopback"),
	}
}

func (b *LoopbackBus) join(l *Loopback) {
	b.mutex.Lock()
	b.nodes[l] = struct{}{}
	b.mutex.Unlock()
	b.notifyConnectionStatus()
}

func (b *LoopbackBus) leave(l *Loopback) {
	b.mutex.Lock()
	delete(b.nodes, l)
	b.mutex.Unlock()
	b.notifyConnectionStatus()
}

func (b *LoopbackBus) notifyConnectionStatus() {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	peers := len(b.nodes) - 1
	for l := range b.nodes {
		l.notifyConnectionStatus(ConnectionStatus{
			IsOnline:   peers > 0,
			PeersCount: peers,
		})
	}
}

func (b *LoopbackBus) publish(cluster string, payload []byte) {
	b.mutex.RLock()
	nodes := make([]*Loopback, 0, len(b.nodes))
	for l := range b.nodes {
		nodes = append(nodes, l)
	}
	b.mutex.RUnlock()

	for _, l := range nodes {
		l.deliver(cluster, payload)
	}
}

type loopbackSubscription struct {
	cluster string
	ch      chan []byte
	done    chan struct{}
	once    sync.Once
}

type Loopback struct {
	bus    *LoopbackBus
	logger *zap.Logger

	mutex             sync.Mutex
	started           bool
	subscriptions     map[*loopbackSubscription]struct{}
	statusSubscribers []ConnectionStatusSubscription
	connectionStatus  ConnectionStatus
}

func (l *Loopback) Initialize() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.subscriptions = make(map[*loopbackSubscription]struct{})
	return nil
}

func (l *Loopback) Start() error {
	l.mutex.Lock()
	if l.subscriptions == nil {
		l.mutex.Unlock()
		return errors.New("not initialized")
	}
	l.started = true
	l.mutex.Unlock()

	l.bus.join(l)
	l.logger.Debug("loopback started")
	return nil
}

func (l *Loopback) Stop() {
	l.mutex.Lock()
	if !l.started {
		l.mutex.Unlock()
		return
	}
	l.started = false
	l.mutex.Unlock()

	l.bus.leave(l)

	l.mutex.Lock()
	subscriptions := l.subscriptions
	l.subscriptions = make(map[*loopbackSubscription]struct{})
	l.mutex.Unlock()

	for sub := range subscriptions {
		sub.close()
	}
}

func (l *Loopback) SubscribeToMessages(cluster string) (*MessagesSubscription, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if !l.started {
		return nil, ErrLoopbackStopped
	}

	sub := &loopbackSubscription{
		cluster: cluster,
		ch:      make(chan []byte, 64),
		done:    make(chan struct{}),
	}
	l.subscriptions[sub] = struct{}{}

	return &MessagesSubscription{
		Ch: sub.ch,
		Unsubscribe: func() {
			sub.close()
			l.mutex.Lock()
			delete(l.subscriptions, sub)
			l.mutex.Unlock()
		},
	}, nil
}

func (l *Loopback) PublishMessage(cluster string, payload []byte) error {
	l.mutex.Lock()
	started := l.started
	l.mutex.Unlock()

	if !started {
		return ErrLoopbackStopped
	}

	l.bus.publish(cluster, payload)
	return nil
}

func (l *Loopback) deliver(cluster string, payload []byte) {
	l.mutex.Lock()
	var targets []*loopbackSubscription
	for sub := range l.subscriptions {
		if sub.cluster == cluster {
			targets = append(targets, sub)
		}
	}
	l.mutex.Unlock()

	for _, sub := range targets {
		sub.send(payload)
	}
}

func (s *loopbackSubscription) send(payload []byte) {
	// Each subscriber gets its own copy.
	message := make([]byte, len(payload))
	copy(message, payload)

	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.ch <- message:
	case <-s.done:
	}
}

// close stops delivery. The channel itself is never closed, because
// publishers may still be sending to it.
func (s *loopbackSubscription) close() {
	s.once.Do(func() { close(s.done) })
}

func (l *Loopback) ConnectionStatus() ConnectionStatus {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.connectionStatus
}

func (l *Loopback) SubscribeToConnectionStatus() ConnectionStatusSubscription {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	channel := make(ConnectionStatusSubscription, 10)
	l.statusSubscribers = append(l.statusSubscribers, channel)
	return channel
}

func (l *Loopback) notifyConnectionStatus(status ConnectionStatus) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.connectionStatus = status
	for _, subscriber := range l.statusSubscribers {
		select {
		case subscriber <- status:
		default:
		}
	}
}
