package transport

//go:generate mockgen -source=service.go -destination=mock/service.go

// Service carries advertisements between the nodes of a cluster.
// Published messages are also delivered to the publisher's own subscriptions.
type Service interface {
	Initialize() error
	Start() error
	Stop()

	SubscribeToMessages(cluster string) (*MessagesSubscription, error)
	PublishMessage(cluster string, payload []byte) error

	ConnectionStatus() ConnectionStatus
	SubscribeToConnectionStatus() ConnectionStatusSubscription
}

type MessagesSubscription struct {
	Ch          chan []byte
	Unsubscribe func()
}

type ConnectionStatus struct {
	IsOnline   bool
	PeersCount int
}

type ConnectionStatusSubscription chan ConnectionStatus
