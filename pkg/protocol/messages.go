package protocol

const Version byte = 1

type MessageType string

const (
	MessageTypeFeatures MessageType = "__features"
	MessageTypeNodeLeft MessageType = "__node_left"
)

type Message struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Version   byte        `json:"version"`
}

// FeaturesMessage advertises the supported feature set of a node.
type FeaturesMessage struct {
	Message
	Node     NodeID     `json:"node"`
	Features FeatureSet `json:"features"`
}

// NodeLeftMessage is published when a node is decommissioned and
// must no longer take part in feature agreement.
type NodeLeftMessage struct {
	Message
	Node NodeID `json:"node"`
}
