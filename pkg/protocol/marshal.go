package protocol

import (
	"encoding/json"

	"github.com/pkg/errors"
)

func UnmarshalMessage(payload []byte) (*Message, error) {
	message := Message{}
	err := json.Unmarshal(payload, &message)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal message")
	}
	return &message, nil
}

func UnmarshalFeaturesMessage(payload []byte) (*FeaturesMessage, error) {
	message := FeaturesMessage{}

	err := json.Unmarshal(payload, &message)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal message")
	}

	if message.Type != MessageTypeFeatures {
		return nil, errors.New("message is not a features message")
	}

	if message.Node.Empty() {
		return nil, errors.New("features message has no node")
	}

	if message.Features == nil {
		message.Features = NewFeatureSet()
	}

	return &message, nil
}

func UnmarshalNodeLeftMessage(payload []byte) (*NodeLeftMessage, error) {
	message := NodeLeftMessage{}

	err := json.Unmarshal(payload, &message)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal message")
	}

	if message.Type != MessageTypeNodeLeft {
		return nil, errors.New("message is not a node left message")
	}

	return &message, nil
}

func NewFeaturesMessage(node NodeID, features FeatureSet, timestamp int64) ([]byte, error) {
	message := FeaturesMessage{
		Message: Message{
			Type:      MessageTypeFeatures,
			Timestamp: timestamp,
			Version:   Version,
		},
		Node:     node,
		Features: features,
	}
	payload, err := json.Marshal(message)
	return payload, errors.Wrap(err, "failed to marshal features message")
}

func NewNodeLeftMessage(node NodeID, timestamp int64) ([]byte, error) {
	message := NodeLeftMessage{
		Message: Message{
			Type:      MessageTypeNodeLeft,
			Timestamp: timestamp,
			Version:   Version,
		},
		Node: node,
	}
	payload, err := json.Marshal(message)
	return payload, errors.Wrap(err, "failed to marshal node left message")
}
