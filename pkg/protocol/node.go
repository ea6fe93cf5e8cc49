package protocol

import (
	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

type NodeID string

// GenerateNodeID returns a base58 encoded random UUID.
func GenerateNodeID() (NodeID, error) {
	id := uuid.New()
	bytes, err := id.MarshalBinary()
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal node uuid")
	}
	return NodeID(base58.Encode(bytes)), nil
}

func ParseNodeID(input string) (NodeID, error) {
	bytes, err := base58.Decode(input)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode node id")
	}
	if _, err = uuid.FromBytes(bytes); err != nil {
		return "", errors.Wrap(err, "node id is not a uuid")
	}
	return NodeID(input), nil
}

func (id NodeID) String() string {
	return string(id)
}

func (id NodeID) Empty() bool {
	return id == ""
}
