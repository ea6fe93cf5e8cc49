package matchers

import (
	"testing"

	"github.com/six78/feature-negotiation/pkg/protocol"
)

type NodeLeftMatcher struct {
	MessageMatcher
	node protocol.NodeID
}

func NewNodeLeftMatcher(t *testing.T, node protocol.NodeID) *NodeLeftMatcher {
	return &NodeLeftMatcher{
		MessageMatcher: *NewMessageMatcher(t),
		node:           node,
	}
}

func (m *NodeLeftMatcher) Matches(x interface{}) bool {
	if !m.MessageMatcher.Matches(x) {
		return false
	}

	message, err := protocol.UnmarshalNodeLeftMessage(m.payload)
	if err != nil || message.Node != m.node {
		return false
	}

	m.triggered <- *message
	return true
}

func (m *NodeLeftMatcher) String() string {
	return "is node left message of " + m.node.String()
}

func (m *NodeLeftMatcher) Wait() protocol.NodeLeftMessage {
	return m.MessageMatcher.Wait().(protocol.NodeLeftMessage)
}
