package matchers

import (
	"testing"

	"github.com/six78/feature-negotiation/pkg/protocol"
)

// FeaturesMatcher matches a features advertisement of the given node.
// A nil features set matches any advertised set.
type FeaturesMatcher struct {
	MessageMatcher
	node     protocol.NodeID
	features protocol.FeatureSet
}

func NewFeaturesMatcher(t *testing.T, node protocol.NodeID, features protocol.FeatureSet) *FeaturesMatcher {
	return &FeaturesMatcher{
		MessageMatcher: *NewMessageMatcher(t),
		node:           node,
		features:       features,
	}
}

func (m *FeaturesMatcher) Matches(x interface{}) bool {
	if !m.MessageMatcher.Matches(x) {
		return false
	}

	if m.message.Type != protocol.MessageTypeFeatures {
		return false
	}

	message, err := protocol.UnmarshalFeaturesMessage(m.payload)
	if err != nil {
		return false
	}

	if message.Node != m.node {
		return false
	}

	if m.features != nil && !m.features.Equal(message.Features) {
		return false
	}

	m.triggered <- *message
	return true
}

func (m *FeaturesMatcher) String() string {
	return "is features advertisement of " + m.node.String()
}

func (m *FeaturesMatcher) Wait() protocol.FeaturesMessage {
	return m.MessageMatcher.Wait().(protocol.FeaturesMessage)
}
