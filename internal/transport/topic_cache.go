package transport

import (
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	waku "github.com/waku-org/go-waku/waku/v2/protocol"
	"go.uber.org/zap"

	"github.com/six78/feature-negotiation/internal/config"
	"github.com/six78/feature-negotiation/pkg/protocol"
)

type contentTopicEntry struct {
	contentTopic string
	err          error
}

type ContentTopicCache struct {
	logger  *zap.Logger
	mutex   sync.Mutex
	entries map[string]contentTopicEntry
	hits    int
}

func NewContentTopicCache(logger *zap.Logger) *ContentTopicCache {
	return &ContentTopicCache{
		logger:  logger.Named("TopicCache"),
		entries: make(map[string]contentTopicEntry),
	}
}

func (c *ContentTopicCache) Get(cluster string) (string, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if entry, ok := c.entries[cluster]; ok {
		c.hits++
		return entry.contentTopic, entry.err
	}

	var entry contentTopicEntry
	entry.contentTopic, entry.err = clusterContentTopic(cluster)
	c.entries[cluster] = entry

	if entry.err != nil {
		c.logger.Error("failed to calculate content topic", zap.Error(entry.err))
	} else {
		c.logger.Debug("new content topic",
			zap.String("cluster", cluster),
			zap.String("contentTopic", entry.contentTopic))
	}

	return entry.contentTopic, entry.err
}

// clusterContentTopic is derived from the cluster key, so that the topic
// does not reveal the key itself.
func clusterContentTopic(cluster string) (string, error) {
	version := strconv.Itoa(int(protocol.Version))
	hash := crypto.Keccak256(ClusterKey(cluster))
	contentTopicName := hexutil.Encode(hash[:4])[2:]

	contentTopic, err := waku.NewContentTopic(config.ApplicationName, version, contentTopicName, "json")
	if err != nil {
		return "", errors.Wrap(err, "failed to create content topic")
	}

	return contentTopic.String(), nil
}
