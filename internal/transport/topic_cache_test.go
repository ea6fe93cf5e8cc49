package transport

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestContentTopicCache(t *testing.T) {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	cache := NewContentTopicCache(logger)

	cluster1 := gofakeit.LetterN(8)
	cluster1ContentTopic, err := clusterContentTopic(cluster1)
	require.NoError(t, err)
	require.Contains(t, cluster1ContentTopic, "/featured/1/")

	// First call to Get
	contentTopic1, err := cache.Get(cluster1)
	require.NoError(t, err)
	require.Equal(t, cluster1ContentTopic, contentTopic1)
	require.Equal(t, 0, cache.hits)

	// Further calls hit the cache
	for i := range [3]int{} {
		contentTopic2, err2 := cache.Get(cluster1)
		require.NoError(t, err2)
		require.Equal(t, cluster1ContentTopic, contentTopic2)
		require.Equal(t, i+1, cache.hits)
	}

	cluster2 := cluster1 + "x"
	cluster2ContentTopic, err := clusterContentTopic(cluster2)
	require.NoError(t, err)
	require.NotEqual(t, cluster1ContentTopic, cluster2ContentTopic)

	contentTopic2, err := cache.Get(cluster2)
	require.NoError(t, err)
	require.Equal(t, cluster2ContentTopic, contentTopic2)
	require.Equal(t, 3, cache.hits)
}

func TestClusterKey(t *testing.T) {
	key := ClusterKey("alpha")
	require.Len(t, key, 32)
	require.Equal(t, key, ClusterKey("alpha"))
	require.NotEqual(t, key, ClusterKey("beta"))
}
