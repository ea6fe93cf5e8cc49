package transport

import (
	"github.com/ethereum/go-ethereum/crypto"
)

const clusterKeyDomain = "featured/cluster/"

// ClusterKey derives the symmetric key that encrypts advertisements of a
// cluster. Nodes only read messages of clusters whose name they know.
func ClusterKey(cluster string) []byte {
	return crypto.Keccak256([]byte(clusterKeyDomain + cluster))
}
