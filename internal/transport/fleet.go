package transport

import (
	"github.com/pkg/errors"
	"github.com/waku-org/go-waku/waku/v2/protocol"
	"github.com/waku-org/go-waku/waku/v2/protocol/relay"
)

type FleetName string

const (
	ShardsStaging FleetName = "shards.staging"
	ShardsTest    FleetName = "shards.test"
	WakuSandbox   FleetName = "waku.sandbox"
	WakuTest      FleetName = "waku.test"
)

const (
	DefaultClusterID = 16
	DefaultShardID   = 64
)

var ErrUnknownFleet = errors.New("unknown fleet")

var knownFleets = []FleetName{ShardsStaging, ShardsTest, WakuSandbox, WakuTest}

var fleetENRTrees = map[FleetName]string{
	WakuSandbox: "enrtree://AIRVQ5DDA4FFWLRBCHJWUWOO6X6S4ZTZ5B667LQ6AJU6PEYDLRD5O@sandbox.waku.nodes.status.im",
	ShardsTest:  "enrtree://AMOJVZX4V6EXP7NTJPMAYJYST2QP6AJXYW76IU6VGJS7UVSNDYZG4@boot.test.shards.nodes.status.im",
}

// ParseFleetName accepts fleets known to this node, even those without
// a DNS discovery tree.
func ParseFleetName(name string) (FleetName, error) {
	for _, fleet := range knownFleets {
		if string(fleet) == name {
			return fleet, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownFleet, "%s", name)
}

func FleetENRTree(fleet FleetName) (string, bool) {
	enr, ok := fleetENRTrees[fleet]
	return enr, ok
}

func (f FleetName) IsSharded() bool {
	return f == ShardsStaging || f == ShardsTest
}

func (f FleetName) DefaultPubsubTopic() string {
	if f.IsSharded() {
		return protocol.NewStaticShardingPubsubTopic(DefaultClusterID, DefaultShardID).String()
	}

	return relay.DefaultWakuTopic
}
