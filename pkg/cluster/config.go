package cluster

import "time"

const DefaultClusterName = "default"

type advertiserConfig struct {
	PublishPeriod time.Duration
	SettlePeriod  time.Duration

	settlePeriodSet bool
}

var defaultConfig = advertiserConfig{
	PublishPeriod: 10 * time.Second,
}

// Unless set explicitly, the settle period spans this many publish periods.
const settlePeriods = 2

// A peer is reported offline after missing this many advertisements.
// Offline peers still take part in the agreement.
const offlineAfterPeriods = 3
