package cluster

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/six78/feature-negotiation/internal/transport"
	"github.com/six78/feature-negotiation/pkg/protocol"
)

type Option func(*Advertiser)

func WithContext(ctx context.Context) Option {
	return func(a *Advertiser) {
		a.ctx = ctx
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Advertiser) {
		a.logger = l
	}
}

func WithTransport(t transport.Service) Option {
	return func(a *Advertiser) {
		a.transport = t
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(a *Advertiser) {
		a.clock = c
	}
}

func WithNodeID(id protocol.NodeID) Option {
	return func(a *Advertiser) {
		a.node = id
	}
}

func WithClusterName(name string) Option {
	return func(a *Advertiser) {
		a.cluster = name
	}
}

func WithSource(s FeatureSource) Option {
	return func(a *Advertiser) {
		a.source = s
	}
}

func WithApplier(applier FeatureApplier) Option {
	return func(a *Advertiser) {
		a.applier = applier
	}
}

func WithPublishPeriod(d time.Duration) Option {
	return func(a *Advertiser) {
		a.config.PublishPeriod = d
	}
}

// WithSettlePeriod sets how long the advertiser listens to peers before it
// applies any agreement. Zero applies right after start.
func WithSettlePeriod(d time.Duration) Option {
	return func(a *Advertiser) {
		a.config.SettlePeriod = d
		a.config.settlePeriodSet = true
	}
}
