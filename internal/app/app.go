// Package app wires storage, feature services, transport and cluster
// advertisement of a featured node together.
package app

import (
	"context"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/six78/feature-negotiation/internal/config"
	"github.com/six78/feature-negotiation/internal/transport"
	"github.com/six78/feature-negotiation/internal/view"
	"github.com/six78/feature-negotiation/pkg/cluster"
	"github.com/six78/feature-negotiation/pkg/features"
	"github.com/six78/feature-negotiation/pkg/protocol"
	"github.com/six78/feature-negotiation/pkg/shard"
	"github.com/six78/feature-negotiation/pkg/storage"
)

const (
	sqliteFileName = "featured.db"

	// NodeIDKey keeps the node id stable across restarts, so that peers
	// replace the previous advertisement of this node instead of keeping it.
	NodeIDKey = "node_id"
)

type App struct {
	ctx    context.Context
	quit   context.CancelFunc
	logger *zap.Logger
	clock  clockwork.Clock

	storage    storage.Service
	config     features.Config
	nodeID     protocol.NodeID
	group      *shard.Group
	transport  transport.Service
	advertiser *cluster.Advertiser

	connectionStatus transport.ConnectionStatusSubscription
}

func NewApp(ctx context.Context, opts ...Option) *App {
	ctx, quit := context.WithCancel(ctx)
	a := &App{
		ctx:  ctx,
		quit: quit,
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	a.logger = a.logger.Named("app")

	if a.clock == nil {
		a.clock = clockwork.NewRealClock()
	}

	return a
}

// Initialize prepares local feature state: it derives the features config,
// restores persisted features and applies operator promotions.
func (a *App) Initialize() error {
	nodeConfig, err := config.LoadNodeConfig(config.NodeConfigPath())
	if err != nil {
		return err
	}

	a.config, err = nodeConfig.FeaturesConfig()
	if err != nil {
		return errors.Wrap(err, "invalid node configuration")
	}

	if a.storage == nil {
		a.storage, err = createStorage(a.ctx, a.logger)
		if err != nil {
			return errors.Wrap(err, "failed to create storage")
		}
	}

	err = a.storage.Initialize()
	if err != nil {
		return errors.Wrap(err, "failed to initialize storage")
	}

	err = a.loadNodeID()
	if err != nil {
		return err
	}

	record := features.NewRecord(a.storage)
	a.group = shard.NewGroup(a.ctx, config.Shards(), func(id int) *features.Service {
		return features.NewService(a.config,
			features.WithLogger(a.logger),
			features.WithRecord(record),
			features.WithShard(id),
		)
	}, a.logger)

	err = a.group.InvokeOnAll(a.ctx, func(ctx context.Context, service *features.Service) error {
		return service.EnablePersisted(ctx)
	})
	if err != nil {
		return errors.Wrap(err, "failed to enable persisted features")
	}

	err = a.group.InvokeOnAll(a.ctx, func(ctx context.Context, service *features.Service) error {
		return service.SupportPersisted(ctx)
	})
	if err != nil {
		return errors.Wrap(err, "failed to restore supported features")
	}

	for _, name := range config.SupportFeatures() {
		name := name
		err = a.group.InvokeOnAll(a.ctx, func(ctx context.Context, service *features.Service) error {
			return service.Support(ctx, name)
		})
		if err != nil {
			return errors.Wrapf(err, "failed to support feature %s", name)
		}
	}

	a.logger.Info("features initialized",
		zap.String("node", a.nodeID.String()),
		zap.Int("shards", a.group.Count()),
		zap.Strings("disabled", a.config.Disabled.Sorted()),
		zap.Strings("masked", a.config.Masked.Sorted()),
	)

	return nil
}

func (a *App) loadNodeID() error {
	value, ok, err := a.storage.LocalParam(a.ctx, NodeIDKey)
	if err != nil {
		return errors.Wrap(err, "failed to read node id")
	}

	if ok {
		a.nodeID, err = protocol.ParseNodeID(value)
		return errors.Wrap(err, "invalid persisted node id")
	}

	a.nodeID, err = protocol.GenerateNodeID()
	if err != nil {
		return err
	}

	a.logger.Info("generated node id", zap.String("node", a.nodeID.String()))
	err = a.storage.SetLocalParam(a.ctx, NodeIDKey, a.nodeID.String())
	return errors.Wrap(err, "failed to persist node id")
}

func (a *App) NodeID() protocol.NodeID {
	return a.nodeID
}

func createStorage(ctx context.Context, logger *zap.Logger) (storage.Service, error) {
	switch config.Storage() {
	case config.LocalStorage:
		path := config.StoragePath()
		if path == "" {
			path = config.DataPath()
		}
		return storage.NewLocalStorage(path, logger), nil
	case config.SQLiteStorage:
		path := config.StoragePath()
		if path == "" {
			path = filepath.Join(config.DataPath(), sqliteFileName)
		}
		return storage.NewSQLiteStorage(path, logger), nil
	case config.PostgresStorage:
		return storage.ConnectPGStorage(ctx, config.StorageDSN(), logger)
	default:
		return nil, errors.Errorf("unknown storage kind %s", config.Storage())
	}
}

// Status renders the features of this node.
func (a *App) Status() (string, error) {
	var statuses []features.FeatureStatus
	err := a.group.Submit(a.ctx, 0, func(ctx context.Context, service *features.Service) error {
		statuses = service.Status()
		return nil
	})
	if err != nil {
		return "", err
	}
	return view.RenderStatus(statuses), nil
}

// Report renders connection, peers and features of this node.
func (a *App) Report() (string, error) {
	var statuses []features.FeatureStatus
	err := a.group.Submit(a.ctx, 0, func(ctx context.Context, service *features.Service) error {
		statuses = service.Status()
		return nil
	})
	if err != nil {
		return "", err
	}

	var peers []cluster.PeerInfo
	if a.advertiser != nil {
		peers = a.advertiser.Peers()
	}

	var connection transport.ConnectionStatus
	if a.transport != nil {
		connection = a.transport.ConnectionStatus()
	}

	return view.RenderReport(connection, peers, statuses, a.clock.Now()), nil
}

// Start joins the cluster over waku and starts advertising.
func (a *App) Start() error {
	return a.StartWithTransport(transport.NewNode(a.ctx, a.logger))
}

func (a *App) StartWithTransport(t transport.Service) error {
	a.transport = t

	err := a.transport.Initialize()
	if err != nil {
		return errors.Wrap(err, "failed to initialize transport")
	}

	a.connectionStatus = a.transport.SubscribeToConnectionStatus()
	go a.watchConnectionStatus()

	err = a.transport.Start()
	if err != nil {
		return errors.Wrap(err, "failed to start transport")
	}

	a.advertiser = cluster.NewAdvertiser(
		cluster.WithContext(a.ctx),
		cluster.WithLogger(a.logger),
		cluster.WithTransport(a.transport),
		cluster.WithClock(a.clock),
		cluster.WithNodeID(a.nodeID),
		cluster.WithClusterName(config.Cluster()),
		cluster.WithSource(a.group),
		cluster.WithApplier(a.group),
		cluster.WithPublishPeriod(config.AdvertisePeriod()),
	)
	if a.advertiser == nil {
		return errors.New("failed to create advertiser")
	}

	return errors.Wrap(a.advertiser.Start(), "failed to start advertiser")
}

func (a *App) watchConnectionStatus() {
	for {
		select {
		case <-a.ctx.Done():
			return
		case status := <-a.connectionStatus:
			a.logger.Info("connection status changed",
				zap.Bool("online", status.IsOnline),
				zap.Int("peers", status.PeersCount),
			)
		}
	}
}

// Leave announces a permanent departure from the cluster.
func (a *App) Leave() error {
	if a.advertiser == nil {
		return nil
	}
	return a.advertiser.Leave()
}

func (a *App) Stop() {
	if a.advertiser != nil {
		a.advertiser.Stop()
	}
	if a.transport != nil {
		a.transport.Stop()
	}
	if a.group != nil {
		a.group.Stop()
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("failed to close storage", zap.Error(err))
		}
	}
	a.quit()
}
