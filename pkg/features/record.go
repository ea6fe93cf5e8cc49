package features

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/six78/feature-negotiation/pkg/protocol"
)

const (
	EnabledFeaturesKey   = "enabled_features"
	SupportedFeaturesKey = "supported_features"
)

// Store is a durable key-value store of node-local parameters.
// storage.Service implements it.
type Store interface {
	LocalParam(ctx context.Context, key string) (string, bool, error)
	SetLocalParam(ctx context.Context, key string, value string) error
}

// Record is the durable list of enabled features of this node.
//
// One Record is shared by all shards of a process: its mutex serializes the
// read-modify-write of the enabled features key. Writers from other
// processes to the same key are not supported.
type Record struct {
	store Store
	mutex sync.Mutex
}

func NewRecord(store Store) *Record {
	return &Record{store: store}
}

// EnabledFeatures returns the persisted set. A missing key is an empty set.
func (r *Record) EnabledFeatures(ctx context.Context) (protocol.FeatureSet, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.enabledFeatures(ctx)
}

func (r *Record) enabledFeatures(ctx context.Context) (protocol.FeatureSet, error) {
	value, ok, err := r.store.LocalParam(ctx, EnabledFeaturesKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read enabled features")
	}
	if !ok {
		return protocol.NewFeatureSet(), nil
	}
	return protocol.ParseFeatureSet(value), nil
}

// AddEnabledFeature durably adds name to the enabled features.
func (r *Record) AddEnabledFeature(ctx context.Context, name string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	features, err := r.enabledFeatures(ctx)
	if err != nil {
		return err
	}
	if features.Contains(name) {
		return nil
	}

	features.Add(name)
	err = r.store.SetLocalParam(ctx, EnabledFeaturesKey, features.String())
	return errors.Wrap(err, "failed to persist enabled features")
}

// SaveSupportedFeatures replaces the persisted supported features.
func (r *Record) SaveSupportedFeatures(ctx context.Context, features protocol.FeatureSet) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	err := r.store.SetLocalParam(ctx, SupportedFeaturesKey, features.String())
	return errors.Wrap(err, "failed to persist supported features")
}

func (r *Record) SupportedFeatures(ctx context.Context) (protocol.FeatureSet, bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	value, ok, err := r.store.LocalParam(ctx, SupportedFeaturesKey)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to read supported features")
	}
	return protocol.ParseFeatureSet(value), ok, nil
}
