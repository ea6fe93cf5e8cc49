// Package shard runs one features.Service per execution unit. Each service
// is only touched by the goroutine of its unit; callers submit tasks.
package shard

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/six78/feature-negotiation/pkg/features"
	"github.com/six78/feature-negotiation/pkg/protocol"
)

var (
	ErrStopped     = errors.New("shard group stopped")
	ErrUnknownUnit = errors.New("unknown unit")
)

// Task runs on the goroutine of a unit with exclusive access to its service.
type Task func(ctx context.Context, service *features.Service) error

// Factory creates the service of unit id.
type Factory func(id int) *features.Service

type request struct {
	ctx    context.Context
	task   Task
	result chan error
}

type unit struct {
	id      int
	service *features.Service
	tasks   chan request
}

type Group struct {
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	units  []*unit
	wg     sync.WaitGroup
}

func NewGroup(ctx context.Context, count int, factory Factory, logger *zap.Logger) *Group {
	if logger == nil {
		logger = zap.NewNop()
	}
	if count < 1 {
		count = 1
	}

	g := &Group{
		logger: logger.Named("shard"),
		units:  make([]*unit, 0, count),
	}
	g.ctx, g.cancel = context.WithCancel(ctx)

	for id := 0; id < count; id++ {
		u := &unit{
			id:      id,
			service: factory(id),
			tasks:   make(chan request),
		}
		g.units = append(g.units, u)
		g.wg.Add(1)
		go g.loop(u)
	}

	g.logger.Debug("started", zap.Int("units", count))
	return g
}

func (g *Group) loop(u *unit) {
	defer g.wg.Done()
	for {
		select {
		case <-g.ctx.Done():
			u.service.Stop()
			return
		case req := <-u.tasks:
			req.result <- req.task(req.ctx, u.service)
		}
	}
}

func (g *Group) Count() int {
	return len(g.units)
}

// Submit runs task on unit id and waits for its result.
func (g *Group) Submit(ctx context.Context, id int, task Task) error {
	if id < 0 || id >= len(g.units) {
		return errors.Wrapf(ErrUnknownUnit, "%d", id)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	req := request{
		ctx:    ctx,
		task:   task,
		result: make(chan error, 1),
	}

	select {
	case g.units[id].tasks <- req:
	case <-g.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InvokeOnAll runs task on every unit concurrently. It waits for all of
// them and returns the first error.
func (g *Group) InvokeOnAll(ctx context.Context, task Task) error {
	var group errgroup.Group
	for id := range g.units {
		id := id
		group.Go(func() error {
			err := g.Submit(ctx, id, task)
			return errors.Wrapf(err, "unit %d", id)
		})
	}
	return group.Wait()
}

// EnableFeatures enables the given features on every unit.
func (g *Group) EnableFeatures(ctx context.Context, set protocol.FeatureSet) error {
	return g.InvokeOnAll(ctx, func(ctx context.Context, service *features.Service) error {
		return service.EnableSet(ctx, set)
	})
}

// SupportedFeatureSet returns the supported features as seen by unit 0.
// All units share the same configuration.
func (g *Group) SupportedFeatureSet(ctx context.Context) (protocol.FeatureSet, error) {
	var result protocol.FeatureSet
	err := g.Submit(ctx, 0, func(ctx context.Context, service *features.Service) error {
		result = service.SupportedFeatureSet()
		return nil
	})
	return result, err
}

// Stop stops every unit and waits for them to exit.
func (g *Group) Stop() {
	g.cancel()
	g.wg.Wait()
	g.logger.Debug("stopped")
}
