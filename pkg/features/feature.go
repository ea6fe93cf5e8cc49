package features

import (
	"go.uber.org/zap"
)

type Listener func()

// Feature is a single cluster feature. It starts disabled and can only be
// enabled, never disabled again.
//
// A Feature registers itself with the Service it was created for and keeps a
// non-owning reference to it, so that Close can deregister it.
type Feature struct {
	service   *Service
	name      string
	enabled   bool
	listeners []*listener
}

type listener struct {
	fn Listener
}

func NewFeature(service *Service, name string) *Feature {
	return newFeature(service, name, false)
}

// NewEnabledFeature creates a feature that is enabled from the start.
// Used for capabilities that need no cluster agreement.
func NewEnabledFeature(service *Service, name string) *Feature {
	return newFeature(service, name, true)
}

func newFeature(service *Service, name string, enabled bool) *Feature {
	f := &Feature{
		service: service,
		name:    name,
		enabled: enabled,
	}
	if f.service != nil {
		f.service.register(f)
	}
	return f
}

func (f *Feature) Name() string {
	return f.name
}

func (f *Feature) Enabled() bool {
	return f.enabled
}

// Enable switches the feature on and notifies listeners.
// Calling Enable on an enabled feature does nothing.
func (f *Feature) Enable() {
	if f.enabled {
		return
	}

	if f.service != nil && f.service.shard == 0 {
		f.service.logger.Info("feature enabled", zap.String("feature", f.name))
	}

	f.enabled = true

	listeners := make([]*listener, len(f.listeners))
	copy(listeners, f.listeners)
	for _, l := range listeners {
		l.fn()
	}
}

// OnEnabled registers fn to be called when the feature gets enabled.
// If the feature is already enabled, fn is called right away.
// The returned function removes the listener.
func (f *Feature) OnEnabled(fn Listener) func() {
	if f.enabled {
		fn()
		return func() {}
	}

	l := &listener{fn: fn}
	f.listeners = append(f.listeners, l)

	return func() {
		for i, existing := range f.listeners {
			if existing == l {
				f.listeners = append(f.listeners[:i], f.listeners[i+1:]...)
				return
			}
		}
	}
}

// MoveFrom makes f take over other: its service, name, state and listeners.
// Both registrations are dropped before f is registered again, so the
// service never sees two features with the same name.
func (f *Feature) MoveFrom(other *Feature) {
	if f == other {
		return
	}

	if f.service != nil {
		f.service.unregister(f)
	}
	if other.service != nil {
		other.service.unregister(other)
	}

	f.service = other.service
	f.name = other.name
	f.enabled = other.enabled
	f.listeners = other.listeners

	other.service = nil
	other.listeners = nil

	if f.service != nil {
		f.service.register(f)
	}
}

// Close deregisters the feature. It is safe to call more than once
// and after the service was stopped.
func (f *Feature) Close() {
	if f.service == nil {
		return
	}
	f.service.unregister(f)
	f.service = nil
}
