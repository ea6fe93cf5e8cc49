package app

import (
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/six78/feature-negotiation/pkg/storage"
)

type Option func(*App)

func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

func WithStorage(s storage.Service) Option {
	return func(a *App) {
		a.storage = s
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(a *App) {
		a.clock = c
	}
}
