package features

import "go.uber.org/zap"

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithRecord attaches the durable record of enabled features.
// Without it, activation is kept in memory only.
func WithRecord(r *Record) Option {
	return func(s *Service) {
		s.record = r
	}
}

// WithShard sets the execution unit the service belongs to.
// Only shard 0 logs feature activation.
func WithShard(shard int) Option {
	return func(s *Service) {
		s.shard = shard
	}
}
