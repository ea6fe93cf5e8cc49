package storage

import (
	"context"

	"github.com/pkg/errors"
)

//go:generate mockgen -source=service.go -destination=mock/service.go

var ErrNotInitialized = errors.New("storage not initialized")

// Service is a durable store of node-local parameters.
// A missing key is reported with ok == false and no error.
type Service interface {
	Initialize() error
	LocalParam(ctx context.Context, key string) (value string, ok bool, err error)
	SetLocalParam(ctx context.Context, key string, value string) error
	Close() error
}
