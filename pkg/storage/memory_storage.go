package storage

import (
	"context"
	"sync"
)

// MemoryStorage is a non-durable Service, used where no data directory
// is available and in tests.
type MemoryStorage struct {
	mutex  sync.RWMutex
	params map[string]string
	writes int
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		params: make(map[string]string),
	}
}

func (s *MemoryStorage) Initialize() error {
	return nil
}

func (s *MemoryStorage) LocalParam(_ context.Context, key string) (string, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	value, ok := s.params[key]
	return value, ok, nil
}

func (s *MemoryStorage) SetLocalParam(_ context.Context, key string, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.params[key] = value
	s.writes++
	return nil
}

// Writes returns the number of SetLocalParam calls so far.
func (s *MemoryStorage) Writes() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.writes
}

func (s *MemoryStorage) Close() error {
	return nil
}
