package settings

import (
	"context"
	"time"
)

// MemoryStore keeps settings in process. Used when no Redis is configured
// and in tests.
type MemoryStore struct {
	vals *values
}

func NewMemoryStore(d Defaults) *MemoryStore {
	return &MemoryStore{vals: newValues(d)}
}

func (s *MemoryStore) AccessTokenLifetime() time.Duration {
	return s.vals.get(AccessTokenLifetime)
}

func (s *MemoryStore) RefreshTokenLifetime() time.Duration {
	return s.vals.get(RefreshTokenLifetime)
}

func (s *MemoryStore) Set(_ context.Context, key Key, value time.Duration) error {
	if err := Validate(key, value); err != nil {
		return err
	}
	s.vals.apply(key, value)
	return nil
}

func (s *MemoryStore) Subscribe(fn Listener) func() {
	return s.vals.subscribe(fn)
}
