package service

import (
	"context"
	"sync"

	"nexttale/shared/interfaces"
)

var _ interfaces.InFlightSet = (*MemoryInFlightSet)(nil)

// MemoryInFlightSet is a process-local claim set.
type MemoryInFlightSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewMemoryInFlightSet() *MemoryInFlightSet {
	return &MemoryInFlightSet{keys: make(map[string]struct{})}
}

func (s *MemoryInFlightSet) TryClaim(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.keys[key]; taken {
		return false, nil
	}
	s.keys[key] = struct{}{}
	return true, nil
}

func (s *MemoryInFlightSet) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.keys, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of claimed keys.
func (s *MemoryInFlightSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}
