package auth

import (
	"context"
	"sort"
	"sync"
)

type MemoryStore struct {
	mu   sync.RWMutex
	data map[int64]Tokens
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[int64]Tokens{}}
}

func (s *MemoryStore) Save(_ context.Context, number int64, t Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[number] = t // upsert
	return nil
}

func (s *MemoryStore) Load(_ context.Context, number int64) (Tokens, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.data[number]
	if !ok {
		return Tokens{}, ErrNoTokens
	}
	return t, nil
}

func (s *MemoryStore) Numbers(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int64, 0, len(s.data))
	for n := range s.data {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
