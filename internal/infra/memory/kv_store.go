package memory

import (
	"context"
	"sync"
)

// KVStore is an in-memory implementation of session.KeyValueStore, used for
// tests and redis-less deployments. State does not survive a process restart.
type KVStore struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

func NewKVStore() *KVStore {
	return &KVStore{data: make(map[string]map[string]string)}
}

func (s *KVStore) Get(_ context.Context, sessionID, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys, ok := s.data[sessionID]
	if !ok {
		return "", false, nil
	}
	value, ok := keys[key]
	return value, ok, nil
}

func (s *KVStore) Set(_ context.Context, sessionID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys, ok := s.data[sessionID]
	if !ok {
		keys = make(map[string]string)
		s.data[sessionID] = keys
	}
	keys[key] = value
	return nil
}

func (s *KVStore) Clear(_ context.Context, sessionID string, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.data[sessionID]
	if !ok {
		return nil
	}
	for _, key := range keys {
		delete(stored, key)
	}
	if len(stored) == 0 {
		delete(s.data, sessionID)
	}
	return nil
}
