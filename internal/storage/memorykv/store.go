// Package memorykv implements storage.Adapter over an in-process map.
// Not durable: all data is lost on process exit. Every other contract the
// adapter interface imposes holds.
package memorykv

import (
	"context"
	"strings"
	"sync"

	"github.com/ledgerstate/ledgerstate/internal/storage"
)

// Store is a single-process, non-durable key/value store partitioned by
// space id.
type Store struct {
	mu     sync.RWMutex
	spaces map[int64]map[string][]byte
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{spaces: make(map[int64]map[string][]byte)}
}

var _ storage.Adapter = (*Store)(nil)

func (s *Store) space(spaceID int64) map[string][]byte {
	m, ok := s.spaces[spaceID]
	if !ok {
		m = make(map[string][]byte)
		s.spaces[spaceID] = m
	}
	return m
}

func (s *Store) Get(_ context.Context, spaceID int64, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.spaces[spaceID]
	if !ok {
		return nil, false, nil
	}
	v, ok := m[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *Store) Put(_ context.Context, spaceID int64, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.space(spaceID)[key] = cp
	return nil
}

func (s *Store) Delete(_ context.Context, spaceID int64, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.spaces[spaceID]; ok {
		delete(m, key)
	}
	return nil
}

func (s *Store) Scan(_ context.Context, spaceID int64, prefix string) ([]storage.KV, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.spaces[spaceID]
	if !ok {
		return nil, nil
	}
	var out []storage.KV
	for k, v := range m {
		if strings.HasPrefix(k, prefix) {
			cp := make([]byte, len(v))
			copy(cp, v)
			out = append(out, storage.KV{Key: k, Value: cp})
		}
	}
	return out, nil
}

func (s *Store) MultiGet(_ context.Context, spaceID int64, keys []string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte)
	m, ok := s.spaces[spaceID]
	if !ok {
		return out, nil
	}
	for _, k := range keys {
		if v, ok := m[k]; ok {
			cp := make([]byte, len(v))
			copy(cp, v)
			out[k] = cp
		}
	}
	return out, nil
}

func (s *Store) MultiPut(_ context.Context, spaceID int64, pairs []storage.KV) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.space(spaceID)
	for _, kv := range pairs {
		cp := make([]byte, len(kv.Value))
		copy(cp, kv.Value)
		m[kv.Key] = cp // last-write-wins on duplicate keys in the batch
	}
	return nil
}

func (s *Store) DeleteSpace(_ context.Context, spaceID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.spaces, spaceID)
	return nil
}

func (s *Store) Close() error {
	return nil
}
