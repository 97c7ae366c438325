// Package storage persists guest data as opaque values in per-guest
// keyspaces. Writes are atomic per key and never span keys.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrNotFound is returned by Get for a key that was never set or was deleted.
	ErrNotFound = errors.New("key not found")

	// ErrQuotaExceeded is returned when a guest keyspace cannot take another write.
	ErrQuotaExceeded = errors.New("guest storage quota exceeded")

	ErrInvalidGuest = errors.New("invalid guest id")
)

// KV is one guest's keyspace.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists the keys starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Store hands out isolated keyspaces, one per guest.
type Store interface {
	Space(guestID string) KV
	Ping(ctx context.Context) error
	Close() error
}

// Kind selects a Store implementation.
type Kind string

const (
	KindMemory Kind = "memory"
	KindBolt   Kind = "bolt"
	KindSQLite Kind = "sqlite"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindMemory, KindBolt, KindSQLite:
		return true
	}
	return false
}

// Options configures Open.
type Options struct {
	Kind       Kind
	BoltPath   string
	SQLitePath string
	// MaxKeysPerGuest caps each keyspace; 0 means unlimited.
	MaxKeysPerGuest int
}

// Open builds the store named by opts.Kind.
func Open(opts Options) (Store, error) {
	switch opts.Kind {
	case KindMemory, "":
		return NewMemoryStore(opts.MaxKeysPerGuest), nil
	case KindBolt:
		return NewBoltStore(opts.BoltPath, opts.MaxKeysPerGuest)
	case KindSQLite:
		return NewSQLiteStore(opts.SQLitePath, opts.MaxKeysPerGuest)
	default:
		return nil, fmt.Errorf("unsupported guest store: %s", opts.Kind)
	}
}

// MemoryStore keeps every keyspace in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	spaces  map[string]map[string][]byte
	maxKeys int
}

func NewMemoryStore(maxKeysPerGuest int) *MemoryStore {
	return &MemoryStore{
		spaces:  make(map[string]map[string][]byte),
		maxKeys: maxKeysPerGuest,
	}
}

func (s *MemoryStore) Space(guestID string) KV {
	return &memorySpace{store: s, guest: guestID}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// Guests reports how many keyspaces hold at least one key.
func (s *MemoryStore) Guests() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.spaces)
}

type memorySpace struct {
	store *MemoryStore
	guest string
}

func (m *memorySpace) Get(_ context.Context, key string) ([]byte, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	v, ok := m.store.spaces[m.guest][key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *memorySpace) Set(_ context.Context, key string, value []byte) error {
	if m.guest == "" {
		return ErrInvalidGuest
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	space, ok := m.store.spaces[m.guest]
	if !ok {
		space = make(map[string][]byte)
		m.store.spaces[m.guest] = space
	}
	if _, exists := space[key]; !exists && m.store.maxKeys > 0 && len(space) >= m.store.maxKeys {
		return ErrQuotaExceeded
	}
	v := make([]byte, len(value))
	copy(v, value)
	space[key] = v
	return nil
}

func (m *memorySpace) Delete(_ context.Context, key string) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if space, ok := m.store.spaces[m.guest]; ok {
		delete(space, key)
		if len(space) == 0 {
			delete(m.store.spaces, m.guest)
		}
	}
	return nil
}

func (m *memorySpace) Keys(_ context.Context, prefix string) ([]string, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	var keys []string
	for k := range m.store.spaces[m.guest] {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
