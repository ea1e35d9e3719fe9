package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sellerhub/backend/internal/domain/connection"
)

// stateEntry is one stored handshake with its expiration
type stateEntry struct {
	state     *connection.HandshakeState
	expiresAt time.Time
}

// InMemoryStateStore holds in-flight OAuth handshake state in process memory.
// This is suitable for single-instance deployments and testing; multi-instance
// deployments need the Redis store so callbacks can land on any instance.
type InMemoryStateStore struct {
	mu        sync.Mutex
	entries   map[string]stateEntry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryStateStore creates an in-memory handshake state store.
// It starts a background goroutine to clean up expired entries.
func NewInMemoryStateStore() *InMemoryStateStore {
	store := &InMemoryStateStore{
		entries:  make(map[string]stateEntry),
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// Put stores handshake state under the state token with a TTL
func (s *InMemoryStateStore) Put(_ context.Context, state string, hs *connection.HandshakeState, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[state] = stateEntry{
		state:     hs,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Take retrieves and removes the handshake state. The token is single-use:
// a replayed callback sees ErrStateNotFound.
func (s *InMemoryStateStore) Take(_ context.Context, state string) (*connection.HandshakeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[state]
	if !ok {
		return nil, connection.ErrStateNotFound
	}
	delete(s.entries, state)

	if time.Now().After(e.expiresAt) {
		return nil, connection.ErrStateNotFound
	}
	return e.state, nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryStateStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// cleanupLoop periodically removes expired entries
func (s *InMemoryStateStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryStateStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for state, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, state)
		}
	}
}

// Size returns the number of entries in the store (for testing/monitoring)
func (s *InMemoryStateStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Ensure InMemoryStateStore implements StateStore
var _ connection.StateStore = (*InMemoryStateStore)(nil)
