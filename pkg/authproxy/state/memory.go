// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"sync"
	"time"
)

// DefaultCleanupInterval is how often the background cleanup sweeps expired
// entries out of the in-memory store.
const DefaultCleanupInterval = time.Minute

// timedEntry wraps a value with its expiry for TTL tracking.
type timedEntry[T any] struct {
	value     T
	expiresAt time.Time
}

func (e *timedEntry[T]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryStore implements Store with in-memory maps. It is thread-safe and
// suitable for a single-instance deployment and for tests; multi-instance
// deployments need the Redis backend since the maps are process-local.
//
// Take operations hold the write lock across the read and the delete, which
// makes consumption atomic: two concurrent redemptions of the same key can
// never both succeed.
type MemoryStore struct {
	mu sync.Mutex

	// pending maps internal state -> pending authorization (both flows,
	// discriminated by FlowType).
	pending map[string]*timedEntry[*PendingAuthorization]

	// codes maps issued authorization code -> code record.
	codes map[string]*timedEntry[*AuthorizationCode]

	// sessions maps browser session ID -> bare upstream access token.
	sessions map[string]*timedEntry[string]

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	cleanupDone     chan struct{}
}

// MemoryStoreOption configures a MemoryStore instance.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets a custom cleanup interval.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.cleanupInterval = interval
	}
}

// NewMemoryStore creates a MemoryStore with initialized maps and starts the
// background cleanup goroutine.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		pending:         make(map[string]*timedEntry[*PendingAuthorization]),
		codes:           make(map[string]*timedEntry[*AuthorizationCode]),
		sessions:        make(map[string]*timedEntry[string]),
		cleanupInterval: DefaultCleanupInterval,
		stopCleanup:     make(chan struct{}),
		cleanupDone:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.cleanupLoop()

	return s
}

// PutPendingAuthorization stores a pending authorization keyed by internal state.
func (s *MemoryStore) PutPendingAuthorization(
	_ context.Context, state string, pending *PendingAuthorization, ttl time.Duration,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[state] = &timedEntry[*PendingAuthorization]{
		value:     pending,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// TakePendingAuthorization atomically retrieves and deletes a pending authorization.
func (s *MemoryStore) TakePendingAuthorization(
	_ context.Context, state string,
) (*PendingAuthorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.pending[state]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.pending, state)

	if entry.expired(time.Now()) {
		return nil, ErrNotFound
	}
	return entry.value, nil
}

// PutAuthorizationCode stores an issued authorization code.
func (s *MemoryStore) PutAuthorizationCode(
	_ context.Context, code string, issued *AuthorizationCode, ttl time.Duration,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.codes[code] = &timedEntry[*AuthorizationCode]{
		value:     issued,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// TakeAuthorizationCode atomically retrieves and deletes an issued code.
func (s *MemoryStore) TakeAuthorizationCode(
	_ context.Context, code string,
) (*AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.codes[code]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.codes, code)

	if entry.expired(time.Now()) {
		return nil, ErrNotFound
	}
	return entry.value, nil
}

// PutSession stores a browser session.
func (s *MemoryStore) PutSession(
	_ context.Context, sessionID, accessToken string, ttl time.Duration,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionID] = &timedEntry[string]{
		value:     accessToken,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// GetSession retrieves the access token for a browser session.
func (s *MemoryStore) GetSession(_ context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[sessionID]
	if !ok {
		return "", ErrNotFound
	}
	if entry.expired(time.Now()) {
		delete(s.sessions, sessionID)
		return "", ErrNotFound
	}
	return entry.value, nil
}

// DeleteSession removes a browser session.
func (s *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

// Health is a no-op for in-memory storage since it is always available.
func (*MemoryStore) Health(_ context.Context) error {
	return nil
}

// Close stops the background cleanup goroutine and waits for it to finish.
func (s *MemoryStore) Close() error {
	close(s.stopCleanup)
	<-s.cleanupDone
	return nil
}

// cleanupLoop runs periodic cleanup of expired entries.
func (s *MemoryStore) cleanupLoop() {
	defer close(s.cleanupDone)

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanupExpired()
		}
	}
}

// cleanupExpired removes all expired entries from the store.
func (s *MemoryStore) cleanupExpired() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range s.pending {
		if v.expired(now) {
			delete(s.pending, k)
		}
	}
	for k, v := range s.codes {
		if v.expired(now) {
			delete(s.codes, k)
		}
	}
	for k, v := range s.sessions {
		if v.expired(now) {
			delete(s.sessions, k)
		}
	}
}

// Compile-time interface compliance check.
var _ Store = (*MemoryStore)(nil)
