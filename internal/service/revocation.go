package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// DefaultBlacklistRetention is how long revocations are kept at minimum.
const DefaultBlacklistRetention = 24 * time.Hour

// RevocationStore is the token blacklist. Tokens are keyed by their SHA-256
// digest; raw tokens are never stored.
type RevocationStore interface {
	// Revoke blacklists token. tokenExpiresAt is the token's own expiry
	// (zero if unknown) and keeps the entry alive at least that long.
	// Revoking an already revoked token keeps the original revocation time.
	Revoke(ctx context.Context, token string, tokenExpiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
	// Prune removes entries revoked more than retention ago whose token
	// has also expired, and returns how many were removed.
	Prune(ctx context.Context, retention time.Duration) (int, error)
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

type revocation struct {
	revokedAt      time.Time
	tokenExpiresAt time.Time
}

// MemoryRevocationStore keeps the blacklist in process memory.
type MemoryRevocationStore struct {
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]revocation
}

// NewMemoryRevocationStore returns an empty blacklist. now may be nil.
func NewMemoryRevocationStore(now func() time.Time) *MemoryRevocationStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryRevocationStore{now: now, entries: make(map[string]revocation)}
}

// Revoke implements RevocationStore.
func (s *MemoryRevocationStore) Revoke(_ context.Context, token string, tokenExpiresAt time.Time) error {
	key := hashToken(token)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		return nil
	}
	s.entries[key] = revocation{revokedAt: s.now(), tokenExpiresAt: tokenExpiresAt}
	return nil
}

// IsRevoked implements RevocationStore.
func (s *MemoryRevocationStore) IsRevoked(_ context.Context, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[hashToken(token)]
	return ok, nil
}

// Prune implements RevocationStore.
func (s *MemoryRevocationStore) Prune(_ context.Context, retention time.Duration) (int, error) {
	now := s.now()
	cutoff := now.Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, e := range s.entries {
		if !e.revokedAt.Before(cutoff) {
			continue
		}
		if !e.tokenExpiresAt.IsZero() && now.Before(e.tokenExpiresAt) {
			continue
		}
		delete(s.entries, k)
		removed++
	}
	return removed, nil
}

// Len returns the number of blacklisted tokens.
func (s *MemoryRevocationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
