package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/loyalbridge/admin/internal/model"
)

// OTPResult is the outcome of verifying a one-time code.
type OTPResult int

const (
	OTPSuccess OTPResult = iota
	OTPNotFound
	OTPExpired
	OTPMismatch
)

func (r OTPResult) String() string {
	switch r {
	case OTPSuccess:
		return "success"
	case OTPNotFound:
		return "not_found"
	case OTPExpired:
		return "expired"
	case OTPMismatch:
		return "mismatch"
	}
	return "unknown"
}

// DefaultOTPTTL is how long an issued code stays valid.
const DefaultOTPTTL = 5 * time.Minute

// ChallengeStore holds at most one pending OTP challenge per email.
type ChallengeStore interface {
	// Issue generates a fresh 6-digit code for email, replacing any
	// pending challenge.
	Issue(ctx context.Context, email string) (string, error)
	// Verify checks code against the pending challenge. Success and Expired
	// consume the challenge; Mismatch keeps it.
	Verify(ctx context.Context, email, code string) (OTPResult, error)
	// Prune drops expired challenges and returns how many were removed.
	Prune(ctx context.Context) (int, error)
}

// ChallengeOptions configures a ChallengeStore.
type ChallengeOptions struct {
	TTL time.Duration
	// MaxAttempts discards a challenge once this many wrong codes have been
	// tried. Zero means unlimited.
	MaxAttempts int
	Now         func() time.Time
	Rand        io.Reader
}

func (o ChallengeOptions) withDefaults() ChallengeOptions {
	if o.TTL <= 0 {
		o.TTL = DefaultOTPTTL
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Rand == nil {
		o.Rand = rand.Reader
	}
	return o
}

var otpSpace = big.NewInt(1_000_000)

// generateOTP draws a uniformly random, zero-padded 6-digit code.
func generateOTP(r io.Reader) (string, error) {
	n, err := rand.Int(r, otpSpace)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func codesEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type challenge struct {
	code      string
	expiresAt time.Time
	attempts  int
}

// MemoryChallengeStore keeps challenges in process memory.
type MemoryChallengeStore struct {
	opts ChallengeOptions

	mu    sync.Mutex
	items map[string]*challenge
}

// NewMemoryChallengeStore returns an empty in-memory store.
func NewMemoryChallengeStore(opts ChallengeOptions) *MemoryChallengeStore {
	return &MemoryChallengeStore{
		opts:  opts.withDefaults(),
		items: make(map[string]*challenge),
	}
}

// Issue implements ChallengeStore.
func (s *MemoryChallengeStore) Issue(_ context.Context, email string) (string, error) {
	code, err := generateOTP(s.opts.Rand)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.items[model.NormalizeEmail(email)] = &challenge{
		code:      code,
		expiresAt: s.opts.Now().Add(s.opts.TTL),
	}
	s.mu.Unlock()
	return code, nil
}

// Verify implements ChallengeStore.
func (s *MemoryChallengeStore) Verify(_ context.Context, email, code string) (OTPResult, error) {
	key := model.NormalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.items[key]
	if !ok {
		return OTPNotFound, nil
	}
	if s.opts.Now().After(c.expiresAt) {
		delete(s.items, key)
		return OTPExpired, nil
	}
	if !codesEqual(c.code, code) {
		c.attempts++
		if s.opts.MaxAttempts > 0 && c.attempts >= s.opts.MaxAttempts {
			delete(s.items, key)
		}
		return OTPMismatch, nil
	}
	delete(s.items, key)
	return OTPSuccess, nil
}

// Prune implements ChallengeStore.
func (s *MemoryChallengeStore) Prune(_ context.Context) (int, error) {
	now := s.opts.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, c := range s.items {
		if now.After(c.expiresAt) {
			delete(s.items, k)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of pending challenges.
func (s *MemoryChallengeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
