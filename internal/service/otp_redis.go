package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/loyalbridge/admin/internal/model"
)

// otpExpiryGrace keeps a challenge in Redis past its logical expiry so a
// late verify reports Expired instead of NotFound.
const otpExpiryGrace = time.Minute

// verifyOTPScript runs the whole verify transition atomically.
// KEYS[1] challenge hash; ARGV code, now (unix ms), max attempts.
// Returns 0 not found, 1 success, 2 expired, 3 mismatch.
var verifyOTPScript = redis.NewScript(`
local code = redis.call('HGET', KEYS[1], 'code')
if not code then
  return 0
end
local expires = tonumber(redis.call('HGET', KEYS[1], 'expires_at'))
if tonumber(ARGV[2]) > expires then
  redis.call('DEL', KEYS[1])
  return 2
end
if code ~= ARGV[1] then
  local attempts = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
  local max = tonumber(ARGV[3])
  if max > 0 and attempts >= max then
    redis.call('DEL', KEYS[1])
  end
  return 3
end
redis.call('DEL', KEYS[1])
return 1
`)

// RedisChallengeStore shares OTP challenges between instances.
type RedisChallengeStore struct {
	client *redis.Client
	prefix string
	opts   ChallengeOptions
}

// NewRedisChallengeStore stores challenges under "<prefix>:otp:<email>".
func NewRedisChallengeStore(client *redis.Client, prefix string, opts ChallengeOptions) *RedisChallengeStore {
	return &RedisChallengeStore{client: client, prefix: prefix, opts: opts.withDefaults()}
}

func (s *RedisChallengeStore) key(email string) string {
	return fmt.Sprintf("%s:otp:%s", s.prefix, model.NormalizeEmail(email))
}

// Issue implements ChallengeStore.
func (s *RedisChallengeStore) Issue(ctx context.Context, email string) (string, error) {
	code, err := generateOTP(s.opts.Rand)
	if err != nil {
		return "", err
	}
	key := s.key(email)
	expiresAt := s.opts.Now().Add(s.opts.TTL).UnixMilli()

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "code", code, "expires_at", expiresAt, "attempts", 0)
		pipe.PExpire(ctx, key, s.opts.TTL+otpExpiryGrace)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("store otp challenge: %w", err)
	}
	return code, nil
}

// Verify implements ChallengeStore.
func (s *RedisChallengeStore) Verify(ctx context.Context, email, code string) (OTPResult, error) {
	res, err := verifyOTPScript.Run(ctx, s.client, []string{s.key(email)},
		code, s.opts.Now().UnixMilli(), s.opts.MaxAttempts).Int()
	if err != nil {
		return OTPNotFound, fmt.Errorf("verify otp challenge: %w", err)
	}
	switch res {
	case 1:
		return OTPSuccess, nil
	case 2:
		return OTPExpired, nil
	case 3:
		return OTPMismatch, nil
	default:
		return OTPNotFound, nil
	}
}

// Prune implements ChallengeStore. Redis expires challenge keys on its own.
func (s *RedisChallengeStore) Prune(context.Context) (int, error) {
	return 0, nil
}
