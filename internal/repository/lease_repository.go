package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/erp-status-api/internal/models"
)

const (
	leaseKeyPrefix = "stock:lease:"
	fenceKeyPrefix = "stock:fence:"
	tokenKeyPrefix = "stock:token:"

	// endedRetention keeps the outcome of an ended token past its original expiry so
	// the issuing instance can tell a release elsewhere from a lapse.
	endedRetention = time.Minute
)

// acquireScript sets the lease only when it is free and, on success, bumps the
// per-key fencing counter and stores the token metadata under the same TTL.
// It returns the new fence or 0 when the lease is held.
var acquireScript = redis.NewScript(`
if redis.call('SET', KEYS[1], ARGV[1], 'NX', 'PX', ARGV[2]) then
  local fence = redis.call('INCR', KEYS[2])
  redis.call('DEL', KEYS[3])
  redis.call('HSET', KEYS[3], 'data', ARGV[3], 'fence', fence)
  redis.call('PEXPIRE', KEYS[3], ARGV[2])
  return fence
end
return 0
`)

// releaseScript deletes the lease only when it still belongs to the caller and
// marks the token metadata with the outcome.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  redis.call('DEL', KEYS[1])
  redis.call('HSET', KEYS[2], 'ended', ARGV[2])
  redis.call('PEXPIRE', KEYS[2], ARGV[3])
  return 1
end
return 0
`)

// RedisLeaseStore keeps exclusive leases and the tokens holding them in Redis so
// every API instance sees the same holder.
type RedisLeaseStore struct {
	client *redis.Client
}

// NewRedisLeaseStore constructs a Redis-backed lease store.
func NewRedisLeaseStore(client *redis.Client) *RedisLeaseStore {
	return &RedisLeaseStore{client: client}
}

// Acquire takes the lease for token.LeaseKey() on behalf of token.Token and records
// the token. On success token.Fence carries the new fence; ok is false when another
// token owns the lease.
func (s *RedisLeaseStore) Acquire(ctx context.Context, token *models.StockAccessToken, ttl time.Duration) (bool, error) {
	key := token.LeaseKey()
	data, err := json.Marshal(token)
	if err != nil {
		return false, fmt.Errorf("encode access token: %w", err)
	}
	fence, err := acquireScript.Run(ctx, s.client,
		[]string{leaseKeyPrefix + key, fenceKeyPrefix + key, tokenKeyPrefix + token.Token},
		token.Token, ttl.Milliseconds(), data,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if fence == 0 {
		return false, nil
	}
	token.Fence = fence
	return true, nil
}

// Lookup returns the live token, or nil when it is unknown, expired or ended.
func (s *RedisLeaseStore) Lookup(ctx context.Context, token string) (*models.StockAccessToken, error) {
	fields, err := s.client.HGetAll(ctx, tokenKeyPrefix+token).Result()
	if err != nil {
		return nil, fmt.Errorf("read access token: %w", err)
	}
	if len(fields) == 0 || fields["ended"] != "" {
		return nil, nil
	}
	var t models.StockAccessToken
	if err := json.Unmarshal([]byte(fields["data"]), &t); err != nil {
		return nil, fmt.Errorf("decode access token: %w", err)
	}
	if t.Fence, err = strconv.ParseInt(fields["fence"], 10, 64); err != nil {
		return nil, fmt.Errorf("decode access token fence: %w", err)
	}
	return &t, nil
}

// Release drops the lease when token still owns it, records outcome and reports
// whether it did.
func (s *RedisLeaseStore) Release(ctx context.Context, token *models.StockAccessToken, outcome models.TokenOutcome) (bool, error) {
	key := token.LeaseKey()
	deleted, err := releaseScript.Run(ctx, s.client,
		[]string{leaseKeyPrefix + key, tokenKeyPrefix + token.Token},
		token.Token, string(outcome), retention(token).Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("release lease %s: %w", key, err)
	}
	return deleted == 1, nil
}

// Outcome returns how an ended token finished, or an empty outcome when it was never
// released or cancelled.
func (s *RedisLeaseStore) Outcome(ctx context.Context, token string) (models.TokenOutcome, error) {
	outcome, err := s.client.HGet(ctx, tokenKeyPrefix+token, "ended").Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read access token outcome: %w", err)
	}
	return models.TokenOutcome(outcome), nil
}

// Holder returns the token owning the lease, or an empty string when the lease is free.
func (s *RedisLeaseStore) Holder(ctx context.Context, key string) (string, error) {
	holder, err := s.client.Get(ctx, leaseKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read lease %s: %w", key, err)
	}
	return holder, nil
}

func retention(token *models.StockAccessToken) time.Duration {
	remaining := time.Until(token.ExpiresAt)
	if remaining < 0 {
		remaining = 0
	}
	return remaining + endedRetention
}

type memoryLease struct {
	holder    string
	expiresAt time.Time
}

type memoryToken struct {
	token     models.StockAccessToken
	expiresAt time.Time
	outcome   models.TokenOutcome
}

// MemoryLeaseStore is a process-local lease store for tests and single-node development.
// Services sharing one instance behave like API nodes sharing Redis.
type MemoryLeaseStore struct {
	mu     sync.Mutex
	leases map[string]memoryLease
	fences map[string]int64
	tokens map[string]memoryToken
	now    func() time.Time
}

// NewMemoryLeaseStore constructs an empty in-memory lease store.
func NewMemoryLeaseStore() *MemoryLeaseStore {
	return &MemoryLeaseStore{
		leases: make(map[string]memoryLease),
		fences: make(map[string]int64),
		tokens: make(map[string]memoryToken),
		now:    time.Now,
	}
}

// WithClock overrides the time source.
func (s *MemoryLeaseStore) WithClock(now func() time.Time) *MemoryLeaseStore {
	s.now = now
	return s
}

// Acquire implements the same contract as RedisLeaseStore.Acquire.
func (s *MemoryLeaseStore) Acquire(_ context.Context, token *models.StockAccessToken, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	key := token.LeaseKey()
	if lease, ok := s.leases[key]; ok && now.Before(lease.expiresAt) {
		return false, nil
	}
	s.fences[key]++
	token.Fence = s.fences[key]
	s.leases[key] = memoryLease{holder: token.Token, expiresAt: now.Add(ttl)}
	s.tokens[token.Token] = memoryToken{token: *token, expiresAt: now.Add(ttl)}
	return true, nil
}

// Lookup implements the same contract as RedisLeaseStore.Lookup.
func (s *MemoryLeaseStore) Lookup(_ context.Context, token string) (*models.StockAccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.tokens[token]
	if !ok || !s.now().Before(entry.expiresAt) {
		if ok {
			delete(s.tokens, token)
		}
		return nil, nil
	}
	if entry.outcome != "" {
		return nil, nil
	}
	t := entry.token
	return &t, nil
}

// Release implements the same contract as RedisLeaseStore.Release.
func (s *MemoryLeaseStore) Release(_ context.Context, token *models.StockAccessToken, outcome models.TokenOutcome) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	key := token.LeaseKey()
	lease, ok := s.leases[key]
	if !ok || lease.holder != token.Token || !now.Before(lease.expiresAt) {
		return false, nil
	}
	delete(s.leases, key)
	if entry, ok := s.tokens[token.Token]; ok {
		entry.outcome = outcome
		entry.expiresAt = lease.expiresAt.Add(endedRetention)
		s.tokens[token.Token] = entry
	}
	return true, nil
}

// Outcome implements the same contract as RedisLeaseStore.Outcome.
func (s *MemoryLeaseStore) Outcome(_ context.Context, token string) (models.TokenOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.tokens[token]
	if !ok || !s.now().Before(entry.expiresAt) {
		return "", nil
	}
	return entry.outcome, nil
}

// Holder implements the same contract as RedisLeaseStore.Holder.
func (s *MemoryLeaseStore) Holder(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lease, ok := s.leases[key]
	if !ok {
		return "", nil
	}
	if !s.now().Before(lease.expiresAt) {
		delete(s.leases, key)
		return "", nil
	}
	return lease.holder, nil
}
