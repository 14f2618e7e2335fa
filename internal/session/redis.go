package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "session:"

// redisTTLSlack keeps keys alive slightly past the inactivity window so a
// request arriving at the boundary still finds the record and can report
// SESSION_EXPIRED instead of the less specific SESSION_NOT_FOUND.
const redisTTLSlack = time.Minute

// RedisStore persists records as JSON under session:<id>. The key TTL is
// garbage collection only; the expiry decision always derives from
// last_activity_at.
type RedisStore struct {
	client *redis.Client
	policy Policy
}

func NewRedisStore(client *redis.Client, policy Policy) *RedisStore {
	return &RedisStore{
		client: client,
		policy: policy,
	}
}

func (s *RedisStore) key(sessionID string) string {
	return redisKeyPrefix + sessionID
}

func (s *RedisStore) ttl() time.Duration {
	return s.policy.InactivityTimeout + redisTTLSlack
}

func (s *RedisStore) Create(ctx context.Context, rec Record) error {
	if rec.SessionID == "" || rec.PrincipalID == "" {
		return fmt.Errorf("session: missing session_id or principal_id")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}

	return s.client.Set(ctx, s.key(rec.SessionID), data, s.ttl()).Err()
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (Record, error) {
	val, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err == redis.Nil {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}

	var rec Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return Record{}, fmt.Errorf("session: failed to unmarshal: %w", err)
	}

	return rec, nil
}

func (s *RedisStore) Touch(ctx context.Context, sessionID string, now time.Time) error {
	rec, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	// Monotonic guard; racing tabs may deliver touches out of order.
	if now.After(rec.LastActivityAt) {
		rec.LastActivityAt = now
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}

	return s.client.Set(ctx, s.key(sessionID), data, s.ttl()).Err()
}

func (s *RedisStore) Destroy(ctx context.Context, sessionID string) error {
	// DEL of a missing key is a no-op, which gives idempotence for free.
	return s.client.Del(ctx, s.key(sessionID)).Err()
}

func (s *RedisStore) PurgeExpired(_ context.Context, _ time.Time) (int, error) {
	// Key TTLs already garbage-collect stale records.
	return 0, nil
}
