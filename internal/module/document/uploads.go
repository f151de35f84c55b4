package document

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// UploadSlots tracks in-flight uploads per organization in Redis. The
// TTL bounds how long a crashed upload holds a slot.
type UploadSlots struct {
	redis redis.UniversalClient
	ttl   time.Duration
}

// NewUploadSlots creates an upload slot tracker.
func NewUploadSlots(rdb redis.UniversalClient, ttl time.Duration) *UploadSlots {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &UploadSlots{redis: rdb, ttl: ttl}
}

func (s *UploadSlots) key(orgID uuid.UUID) string {
	return fmt.Sprintf("uploads:active:%s", orgID)
}

// Acquire claims a slot and returns the count of active uploads
// including this one. Callers that fail the concurrency check must
// Release the slot.
func (s *UploadSlots) Acquire(ctx context.Context, orgID uuid.UUID) (int, error) {
	key := s.key(orgID)

	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("acquire upload slot: %w", err)
	}
	if err := s.redis.Expire(ctx, key, s.ttl).Err(); err != nil {
		return 0, fmt.Errorf("refresh slot ttl: %w", err)
	}
	return int(count), nil
}

// Release frees a slot. The counter never goes below zero.
func (s *UploadSlots) Release(ctx context.Context, orgID uuid.UUID) error {
	key := s.key(orgID)

	count, err := s.redis.Decr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("release upload slot: %w", err)
	}
	if count < 0 {
		return s.redis.Del(ctx, key).Err()
	}
	return nil
}

// Active returns the number of in-flight uploads for an organization.
func (s *UploadSlots) Active(ctx context.Context, orgID uuid.UUID) (int, error) {
	count, err := s.redis.Get(ctx, s.key(orgID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read upload slots: %w", err)
	}
	return count, nil
}
