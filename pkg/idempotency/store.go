package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store dedups webhook deliveries on the provider's event id. A key is
// claimed with a TTL only once the delivery reached an outcome, so a
// processing error never blocks the provider's retry. Redis being empty
// or down only costs the optimization; the database compare-and-set
// still holds.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func Key(gateway, eventID string) string {
	return fmt.Sprintf("delivery:%s:%s", gateway, eventID)
}

func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) Mark(ctx context.Context, key string) error {
	return s.rdb.Set(ctx, key, "1", s.ttl).Err()
}
