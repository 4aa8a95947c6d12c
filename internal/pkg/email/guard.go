package email

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// guardStore is the subset of the redis client used by DeliveryGuard
type guardStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// DeliveryGuard remembers which digests were handed to the mail server so a
// re-run for the same date does not send them twice.
type DeliveryGuard struct {
	rc  guardStore
	ttl time.Duration
}

// NewDeliveryGuard creates a guard backed by redis. A nil client disables it.
func NewDeliveryGuard(rc guardStore, ttl time.Duration) *DeliveryGuard {
	if ttl <= 0 {
		ttl = 36 * time.Hour
	}
	return &DeliveryGuard{rc: rc, ttl: ttl}
}

// GuardKey is digest:{school}:{yyyy-mm-dd}:{user}, the date taken in asOf's
// location
func GuardKey(schoolID, userID int64, asOf time.Time) string {
	return fmt.Sprintf("digest:%d:%s:%d", schoolID, asOf.Format("2006-01-02"), userID)
}

// Acquire claims the key. It returns false when another run already holds it.
func (g *DeliveryGuard) Acquire(ctx context.Context, key string) (bool, error) {
	if g == nil || g.rc == nil {
		return true, nil
	}
	ok, err := g.rc.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claiming %s: %w", key, err)
	}
	return ok, nil
}

// Release drops a claim after a failed send so the next attempt can proceed
func (g *DeliveryGuard) Release(ctx context.Context, key string) error {
	if g == nil || g.rc == nil {
		return nil
	}
	if err := g.rc.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("releasing %s: %w", key, err)
	}
	return nil
}
