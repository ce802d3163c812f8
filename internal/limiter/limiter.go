// Package limiter implements the concurrency gate from spec §5: "maximum
// concurrent sandboxes" bounds how many submissions may hold an acquired
// sandbox at once, queueing the rest with a fairness-agnostic policy. The
// in-process gate is a weighted semaphore (golang.org/x/sync/semaphore);
// an optional Redis-backed outer gate extends the same bound across
// multiple service instances, grounded on the teacher's go-redis client
// setup (internal/db/redis.go).
package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"apex-build/internal/metrics"
)

// Gate bounds concurrent sandbox acquisition. Acquire blocks until a slot is
// free or ctx is cancelled; Release always runs via the returned func.
type Gate interface {
	Acquire(ctx context.Context) (func(), error)
}

// LocalGate is a single-process semaphore gate — the default when no Redis
// coordination is configured.
type LocalGate struct {
	sem *semaphore.Weighted
}

// NewLocalGate bounds concurrency to maxConcurrent sandboxes.
func NewLocalGate(maxConcurrent int64) *LocalGate {
	return &LocalGate{sem: semaphore.NewWeighted(maxConcurrent)}
}

func (g *LocalGate) Acquire(ctx context.Context) (func(), error) {
	start := time.Now()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("limiter: acquire: %w", err)
	}
	metrics.Get().RecordGateWait(time.Since(start))
	return func() { g.sem.Release(1) }, nil
}

// DistributedGate layers a Redis-backed counting semaphore on top of a
// LocalGate, bounding concurrency across every service instance sharing the
// same Redis key — for deployments running more than one facade process
// against one pool of sandbox hosts.
type DistributedGate struct {
	local       *LocalGate
	redis       *redis.Client
	key         string
	max         int64
	leaseExpiry time.Duration
}

// NewDistributedGate constructs a gate that first acquires a local slot,
// then registers a lease in Redis under key, evicting the oldest lease past
// leaseExpiry so a crashed instance cannot wedge the global count.
func NewDistributedGate(client *redis.Client, key string, maxConcurrent int64, leaseExpiry time.Duration) *DistributedGate {
	return &DistributedGate{
		local:       NewLocalGate(maxConcurrent),
		redis:       client,
		key:         key,
		max:         maxConcurrent,
		leaseExpiry: leaseExpiry,
	}
}

func (g *DistributedGate) Acquire(ctx context.Context) (func(), error) {
	start := time.Now()
	releaseLocal, err := g.local.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	member := uuid.New().String()
	deadline := time.Now().Add(g.leaseExpiry)

	for {
		count, err := g.tryRegister(ctx, member, deadline)
		if err != nil {
			releaseLocal()
			return nil, err
		}
		if count <= g.max {
			metrics.Get().RecordGateWait(time.Since(start))
			release := func() {
				g.redis.ZRem(context.Background(), g.key, member)
				releaseLocal()
			}
			return release, nil
		}
		g.redis.ZRem(ctx, g.key, member)

		select {
		case <-ctx.Done():
			releaseLocal()
			return nil, fmt.Errorf("limiter: distributed acquire: %w", ctx.Err())
		case <-time.After(20 * time.Millisecond):
		}
	}
}

// tryRegister evicts expired leases, adds this member, and returns the
// resulting cardinality — a classic Redis sorted-set sliding-window
// semaphore, scored by expiry so ZREMRANGEBYSCORE can evict in one round
// trip without a Lua script.
func (g *DistributedGate) tryRegister(ctx context.Context, member string, deadline time.Time) (int64, error) {
	now := time.Now()
	pipe := g.redis.TxPipeline()
	pipe.ZRemRangeByScore(ctx, g.key, "-inf", fmt.Sprintf("%d", now.UnixNano()))
	pipe.ZAdd(ctx, g.key, &redis.Z{Score: float64(deadline.UnixNano()), Member: member})
	card := pipe.ZCard(ctx, g.key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("limiter: redis pipeline: %w", err)
	}
	return card.Val(), nil
}
