package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/semaphore"

	"stock-finder/pkg/utils"
)

// ErrBusy is returned when no batch slot freed up before the wait ceiling.
var ErrBusy = errors.New("orchestrator: too many batches running")

// Limiter caps how many batches dial at the same time across the deployment.
// Acquire blocks until a slot is free; it fails only when ctx ends or the
// limiter gives up waiting.
type Limiter interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

const (
	redisRetryMin = 250 * time.Millisecond
	redisRetryMax = 5 * time.Second
	// DefaultSlotWait bounds how long a queued batch waits on Redis.
	DefaultSlotWait = 30 * time.Minute
)

// RedisLimiter shares the batch cap across processes with an atomic Lua counter.
// The TTL releases slots held by a crashed process.
type RedisLimiter struct {
	rdb   *redis.Client
	key   string
	limit int
	ttl   time.Duration

	// MaxWait caps how long Acquire retries. Zero means DefaultSlotWait.
	MaxWait time.Duration
}

func NewRedisLimiter(rdb *redis.Client, key string, limit int, ttl time.Duration) *RedisLimiter {
	if key == "" {
		key = "stock-finder:batches"
	}
	if limit <= 0 {
		limit = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisLimiter{rdb: rdb, key: key, limit: limit, ttl: ttl}
}

// Acquire retries with exponential backoff while every slot is taken.
func (l *RedisLimiter) Acquire(ctx context.Context) error {
	maxWait := l.MaxWait
	if maxWait <= 0 {
		maxWait = DefaultSlotWait
	}
	giveUp := time.Now().Add(maxWait)
	backoff := redisRetryMin
	for {
		ok, err := utils.AcquireConcurrencyCap(ctx, l.rdb, l.key, l.limit, l.ttl)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		left := time.Until(giveUp)
		if left <= 0 {
			return ErrBusy
		}
		if err := sleepCtx(ctx, min(backoff, left)); err != nil {
			return err
		}
		backoff = min(backoff*2, redisRetryMax)
	}
}

func (l *RedisLimiter) Release(ctx context.Context) error {
	return utils.ReleaseConcurrencyCap(ctx, l.rdb, l.key)
}

// LocalLimiter caps batches within this process only.
type LocalLimiter struct {
	sem *semaphore.Weighted
}

func NewLocalLimiter(limit int) *LocalLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &LocalLimiter{sem: semaphore.NewWeighted(int64(limit))}
}

// Acquire waits in FIFO order for a free slot.
func (l *LocalLimiter) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

func (l *LocalLimiter) Release(context.Context) error {
	l.sem.Release(1)
	return nil
}
