package api

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

// FailureLog keeps timestamps of failed logins per throttle key.
type FailureLog interface {
	Record(ctx context.Context, key string, at time.Time) error
	// Recent returns failures at or after since, in any order.
	Recent(ctx context.Context, key string, since time.Time) ([]time.Time, error)
	Clear(ctx context.Context, key string) error
}

// MemoryFailureLog is a process-local FailureLog.
type MemoryFailureLog struct {
	mu        sync.Mutex
	retention time.Duration
	entries   map[string][]time.Time
	writes    int
}

var _ FailureLog = (*MemoryFailureLog)(nil)

func NewMemoryFailureLog(retention time.Duration) *MemoryFailureLog {
	if retention <= 0 {
		retention = time.Hour
	}
	return &MemoryFailureLog{retention: retention, entries: make(map[string][]time.Time)}
}

func (l *MemoryFailureLog) Record(_ context.Context, key string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cut := at.Add(-l.retention)
	l.entries[key] = append(prune(l.entries[key], cut), at)

	l.writes++
	if l.writes%256 == 0 {
		for k, v := range l.entries {
			if v = prune(v, cut); len(v) == 0 {
				delete(l.entries, k)
			} else {
				l.entries[k] = v
			}
		}
	}
	return nil
}

func (l *MemoryFailureLog) Recent(_ context.Context, key string, since time.Time) ([]time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []time.Time
	for _, t := range l.entries[key] {
		if !t.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (l *MemoryFailureLog) Clear(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.entries, key)
	l.mu.Unlock()
	return nil
}

func prune(ts []time.Time, cut time.Time) []time.Time {
	i := 0
	for _, t := range ts {
		if t.After(cut) {
			ts[i] = t
			i++
		}
	}
	return ts[:i]
}

// RedisFailureLog stores failures in one sorted set per key, scored by
// unix milliseconds, so throttling is shared across API replicas.
type RedisFailureLog struct {
	rdb       redis.UniversalClient
	prefix    string
	retention time.Duration
}

var _ FailureLog = (*RedisFailureLog)(nil)

func NewRedisFailureLog(rdb redis.UniversalClient, prefix string, retention time.Duration) *RedisFailureLog {
	if prefix == "" {
		prefix = "pb"
	}
	if retention <= 0 {
		retention = time.Hour
	}
	return &RedisFailureLog{rdb: rdb, prefix: prefix, retention: retention}
}

func (l *RedisFailureLog) key(k string) string { return l.prefix + ":fail:" + k }

func (l *RedisFailureLog) Record(ctx context.Context, key string, at time.Time) error {
	k := l.key(key)
	member := ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
	cut := strconv.FormatInt(at.Add(-l.retention).UnixMilli(), 10)

	_, err := l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, k, redis.Z{Score: float64(at.UnixMilli()), Member: member})
		p.ZRemRangeByScore(ctx, k, "-inf", "("+cut)
		p.Expire(ctx, k, l.retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failure log record: %w", err)
	}
	return nil
}

func (l *RedisFailureLog) Recent(ctx context.Context, key string, since time.Time) ([]time.Time, error) {
	zs, err := l.rdb.ZRangeByScoreWithScores(ctx, l.key(key), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failure log recent: %w", err)
	}
	out := make([]time.Time, 0, len(zs))
	for _, z := range zs {
		out = append(out, time.UnixMilli(int64(z.Score)).UTC())
	}
	return out, nil
}

func (l *RedisFailureLog) Clear(ctx context.Context, key string) error {
	if err := l.rdb.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("failure log clear: %w", err)
	}
	return nil
}
