package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions as JSON blobs that expire with the session.
//
// Keys:
//   - <prefix>:s:<session_id>  session row, TTL = time until ExpiresAt
//   - <prefix>:u:<user_id>     set of session ids for RevokeAll
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps rdb. An empty prefix defaults to "pb".
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "pb"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(sessionID string) string  { return s.prefix + ":s:" + sessionID }
func (s *RedisStore) userKey(userID string) string { return s.prefix + ":u:" + userID }

func (s *RedisStore) Create(ctx context.Context, row Row) error {
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}

	ttl := time.Until(row.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session: create expired row %s", row.ID)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(row.ID), data, ttl)
		pipe.SAdd(ctx, s.userKey(row.UserID), row.ID)
		pipe.Expire(ctx, s.userKey(row.UserID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (Row, error) {
	data, err := s.rdb.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Row{}, ErrSessionNotFound
		}
		return Row{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var row Row
	if err := json.Unmarshal(data, &row); err != nil {
		return Row{}, fmt.Errorf("session: corrupt row %s: %w", sessionID, err)
	}
	return row, nil
}

func (s *RedisStore) Touch(ctx context.Context, now time.Time, sessionID string) error {
	return s.update(ctx, sessionID, func(r *Row) bool {
		r.LastUsedAt = &now
		return true
	})
}

func (s *RedisStore) Revoke(ctx context.Context, now time.Time, sessionID string) error {
	err := s.update(ctx, sessionID, func(r *Row) bool {
		if r.RevokedAt != nil {
			return false
		}
		r.RevokedAt = &now
		return true
	})
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	return err
}

func (s *RedisStore) RevokeAll(ctx context.Context, now time.Time, userID string) error {
	ids, err := s.rdb.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	for _, id := range ids {
		if err := s.Revoke(ctx, now, id); err != nil {
			return err
		}
	}
	return nil
}

// update rewrites a row in place under WATCH so concurrent writers retry.
func (s *RedisStore) update(ctx context.Context, sessionID string, mutate func(*Row) bool) error {
	key := s.key(sessionID)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrSessionNotFound
			}
			return err
		}

		var row Row
		if err := json.Unmarshal(data, &row); err != nil {
			return fmt.Errorf("session: corrupt row %s: %w", sessionID, err)
		}
		if !mutate(&row) {
			return nil
		}

		out, err := json.Marshal(row)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, redis.KeepTTL)
			return nil
		})
		return err
	}

	for range 3 {
		err := s.rdb.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrSessionNotFound):
			return err
		default:
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return fmt.Errorf("%w: contention on %s", ErrStoreUnavailable, sessionID)
}
