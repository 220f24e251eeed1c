package dialog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// maxUpdateRetries bounds optimistic retries when concurrent writers keep
// invalidating the WATCHed key.
const maxUpdateRetries = 10

// RedisStore keeps each dialog as JSON under dialog:{id} with a sliding TTL.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func dialogKey(id string) string { return "dialog:" + id }
func submitKey(id string) string { return "dialog:" + id + ":submit" }

func (s *RedisStore) Create(ctx context.Context, st *State) error {
	b, err := encode(st)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, dialogKey(st.ID), b, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("dialog store: create: %w", err)
	}
	if !ok {
		return fmt.Errorf("dialog store: id %s already in use", st.ID)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*State, error) {
	b, err := s.rdb.Get(ctx, dialogKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dialog store: get: %w", err)
	}
	return decode(b)
}

func (s *RedisStore) Update(ctx context.Context, id string, fn func(*State) error) (*State, error) {
	key := dialogKey(id)
	var out *State
	txf := func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		st, err := decode(b)
		if err != nil {
			return err
		}
		if err := fn(st); err != nil {
			return err
		}
		nb, err := encode(st)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, nb, s.ttl)
			return nil
		})
		if err == nil {
			out = st
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("dialog store: update %s: too much contention", id)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, dialogKey(id), submitKey(id)).Err(); err != nil {
		return fmt.Errorf("dialog store: delete: %w", err)
	}
	return nil
}

func (s *RedisStore) AcquireSubmit(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, submitKey(id), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dialog store: submit lock: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) ReleaseSubmit(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, submitKey(id)).Err()
}
