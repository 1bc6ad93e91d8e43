package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rustyeddy/scanner/pkg/id"
)

// RedisStore keeps state as a JSON value in Redis and serializes batches
// with a SETNX lock.
type RedisStore struct {
	client redis.Cmdable
	prefix string

	LockTTL time.Duration
	Wait    time.Duration
	Poll    time.Duration

	// Token generates the lock owner value.
	Token func() string
}

func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "scanner"
	}
	return &RedisStore{
		client:  client,
		prefix:  prefix,
		LockTTL: 10 * time.Minute,
		Wait:    5 * time.Second,
		Poll:    100 * time.Millisecond,
		Token:   id.New,
	}
}

func (r *RedisStore) stateKey() string { return r.prefix + ":dispatch:state" }
func (r *RedisStore) lockKey() string  { return r.prefix + ":dispatch:lock" }

func (r *RedisStore) Load(ctx context.Context) (State, error) {
	data, err := r.client.Get(ctx, r.stateKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewState(), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("redis get: %w", err)
	}

	s := NewState()
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}
	s.init()
	return s, nil
}

func (r *RedisStore) Save(ctx context.Context, s State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.stateKey(), string(data), 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisStore) Lock(ctx context.Context) (func(), error) {
	token := r.Token()
	deadline := time.Now().Add(r.Wait)

	for {
		ok, err := r.client.SetNX(ctx, r.lockKey(), token, r.LockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("redis setnx: %w", err)
		}
		if ok {
			return func() { r.unlock(token) }, nil
		}

		if !time.Now().Before(deadline) {
			return nil, ErrLocked
		}
		select {
		case <-ctx.Done():
			return nil, ErrLocked
		case <-time.After(r.Poll):
		}
	}
}

// unlock deletes the lock only if this run still owns it.
func (r *RedisStore) unlock(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cur, err := r.client.Get(ctx, r.lockKey()).Result()
	if err != nil || cur != token {
		return
	}
	r.client.Del(ctx, r.lockKey())
}

// Reset removes the persisted state.
func (r *RedisStore) Reset(ctx context.Context) error {
	return r.client.Del(ctx, r.stateKey()).Err()
}
