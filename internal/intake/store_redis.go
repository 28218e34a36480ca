package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "intake:session:"

// RedisStore keeps sessions as JSON values that expire after the TTL.
type RedisStore struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisStore parses url and returns a store backed by that server.
func NewRedisStore(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{Client: client, TTL: ttl}, nil
}

func (r *RedisStore) Create(ctx context.Context, s Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ok, err := r.Client.SetNX(ctx, redisKeyPrefix+s.ID, payload, r.TTL).Result()
	if err != nil {
		return fmt.Errorf("redis create session: %w", err)
	}
	if !ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (Session, error) {
	raw, err := r.Client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("redis get session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

// Save writes s under WATCH so a concurrent save between the version check
// and the write aborts the transaction. The TTL is refreshed.
func (r *RedisStore) Save(ctx context.Context, s Session) error {
	key := redisKeyPrefix + s.ID
	err := r.Client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("redis get session: %w", err)
		}
		var cur struct {
			Version int `json:"version"`
		}
		if err := json.Unmarshal(raw, &cur); err != nil {
			return fmt.Errorf("decode session: %w", err)
		}
		if cur.Version != s.Version {
			return ErrSessionConflict
		}

		next := s
		next.Version++
		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, payload, r.TTL)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrSessionConflict
	}
	return err
}

// Close releases the client.
func (r *RedisStore) Close() error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

var _ SessionStore = (*RedisStore)(nil)
