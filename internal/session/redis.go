package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis"

	"duit/internal/core"
)

// RedisStore keeps sessions in Redis so dialog flows survive a process
// restart. The TTL is a storage-level guard against abandoned flows; the
// dialog layer itself has no idle timeout.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(addr string, db int, password string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       db,
		Password: password,
	})
	if err := client.Ping().Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func keySession(owner core.OwnerID) string {
	return fmt.Sprintf("session:%d", owner)
}

func (r *RedisStore) Get(_ context.Context, owner core.OwnerID) (*Session, error) {
	raw, err := r.client.Get(keySession(owner)).Result()
	if err == redis.Nil {
		return &Session{Owner: owner, State: Idle, UpdatedAt: time.Now()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session for owner %d: %w", owner, err)
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decode session for owner %d: %w", owner, err)
	}
	return &s, nil
}

func (r *RedisStore) Put(_ context.Context, s *Session) error {
	s.UpdatedAt = time.Now()
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session for owner %d: %w", s.Owner, err)
	}
	if err := r.client.Set(keySession(s.Owner), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("set session for owner %d: %w", s.Owner, err)
	}
	return nil
}

func (r *RedisStore) Clear(_ context.Context, owner core.OwnerID) error {
	if err := r.client.Del(keySession(owner)).Err(); err != nil {
		return fmt.Errorf("clear session for owner %d: %w", owner, err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
