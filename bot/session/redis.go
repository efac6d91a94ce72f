package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/staffline/types"
)

// keyPrefix namespaces session keys in a shared redis.
const keyPrefix = "staffline:session:"

// RedisStore is a redis-backed implementation of Store.
// Per-user linearizability follows from redis executing commands one at a
// time; the idle TTL is enforced by key expiry.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(cfg Config, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("session store connected",
		zap.String("addr", cfg.Redis.Addr),
		zap.Duration("ttl", cfg.TTL),
	)

	return &RedisStore{
		client: client,
		ttl:    cfg.TTL,
		logger: logger.With(zap.String("component", "session_redis")),
	}, nil
}

// key maps a user to their session key.
func (s *RedisStore) key(userID string) string {
	return keyPrefix + userID
}

// Get returns the user's session or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, userID string) (*Session, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("corrupt session for user %s: %w", userID, err)
	}
	return &sess, nil
}

// Start creates a fresh session, overwriting any existing one.
func (s *RedisStore) Start(ctx context.Context, userID string, workflow types.Workflow) (*Session, error) {
	sess := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Workflow:  workflow,
		StartedAt: time.Now(),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	if err := s.client.Set(ctx, s.key(userID), data, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return sess, nil
}

// Clear removes the user's session. Idempotent.
func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Ping checks redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
