// Package session provides per-user conversation state storage for the bot.
//
// One session exists per active user; it is created when an idle user selects
// a workflow and destroyed on completion or cancellation. Stores are
// linearizable per user: concurrent operations on one user never observe a
// half-written session, while operations on different users do not serialize
// against each other.
//
// Supported backends:
// - Memory: for development and single-node deployments (default)
// - Redis: for deployments that want sessions to survive a process restart
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/staffline/types"
)

// Common errors
var (
	ErrNotFound    = errors.New("session not found")
	ErrStoreClosed = errors.New("session store is closed")
)

// Session is one user's in-progress multi-turn workflow.
type Session struct {
	// ID identifies this conversation instance.
	ID string `json:"id"`

	// UserID owns the session.
	UserID string `json:"user_id"`

	// Workflow the user is currently in.
	Workflow types.Workflow `json:"workflow"`

	// StartedAt is when the workflow was selected.
	StartedAt time.Time `json:"started_at"`
}

// Store is the session storage contract.
type Store interface {
	// Get returns the user's session or ErrNotFound.
	Get(ctx context.Context, userID string) (*Session, error)

	// Start creates a fresh session for the workflow, overwriting any
	// existing session for the user.
	Start(ctx context.Context, userID string, workflow types.Workflow) (*Session, error)

	// Clear removes the user's session. Clearing an absent session is not an
	// error.
	Clear(ctx context.Context, userID string) error

	// Ping checks backend health.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Type selects a session backend.
type Type string

const (
	TypeMemory Type = "memory"
	TypeRedis  Type = "redis"
)

// Config selects and configures a backend.
type Config struct {
	// Type of backend to create
	Type Type `json:"type" yaml:"type"`

	// TTL after which an abandoned conversation is dropped. Zero disables
	// expiry.
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	// Redis backend settings
	Redis RedisConfig `json:"redis" yaml:"redis"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	// Address host:port
	Addr string `json:"addr" yaml:"addr"`

	// Password, empty for none
	Password string `json:"password" yaml:"password"`

	// Database number
	DB int `json:"db" yaml:"db"`

	// Connection pool size
	PoolSize int `json:"pool_size" yaml:"pool_size"`

	// Minimum idle connections
	MinIdleConns int `json:"min_idle_conns" yaml:"min_idle_conns"`
}

// New creates a Store for the configured backend.
func New(cfg Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Type {
	case TypeMemory, "":
		return NewMemoryStore(cfg), nil
	case TypeRedis:
		return NewRedisStore(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported session store type: %s", cfg.Type)
	}
}
