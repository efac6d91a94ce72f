// Package rowstore defines the ordered-row storage contract consumed by the
// bot and provides memory, file and database-backed implementations.
//
// The production deployment points this at a spreadsheet-like gateway; any
// implementation of Store plugs in. Rows are ordered by append; DeleteRow
// addresses a row by its current position in that order.
//
// Supported backends:
// - Memory: for development and testing (default)
// - File: for single-node deployments, one atomic JSON snapshot per table
// - Gorm: for server deployments (sqlite, postgres, mysql)
package rowstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Common errors
var (
	ErrStoreClosed     = errors.New("store is closed")
	ErrIndexOutOfRange = errors.New("row index out of range")
)

// Row is one ordered row of a named table. Cells are opaque strings; column
// meaning is fixed by the schema in the types package.
type Row []string

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Store is the consumed storage-gateway contract: ordered read, append and
// positional delete per named table. Implementations must be safe for
// concurrent use; they do not need to provide cross-call transactions, the
// callers serialize critical sections themselves.
type Store interface {
	// ReadAll returns every row of the table in append order. An unknown
	// table reads as empty.
	ReadAll(ctx context.Context, table string) ([]Row, error)

	// AppendRow appends one row to the end of the table, creating the table
	// if needed.
	AppendRow(ctx context.Context, table string, row Row) error

	// DeleteRow removes the row at the given position in append order.
	// Returns ErrIndexOutOfRange when no such row exists.
	DeleteRow(ctx context.Context, table string, index int) error

	// Ping checks backend health.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Type selects a storage backend.
type Type string

const (
	TypeMemory Type = "memory"
	TypeFile   Type = "file"
	TypeGorm   Type = "gorm"
)

// Config selects and configures a backend.
type Config struct {
	// Type of backend to create
	Type Type `json:"type" yaml:"type"`

	// File backend settings
	File FileConfig `json:"file" yaml:"file"`

	// Database backend settings
	Database DatabaseConfig `json:"database" yaml:"database"`
}

// FileConfig configures the file backend.
type FileConfig struct {
	// Dir holds one JSON snapshot per table
	Dir string `json:"dir" yaml:"dir"`
}

// DatabaseConfig configures the gorm backend.
type DatabaseConfig struct {
	// Driver: sqlite, postgres, mysql
	Driver string `json:"driver" yaml:"driver"`

	// DSN in the driver's native format
	DSN string `json:"dsn" yaml:"dsn"`

	// MaxOpenConns caps open connections
	MaxOpenConns int `json:"max_open_conns" yaml:"max_open_conns"`

	// MaxIdleConns caps idle connections
	MaxIdleConns int `json:"max_idle_conns" yaml:"max_idle_conns"`

	// ConnMaxLifetime bounds connection reuse
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// New creates a Store for the configured backend.
func New(cfg Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Type {
	case TypeMemory, "":
		return NewMemoryStore(), nil
	case TypeFile:
		return NewFileStore(cfg.File, logger)
	case TypeGorm:
		return NewGormStore(cfg.Database, logger)
	default:
		return nil, fmt.Errorf("unsupported row store type: %s", cfg.Type)
	}
}
