package rowstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// FileStore is a file-backed implementation of Store.
// Suitable for single-node deployments. Each table is kept in memory and
// mirrored to one JSON snapshot, written atomically via temp file + rename.
type FileStore struct {
	dir    string
	tables map[string][]Row
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// NewFileStore creates a file-backed row store rooted at cfg.Dir, loading any
// existing snapshots.
func NewFileStore(cfg FileConfig, logger *zap.Logger) (*FileStore, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("file store dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create row store directory: %w", err)
	}

	s := &FileStore{
		dir:    cfg.Dir,
		tables: make(map[string][]Row),
		logger: logger.With(zap.String("component", "rowstore_file")),
	}

	if err := s.loadFromDisk(); err != nil {
		return nil, fmt.Errorf("failed to load tables from disk: %w", err)
	}

	return s, nil
}

// ReadAll returns a copy of every row of the table in append order.
func (s *FileStore) ReadAll(ctx context.Context, table string) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows := s.tables[table]
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Clone())
	}
	return out, nil
}

// AppendRow appends the row and rewrites the table snapshot.
func (s *FileStore) AppendRow(ctx context.Context, table string, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	s.tables[table] = append(s.tables[table], row.Clone())
	if err := s.persist(table); err != nil {
		// Roll the in-memory state back so memory and disk stay in step.
		s.tables[table] = s.tables[table][:len(s.tables[table])-1]
		return err
	}
	return nil
}

// DeleteRow removes the row at index and rewrites the table snapshot.
func (s *FileStore) DeleteRow(ctx context.Context, table string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	rows := s.tables[table]
	if index < 0 || index >= len(rows) {
		return ErrIndexOutOfRange
	}

	removed := rows[index]
	s.tables[table] = append(rows[:index], rows[index+1:]...)
	if err := s.persist(table); err != nil {
		rest := s.tables[table]
		restored := make([]Row, 0, len(rest)+1)
		restored = append(restored, rest[:index]...)
		restored = append(restored, removed)
		restored = append(restored, rest[index:]...)
		s.tables[table] = restored
		return err
	}
	return nil
}

// Ping reports whether the backing directory is writable.
func (s *FileStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("row store directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("row store path is not a directory: %s", s.dir)
	}
	return nil
}

// Close marks the store closed. Snapshots are already on disk.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// tablePath maps a table name to its snapshot file.
func (s *FileStore) tablePath(table string) string {
	return filepath.Join(s.dir, table+".json")
}

// persist writes the table snapshot atomically. Caller holds the write lock.
func (s *FileStore) persist(table string) error {
	data, err := json.MarshalIndent(s.tables[table], "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode table %s: %w", table, err)
	}

	path := s.tablePath(table)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write table snapshot: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to replace table snapshot: %w", err)
	}
	return nil
}

// loadFromDisk reads every *.json snapshot under dir.
func (s *FileStore) loadFromDisk() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return err
		}
		var rows []Row
		if err := json.Unmarshal(data, &rows); err != nil {
			return fmt.Errorf("corrupt table snapshot %s: %w", name, err)
		}
		table := strings.TrimSuffix(name, ".json")
		s.tables[table] = rows
		s.logger.Debug("loaded table snapshot",
			zap.String("table", table),
			zap.Int("rows", len(rows)),
		)
	}

	return nil
}
