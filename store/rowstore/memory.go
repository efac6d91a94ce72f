package rowstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of Store.
// Suitable for development and testing. Data is lost on restart.
type MemoryStore struct {
	tables map[string][]Row
	mu     sync.RWMutex
	closed bool
}

// NewMemoryStore creates an empty in-memory row store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: make(map[string][]Row),
	}
}

// ReadAll returns a copy of every row of the table in append order.
func (s *MemoryStore) ReadAll(ctx context.Context, table string) ([]Row, error) {
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

// AppendRow appends a copy of the row to the table.
func (s *MemoryStore) AppendRow(ctx context.Context, table string, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	s.tables[table] = append(s.tables[table], row.Clone())
	return nil
}

// DeleteRow removes the row at index in append order.
func (s *MemoryStore) DeleteRow(ctx context.Context, table string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	rows := s.tables[table]
	if index < 0 || index >= len(rows) {
		return ErrIndexOutOfRange
	}

	s.tables[table] = append(rows[:index], rows[index+1:]...)
	return nil
}

// Ping reports whether the store is usable.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
