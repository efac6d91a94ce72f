package rowstore

import (
	"context"
	"time"
)

// Store operation labels reported to the observer.
const (
	OpReadAll   = "read_all"
	OpAppendRow = "append_row"
	OpDeleteRow = "delete_row"
	OpPing      = "ping"
)

// StoreObserver receives one measurement per store operation. Satisfied by
// *metrics.Collector.
type StoreObserver interface {
	ObserveStoreOp(op string, d time.Duration, err error)
}

// instrumentedStore decorates a Store so every operation is measured.
type instrumentedStore struct {
	inner    Store
	observer StoreObserver
}

// NewInstrumentedStore wraps s so every operation is reported to observer
// with its duration and outcome. Close is passed through unmeasured.
func NewInstrumentedStore(s Store, observer StoreObserver) Store {
	return &instrumentedStore{inner: s, observer: observer}
}

func (s *instrumentedStore) ReadAll(ctx context.Context, table string) ([]Row, error) {
	start := time.Now()
	rows, err := s.inner.ReadAll(ctx, table)
	s.observer.ObserveStoreOp(OpReadAll, time.Since(start), err)
	return rows, err
}

func (s *instrumentedStore) AppendRow(ctx context.Context, table string, row Row) error {
	start := time.Now()
	err := s.inner.AppendRow(ctx, table, row)
	s.observer.ObserveStoreOp(OpAppendRow, time.Since(start), err)
	return err
}

func (s *instrumentedStore) DeleteRow(ctx context.Context, table string, index int) error {
	start := time.Now()
	err := s.inner.DeleteRow(ctx, table, index)
	s.observer.ObserveStoreOp(OpDeleteRow, time.Since(start), err)
	return err
}

func (s *instrumentedStore) Ping(ctx context.Context) error {
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.observer.ObserveStoreOp(OpPing, time.Since(start), err)
	return err
}

func (s *instrumentedStore) Close() error {
	return s.inner.Close()
}
