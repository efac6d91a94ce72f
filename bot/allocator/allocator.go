// Package allocator issues category-scoped sequential employee codes.
//
// A code is never a stored counter: it is derived from the tail row of the
// category table at the moment of issue. The backing store offers no
// transaction, so the read-tail-then-append sequence runs as one critical
// section per category. Different categories allocate fully in parallel.
package allocator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/staffline/internal/lockmap"
	"github.com/BaSui01/staffline/store/rowstore"
	"github.com/BaSui01/staffline/types"
)

// RowBuilder produces the row to append once the code is known. It must be
// fast and side-effect free; it runs inside the category critical section.
type RowBuilder func(code int) rowstore.Row

// Allocator computes and persists the next sequential code per category.
type Allocator struct {
	store  rowstore.Store
	locks  *lockmap.Map
	logger *zap.Logger
}

// New creates an allocator over the given row store.
func New(store rowstore.Store, logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{
		store:  store,
		locks:  lockmap.New(),
		logger: logger.With(zap.String("component", "allocator")),
	}
}

// Allocate issues the next code for the category and, when build is non-nil,
// appends build(code) to the category table before releasing the category
// lock. Fusing the append into the critical section is what keeps two
// concurrent allocations from persisting the same code.
func (a *Allocator) Allocate(ctx context.Context, cat types.Category, build RowBuilder) (int, error) {
	unlock := a.locks.Lock(string(cat))
	defer unlock()

	rows, err := a.store.ReadAll(ctx, cat.Table())
	if err != nil {
		return 0, fmt.Errorf("failed to read tail of %s: %w", cat.Table(), err)
	}

	code := nextCode(rows, cat)

	if build != nil {
		if err := a.store.AppendRow(ctx, cat.Table(), build(code)); err != nil {
			return 0, fmt.Errorf("failed to append to %s: %w", cat.Table(), err)
		}
	}

	a.logger.Debug("code allocated",
		zap.String("category", string(cat)),
		zap.Int("code", code),
	)

	return code, nil
}

// nextCode derives the successor of the tail row's code. An empty table, a
// short tail row or a non-numeric tail code all fall back to the category
// seed, so a header-only table starts the sequence at seed+1.
func nextCode(rows []rowstore.Row, cat types.Category) int {
	seed := cat.Seed()

	if len(rows) == 0 {
		return seed + 1
	}

	last := rows[len(rows)-1]
	if len(last) <= types.ColCode {
		return seed + 1
	}

	n, err := strconv.Atoi(strings.TrimSpace(last[types.ColCode]))
	if err != nil || n < 0 {
		return seed + 1
	}
	return n + 1
}
