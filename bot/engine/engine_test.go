package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/staffline/bot/allocator"
	"github.com/BaSui01/staffline/bot/session"
	"github.com/BaSui01/staffline/store/rowstore"
	"github.com/BaSui01/staffline/types"
)

const (
	testUser = "U1234"

	regForm = "name: Somchai P.\n" +
		"department: Accounting\n" +
		"branch: Bangkok\n" +
		"position: Clerk\n" +
		"start date: 01-09-2026\n" +
		"category: daily"

	xferForm = "code: 90001\n" +
		"name: Somchai P.\n" +
		"position: Senior Clerk\n" +
		"category: monthly\n" +
		"effective date: 01-10-2026"
)

type fixture struct {
	engine   *Engine
	store    rowstore.Store
	sessions session.Store
}

func newFixture(t *testing.T, cfg Config, store rowstore.Store) *fixture {
	t.Helper()

	if store == nil {
		mem := rowstore.NewMemoryStore()
		t.Cleanup(func() { mem.Close() })
		store = mem
	}

	sessions := session.NewMemoryStore(session.Config{Type: session.TypeMemory})
	t.Cleanup(func() { sessions.Close() })

	e, err := New(cfg, sessions, store, allocator.New(store, zap.NewNop()), nil, zap.NewNop())
	require.NoError(t, err)
	e.now = func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }

	return &fixture{engine: e, store: store, sessions: sessions}
}

func (f *fixture) send(t *testing.T, text string) []types.Outbound {
	t.Helper()
	out, err := f.engine.HandleEvent(context.Background(), types.Inbound{UserID: testUser, Text: text})
	require.NoError(t, err)
	require.NotEmpty(t, out)
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Timezone = "UTC"
	return cfg
}

// countingStore counts every store call so tests can assert "no store access".
type countingStore struct {
	rowstore.Store
	calls int64
}

func (s *countingStore) ReadAll(ctx context.Context, table string) ([]rowstore.Row, error) {
	atomic.AddInt64(&s.calls, 1)
	return s.Store.ReadAll(ctx, table)
}

func (s *countingStore) AppendRow(ctx context.Context, table string, row rowstore.Row) error {
	atomic.AddInt64(&s.calls, 1)
	return s.Store.AppendRow(ctx, table, row)
}

func (s *countingStore) DeleteRow(ctx context.Context, table string, index int) error {
	atomic.AddInt64(&s.calls, 1)
	return s.Store.DeleteRow(ctx, table, index)
}

// scriptedStore fails selected operations to exercise partial-failure paths.
type scriptedStore struct {
	rowstore.Store
	failAppendTable string
	failDelete      bool
}

func (s *scriptedStore) AppendRow(ctx context.Context, table string, row rowstore.Row) error {
	if table == s.failAppendTable {
		return fmt.Errorf("append to %s rejected", table)
	}
	return s.Store.AppendRow(ctx, table, row)
}

func (s *scriptedStore) DeleteRow(ctx context.Context, table string, index int) error {
	if s.failDelete {
		return fmt.Errorf("delete from %s rejected", table)
	}
	return s.Store.DeleteRow(ctx, table, index)
}

// hookStore runs a callback once after the chosen table is read, opening a
// window between a transfer's lookup and its delete for another event to run.
type hookStore struct {
	rowstore.Store
	table     string
	afterRead func()
}

func (s *hookStore) ReadAll(ctx context.Context, table string) ([]rowstore.Row, error) {
	rows, err := s.Store.ReadAll(ctx, table)
	if table == s.table && s.afterRead != nil {
		hook := s.afterRead
		s.afterRead = nil
		hook()
	}
	return rows, err
}

func transferForm(code int) string {
	return fmt.Sprintf("code: %d\n", code) +
		"name: Somchai P.\n" +
		"position: Senior Clerk\n" +
		"category: monthly\n" +
		"effective date: 01-10-2026"
}

func seedEmployee(t *testing.T, store rowstore.Store, cat types.Category, code int) {
	t.Helper()
	row := make(rowstore.Row, types.EmployeeColumns)
	row[types.ColName] = "Somchai P."
	row[types.ColDepartment] = "Accounting"
	row[types.ColBranch] = "Bangkok"
	row[types.ColPosition] = "Clerk"
	row[types.ColStartDate] = "01-01-2025"
	row[types.ColCategory] = string(cat)
	row[types.ColRequestedBy] = "U0000"
	row[types.ColCode] = fmt.Sprintf("%d", code)
	row[types.ColIssuedAt] = "01/01/2025 09:00"
	require.NoError(t, store.AppendRow(context.Background(), cat.Table(), row))
}

// =============================================================================
// Maintenance gate
// =============================================================================

func TestHandleEvent_MaintenanceBlocksEverything(t *testing.T) {
	mem := rowstore.NewMemoryStore()
	defer mem.Close()
	counting := &countingStore{Store: mem}

	cfg := testConfig()
	cfg.Active = false
	f := newFixture(t, cfg, counting)

	for _, text := range []string{"hello", "1", "2", regForm, "cancel"} {
		out := f.send(t, text)
		assert.Equal(t, msgMaintenance, out[0].Text)
	}

	assert.Zero(t, atomic.LoadInt64(&counting.calls))
	_, err := f.sessions.Get(context.Background(), testUser)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

// =============================================================================
// Menu
// =============================================================================

func TestHandleEvent_IdleShowsMenu(t *testing.T) {
	f := newFixture(t, testConfig(), nil)

	out := f.send(t, "hello")
	assert.Contains(t, out[0].Text, "1. Register")
	assert.Contains(t, out[0].Text, "2. Transfer")
}

func TestHandleEvent_MenuStartsWorkflows(t *testing.T) {
	tests := []struct {
		choice   string
		workflow types.Workflow
		prompt   string
	}{
		{"1", types.WorkflowRegistration, msgRegistrationPrompt},
		{"2", types.WorkflowTransfer, msgTransferPrompt},
	}

	for _, tt := range tests {
		t.Run(string(tt.workflow), func(t *testing.T) {
			f := newFixture(t, testConfig(), nil)

			out := f.send(t, tt.choice)
			assert.Equal(t, tt.prompt, out[0].Text)

			sess, err := f.sessions.Get(context.Background(), testUser)
			require.NoError(t, err)
			assert.Equal(t, tt.workflow, sess.Workflow)
		})
	}
}

func TestHandleEvent_MenuDigitInsideWorkflowIsFormInput(t *testing.T) {
	f := newFixture(t, testConfig(), nil)

	f.send(t, "1")
	// "2" is now workflow input, not a menu selection: it must be rejected by
	// the form, and the session must stay on registration.
	out := f.send(t, "2")
	assert.NotEqual(t, msgTransferPrompt, out[0].Text)

	sess, err := f.sessions.Get(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, types.WorkflowRegistration, sess.Workflow)
}

// =============================================================================
// Cancellation
// =============================================================================

func TestHandleEvent_CancelClearsWorkflow(t *testing.T) {
	f := newFixture(t, testConfig(), nil)

	f.send(t, "1")
	out := f.send(t, "CANCEL")
	assert.Contains(t, out[0].Text, msgCancelled)
	assert.Contains(t, out[0].Text, "1. Register")

	_, err := f.sessions.Get(context.Background(), testUser)
	assert.ErrorIs(t, err, session.ErrNotFound)

	// A form message after cancel is idle input: menu, no registration.
	out = f.send(t, regForm)
	assert.Contains(t, out[0].Text, "1. Register")
	rows, err := f.store.ReadAll(context.Background(), types.TableDailyEmployee)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestHandleEvent_CancelWhileIdleStillAcks(t *testing.T) {
	f := newFixture(t, testConfig(), nil)

	out := f.send(t, "cancel")
	assert.Contains(t, out[0].Text, msgCancelled)
}

// =============================================================================
// Registration
// =============================================================================

func TestRegistration_HappyPath(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	ctx := context.Background()

	f.send(t, "1")
	out := f.send(t, regForm)
	assert.Contains(t, out[0].Text, "90001")
	assert.Contains(t, out[0].Text, "Somchai P.")

	rows, err := f.store.ReadAll(ctx, types.TableDailyEmployee)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	require.Len(t, row, types.EmployeeColumns)
	assert.Equal(t, "Somchai P.", row[types.ColName])
	assert.Equal(t, "Accounting", row[types.ColDepartment])
	assert.Equal(t, "daily", row[types.ColCategory])
	assert.Equal(t, testUser, row[types.ColRequestedBy])
	assert.Equal(t, "90001", row[types.ColCode])
	assert.Equal(t, "28/08/2026 12:00", row[types.ColIssuedAt])

	// Session cleared: the next message is idle input.
	_, err = f.sessions.Get(ctx, testUser)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestRegistration_SequentialCodes(t *testing.T) {
	f := newFixture(t, testConfig(), nil)

	for i := 1; i <= 3; i++ {
		f.send(t, "1")
		out := f.send(t, regForm)
		assert.Contains(t, out[0].Text, fmt.Sprintf("%d", types.SeedDaily+i))
	}
}

func TestRegistration_ValidationRejectsBeforeStore(t *testing.T) {
	mem := rowstore.NewMemoryStore()
	defer mem.Close()
	counting := &countingStore{Store: mem}
	f := newFixture(t, testConfig(), counting)
	ctx := context.Background()

	f.send(t, "1")
	before := atomic.LoadInt64(&counting.calls)

	tests := []struct {
		name string
		text string
		want string
	}{
		{"no separator", "just words without colons", "field: value"},
		{"missing field", "name: X\ndepartment: Y", "fields don't match"},
		{"bad date", "name: X\ndepartment: Y\nbranch: Z\nposition: P\nstart date: tomorrow\ncategory: daily", "DD-MM-YYYY"},
		{"bad category", "name: X\ndepartment: Y\nbranch: Z\nposition: P\nstart date: 01-09-2026\ncategory: weekly", "daily"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := f.send(t, tt.text)
			assert.Contains(t, out[0].Text, tt.want)
		})
	}

	// Rejection happens before any store call, and the session survives.
	assert.Equal(t, before, atomic.LoadInt64(&counting.calls))
	sess, err := f.sessions.Get(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, types.WorkflowRegistration, sess.Workflow)

	// The corrected resend completes without reselecting the menu.
	out := f.send(t, regForm)
	assert.Contains(t, out[0].Text, "90001")
}

func TestRegistration_AllocationFailureKeepsSession(t *testing.T) {
	mem := rowstore.NewMemoryStore()
	defer mem.Close()
	f := newFixture(t, testConfig(), &scriptedStore{Store: mem, failAppendTable: types.TableDailyEmployee})

	f.send(t, "1")
	out := f.send(t, regForm)
	assert.Equal(t, msgStorageFailure, out[0].Text)

	sess, err := f.sessions.Get(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, types.WorkflowRegistration, sess.Workflow)
}

// =============================================================================
// Transfer
// =============================================================================

func TestTransfer_HappyPath(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	ctx := context.Background()
	seedEmployee(t, f.store, types.CategoryDaily, 90001)

	f.send(t, "2")
	out := f.send(t, xferForm)

	require.Len(t, out, 2)
	assert.Contains(t, out[0].Text, "20001")
	assert.False(t, out[0].Push)
	assert.True(t, out[1].Push)
	assert.Contains(t, out[1].Text, "90001")

	// Target row carries the new fields plus department/branch from the old
	// record.
	monthly, err := f.store.ReadAll(ctx, types.TableMonthlyEmployee)
	require.NoError(t, err)
	require.Len(t, monthly, 1)
	row := monthly[0]
	assert.Equal(t, "Somchai P.", row[types.ColName])
	assert.Equal(t, "Accounting", row[types.ColDepartment])
	assert.Equal(t, "Bangkok", row[types.ColBranch])
	assert.Equal(t, "Senior Clerk", row[types.ColPosition])
	assert.Equal(t, "01-10-2026", row[types.ColStartDate])
	assert.Equal(t, "monthly", row[types.ColCategory])
	assert.Equal(t, "20001", row[types.ColCode])

	// Exactly one audit row.
	audits, err := f.store.ReadAll(ctx, types.TableTransferHistory)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	audit := audits[0]
	require.Len(t, audit, types.AuditColumns)
	assert.Equal(t, "90001", audit[types.AuditColOldCode])
	assert.Equal(t, "20001", audit[types.AuditColNewCode])
	assert.Equal(t, "daily", audit[types.AuditColOldCategory])
	assert.Equal(t, "monthly", audit[types.AuditColNewCategory])
	assert.Equal(t, "Clerk", audit[types.AuditColOldPosition])
	assert.Equal(t, "Senior Clerk", audit[types.AuditColNewPosition])
	assert.Equal(t, types.AuditActionTransfer, audit[types.AuditColAction])

	// Source removed, session gone.
	daily, err := f.store.ReadAll(ctx, types.TableDailyEmployee)
	require.NoError(t, err)
	assert.Empty(t, daily)
	_, err = f.sessions.Get(ctx, testUser)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestTransfer_LookupFailureRetainsSession(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	ctx := context.Background()
	seedEmployee(t, f.store, types.CategoryDaily, 90001)

	f.send(t, "2")
	out := f.send(t, "code: 99999\nname: Somchai P.\nposition: Senior Clerk\ncategory: monthly\neffective date: 01-10-2026")
	assert.Contains(t, out[0].Text, "99999")

	// Nothing moved.
	monthly, err := f.store.ReadAll(ctx, types.TableMonthlyEmployee)
	require.NoError(t, err)
	assert.Empty(t, monthly)

	// The resend with the corrected code completes.
	sess, err := f.sessions.Get(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, types.WorkflowTransfer, sess.Workflow)
	out = f.send(t, xferForm)
	assert.Contains(t, out[0].Text, "20001")
}

func TestTransfer_FindsSourceInMonthlyTable(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	ctx := context.Background()
	seedEmployee(t, f.store, types.CategoryMonthly, 20001)

	f.send(t, "2")
	out := f.send(t, "code: 20001\nname: Somchai P.\nposition: Clerk\ncategory: daily\neffective date: 01-10-2026")
	assert.Contains(t, out[0].Text, "90001")

	monthly, err := f.store.ReadAll(ctx, types.TableMonthlyEmployee)
	require.NoError(t, err)
	assert.Empty(t, monthly)
}

func TestTransfer_AuditFailureLeavesSourceIntact(t *testing.T) {
	mem := rowstore.NewMemoryStore()
	defer mem.Close()
	f := newFixture(t, testConfig(), &scriptedStore{Store: mem, failAppendTable: types.TableTransferHistory})
	ctx := context.Background()
	seedEmployee(t, f.store, types.CategoryDaily, 90001)

	f.send(t, "2")
	out := f.send(t, xferForm)
	assert.Equal(t, msgStorageFailure, out[0].Text)

	// Target append already happened, so the employee is temporarily
	// duplicated, but the source row must still exist: duplication is
	// recoverable, loss is not.
	daily, err := mem.ReadAll(ctx, types.TableDailyEmployee)
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, "90001", daily[0][types.ColCode])

	monthly, err := mem.ReadAll(ctx, types.TableMonthlyEmployee)
	require.NoError(t, err)
	assert.Len(t, monthly, 1)

	// Session survives for a retry.
	sess, err := f.sessions.Get(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, types.WorkflowTransfer, sess.Workflow)
}

func TestTransfer_DeleteFailureLeavesSourceIntact(t *testing.T) {
	mem := rowstore.NewMemoryStore()
	defer mem.Close()
	f := newFixture(t, testConfig(), &scriptedStore{Store: mem, failDelete: true})
	ctx := context.Background()
	seedEmployee(t, f.store, types.CategoryDaily, 90001)

	f.send(t, "2")
	out := f.send(t, xferForm)
	assert.Equal(t, msgStorageFailure, out[0].Text)

	daily, err := mem.ReadAll(ctx, types.TableDailyEmployee)
	require.NoError(t, err)
	assert.Len(t, daily, 1)
	audits, err := mem.ReadAll(ctx, types.TableTransferHistory)
	require.NoError(t, err)
	assert.Len(t, audits, 1)
}

func TestTransfer_ConcurrentTransfersFromSameTableDeleteTheRightRows(t *testing.T) {
	mem := rowstore.NewMemoryStore()
	defer mem.Close()
	hooked := &hookStore{Store: mem, table: types.TableDailyEmployee}
	f := newFixture(t, testConfig(), hooked)
	ctx := context.Background()

	seedEmployee(t, mem, types.CategoryDaily, 90001)
	seedEmployee(t, mem, types.CategoryDaily, 90002)
	seedEmployee(t, mem, types.CategoryDaily, 90003)

	const otherUser = "U5678"
	f.send(t, "2")
	_, err := f.engine.HandleEvent(ctx, types.Inbound{UserID: otherUser, Text: "2"})
	require.NoError(t, err)

	// Right after this user's lookup reads the Daily table, the other user
	// transfers 90001 to completion, which removes the table's first row and
	// renumbers the rest. The stale snapshot must not decide which row this
	// user's transfer deletes.
	hooked.afterRead = func() {
		out, err := f.engine.HandleEvent(ctx, types.Inbound{UserID: otherUser, Text: transferForm(90001)})
		require.NoError(t, err)
		assert.Contains(t, out[0].Text, "20001")
	}

	out, err := f.engine.HandleEvent(ctx, types.Inbound{UserID: testUser, Text: transferForm(90002)})
	require.NoError(t, err)
	assert.Contains(t, out[0].Text, "20002")

	// Only the two transferred rows are gone; the bystander 90003 survives.
	daily, err := mem.ReadAll(ctx, types.TableDailyEmployee)
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, "90003", daily[0][types.ColCode])

	monthly, err := mem.ReadAll(ctx, types.TableMonthlyEmployee)
	require.NoError(t, err)
	require.Len(t, monthly, 2)
	assert.Equal(t, "20001", monthly[0][types.ColCode])
	assert.Equal(t, "20002", monthly[1][types.ColCode])

	audits, err := mem.ReadAll(ctx, types.TableTransferHistory)
	require.NoError(t, err)
	assert.Len(t, audits, 2)
}

// =============================================================================
// Per-user isolation
// =============================================================================

func TestHandleEvent_UsersAreIndependent(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	ctx := context.Background()

	f.send(t, "1")

	// Another user's cancel must not disturb the first user's workflow.
	out, err := f.engine.HandleEvent(ctx, types.Inbound{UserID: "U5678", Text: "cancel"})
	require.NoError(t, err)
	assert.Contains(t, out[0].Text, msgCancelled)

	sess, err := f.sessions.Get(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, types.WorkflowRegistration, sess.Workflow)
}

func TestHandleEvent_MissingUserIDIsAnError(t *testing.T) {
	f := newFixture(t, testConfig(), nil)

	_, err := f.engine.HandleEvent(context.Background(), types.Inbound{Text: "hello"})
	assert.Error(t, err)
}
