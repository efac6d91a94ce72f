package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/staffline/bot/parser"
	"github.com/BaSui01/staffline/store/rowstore"
	"github.com/BaSui01/staffline/types"
)

// located is an employee row resolved to its category table. The row's
// position is deliberately not carried: other transfers out of the same table
// delete rows concurrently, so a position is stale the moment the read lock
// is released. deleteSource resolves the position again when it matters.
type located struct {
	cat types.Category
	row rowstore.Row
}

// handleTransfer consumes one message of the transfer workflow.
//
// A transfer is three store writes with no transaction around them:
//
//	1. append the employee to the target category table (new code issued)
//	2. append the audit row to the transfer history
//	3. delete the source row
//
// The delete runs LAST. If a middle step fails the employee exists twice,
// which an operator can reconcile from the audit trail; deleting first could
// lose the record entirely. The per-source-code lock keeps a duplicate
// submission of the same transfer from interleaving with this sequence, and
// the delete itself re-locates the row by code under the table lock so that
// transfers of other employees out of the same table cannot shift which row
// gets removed.
func (e *Engine) handleTransfer(ctx context.Context, ev types.Inbound, text string) ([]types.Outbound, error) {
	values, err := parser.Parse(text, parser.Transfer)
	if err != nil {
		return e.validationReply(ev, err)
	}

	oldCode := values["code"]

	unlock := e.transfers.Lock(oldCode)
	defer unlock()

	src, found, err := e.locate(ctx, oldCode)
	if err != nil {
		return e.storageReply(ev, "lookup", err)
	}
	if !found {
		// Session survives: the user corrects the code and resends.
		e.logger.Info("transfer lookup failed",
			zap.String("user_id", ev.UserID),
			zap.String("old_code", oldCode),
		)
		e.collector.RecordEvent(outcomeLookup)
		return e.reply(ev, lookupFailedMessage(oldCode)), nil
	}

	target, _ := types.ParseCategory(values["category"])
	stamp := e.timestamp()

	build := func(code int) rowstore.Row {
		row := make(rowstore.Row, types.EmployeeColumns)
		row[types.ColName] = values["name"]
		row[types.ColDepartment] = cell(src.row, types.ColDepartment)
		row[types.ColBranch] = cell(src.row, types.ColBranch)
		row[types.ColPosition] = values["position"]
		row[types.ColStartDate] = values["effective date"]
		row[types.ColCategory] = string(target)
		row[types.ColRequestedBy] = ev.UserID
		row[types.ColCode] = strconv.Itoa(code)
		row[types.ColIssuedAt] = stamp
		return row
	}

	start := time.Now()
	newCode, err := e.alloc.Allocate(ctx, target, build)
	e.collector.ObserveAllocation(string(target), time.Since(start))
	if err != nil {
		return e.storageReply(ev, "transfer_append_target", err)
	}

	audit := auditRow(stamp, oldCode, newCode, values, src, target, ev.UserID)
	if err := e.store.AppendRow(ctx, types.TableTransferHistory, audit); err != nil {
		e.logger.Error("transfer audit append failed, target row already written",
			zap.String("user_id", ev.UserID),
			zap.String("old_code", oldCode),
			zap.Int("new_code", newCode),
		)
		return e.storageReply(ev, "transfer_append_audit", err)
	}

	if err := e.deleteSource(ctx, src.cat.Table(), oldCode); err != nil {
		e.logger.Error("transfer source delete failed, employee now exists in both tables",
			zap.String("user_id", ev.UserID),
			zap.String("old_code", oldCode),
			zap.Int("new_code", newCode),
			zap.String("source_table", src.cat.Table()),
		)
		return e.storageReply(ev, "transfer_delete_source", err)
	}

	if err := e.sessions.Clear(ctx, ev.UserID); err != nil {
		e.logger.Error("session clear failed after transfer",
			zap.String("user_id", ev.UserID),
			zap.Error(err),
		)
	}

	e.logger.Info("employee transferred",
		zap.String("user_id", ev.UserID),
		zap.String("old_code", oldCode),
		zap.Int("new_code", newCode),
		zap.String("from", string(src.cat)),
		zap.String("to", string(target)),
	)
	e.collector.RecordWorkflowCompleted(string(types.WorkflowTransfer))
	e.collector.RecordEvent(outcomeCompleted)

	return []types.Outbound{
		{UserID: ev.UserID, Text: transferSuccessMessage(oldCode, newCode, target)},
		{
			UserID: ev.UserID,
			Text: transferSummaryPush(
				values["name"], oldCode, newCode, src.cat, target, values["effective date"],
			),
			Push: true,
		},
	}, nil
}

// locate scans the category tables in lookup order and returns the first row
// whose code column matches.
func (e *Engine) locate(ctx context.Context, code string) (located, bool, error) {
	for _, cat := range types.Categories {
		rows, err := e.store.ReadAll(ctx, cat.Table())
		if err != nil {
			return located{}, false, err
		}
		for _, row := range rows {
			if cell(row, types.ColCode) == code {
				return located{cat: cat, row: row}, true, nil
			}
		}
	}
	return located{}, false, nil
}

// deleteSource removes the row carrying code from table. Positional deletes
// renumber every row behind them, so the position is resolved from a fresh
// read and the read-then-delete pair runs under the table lock; an index
// captured before another transfer's delete would address the wrong employee.
func (e *Engine) deleteSource(ctx context.Context, table, code string) error {
	unlock := e.tables.Lock(table)
	defer unlock()

	rows, err := e.store.ReadAll(ctx, table)
	if err != nil {
		return err
	}
	for i, row := range rows {
		if cell(row, types.ColCode) == code {
			return e.store.DeleteRow(ctx, table, i)
		}
	}
	return fmt.Errorf("source row %s disappeared from %s", code, table)
}

// auditRow builds the append-only transfer history record.
func auditRow(stamp, oldCode string, newCode int, values map[string]string, src located, target types.Category, requestedBy string) rowstore.Row {
	row := make(rowstore.Row, types.AuditColumns)
	row[types.AuditColTimestamp] = stamp
	row[types.AuditColOldCode] = oldCode
	row[types.AuditColNewCode] = strconv.Itoa(newCode)
	row[types.AuditColName] = values["name"]
	row[types.AuditColBranch] = cell(src.row, types.ColBranch)
	row[types.AuditColOldPosition] = cell(src.row, types.ColPosition)
	row[types.AuditColNewPosition] = values["position"]
	row[types.AuditColOldCategory] = string(src.cat)
	row[types.AuditColNewCategory] = string(target)
	row[types.AuditColEffectiveDate] = values["effective date"]
	row[types.AuditColRequestedBy] = requestedBy
	row[types.AuditColAction] = types.AuditActionTransfer
	return row
}
