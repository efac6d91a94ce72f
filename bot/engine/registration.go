package engine

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/staffline/bot/parser"
	"github.com/BaSui01/staffline/store/rowstore"
	"github.com/BaSui01/staffline/types"
)

// handleRegistration consumes one message of the registration workflow. The
// workflow is single-shot: one valid form message registers the employee and
// ends the conversation; any defect keeps the session alive for a resend.
func (e *Engine) handleRegistration(ctx context.Context, ev types.Inbound, text string) ([]types.Outbound, error) {
	values, err := parser.Parse(text, parser.Registration)
	if err != nil {
		return e.validationReply(ev, err)
	}

	// Category already validated by the form.
	cat, _ := types.ParseCategory(values["category"])
	issuedAt := e.timestamp()

	build := func(code int) rowstore.Row {
		row := make(rowstore.Row, types.EmployeeColumns)
		row[types.ColName] = values["name"]
		row[types.ColDepartment] = values["department"]
		row[types.ColBranch] = values["branch"]
		row[types.ColPosition] = values["position"]
		row[types.ColStartDate] = values["start date"]
		row[types.ColCategory] = string(cat)
		row[types.ColRequestedBy] = ev.UserID
		row[types.ColCode] = strconv.Itoa(code)
		row[types.ColIssuedAt] = issuedAt
		return row
	}

	start := time.Now()
	code, err := e.alloc.Allocate(ctx, cat, build)
	e.collector.ObserveAllocation(string(cat), time.Since(start))
	if err != nil {
		return e.storageReply(ev, "allocate", err)
	}

	if err := e.sessions.Clear(ctx, ev.UserID); err != nil {
		// The row is persisted; losing the clear only costs the user one
		// cancel. Log and report success anyway.
		e.logger.Error("session clear failed after registration",
			zap.String("user_id", ev.UserID),
			zap.Error(err),
		)
	}

	e.logger.Info("employee registered",
		zap.String("user_id", ev.UserID),
		zap.String("category", string(cat)),
		zap.Int("code", code),
	)
	e.collector.RecordWorkflowCompleted(string(types.WorkflowRegistration))
	e.collector.RecordEvent(outcomeCompleted)

	return e.reply(ev, registrationSuccessMessage(code, values)), nil
}
