// Package engine implements the conversational workflow state machine.
//
// Each inbound chat event drives one turn of a per-user state machine with
// three states: idle at the menu, registering a new employee, or transferring
// an employee between categories. The engine is the only component allowed to
// mutate sessions and employee tables; it serializes turns per user and
// transfer operations per source code so overlapping events cannot corrupt
// either.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/staffline/bot/allocator"
	"github.com/BaSui01/staffline/bot/parser"
	"github.com/BaSui01/staffline/bot/session"
	"github.com/BaSui01/staffline/internal/lockmap"
	"github.com/BaSui01/staffline/internal/metrics"
	"github.com/BaSui01/staffline/store/rowstore"
	"github.com/BaSui01/staffline/types"
)

// Allocator issues category-scoped sequential codes. Satisfied by
// *allocator.Allocator.
type Allocator interface {
	Allocate(ctx context.Context, cat types.Category, build allocator.RowBuilder) (int, error)
}

// Event outcome labels for metrics.
const (
	outcomeMaintenance = "maintenance"
	outcomeMenu        = "menu"
	outcomeStarted     = "workflow_started"
	outcomeCancelled   = "cancelled"
	outcomeValidation  = "validation_error"
	outcomeLookup      = "lookup_error"
	outcomeStorage     = "storage_error"
	outcomeCompleted   = "completed"
)

// timestampLayout is the human-facing stamp written into rows.
const timestampLayout = "02/01/2006 15:04"

// Config tunes the engine.
type Config struct {
	// Active gates the whole engine; when false every event gets the fixed
	// maintenance reply and nothing else runs.
	Active bool

	// CancelWord aborts the current workflow, matched case-insensitively
	// before any other handling.
	CancelWord string

	// Timezone is the IANA zone for issued/audit timestamps.
	Timezone string

	// TurnTimeout bounds the external calls of one turn. Zero disables the
	// bound.
	TurnTimeout time.Duration
}

// DefaultConfig returns the default engine settings.
func DefaultConfig() Config {
	return Config{
		Active:      true,
		CancelWord:  "cancel",
		Timezone:    "Asia/Bangkok",
		TurnTimeout: 30 * time.Second,
	}
}

// Engine drives the per-user conversation state machine.
type Engine struct {
	cfg       Config
	sessions  session.Store
	store     rowstore.Store
	alloc     Allocator
	collector *metrics.Collector
	logger    *zap.Logger

	// users serializes turns per user; transfers serializes the multi-step
	// transfer per source code; tables serializes the locate-and-delete of a
	// source row per table, because a concurrent delete shifts the positions
	// of every row behind it.
	users     *lockmap.Map
	transfers *lockmap.Map
	tables    *lockmap.Map

	loc *time.Location
	now func() time.Time
}

// New creates an engine. collector may be nil.
func New(cfg Config, sessions session.Store, store rowstore.Store, alloc Allocator, collector *metrics.Collector, logger *zap.Logger) (*Engine, error) {
	if sessions == nil || store == nil || alloc == nil {
		return nil, fmt.Errorf("sessions, store and allocator are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CancelWord == "" {
		cfg.CancelWord = DefaultConfig().CancelWord
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
		}
		loc = l
	}

	return &Engine{
		cfg:       cfg,
		sessions:  sessions,
		store:     store,
		alloc:     alloc,
		collector: collector,
		logger:    logger.With(zap.String("component", "engine")),
		users:     lockmap.New(),
		transfers: lockmap.New(),
		tables:    lockmap.New(),
		loc:       loc,
		now:       time.Now,
	}, nil
}

// HandleEvent runs one conversation turn. The first outbound message is the
// reply bound to the event; any further messages are follow-up pushes.
// Conversational failures become replies, not errors; the returned error is
// reserved for events the engine could not process at all.
func (e *Engine) HandleEvent(ctx context.Context, ev types.Inbound) ([]types.Outbound, error) {
	if ev.UserID == "" {
		return nil, fmt.Errorf("inbound event has no user id")
	}

	// The maintenance gate runs before locks, session reads and store
	// calls: zero side effects while disabled.
	if !e.cfg.Active {
		e.collector.RecordEvent(outcomeMaintenance)
		return e.reply(ev, msgMaintenance), nil
	}

	unlock := e.users.Lock(ev.UserID)
	defer unlock()

	if e.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.TurnTimeout)
		defer cancel()
	}

	text := strings.TrimSpace(ev.Text)

	// Cancel preempts every state, including idle.
	if strings.EqualFold(text, e.cfg.CancelWord) {
		return e.handleCancel(ctx, ev)
	}

	sess, err := e.sessions.Get(ctx, ev.UserID)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		e.logger.Error("session read failed", zap.String("user_id", ev.UserID), zap.Error(err))
		e.collector.RecordEvent(outcomeStorage)
		return e.reply(ev, msgStorageFailure), nil
	}

	if err != nil {
		// No session: the user is idle at the menu.
		return e.handleMenu(ctx, ev, text)
	}

	switch sess.Workflow {
	case types.WorkflowRegistration:
		return e.handleRegistration(ctx, ev, text)
	case types.WorkflowTransfer:
		return e.handleTransfer(ctx, ev, text)
	default:
		// Unknown workflow in a stored session; recover by clearing it.
		e.logger.Warn("unknown workflow in session, resetting",
			zap.String("user_id", ev.UserID),
			zap.String("workflow", string(sess.Workflow)),
		)
		if err := e.sessions.Clear(ctx, ev.UserID); err != nil {
			e.logger.Error("session clear failed", zap.String("user_id", ev.UserID), zap.Error(err))
		}
		return e.handleMenu(ctx, ev, text)
	}
}

// handleCancel clears any session and re-shows the menu.
func (e *Engine) handleCancel(ctx context.Context, ev types.Inbound) ([]types.Outbound, error) {
	if err := e.sessions.Clear(ctx, ev.UserID); err != nil {
		e.logger.Error("session clear failed", zap.String("user_id", ev.UserID), zap.Error(err))
		e.collector.RecordEvent(outcomeStorage)
		return e.reply(ev, msgStorageFailure), nil
	}

	e.collector.RecordWorkflowCancelled()
	e.collector.RecordEvent(outcomeCancelled)
	return e.reply(ev, msgCancelled+"\n\n"+e.menu()), nil
}

// handleMenu dispatches idle input: "1" starts registration, "2" starts
// transfer, anything else re-shows the menu.
func (e *Engine) handleMenu(ctx context.Context, ev types.Inbound, text string) ([]types.Outbound, error) {
	var workflow types.Workflow
	var prompt string

	switch text {
	case "1":
		workflow, prompt = types.WorkflowRegistration, msgRegistrationPrompt
	case "2":
		workflow, prompt = types.WorkflowTransfer, msgTransferPrompt
	default:
		e.collector.RecordEvent(outcomeMenu)
		return e.reply(ev, e.menu()), nil
	}

	if _, err := e.sessions.Start(ctx, ev.UserID, workflow); err != nil {
		e.logger.Error("session start failed", zap.String("user_id", ev.UserID), zap.Error(err))
		e.collector.RecordEvent(outcomeStorage)
		return e.reply(ev, msgStorageFailure), nil
	}

	e.logger.Info("workflow started",
		zap.String("user_id", ev.UserID),
		zap.String("workflow", string(workflow)),
	)
	e.collector.RecordWorkflowStarted(string(workflow))
	e.collector.RecordEvent(outcomeStarted)
	return e.reply(ev, prompt), nil
}

// validationReply maps a parse failure onto its corrective message. The
// session is retained so the user can resend without re-selecting the menu.
func (e *Engine) validationReply(ev types.Inbound, err error) ([]types.Outbound, error) {
	var verr *parser.ValidationError
	if !errors.As(err, &verr) {
		e.logger.Error("unexpected parse failure", zap.Error(err))
		e.collector.RecordEvent(outcomeStorage)
		return e.reply(ev, msgStorageFailure), nil
	}

	e.logger.Info("input rejected",
		zap.String("user_id", ev.UserID),
		zap.String("kind", string(verr.Kind)),
		zap.String("detail", verr.Detail),
	)
	e.collector.RecordValidationFailure(string(verr.Kind))
	e.collector.RecordEvent(outcomeValidation)
	return e.reply(ev, validationMessage(verr)), nil
}

// storageReply reports a failed store call. The session is retained so the
// user can retry; details go to the log, not the chat.
func (e *Engine) storageReply(ev types.Inbound, op string, err error) ([]types.Outbound, error) {
	e.logger.Error("store operation failed",
		zap.String("user_id", ev.UserID),
		zap.String("op", op),
		zap.Error(err),
	)
	e.collector.RecordEvent(outcomeStorage)
	return e.reply(ev, msgStorageFailure), nil
}

// reply wraps a single text as the turn's reply.
func (e *Engine) reply(ev types.Inbound, text string) []types.Outbound {
	return []types.Outbound{{UserID: ev.UserID, Text: text}}
}

// timestamp renders now in the configured zone.
func (e *Engine) timestamp() string {
	return e.now().In(e.loc).Format(timestampLayout)
}

// cell reads a column defensively; short historical rows read as empty.
func cell(row rowstore.Row, col int) string {
	if col < len(row) {
		return strings.TrimSpace(row[col])
	}
	return ""
}
