package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/staffline/internal/metrics"
	"github.com/BaSui01/staffline/types"
)

// =============================================================================
// Chat event handler
// =============================================================================

// EventEngine is the conversation engine consumed by the handler. Satisfied
// by *engine.Engine.
type EventEngine interface {
	HandleEvent(ctx context.Context, ev types.Inbound) ([]types.Outbound, error)
}

// EventHandler accepts inbound chat events from the transport adapter and
// returns the engine's outbound messages.
type EventHandler struct {
	engine    EventEngine
	collector *metrics.Collector
	logger    *zap.Logger
}

// EventResponse carries the engine's messages for one event.
type EventResponse struct {
	Messages []types.Outbound `json:"messages"`
}

// NewEventHandler creates the event handler.
func NewEventHandler(engine EventEngine, collector *metrics.Collector, logger *zap.Logger) *EventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHandler{
		engine:    engine,
		collector: collector,
		logger:    logger.With(zap.String("component", "event_handler")),
	}
}

// HandleEvent handles POST /v1/events.
func (h *EventHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, CodeInvalidRequest, "method not allowed", h.logger)
		return
	}

	start := time.Now()

	var ev types.Inbound
	if !DecodeJSONBody(w, r, &ev, h.logger) {
		return
	}

	if strings.TrimSpace(ev.UserID) == "" {
		WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "user_id is required", h.logger)
		return
	}

	out, err := h.engine.HandleEvent(r.Context(), ev)
	if err != nil {
		h.logger.Error("event handling failed",
			zap.String("user_id", ev.UserID),
			zap.Error(err),
		)
		h.collector.ObserveHTTPRequest(r.Method, r.URL.Path, "500", time.Since(start))
		WriteError(w, http.StatusInternalServerError, CodeInternalError, "failed to handle event", h.logger)
		return
	}

	h.collector.ObserveHTTPRequest(r.Method, r.URL.Path, "200", time.Since(start))
	WriteSuccess(w, EventResponse{Messages: out})
}
