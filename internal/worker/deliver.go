package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pbaptista/avalia/internal/metrics"
	"github.com/pbaptista/avalia/internal/notify"
)

// DeliverEventHandler hands lifecycle events from the queue to a
// Notifier.
type DeliverEventHandler struct {
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewDeliverEventHandler creates the handler for deliver_event jobs.
func NewDeliverEventHandler(notifier notify.Notifier, logger *slog.Logger) *DeliverEventHandler {
	return &DeliverEventHandler{
		notifier: notifier,
		logger:   logger,
	}
}

// Type implements JobHandler.
func (h *DeliverEventHandler) Type() string {
	return JobTypeDeliverEvent
}

// Handle delivers one event. A malformed payload is permanent; delivery
// failures are retried by the queue.
func (h *DeliverEventHandler) Handle(ctx context.Context, payload []byte) error {
	var p DeliverEventPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return NewPermanentError(fmt.Errorf("unmarshal deliver_event payload: %w", err))
	}
	if p.EventName == "" {
		return NewPermanentError(fmt.Errorf("deliver_event payload missing event name"))
	}

	if err := h.notifier.Notify(ctx, p.EventName, p.Event); err != nil {
		metrics.EventsDelivered.WithLabelValues(p.EventName, "error").Inc()
		return fmt.Errorf("deliver %s for appraisal %s: %w", p.EventName, p.AppraisalID, err)
	}

	metrics.EventsDelivered.WithLabelValues(p.EventName, "ok").Inc()
	h.logger.Debug("delivered event",
		"event", p.EventName,
		"appraisal_id", p.AppraisalID,
	)

	return nil
}
