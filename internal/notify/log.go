package notify

import (
	"context"
	"encoding/json"
	"log/slog"
)

// LogNotifier writes events to the structured log. It is the development
// default when no webhook URL is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the event and always succeeds.
func (n *LogNotifier) Notify(ctx context.Context, eventName string, payload json.RawMessage) error {
	n.logger.Info("event",
		"event", eventName,
		"payload", string(payload),
	)
	return nil
}
