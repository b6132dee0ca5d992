// Package notify delivers appraisal lifecycle events to interested
// systems. The background worker drains the event outbox and hands each
// event to a Notifier.
package notify

import (
	"context"
	"encoding/json"
)

// Notifier delivers one serialized event. Implementations must be safe
// for concurrent use; the worker may deliver from several goroutines.
type Notifier interface {
	// Notify delivers the event payload. The returned error decides
	// whether the delivery job is retried.
	Notify(ctx context.Context, eventName string, payload json.RawMessage) error
}
