package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pbaptista/avalia/internal/repository"
)

// Job type constants, matching JobHandler.Type values.
const (
	JobTypeDeliverEvent = "deliver_event"
)

// Priority constants for job scheduling.
const (
	PriorityLow    = 0
	PriorityNormal = 10
	PriorityHigh   = 20
)

// DeliverEventPayload carries one lifecycle event through the queue.
type DeliverEventPayload struct {
	AppraisalID uuid.UUID       `json:"appraisal_id"`
	EventName   string          `json:"event_name"`
	Event       json.RawMessage `json:"event"`
}

// EnqueueOption customizes job enqueue parameters.
type EnqueueOption func(*repository.EnqueueJobParams)

// WithPriority sets the job priority.
func WithPriority(priority int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.Priority = priority
	}
}

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(attempts int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.MaxAttempts = attempts
	}
}

// WithDelay schedules the job to run after a delay.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.ScheduledAt = time.Now().Add(delay)
	}
}

// Enqueue inserts a job of the given type. Pass the repository bound to
// the caller's transaction to enqueue atomically with a state change.
func Enqueue(
	ctx context.Context,
	queries *repository.Queries,
	jobType string,
	payload interface{},
	opts ...EnqueueOption,
) (uuid.UUID, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal payload: %w", err)
	}

	params := repository.EnqueueJobParams{
		ID:          uuid.New(),
		JobType:     jobType,
		Payload:     payloadJSON,
		Priority:    PriorityNormal,
		MaxAttempts: 3,
		ScheduledAt: time.Now(),
	}

	for _, opt := range opts {
		opt(&params)
	}

	if err := queries.EnqueueJob(ctx, params); err != nil {
		return uuid.Nil, fmt.Errorf("enqueue job: %w", err)
	}

	return params.ID, nil
}

// EnqueueDeliverEvent enqueues delivery of one lifecycle event. Called
// inside the transaction that persists the state change so the event is
// never lost and never delivered for a rolled-back change.
func EnqueueDeliverEvent(
	ctx context.Context,
	queries *repository.Queries,
	appraisalID uuid.UUID,
	eventName string,
	event interface{},
	opts ...EnqueueOption,
) (uuid.UUID, error) {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal event: %w", err)
	}

	payload := DeliverEventPayload{
		AppraisalID: appraisalID,
		EventName:   eventName,
		Event:       eventJSON,
	}

	return Enqueue(ctx, queries, JobTypeDeliverEvent, payload, opts...)
}
