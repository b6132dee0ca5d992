// Package domain contains the core appraisal business types.
//
// This file defines the domain events raised by the Appraisal aggregate.
// Events are buffered on the aggregate and drained (read-and-clear) by the
// caller after each successful mutation; an un-drained event is redelivered
// on the next drain, never lost.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event names, used as job types when events are dispatched for delivery.
const (
	EventAppraisalSubmitted = "appraisal.submitted"
	EventAppraisalApproved  = "appraisal.approved"
	EventAppraisalRejected  = "appraisal.rejected"
	EventAppraisalCompleted = "appraisal.completed"
)

// Event is a plain data record describing something that happened to an
// appraisal. Payloads carry only the fields downstream consumers format.
type Event interface {
	// Name returns the event name constant identifying the payload type.
	Name() string

	// OccurredAt returns when the event was raised.
	OccurredAt() time.Time
}

// AppraisalSubmitted is raised when an appraisal enters pending approval.
type AppraisalSubmitted struct {
	AppraisalID uuid.UUID `json:"appraisal_id"`
	EvaluatorID uuid.UUID `json:"evaluator_id"`
	Plate       string    `json:"plate"`
	FinalValue  Money     `json:"final_value"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func (e AppraisalSubmitted) Name() string          { return EventAppraisalSubmitted }
func (e AppraisalSubmitted) OccurredAt() time.Time { return e.SubmittedAt }

// AppraisalApproved is raised when a manager approves an appraisal.
type AppraisalApproved struct {
	AppraisalID   uuid.UUID `json:"appraisal_id"`
	ApproverID    uuid.UUID `json:"approver_id"`
	Plate         string    `json:"plate"`
	ApprovedValue Money     `json:"approved_value"`
	ValidUntil    time.Time `json:"valid_until"`
	ApprovedAt    time.Time `json:"approved_at"`
}

func (e AppraisalApproved) Name() string          { return EventAppraisalApproved }
func (e AppraisalApproved) OccurredAt() time.Time { return e.ApprovedAt }

// AppraisalRejected is raised when a manager rejects an appraisal.
type AppraisalRejected struct {
	AppraisalID uuid.UUID `json:"appraisal_id"`
	ApproverID  uuid.UUID `json:"approver_id"`
	Plate       string    `json:"plate"`
	Reason      string    `json:"reason"`
	RejectedAt  time.Time `json:"rejected_at"`
}

func (e AppraisalRejected) Name() string          { return EventAppraisalRejected }
func (e AppraisalRejected) OccurredAt() time.Time { return e.RejectedAt }

// AppraisalCompleted is raised alongside AppraisalApproved when the approval
// produced a non-zero value. It carries the flat snapshot downstream
// consumers (notification, certificate rendering) need, so they never have
// to load the aggregate.
type AppraisalCompleted struct {
	AppraisalID     uuid.UUID `json:"appraisal_id"`
	Plate           string    `json:"plate"`
	VehicleLabel    string    `json:"vehicle_label"`
	EvaluatorID     uuid.UUID `json:"evaluator_id"`
	ApproverID      uuid.UUID `json:"approver_id"`
	ApprovedValue   Money     `json:"approved_value"`
	ValidationToken string    `json:"validation_token"`
	ValidUntil      time.Time `json:"valid_until"`
	ApprovedAt      time.Time `json:"approved_at"`
}

func (e AppraisalCompleted) Name() string          { return EventAppraisalCompleted }
func (e AppraisalCompleted) OccurredAt() time.Time { return e.ApprovedAt }
