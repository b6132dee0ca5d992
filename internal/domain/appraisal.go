// Package domain contains the core appraisal business types.
//
// This file defines the Appraisal aggregate: the root entity owning the
// vehicle descriptor, photo set, deduction list, inspection checklist,
// monetary fields and the lifecycle state machine. All persisted state is
// mutated exclusively through the aggregate's methods, each of which checks
// the lifecycle guard before touching anything.
package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Appraisal Status
// =============================================================================

// Status represents the lifecycle state of an appraisal.
type Status string

const (
	// StatusDraft is the initial state. Fully editable, no evidence yet.
	StatusDraft Status = "draft"

	// StatusInProgress indicates evidence collection has started.
	// Entered automatically on the first mutation of a draft.
	StatusInProgress Status = "in_progress"

	// StatusPendingApproval indicates the appraisal has been submitted and
	// awaits a manager decision. No further edits are allowed.
	StatusPendingApproval Status = "pending_approval"

	// StatusApproved is terminal. The appraisal carries a validation token
	// and a validity deadline.
	StatusApproved Status = "approved"

	// StatusRejected is terminal. The rejection reason is recorded.
	StatusRejected Status = "rejected"

	// StatusCancelled is terminal. Reached only from an editable state.
	StatusCancelled Status = "cancelled"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized value.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusInProgress, StatusPendingApproval,
		StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// IsEditable returns true for the states in which the appraisal's evidence
// and monetary fields may still be mutated.
func (s Status) IsEditable() bool {
	return s == StatusDraft || s == StatusInProgress
}

// IsActive returns true for the states that count toward the one-active-
// appraisal-per-plate invariant enforced at creation time.
func (s Status) IsActive() bool {
	switch s {
	case StatusDraft, StatusInProgress, StatusPendingApproval, StatusApproved:
		return true
	}
	return false
}

// statusTransitions is the full transition table of the lifecycle state
// machine. An operation is allowed iff the target state appears in the
// current state's row; terminal states have empty rows.
var statusTransitions = map[Status][]Status{
	StatusDraft:           {StatusInProgress, StatusPendingApproval, StatusCancelled},
	StatusInProgress:      {StatusPendingApproval, StatusCancelled},
	StatusPendingApproval: {StatusApproved, StatusRejected},
	StatusApproved:        {},
	StatusRejected:        {},
	StatusCancelled:       {},
}

// CanTransitionTo checks the transition table for current -> target.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// =============================================================================
// Constants
// =============================================================================

const (
	// ApprovalValidity is how long an approved appraisal remains valid.
	ApprovalValidity = 72 * time.Hour

	// validationTokenBytes is the entropy of the validation token.
	// 32 bytes hex-encoded gives a 64-character opaque credential.
	validationTokenBytes = 32
)

// =============================================================================
// Appraisal Aggregate
// =============================================================================

// Appraisal is the aggregate root for one vehicle's condition evaluation.
//
// The aggregate exclusively owns its photos, deductions and checklist; no
// other component may persist or mutate them directly. Domain events raised
// by mutations are buffered in-memory and must be drained by the caller
// after each successful mutation.
type Appraisal struct {
	ID       uuid.UUID
	Vehicle  Vehicle
	Plate    string
	Mileage  decimal.Decimal // kilometers
	Currency string          // currency for every monetary field
	Status   Status

	Photos     []Photo
	Deductions []Deduction
	Checklist  *Checklist

	ReferencePrice Money
	BaseValue      Money
	FinalValue     Money
	ApprovedValue  Money

	Observations    string
	RejectionReason string

	EvaluatorID uuid.UUID
	ApproverID  *uuid.UUID

	CreatedAt   time.Time
	UpdatedAt   time.Time
	SubmittedAt *time.Time
	ApprovedAt  *time.Time

	ValidUntil      *time.Time
	ValidationToken string

	// Version is the optimistic-locking counter managed by the repository.
	Version int64

	events []Event
}

// NewAppraisalParams contains validated parameters for creating an appraisal.
type NewAppraisalParams struct {
	Vehicle      Vehicle
	Plate        string
	Mileage      decimal.Decimal
	Currency     string // Defaults to BRL
	EvaluatorID  uuid.UUID
	Observations string // Optional
}

// NewAppraisal creates a new appraisal in draft status.
func NewAppraisal(params NewAppraisalParams) (*Appraisal, error) {
	const op = "appraisal.new"

	plate := strings.ToUpper(strings.TrimSpace(params.Plate))
	if plate == "" {
		return nil, Invalid(op, "plate is required")
	}
	if params.Mileage.IsNegative() {
		return nil, Invalid(op, "mileage cannot be negative")
	}
	if params.EvaluatorID == uuid.Nil {
		return nil, Invalid(op, "evaluator is required")
	}
	currency := params.Currency
	if currency == "" {
		currency = "BRL"
	}
	if len(currency) != 3 {
		return nil, Invalid(op, fmt.Sprintf("invalid currency code %q", currency))
	}

	now := time.Now().UTC()
	return &Appraisal{
		ID:             uuid.New(),
		Vehicle:        params.Vehicle,
		Plate:          plate,
		Mileage:        params.Mileage,
		Currency:       currency,
		Status:         StatusDraft,
		ReferencePrice: ZeroMoney(currency),
		BaseValue:      ZeroMoney(currency),
		FinalValue:     ZeroMoney(currency),
		ApprovedValue:  ZeroMoney(currency),
		Observations:   strings.TrimSpace(params.Observations),
		EvaluatorID:    params.EvaluatorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// =============================================================================
// Guards
// =============================================================================

// ensureEditable is the guard every non-transition mutator runs first.
func (a *Appraisal) ensureEditable(op string) error {
	if !a.Status.IsEditable() {
		return StatusConflict(op, a.Status)
	}
	return nil
}

// touch updates the modification timestamp and moves a draft into
// in_progress, since the first mutation means evidence collection started.
func (a *Appraisal) touch() {
	a.UpdatedAt = time.Now().UTC()
	if a.Status == StatusDraft {
		a.Status = StatusInProgress
	}
}

// =============================================================================
// Photo Ownership
// =============================================================================

// AddPhoto attaches a photo to the appraisal. At most one photo per photo
// type is allowed; the photo must belong to this appraisal.
func (a *Appraisal) AddPhoto(photo Photo) error {
	const op = "appraisal.add_photo"

	if err := a.ensureEditable(op); err != nil {
		return err
	}
	if !photo.Type.IsValid() {
		return Invalid(op, fmt.Sprintf("unknown photo type %q", photo.Type))
	}
	if photo.AppraisalID != a.ID {
		return Invalid(op, "photo belongs to a different appraisal")
	}
	for _, existing := range a.Photos {
		if existing.Type == photo.Type {
			return Invalid(op, fmt.Sprintf("a %s photo is already attached", photo.Type))
		}
	}

	a.Photos = append(a.Photos, photo)
	a.touch()
	return nil
}

// RemovePhoto detaches a photo by ID.
func (a *Appraisal) RemovePhoto(photoID uuid.UUID) error {
	const op = "appraisal.remove_photo"

	if err := a.ensureEditable(op); err != nil {
		return err
	}
	for i, photo := range a.Photos {
		if photo.ID == photoID {
			a.Photos = append(a.Photos[:i], a.Photos[i+1:]...)
			a.touch()
			return nil
		}
	}
	return NotFound(op, "photo", photoID.String())
}

// PhotoOfType returns the photo with the given type, if attached.
func (a *Appraisal) PhotoOfType(t PhotoType) (Photo, bool) {
	for _, photo := range a.Photos {
		if photo.Type == t {
			return photo, true
		}
	}
	return Photo{}, false
}

// =============================================================================
// Deduction Ownership
// =============================================================================

// AddDeduction attaches a deduction record to the appraisal.
func (a *Appraisal) AddDeduction(d *Deduction) error {
	const op = "appraisal.add_deduction"

	if err := a.ensureEditable(op); err != nil {
		return err
	}
	if d.AppraisalID != a.ID {
		return Invalid(op, "deduction belongs to a different appraisal")
	}
	if d.Value.Currency != a.Currency {
		return Invalid(op, fmt.Sprintf("deduction currency %s does not match appraisal currency %s", d.Value.Currency, a.Currency))
	}

	a.Deductions = append(a.Deductions, *d)
	a.touch()
	return nil
}

// RemoveDeduction detaches a deduction by ID.
func (a *Appraisal) RemoveDeduction(deductionID uuid.UUID) error {
	const op = "appraisal.remove_deduction"

	if err := a.ensureEditable(op); err != nil {
		return err
	}
	for i, d := range a.Deductions {
		if d.ID == deductionID {
			a.Deductions = append(a.Deductions[:i], a.Deductions[i+1:]...)
			a.touch()
			return nil
		}
	}
	return NotFound(op, "deduction", deductionID.String())
}

// TotalDepreciation sums the values of all deduction records.
func (a *Appraisal) TotalDepreciation() Money {
	total := ZeroMoney(a.Currency)
	for _, d := range a.Deductions {
		// Currency equality was enforced in AddDeduction.
		total.Amount = total.Amount.Add(d.Value.Amount)
	}
	return total
}

// =============================================================================
// Checklist Ownership
// =============================================================================

// SetChecklist attaches or replaces the inspection checklist.
func (a *Appraisal) SetChecklist(c *Checklist) error {
	const op = "appraisal.set_checklist"

	if err := a.ensureEditable(op); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if a.Checklist != nil {
		c.ID = a.Checklist.ID
		c.CreatedAt = a.Checklist.CreatedAt
	} else if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.AppraisalID = a.ID
	c.UpdatedAt = now

	a.Checklist = c
	a.touch()
	return nil
}

// =============================================================================
// Monetary Fields & Observations
// =============================================================================

// SetValuation copies the monetary figures produced by the valuation
// pipeline onto the aggregate. All three must be in the appraisal currency.
func (a *Appraisal) SetValuation(referencePrice, baseValue, finalValue Money) error {
	const op = "appraisal.set_valuation"

	if err := a.ensureEditable(op); err != nil {
		return err
	}
	for _, m := range []Money{referencePrice, baseValue, finalValue} {
		if m.Currency != a.Currency {
			return Invalid(op, fmt.Sprintf("value currency %s does not match appraisal currency %s", m.Currency, a.Currency))
		}
	}

	a.ReferencePrice = referencePrice
	a.BaseValue = baseValue
	a.FinalValue = finalValue
	a.touch()
	return nil
}

// SetObservations replaces the free-text observations.
func (a *Appraisal) SetObservations(text string) error {
	const op = "appraisal.set_observations"

	if err := a.ensureEditable(op); err != nil {
		return err
	}
	a.Observations = strings.TrimSpace(text)
	a.touch()
	return nil
}

// =============================================================================
// Lifecycle Transitions
// =============================================================================

// SubmitForApproval moves an editable appraisal into pending approval.
//
// Preconditions: at least one photo, a complete checklist, and a non-zero
// final value. A precondition failure leaves the appraisal untouched.
func (a *Appraisal) SubmitForApproval() error {
	const op = "appraisal.submit"

	if !a.Status.CanTransitionTo(StatusPendingApproval) {
		return StatusConflict(op, a.Status)
	}
	if len(a.Photos) == 0 {
		return Precondition(op, "at least one photo is required")
	}
	if a.Checklist == nil || !a.Checklist.IsComplete() {
		return Precondition(op, "inspection checklist is incomplete")
	}
	if a.FinalValue.IsZero() {
		return Precondition(op, "final value has not been calculated")
	}

	now := time.Now().UTC()
	a.Status = StatusPendingApproval
	a.SubmittedAt = &now
	a.UpdatedAt = now

	a.raise(AppraisalSubmitted{
		AppraisalID: a.ID,
		EvaluatorID: a.EvaluatorID,
		Plate:       a.Plate,
		FinalValue:  a.FinalValue,
		SubmittedAt: now,
	})
	return nil
}

// Approve records a manager decision on a pending appraisal.
//
// The approved value is adjustedValue when given, otherwise the final value.
// Approval sets a validity deadline 72 hours ahead and generates a fresh
// validation token. Raises an approved event, plus a completed event when
// the approved value is non-zero.
func (a *Appraisal) Approve(approverID uuid.UUID, adjustedValue *Money) error {
	const op = "appraisal.approve"

	if !a.Status.CanTransitionTo(StatusApproved) {
		return StatusConflict(op, a.Status)
	}
	if approverID == uuid.Nil {
		return Invalid(op, "approver is required")
	}

	approved := a.FinalValue
	if adjustedValue != nil {
		if adjustedValue.Currency != a.Currency {
			return Invalid(op, fmt.Sprintf("adjusted value currency %s does not match appraisal currency %s", adjustedValue.Currency, a.Currency))
		}
		if adjustedValue.IsNegative() {
			return Invalid(op, "adjusted value cannot be negative")
		}
		approved = *adjustedValue
	}

	token, err := newValidationToken()
	if err != nil {
		return Internal(err, op, "failed to generate validation token")
	}

	now := time.Now().UTC()
	validUntil := now.Add(ApprovalValidity)

	a.Status = StatusApproved
	a.ApprovedValue = approved
	a.ApproverID = &approverID
	a.ApprovedAt = &now
	a.ValidUntil = &validUntil
	a.ValidationToken = token
	a.UpdatedAt = now

	a.raise(AppraisalApproved{
		AppraisalID:   a.ID,
		ApproverID:    approverID,
		Plate:         a.Plate,
		ApprovedValue: approved,
		ValidUntil:    validUntil,
		ApprovedAt:    now,
	})

	if !approved.IsZero() {
		a.raise(AppraisalCompleted{
			AppraisalID:     a.ID,
			Plate:           a.Plate,
			VehicleLabel:    a.Vehicle.Label(),
			EvaluatorID:     a.EvaluatorID,
			ApproverID:      approverID,
			ApprovedValue:   approved,
			ValidationToken: token,
			ValidUntil:      validUntil,
			ApprovedAt:      now,
		})
	}
	return nil
}

// Reject records a manager rejection with a non-blank reason.
func (a *Appraisal) Reject(approverID uuid.UUID, reason string) error {
	const op = "appraisal.reject"

	if !a.Status.CanTransitionTo(StatusRejected) {
		return StatusConflict(op, a.Status)
	}
	if approverID == uuid.Nil {
		return Invalid(op, "approver is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Invalid(op, "rejection reason is required")
	}

	now := time.Now().UTC()
	a.Status = StatusRejected
	a.RejectionReason = reason
	a.ApproverID = &approverID
	a.UpdatedAt = now

	a.raise(AppraisalRejected{
		AppraisalID: a.ID,
		ApproverID:  approverID,
		Plate:       a.Plate,
		Reason:      reason,
		RejectedAt:  now,
	})
	return nil
}

// Cancel abandons an editable appraisal.
func (a *Appraisal) Cancel() error {
	const op = "appraisal.cancel"

	if !a.Status.CanTransitionTo(StatusCancelled) {
		return StatusConflict(op, a.Status)
	}
	a.Status = StatusCancelled
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// IsExpired reports whether an approved appraisal's validity deadline has
// passed. Expiry is computed on read, never written back.
func (a *Appraisal) IsExpired() bool {
	return a.Status == StatusApproved && a.ValidUntil != nil && time.Now().After(*a.ValidUntil)
}

// =============================================================================
// Domain Events
// =============================================================================

func (a *Appraisal) raise(e Event) {
	a.events = append(a.events, e)
}

// Events returns the buffered events without clearing them.
func (a *Appraisal) Events() []Event {
	out := make([]Event, len(a.events))
	copy(out, a.events)
	return out
}

// DrainEvents returns the buffered events and clears the buffer. Callers
// drain after each successful mutation; events left un-drained are returned
// again by the next drain rather than lost.
func (a *Appraisal) DrainEvents() []Event {
	out := a.events
	a.events = nil
	return out
}

// newValidationToken generates the opaque credential that allows public,
// read-only verification of an approved appraisal.
func newValidationToken() (string, error) {
	buf := make([]byte, validationTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
