package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVehicle(t *testing.T) Vehicle {
	t.Helper()
	v, err := NewVehicle("Fiat", "Argo", "Drive 1.0", 2021, 2022, "White", FuelFlex)
	require.NoError(t, err)
	return v
}

func testAppraisal(t *testing.T) *Appraisal {
	t.Helper()
	a, err := NewAppraisal(NewAppraisalParams{
		Vehicle:     testVehicle(t),
		Plate:       "abc1d23",
		Mileage:     decimal.NewFromInt(45000),
		EvaluatorID: uuid.New(),
	})
	require.NoError(t, err)
	return a
}

func testPhoto(a *Appraisal, photoType PhotoType) Photo {
	return Photo{
		ID:          uuid.New(),
		AppraisalID: a.ID,
		Type:        photoType,
		StorageKey:  "appraisals/" + a.ID.String() + "/photos/" + string(photoType) + ".jpg",
		ContentType: "image/jpeg",
		CreatedAt:   time.Now().UTC(),
	}
}

// readyForSubmission drives an appraisal through photo, checklist and
// valuation so that SubmitForApproval succeeds.
func readyForSubmission(t *testing.T, a *Appraisal) {
	t.Helper()
	require.NoError(t, a.AddPhoto(testPhoto(a, PhotoFront)))
	require.NoError(t, a.SetChecklist(benignChecklist()))
	require.NoError(t, a.SetValuation(
		MustMoney("100000.00", "BRL"),
		MustMoney("85000.00", "BRL"),
		MustMoney("63750.00", "BRL"),
	))
}

func TestNewAppraisal(t *testing.T) {
	tests := []struct {
		name    string
		params  NewAppraisalParams
		wantErr bool
	}{
		{
			name: "valid",
			params: NewAppraisalParams{
				Vehicle:     Vehicle{Brand: "Fiat", Model: "Argo"},
				Plate:       " abc1d23 ",
				Mileage:     decimal.NewFromInt(1000),
				EvaluatorID: uuid.New(),
			},
		},
		{
			name: "blank plate",
			params: NewAppraisalParams{
				Plate:       "  ",
				EvaluatorID: uuid.New(),
			},
			wantErr: true,
		},
		{
			name: "negative mileage",
			params: NewAppraisalParams{
				Plate:       "abc1d23",
				Mileage:     decimal.NewFromInt(-1),
				EvaluatorID: uuid.New(),
			},
			wantErr: true,
		},
		{
			name: "missing evaluator",
			params: NewAppraisalParams{
				Plate: "abc1d23",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAppraisal(tt.params)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, EINVALID, ErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusDraft, a.Status)
			assert.Equal(t, "ABC1D23", a.Plate, "plate is normalized to upper case")
			assert.Equal(t, "BRL", a.Currency, "currency defaults to BRL")
			assert.True(t, a.FinalValue.IsZero())
		})
	}
}

func TestStatusTransitionTable(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusDraft, StatusInProgress, true},
		{StatusDraft, StatusPendingApproval, true},
		{StatusDraft, StatusCancelled, true},
		{StatusDraft, StatusApproved, false},
		{StatusInProgress, StatusPendingApproval, true},
		{StatusInProgress, StatusCancelled, true},
		{StatusInProgress, StatusApproved, false},
		{StatusPendingApproval, StatusApproved, true},
		{StatusPendingApproval, StatusRejected, true},
		{StatusPendingApproval, StatusCancelled, false},
		{StatusApproved, StatusPendingApproval, false},
		{StatusRejected, StatusDraft, false},
		{StatusCancelled, StatusInProgress, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestSubmitForApprovalPreconditions(t *testing.T) {
	a := testAppraisal(t)

	// No photos yet.
	err := a.SubmitForApproval()
	assert.Equal(t, EPRECONDITION, ErrorCode(err))

	// One photo, but checklist still missing.
	require.NoError(t, a.AddPhoto(testPhoto(a, PhotoFront)))
	err = a.SubmitForApproval()
	assert.Equal(t, EPRECONDITION, ErrorCode(err))

	// Incomplete checklist.
	incomplete := benignChecklist()
	incomplete.DashboardCondition = ""
	require.NoError(t, a.SetChecklist(incomplete))
	err = a.SubmitForApproval()
	assert.Equal(t, EPRECONDITION, ErrorCode(err))

	// Complete checklist, but final value still zero.
	require.NoError(t, a.SetChecklist(benignChecklist()))
	err = a.SubmitForApproval()
	assert.Equal(t, EPRECONDITION, ErrorCode(err))

	// All preconditions met.
	require.NoError(t, a.SetValuation(
		MustMoney("100000.00", "BRL"),
		MustMoney("85000.00", "BRL"),
		MustMoney("63750.00", "BRL"),
	))
	require.NoError(t, a.SubmitForApproval())

	assert.Equal(t, StatusPendingApproval, a.Status)
	require.NotNil(t, a.SubmittedAt)

	events := a.DrainEvents()
	require.Len(t, events, 1)
	submitted, ok := events[0].(AppraisalSubmitted)
	require.True(t, ok)
	assert.Equal(t, a.ID, submitted.AppraisalID)
	assert.True(t, submitted.FinalValue.Equal(a.FinalValue))
}

func TestMutationGuard(t *testing.T) {
	a := testAppraisal(t)
	readyForSubmission(t, a)
	require.NoError(t, a.SubmitForApproval())

	// Every mutator must fail with a status conflict once submitted.
	assert.Equal(t, ECONFLICT, ErrorCode(a.AddPhoto(testPhoto(a, PhotoRear))))
	assert.Equal(t, ECONFLICT, ErrorCode(a.RemovePhoto(a.Photos[0].ID)))
	assert.Equal(t, ECONFLICT, ErrorCode(a.SetChecklist(benignChecklist())))
	assert.Equal(t, ECONFLICT, ErrorCode(a.SetObservations("late note")))
	assert.Equal(t, ECONFLICT, ErrorCode(a.SetValuation(
		MustMoney("1.00", "BRL"), MustMoney("1.00", "BRL"), MustMoney("1.00", "BRL"),
	)))
	d, err := NewDeduction(NewDeductionParams{
		AppraisalID: a.ID,
		Category:    DeductionBody,
		Description: "scratch",
		Value:       MustMoney("100.00", "BRL"),
		CreatedBy:   a.EvaluatorID,
	})
	require.NoError(t, err)
	assert.Equal(t, ECONFLICT, ErrorCode(a.AddDeduction(d)))
	assert.Equal(t, ECONFLICT, ErrorCode(a.Cancel()))
}

func TestApprove(t *testing.T) {
	a := testAppraisal(t)
	readyForSubmission(t, a)
	require.NoError(t, a.SubmitForApproval())
	a.DrainEvents()

	approverID := uuid.New()
	require.NoError(t, a.Approve(approverID, nil))

	assert.Equal(t, StatusApproved, a.Status)
	assert.True(t, a.ApprovedValue.Equal(a.FinalValue), "approved value defaults to final value")
	require.NotNil(t, a.ApprovedAt)
	require.NotNil(t, a.ValidUntil)
	assert.Equal(t, a.ApprovedAt.Add(72*time.Hour), *a.ValidUntil)
	assert.Len(t, a.ValidationToken, 64)
	assert.False(t, a.IsExpired())

	events := a.DrainEvents()
	require.Len(t, events, 2)
	approved, ok := events[0].(AppraisalApproved)
	require.True(t, ok)
	assert.Equal(t, approverID, approved.ApproverID)
	completed, ok := events[1].(AppraisalCompleted)
	require.True(t, ok)
	assert.Equal(t, a.ValidationToken, completed.ValidationToken)
	assert.True(t, completed.ApprovedValue.Equal(a.ApprovedValue))
}

func TestApproveWithAdjustedValue(t *testing.T) {
	a := testAppraisal(t)
	readyForSubmission(t, a)
	require.NoError(t, a.SubmitForApproval())

	adjusted := MustMoney("60000.00", "BRL")
	require.NoError(t, a.Approve(uuid.New(), &adjusted))
	assert.True(t, a.ApprovedValue.Equal(adjusted))
}

func TestApproveStatusConflict(t *testing.T) {
	a := testAppraisal(t)
	err := a.Approve(uuid.New(), nil)
	assert.Equal(t, ECONFLICT, ErrorCode(err))
}

func TestIsExpired(t *testing.T) {
	a := testAppraisal(t)
	readyForSubmission(t, a)
	require.NoError(t, a.SubmitForApproval())
	require.NoError(t, a.Approve(uuid.New(), nil))

	assert.False(t, a.IsExpired())

	past := time.Now().Add(-time.Minute)
	a.ValidUntil = &past
	assert.True(t, a.IsExpired())

	// Only approved appraisals expire.
	a.Status = StatusRejected
	assert.False(t, a.IsExpired())
}

func TestReject(t *testing.T) {
	a := testAppraisal(t)
	readyForSubmission(t, a)
	require.NoError(t, a.SubmitForApproval())
	a.DrainEvents()

	err := a.Reject(uuid.New(), "   ")
	assert.Equal(t, EINVALID, ErrorCode(err))
	assert.Equal(t, StatusPendingApproval, a.Status)

	approverID := uuid.New()
	require.NoError(t, a.Reject(approverID, "odometer reading inconsistent with service records"))
	assert.Equal(t, StatusRejected, a.Status)
	assert.Equal(t, "odometer reading inconsistent with service records", a.RejectionReason)

	events := a.DrainEvents()
	require.Len(t, events, 1)
	rejected, ok := events[0].(AppraisalRejected)
	require.True(t, ok)
	assert.Equal(t, approverID, rejected.ApproverID)
	assert.Equal(t, a.RejectionReason, rejected.Reason)
}

func TestCancel(t *testing.T) {
	a := testAppraisal(t)
	require.NoError(t, a.Cancel())
	assert.Equal(t, StatusCancelled, a.Status)

	// Terminal: nothing else is allowed.
	assert.Equal(t, ECONFLICT, ErrorCode(a.Cancel()))
	assert.Equal(t, ECONFLICT, ErrorCode(a.SubmitForApproval()))
}

func TestAddPhotoOnePerType(t *testing.T) {
	a := testAppraisal(t)
	require.NoError(t, a.AddPhoto(testPhoto(a, PhotoFront)))
	assert.Equal(t, StatusInProgress, a.Status, "first mutation starts evidence collection")

	err := a.AddPhoto(testPhoto(a, PhotoFront))
	assert.Equal(t, EINVALID, ErrorCode(err))

	require.NoError(t, a.AddPhoto(testPhoto(a, PhotoRear)))
	assert.Len(t, a.Photos, 2)

	// A photo owned by another appraisal is rejected.
	other := testPhoto(a, PhotoInterior)
	other.AppraisalID = uuid.New()
	err = a.AddPhoto(other)
	assert.Equal(t, EINVALID, ErrorCode(err))
}

func TestTotalDepreciation(t *testing.T) {
	a := testAppraisal(t)
	assert.True(t, a.TotalDepreciation().IsZero())

	d1, err := NewDeduction(NewDeductionParams{
		AppraisalID: a.ID,
		Category:    DeductionPaint,
		Description: "door repaint",
		Value:       MustMoney("850.00", "BRL"),
		CreatedBy:   a.EvaluatorID,
	})
	require.NoError(t, err)
	require.NoError(t, a.AddDeduction(d1))
	assert.Equal(t, "850.00 BRL", a.TotalDepreciation().String())

	d2, err := NewDeduction(NewDeductionParams{
		AppraisalID: a.ID,
		Category:    DeductionTires,
		Description: "two tires at wear limit",
		Value:       MustMoney("1200.00", "BRL"),
		CreatedBy:   a.EvaluatorID,
	})
	require.NoError(t, err)
	require.NoError(t, a.AddDeduction(d2))
	assert.Equal(t, "2050.00 BRL", a.TotalDepreciation().String())

	require.NoError(t, a.RemoveDeduction(d1.ID))
	assert.Equal(t, "1200.00 BRL", a.TotalDepreciation().String())
}

func TestDeductionValidation(t *testing.T) {
	a := testAppraisal(t)

	_, err := NewDeduction(NewDeductionParams{
		AppraisalID: a.ID,
		Category:    "cosmic",
		Description: "x",
		Value:       MustMoney("1.00", "BRL"),
	})
	assert.Equal(t, EINVALID, ErrorCode(err))

	_, err = NewDeduction(NewDeductionParams{
		AppraisalID: a.ID,
		Category:    DeductionBody,
		Description: "  ",
		Value:       MustMoney("1.00", "BRL"),
	})
	assert.Equal(t, EINVALID, ErrorCode(err))

	_, err = NewDeduction(NewDeductionParams{
		AppraisalID: a.ID,
		Category:    DeductionBody,
		Description: "dent",
		Value:       MustMoney("0.00", "BRL"),
	})
	assert.Equal(t, EINVALID, ErrorCode(err))

	_, err = NewDeduction(NewDeductionParams{
		AppraisalID: a.ID,
		Category:    DeductionBody,
		Description: "dent",
		Value:       MustMoney("-10.00", "BRL"),
	})
	assert.Equal(t, EINVALID, ErrorCode(err))
}

func TestEventDraining(t *testing.T) {
	a := testAppraisal(t)
	readyForSubmission(t, a)
	require.NoError(t, a.SubmitForApproval())

	// Events() peeks without clearing; an un-drained event is delivered
	// again by the next drain.
	assert.Len(t, a.Events(), 1)
	assert.Len(t, a.Events(), 1)

	drained := a.DrainEvents()
	assert.Len(t, drained, 1)
	assert.Empty(t, a.DrainEvents())
	assert.Empty(t, a.Events())
}
