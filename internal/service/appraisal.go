package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pbaptista/avalia/internal/domain"
	"github.com/pbaptista/avalia/internal/metrics"
	"github.com/pbaptista/avalia/internal/repository"
	"github.com/pbaptista/avalia/internal/storage"
	"github.com/pbaptista/avalia/internal/valuation"
	"github.com/pbaptista/avalia/internal/worker"
)

// MaxPhotoSizeBytes caps one photo upload at 10 MiB.
const MaxPhotoSizeBytes = 10 << 20

// photoURLExpiry is how long presigned photo URLs stay valid.
const photoURLExpiry = 15 * time.Minute

// =============================================================================
// Interface Definition
// =============================================================================

// AppraisalService is the application-facing contract for working with
// appraisals. Handlers depend on this interface, which keeps them mockable
// in tests.
type AppraisalService interface {
	// Create opens a new draft appraisal.
	// Returns domain.ECONFLICT when the plate already has an active appraisal.
	Create(ctx context.Context, params CreateAppraisalParams) (*domain.Appraisal, error)

	// Get loads the full aggregate.
	// Returns domain.ENOTFOUND when the appraisal does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.Appraisal, error)

	// List returns a page of appraisal headers, optionally filtered by status.
	List(ctx context.Context, params ListAppraisalsParams) (*ListAppraisalsResult, error)

	// AddPhoto stores the upload, generates a thumbnail and attaches the
	// photo to the appraisal.
	AddPhoto(ctx context.Context, params AddPhotoParams) (*domain.Photo, error)

	// RemovePhoto detaches a photo and removes its stored objects.
	RemovePhoto(ctx context.Context, appraisalID, photoID uuid.UUID) error

	// AddDeduction records a justified value reduction.
	AddDeduction(ctx context.Context, params AddDeductionParams) (*domain.Deduction, error)

	// RemoveDeduction deletes a deduction record.
	RemoveDeduction(ctx context.Context, appraisalID, deductionID uuid.UUID) error

	// UpdateChecklist attaches or replaces the inspection checklist.
	UpdateChecklist(ctx context.Context, appraisalID uuid.UUID, checklist *domain.Checklist) (*domain.Appraisal, error)

	// SetObservations replaces the free-text observations.
	SetObservations(ctx context.Context, appraisalID uuid.UUID, text string) error

	// RunValuation executes the pricing pipeline and stores the resulting
	// figures on the appraisal.
	RunValuation(ctx context.Context, appraisalID uuid.UUID, opts valuation.Options) (*valuation.Result, error)

	// Submit moves an editable appraisal into pending approval.
	Submit(ctx context.Context, appraisalID uuid.UUID) error

	// Approve records an approval decision, optionally with an adjusted value.
	Approve(ctx context.Context, params ApproveParams) (*domain.Appraisal, error)

	// Reject records a rejection with a reason.
	Reject(ctx context.Context, params RejectParams) error

	// Cancel abandons an editable appraisal.
	Cancel(ctx context.Context, appraisalID uuid.UUID) error

	// VerifyByToken resolves an approval certificate by validation token.
	// Returns domain.ENOTFOUND for unknown tokens and domain.EGONE for
	// expired certificates.
	VerifyByToken(ctx context.Context, token string) (*domain.Appraisal, error)
}

// =============================================================================
// Parameter Types
// =============================================================================

// CreateAppraisalParams describes a new appraisal.
type CreateAppraisalParams struct {
	Brand           string
	Model           string
	Version         string
	ManufactureYear int
	ModelYear       int
	Color           string
	Fuel            domain.FuelKind
	Plate           string
	Mileage         decimal.Decimal
	Currency        string // Defaults to BRL
	EvaluatorID     uuid.UUID
	Observations    string
}

// ListAppraisalsParams filters and pages the listing.
type ListAppraisalsParams struct {
	Status string // Empty means all statuses
	Limit  int32
	Offset int32
}

// ListAppraisalsResult is one page of appraisal headers.
type ListAppraisalsResult struct {
	Appraisals []domain.Appraisal
	Total      int64
	Limit      int32
	Offset     int32
}

// AddPhotoParams describes one photo upload.
type AddPhotoParams struct {
	AppraisalID uuid.UUID
	Type        domain.PhotoType
	Filename    string
	ContentType string
	Data        io.Reader
}

// AddDeductionParams describes one deduction record.
type AddDeductionParams struct {
	AppraisalID   uuid.UUID
	Category      domain.DeductionCategory
	Description   string
	Value         domain.Money
	Justification string
	CreatedBy     uuid.UUID
}

// ApproveParams describes an approval decision.
type ApproveParams struct {
	AppraisalID   uuid.UUID
	ApproverID    uuid.UUID
	AdjustedValue *domain.Money // nil approves the calculated final value
}

// RejectParams describes a rejection decision.
type RejectParams struct {
	AppraisalID uuid.UUID
	ApproverID  uuid.UUID
	Reason      string
}

// =============================================================================
// Implementation
// =============================================================================

type appraisalService struct {
	db         *sql.DB
	queries    *repository.Queries
	store      storage.Storage
	thumbnails ThumbnailProcessor
	valuation  *valuation.Service
	logger     *slog.Logger
}

// NewAppraisalService wires the service with its collaborators.
func NewAppraisalService(
	db *sql.DB,
	queries *repository.Queries,
	store storage.Storage,
	thumbnails ThumbnailProcessor,
	valuationService *valuation.Service,
	logger *slog.Logger,
) AppraisalService {
	return &appraisalService{
		db:         db,
		queries:    queries,
		store:      store,
		thumbnails: thumbnails,
		valuation:  valuationService,
		logger:     logger,
	}
}

// =============================================================================
// Create / Get / List
// =============================================================================

func (s *appraisalService) Create(ctx context.Context, params CreateAppraisalParams) (*domain.Appraisal, error) {
	const op = "appraisal.create"

	vehicle, err := domain.NewVehicle(
		params.Brand, params.Model, params.Version,
		params.ManufactureYear, params.ModelYear,
		params.Color, params.Fuel,
	)
	if err != nil {
		return nil, err
	}

	appraisal, err := domain.NewAppraisal(domain.NewAppraisalParams{
		Vehicle:      vehicle,
		Plate:        params.Plate,
		Mileage:      params.Mileage,
		Currency:     params.Currency,
		EvaluatorID:  params.EvaluatorID,
		Observations: params.Observations,
	})
	if err != nil {
		return nil, err
	}

	// Early check for a friendlier error; the partial unique index still
	// closes the race between concurrent creates.
	exists, err := s.queries.ActiveAppraisalExistsForPlate(ctx, appraisal.Plate)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to check plate")
	}
	if exists {
		return nil, domain.Errorf(domain.ECONFLICT, op,
			"an active appraisal already exists for plate %s", appraisal.Plate)
	}

	if err := s.save(ctx, op, appraisal, true); err != nil {
		return nil, err
	}

	s.logger.Info("appraisal created",
		"appraisal_id", appraisal.ID,
		"plate", appraisal.Plate,
		"vehicle", vehicle.Label(),
		"evaluator_id", params.EvaluatorID,
	)
	metrics.AppraisalsCreated.Inc()

	return appraisal, nil
}

func (s *appraisalService) Get(ctx context.Context, id uuid.UUID) (*domain.Appraisal, error) {
	const op = "appraisal.get"

	appraisal, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}

	s.populatePhotoURLs(ctx, appraisal)
	return appraisal, nil
}

func (s *appraisalService) List(ctx context.Context, params ListAppraisalsParams) (*ListAppraisalsResult, error) {
	const op = "appraisal.list"

	if params.Status != "" && !domain.Status(params.Status).IsValid() {
		return nil, domain.Invalid(op, fmt.Sprintf("unknown status %q", params.Status))
	}
	if params.Limit <= 0 {
		params.Limit = 20
	}
	if params.Limit > 100 {
		params.Limit = 100
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	appraisals, total, err := s.queries.ListAppraisals(ctx, repository.ListAppraisalsParams{
		Status: params.Status,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list appraisals")
	}

	return &ListAppraisalsResult{
		Appraisals: appraisals,
		Total:      total,
		Limit:      params.Limit,
		Offset:     params.Offset,
	}, nil
}

// =============================================================================
// Photos
// =============================================================================

func (s *appraisalService) AddPhoto(ctx context.Context, params AddPhotoParams) (*domain.Photo, error) {
	const op = "appraisal.add_photo"

	appraisal, err := s.load(ctx, op, params.AppraisalID)
	if err != nil {
		return nil, err
	}

	// Buffer the upload so it can feed both storage and the thumbnailer.
	data, err := io.ReadAll(io.LimitReader(params.Data, MaxPhotoSizeBytes+1))
	if err != nil {
		return nil, domain.Internal(err, op, "failed to read upload")
	}
	if int64(len(data)) > MaxPhotoSizeBytes {
		return nil, domain.Invalid(op, fmt.Sprintf("photo exceeds maximum size of %d bytes", int64(MaxPhotoSizeBytes)))
	}
	if len(data) == 0 {
		return nil, domain.Invalid(op, "photo data is empty")
	}

	contentType := storage.DetectContentType(params.ContentType, params.Filename, bytes.NewReader(data))
	if !storage.IsAllowedPhotoType(contentType) {
		return nil, domain.Invalid(op, fmt.Sprintf("content type %s is not an accepted photo format", contentType))
	}

	storageKey := storage.PhotoKey(appraisal.ID, params.Filename)
	if err := s.store.Put(ctx, storageKey, bytes.NewReader(data), storage.PutOptions{
		ContentType: contentType,
		MaxSize:     MaxPhotoSizeBytes,
	}); err != nil {
		return nil, domain.Internal(err, op, "failed to store photo")
	}

	// A thumbnail failure never blocks the upload.
	thumbnailKey := ""
	thumb, _, _, err := s.thumbnails.GenerateThumbnail(bytes.NewReader(data), thumbnailMaxWidth, thumbnailMaxHeight)
	if err != nil {
		s.logger.Warn("thumbnail generation failed",
			"appraisal_id", appraisal.ID,
			"error", err,
		)
	} else {
		thumbnailKey = storage.ThumbnailKey(appraisal.ID, "thumbnail.jpg")
		if err := s.store.Put(ctx, thumbnailKey, bytes.NewReader(thumb), storage.PutOptions{
			ContentType: "image/jpeg",
		}); err != nil {
			s.logger.Warn("failed to store thumbnail",
				"appraisal_id", appraisal.ID,
				"error", err,
			)
			thumbnailKey = ""
		}
	}

	photo := domain.Photo{
		ID:           uuid.New(),
		AppraisalID:  appraisal.ID,
		Type:         params.Type,
		StorageKey:   storageKey,
		ThumbnailKey: thumbnailKey,
		ContentType:  contentType,
		SizeBytes:    int64(len(data)),
		CreatedAt:    time.Now().UTC(),
	}

	if err := appraisal.AddPhoto(photo); err != nil {
		s.deleteObjects(ctx, storageKey, thumbnailKey)
		return nil, err
	}
	if err := s.save(ctx, op, appraisal, false); err != nil {
		s.deleteObjects(ctx, storageKey, thumbnailKey)
		return nil, err
	}

	if url, err := s.store.URL(ctx, storageKey, photoURLExpiry); err == nil {
		photo.URL = url
	}

	s.logger.Info("photo added",
		"appraisal_id", appraisal.ID,
		"photo_id", photo.ID,
		"photo_type", photo.Type,
		"size_bytes", photo.SizeBytes,
	)
	metrics.PhotosUploaded.WithLabelValues(photo.Type.String()).Inc()

	return &photo, nil
}

func (s *appraisalService) RemovePhoto(ctx context.Context, appraisalID, photoID uuid.UUID) error {
	const op = "appraisal.remove_photo"

	appraisal, err := s.load(ctx, op, appraisalID)
	if err != nil {
		return err
	}

	// Capture storage keys before the aggregate forgets them.
	var storageKey, thumbnailKey string
	for _, p := range appraisal.Photos {
		if p.ID == photoID {
			storageKey = p.StorageKey
			thumbnailKey = p.ThumbnailKey
			break
		}
	}

	if err := appraisal.RemovePhoto(photoID); err != nil {
		return err
	}
	if err := s.save(ctx, op, appraisal, false); err != nil {
		return err
	}

	// Object cleanup happens after commit; a failed delete only leaks an
	// orphan object, never database state.
	s.deleteObjects(ctx, storageKey, thumbnailKey)

	s.logger.Info("photo removed", "appraisal_id", appraisalID, "photo_id", photoID)
	return nil
}

// deleteObjects best-effort removes stored objects, logging failures.
func (s *appraisalService) deleteObjects(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to delete stored object", "key", key, "error", err)
		}
	}
}

// =============================================================================
// Deductions
// =============================================================================

func (s *appraisalService) AddDeduction(ctx context.Context, params AddDeductionParams) (*domain.Deduction, error) {
	const op = "appraisal.add_deduction"

	appraisal, err := s.load(ctx, op, params.AppraisalID)
	if err != nil {
		return nil, err
	}

	deduction, err := domain.NewDeduction(domain.NewDeductionParams{
		AppraisalID:   appraisal.ID,
		Category:      params.Category,
		Description:   params.Description,
		Value:         params.Value,
		Justification: params.Justification,
		CreatedBy:     params.CreatedBy,
	})
	if err != nil {
		return nil, err
	}

	if err := appraisal.AddDeduction(deduction); err != nil {
		return nil, err
	}
	if err := s.save(ctx, op, appraisal, false); err != nil {
		return nil, err
	}

	s.logger.Info("deduction added",
		"appraisal_id", appraisal.ID,
		"deduction_id", deduction.ID,
		"category", deduction.Category,
		"value", deduction.Value.String(),
	)
	return deduction, nil
}

func (s *appraisalService) RemoveDeduction(ctx context.Context, appraisalID, deductionID uuid.UUID) error {
	const op = "appraisal.remove_deduction"

	appraisal, err := s.load(ctx, op, appraisalID)
	if err != nil {
		return err
	}
	if err := appraisal.RemoveDeduction(deductionID); err != nil {
		return err
	}
	if err := s.save(ctx, op, appraisal, false); err != nil {
		return err
	}

	s.logger.Info("deduction removed", "appraisal_id", appraisalID, "deduction_id", deductionID)
	return nil
}

// =============================================================================
// Checklist & Observations
// =============================================================================

func (s *appraisalService) UpdateChecklist(ctx context.Context, appraisalID uuid.UUID, checklist *domain.Checklist) (*domain.Appraisal, error) {
	const op = "appraisal.update_checklist"

	appraisal, err := s.load(ctx, op, appraisalID)
	if err != nil {
		return nil, err
	}
	if err := appraisal.SetChecklist(checklist); err != nil {
		return nil, err
	}
	if err := s.save(ctx, op, appraisal, false); err != nil {
		return nil, err
	}

	s.logger.Info("checklist updated",
		"appraisal_id", appraisalID,
		"complete", checklist.IsComplete(),
		"score", checklist.Score(),
	)
	return appraisal, nil
}

func (s *appraisalService) SetObservations(ctx context.Context, appraisalID uuid.UUID, text string) error {
	const op = "appraisal.set_observations"

	appraisal, err := s.load(ctx, op, appraisalID)
	if err != nil {
		return err
	}
	if err := appraisal.SetObservations(text); err != nil {
		return err
	}
	return s.save(ctx, op, appraisal, false)
}

// =============================================================================
// Valuation
// =============================================================================

func (s *appraisalService) RunValuation(ctx context.Context, appraisalID uuid.UUID, opts valuation.Options) (*valuation.Result, error) {
	const op = "appraisal.run_valuation"

	appraisal, err := s.load(ctx, op, appraisalID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.valuation.Appraise(ctx, appraisal, opts)
	metrics.ValuationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ValuationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.ValuationsTotal.WithLabelValues("ok").Inc()

	if err := appraisal.SetValuation(result.ReferencePrice, result.BaseValue, result.FinalValue); err != nil {
		return nil, err
	}
	if err := s.save(ctx, op, appraisal, false); err != nil {
		return nil, err
	}

	s.logger.Info("valuation stored",
		"appraisal_id", appraisalID,
		"reference_price", result.ReferencePrice.String(),
		"final_value", result.FinalValue.String(),
		"requires_senior_approval", result.RequiresSeniorApproval,
	)
	return result, nil
}

// =============================================================================
// Lifecycle Transitions
// =============================================================================

func (s *appraisalService) Submit(ctx context.Context, appraisalID uuid.UUID) error {
	const op = "appraisal.submit"

	appraisal, err := s.load(ctx, op, appraisalID)
	if err != nil {
		return err
	}
	if err := appraisal.SubmitForApproval(); err != nil {
		return err
	}
	if err := s.save(ctx, op, appraisal, false); err != nil {
		return err
	}

	s.logger.Info("appraisal submitted", "appraisal_id", appraisalID, "plate", appraisal.Plate)
	metrics.AppraisalsSubmitted.Inc()
	return nil
}

func (s *appraisalService) Approve(ctx context.Context, params ApproveParams) (*domain.Appraisal, error) {
	const op = "appraisal.approve"

	appraisal, err := s.load(ctx, op, params.AppraisalID)
	if err != nil {
		return nil, err
	}
	if err := appraisal.Approve(params.ApproverID, params.AdjustedValue); err != nil {
		return nil, err
	}
	if err := s.save(ctx, op, appraisal, false); err != nil {
		return nil, err
	}

	s.logger.Info("appraisal approved",
		"appraisal_id", appraisal.ID,
		"approver_id", params.ApproverID,
		"approved_value", appraisal.ApprovedValue.String(),
		"valid_until", appraisal.ValidUntil,
	)
	metrics.AppraisalDecisions.WithLabelValues("approved").Inc()
	return appraisal, nil
}

func (s *appraisalService) Reject(ctx context.Context, params RejectParams) error {
	const op = "appraisal.reject"

	appraisal, err := s.load(ctx, op, params.AppraisalID)
	if err != nil {
		return err
	}
	if err := appraisal.Reject(params.ApproverID, params.Reason); err != nil {
		return err
	}
	if err := s.save(ctx, op, appraisal, false); err != nil {
		return err
	}

	s.logger.Info("appraisal rejected",
		"appraisal_id", appraisal.ID,
		"approver_id", params.ApproverID,
	)
	metrics.AppraisalDecisions.WithLabelValues("rejected").Inc()
	return nil
}

func (s *appraisalService) Cancel(ctx context.Context, appraisalID uuid.UUID) error {
	const op = "appraisal.cancel"

	appraisal, err := s.load(ctx, op, appraisalID)
	if err != nil {
		return err
	}
	if err := appraisal.Cancel(); err != nil {
		return err
	}
	if err := s.save(ctx, op, appraisal, false); err != nil {
		return err
	}

	s.logger.Info("appraisal cancelled", "appraisal_id", appraisalID)
	return nil
}

// =============================================================================
// Verification
// =============================================================================

func (s *appraisalService) VerifyByToken(ctx context.Context, token string) (*domain.Appraisal, error) {
	const op = "appraisal.verify"

	if token == "" {
		return nil, domain.Invalid(op, "validation token is required")
	}

	appraisal, err := s.queries.GetAppraisalByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Do not leak whether the token ever existed.
			return nil, domain.Errorf(domain.ENOTFOUND, op, "no appraisal matches this validation token")
		}
		return nil, domain.Internal(err, op, "failed to resolve validation token")
	}

	if appraisal.IsExpired() {
		return nil, domain.Gone(op, "the approval certificate has expired")
	}

	s.populatePhotoURLs(ctx, appraisal)
	return appraisal, nil
}

// =============================================================================
// Internal Helpers
// =============================================================================

// load fetches the aggregate, translating missing rows to ENOTFOUND.
func (s *appraisalService) load(ctx context.Context, op string, id uuid.UUID) (*domain.Appraisal, error) {
	appraisal, err := s.queries.GetAppraisal(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "appraisal", id.String())
		}
		return nil, domain.Internal(err, op, "failed to load appraisal")
	}
	return appraisal, nil
}

// save persists the aggregate and enqueues delivery of its drained events
// inside one transaction. The outbox row commits with the state change or
// not at all.
func (s *appraisalService) save(ctx context.Context, op string, a *domain.Appraisal, insert bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	if insert {
		err = qtx.StoreAppraisal(ctx, a)
	} else {
		err = qtx.UpdateAppraisal(ctx, a)
	}
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrActivePlateExists):
			return domain.Errorf(domain.ECONFLICT, op,
				"an active appraisal already exists for plate %s", a.Plate)
		case errors.Is(err, repository.ErrVersionConflict):
			return domain.Errorf(domain.ECONFLICT, op,
				"appraisal was modified concurrently, reload and retry")
		}
		return domain.Internal(err, op, "failed to persist appraisal")
	}

	for _, event := range a.DrainEvents() {
		if _, err := worker.EnqueueDeliverEvent(ctx, qtx, a.ID, event.Name(), event); err != nil {
			return domain.Internal(err, op, "failed to enqueue event delivery")
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Internal(err, op, "failed to commit")
	}
	return nil
}

// populatePhotoURLs resolves viewing URLs for the aggregate's photos.
// URL failures degrade to an empty URL rather than failing the read.
func (s *appraisalService) populatePhotoURLs(ctx context.Context, a *domain.Appraisal) {
	for i := range a.Photos {
		url, err := s.store.URL(ctx, a.Photos[i].StorageKey, photoURLExpiry)
		if err != nil {
			s.logger.Debug("failed to resolve photo URL",
				"photo_id", a.Photos[i].ID,
				"error", err,
			)
			continue
		}
		a.Photos[i].URL = url
	}
}
