package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pbaptista/avalia/internal/domain"
)

const appraisalColumns = `
	id, plate, brand, model, version_name, manufacture_year, model_year,
	color, fuel, mileage, currency, status,
	reference_price, base_value, final_value, approved_value,
	observations, rejection_reason, evaluator_id, approver_id,
	created_at, updated_at, submitted_at, approved_at,
	valid_until, validation_token, lock_version`

// StoreAppraisal inserts a new aggregate with its sub-collections.
// Returns ErrActivePlateExists when another active appraisal holds the plate.
func (q *Queries) StoreAppraisal(ctx context.Context, a *domain.Appraisal) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO appraisals (
			id, plate, brand, model, version_name, manufacture_year, model_year,
			color, fuel, mileage, currency, status,
			reference_price, base_value, final_value, approved_value,
			observations, rejection_reason, evaluator_id, approver_id,
			created_at, updated_at, submitted_at, approved_at,
			valid_until, validation_token, lock_version
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27
		)`,
		a.ID, a.Plate,
		a.Vehicle.Brand, a.Vehicle.Model, a.Vehicle.Version,
		a.Vehicle.ManufactureYear, a.Vehicle.ModelYear,
		a.Vehicle.Color, string(a.Vehicle.Fuel),
		a.Mileage.StringFixed(2), a.Currency, string(a.Status),
		a.ReferencePrice.Amount.StringFixed(2),
		a.BaseValue.Amount.StringFixed(2),
		a.FinalValue.Amount.StringFixed(2),
		a.ApprovedValue.Amount.StringFixed(2),
		a.Observations, a.RejectionReason,
		a.EvaluatorID, nullUUID(a.ApproverID),
		a.CreatedAt, a.UpdatedAt, nullTime(a.SubmittedAt), nullTime(a.ApprovedAt),
		nullTime(a.ValidUntil), a.ValidationToken, 1,
	)
	if err != nil {
		if isUniqueViolation(err, "appraisals_active_plate_idx") {
			return ErrActivePlateExists
		}
		return fmt.Errorf("insert appraisal: %w", err)
	}
	a.Version = 1

	if err := q.replaceSubCollections(ctx, a); err != nil {
		return err
	}
	return nil
}

// UpdateAppraisal writes the aggregate back under its optimistic lock.
// Returns ErrVersionConflict when the row changed since it was loaded.
func (q *Queries) UpdateAppraisal(ctx context.Context, a *domain.Appraisal) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE appraisals SET
			plate = $1, status = $2, mileage = $3,
			reference_price = $4, base_value = $5, final_value = $6, approved_value = $7,
			observations = $8, rejection_reason = $9, approver_id = $10,
			updated_at = $11, submitted_at = $12, approved_at = $13,
			valid_until = $14, validation_token = $15,
			lock_version = lock_version + 1
		WHERE id = $16 AND lock_version = $17`,
		a.Plate, string(a.Status), a.Mileage.StringFixed(2),
		a.ReferencePrice.Amount.StringFixed(2),
		a.BaseValue.Amount.StringFixed(2),
		a.FinalValue.Amount.StringFixed(2),
		a.ApprovedValue.Amount.StringFixed(2),
		a.Observations, a.RejectionReason, nullUUID(a.ApproverID),
		a.UpdatedAt, nullTime(a.SubmittedAt), nullTime(a.ApprovedAt),
		nullTime(a.ValidUntil), a.ValidationToken,
		a.ID, a.Version,
	)
	if err != nil {
		return fmt.Errorf("update appraisal: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update appraisal: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	a.Version++

	if err := q.replaceSubCollections(ctx, a); err != nil {
		return err
	}
	return nil
}

// replaceSubCollections rewrites the owned photo, deduction and checklist
// rows from the aggregate's in-memory state. Callers run inside the same
// transaction as the appraisal row write.
func (q *Queries) replaceSubCollections(ctx context.Context, a *domain.Appraisal) error {
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM appraisal_photos WHERE appraisal_id = $1`, a.ID); err != nil {
		return fmt.Errorf("clear photos: %w", err)
	}
	for _, p := range a.Photos {
		if _, err := q.db.ExecContext(ctx, `
			INSERT INTO appraisal_photos (
				id, appraisal_id, photo_type, storage_key, thumbnail_key,
				content_type, size_bytes, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.ID, p.AppraisalID, string(p.Type), p.StorageKey, p.ThumbnailKey,
			p.ContentType, p.SizeBytes, p.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert photo: %w", err)
		}
	}

	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM appraisal_deductions WHERE appraisal_id = $1`, a.ID); err != nil {
		return fmt.Errorf("clear deductions: %w", err)
	}
	for _, d := range a.Deductions {
		if _, err := q.db.ExecContext(ctx, `
			INSERT INTO appraisal_deductions (
				id, appraisal_id, category, description, value,
				justification, created_by, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			d.ID, d.AppraisalID, string(d.Category), d.Description,
			d.Value.Amount.StringFixed(2), d.Justification, d.CreatedBy, d.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert deduction: %w", err)
		}
	}

	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM appraisal_checklists WHERE appraisal_id = $1`, a.ID); err != nil {
		return fmt.Errorf("clear checklist: %w", err)
	}
	if c := a.Checklist; c != nil {
		if _, err := q.db.ExecContext(ctx, `
			INSERT INTO appraisal_checklists (
				id, appraisal_id,
				body_condition, paint_condition, has_rust, has_deep_scratches,
				has_large_dents, has_heavy_bodywork, repainted_panels, repaired_panels,
				engine_condition, transmission_condition, brakes_condition,
				suspension_condition, electronics_condition,
				has_oil_leak, has_coolant_leak, has_worn_belts,
				tires_condition, has_uneven_wear, has_low_tread,
				upholstery_condition, dashboard_condition, has_seat_damage, has_trim_damage,
				has_registration_document, has_owner_manual, has_spare_key,
				has_maintenance_records, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
				$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28,
				$29, $30, $31
			)`,
			c.ID, c.AppraisalID,
			string(c.BodyCondition), string(c.PaintCondition), c.HasRust, c.HasDeepScratches,
			c.HasLargeDents, c.HasHeavyBodywork, c.RepaintedPanels, c.RepairedPanels,
			string(c.EngineCondition), string(c.TransmissionCondition), string(c.BrakesCondition),
			string(c.SuspensionCondition), string(c.ElectronicsCondition),
			c.HasOilLeak, c.HasCoolantLeak, c.HasWornBelts,
			string(c.TiresCondition), c.HasUnevenWear, c.HasLowTread,
			string(c.UpholsteryCondition), string(c.DashboardCondition), c.HasSeatDamage, c.HasTrimDamage,
			c.HasRegistrationDocument, c.HasOwnerManual, c.HasSpareKey,
			c.HasMaintenanceRecords, c.CreatedAt, c.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert checklist: %w", err)
		}
	}

	return nil
}

// GetAppraisal loads the full aggregate including its sub-collections.
// Returns sql.ErrNoRows when the appraisal does not exist.
func (q *Queries) GetAppraisal(ctx context.Context, id uuid.UUID) (*domain.Appraisal, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+appraisalColumns+` FROM appraisals WHERE id = $1`, id)
	return q.scanFullAppraisal(ctx, row)
}

// GetAppraisalByToken loads the full aggregate by its validation token.
// Returns sql.ErrNoRows when no approved appraisal carries the token.
func (q *Queries) GetAppraisalByToken(ctx context.Context, token string) (*domain.Appraisal, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+appraisalColumns+` FROM appraisals WHERE validation_token = $1 AND validation_token <> ''`, token)
	return q.scanFullAppraisal(ctx, row)
}

// ActiveAppraisalExistsForPlate checks the one-active-appraisal-per-plate
// invariant before creating a new aggregate.
func (q *Queries) ActiveAppraisalExistsForPlate(ctx context.Context, plate string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appraisals
			WHERE plate = $1
			  AND status IN ('draft', 'in_progress', 'pending_approval', 'approved')
		)`, plate).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active plate: %w", err)
	}
	return exists, nil
}

// ListAppraisalsParams filters and pages the appraisal listing.
type ListAppraisalsParams struct {
	Status string // Empty means all statuses
	Limit  int32
	Offset int32
}

// ListAppraisals returns appraisal headers (no sub-collections) plus the
// total count for pagination.
func (q *Queries) ListAppraisals(ctx context.Context, params ListAppraisalsParams) ([]domain.Appraisal, int64, error) {
	var total int64
	err := q.db.QueryRowContext(ctx, `
		SELECT count(*) FROM appraisals
		WHERE ($1 = '' OR status = $1)`, params.Status).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count appraisals: %w", err)
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT `+appraisalColumns+`
		FROM appraisals
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, params.Status, params.Limit, params.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list appraisals: %w", err)
	}
	defer rows.Close()

	var out []domain.Appraisal
	for rows.Next() {
		a, err := scanAppraisalRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list appraisals: %w", err)
	}
	return out, total, nil
}

// =============================================================================
// Scanning
// =============================================================================

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAppraisalRow(row rowScanner) (*domain.Appraisal, error) {
	var (
		a             domain.Appraisal
		fuel, status  string
		mileage       string
		refPrice      string
		baseValue     string
		finalValue    string
		approvedValue string
		approverID    uuid.NullUUID
		submittedAt   sql.NullTime
		approvedAt    sql.NullTime
		validUntil    sql.NullTime
	)

	err := row.Scan(
		&a.ID, &a.Plate,
		&a.Vehicle.Brand, &a.Vehicle.Model, &a.Vehicle.Version,
		&a.Vehicle.ManufactureYear, &a.Vehicle.ModelYear,
		&a.Vehicle.Color, &fuel,
		&mileage, &a.Currency, &status,
		&refPrice, &baseValue, &finalValue, &approvedValue,
		&a.Observations, &a.RejectionReason,
		&a.EvaluatorID, &approverID,
		&a.CreatedAt, &a.UpdatedAt, &submittedAt, &approvedAt,
		&validUntil, &a.ValidationToken, &a.Version,
	)
	if err != nil {
		return nil, err
	}

	a.Vehicle.Fuel = domain.FuelKind(fuel)
	a.Status = domain.Status(status)

	if a.Mileage, err = decimal.NewFromString(mileage); err != nil {
		return nil, fmt.Errorf("parse mileage: %w", err)
	}
	if a.ReferencePrice, err = parseMoney(refPrice, a.Currency); err != nil {
		return nil, err
	}
	if a.BaseValue, err = parseMoney(baseValue, a.Currency); err != nil {
		return nil, err
	}
	if a.FinalValue, err = parseMoney(finalValue, a.Currency); err != nil {
		return nil, err
	}
	if a.ApprovedValue, err = parseMoney(approvedValue, a.Currency); err != nil {
		return nil, err
	}

	if approverID.Valid {
		a.ApproverID = &approverID.UUID
	}
	a.SubmittedAt = timePtr(submittedAt)
	a.ApprovedAt = timePtr(approvedAt)
	a.ValidUntil = timePtr(validUntil)

	return &a, nil
}

func (q *Queries) scanFullAppraisal(ctx context.Context, row rowScanner) (*domain.Appraisal, error) {
	a, err := scanAppraisalRow(row)
	if err != nil {
		return nil, err
	}

	if a.Photos, err = q.photosByAppraisal(ctx, a.ID); err != nil {
		return nil, err
	}
	if a.Deductions, err = q.deductionsByAppraisal(ctx, a.ID); err != nil {
		return nil, err
	}
	if a.Checklist, err = q.checklistByAppraisal(ctx, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

func (q *Queries) photosByAppraisal(ctx context.Context, appraisalID uuid.UUID) ([]domain.Photo, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, appraisal_id, photo_type, storage_key, thumbnail_key,
		       content_type, size_bytes, created_at
		FROM appraisal_photos
		WHERE appraisal_id = $1
		ORDER BY created_at`, appraisalID)
	if err != nil {
		return nil, fmt.Errorf("load photos: %w", err)
	}
	defer rows.Close()

	var out []domain.Photo
	for rows.Next() {
		var (
			p         domain.Photo
			photoType string
		)
		if err := rows.Scan(&p.ID, &p.AppraisalID, &photoType, &p.StorageKey,
			&p.ThumbnailKey, &p.ContentType, &p.SizeBytes, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		p.Type = domain.PhotoType(photoType)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *Queries) deductionsByAppraisal(ctx context.Context, appraisalID uuid.UUID) ([]domain.Deduction, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT d.id, d.appraisal_id, d.category, d.description, d.value,
		       d.justification, d.created_by, d.created_at, a.currency
		FROM appraisal_deductions d
		JOIN appraisals a ON a.id = d.appraisal_id
		WHERE d.appraisal_id = $1
		ORDER BY d.created_at`, appraisalID)
	if err != nil {
		return nil, fmt.Errorf("load deductions: %w", err)
	}
	defer rows.Close()

	var out []domain.Deduction
	for rows.Next() {
		var (
			d        domain.Deduction
			category string
			value    string
			currency string
		)
		if err := rows.Scan(&d.ID, &d.AppraisalID, &category, &d.Description,
			&value, &d.Justification, &d.CreatedBy, &d.CreatedAt, &currency); err != nil {
			return nil, fmt.Errorf("scan deduction: %w", err)
		}
		d.Category = domain.DeductionCategory(category)
		if d.Value, err = parseMoney(value, currency); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (q *Queries) checklistByAppraisal(ctx context.Context, appraisalID uuid.UUID) (*domain.Checklist, error) {
	var (
		c           domain.Checklist
		body        string
		paint       string
		engine      string
		transm      string
		brakes      string
		suspension  string
		electronics string
		tires       string
		upholstery  string
		dashboard   string
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT id, appraisal_id,
		       body_condition, paint_condition, has_rust, has_deep_scratches,
		       has_large_dents, has_heavy_bodywork, repainted_panels, repaired_panels,
		       engine_condition, transmission_condition, brakes_condition,
		       suspension_condition, electronics_condition,
		       has_oil_leak, has_coolant_leak, has_worn_belts,
		       tires_condition, has_uneven_wear, has_low_tread,
		       upholstery_condition, dashboard_condition, has_seat_damage, has_trim_damage,
		       has_registration_document, has_owner_manual, has_spare_key,
		       has_maintenance_records, created_at, updated_at
		FROM appraisal_checklists
		WHERE appraisal_id = $1`, appraisalID).Scan(
		&c.ID, &c.AppraisalID,
		&body, &paint, &c.HasRust, &c.HasDeepScratches,
		&c.HasLargeDents, &c.HasHeavyBodywork, &c.RepaintedPanels, &c.RepairedPanels,
		&engine, &transm, &brakes, &suspension, &electronics,
		&c.HasOilLeak, &c.HasCoolantLeak, &c.HasWornBelts,
		&tires, &c.HasUnevenWear, &c.HasLowTread,
		&upholstery, &dashboard, &c.HasSeatDamage, &c.HasTrimDamage,
		&c.HasRegistrationDocument, &c.HasOwnerManual, &c.HasSpareKey,
		&c.HasMaintenanceRecords, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checklist: %w", err)
	}

	c.BodyCondition = domain.Grade(body)
	c.PaintCondition = domain.Grade(paint)
	c.EngineCondition = domain.Grade(engine)
	c.TransmissionCondition = domain.Grade(transm)
	c.BrakesCondition = domain.Grade(brakes)
	c.SuspensionCondition = domain.Grade(suspension)
	c.ElectronicsCondition = domain.Grade(electronics)
	c.TiresCondition = domain.Grade(tires)
	c.UpholsteryCondition = domain.Grade(upholstery)
	c.DashboardCondition = domain.Grade(dashboard)
	return &c, nil
}

// =============================================================================
// Null Helpers
// =============================================================================

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func parseMoney(value, currency string) (domain.Money, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return domain.Money{}, fmt.Errorf("parse monetary value %q: %w", value, err)
	}
	return domain.NewMoney(amount, currency)
}
