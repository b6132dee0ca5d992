package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pbaptista/avalia/internal/domain"
	"github.com/pbaptista/avalia/internal/service"
	"github.com/pbaptista/avalia/internal/valuation"
)

// AppraisalHandler exposes the appraisal lifecycle as a JSON API.
type AppraisalHandler struct {
	service service.AppraisalService
	logger  *slog.Logger
}

// NewAppraisalHandler creates the handler.
func NewAppraisalHandler(svc service.AppraisalService, logger *slog.Logger) *AppraisalHandler {
	return &AppraisalHandler{
		service: svc,
		logger:  logger,
	}
}

// RegisterRoutes attaches all appraisal routes to the mux.
func (h *AppraisalHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/appraisals", h.Create)
	mux.HandleFunc("GET /api/appraisals", h.List)
	mux.HandleFunc("GET /api/appraisals/{id}", h.Get)

	mux.HandleFunc("POST /api/appraisals/{id}/photos", h.AddPhoto)
	mux.HandleFunc("DELETE /api/appraisals/{id}/photos/{photoID}", h.RemovePhoto)

	mux.HandleFunc("POST /api/appraisals/{id}/deductions", h.AddDeduction)
	mux.HandleFunc("DELETE /api/appraisals/{id}/deductions/{deductionID}", h.RemoveDeduction)

	mux.HandleFunc("PUT /api/appraisals/{id}/checklist", h.UpdateChecklist)
	mux.HandleFunc("PUT /api/appraisals/{id}/observations", h.SetObservations)

	mux.HandleFunc("POST /api/appraisals/{id}/valuation", h.RunValuation)

	mux.HandleFunc("POST /api/appraisals/{id}/submit", h.Submit)
	mux.HandleFunc("POST /api/appraisals/{id}/approve", h.Approve)
	mux.HandleFunc("POST /api/appraisals/{id}/reject", h.Reject)
	mux.HandleFunc("POST /api/appraisals/{id}/cancel", h.Cancel)
}

// =============================================================================
// Create / Get / List
// =============================================================================

type createAppraisalRequest struct {
	Brand           string `json:"brand"`
	Model           string `json:"model"`
	Version         string `json:"version"`
	ManufactureYear int    `json:"manufacture_year"`
	ModelYear       int    `json:"model_year"`
	Color           string `json:"color"`
	Fuel            string `json:"fuel"`
	Plate           string `json:"plate"`
	Mileage         string `json:"mileage"`
	Currency        string `json:"currency"`
	EvaluatorID     string `json:"evaluator_id"`
	Observations    string `json:"observations"`
}

func (h *AppraisalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAppraisalRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestResponse(w, r, h.logger, err)
		return
	}

	mileage := decimal.Zero
	if req.Mileage != "" {
		var err error
		mileage, err = decimal.NewFromString(req.Mileage)
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.Invalid("appraisal.create", "mileage is not a valid number"))
			return
		}
	}
	evaluatorID, err := uuid.Parse(req.EvaluatorID)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("appraisal.create", "evaluator_id is not a valid UUID"))
		return
	}

	appraisal, err := h.service.Create(r.Context(), service.CreateAppraisalParams{
		Brand:           req.Brand,
		Model:           req.Model,
		Version:         req.Version,
		ManufactureYear: req.ManufactureYear,
		ModelYear:       req.ModelYear,
		Color:           req.Color,
		Fuel:            domain.FuelKind(req.Fuel),
		Plate:           req.Plate,
		Mileage:         mileage,
		Currency:        req.Currency,
		EvaluatorID:     evaluatorID,
		Observations:    req.Observations,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, renderAppraisal(appraisal))
}

func (h *AppraisalHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		BadRequestResponse(w, r, h.logger, err)
		return
	}

	appraisal, err := h.service.Get(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, renderAppraisal(appraisal))
}

func (h *AppraisalHandler) List(w http.ResponseWriter, r *http.Request) {
	params := service.ListAppraisalsParams{
		Status: r.URL.Query().Get("status"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.Invalid("appraisal.list", "limit is not a number"))
			return
		}
		params.Limit = int32(n)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.Invalid("appraisal.list", "offset is not a number"))
			return
		}
		params.Offset = int32(n)
	}

	result, err := h.service.List(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	items := make([]map[string]interface{}, 0, len(result.Appraisals))
	for i := range result.Appraisals {
		items = append(items, renderAppraisalHeader(&result.Appraisals[i]))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"appraisals": items,
		"total":      result.Total,
		"limit":      result.Limit,
		"offset":     result.Offset,
	})
}

// =============================================================================
// Deductions
// =============================================================================

type addDeductionRequest struct {
	Category      string `json:"category"`
	Description   string `json:"description"`
	Value         string `json:"value"`
	Justification string `json:"justification"`
	CreatedBy     string `json:"created_by"`
}

func (h *AppraisalHandler) AddDeduction(w http.ResponseWriter, r *http.Request) {
	const op = "appraisal.add_deduction"

	id, err := pathUUID(r, "id")
	if err != nil {
		BadRequestResponse(w, r, h.logger, err)
		return
	}
	var req addDeductionRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestResponse(w, r, h.logger, err)
		return
	}

	amount, err := decimal.NewFromString(req.Value)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "value is not a valid number"))
		return
	}
	createdBy, err := uuid.Parse(req.CreatedBy)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "created_by is not a valid UUID"))
		return
	}

	// Deductions are created in the appraisal's own currency.
	appraisal, err := h.service.Get(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	value, err := domain.NewMoney(amount, appraisal.Currency)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	deduction, err := h.service.AddDeduction(r.Context(), service.AddDeductionParams{
		AppraisalID:   id,
		Category:      domain.DeductionCategory(req.Category),
		Description:   req.Description,
		Value:         value,
		Justification: req.Justification,
		CreatedBy:     createdBy,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, renderDeduction(deduction))
}

func (h *AppraisalHandler) RemoveDeduction(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		BadRequestResponse(w, r, h.logger, err)
		return
	}
	deductionID, err := pathUUID(r, "deductionID")
	if err != nil {
		BadRequestResponse(w, r, h.logger, err)
		return
	}

	if err := h.service.RemoveDeduction(r.Context(), id, deductionID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Checklist & Observations
// =============================================================================

type checklistRequest struct {
	BodyCondition    string `json:"body_condition"`
	PaintCondition   string `json:"paint_condition"`
	HasRust          bool   `json:"has_rust"`
	HasDeepScratches bool   `json:"has_deep_scratches"`
	HasLargeDents    bool   `json:"has_large_dents"`
	HasHeavyBodywork bool   `json:"has_heavy_bodywork"`
	RepaintedPanels  int    `json:"repainted_panels"`
	RepairedPanels   int    `json:"repaired_panels"`

	EngineCondition       string `json:"engine_condition"`
	TransmissionCondition string `json:"transmission_condition"`
	BrakesCondition       string `json:"brakes_condition"`
	SuspensionCondition   string `json:"suspension_condition"`
	ElectronicsCondition  string `json:"electronics_condition"`
	HasOilLeak            bool   `json:"has_oil_leak"`
	HasCoolantLeak        bool   `json:"has_coolant_leak"`
	HasWornBelts          bool   `json:"has_worn_belts"`

	TiresCondition string `json:"tires_condition"`
	HasUnevenWear  bool   `json:"has_uneven_wear"`
	HasLowTread    bool   `json:"has_low_tread"`

	UpholsteryCondition string `json:"upholstery_condition"`
	DashboardCondition  string `json:"dashboard_condition"`
	HasSeatDamage       bool   `json:"has_seat_damage"`
	HasTrimDamage       bool   `json:"has_trim_damage"`

	HasRegistrationDocument bool `json:"has_registration_document"`
	HasOwnerManual          bool `json:"has_owner_manual"`
	HasSpareKey             bool `json:"has_spare_key"`
	HasMaintenanceRecords   bool `json:"has_maintenance_records"`
}

func (h *AppraisalHandler) UpdateChecklist(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		BadRequestResponse(w, r, h.logger, err)
		return
	}
	var req checklistRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestResponse(w, r, h.logger, err)
		return
	}

	checklist := &domain.Checklist{
		BodyCondition:    domain.Grade(req.BodyCondition),
		PaintCondition:   domain.Grade(req.PaintCondition),
		HasRust:          req.HasRust,
		HasDeepScratches: req.HasDeepScratches,
		HasLargeDents:    req.HasLargeDents,
		HasHeavyBodywork: req.HasHeavyBodywork,
		RepaintedPanels:  req.RepaintedPanels,
		RepairedPanels:   req.RepairedPanels,

		EngineCondition:       domain.Grade(req.EngineCondition),
		TransmissionCondition: domain.Grade(req.TransmissionCondition),
		BrakesCondition:       domain.Grade(req.BrakesCondition),
		SuspensionCondition:   domain.Grade(req.SuspensionCondition),
		ElectronicsCondition:  domain.Grade(req.ElectronicsCondition),
		HasOilLeak:            req.HasOilLeak,
		HasCoolantLeak:        req.HasCoolantLeak,
		HasWornBelts:          req.HasWornBelts,

		TiresCondition: domain.Grade(req.TiresCondition),
		HasUnevenWear:  req.HasUnevenWear,
		HasLowTread:    req.HasLowTread,

		UpholsteryCondition: domain.Grade(req.UpholsteryCondition),
		DashboardCondition:  domain.Grade(req.DashboardCondition),
		HasSeatDamage:       req.HasSeatDamage,
		HasTrimDamage:       req.HasTrimDamage,

		HasRegistrationDocument: req.HasRegistrationDocument,
		HasOwnerManual:          req.HasOwnerManual,
		HasSpareKey:             req.HasSpareKey,
		HasMaintenanceRecords:   req.HasMaintenanceRecords,
	}

	appraisal, err := h.service.UpdateChecklist(r.Context(), id, checklist)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, renderAppraisal(appraisal))
}

type observationsRequest struct {
	Observations string `json:"observations"`
}

func (h *AppraisalHandler) SetObservations(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		BadRequestResponse(w, r, h.logger, err)
		return
	}
	var req observationsRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestResponse(w, r, h.logger, err)
		return
	}

	if err := h.service.SetObservations(r.Context(), id, req.Observations); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Valuation
// =============================================================================

type runValuationRequest struct {
	AdjustmentPct string `json:"adjustment_pct"` // fraction, e.g. "0.05" for +5%
}

func (h *AppraisalHandler) RunValuation(w http.ResponseWriter, r *http.Request) {
	const op = "appraisal.run_valuation"

	id, err := pathUUID(r, "id")
	if err != nil {
		BadRequestResponse(w, r, h.logger, err)
		return
	}

	var opts valuation.Options
	if r.ContentLength > 0 {
		var req runValuationRequest
		if err := decodeJSON(r, &req); err != nil {
			BadRequestResponse(w, r, h.logger, err)
			return
		}
		if req.AdjustmentPct != "" {
			pct, err := decimal.NewFromString(req.AdjustmentPct)
			if err != nil {
				ErrorResponse(w, r, h.logger, domain.Invalid(op, "adjustment_pct is not a valid number"))
				return
			}
			opts.AdjustmentPct = &pct
		}
	}

	result, err := h.service.RunValuation(r.Context(), id, opts)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, renderValuationResult(result))
}

// =============================================================================
// Lifecycle Transitions
// =============================================================================

func (h *AppraisalHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		BadRequestResponse(w, r, h.logger, err)
		return
	}

	if err := h.service.Submit(r.Context(), id); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": domain.StatusPendingApproval.String()})
}

type approveRequest struct {
	ApproverID    string `json:"approver_id"`
	AdjustedValue string `json:"adjusted_value"` // optional, appraisal currency
}

func (h *AppraisalHandler) Approve(w http.ResponseWriter, r *http.Request) {
	const op = "appraisal.approve"

	id, err := pathUUID(r, "id")
	if err != nil {
		BadRequestResponse(w, r, h.logger, err)
		return
	}
	var req approveRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestResponse(w, r, h.logger, err)
		return
	}
	approverID, err := uuid.Parse(req.ApproverID)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "approver_id is not a valid UUID"))
		return
	}

	params := service.ApproveParams{
		AppraisalID: id,
		ApproverID:  approverID,
	}
	if req.AdjustedValue != "" {
		amount, err := decimal.NewFromString(req.AdjustedValue)
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.Invalid(op, "adjusted_value is not a valid number"))
			return
		}
		appraisal, err := h.service.Get(r.Context(), id)
		if err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
		value, err := domain.NewMoney(amount, appraisal.Currency)
		if err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
		params.AdjustedValue = &value
	}

	appraisal, err := h.service.Approve(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, renderAppraisal(appraisal))
}

type rejectRequest struct {
	ApproverID string `json:"approver_id"`
	Reason     string `json:"reason"`
}

func (h *AppraisalHandler) Reject(w http.ResponseWriter, r *http.Request) {
	const op = "appraisal.reject"

	id, err := pathUUID(r, "id")
	if err != nil {
		BadRequestResponse(w, r, h.logger, err)
		return
	}
	var req rejectRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestResponse(w, r, h.logger, err)
		return
	}
	approverID, err := uuid.Parse(req.ApproverID)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "approver_id is not a valid UUID"))
		return
	}

	if err := h.service.Reject(r.Context(), service.RejectParams{
		AppraisalID: id,
		ApproverID:  approverID,
		Reason:      req.Reason,
	}); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": domain.StatusRejected.String()})
}

func (h *AppraisalHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		BadRequestResponse(w, r, h.logger, err)
		return
	}

	if err := h.service.Cancel(r.Context(), id); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": domain.StatusCancelled.String()})
}

// =============================================================================
// Rendering
// =============================================================================

func renderMoney(m domain.Money) map[string]string {
	return map[string]string{
		"amount":   m.Amount.StringFixed(2),
		"currency": m.Currency,
	}
}

func renderTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func renderAppraisalHeader(a *domain.Appraisal) map[string]interface{} {
	out := map[string]interface{}{
		"id":       a.ID,
		"plate":    a.Plate,
		"vehicle":  a.Vehicle.Label(),
		"mileage":  a.Mileage.StringFixed(2),
		"currency": a.Currency,
		"status":   a.Status.String(),

		"reference_price": renderMoney(a.ReferencePrice),
		"base_value":      renderMoney(a.BaseValue),
		"final_value":     renderMoney(a.FinalValue),
		"approved_value":  renderMoney(a.ApprovedValue),

		"evaluator_id": a.EvaluatorID,
		"created_at":   a.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":   a.UpdatedAt.UTC().Format(time.RFC3339),
		"submitted_at": renderTimePtr(a.SubmittedAt),
		"approved_at":  renderTimePtr(a.ApprovedAt),
		"valid_until":  renderTimePtr(a.ValidUntil),
	}
	if a.ApproverID != nil {
		out["approver_id"] = *a.ApproverID
	}
	if a.RejectionReason != "" {
		out["rejection_reason"] = a.RejectionReason
	}
	return out
}

func renderAppraisal(a *domain.Appraisal) map[string]interface{} {
	out := renderAppraisalHeader(a)

	out["vehicle"] = map[string]interface{}{
		"brand":            a.Vehicle.Brand,
		"model":            a.Vehicle.Model,
		"version":          a.Vehicle.Version,
		"manufacture_year": a.Vehicle.ManufactureYear,
		"model_year":       a.Vehicle.ModelYear,
		"color":            a.Vehicle.Color,
		"fuel":             a.Vehicle.Fuel.String(),
		"label":            a.Vehicle.Label(),
	}
	out["observations"] = a.Observations
	out["total_depreciation"] = renderMoney(a.TotalDepreciation())

	photos := make([]map[string]interface{}, 0, len(a.Photos))
	for i := range a.Photos {
		photos = append(photos, renderPhoto(&a.Photos[i]))
	}
	out["photos"] = photos

	deductions := make([]map[string]interface{}, 0, len(a.Deductions))
	for i := range a.Deductions {
		deductions = append(deductions, renderDeduction(&a.Deductions[i]))
	}
	out["deductions"] = deductions

	if a.Checklist != nil {
		out["checklist"] = renderChecklist(a.Checklist)
	}

	if a.Status == domain.StatusApproved {
		out["validation_token"] = a.ValidationToken
		out["expired"] = a.IsExpired()
	}

	return out
}

func renderPhoto(p *domain.Photo) map[string]interface{} {
	return map[string]interface{}{
		"id":            p.ID,
		"type":          p.Type.String(),
		"content_type":  p.ContentType,
		"size_bytes":    p.SizeBytes,
		"has_thumbnail": p.HasThumbnail(),
		"url":           p.URL,
		"created_at":    p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func renderDeduction(d *domain.Deduction) map[string]interface{} {
	return map[string]interface{}{
		"id":            d.ID,
		"category":      d.Category.String(),
		"description":   d.Description,
		"value":         renderMoney(d.Value),
		"justification": d.Justification,
		"created_by":    d.CreatedBy,
		"created_at":    d.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func renderChecklist(c *domain.Checklist) map[string]interface{} {
	return map[string]interface{}{
		"body_condition":     c.BodyCondition.String(),
		"paint_condition":    c.PaintCondition.String(),
		"has_rust":           c.HasRust,
		"has_deep_scratches": c.HasDeepScratches,
		"has_large_dents":    c.HasLargeDents,
		"has_heavy_bodywork": c.HasHeavyBodywork,
		"repainted_panels":   c.RepaintedPanels,
		"repaired_panels":    c.RepairedPanels,

		"engine_condition":       c.EngineCondition.String(),
		"transmission_condition": c.TransmissionCondition.String(),
		"brakes_condition":       c.BrakesCondition.String(),
		"suspension_condition":   c.SuspensionCondition.String(),
		"electronics_condition":  c.ElectronicsCondition.String(),
		"has_oil_leak":           c.HasOilLeak,
		"has_coolant_leak":       c.HasCoolantLeak,
		"has_worn_belts":         c.HasWornBelts,

		"tires_condition": c.TiresCondition.String(),
		"has_uneven_wear": c.HasUnevenWear,
		"has_low_tread":   c.HasLowTread,

		"upholstery_condition": c.UpholsteryCondition.String(),
		"dashboard_condition":  c.DashboardCondition.String(),
		"has_seat_damage":      c.HasSeatDamage,
		"has_trim_damage":      c.HasTrimDamage,

		"has_registration_document": c.HasRegistrationDocument,
		"has_owner_manual":          c.HasOwnerManual,
		"has_spare_key":             c.HasSpareKey,
		"has_maintenance_records":   c.HasMaintenanceRecords,

		"is_complete":         c.IsComplete(),
		"score":               c.Score(),
		"critical_issues":     c.CriticalIssues(),
		"has_blocking_issues": c.HasBlockingIssues(),
	}
}

func renderValuationResult(res *valuation.Result) map[string]interface{} {
	deductions := make([]map[string]interface{}, 0, len(res.Deductions))
	for _, d := range res.Deductions {
		deductions = append(deductions, map[string]interface{}{
			"category":    d.Category.String(),
			"description": d.Description,
			"value":       renderMoney(d.Value),
		})
	}

	out := map[string]interface{}{
		"reference_price":  renderMoney(res.ReferencePrice),
		"liquidity":        res.Liquidity.String(),
		"base_value":       renderMoney(res.BaseValue),
		"total_deductions": renderMoney(res.TotalDeductions),
		"deductions":       deductions,
		"safety_margin":    renderMoney(res.SafetyMargin),
		"profit_margin":    renderMoney(res.ProfitMargin),
		"suggested_value":  renderMoney(res.SuggestedValue),
		"final_value":      renderMoney(res.FinalValue),

		"requires_senior_approval": res.RequiresSeniorApproval,
	}
	if res.AdjustmentPct != nil {
		out["adjustment_pct"] = res.AdjustmentPct.String()
	}
	if res.AdjustmentAmount != nil {
		out["adjustment_amount"] = renderMoney(*res.AdjustmentAmount)
	}
	return out
}
