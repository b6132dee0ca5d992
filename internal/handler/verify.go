package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pbaptista/avalia/internal/service"
)

// VerifyHandler serves the public certificate check. Anyone holding a
// validation token can confirm that an approval is genuine and still
// valid, without authentication.
type VerifyHandler struct {
	service service.AppraisalService
	logger  *slog.Logger
}

// NewVerifyHandler creates the handler.
func NewVerifyHandler(svc service.AppraisalService, logger *slog.Logger) *VerifyHandler {
	return &VerifyHandler{
		service: svc,
		logger:  logger,
	}
}

// RegisterRoutes attaches the public verification route.
func (h *VerifyHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /verify/{token}", h.Verify)
}

// Verify resolves a validation token to a certificate summary. The
// response deliberately omits internal figures like deductions and
// margins; it only confirms the approval itself.
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	appraisal, err := h.service.VerifyByToken(r.Context(), token)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"valid":          true,
		"plate":          appraisal.Plate,
		"vehicle":        appraisal.Vehicle.Label(),
		"approved_value": renderMoney(appraisal.ApprovedValue),
		"approved_at":    appraisal.ApprovedAt.UTC().Format(time.RFC3339),
		"valid_until":    appraisal.ValidUntil.UTC().Format(time.RFC3339),
	})
}
