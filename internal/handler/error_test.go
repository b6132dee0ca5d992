package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaptista/avalia/internal/domain"
)

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.ERANGE, http.StatusBadRequest},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.EGONE, http.StatusGone},
		{domain.EPRECONDITION, http.StatusUnprocessableEntity},
		{domain.EUNAVAILABLE, http.StatusServiceUnavailable},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"something_else", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestErrorResponse(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("domain error carries code and message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/appraisals", nil)

		ErrorResponse(rec, req, logger, domain.Precondition("appraisal.submit", "at least one photo is required"))

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body map[string]map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, domain.EPRECONDITION, body["error"]["code"])
		assert.Equal(t, "at least one photo is required", body["error"]["message"])
	})

	t.Run("internal details are masked", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/appraisals", nil)

		ErrorResponse(rec, req, logger, domain.Internal(errors.New("pq: connection refused"), "appraisal.get", "failed to load appraisal"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		var body map[string]map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, domain.EINTERNAL, body["error"]["code"])
		assert.NotContains(t, body["error"]["message"], "connection refused")
	})

	t.Run("plain error maps to internal", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/appraisals", nil)

		ErrorResponse(rec, req, logger, errors.New("boom"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
