package handler

import (
	"net/http"

	"github.com/pbaptista/avalia/internal/domain"
	"github.com/pbaptista/avalia/internal/service"
)

// maxUploadMemory bounds the in-memory part of multipart parsing; larger
// parts spill to temp files.
const maxUploadMemory = 4 << 20

// AddPhoto handles a multipart photo upload. The form carries the file
// under "photo" and the photo type under "photo_type".
func (h *AppraisalHandler) AddPhoto(w http.ResponseWriter, r *http.Request) {
	const op = "appraisal.add_photo"

	id, err := pathUUID(r, "id")
	if err != nil {
		BadRequestResponse(w, r, h.logger, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, service.MaxPhotoSizeBytes+maxUploadMemory)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "request is not a valid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	photoType := domain.PhotoType(r.FormValue("photo_type"))
	if !photoType.IsValid() {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "unknown or missing photo_type"))
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "photo file is required"))
		return
	}
	defer file.Close()

	photo, err := h.service.AddPhoto(r.Context(), service.AddPhotoParams{
		AppraisalID: id,
		Type:        photoType,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        file,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, renderPhoto(photo))
}

// RemovePhoto detaches a photo and deletes its stored objects.
func (h *AppraisalHandler) RemovePhoto(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		BadRequestResponse(w, r, h.logger, err)
		return
	}
	photoID, err := pathUUID(r, "photoID")
	if err != nil {
		BadRequestResponse(w, r, h.logger, err)
		return
	}

	if err := h.service.RemovePhoto(r.Context(), id, photoID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
