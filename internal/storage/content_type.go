package storage

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// DetectContentType determines the MIME type of an upload.
//
// Priority: the explicitly provided type, then the filename extension,
// then sniffing the first 512 bytes, then application/octet-stream.
func DetectContentType(providedType, filename string, data io.Reader) string {
	if providedType != "" {
		return providedType
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}

	if data != nil {
		buffer := make([]byte, 512)
		n, err := io.ReadFull(data, buffer)
		if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
			return http.DetectContentType(buffer[:n])
		}
	}

	return "application/octet-stream"
}

// AllowedPhotoTypes lists the MIME types accepted for appraisal photos.
var AllowedPhotoTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true, // some clients send this instead of image/jpeg
	"image/png":  true,
	"image/webp": true,
	"image/heic": true, // iPhone photos
	"image/heif": true,
}

// IsAllowedPhotoType checks whether a content type may be uploaded as an
// appraisal photo.
func IsAllowedPhotoType(contentType string) bool {
	return AllowedPhotoTypes[normalizeContentType(contentType)]
}

// IsImage reports whether the content type is any image format.
func IsImage(contentType string) bool {
	return strings.HasPrefix(normalizeContentType(contentType), "image/")
}

// normalizeContentType strips parameters like charset and lowercases.
func normalizeContentType(contentType string) string {
	baseType := strings.Split(contentType, ";")[0]
	return strings.TrimSpace(strings.ToLower(baseType))
}
