// Package domain contains the core appraisal business types.
//
// This file defines the Photo entity. An appraisal carries at most one photo
// per photo type; photos are owned exclusively by their appraisal.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Photo Type
// =============================================================================

// PhotoType tags the angle or subject a photo documents.
type PhotoType string

const (
	PhotoFront    PhotoType = "front"
	PhotoRear     PhotoType = "rear"
	PhotoLeft     PhotoType = "left_side"
	PhotoRight    PhotoType = "right_side"
	PhotoInterior PhotoType = "interior"
	PhotoEngine   PhotoType = "engine_bay"
	PhotoTrunk    PhotoType = "trunk"
	PhotoOdometer PhotoType = "odometer"
	PhotoChassis  PhotoType = "chassis_number"
	PhotoDamage   PhotoType = "damage_detail"
)

// String returns the string representation of the photo type.
func (t PhotoType) String() string {
	return string(t)
}

// IsValid returns true if the photo type is a recognized value.
func (t PhotoType) IsValid() bool {
	switch t {
	case PhotoFront, PhotoRear, PhotoLeft, PhotoRight, PhotoInterior,
		PhotoEngine, PhotoTrunk, PhotoOdometer, PhotoChassis, PhotoDamage:
		return true
	}
	return false
}

// =============================================================================
// Photo
// =============================================================================

// Photo is one piece of photographic evidence attached to an appraisal.
// StorageKey and ThumbnailKey reference objects in the photo storage
// collaborator; the domain never holds image bytes.
type Photo struct {
	ID           uuid.UUID
	AppraisalID  uuid.UUID
	Type         PhotoType
	StorageKey   string
	ThumbnailKey string
	ContentType  string
	SizeBytes    int64
	CreatedAt    time.Time

	// Computed field (populated by the service from storage, not persisted)
	URL string
}

// HasThumbnail returns true if a thumbnail was generated for this photo.
func (p *Photo) HasThumbnail() bool {
	return p.ThumbnailKey != ""
}
