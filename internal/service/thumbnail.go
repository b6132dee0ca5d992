// Package service contains the business logic layer: it orchestrates the
// appraisal aggregate, persistence, photo storage, the valuation pipeline
// and the event outbox.
package service

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

const (
	// thumbnailMaxWidth and thumbnailMaxHeight bound generated thumbnails.
	thumbnailMaxWidth  = 320
	thumbnailMaxHeight = 320

	thumbnailJPEGQuality = 85
)

// ThumbnailProcessor generates thumbnails from uploaded photos.
type ThumbnailProcessor interface {
	// GenerateThumbnail returns JPEG thumbnail bytes fitting within
	// maxWidth x maxHeight, plus the original dimensions.
	GenerateThumbnail(data io.Reader, maxWidth, maxHeight int) ([]byte, int, int, error)
}

// imagingProcessor implements ThumbnailProcessor with the imaging library.
type imagingProcessor struct{}

// NewImagingProcessor creates the default thumbnail processor.
func NewImagingProcessor() ThumbnailProcessor {
	return &imagingProcessor{}
}

// GenerateThumbnail decodes the image, fits it into the bounding box while
// preserving aspect ratio and re-encodes as JPEG.
func (p *imagingProcessor) GenerateThumbnail(data io.Reader, maxWidth, maxHeight int) ([]byte, int, int, error) {
	img, _, err := image.Decode(data)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	thumbnail := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG, imaging.JPEGQuality(thumbnailJPEGQuality)); err != nil {
		return nil, 0, 0, fmt.Errorf("encode thumbnail: %w", err)
	}

	return buf.Bytes(), bounds.Dx(), bounds.Dy(), nil
}
