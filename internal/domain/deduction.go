// Package domain contains the core appraisal business types.
//
// This file defines the Deduction: one justified reduction in value tied to
// a defect category, owned by exactly one appraisal.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Deduction Category
// =============================================================================

// DeductionCategory classifies what part of the vehicle a deduction targets.
type DeductionCategory string

const (
	DeductionBody          DeductionCategory = "body"
	DeductionPaint         DeductionCategory = "paint"
	DeductionMechanical    DeductionCategory = "mechanical"
	DeductionTires         DeductionCategory = "tires"
	DeductionInterior      DeductionCategory = "interior"
	DeductionDocumentation DeductionCategory = "documentation"
	DeductionOther         DeductionCategory = "other"
)

// String returns the string representation of the category.
func (c DeductionCategory) String() string {
	return string(c)
}

// IsValid returns true if the category is a recognized value.
func (c DeductionCategory) IsValid() bool {
	switch c {
	case DeductionBody, DeductionPaint, DeductionMechanical, DeductionTires,
		DeductionInterior, DeductionDocumentation, DeductionOther:
		return true
	}
	return false
}

// =============================================================================
// Deduction
// =============================================================================

// Deduction records one value reduction on an appraisal.
type Deduction struct {
	ID            uuid.UUID
	AppraisalID   uuid.UUID
	Category      DeductionCategory
	Description   string
	Value         Money // Strictly positive
	Justification string
	CreatedBy     uuid.UUID
	CreatedAt     time.Time
}

// NewDeductionParams contains validated parameters for creating a deduction.
type NewDeductionParams struct {
	AppraisalID   uuid.UUID
	Category      DeductionCategory
	Description   string
	Value         Money
	Justification string // Optional
	CreatedBy     uuid.UUID
}

// NewDeduction validates and constructs a deduction record.
func NewDeduction(params NewDeductionParams) (*Deduction, error) {
	const op = "deduction.new"

	if !params.Category.IsValid() {
		return nil, Invalid(op, fmt.Sprintf("unknown deduction category %q", params.Category))
	}
	if strings.TrimSpace(params.Description) == "" {
		return nil, Invalid(op, "description is required")
	}
	if !params.Value.IsPositive() {
		return nil, Invalid(op, "deduction value must be greater than zero")
	}

	return &Deduction{
		ID:            uuid.New(),
		AppraisalID:   params.AppraisalID,
		Category:      params.Category,
		Description:   strings.TrimSpace(params.Description),
		Value:         params.Value,
		Justification: strings.TrimSpace(params.Justification),
		CreatedBy:     params.CreatedBy,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
