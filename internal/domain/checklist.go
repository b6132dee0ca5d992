// Package domain contains the core appraisal business types.
//
// This file defines the inspection Checklist: the graded and boolean answers
// collected across five sections during the technical inspection, the
// conservation score derived from them, and the critical-issue detector.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Grade
// =============================================================================

// Grade is the condition rating assigned to an inspected item.
// The empty string means the item has not been inspected yet.
type Grade string

const (
	GradeExcellent Grade = "excellent"
	GradeGood      Grade = "good"
	GradeFair      Grade = "fair"
	GradePoor      Grade = "poor"
)

// String returns the string representation of the grade.
func (g Grade) String() string {
	return string(g)
}

// IsValid returns true if the grade is a recognized value.
func (g Grade) IsValid() bool {
	switch g {
	case GradeExcellent, GradeGood, GradeFair, GradePoor:
		return true
	}
	return false
}

// IsSet returns true if the grade has been assigned.
func (g Grade) IsSet() bool {
	return g != ""
}

// =============================================================================
// Score Weights
// =============================================================================

// Conservation score penalty table. The score starts at 100 and each finding
// subtracts its weight; the result is clamped to [0, 100].
//
// Tire findings use the same per-grade weights as every other graded item
// (poor 10 / fair 4) plus the low-tread and uneven-wear flags below.
const (
	penaltyGradePoor = 10
	penaltyGradeFair = 4

	penaltyRust          = 6
	penaltyDeepScratches = 4
	penaltyLargeDents    = 5
	penaltyHeavyBodywork = 12
	penaltyOilLeak       = 8
	penaltyCoolantLeak   = 8
	penaltyWornBelts     = 3
	penaltyUnevenWear    = 4
	penaltyLowTread      = 5
	penaltySeatDamage    = 3
	penaltyTrimDamage    = 3

	penaltyPerRepaintedPanel = 2
	penaltyPerRepairedPanel  = 3

	penaltyMissingRegistration = 10
	penaltyMissingManual       = 2
	penaltyMissingSpareKey     = 2
	penaltyMissingMaintenance  = 3

	// maxPanelCount bounds the repainted/repaired panel counters.
	maxPanelCount = 10

	// structuralRepairThreshold is the combined panel-repair count above
	// which the vehicle is flagged as structurally compromised.
	structuralRepairThreshold = 5
)

// gradePenalty returns the score deduction for a condition grade.
func gradePenalty(g Grade) int {
	switch g {
	case GradePoor:
		return penaltyGradePoor
	case GradeFair:
		return penaltyGradeFair
	}
	return 0
}

// =============================================================================
// Checklist
// =============================================================================

// Checklist holds the technical inspection answers for one appraisal,
// grouped into five sections. Grades left empty mean "not inspected yet";
// IsComplete reports whether every graded item has been answered.
type Checklist struct {
	ID          uuid.UUID
	AppraisalID uuid.UUID

	// Bodywork & paint
	BodyCondition    Grade
	PaintCondition   Grade
	HasRust          bool
	HasDeepScratches bool
	HasLargeDents    bool
	HasHeavyBodywork bool
	RepaintedPanels  int // 0-10
	RepairedPanels   int // 0-10

	// Mechanical
	EngineCondition       Grade
	TransmissionCondition Grade
	BrakesCondition       Grade
	SuspensionCondition   Grade
	ElectronicsCondition  Grade
	HasOilLeak            bool
	HasCoolantLeak        bool
	HasWornBelts          bool

	// Tires
	TiresCondition Grade
	HasUnevenWear  bool
	HasLowTread    bool

	// Interior
	UpholsteryCondition Grade
	DashboardCondition  Grade
	HasSeatDamage       bool
	HasTrimDamage       bool

	// Documentation
	HasRegistrationDocument bool
	HasOwnerManual          bool
	HasSpareKey             bool
	HasMaintenanceRecords   bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// gradedItems returns every condition-grade field with its name,
// in section order. Used by Validate, IsComplete and Score.
func (c *Checklist) gradedItems() []struct {
	name  string
	grade Grade
} {
	return []struct {
		name  string
		grade Grade
	}{
		{"body_condition", c.BodyCondition},
		{"paint_condition", c.PaintCondition},
		{"engine_condition", c.EngineCondition},
		{"transmission_condition", c.TransmissionCondition},
		{"brakes_condition", c.BrakesCondition},
		{"suspension_condition", c.SuspensionCondition},
		{"electronics_condition", c.ElectronicsCondition},
		{"tires_condition", c.TiresCondition},
		{"upholstery_condition", c.UpholsteryCondition},
		{"dashboard_condition", c.DashboardCondition},
	}
}

// Validate checks that every assigned grade is a recognized value and that
// the panel counters are within bounds.
func (c *Checklist) Validate() error {
	const op = "checklist.validate"

	for _, item := range c.gradedItems() {
		if item.grade.IsSet() && !item.grade.IsValid() {
			return Invalid(op, fmt.Sprintf("invalid grade %q for %s", item.grade, item.name))
		}
	}
	if c.RepaintedPanels < 0 || c.RepaintedPanels > maxPanelCount {
		return Invalid(op, fmt.Sprintf("repainted panel count %d outside 0-%d", c.RepaintedPanels, maxPanelCount))
	}
	if c.RepairedPanels < 0 || c.RepairedPanels > maxPanelCount {
		return Invalid(op, fmt.Sprintf("repaired panel count %d outside 0-%d", c.RepairedPanels, maxPanelCount))
	}
	return nil
}

// IsComplete returns true if every condition grade across all five sections
// has been assigned.
func (c *Checklist) IsComplete() bool {
	for _, item := range c.gradedItems() {
		if !item.grade.IsSet() {
			return false
		}
	}
	return true
}

// Score computes the 0-100 conservation score from the current field values.
// It is a pure function: repeated calls on unchanged fields return the same
// value, and nothing is cached on the checklist.
func (c *Checklist) Score() int {
	score := 100

	for _, item := range c.gradedItems() {
		score -= gradePenalty(item.grade)
	}

	flags := []struct {
		set     bool
		penalty int
	}{
		{c.HasRust, penaltyRust},
		{c.HasDeepScratches, penaltyDeepScratches},
		{c.HasLargeDents, penaltyLargeDents},
		{c.HasHeavyBodywork, penaltyHeavyBodywork},
		{c.HasOilLeak, penaltyOilLeak},
		{c.HasCoolantLeak, penaltyCoolantLeak},
		{c.HasWornBelts, penaltyWornBelts},
		{c.HasUnevenWear, penaltyUnevenWear},
		{c.HasLowTread, penaltyLowTread},
		{c.HasSeatDamage, penaltySeatDamage},
		{c.HasTrimDamage, penaltyTrimDamage},
		{!c.HasRegistrationDocument, penaltyMissingRegistration},
		{!c.HasOwnerManual, penaltyMissingManual},
		{!c.HasSpareKey, penaltyMissingSpareKey},
		{!c.HasMaintenanceRecords, penaltyMissingMaintenance},
	}
	for _, f := range flags {
		if f.set {
			score -= f.penalty
		}
	}

	score -= c.RepaintedPanels * penaltyPerRepaintedPanel
	score -= c.RepairedPanels * penaltyPerRepairedPanel

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// CriticalIssues derives the list of human-readable critical findings from
// the current field values. Like Score, it is pure: the list is rebuilt on
// every call and never stored, so there is no stale state to clear.
func (c *Checklist) CriticalIssues() []string {
	var issues []string
	add := func(issue string) {
		if issue != "" {
			issues = append(issues, issue)
		}
	}

	if !c.HasRegistrationDocument {
		add("vehicle registration document (CRLV) is missing")
	}
	if c.EngineCondition == GradePoor {
		add("engine condition rated poor")
	}
	if c.BrakesCondition == GradePoor {
		add("brake system condition rated poor")
	}
	if c.TransmissionCondition == GradePoor {
		add("transmission condition rated poor")
	}
	if c.HasHeavyBodywork {
		add("signs of heavy structural bodywork")
	}
	if c.HasOilLeak && c.HasCoolantLeak {
		add("simultaneous oil and coolant leaks")
	}
	if c.RepaintedPanels+c.RepairedPanels > structuralRepairThreshold {
		add(fmt.Sprintf("more than %d panels repaired or repainted", structuralRepairThreshold))
	}
	if c.TiresCondition == GradePoor && c.HasLowTread && c.HasUnevenWear {
		add("tires in poor condition with low tread and uneven wear")
	}
	if c.ElectronicsCondition == GradePoor {
		add("electrical system condition rated poor")
	}

	return issues
}

// HasBlockingIssues reports whether the checklist carries findings that an
// approver should treat as strong negative signals. Blocking issues do not
// prevent submission or approval by themselves; they are advisory data for
// the human decision.
func (c *Checklist) HasBlockingIssues() bool {
	if len(c.CriticalIssues()) > 0 {
		return true
	}
	if c.EngineCondition == GradePoor || c.BrakesCondition == GradePoor || c.TransmissionCondition == GradePoor {
		return true
	}
	if !c.HasRegistrationDocument {
		return true
	}
	return c.HasHeavyBodywork
}
