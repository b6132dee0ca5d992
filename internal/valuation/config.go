package valuation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Config holds the margin policy applied by the valuation pipeline.
// All percentages are fractions (0.10 = 10%).
type Config struct {
	// SafetyMarginPct is deducted from the net value to absorb appraisal
	// uncertainty and reconditioning surprises.
	SafetyMarginPct decimal.Decimal

	// ProfitMarginPct is deducted from the net value to leave room for
	// resale profit.
	ProfitMarginPct decimal.Decimal

	// MaxAdjustmentPct bounds the manual adjustment an evaluator may apply
	// to the suggested value, in either direction.
	MaxAdjustmentPct decimal.Decimal

	// RequireSeniorApproval flags adjustments above
	// SeniorApprovalThresholdPct for elevated approval. The pipeline only
	// reports the flag; blocking is a human workflow decision.
	RequireSeniorApproval      bool
	SeniorApprovalThresholdPct decimal.Decimal
}

// DefaultConfig returns the margin policy used when none is configured.
func DefaultConfig() Config {
	return Config{
		SafetyMarginPct:            decimal.RequireFromString("0.10"),
		ProfitMarginPct:            decimal.RequireFromString("0.15"),
		MaxAdjustmentPct:           decimal.RequireFromString("0.10"),
		RequireSeniorApproval:      true,
		SeniorApprovalThresholdPct: decimal.RequireFromString("0.05"),
	}
}

// Validate checks that every percentage is within its allowed range.
func (c Config) Validate() error {
	half := decimal.RequireFromString("0.5")
	one := decimal.NewFromInt(1)

	if c.SafetyMarginPct.IsNegative() || c.SafetyMarginPct.GreaterThan(half) {
		return fmt.Errorf("safety margin must be within [0, 0.5], got %s", c.SafetyMarginPct)
	}
	if c.ProfitMarginPct.IsNegative() || c.ProfitMarginPct.GreaterThan(half) {
		return fmt.Errorf("profit margin must be within [0, 0.5], got %s", c.ProfitMarginPct)
	}
	if c.SafetyMarginPct.Add(c.ProfitMarginPct).GreaterThanOrEqual(one) {
		return fmt.Errorf("combined margins must stay below 1, got %s", c.SafetyMarginPct.Add(c.ProfitMarginPct))
	}
	if c.MaxAdjustmentPct.IsNegative() || c.MaxAdjustmentPct.GreaterThan(one) {
		return fmt.Errorf("max adjustment must be within [0, 1], got %s", c.MaxAdjustmentPct)
	}
	if c.RequireSeniorApproval {
		if c.SeniorApprovalThresholdPct.IsNegative() || c.SeniorApprovalThresholdPct.GreaterThan(c.MaxAdjustmentPct) {
			return fmt.Errorf("senior approval threshold must be within [0, max adjustment], got %s", c.SeniorApprovalThresholdPct)
		}
	}
	return nil
}
