// Package valuation implements the pipeline that turns a reference price,
// accumulated deductions and the configured margins into a suggested and
// final monetary value.
//
// The pipeline is stateless and never mutates the appraisal: callers copy
// the relevant Result fields back onto the aggregate through its setters.
package valuation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/pbaptista/avalia/internal/domain"
	"github.com/pbaptista/avalia/internal/pricing"
)

// =============================================================================
// Result Types
// =============================================================================

// DeductionDetail is the per-deduction line carried on a Result.
type DeductionDetail struct {
	Category    domain.DeductionCategory
	Description string
	Value       domain.Money
}

// Result carries every intermediate figure of one valuation run. It is
// produced once and never modified afterwards.
type Result struct {
	ReferencePrice  domain.Money
	Liquidity       decimal.Decimal
	BaseValue       domain.Money
	TotalDeductions domain.Money
	Deductions      []DeductionDetail
	SafetyMargin    domain.Money
	ProfitMargin    domain.Money
	SuggestedValue  domain.Money

	// AdjustmentPct and AdjustmentAmount are set only when a manual
	// adjustment was requested.
	AdjustmentPct    *decimal.Decimal
	AdjustmentAmount *domain.Money

	FinalValue domain.Money

	// RequiresSeniorApproval is set when the manual adjustment exceeds the
	// configured elevated-approval threshold. Advisory only.
	RequiresSeniorApproval bool
}

// Options customizes one valuation run.
type Options struct {
	// AdjustmentPct is an optional manual adjustment as a fraction
	// (0.05 = +5%). Must lie within ±Config.MaxAdjustmentPct.
	AdjustmentPct *decimal.Decimal
}

// =============================================================================
// Service
// =============================================================================

// Service runs the valuation pipeline against a pricing provider.
type Service struct {
	prices pricing.Provider
	cfg    Config
	logger *slog.Logger
}

// New creates a valuation service. The margin configuration is validated
// once here; Appraise never re-checks it.
func New(prices pricing.Provider, cfg Config, logger *slog.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid margin config: %w", err)
	}
	return &Service{
		prices: prices,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Config returns the margin configuration the service was built with.
func (s *Service) Config() Config {
	return s.cfg
}

// Appraise runs the full pipeline for one appraisal.
//
// Returns EUNAVAILABLE when no reference price exists for the vehicle and
// ERANGE when the requested manual adjustment exceeds the configured bound.
// On any error no partial figures are produced.
func (s *Service) Appraise(ctx context.Context, a *domain.Appraisal, opts Options) (*Result, error) {
	const op = "valuation.appraise"

	// Step 1-2: reference price and liquidity.
	quote, err := s.prices.Lookup(ctx, a.Vehicle)
	if err != nil {
		if errors.Is(err, pricing.ErrPriceNotFound) {
			return nil, domain.Unavailable(op, fmt.Sprintf("no reference price for %s", a.Vehicle.Label()))
		}
		return nil, domain.Internal(err, op, "price lookup failed")
	}
	if quote.ReferencePrice.Currency != a.Currency {
		return nil, domain.Invalid(op, fmt.Sprintf("reference price currency %s does not match appraisal currency %s", quote.ReferencePrice.Currency, a.Currency))
	}
	if quote.Liquidity.IsNegative() || quote.Liquidity.GreaterThan(decimal.NewFromInt(1)) {
		return nil, domain.Invalid(op, fmt.Sprintf("liquidity %s outside [0, 1]", quote.Liquidity))
	}

	baseValue := quote.ReferencePrice.MulPercent(quote.Liquidity)

	// Step 3: accumulated deductions.
	totalDeductions := a.TotalDepreciation()
	net, err := baseValue.Sub(totalDeductions)
	if err != nil {
		return nil, domain.Internal(err, op, "deduction subtraction failed")
	}

	details := make([]DeductionDetail, 0, len(a.Deductions))
	for _, d := range a.Deductions {
		details = append(details, DeductionDetail{
			Category:    d.Category,
			Description: d.Description,
			Value:       d.Value,
		})
	}

	// Step 4: margins. Both reduce the estimate, leaving room for
	// reconditioning cost and resale profit.
	safetyMargin := net.MulPercent(s.cfg.SafetyMarginPct)
	profitMargin := net.MulPercent(s.cfg.ProfitMarginPct)

	suggested, err := net.Sub(safetyMargin)
	if err != nil {
		return nil, domain.Internal(err, op, "margin subtraction failed")
	}
	suggested, err = suggested.Sub(profitMargin)
	if err != nil {
		return nil, domain.Internal(err, op, "margin subtraction failed")
	}

	result := &Result{
		ReferencePrice:  quote.ReferencePrice,
		Liquidity:       quote.Liquidity,
		BaseValue:       baseValue,
		TotalDeductions: totalDeductions,
		Deductions:      details,
		SafetyMargin:    safetyMargin,
		ProfitMargin:    profitMargin,
		SuggestedValue:  suggested,
		FinalValue:      suggested,
	}

	// Step 5: optional manual adjustment.
	if opts.AdjustmentPct != nil {
		pct := *opts.AdjustmentPct
		if pct.Abs().GreaterThan(s.cfg.MaxAdjustmentPct) {
			return nil, domain.OutOfRange(op, fmt.Sprintf(
				"adjustment %s%% outside allowed ±%s%%",
				pct.Mul(decimal.NewFromInt(100)),
				s.cfg.MaxAdjustmentPct.Mul(decimal.NewFromInt(100)),
			))
		}

		amount := suggested.MulPercent(pct)
		final, err := suggested.Add(amount)
		if err != nil {
			return nil, domain.Internal(err, op, "adjustment addition failed")
		}

		result.AdjustmentPct = &pct
		result.AdjustmentAmount = &amount
		result.FinalValue = final
		result.RequiresSeniorApproval = s.cfg.RequireSeniorApproval &&
			pct.Abs().GreaterThan(s.cfg.SeniorApprovalThresholdPct)
	}

	s.logger.Debug("Valuation completed",
		"appraisal_id", a.ID,
		"reference_price", result.ReferencePrice.String(),
		"suggested", result.SuggestedValue.String(),
		"final", result.FinalValue.String(),
	)
	return result, nil
}
