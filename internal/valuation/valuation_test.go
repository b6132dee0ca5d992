package valuation

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaptista/avalia/internal/domain"
	"github.com/pbaptista/avalia/internal/pricing"
	"github.com/pbaptista/avalia/internal/pricing/mock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testService(t *testing.T, prices pricing.Provider) *Service {
	t.Helper()
	cfg := Config{
		SafetyMarginPct:            decimal.RequireFromString("0.10"),
		ProfitMarginPct:            decimal.RequireFromString("0.15"),
		MaxAdjustmentPct:           decimal.RequireFromString("0.10"),
		RequireSeniorApproval:      true,
		SeniorApprovalThresholdPct: decimal.RequireFromString("0.05"),
	}
	svc, err := New(prices, cfg, testLogger())
	require.NoError(t, err)
	return svc
}

func testAppraisal(t *testing.T) *domain.Appraisal {
	t.Helper()
	vehicle, err := domain.NewVehicle("Fiat", "Argo", "", 2021, 2022, "White", domain.FuelFlex)
	require.NoError(t, err)
	a, err := domain.NewAppraisal(domain.NewAppraisalParams{
		Vehicle:     vehicle,
		Plate:       "ABC1D23",
		Mileage:     decimal.NewFromInt(45000),
		EvaluatorID: uuid.New(),
	})
	require.NoError(t, err)
	return a
}

func TestAppraiseWorkedExample(t *testing.T) {
	// Reference price 100000, liquidity 0.85, no deductions, margins 10%
	// and 15%: base 85000, suggested 85000 - 8500 - 12750 = 63750.
	svc := testService(t, mock.New())
	a := testAppraisal(t)

	result, err := svc.Appraise(context.Background(), a, Options{})
	require.NoError(t, err)

	assert.Equal(t, "100000.00 BRL", result.ReferencePrice.String())
	assert.Equal(t, "85000.00 BRL", result.BaseValue.String())
	assert.True(t, result.TotalDeductions.IsZero())
	assert.Equal(t, "8500.00 BRL", result.SafetyMargin.String())
	assert.Equal(t, "12750.00 BRL", result.ProfitMargin.String())
	assert.Equal(t, "63750.00 BRL", result.SuggestedValue.String())
	assert.Equal(t, "63750.00 BRL", result.FinalValue.String())
	assert.Nil(t, result.AdjustmentPct)
	assert.Nil(t, result.AdjustmentAmount)
	assert.False(t, result.RequiresSeniorApproval)
}

func TestAppraiseWithDeductions(t *testing.T) {
	svc := testService(t, mock.New())
	a := testAppraisal(t)

	d, err := domain.NewDeduction(domain.NewDeductionParams{
		AppraisalID: a.ID,
		Category:    domain.DeductionPaint,
		Description: "hood repaint",
		Value:       domain.MustMoney("1000.00", "BRL"),
		CreatedBy:   a.EvaluatorID,
	})
	require.NoError(t, err)
	require.NoError(t, a.AddDeduction(d))

	result, err := svc.Appraise(context.Background(), a, Options{})
	require.NoError(t, err)

	// net = 85000 - 1000 = 84000; suggested = 84000 * 0.75 = 63000.
	assert.Equal(t, "1000.00 BRL", result.TotalDeductions.String())
	assert.Equal(t, "8400.00 BRL", result.SafetyMargin.String())
	assert.Equal(t, "12600.00 BRL", result.ProfitMargin.String())
	assert.Equal(t, "63000.00 BRL", result.SuggestedValue.String())
	require.Len(t, result.Deductions, 1)
	assert.Equal(t, domain.DeductionPaint, result.Deductions[0].Category)
}

func TestAppraiseManualAdjustment(t *testing.T) {
	svc := testService(t, mock.New())
	a := testAppraisal(t)

	pct := decimal.RequireFromString("0.05")
	result, err := svc.Appraise(context.Background(), a, Options{AdjustmentPct: &pct})
	require.NoError(t, err)

	// suggested 63750, +5% = 3187.50, final 66937.50.
	require.NotNil(t, result.AdjustmentAmount)
	assert.Equal(t, "3187.50 BRL", result.AdjustmentAmount.String())
	assert.Equal(t, "66937.50 BRL", result.FinalValue.String())
	assert.Equal(t, "63750.00 BRL", result.SuggestedValue.String())
	assert.False(t, result.RequiresSeniorApproval, "adjustment at threshold does not need escalation")

	// Negative adjustments are symmetric.
	neg := decimal.RequireFromString("-0.05")
	result, err = svc.Appraise(context.Background(), a, Options{AdjustmentPct: &neg})
	require.NoError(t, err)
	assert.Equal(t, "60562.50 BRL", result.FinalValue.String())
}

func TestAppraiseAdjustmentOutOfRange(t *testing.T) {
	svc := testService(t, mock.New())
	a := testAppraisal(t)

	pct := decimal.RequireFromString("0.15")
	_, err := svc.Appraise(context.Background(), a, Options{AdjustmentPct: &pct})
	assert.Equal(t, domain.ERANGE, domain.ErrorCode(err))

	neg := decimal.RequireFromString("-0.15")
	_, err = svc.Appraise(context.Background(), a, Options{AdjustmentPct: &neg})
	assert.Equal(t, domain.ERANGE, domain.ErrorCode(err))
}

func TestAppraiseSeniorApprovalFlag(t *testing.T) {
	svc := testService(t, mock.New())
	a := testAppraisal(t)

	pct := decimal.RequireFromString("0.08")
	result, err := svc.Appraise(context.Background(), a, Options{AdjustmentPct: &pct})
	require.NoError(t, err)
	assert.True(t, result.RequiresSeniorApproval)
}

func TestAppraisePriceNotFound(t *testing.T) {
	prices := mock.New()
	prices.Err = pricing.ErrPriceNotFound

	svc := testService(t, prices)
	a := testAppraisal(t)

	_, err := svc.Appraise(context.Background(), a, Options{})
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	assert.Equal(t, 1, prices.LookupCalls)
}

func TestAppraiseNeverMutatesAppraisal(t *testing.T) {
	svc := testService(t, mock.New())
	a := testAppraisal(t)

	before := a.UpdatedAt
	_, err := svc.Appraise(context.Background(), a, Options{})
	require.NoError(t, err)

	assert.True(t, a.ReferencePrice.IsZero())
	assert.True(t, a.FinalValue.IsZero())
	assert.Equal(t, before, a.UpdatedAt)
	assert.Empty(t, a.Events())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default is valid", mutate: func(c *Config) {}},
		{name: "negative safety margin", mutate: func(c *Config) { c.SafetyMarginPct = decimal.RequireFromString("-0.01") }, wantErr: true},
		{name: "safety margin above half", mutate: func(c *Config) { c.SafetyMarginPct = decimal.RequireFromString("0.51") }, wantErr: true},
		{name: "profit margin above half", mutate: func(c *Config) { c.ProfitMarginPct = decimal.RequireFromString("0.51") }, wantErr: true},
		{name: "combined margins reach one", mutate: func(c *Config) {
			c.SafetyMarginPct = decimal.RequireFromString("0.5")
			c.ProfitMarginPct = decimal.RequireFromString("0.5")
		}, wantErr: true},
		{name: "max adjustment above one", mutate: func(c *Config) { c.MaxAdjustmentPct = decimal.RequireFromString("1.01") }, wantErr: true},
		{name: "threshold above max adjustment", mutate: func(c *Config) { c.SeniorApprovalThresholdPct = decimal.RequireFromString("0.2") }, wantErr: true},
		{name: "threshold ignored when escalation disabled", mutate: func(c *Config) {
			c.RequireSeniorApproval = false
			c.SeniorApprovalThresholdPct = decimal.RequireFromString("0.2")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
