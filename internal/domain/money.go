// Package domain contains the core appraisal business types.
//
// This file defines the Money value object used for every monetary field in
// the engine. Amounts are exact decimals (no floats anywhere in money math)
// tagged with a 3-letter currency code. Display scale is 2 decimals;
// intermediate percentage math is carried at 4 decimals before rounding.
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// MoneyScale is the display/storage scale for monetary amounts.
	MoneyScale = 2

	// moneyCalcScale is the scale used for intermediate percentage math
	// before rounding back to MoneyScale.
	moneyCalcScale = 4
)

// Money is an exact decimal amount in a specific currency.
// The zero value is an invalid Money (empty currency); construct with
// NewMoney or ZeroMoney.
type Money struct {
	Amount   decimal.Decimal
	Currency string // ISO 4217 code, e.g. "BRL"
}

// NewMoney creates a Money from a decimal amount and currency code.
// The amount is rounded half-up to the display scale.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if len(currency) != 3 {
		return Money{}, Invalid("money.new", fmt.Sprintf("invalid currency code %q", currency))
	}
	return Money{Amount: amount.Round(MoneyScale), Currency: currency}, nil
}

// MustMoney is like NewMoney but panics on an invalid currency.
// Intended for constants and tests.
func MustMoney(amount string, currency string) Money {
	m, err := NewMoney(decimal.RequireFromString(amount), currency)
	if err != nil {
		panic(err)
	}
	return m
}

// ZeroMoney returns the zero amount in the given currency.
func ZeroMoney(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

// sameCurrency fails when two amounts are in different currencies.
// All Money arithmetic goes through this check.
func (m Money) sameCurrency(op string, other Money) error {
	if m.Currency != other.Currency {
		return Invalid(op, fmt.Sprintf("currency mismatch: %s vs %s", m.Currency, other.Currency))
	}
	return nil
}

// Add returns m + other. Fails if the currencies differ.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency("money.add", other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Sub returns m - other. Fails if the currencies differ.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency("money.sub", other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}, nil
}

// MulPercent returns m × pct where pct is a fraction (0.10 = 10%).
// The intermediate product is kept at 4 decimals, then rounded half-up
// to the display scale.
func (m Money) MulPercent(pct decimal.Decimal) Money {
	raw := m.Amount.Mul(pct).Round(moneyCalcScale)
	return Money{Amount: raw.Round(MoneyScale), Currency: m.Currency}
}

// Cmp compares two amounts: -1 if m < other, 0 if equal, +1 if m > other.
// Fails if the currencies differ.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.sameCurrency("money.cmp", other); err != nil {
		return 0, err
	}
	return m.Amount.Cmp(other.Amount), nil
}

// Equal reports whether both amount and currency match.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.Amount.IsPositive()
}

// IsNegative reports whether the amount is strictly less than zero.
func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

// String renders the amount at display scale with its currency code,
// e.g. "1234.50 BRL".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(MoneyScale), m.Currency)
}
