package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		wantErr  bool
		want     string
	}{
		{name: "valid amount", amount: "1234.5", currency: "BRL", want: "1234.50 BRL"},
		{name: "rounds to display scale", amount: "10.005", currency: "BRL", want: "10.01 BRL"},
		{name: "negative amount allowed", amount: "-5.25", currency: "USD", want: "-5.25 USD"},
		{name: "invalid currency", amount: "1", currency: "REAL", wantErr: true},
		{name: "empty currency", amount: "1", currency: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMoney(decimal.RequireFromString(tt.amount), tt.currency)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, EINVALID, ErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.String())
		})
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	brl := MustMoney("100.00", "BRL")
	usd := MustMoney("100.00", "USD")

	_, err := brl.Add(usd)
	assert.Equal(t, EINVALID, ErrorCode(err))

	_, err = brl.Sub(usd)
	assert.Equal(t, EINVALID, ErrorCode(err))

	_, err = brl.Cmp(usd)
	assert.Equal(t, EINVALID, ErrorCode(err))
}

func TestMoneyAddCommutativeAssociative(t *testing.T) {
	a := MustMoney("10.10", "BRL")
	b := MustMoney("20.25", "BRL")
	c := MustMoney("0.65", "BRL")

	ab, err := a.Add(b)
	require.NoError(t, err)
	ba, err := b.Add(a)
	require.NoError(t, err)
	assert.True(t, ab.Equal(ba), "addition must be commutative")

	abc1, err := ab.Add(c)
	require.NoError(t, err)
	bc, err := b.Add(c)
	require.NoError(t, err)
	abc2, err := a.Add(bc)
	require.NoError(t, err)
	assert.True(t, abc1.Equal(abc2), "addition must be associative")
	assert.Equal(t, "31.00 BRL", abc1.String())
}

func TestMoneyMulPercent(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		pct    string
		want   string
	}{
		{name: "ten percent", amount: "85000.00", pct: "0.10", want: "8500.00 BRL"},
		{name: "rounds half-up", amount: "10.05", pct: "0.5", want: "5.03 BRL"},
		{name: "carries four decimals before rounding", amount: "333.33", pct: "0.1", want: "33.33 BRL"},
		{name: "negative percentage", amount: "100.00", pct: "-0.05", want: "-5.00 BRL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := MustMoney(tt.amount, "BRL")
			got := m.MulPercent(decimal.RequireFromString(tt.pct))
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestZeroMoney(t *testing.T) {
	z := ZeroMoney("BRL")
	assert.True(t, z.IsZero())
	assert.False(t, z.IsPositive())

	sum, err := z.Add(MustMoney("42.00", "BRL"))
	require.NoError(t, err)
	assert.Equal(t, "42.00 BRL", sum.String())
}
