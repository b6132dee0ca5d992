package table

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaptista/avalia/internal/domain"
	"github.com/pbaptista/avalia/internal/pricing"
)

func testVehicle(t *testing.T, brand, model string, modelYear int) domain.Vehicle {
	t.Helper()
	v, err := domain.NewVehicle(brand, model, "", modelYear-1, modelYear, "prata", domain.FuelFlex)
	require.NoError(t, err)
	return v
}

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New("BRL", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return p
}

func TestProvider_Lookup(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	t.Run("known vehicle", func(t *testing.T) {
		quote, err := p.Lookup(ctx, testVehicle(t, "Fiat", "Argo", 2022))
		require.NoError(t, err)
		assert.Equal(t, "68900.00", quote.ReferencePrice.Amount.StringFixed(2))
		assert.Equal(t, "BRL", quote.ReferencePrice.Currency)
		assert.Equal(t, "0.88", quote.Liquidity.String())
	})

	t.Run("brand and model match case-insensitively", func(t *testing.T) {
		quote, err := p.Lookup(ctx, testVehicle(t, "FIAT", "argo", 2022))
		require.NoError(t, err)
		assert.Equal(t, "68900.00", quote.ReferencePrice.Amount.StringFixed(2))
	})

	t.Run("model year outside range", func(t *testing.T) {
		_, err := p.Lookup(ctx, testVehicle(t, "Volkswagen", "Gol", 2025))
		assert.ErrorIs(t, err, pricing.ErrPriceNotFound)
	})

	t.Run("unknown model", func(t *testing.T) {
		_, err := p.Lookup(ctx, testVehicle(t, "Fiat", "Uno", 2019))
		assert.ErrorIs(t, err, pricing.ErrPriceNotFound)
	})
}
