// Package table implements the pricing.Provider contract over an embedded
// reference-price table. It is the development default; production
// deployments point the same interface at a live price feed.
package table

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pbaptista/avalia/internal/domain"
	"github.com/pbaptista/avalia/internal/pricing"
)

//go:embed prices.json
var priceData embed.FS

// entry is one row of the embedded reference table.
type entry struct {
	Brand     string `json:"brand"`
	Model     string `json:"model"`
	YearFrom  int    `json:"year_from"`
	YearTo    int    `json:"year_to"`
	Price     string `json:"price"`
	Liquidity string `json:"liquidity"`
}

// Provider resolves quotes from the embedded table.
type Provider struct {
	entries  []entry
	currency string
	logger   *slog.Logger
}

// New loads the embedded price table.
func New(currency string, logger *slog.Logger) (*Provider, error) {
	raw, err := priceData.ReadFile("prices.json")
	if err != nil {
		return nil, fmt.Errorf("read embedded price table: %w", err)
	}

	var entries []entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse embedded price table: %w", err)
	}

	if currency == "" {
		currency = "BRL"
	}

	logger.Info("Loaded reference price table", "entries", len(entries))

	return &Provider{
		entries:  entries,
		currency: currency,
		logger:   logger,
	}, nil
}

// Lookup matches brand and model case-insensitively and the model year
// against the entry's year range.
func (p *Provider) Lookup(_ context.Context, vehicle domain.Vehicle) (*pricing.Quote, error) {
	for _, e := range p.entries {
		if !strings.EqualFold(e.Brand, vehicle.Brand) || !strings.EqualFold(e.Model, vehicle.Model) {
			continue
		}
		if vehicle.ModelYear < e.YearFrom || vehicle.ModelYear > e.YearTo {
			continue
		}

		amount, err := decimal.NewFromString(e.Price)
		if err != nil {
			return nil, fmt.Errorf("malformed price for %s %s: %w", e.Brand, e.Model, err)
		}
		liquidity, err := decimal.NewFromString(e.Liquidity)
		if err != nil {
			return nil, fmt.Errorf("malformed liquidity for %s %s: %w", e.Brand, e.Model, err)
		}

		price, err := domain.NewMoney(amount, p.currency)
		if err != nil {
			return nil, err
		}

		return &pricing.Quote{
			ReferencePrice: price,
			Liquidity:      liquidity,
		}, nil
	}

	p.logger.Debug("Vehicle not in reference table",
		"brand", vehicle.Brand,
		"model", vehicle.Model,
		"model_year", vehicle.ModelYear,
	)
	return nil, pricing.ErrPriceNotFound
}
