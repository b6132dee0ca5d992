// Package mock is a pricing provider for tests and development.
package mock

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/pbaptista/avalia/internal/domain"
	"github.com/pbaptista/avalia/internal/pricing"
)

// Provider is a mock pricing provider.
type Provider struct {
	// Configurable responses for testing
	Quote *pricing.Quote
	Err   error

	// Call tracking for testing
	LookupCalls int
}

// New creates a mock provider with a default canned quote.
func New() *Provider {
	return &Provider{}
}

// Lookup returns the configured quote or error; with neither set it returns
// a default canned quote in BRL.
func (p *Provider) Lookup(_ context.Context, _ domain.Vehicle) (*pricing.Quote, error) {
	p.LookupCalls++

	if p.Err != nil {
		return nil, p.Err
	}
	if p.Quote != nil {
		return p.Quote, nil
	}

	return &pricing.Quote{
		ReferencePrice: domain.MustMoney("100000.00", "BRL"),
		Liquidity:      decimal.RequireFromString("0.85"),
	}, nil
}
