// Package pricing defines the reference-price lookup contract the valuation
// pipeline depends on, along with shared types.
//
// Implementations:
// - table: embedded reference-price table (development default)
// - mock: canned quotes for tests
package pricing

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/pbaptista/avalia/internal/domain"
)

// ErrPriceNotFound is returned when no reference price exists for a vehicle.
// Absence is a valid outcome the valuation pipeline must handle; it is not
// an infrastructure failure.
var ErrPriceNotFound = errors.New("no reference price for vehicle")

// Quote is the market data resolved for one vehicle descriptor.
type Quote struct {
	// ReferencePrice is the market reference price for the vehicle.
	ReferencePrice domain.Money

	// Liquidity is the resalability factor in [0, 1] applied to the
	// reference price to obtain the base value.
	Liquidity decimal.Decimal
}

// Provider resolves market data for vehicle descriptors.
type Provider interface {
	// Lookup returns the quote for the given vehicle.
	// Returns ErrPriceNotFound when the vehicle is not priced.
	Lookup(ctx context.Context, vehicle domain.Vehicle) (*Quote, error)
}
