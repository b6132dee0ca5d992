// Package domain contains the core appraisal business types.
//
// This file defines the Vehicle descriptor: the immutable identification of
// the vehicle under appraisal.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// Fuel Kind
// =============================================================================

// FuelKind identifies the vehicle's fuel system.
type FuelKind string

const (
	FuelFlex       FuelKind = "flex"
	FuelGasoline   FuelKind = "gasoline"
	FuelEthanol    FuelKind = "ethanol"
	FuelDiesel     FuelKind = "diesel"
	FuelElectric   FuelKind = "electric"
	FuelHybrid     FuelKind = "hybrid"
	FuelNaturalGas FuelKind = "natural_gas"
)

// String returns the string representation of the fuel kind.
func (f FuelKind) String() string {
	return string(f)
}

// IsValid returns true if the fuel kind is a recognized value.
func (f FuelKind) IsValid() bool {
	switch f {
	case FuelFlex, FuelGasoline, FuelEthanol, FuelDiesel,
		FuelElectric, FuelHybrid, FuelNaturalGas:
		return true
	}
	return false
}

// =============================================================================
// Vehicle Descriptor
// =============================================================================

// Vehicle identifies the vehicle under appraisal. It is immutable once
// constructed; appraisal mutations never touch it.
type Vehicle struct {
	Brand           string
	Model           string
	Version         string
	ManufactureYear int
	ModelYear       int
	Color           string
	Fuel            FuelKind
}

// NewVehicle validates and constructs a vehicle descriptor.
func NewVehicle(brand, model, version string, manufactureYear, modelYear int, color string, fuel FuelKind) (Vehicle, error) {
	const op = "vehicle.new"

	if strings.TrimSpace(brand) == "" {
		return Vehicle{}, Invalid(op, "brand is required")
	}
	if strings.TrimSpace(model) == "" {
		return Vehicle{}, Invalid(op, "model is required")
	}
	if manufactureYear < 1900 || manufactureYear > time.Now().Year()+1 {
		return Vehicle{}, Invalid(op, fmt.Sprintf("manufacture year %d out of range", manufactureYear))
	}
	// Model year may run one ahead of the manufacture year, never behind.
	if modelYear < manufactureYear || modelYear > manufactureYear+1 {
		return Vehicle{}, Invalid(op, fmt.Sprintf("model year %d inconsistent with manufacture year %d", modelYear, manufactureYear))
	}
	if !fuel.IsValid() {
		return Vehicle{}, Invalid(op, fmt.Sprintf("unknown fuel kind %q", fuel))
	}

	return Vehicle{
		Brand:           strings.TrimSpace(brand),
		Model:           strings.TrimSpace(model),
		Version:         strings.TrimSpace(version),
		ManufactureYear: manufactureYear,
		ModelYear:       modelYear,
		Color:           strings.TrimSpace(color),
		Fuel:            fuel,
	}, nil
}

// Label renders a short human-readable identification,
// e.g. "Fiat Argo Drive 1.0 2021/2022".
func (v Vehicle) Label() string {
	parts := []string{v.Brand, v.Model}
	if v.Version != "" {
		parts = append(parts, v.Version)
	}
	parts = append(parts, fmt.Sprintf("%d/%d", v.ManufactureYear, v.ModelYear))
	return strings.Join(parts, " ")
}
