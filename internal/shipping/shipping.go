// Package shipping defines the shipping rate provider contract consumed by
// the checkout workflow, plus a static table-based provider for deployments
// without a live carrier integration.
package shipping

import (
	"context"
	"log/slog"

	"github.com/dvnhat/shopchat/internal/models"
)

// Request describes one shipment to quote.
type Request struct {
	Address       models.Address
	WeightGrams   int
	DeclaredValue int64
}

// Quote is a successful rate quote.
type Quote struct {
	Fee           int64
	ServiceType   string
	EstimatedDays int
}

// RateProvider quotes a shipping fee for a request. Implementations may block
// on network calls and may fail; the workflow degrades to a configured
// fallback fee on any error.
type RateProvider interface {
	Quote(ctx context.Context, req Request) (Quote, error)
}

// StaticProvider quotes from a fixed base fee plus a per-kilogram rate. It
// never fails and is the default provider when no carrier is configured.
type StaticProvider struct {
	BaseFee     int64
	PerKgFee    int64
	ServiceType string
	TransitDays int
}

// NewStaticProvider creates a provider with the standard domestic rates.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		BaseFee:     22000,
		PerKgFee:    5000,
		ServiceType: "road",
		TransitDays: 4,
	}
}

// Quote computes the fee from the request weight, rounding partial kilograms
// up.
func (p *StaticProvider) Quote(ctx context.Context, req Request) (Quote, error) {
	kg := int64((req.WeightGrams + 999) / 1000)
	quote := Quote{
		Fee:           p.BaseFee + kg*p.PerKgFee,
		ServiceType:   p.ServiceType,
		EstimatedDays: p.TransitDays,
	}
	slog.Debug("static shipping quote", "weight_grams", req.WeightGrams, "fee", quote.Fee)
	return quote, nil
}
