package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dvnhat/shopchat/internal/models"
	"github.com/dvnhat/shopchat/internal/shipping"
)

// shippingStep aggregates cart weight and declared value, asks the rate
// provider for a quote, and stores the result. A provider outage must never
// block checkout: any failure degrades to the configured fallback fee and
// delivery estimate.
type shippingStep struct {
	deps *stepDeps
}

func (st *shippingStep) action() models.CheckoutAction { return models.ActionCalculateShipping }

func (st *shippingStep) validate(s models.SessionOrderState) *models.StepResult {
	if !s.Step.Reached(models.StepAddressSelected) || s.SelectedAddress == nil {
		res := models.Fail(models.FailureStatePrecondition, msgAddressRequired)
		return &res
	}
	return nil
}

func (st *shippingStep) execute(ctx context.Context, userID string, s models.SessionOrderState, params models.StepParams) (outcome, error) {
	cart, err := st.deps.store.GetCart(userID)
	if err != nil {
		return outcome{result: models.Fail(models.FailureNotFound, msgCartGone)}, nil
	}

	req := shipping.Request{
		Address:       *s.SelectedAddress,
		WeightGrams:   st.cartWeight(cart),
		DeclaredValue: cart.Subtotal(),
	}

	info := st.quoteWithFallback(ctx, req)
	result := models.Succeed(shippingMessage(info), map[string]any{
		"fee":            info.Fee,
		"service_type":   info.ServiceType,
		"estimated_days": info.EstimatedDays,
		"fallback":       info.Fallback,
	})
	return outcome{
		result: result,
		update: &SessionUpdate{Step: stepPtr(models.StepShippingCalculated), ShippingInfo: info},
	}, nil
}

// cartWeight sums per-line weight, substituting the configured default for
// lines with unknown weight and clamping the total to the configured minimum.
func (st *shippingStep) cartWeight(cart *models.Cart) int {
	var grams int
	for _, line := range cart.Lines {
		w := line.WeightGrams
		if w <= 0 {
			w = st.deps.cfg.DefaultItemWeightGrams
		}
		grams += w * line.Quantity
	}
	if grams < st.deps.cfg.MinChargeableWeightGrams {
		grams = st.deps.cfg.MinChargeableWeightGrams
	}
	return grams
}

// quoteWithFallback calls the rate provider and degrades to the fallback fee
// on any error or panic from the provider.
func (st *shippingStep) quoteWithFallback(ctx context.Context, req shipping.Request) *models.ShippingInfo {
	quote, err := safeQuote(ctx, st.deps.rates, req)
	if err != nil {
		slog.Warn("shipping rate provider unavailable, using fallback fee",
			"error", err, "fallback_fee", st.deps.cfg.FallbackShippingFee)
		return &models.ShippingInfo{
			Fee:           st.deps.cfg.FallbackShippingFee,
			ServiceType:   "standard",
			EstimatedDays: st.deps.cfg.FallbackEstimatedDays,
			Fallback:      true,
		}
	}
	return &models.ShippingInfo{
		Fee:           quote.Fee,
		ServiceType:   quote.ServiceType,
		EstimatedDays: quote.EstimatedDays,
	}
}

func safeQuote(ctx context.Context, provider shipping.RateProvider, req shipping.Request) (q shipping.Quote, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rate provider panicked: %v", r)
		}
	}()
	if provider == nil {
		return q, fmt.Errorf("no rate provider configured")
	}
	return provider.Quote(ctx, req)
}
