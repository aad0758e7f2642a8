package flow

import (
	"context"
	"testing"

	"github.com/dvnhat/shopchat/internal/models"
	"github.com/dvnhat/shopchat/internal/shipping"
	"github.com/dvnhat/shopchat/internal/testutil"
)

func TestShippingUsesProviderQuote(t *testing.T) {
	st := testutil.SeededStore(t)
	rates := &testutil.FixedRateProvider{Result: shipping.Quote{Fee: 41000, ServiceType: "express", EstimatedDays: 1}}
	e, sessions := newTestEngine(t, st, rates)
	advanceTo(t, e, testutil.TestUserID, models.ActionSelectAddress)

	res := e.Handle(context.Background(), testutil.TestUserID, models.ActionCalculateShipping, models.StepParams{})
	if !res.Success {
		t.Fatalf("shipping failed: %s", res.Message)
	}
	info := sessions.Get(testutil.TestUserID).ShippingInfo
	if info == nil {
		t.Fatal("shipping info not stored")
	}
	if info.Fee != 41000 || info.ServiceType != "express" || info.EstimatedDays != 1 {
		t.Errorf("provider quote not stored: %+v", info)
	}
	if info.Fallback {
		t.Error("a live quote must not be flagged as fallback")
	}
}

func TestShippingFallsBackOnProviderError(t *testing.T) {
	st := testutil.SeededStore(t)
	rates := &testutil.FailingRateProvider{}
	e, sessions := newTestEngine(t, st, rates)
	advanceTo(t, e, testutil.TestUserID, models.ActionSelectAddress)

	res := e.Handle(context.Background(), testutil.TestUserID, models.ActionCalculateShipping, models.StepParams{})
	if !res.Success {
		t.Fatalf("provider outage must not block checkout: %s", res.Message)
	}
	if rates.Calls != 1 {
		t.Errorf("expected the provider to be consulted once, got %d", rates.Calls)
	}
	info := sessions.Get(testutil.TestUserID).ShippingInfo
	if info.Fee != 29000 {
		t.Errorf("expected fallback fee 29000, got %d", info.Fee)
	}
	if !info.Fallback {
		t.Error("fallback quote must be flagged")
	}
	if info.EstimatedDays != 5 {
		t.Errorf("expected fallback estimate 5 days, got %d", info.EstimatedDays)
	}
}

type panickingRateProvider struct{}

func (panickingRateProvider) Quote(ctx context.Context, req shipping.Request) (shipping.Quote, error) {
	panic("carrier client bug")
}

func TestShippingSurvivesProviderPanic(t *testing.T) {
	st := testutil.SeededStore(t)
	e, sessions := newTestEngine(t, st, panickingRateProvider{})
	advanceTo(t, e, testutil.TestUserID, models.ActionSelectAddress)

	res := e.Handle(context.Background(), testutil.TestUserID, models.ActionCalculateShipping, models.StepParams{})
	if !res.Success {
		t.Fatalf("provider panic must degrade to the fallback quote: %s", res.Message)
	}
	if info := sessions.Get(testutil.TestUserID).ShippingInfo; !info.Fallback {
		t.Error("panicking provider should produce the fallback quote")
	}
}

func TestShippingNilProviderFallsBack(t *testing.T) {
	st := testutil.SeededStore(t)
	e, sessions := newTestEngine(t, st, nil)
	advanceTo(t, e, testutil.TestUserID, models.ActionSelectAddress)

	res := e.Handle(context.Background(), testutil.TestUserID, models.ActionCalculateShipping, models.StepParams{})
	if !res.Success {
		t.Fatalf("missing provider must degrade to the fallback quote: %s", res.Message)
	}
	if info := sessions.Get(testutil.TestUserID).ShippingInfo; !info.Fallback || info.Fee != 29000 {
		t.Errorf("expected fallback quote, got %+v", info)
	}
}

func TestCartWeightDefaultsAndMinimum(t *testing.T) {
	cfg := DefaultConfig()
	step := &shippingStep{deps: &stepDeps{cfg: cfg}}

	// Two 100g items are below the 500g chargeable minimum.
	light := &models.Cart{Lines: []models.CartLine{{Quantity: 2, WeightGrams: 100}}}
	if got := step.cartWeight(light); got != cfg.MinChargeableWeightGrams {
		t.Errorf("expected clamp to %d, got %d", cfg.MinChargeableWeightGrams, got)
	}

	// Unknown weight lines use the configured default per item.
	unknown := &models.Cart{Lines: []models.CartLine{{Quantity: 3, WeightGrams: 0}}}
	if got := step.cartWeight(unknown); got != 3*cfg.DefaultItemWeightGrams {
		t.Errorf("expected 3x default weight, got %d", got)
	}

	heavy := &models.Cart{Lines: []models.CartLine{
		{Quantity: 2, WeightGrams: 300},
		{Quantity: 1, WeightGrams: 800},
	}}
	if got := step.cartWeight(heavy); got != 1400 {
		t.Errorf("expected 1400g, got %d", got)
	}
}
