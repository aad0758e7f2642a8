package flow

import (
	"context"
	"testing"

	"github.com/dvnhat/shopchat/internal/models"
	"github.com/dvnhat/shopchat/internal/shipping"
	"github.com/dvnhat/shopchat/internal/testutil"
)

func TestSummaryTotalsAddUpExactly(t *testing.T) {
	st := testutil.SeededStore(t)
	rates := &testutil.FixedRateProvider{Result: shipping.Quote{Fee: 35000, ServiceType: "road", EstimatedDays: 2}}
	sessions := NewMemorySessionStore()
	cfg := DefaultConfig()
	cfg.ServiceFee = 5000
	e := NewEngine(sessions, st, rates, WithConfig(cfg))

	advanceTo(t, e, testutil.TestUserID, models.ActionSelectPayment)
	res := e.Handle(context.Background(), testutil.TestUserID, models.ActionShowSummary, models.StepParams{})
	if !res.Success {
		t.Fatalf("summary failed: %s", res.Message)
	}

	state := sessions.Get(testutil.TestUserID)
	s := state.OrderSummary
	if s == nil {
		t.Fatal("summary not stored in session")
	}
	// Seeded cart: 2 x 100,000 + 1 x 250,000.
	if s.Subtotal != 450000 {
		t.Errorf("expected subtotal 450000, got %d", s.Subtotal)
	}
	if s.ShippingFee != 35000 {
		t.Errorf("expected shipping fee 35000, got %d", s.ShippingFee)
	}
	if s.ServiceFee != 5000 {
		t.Errorf("expected service fee 5000, got %d", s.ServiceFee)
	}
	if want := s.Subtotal + s.ShippingFee + s.ServiceFee; s.TotalAmount != want {
		t.Errorf("total %d does not equal subtotal+shipping+service %d", s.TotalAmount, want)
	}
	if state.Step != models.StepSummaryShown {
		t.Errorf("expected summary_shown, got %v", state.Step)
	}
}

func TestSummaryRequiresPaymentFirst(t *testing.T) {
	st := testutil.SeededStore(t)
	e, _ := newTestEngine(t, st, &testutil.FailingRateProvider{})
	advanceTo(t, e, testutil.TestUserID, models.ActionCalculateShipping)

	res := e.Handle(context.Background(), testutil.TestUserID, models.ActionShowSummary, models.StepParams{})
	if res.Success || res.Kind != models.FailureStatePrecondition {
		t.Fatalf("summary before payment should fail the precondition, got %+v", res)
	}
}

func TestSummaryFailsWhenCartVanished(t *testing.T) {
	st := testutil.SeededStore(t)
	e, _ := newTestEngine(t, st, &testutil.FailingRateProvider{})
	advanceTo(t, e, testutil.TestUserID, models.ActionSelectPayment)

	if err := st.DeleteCart(testutil.TestUserID); err != nil {
		t.Fatal(err)
	}
	res := e.Handle(context.Background(), testutil.TestUserID, models.ActionShowSummary, models.StepParams{})
	if res.Success || res.Kind != models.FailureNotFound {
		t.Fatalf("summary over a vanished cart should report not found, got %+v", res)
	}
}
