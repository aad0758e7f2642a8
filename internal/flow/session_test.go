package flow

import (
	"testing"
	"time"

	"github.com/dvnhat/shopchat/internal/models"
)

func TestSessionStoreLazyDefault(t *testing.T) {
	s := NewMemorySessionStore()
	state := s.Get("u1")
	if state.Step != models.StepIdle {
		t.Errorf("expected idle step, got %v", state.Step)
	}
	if state.CartValidation != nil || state.SelectedAddress != nil || state.ShippingInfo != nil ||
		state.OrderSummary != nil || state.PaymentMethod != "" || state.CreatedOrderID != "" {
		t.Error("default state should have all fields empty")
	}
}

func TestSessionStoreUpdateMergesPartially(t *testing.T) {
	s := NewMemorySessionStore()
	addr := &models.Address{Street: "1 Main St", City: "Hanoi"}
	s.Update("u1", SessionUpdate{Step: stepPtr(models.StepAddressSelected), SelectedAddress: addr})

	pm := models.PaymentCOD
	s.Update("u1", SessionUpdate{PaymentMethod: &pm})

	state := s.Get("u1")
	if state.Step != models.StepAddressSelected {
		t.Errorf("step overwritten by partial update: %v", state.Step)
	}
	if state.SelectedAddress == nil || state.SelectedAddress.Street != "1 Main St" {
		t.Error("address lost by partial update")
	}
	if state.PaymentMethod != models.PaymentCOD {
		t.Errorf("payment method not merged: %q", state.PaymentMethod)
	}
}

func TestSessionStoreResetAndClear(t *testing.T) {
	s := NewMemorySessionStore()
	s.Update("u1", SessionUpdate{Step: stepPtr(models.StepSummaryShown)})

	s.Reset("u1")
	if got := s.Get("u1").Step; got != models.StepIdle {
		t.Errorf("reset should restore idle, got %v", got)
	}

	s.Update("u1", SessionUpdate{Step: stepPtr(models.StepCartValidated)})
	s.Clear("u1")
	if got := s.Get("u1").Step; got != models.StepIdle {
		t.Errorf("clear should remove the entry, got %v", got)
	}
}

func TestSessionStoreHasReached(t *testing.T) {
	s := NewMemorySessionStore()
	if s.HasReached("u1", models.StepInitiated) {
		t.Error("fresh session should not have reached initiated")
	}
	s.Update("u1", SessionUpdate{Step: stepPtr(models.StepShippingCalculated)})
	if !s.HasReached("u1", models.StepAddressSelected) {
		t.Error("shipping_calculated should have reached address_selected")
	}
	if s.HasReached("u1", models.StepSummaryShown) {
		t.Error("shipping_calculated should not have reached summary_shown")
	}
}

func TestSessionStoreSweepExpired(t *testing.T) {
	s := NewMemorySessionStore()
	current := time.Now()
	s.now = func() time.Time { return current }

	s.Update("stale", SessionUpdate{Step: stepPtr(models.StepCartValidated)})
	current = current.Add(time.Hour)
	s.Update("fresh", SessionUpdate{Step: stepPtr(models.StepCartValidated)})

	swept := s.SweepExpired(30 * time.Minute)
	if len(swept) != 1 || swept[0] != "stale" {
		t.Fatalf("expected only the stale session swept, got %v", swept)
	}
	if got := s.Get("stale").Step; got != models.StepIdle {
		t.Error("stale session should be gone")
	}
	if got := s.Get("fresh").Step; got != models.StepCartValidated {
		t.Error("fresh session should survive the sweep")
	}
}
