package flow

import (
	"context"
	"testing"

	"github.com/dvnhat/shopchat/internal/models"
	"github.com/dvnhat/shopchat/internal/store"
	"github.com/dvnhat/shopchat/internal/testutil"
)

func TestInitiateEmptyCartFails(t *testing.T) {
	st := store.NewMemoryStore()
	testutil.MustSaveUser(t, st, models.User{ID: "u1", Name: "A"})
	e, _ := newTestEngine(t, st, &testutil.FailingRateProvider{})

	res := e.Handle(context.Background(), "u1", models.ActionInitiateOrder, models.StepParams{})
	if res.Success {
		t.Fatal("initiate should fail on an empty cart")
	}
	if res.Kind != models.FailureValidation {
		t.Errorf("expected validation failure, got %q", res.Kind)
	}
}

func TestInitiateCleanCartAdvancesToValidated(t *testing.T) {
	st := testutil.SeededStore(t)
	e, sessions := newTestEngine(t, st, &testutil.FailingRateProvider{})

	res := e.Handle(context.Background(), testutil.TestUserID, models.ActionInitiateOrder, models.StepParams{})
	if !res.Success {
		t.Fatalf("initiate failed: %s", res.Message)
	}
	state := sessions.Get(testutil.TestUserID)
	if state.Step != models.StepCartValidated {
		t.Errorf("expected cart_validated, got %v", state.Step)
	}
	if state.CartValidation == nil || !state.CartValidation.Clean {
		t.Error("clean cart should store a clean validation")
	}
	if got, _ := res.Data["subtotal"].(int64); got != 450000 {
		t.Errorf("expected subtotal 450000, got %v", res.Data["subtotal"])
	}
}

// TestInitiateAutoRepair checks the documented repair policy: a line wanting
// five units with two available is clamped to two, a line whose product has
// zero availability is removed, and one line remains.
func TestInitiateAutoRepair(t *testing.T) {
	st := store.NewMemoryStore()
	testutil.MustSaveUser(t, st, models.User{ID: "u1", Name: "A"})
	testutil.MustSaveProduct(t, st, models.Product{ID: "p-low", Name: "Low Stock", Price: 10000, Stock: 2, Active: true})
	testutil.MustSaveProduct(t, st, models.Product{ID: "p-out", Name: "Sold Out", Price: 20000, Stock: 0, Active: true})
	testutil.MustSaveCart(t, st, models.Cart{
		UserID: "u1",
		Lines: []models.CartLine{
			{ProductID: "p-low", Name: "Low Stock", Price: 10000, Quantity: 5},
			{ProductID: "p-out", Name: "Sold Out", Price: 20000, Quantity: 1},
		},
	})

	e, sessions := newTestEngine(t, st, &testutil.FailingRateProvider{})
	res := e.Handle(context.Background(), "u1", models.ActionInitiateOrder, models.StepParams{})
	if !res.Success {
		t.Fatalf("repairable cart should not hard-fail: %s", res.Message)
	}

	if got, _ := res.Data["remaining_count"].(int); got != 1 {
		t.Errorf("expected remaining_count 1, got %v", res.Data["remaining_count"])
	}

	cart, err := st.GetCart("u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(cart.Lines) != 1 {
		t.Fatalf("expected 1 repaired line, got %d", len(cart.Lines))
	}
	if cart.Lines[0].ProductID != "p-low" || cart.Lines[0].Quantity != 2 {
		t.Errorf("expected p-low clamped to 2, got %+v", cart.Lines[0])
	}

	state := sessions.Get("u1")
	if state.Step != models.StepInitiated {
		t.Errorf("repaired cart should stop at initiated pending confirmation, got %v", state.Step)
	}
	if state.CartValidation.Clean {
		t.Error("repaired validation must not be marked clean")
	}
	if len(state.CartValidation.Removed) != 1 || len(state.CartValidation.Adjusted) != 1 {
		t.Errorf("expected 1 removed and 1 adjusted, got %d/%d",
			len(state.CartValidation.Removed), len(state.CartValidation.Adjusted))
	}
}

func TestInitiateAllLinesUnavailableFails(t *testing.T) {
	st := store.NewMemoryStore()
	testutil.MustSaveUser(t, st, models.User{ID: "u1", Name: "A"})
	testutil.MustSaveProduct(t, st, models.Product{ID: "p-inactive", Name: "Hidden", Price: 5000, Stock: 9, Active: false})
	testutil.MustSaveCart(t, st, models.Cart{
		UserID: "u1",
		Lines: []models.CartLine{
			{ProductID: "p-inactive", Name: "Hidden", Price: 5000, Quantity: 1},
			{ProductID: "p-ghost", Name: "Ghost", Price: 7000, Quantity: 1},
		},
	})

	e, _ := newTestEngine(t, st, &testutil.FailingRateProvider{})
	res := e.Handle(context.Background(), "u1", models.ActionInitiateOrder, models.StepParams{})
	if res.Success {
		t.Fatal("fully unavailable cart should fail")
	}
}

// Initiate is the single re-entry point: it wipes whatever came before.
func TestInitiateResetsPriorSession(t *testing.T) {
	st := testutil.SeededStore(t)
	e, sessions := newTestEngine(t, st, &testutil.FailingRateProvider{})
	advanceTo(t, e, testutil.TestUserID, models.ActionShowSummary)

	res := e.Handle(context.Background(), testutil.TestUserID, models.ActionInitiateOrder, models.StepParams{})
	if !res.Success {
		t.Fatalf("re-initiate failed: %s", res.Message)
	}
	state := sessions.Get(testutil.TestUserID)
	if state.OrderSummary != nil || state.SelectedAddress != nil || state.ShippingInfo != nil {
		t.Error("re-initiation should wipe the previous session fields")
	}
	if state.Step != models.StepCartValidated {
		t.Errorf("expected cart_validated after restart, got %v", state.Step)
	}
}
