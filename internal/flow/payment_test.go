package flow

import (
	"context"
	"reflect"
	"testing"

	"github.com/dvnhat/shopchat/internal/models"
	"github.com/dvnhat/shopchat/internal/testutil"
)

func TestPaymentPromptIsReadOnly(t *testing.T) {
	st := testutil.SeededStore(t)
	e, sessions := newTestEngine(t, st, &testutil.FailingRateProvider{})
	advanceTo(t, e, testutil.TestUserID, models.ActionCalculateShipping)

	before := sessions.Get(testutil.TestUserID)
	res := e.Handle(context.Background(), testutil.TestUserID, models.ActionSelectPayment, models.StepParams{})
	if !res.Success {
		t.Fatalf("payment prompt should succeed: %s", res.Message)
	}
	methods, ok := res.Data["methods"].([]models.PaymentMethod)
	if !ok || len(methods) != 2 {
		t.Errorf("prompt should list the supported methods, got %v", res.Data["methods"])
	}
	after := sessions.Get(testutil.TestUserID)
	if !reflect.DeepEqual(before, after) {
		t.Error("prompt-only invocation must not mutate the session")
	}
	if after.Step != models.StepShippingCalculated {
		t.Errorf("prompt must not advance the step, got %v", after.Step)
	}
}

func TestPaymentInvalidMethodRejected(t *testing.T) {
	st := testutil.SeededStore(t)
	e, sessions := newTestEngine(t, st, &testutil.FailingRateProvider{})
	advanceTo(t, e, testutil.TestUserID, models.ActionCalculateShipping)

	res := e.Handle(context.Background(), testutil.TestUserID, models.ActionSelectPayment,
		models.StepParams{PaymentMethod: models.PaymentMethod("bank_wire")})
	if res.Success {
		t.Fatal("unsupported payment method should be rejected")
	}
	if res.Kind != models.FailureValidation {
		t.Errorf("expected validation failure, got %q", res.Kind)
	}
	if got := sessions.Get(testutil.TestUserID).PaymentMethod; got != "" {
		t.Errorf("rejected method must not be stored, got %q", got)
	}
}

func TestPaymentValidMethodAdvances(t *testing.T) {
	st := testutil.SeededStore(t)
	e, sessions := newTestEngine(t, st, &testutil.FailingRateProvider{})
	advanceTo(t, e, testutil.TestUserID, models.ActionCalculateShipping)

	res := e.Handle(context.Background(), testutil.TestUserID, models.ActionSelectPayment,
		models.StepParams{PaymentMethod: models.PaymentOnlineGateway})
	if !res.Success {
		t.Fatalf("valid method rejected: %s", res.Message)
	}
	state := sessions.Get(testutil.TestUserID)
	if state.Step != models.StepPaymentSelected {
		t.Errorf("expected payment_selected, got %v", state.Step)
	}
	if state.PaymentMethod != models.PaymentOnlineGateway {
		t.Errorf("method not stored, got %q", state.PaymentMethod)
	}
}
