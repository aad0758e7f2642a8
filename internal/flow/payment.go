package flow

import (
	"context"
	"fmt"

	"github.com/dvnhat/shopchat/internal/models"
)

// paymentStep selects the payment method. Invoked without a method parameter
// it returns a read-only prompt listing the supported methods and mutates
// nothing; methods outside the closed set are rejected.
type paymentStep struct {
	deps *stepDeps
}

func (st *paymentStep) action() models.CheckoutAction { return models.ActionSelectPayment }

func (st *paymentStep) validate(s models.SessionOrderState) *models.StepResult {
	if !s.Step.Reached(models.StepShippingCalculated) {
		res := models.Fail(models.FailureStatePrecondition,
			"Please calculate shipping before choosing a payment method.")
		return &res
	}
	return nil
}

func (st *paymentStep) execute(ctx context.Context, userID string, s models.SessionOrderState, params models.StepParams) (outcome, error) {
	if params.PaymentMethod == "" {
		result := models.Succeed(paymentPromptMessage(), map[string]any{
			"methods": models.SupportedPaymentMethods(),
		})
		return outcome{result: result}, nil
	}

	if !models.IsValidPaymentMethod(params.PaymentMethod) {
		return outcome{result: models.Fail(models.FailureValidation,
			fmt.Sprintf("Payment method %q is not supported.\n%s", params.PaymentMethod, paymentPromptMessage()))}, nil
	}

	pm := params.PaymentMethod
	result := models.Succeed(paymentSelectedMessage(pm), map[string]any{
		"payment_method": pm,
	})
	return outcome{
		result: result,
		update: &SessionUpdate{Step: stepPtr(models.StepPaymentSelected), PaymentMethod: &pm},
	}, nil
}
