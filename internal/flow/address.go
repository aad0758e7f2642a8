package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvnhat/shopchat/internal/models"
)

// addressStep stores the shopper's default profile address as the shipping
// destination. Multi-address selection is an extension point; params.AddressID
// is accepted but the single default address is always used.
type addressStep struct {
	deps *stepDeps
}

func (st *addressStep) action() models.CheckoutAction { return models.ActionSelectAddress }

func (st *addressStep) validate(s models.SessionOrderState) *models.StepResult {
	// A repaired cart sits at the initiated step until the shopper re-runs
	// initiate and the cart validates clean; only then may checkout proceed.
	if !s.Step.Reached(models.StepCartValidated) {
		res := models.Fail(models.FailureStatePrecondition, msgNotInitiated)
		return &res
	}
	return nil
}

func (st *addressStep) execute(ctx context.Context, userID string, s models.SessionOrderState, params models.StepParams) (outcome, error) {
	user, err := st.deps.store.GetUser(userID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return outcome{result: models.Fail(models.FailureNotFound, msgUnexpected)}, nil
		}
		return outcome{}, fmt.Errorf("load user: %w", err)
	}
	if user.Address == nil {
		return outcome{result: models.Fail(models.FailureNotFound, msgNoAddress)}, nil
	}

	addr := *user.Address
	result := models.Succeed(addressMessage(addr), map[string]any{
		"address": addr,
	})
	return outcome{
		result: result,
		update: &SessionUpdate{Step: stepPtr(models.StepAddressSelected), SelectedAddress: &addr},
	}, nil
}
