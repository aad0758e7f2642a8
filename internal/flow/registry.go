package flow

import (
	"errors"
	"fmt"

	"github.com/dvnhat/shopchat/internal/models"
)

// ErrUnknownAction is returned when an action outside the closed checkout
// action set is requested.
var ErrUnknownAction = errors.New("unknown checkout action")

// newStep resolves an action to its bound step. The switch is exhaustive over
// the closed action set; anything else is an unknown action.
func newStep(action models.CheckoutAction, deps *stepDeps) (step, error) {
	switch action {
	case models.ActionInitiateOrder:
		return &initiateStep{deps: deps}, nil
	case models.ActionSelectAddress:
		return &addressStep{deps: deps}, nil
	case models.ActionCalculateShipping:
		return &shippingStep{deps: deps}, nil
	case models.ActionSelectPayment:
		return &paymentStep{deps: deps}, nil
	case models.ActionShowSummary:
		return &summaryStep{deps: deps}, nil
	case models.ActionConfirmOrder:
		return &confirmStep{deps: deps}, nil
	case models.ActionCheckStatus:
		return &statusStep{deps: deps}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}
