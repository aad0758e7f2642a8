package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dvnhat/shopchat/internal/models"
)

// initiateStep starts (or restarts) a checkout. It is the single re-entry
// point of the workflow: any previous session is wiped before it runs. The
// cart is validated against live inventory and auto-repaired: lines whose
// product is gone, inactive or fully out of stock are removed, and lines with
// partial availability are clamped to the available quantity.
type initiateStep struct {
	deps *stepDeps
}

func (st *initiateStep) action() models.CheckoutAction { return models.ActionInitiateOrder }

func (st *initiateStep) resetsSession() bool { return true }

func (st *initiateStep) validate(s models.SessionOrderState) *models.StepResult {
	return nil
}

func (st *initiateStep) execute(ctx context.Context, userID string, s models.SessionOrderState, params models.StepParams) (outcome, error) {
	if _, err := st.deps.store.GetUser(userID); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return outcome{result: models.Fail(models.FailureNotFound, msgUnexpected)}, nil
		}
		return outcome{}, fmt.Errorf("load user: %w", err)
	}

	cart, err := st.deps.store.GetCart(userID)
	if err != nil {
		if errors.Is(err, models.ErrCartNotFound) {
			return outcome{result: models.Fail(models.FailureValidation, msgEmptyCart)}, nil
		}
		return outcome{}, fmt.Errorf("load cart: %w", err)
	}
	if len(cart.Lines) == 0 {
		return outcome{result: models.Fail(models.FailureValidation, msgEmptyCart)}, nil
	}

	checks := st.deps.inventory.CheckLines(ctx, cart.Lines)
	validation, repaired := repairCart(cart, checks)

	if validation.RemainingCount == 0 {
		return outcome{result: models.Fail(models.FailureValidation,
			"None of the items in your cart are available any more. Please add products and try again.")}, nil
	}

	if repaired {
		cart.UpdatedAt = time.Now()
		if err := st.deps.store.SaveCart(*cart); err != nil {
			return outcome{}, fmt.Errorf("save repaired cart: %w", err)
		}
		slog.Info("cart auto-repaired during checkout",
			"userID", userID, "removed", len(validation.Removed), "adjusted", len(validation.Adjusted))
		result := models.Succeed(cartRepairMessage(validation), map[string]any{
			"removed":         validation.Removed,
			"adjusted":        validation.Adjusted,
			"remaining_count": validation.RemainingCount,
			"subtotal":        validation.Subtotal,
		})
		return outcome{
			result: result,
			update: &SessionUpdate{Step: stepPtr(models.StepInitiated), CartValidation: validation},
		}, nil
	}

	result := models.Succeed(cartSummaryMessage(validation), map[string]any{
		"items":      cart.Lines,
		"item_count": validation.ItemCount,
		"subtotal":   validation.Subtotal,
	})
	return outcome{
		result: result,
		update: &SessionUpdate{Step: stepPtr(models.StepCartValidated), CartValidation: validation},
	}, nil
}

// repairCart applies the auto-repair policy to the cart in place and returns
// the validation record plus whether any line was removed or adjusted.
// Severity-error lines are dropped; severity-warning lines are clamped to the
// available quantity.
func repairCart(cart *models.Cart, checks []models.LineCheck) (*models.CartValidation, bool) {
	validation := &models.CartValidation{Checks: checks}
	kept := cart.Lines[:0]
	for i, check := range checks {
		line := cart.Lines[i]
		switch check.Severity {
		case models.SeverityError:
			validation.Removed = append(validation.Removed, check)
		case models.SeverityWarning:
			line.Quantity = check.Available
			validation.Adjusted = append(validation.Adjusted, check)
			kept = append(kept, line)
		default:
			kept = append(kept, line)
		}
	}
	cart.Lines = kept
	validation.RemainingCount = len(kept)
	validation.ItemCount = cart.ItemCount()
	validation.Subtotal = cart.Subtotal()
	repaired := len(validation.Removed) > 0 || len(validation.Adjusted) > 0
	validation.Clean = !repaired
	return validation, repaired
}
