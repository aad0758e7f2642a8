package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvnhat/shopchat/internal/models"
)

// statusStep is read-only. Without an order id it lists the shopper's most
// recent orders; with one it returns full detail only when the requesting
// shopper owns the order. Non-owners get a not-found response so order
// existence is never leaked.
type statusStep struct {
	deps *stepDeps
}

func (st *statusStep) action() models.CheckoutAction { return models.ActionCheckStatus }

func (st *statusStep) validate(s models.SessionOrderState) *models.StepResult {
	return nil
}

func (st *statusStep) execute(ctx context.Context, userID string, s models.SessionOrderState, params models.StepParams) (outcome, error) {
	if params.OrderID == "" {
		orders, err := st.deps.store.ListOrdersByUser(userID, st.deps.cfg.RecentOrderLimit)
		if err != nil {
			return outcome{}, fmt.Errorf("list orders: %w", err)
		}
		return outcome{result: models.Succeed(orderListMessage(orders), map[string]any{
			"orders": orders,
		})}, nil
	}

	order, err := st.deps.store.GetOrder(params.OrderID)
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			return outcome{result: models.Fail(models.FailureNotFound, msgOrderNotFound)}, nil
		}
		return outcome{}, fmt.Errorf("load order: %w", err)
	}
	if order.UserID != userID {
		return outcome{result: models.Fail(models.FailureNotFound, msgOrderNotFound)}, nil
	}

	return outcome{result: models.Succeed(orderDetailMessage(order), map[string]any{
		"order": order,
	})}, nil
}
