package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dvnhat/shopchat/internal/models"
)

// orderNumberPrefix is the fixed prefix of customer-facing order numbers.
const orderNumberPrefix = "#DH"

// confirmStep persists the order. It requires an explicit confirmed=true and
// an existing summary, re-validates inventory as a final race guard, then runs
// the three writes (order create, stock decrement, cart delete) as a saga with
// compensating actions: if a stock decrement fails mid-sequence, the already
// decremented lines are restocked and the order is deleted. A failed cart
// delete after a committed order is tolerated; the order stands.
type confirmStep struct {
	deps *stepDeps
}

func (st *confirmStep) action() models.CheckoutAction { return models.ActionConfirmOrder }

func (st *confirmStep) validate(s models.SessionOrderState) *models.StepResult {
	// A placed order is terminal; repeating "yes" must never re-run the saga.
	if s.Step.Reached(models.StepCreated) {
		res := models.Fail(models.FailureStatePrecondition, msgOrderAlreadyPlaced)
		return &res
	}
	if !s.Step.Reached(models.StepSummaryShown) || s.OrderSummary == nil {
		res := models.Fail(models.FailureStatePrecondition, msgSummaryRequired)
		return &res
	}
	return nil
}

func (st *confirmStep) execute(ctx context.Context, userID string, s models.SessionOrderState, params models.StepParams) (outcome, error) {
	// Safe to call repeatedly without side effects until confirmed.
	if !params.Confirmed {
		return outcome{result: models.Fail(models.FailureValidation, msgNotConfirmed)}, nil
	}

	summary := s.OrderSummary

	// Final race guard: anything changed since the summary was shown aborts
	// the checkout and sends the shopper back to the cart.
	checks := st.deps.inventory.CheckLines(ctx, summaryCartLines(summary))
	if !AllOK(checks) {
		slog.Info("inventory changed between summary and confirmation", "userID", userID)
		return outcome{result: models.Fail(models.FailureConsistencyConflict, msgStockChanged)}, nil
	}

	now := time.Now()
	order := models.Order{
		ID:                uuid.NewString(),
		UserID:            userID,
		Lines:             summary.Lines,
		ShippingAddress:   summary.Address,
		PaymentMethod:     summary.PaymentMethod,
		Subtotal:          summary.Subtotal,
		ShippingFee:       summary.ShippingFee,
		ServiceFee:        summary.ServiceFee,
		TotalPrice:        summary.TotalAmount,
		Status:            models.OrderStatusPending,
		Source:            models.OrderSourceChat,
		EstimatedDelivery: now.AddDate(0, 0, st.estimatedDays(s)),
		CreatedAt:         now,
	}
	order.OrderNumber = orderNumber(order.ID)

	if err := order.Validate(); err != nil {
		return outcome{}, fmt.Errorf("order validation: %w", err)
	}
	if err := st.deps.store.CreateOrder(order); err != nil {
		return outcome{}, fmt.Errorf("create order: %w", err)
	}

	// Decrement stock per line with an atomic conditional update. On failure,
	// compensate: restock what was already decremented and delete the order.
	var decremented []models.OrderLine
	for _, line := range order.Lines {
		if err := st.deps.store.DecrementStock(line.ProductID, line.Quantity); err != nil {
			st.compensate(order, decremented)
			slog.Warn("stock decrement failed during confirmation, order rolled back",
				"userID", userID, "productID", line.ProductID, "error", err)
			return outcome{result: models.Fail(models.FailureConsistencyConflict, msgStockChanged)}, nil
		}
		decremented = append(decremented, line)
	}

	if err := st.deps.store.DeleteCart(userID); err != nil {
		// The order is committed; a stale cart is visible but harmless.
		slog.Warn("cart delete failed after order creation", "userID", userID, "orderID", order.ID, "error", err)
	}

	slog.Info("order created", "userID", userID, "orderID", order.ID,
		"orderNumber", order.OrderNumber, "total", order.TotalPrice)

	result := models.Succeed(orderCreatedMessage(&order), map[string]any{
		"order_id":           order.ID,
		"order_number":       order.OrderNumber,
		"total_price":        order.TotalPrice,
		"estimated_delivery": order.EstimatedDelivery,
	})
	orderID := order.ID
	return outcome{
		result: result,
		update: &SessionUpdate{Step: stepPtr(models.StepCreated), CreatedOrderID: &orderID},
	}, nil
}

func (st *confirmStep) estimatedDays(s models.SessionOrderState) int {
	if s.ShippingInfo != nil && s.ShippingInfo.EstimatedDays > 0 {
		return s.ShippingInfo.EstimatedDays
	}
	return st.deps.cfg.FallbackEstimatedDays
}

// compensate undoes the partial saga: restores stock for every decremented
// line and removes the created order. Compensation failures are logged for
// manual reconciliation; there is no further automated retry.
func (st *confirmStep) compensate(order models.Order, decremented []models.OrderLine) {
	for _, line := range decremented {
		if err := st.deps.store.RestoreStock(line.ProductID, line.Quantity); err != nil {
			slog.Error("compensation restock failed, manual reconciliation needed",
				"orderID", order.ID, "productID", line.ProductID, "quantity", line.Quantity, "error", err)
		}
	}
	if err := st.deps.store.DeleteOrder(order.ID); err != nil {
		slog.Error("compensation order delete failed, manual reconciliation needed",
			"orderID", order.ID, "error", err)
	}
}

// summaryCartLines converts summary lines back to cart lines for re-validation.
func summaryCartLines(s *models.OrderSummary) []models.CartLine {
	lines := make([]models.CartLine, 0, len(s.Lines))
	for _, l := range s.Lines {
		lines = append(lines, models.CartLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     l.Price,
			Quantity:  l.Quantity,
		})
	}
	return lines
}

// orderNumber derives the fixed-width customer-facing order number from the
// persisted order id: "#DH" plus six uppercase characters of the id.
func orderNumber(orderID string) string {
	compact := strings.ToUpper(strings.ReplaceAll(orderID, "-", ""))
	if len(compact) > 6 {
		compact = compact[:6]
	}
	return orderNumberPrefix + compact
}
