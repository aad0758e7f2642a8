package flow

import (
	"context"
	"time"

	"github.com/dvnhat/shopchat/internal/models"
)

// summaryStep produces the immutable pre-confirmation snapshot:
// total = subtotal + shipping fee + service fee, all integer arithmetic.
// It touches neither the cart nor inventory.
type summaryStep struct {
	deps *stepDeps
}

func (st *summaryStep) action() models.CheckoutAction { return models.ActionShowSummary }

func (st *summaryStep) validate(s models.SessionOrderState) *models.StepResult {
	if !s.Step.Reached(models.StepPaymentSelected) ||
		s.SelectedAddress == nil || s.ShippingInfo == nil || s.PaymentMethod == "" {
		res := models.Fail(models.FailureStatePrecondition, msgPaymentRequired)
		return &res
	}
	return nil
}

func (st *summaryStep) execute(ctx context.Context, userID string, s models.SessionOrderState, params models.StepParams) (outcome, error) {
	cart, err := st.deps.store.GetCart(userID)
	if err != nil {
		return outcome{result: models.Fail(models.FailureNotFound, msgCartGone)}, nil
	}

	lines := make([]models.OrderLine, 0, len(cart.Lines))
	var subtotal int64
	for _, l := range cart.Lines {
		lines = append(lines, models.OrderLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     l.Price,
			Quantity:  l.Quantity,
			Image:     l.Image,
		})
		subtotal += l.Price * int64(l.Quantity)
	}

	summary := &models.OrderSummary{
		Lines:         lines,
		Address:       *s.SelectedAddress,
		PaymentMethod: s.PaymentMethod,
		Subtotal:      subtotal,
		ShippingFee:   s.ShippingInfo.Fee,
		ServiceFee:    st.deps.cfg.ServiceFee,
		TotalAmount:   subtotal + s.ShippingInfo.Fee + st.deps.cfg.ServiceFee,
		GeneratedAt:   time.Now(),
	}

	result := models.Succeed(summaryMessage(summary), map[string]any{
		"subtotal":     summary.Subtotal,
		"shipping_fee": summary.ShippingFee,
		"service_fee":  summary.ServiceFee,
		"total_amount": summary.TotalAmount,
	})
	return outcome{
		result: result,
		update: &SessionUpdate{Step: stepPtr(models.StepSummaryShown), OrderSummary: summary},
	}, nil
}
