package flow

import (
	"fmt"
	"strings"

	"github.com/dvnhat/shopchat/internal/models"
	"github.com/dvnhat/shopchat/internal/util"
)

// User-facing messages returned with step results. The calling conversation
// layer may localize these; the structured payload carries the raw values.
const (
	msgUnexpected = "Something went wrong while processing your request. Please try again."

	msgEmptyCart = "Your cart is empty. Add some products before checking out."
	msgCartGone  = "Your cart could not be found. Please add products and start again."

	msgNotInitiated    = "Please start checkout first by confirming your cart."
	msgNoAddress       = "No shipping address on file. Please add an address to your profile first."
	msgAddressRequired = "Please select a shipping address before calculating shipping."
	msgPaymentRequired = "Please choose a payment method before viewing the summary."
	msgSummaryRequired = "Please review your order summary before confirming."

	msgNotConfirmed       = "Your order has not been placed. Reply with a confirmation to place it."
	msgOrderAlreadyPlaced = "This order has already been placed. Start a new checkout to order again."
	msgStockChanged       = "Some items changed availability while you were checking out. Please review your cart and start again."

	msgOrderNotFound = "Order not found."
	msgNoOrders      = "You have no orders yet."
)

func cartSummaryMessage(v *models.CartValidation) string {
	return fmt.Sprintf("Your cart is ready: %d items, subtotal %s. Next, select your shipping address.",
		v.ItemCount, util.FormatAmount(v.Subtotal))
}

func cartRepairMessage(v *models.CartValidation) string {
	var b strings.Builder
	b.WriteString("Some items in your cart were updated:\n")
	for _, c := range v.Removed {
		b.WriteString(fmt.Sprintf("- %s removed (%s)\n", c.Name, lineCheckReason(c)))
	}
	for _, c := range v.Adjusted {
		b.WriteString(fmt.Sprintf("- %s reduced to %d (only %d in stock)\n", c.Name, c.Available, c.Available))
	}
	b.WriteString(fmt.Sprintf("%d item(s) remain, subtotal %s. Start checkout again to continue with the updated cart.",
		v.RemainingCount, util.FormatAmount(v.Subtotal)))
	return b.String()
}

func lineCheckReason(c models.LineCheck) string {
	switch c.Status {
	case models.LineProductNotFound:
		return "no longer sold"
	case models.LineProductUnavailable:
		return "currently unavailable"
	case models.LineInsufficientStock:
		return "out of stock"
	default:
		return string(c.Status)
	}
}

func addressMessage(a models.Address) string {
	return fmt.Sprintf("Shipping to: %s. Next, calculate your shipping fee.", a.Format())
}

func shippingMessage(info *models.ShippingInfo) string {
	if info.Fallback {
		return fmt.Sprintf("Shipping fee: %s (standard rate), estimated delivery in %d days. Next, choose a payment method.",
			util.FormatAmount(info.Fee), info.EstimatedDays)
	}
	return fmt.Sprintf("Shipping fee: %s via %s, estimated delivery in %d days. Next, choose a payment method.",
		util.FormatAmount(info.Fee), info.ServiceType, info.EstimatedDays)
}

func paymentPromptMessage() string {
	return "How would you like to pay?\n1. Cash on delivery\n2. Online payment gateway"
}

func paymentSelectedMessage(pm models.PaymentMethod) string {
	return fmt.Sprintf("Payment method set to %s. Next, review your order summary.", paymentMethodLabel(pm))
}

func paymentMethodLabel(pm models.PaymentMethod) string {
	switch pm {
	case models.PaymentCOD:
		return "cash on delivery"
	case models.PaymentOnlineGateway:
		return "online payment gateway"
	default:
		return string(pm)
	}
}

func summaryMessage(s *models.OrderSummary) string {
	var b strings.Builder
	b.WriteString("Order summary:\n")
	for _, l := range s.Lines {
		b.WriteString(fmt.Sprintf("- %s x%d: %s\n", l.Name, l.Quantity, util.FormatAmount(l.Price*int64(l.Quantity))))
	}
	b.WriteString(fmt.Sprintf("Subtotal: %s\n", util.FormatAmount(s.Subtotal)))
	b.WriteString(fmt.Sprintf("Shipping: %s\n", util.FormatAmount(s.ShippingFee)))
	if s.ServiceFee > 0 {
		b.WriteString(fmt.Sprintf("Service fee: %s\n", util.FormatAmount(s.ServiceFee)))
	}
	b.WriteString(fmt.Sprintf("Total: %s\n", util.FormatAmount(s.TotalAmount)))
	b.WriteString(fmt.Sprintf("Deliver to: %s\nPayment: %s\nConfirm to place your order.",
		s.Address.Format(), paymentMethodLabel(s.PaymentMethod)))
	return b.String()
}

func orderCreatedMessage(o *models.Order) string {
	return fmt.Sprintf("Order %s placed successfully! Total %s, estimated delivery %s. Thank you for shopping with us.",
		o.OrderNumber, util.FormatAmount(o.TotalPrice), o.EstimatedDelivery.Format("Mon 02 Jan"))
}

func orderListMessage(orders []models.Order) string {
	if len(orders) == 0 {
		return msgNoOrders
	}
	var b strings.Builder
	b.WriteString("Your recent orders:\n")
	for _, o := range orders {
		b.WriteString(fmt.Sprintf("- %s: %s, %s (%s)\n",
			o.OrderNumber, util.FormatAmount(o.TotalPrice), o.Status, o.CreatedAt.Format("02 Jan 2006")))
	}
	b.WriteString("Send an order id to see its details.")
	return b.String()
}

func orderDetailMessage(o *models.Order) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Order %s (%s):\n", o.OrderNumber, o.Status))
	for _, l := range o.Lines {
		b.WriteString(fmt.Sprintf("- %s x%d: %s\n", l.Name, l.Quantity, util.FormatAmount(l.Price*int64(l.Quantity))))
	}
	b.WriteString(fmt.Sprintf("Total: %s\nDeliver to: %s\nPayment: %s",
		util.FormatAmount(o.TotalPrice), o.ShippingAddress.Format(), paymentMethodLabel(o.PaymentMethod)))
	return b.String()
}
