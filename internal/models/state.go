// Package models defines state structures for the checkout workflow.
package models

import "time"

// CheckoutStep is the ordinal position of a shopper inside the checkout
// workflow. Steps form a total order and only advance through the defined
// transitions, or get wholly reset back to StepIdle.
type CheckoutStep int

const (
	// StepIdle means no checkout is in progress.
	StepIdle CheckoutStep = iota
	// StepInitiated means checkout started but the cart needed repair.
	StepInitiated
	// StepCartValidated means the cart passed inventory validation.
	StepCartValidated
	// StepAddressSelected means a shipping address has been chosen.
	StepAddressSelected
	// StepShippingCalculated means a shipping quote has been stored.
	StepShippingCalculated
	// StepPaymentSelected means a payment method has been chosen.
	StepPaymentSelected
	// StepSummaryShown means the order summary snapshot was produced.
	StepSummaryShown
	// StepCreated means the order has been persisted.
	StepCreated
)

var checkoutStepNames = map[CheckoutStep]string{
	StepIdle:               "idle",
	StepInitiated:          "initiated",
	StepCartValidated:      "cart_validated",
	StepAddressSelected:    "address_selected",
	StepShippingCalculated: "shipping_calculated",
	StepPaymentSelected:    "payment_selected",
	StepSummaryShown:       "summary_shown",
	StepCreated:            "created",
}

func (s CheckoutStep) String() string {
	if name, ok := checkoutStepNames[s]; ok {
		return name
	}
	return "unknown"
}

// Reached reports whether the step has advanced at least as far as target.
func (s CheckoutStep) Reached(target CheckoutStep) bool {
	return s >= target
}

// CheckoutAction identifies one invokable step of the checkout workflow.
type CheckoutAction string

const (
	// ActionInitiateOrder starts (or restarts) a checkout from the cart.
	ActionInitiateOrder CheckoutAction = "initiate_order"
	// ActionSelectAddress picks the profile's default shipping address.
	ActionSelectAddress CheckoutAction = "select_address"
	// ActionCalculateShipping obtains a shipping quote for the cart.
	ActionCalculateShipping CheckoutAction = "calculate_shipping"
	// ActionSelectPayment picks or prompts for a payment method.
	ActionSelectPayment CheckoutAction = "select_payment"
	// ActionShowSummary produces the order summary snapshot.
	ActionShowSummary CheckoutAction = "show_summary"
	// ActionConfirmOrder persists the order after explicit confirmation.
	ActionConfirmOrder CheckoutAction = "confirm_order"
	// ActionCheckStatus lists or inspects the shopper's orders.
	ActionCheckStatus CheckoutAction = "check_status"
)

// IsValidCheckoutAction checks membership in the closed action set.
func IsValidCheckoutAction(a CheckoutAction) bool {
	switch a {
	case ActionInitiateOrder, ActionSelectAddress, ActionCalculateShipping,
		ActionSelectPayment, ActionShowSummary, ActionConfirmOrder, ActionCheckStatus:
		return true
	default:
		return false
	}
}

// StepParams carries the action-specific parameters of one step invocation.
// Unused fields are ignored by steps that do not consume them.
type StepParams struct {
	AddressID     string        `json:"address_id,omitempty"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`
	Confirmed     bool          `json:"confirmed,omitempty"`
	OrderID       string        `json:"order_id,omitempty"`
}

// LineCheckStatus is the inventory validation verdict for one cart line.
type LineCheckStatus string

const (
	// LineOK means the requested quantity is available.
	LineOK LineCheckStatus = "ok"
	// LineInsufficientStock means fewer units are available than requested.
	LineInsufficientStock LineCheckStatus = "insufficient_stock"
	// LineProductUnavailable means the product exists but is not for sale.
	LineProductUnavailable LineCheckStatus = "product_unavailable"
	// LineProductNotFound means the product no longer exists.
	LineProductNotFound LineCheckStatus = "product_not_found"
)

// LineSeverity classifies a failed line check for the auto-repair policy.
type LineSeverity string

const (
	// SeverityError lines are removed from the cart during repair.
	SeverityError LineSeverity = "error"
	// SeverityWarning lines are clamped to the available quantity.
	SeverityWarning LineSeverity = "warning"
)

// LineCheck is the per-line result of inventory validation.
type LineCheck struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Requested int             `json:"requested"`
	Available int             `json:"available"`
	Status    LineCheckStatus `json:"status"`
	Severity  LineSeverity    `json:"severity,omitempty"`
}

// CartValidation records the outcome of validating and repairing the cart.
type CartValidation struct {
	Checks         []LineCheck `json:"checks,omitempty"`
	Removed        []LineCheck `json:"removed,omitempty"`
	Adjusted       []LineCheck `json:"adjusted,omitempty"`
	RemainingCount int         `json:"remaining_count"`
	ItemCount      int         `json:"item_count"`
	Subtotal       int64       `json:"subtotal"`
	Clean          bool        `json:"clean"`
}

// ShippingInfo is the stored shipping quote for the session.
type ShippingInfo struct {
	Fee           int64  `json:"fee"`
	ServiceType   string `json:"service_type"`
	EstimatedDays int    `json:"estimated_days"`
	Fallback      bool   `json:"fallback"`
}

// OrderSummary is the immutable pre-confirmation snapshot of the order.
type OrderSummary struct {
	Lines         []OrderLine   `json:"lines"`
	Address       Address       `json:"address"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Subtotal      int64         `json:"subtotal"`
	ShippingFee   int64         `json:"shipping_fee"`
	ServiceFee    int64         `json:"service_fee"`
	TotalAmount   int64         `json:"total_amount"`
	GeneratedAt   time.Time     `json:"generated_at"`
}

// SessionOrderState is the volatile per-shopper checkout state. Exactly one
// exists per user id; it is lost on process restart.
type SessionOrderState struct {
	Step            CheckoutStep    `json:"step"`
	CartValidation  *CartValidation `json:"cart_validation,omitempty"`
	SelectedAddress *Address        `json:"selected_address,omitempty"`
	ShippingInfo    *ShippingInfo   `json:"shipping_info,omitempty"`
	PaymentMethod   PaymentMethod   `json:"payment_method,omitempty"`
	OrderSummary    *OrderSummary   `json:"order_summary,omitempty"`
	CreatedOrderID  string          `json:"created_order_id,omitempty"`
}

// FailureKind classifies why a step did not succeed.
type FailureKind string

const (
	// FailureValidation is a bad or missing parameter; user-correctable.
	FailureValidation FailureKind = "validation"
	// FailureNotFound is a missing user/cart/order/address or an ownership
	// mismatch presented as missing.
	FailureNotFound FailureKind = "not_found"
	// FailureStatePrecondition is a step invoked out of order.
	FailureStatePrecondition FailureKind = "state_precondition"
	// FailureConsistencyConflict means inventory changed between the summary
	// and confirmation; the shopper must restart from the cart.
	FailureConsistencyConflict FailureKind = "consistency_conflict"
	// FailureUnexpected is any other error intercepted at the step boundary.
	FailureUnexpected FailureKind = "unexpected"
)

// StepResult is what every step invocation returns to the caller. When
// Success is false no session state mutation has occurred.
type StepResult struct {
	Success  bool           `json:"success"`
	Kind     FailureKind    `json:"kind,omitempty"`
	Message  string         `json:"message"`
	Data     map[string]any `json:"data,omitempty"`
	NextStep CheckoutStep   `json:"next_step,omitempty"`
}

// Succeed builds a successful StepResult with an optional structured payload.
func Succeed(message string, data map[string]any) StepResult {
	return StepResult{Success: true, Message: message, Data: data}
}

// Fail builds a failed StepResult of the given kind.
func Fail(kind FailureKind, message string) StepResult {
	return StepResult{Success: false, Kind: kind, Message: message}
}
