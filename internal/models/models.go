// Package models defines the core data structures for shopchat.
//
// It includes catalog, cart and order types shared across modules, along with
// the sentinel errors returned by storage backends.
package models

import (
	"errors"
	"fmt"
	"time"
)

// PaymentMethod identifies one of the supported checkout payment methods.
type PaymentMethod string

const (
	// PaymentCOD is cash on delivery.
	PaymentCOD PaymentMethod = "cod"
	// PaymentOnlineGateway is payment through the online gateway.
	PaymentOnlineGateway PaymentMethod = "online_gateway"
)

// IsValidPaymentMethod checks if the given payment method is supported.
func IsValidPaymentMethod(pm PaymentMethod) bool {
	switch pm {
	case PaymentCOD, PaymentOnlineGateway:
		return true
	default:
		return false
	}
}

// SupportedPaymentMethods lists the closed set of accepted payment methods.
func SupportedPaymentMethods() []PaymentMethod {
	return []PaymentMethod{PaymentCOD, PaymentOnlineGateway}
}

// Error variables for better error handling and testability
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrCartNotFound      = errors.New("cart not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Address is a shipping destination: street plus locality hierarchy.
type Address struct {
	Street   string `json:"street"`
	Ward     string `json:"ward,omitempty"`
	District string `json:"district,omitempty"`
	City     string `json:"city"`
}

// Format renders the address as a single comma-joined line.
func (a Address) Format() string {
	out := a.Street
	for _, part := range []string{a.Ward, a.District, a.City} {
		if part != "" {
			out += ", " + part
		}
	}
	return out
}

// User is a shopper profile. Address is the single default shipping address;
// multi-address profiles are an extension point, not modeled here.
type User struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Phone   string   `json:"phone"`
	Address *Address `json:"address,omitempty"`
}

// Product is one catalog item. Price is an integer amount in the smallest
// currency unit; WeightGrams of zero means the weight is unknown.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Stock       int    `json:"stock"`
	Sold        int    `json:"sold"`
	WeightGrams int    `json:"weight_grams,omitempty"`
	Image       string `json:"image,omitempty"`
	Active      bool   `json:"active"`
}

// CartLine is one product entry in a shopper's cart. Price is the unit price
// captured at add-to-cart time, with any discount already applied.
type CartLine struct {
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Quantity    int    `json:"quantity"`
	Image       string `json:"image,omitempty"`
	WeightGrams int    `json:"weight_grams,omitempty"`
}

// Cart holds the current cart lines for one shopper.
type Cart struct {
	UserID    string     `json:"user_id"`
	Lines     []CartLine `json:"lines"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Subtotal sums price times quantity across all lines.
func (c *Cart) Subtotal() int64 {
	var total int64
	for _, l := range c.Lines {
		total += l.Price * int64(l.Quantity)
	}
	return total
}

// ItemCount sums quantities across all lines.
func (c *Cart) ItemCount() int {
	var n int
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// OrderStatus tracks the lifecycle of a persisted order.
type OrderStatus string

const (
	// OrderStatusPending is a freshly created order awaiting fulfilment.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusShipped is an order handed to the carrier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered is a completed order.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled is an order cancelled before delivery.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderSourceChat marks orders created by the conversational checkout workflow.
const OrderSourceChat = "chat_checkout"

// OrderLine is a line-item snapshot frozen at order creation.
type OrderLine struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Image     string `json:"image,omitempty"`
}

// Order is a persisted order with immutable line snapshots and totals.
type Order struct {
	ID                string        `json:"id"`
	OrderNumber       string        `json:"order_number"`
	UserID            string        `json:"user_id"`
	Lines             []OrderLine   `json:"lines"`
	ShippingAddress   Address       `json:"shipping_address"`
	PaymentMethod     PaymentMethod `json:"payment_method"`
	Subtotal          int64         `json:"subtotal"`
	ShippingFee       int64         `json:"shipping_fee"`
	ServiceFee        int64         `json:"service_fee"`
	TotalPrice        int64         `json:"total_price"`
	Status            OrderStatus   `json:"status"`
	Source            string        `json:"source"`
	EstimatedDelivery time.Time     `json:"estimated_delivery"`
	CreatedAt         time.Time     `json:"created_at"`
}

// Validate performs basic consistency checks on an order before persistence.
func (o *Order) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("order id is required")
	}
	if o.UserID == "" {
		return fmt.Errorf("order user id is required")
	}
	if len(o.Lines) == 0 {
		return fmt.Errorf("order must have at least one line")
	}
	var subtotal int64
	for _, l := range o.Lines {
		if l.Quantity <= 0 {
			return fmt.Errorf("order line %s has non-positive quantity", l.ProductID)
		}
		subtotal += l.Price * int64(l.Quantity)
	}
	if o.TotalPrice != subtotal+o.ShippingFee+o.ServiceFee {
		return fmt.Errorf("order total %d does not equal subtotal %d + shipping %d + service %d",
			o.TotalPrice, subtotal, o.ShippingFee, o.ServiceFee)
	}
	return nil
}
