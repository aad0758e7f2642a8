// Package notify sends order notifications to shoppers over WhatsApp, either
// directly through whatsmeow or via the Twilio API. Notification delivery is
// best-effort: a failure never affects the order it announces.
package notify

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/dvnhat/shopchat/internal/models"
	"github.com/dvnhat/shopchat/internal/util"
)

// Service is the outbound notification surface consumed by the engine.
type Service interface {
	// SendOrderConfirmation delivers the confirmation for a freshly created
	// order to the shopper's phone number.
	SendOrderConfirmation(ctx context.Context, to string, order models.Order) error
}

var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// CanonicalizeRecipient strips non-digits from a phone number and validates
// the result has at least 6 digits.
func CanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}
	return canonical, nil
}

// FormatOrderConfirmation renders the shared confirmation message body used
// by every backend.
func FormatOrderConfirmation(o models.Order) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Your order %s is confirmed!\n", o.OrderNumber))
	for _, l := range o.Lines {
		b.WriteString(fmt.Sprintf("- %s x%d\n", l.Name, l.Quantity))
	}
	b.WriteString(fmt.Sprintf("Total: %s\n", util.FormatAmount(o.TotalPrice)))
	b.WriteString(fmt.Sprintf("Delivery to: %s\n", o.ShippingAddress.Format()))
	if !o.EstimatedDelivery.IsZero() {
		b.WriteString(fmt.Sprintf("Estimated delivery: %s\n", o.EstimatedDelivery.Format("Mon 02 Jan")))
	}
	b.WriteString("Thank you for shopping with us!")
	return b.String()
}

// MockService records sent notifications for tests.
type MockService struct {
	mu   sync.Mutex
	Sent []SentNotification
	Err  error
}

// SentNotification is one recorded delivery.
type SentNotification struct {
	To    string
	Order models.Order
	Body  string
}

// NewMockService creates an empty recording service.
func NewMockService() *MockService {
	return &MockService{}
}

func (m *MockService) SendOrderConfirmation(ctx context.Context, to string, order models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, SentNotification{To: to, Order: order, Body: FormatOrderConfirmation(order)})
	return nil
}

// SentCount returns the number of recorded deliveries.
func (m *MockService) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
