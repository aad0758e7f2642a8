// Package testutil provides common fixtures shared across shopchat tests.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/dvnhat/shopchat/internal/models"
	"github.com/dvnhat/shopchat/internal/shipping"
	"github.com/dvnhat/shopchat/internal/store"
)

// TestUserID is the shopper seeded by SeededStore.
const TestUserID = "user-1"

// SeededStore creates an in-memory store with one user (with a default
// address), two products and a cart holding both.
func SeededStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore()
	MustSaveUser(t, st, models.User{
		ID:    TestUserID,
		Name:  "Nguyen Van A",
		Phone: "+84901234567",
		Address: &models.Address{
			Street: "12 Ly Thuong Kiet",
			Ward:   "Phuong 7",
			City:   "Ho Chi Minh City",
		},
	})
	MustSaveProduct(t, st, models.Product{
		ID: "prod-1", Name: "Ceramic Mug", Price: 100000, Stock: 10, Active: true, WeightGrams: 300,
	})
	MustSaveProduct(t, st, models.Product{
		ID: "prod-2", Name: "Bamboo Tray", Price: 250000, Stock: 4, Active: true, WeightGrams: 800,
	})
	MustSaveCart(t, st, models.Cart{
		UserID: TestUserID,
		Lines: []models.CartLine{
			{ProductID: "prod-1", Name: "Ceramic Mug", Price: 100000, Quantity: 2, WeightGrams: 300},
			{ProductID: "prod-2", Name: "Bamboo Tray", Price: 250000, Quantity: 1, WeightGrams: 800},
		},
	})
	return st
}

// MustSaveUser saves a user or fails the test.
func MustSaveUser(t *testing.T, st store.Store, u models.User) {
	t.Helper()
	if err := st.SaveUser(u); err != nil {
		t.Fatalf("save user %s: %v", u.ID, err)
	}
}

// MustSaveProduct saves a product or fails the test.
func MustSaveProduct(t *testing.T, st store.Store, p models.Product) {
	t.Helper()
	if err := st.SaveProduct(p); err != nil {
		t.Fatalf("save product %s: %v", p.ID, err)
	}
}

// MustSaveCart saves a cart or fails the test.
func MustSaveCart(t *testing.T, st store.Store, c models.Cart) {
	t.Helper()
	if err := st.SaveCart(c); err != nil {
		t.Fatalf("save cart for %s: %v", c.UserID, err)
	}
}

// FailingRateProvider always errors, to exercise the shipping fallback path.
type FailingRateProvider struct {
	Calls int
}

func (p *FailingRateProvider) Quote(ctx context.Context, req shipping.Request) (shipping.Quote, error) {
	p.Calls++
	return shipping.Quote{}, fmt.Errorf("rate provider down")
}

// FixedRateProvider returns the same quote for every request.
type FixedRateProvider struct {
	Result shipping.Quote
}

func (p *FixedRateProvider) Quote(ctx context.Context, req shipping.Request) (shipping.Quote, error) {
	return p.Result, nil
}
