package flow

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dvnhat/shopchat/internal/models"
	"github.com/dvnhat/shopchat/internal/store"
	"github.com/dvnhat/shopchat/internal/testutil"
)

func seedOrder(t *testing.T, st store.Store, userID string, createdAt time.Time) models.Order {
	t.Helper()
	o := models.Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		Lines:         []models.OrderLine{{ProductID: "prod-1", Name: "Ceramic Mug", Price: 100000, Quantity: 1}},
		PaymentMethod: models.PaymentCOD,
		Subtotal:      100000,
		ShippingFee:   29000,
		TotalPrice:    129000,
		Status:        models.OrderStatusPending,
		Source:        models.OrderSourceChat,
		CreatedAt:     createdAt,
	}
	o.OrderNumber = orderNumber(o.ID)
	if err := st.CreateOrder(o); err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func TestStatusListsRecentOrdersNewestFirst(t *testing.T) {
	st := testutil.SeededStore(t)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 7; i++ {
		seedOrder(t, st, testutil.TestUserID, base.Add(time.Duration(i)*time.Minute))
	}

	e, _ := newTestEngine(t, st, &testutil.FailingRateProvider{})
	res := e.Handle(context.Background(), testutil.TestUserID, models.ActionCheckStatus, models.StepParams{})
	if !res.Success {
		t.Fatalf("status list failed: %s", res.Message)
	}
	orders, ok := res.Data["orders"].([]models.Order)
	if !ok {
		t.Fatalf("missing orders payload: %v", res.Data["orders"])
	}
	if len(orders) != 5 {
		t.Fatalf("expected the recent-order limit of 5, got %d", len(orders))
	}
	for i := 1; i < len(orders); i++ {
		if orders[i].CreatedAt.After(orders[i-1].CreatedAt) {
			t.Fatal("orders not sorted newest first")
		}
	}
}

func TestStatusEmptyHistory(t *testing.T) {
	st := testutil.SeededStore(t)
	e, _ := newTestEngine(t, st, &testutil.FailingRateProvider{})
	res := e.Handle(context.Background(), testutil.TestUserID, models.ActionCheckStatus, models.StepParams{})
	if !res.Success {
		t.Fatalf("empty history should still succeed: %s", res.Message)
	}
	if res.Message != msgNoOrders {
		t.Errorf("expected the no-orders message, got %q", res.Message)
	}
}

func TestStatusDetailRequiresOwnership(t *testing.T) {
	st := testutil.SeededStore(t)
	testutil.MustSaveUser(t, st, models.User{ID: "other", Name: "C"})
	theirs := seedOrder(t, st, "other", time.Now())

	e, _ := newTestEngine(t, st, &testutil.FailingRateProvider{})
	res := e.Handle(context.Background(), testutil.TestUserID, models.ActionCheckStatus,
		models.StepParams{OrderID: theirs.ID})
	if res.Success {
		t.Fatal("someone else's order must not be visible")
	}
	if res.Kind != models.FailureNotFound || res.Message != msgOrderNotFound {
		t.Errorf("foreign order must be indistinguishable from a missing one, got %+v", res)
	}

	res = e.Handle(context.Background(), testutil.TestUserID, models.ActionCheckStatus,
		models.StepParams{OrderID: "no-such-order"})
	if res.Success || res.Kind != models.FailureNotFound {
		t.Errorf("missing order should be not found, got %+v", res)
	}
}

func TestStatusDetailForOwnOrder(t *testing.T) {
	st := testutil.SeededStore(t)
	mine := seedOrder(t, st, testutil.TestUserID, time.Now())

	e, _ := newTestEngine(t, st, &testutil.FailingRateProvider{})
	res := e.Handle(context.Background(), testutil.TestUserID, models.ActionCheckStatus,
		models.StepParams{OrderID: mine.ID})
	if !res.Success {
		t.Fatalf("own order detail failed: %s", res.Message)
	}
	order, ok := res.Data["order"].(*models.Order)
	if !ok || order.ID != mine.ID {
		t.Errorf("expected own order in payload, got %v", res.Data["order"])
	}
}
