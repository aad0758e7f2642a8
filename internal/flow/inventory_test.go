package flow

import (
	"context"
	"testing"

	"github.com/dvnhat/shopchat/internal/models"
	"github.com/dvnhat/shopchat/internal/store"
	"github.com/dvnhat/shopchat/internal/testutil"
)

func TestCheckLinesSeverityPolicy(t *testing.T) {
	st := store.NewMemoryStore()
	testutil.MustSaveProduct(t, st, models.Product{ID: "ok", Name: "OK", Price: 1000, Stock: 5, Active: true})
	testutil.MustSaveProduct(t, st, models.Product{ID: "low", Name: "Low", Price: 1000, Stock: 2, Active: true})
	testutil.MustSaveProduct(t, st, models.Product{ID: "empty", Name: "Empty", Price: 1000, Stock: 0, Active: true})
	testutil.MustSaveProduct(t, st, models.Product{ID: "hidden", Name: "Hidden", Price: 1000, Stock: 5, Active: false})

	checker := NewInventoryChecker(st)
	checks := checker.CheckLines(context.Background(), []models.CartLine{
		{ProductID: "ok", Quantity: 3},
		{ProductID: "low", Quantity: 5},
		{ProductID: "empty", Quantity: 1},
		{ProductID: "hidden", Quantity: 1},
		{ProductID: "ghost", Quantity: 1},
	})
	if len(checks) != 5 {
		t.Fatalf("expected one check per line, got %d", len(checks))
	}

	want := []struct {
		status   models.LineCheckStatus
		severity models.LineSeverity
	}{
		{models.LineOK, ""},
		{models.LineInsufficientStock, models.SeverityWarning},
		{models.LineInsufficientStock, models.SeverityError},
		{models.LineProductUnavailable, models.SeverityError},
		{models.LineProductNotFound, models.SeverityError},
	}
	for i, w := range want {
		if checks[i].Status != w.status || checks[i].Severity != w.severity {
			t.Errorf("line %d: got %s/%s, want %s/%s",
				i, checks[i].Status, checks[i].Severity, w.status, w.severity)
		}
	}
	if checks[1].Available != 2 {
		t.Errorf("partial line should carry the available quantity, got %d", checks[1].Available)
	}
	if AllOK(checks) {
		t.Error("AllOK must be false with failing lines")
	}
	if !AllOK(checks[:1]) {
		t.Error("AllOK must be true for passing lines")
	}
}
