package flow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dvnhat/shopchat/internal/models"
	"github.com/dvnhat/shopchat/internal/store"
)

// InventoryChecker validates cart lines against live product inventory and
// tags each line with a status and repair severity.
type InventoryChecker struct {
	store store.Store
}

// NewInventoryChecker creates a checker backed by the given store.
func NewInventoryChecker(st store.Store) *InventoryChecker {
	return &InventoryChecker{store: st}
}

// CheckLines validates every line and returns one LineCheck per line, in
// order. A store error on a single product is treated as product-not-found
// for that line rather than failing the whole validation.
func (ic *InventoryChecker) CheckLines(ctx context.Context, lines []models.CartLine) []models.LineCheck {
	checks := make([]models.LineCheck, 0, len(lines))
	for _, line := range lines {
		checks = append(checks, ic.checkLine(ctx, line))
	}
	return checks
}

// AllOK reports whether every check passed.
func AllOK(checks []models.LineCheck) bool {
	for _, c := range checks {
		if c.Status != models.LineOK {
			return false
		}
	}
	return true
}

func (ic *InventoryChecker) checkLine(ctx context.Context, line models.CartLine) models.LineCheck {
	check := models.LineCheck{
		ProductID: line.ProductID,
		Name:      line.Name,
		Requested: line.Quantity,
	}

	product, err := ic.store.GetProduct(line.ProductID)
	if err != nil {
		if !errors.Is(err, models.ErrProductNotFound) {
			slog.Warn("inventory check product lookup failed", "productID", line.ProductID, "error", err)
		}
		check.Status = models.LineProductNotFound
		check.Severity = models.SeverityError
		return check
	}
	if !product.Active {
		check.Status = models.LineProductUnavailable
		check.Severity = models.SeverityError
		return check
	}

	check.Available = product.Stock
	switch {
	case product.Stock >= line.Quantity:
		check.Status = models.LineOK
	case product.Stock == 0:
		check.Status = models.LineInsufficientStock
		check.Severity = models.SeverityError
	default:
		check.Status = models.LineInsufficientStock
		check.Severity = models.SeverityWarning
	}
	return check
}
