package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvnhat/shopchat/internal/models"
)

// Opts holds configuration shared by the SQL-backed stores.
type Opts struct {
	DSN string
}

// Option defines a configuration option for a SQL-backed store.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType guesses the database type from a DSN. Postgres DSNs use a
// URL scheme or key=value form; everything else is treated as a SQLite path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}

// marshalJSON encodes v for a JSON column.
func marshalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal json column: %w", err)
	}
	return string(raw), nil
}

// scanOrder scans one order row. The caller supplies either *sql.Rows or
// *sql.Row through the scanner interface.
type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(sc scanner) (models.Order, error) {
	var o models.Order
	var linesJSON, addressJSON string
	var estimated sql.NullTime
	err := sc.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &linesJSON, &addressJSON, &o.PaymentMethod,
		&o.Subtotal, &o.ShippingFee, &o.ServiceFee, &o.TotalPrice,
		&o.Status, &o.Source, &estimated, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal([]byte(linesJSON), &o.Lines); err != nil {
		return o, fmt.Errorf("decode order lines: %w", err)
	}
	if err := json.Unmarshal([]byte(addressJSON), &o.ShippingAddress); err != nil {
		return o, fmt.Errorf("decode order address: %w", err)
	}
	if estimated.Valid {
		o.EstimatedDelivery = estimated.Time
	}
	return o, nil
}

const orderColumns = `id, order_number, user_id, lines_json, address_json, payment_method,
	subtotal, shipping_fee, service_fee, total_price, status, source, estimated_delivery, created_at`
