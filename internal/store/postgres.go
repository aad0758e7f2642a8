// Package store provides storage backends for shopchat.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/dvnhat/shopchat/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to PostgreSQL with the configured DSN and runs
// migrations.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres store ready")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetUser(id string) (*models.User, error) {
	var u models.User
	var addressJSON sql.NullString
	err := s.db.QueryRow(`SELECT id, name, phone, address_json FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Phone, &addressJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user %s: %w", id, models.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query user %s: %w", id, err)
	}
	if addressJSON.Valid {
		var addr models.Address
		if err := json.Unmarshal([]byte(addressJSON.String), &addr); err != nil {
			return nil, fmt.Errorf("decode user address: %w", err)
		}
		u.Address = &addr
	}
	return &u, nil
}

func (s *PostgresStore) SaveUser(u models.User) error {
	var addressJSON any
	if u.Address != nil {
		raw, err := marshalJSON(u.Address)
		if err != nil {
			return err
		}
		addressJSON = raw
	}
	_, err := s.db.Exec(`INSERT INTO users (id, name, phone, address_json) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, phone = EXCLUDED.phone, address_json = EXCLUDED.address_json`,
		u.ID, u.Name, u.Phone, addressJSON)
	if err != nil {
		return fmt.Errorf("save user %s: %w", u.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetProduct(id string) (*models.Product, error) {
	var p models.Product
	err := s.db.QueryRow(`SELECT id, name, price, stock, sold, weight_grams, image, active FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Sold, &p.WeightGrams, &p.Image, &p.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get product %s: %w", id, models.ErrProductNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query product %s: %w", id, err)
	}
	return &p, nil
}

func (s *PostgresStore) SaveProduct(p models.Product) error {
	_, err := s.db.Exec(`INSERT INTO products (id, name, price, stock, sold, weight_grams, image, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price, stock = EXCLUDED.stock,
			sold = EXCLUDED.sold, weight_grams = EXCLUDED.weight_grams, image = EXCLUDED.image, active = EXCLUDED.active`,
		p.ID, p.Name, p.Price, p.Stock, p.Sold, p.WeightGrams, p.Image, p.Active)
	if err != nil {
		return fmt.Errorf("save product %s: %w", p.ID, err)
	}
	return nil
}

// DecrementStock is a single conditional UPDATE, so two concurrent
// confirmations can never both succeed past the available stock.
func (s *PostgresStore) DecrementStock(productID string, qty int) error {
	res, err := s.db.Exec(`UPDATE products SET stock = stock - $1, sold = sold + $1 WHERE id = $2 AND stock >= $1`,
		qty, productID)
	if err != nil {
		return fmt.Errorf("decrement stock %s: %w", productID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock %s rows affected: %w", productID, err)
	}
	if n == 0 {
		if _, err := s.GetProduct(productID); err != nil {
			return err
		}
		return fmt.Errorf("decrement stock %s by %d: %w", productID, qty, models.ErrInsufficientStock)
	}
	return nil
}

func (s *PostgresStore) RestoreStock(productID string, qty int) error {
	res, err := s.db.Exec(`UPDATE products SET stock = stock + $1, sold = sold - $1 WHERE id = $2`,
		qty, productID)
	if err != nil {
		return fmt.Errorf("restore stock %s: %w", productID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("restore stock %s: %w", productID, models.ErrProductNotFound)
	}
	return nil
}

func (s *PostgresStore) GetCart(userID string) (*models.Cart, error) {
	var c models.Cart
	var linesJSON string
	err := s.db.QueryRow(`SELECT user_id, lines_json, updated_at FROM carts WHERE user_id = $1`, userID).
		Scan(&c.UserID, &linesJSON, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get cart for %s: %w", userID, models.ErrCartNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query cart for %s: %w", userID, err)
	}
	if err := json.Unmarshal([]byte(linesJSON), &c.Lines); err != nil {
		return nil, fmt.Errorf("decode cart lines: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) SaveCart(c models.Cart) error {
	linesJSON, err := marshalJSON(c.Lines)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO carts (user_id, lines_json, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET lines_json = EXCLUDED.lines_json, updated_at = EXCLUDED.updated_at`,
		c.UserID, linesJSON, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save cart for %s: %w", c.UserID, err)
	}
	return nil
}

func (s *PostgresStore) DeleteCart(userID string) error {
	if _, err := s.db.Exec(`DELETE FROM carts WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete cart for %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) CreateOrder(o models.Order) error {
	linesJSON, err := marshalJSON(o.Lines)
	if err != nil {
		return err
	}
	addressJSON, err := marshalJSON(o.ShippingAddress)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		o.ID, o.OrderNumber, o.UserID, linesJSON, addressJSON, o.PaymentMethod,
		o.Subtotal, o.ShippingFee, o.ServiceFee, o.TotalPrice,
		o.Status, o.Source, o.EstimatedDelivery, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("create order %s: %w", o.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetOrder(id string) (*models.Order, error) {
	row := s.db.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get order %s: %w", id, models.ErrOrderNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query order %s: %w", id, err)
	}
	return &o, nil
}

func (s *PostgresStore) DeleteOrder(id string) error {
	if _, err := s.db.Exec(`DELETE FROM orders WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) ListOrdersByUser(userID string, limit int) ([]models.Order, error) {
	rows, err := s.db.Query(`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders for %s: %w", userID, err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
