// Package store provides storage backends for shopchat.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/dvnhat/shopchat/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore implements Store on a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite store at the DSN file path, creating the
// parent directory and running migrations as needed.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite store ready", "dsn", cfg.DSN)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetUser(id string) (*models.User, error) {
	var u models.User
	var addressJSON sql.NullString
	err := s.db.QueryRow(`SELECT id, name, phone, address_json FROM users WHERE id = ?`, id).
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

func (s *SQLiteStore) SaveUser(u models.User) error {
	var addressJSON any
	if u.Address != nil {
		raw, err := marshalJSON(u.Address)
		if err != nil {
			return err
		}
		addressJSON = raw
	}
	_, err := s.db.Exec(`INSERT INTO users (id, name, phone, address_json) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, phone = excluded.phone, address_json = excluded.address_json`,
		u.ID, u.Name, u.Phone, addressJSON)
	if err != nil {
		return fmt.Errorf("save user %s: %w", u.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetProduct(id string) (*models.Product, error) {
	var p models.Product
	err := s.db.QueryRow(`SELECT id, name, price, stock, sold, weight_grams, image, active FROM products WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Sold, &p.WeightGrams, &p.Image, &p.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get product %s: %w", id, models.ErrProductNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query product %s: %w", id, err)
	}
	return &p, nil
}

func (s *SQLiteStore) SaveProduct(p models.Product) error {
	_, err := s.db.Exec(`INSERT INTO products (id, name, price, stock, sold, weight_grams, image, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, price = excluded.price, stock = excluded.stock,
			sold = excluded.sold, weight_grams = excluded.weight_grams, image = excluded.image, active = excluded.active`,
		p.ID, p.Name, p.Price, p.Stock, p.Sold, p.WeightGrams, p.Image, p.Active)
	if err != nil {
		return fmt.Errorf("save product %s: %w", p.ID, err)
	}
	return nil
}

// DecrementStock is a single conditional UPDATE, so two concurrent
// confirmations can never both succeed past the available stock.
func (s *SQLiteStore) DecrementStock(productID string, qty int) error {
	res, err := s.db.Exec(`UPDATE products SET stock = stock - ?, sold = sold + ? WHERE id = ? AND stock >= ?`,
		qty, qty, productID, qty)
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

func (s *SQLiteStore) RestoreStock(productID string, qty int) error {
	res, err := s.db.Exec(`UPDATE products SET stock = stock + ?, sold = sold - ? WHERE id = ?`,
		qty, qty, productID)
	if err != nil {
		return fmt.Errorf("restore stock %s: %w", productID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("restore stock %s: %w", productID, models.ErrProductNotFound)
	}
	return nil
}

func (s *SQLiteStore) GetCart(userID string) (*models.Cart, error) {
	var c models.Cart
	var linesJSON string
	err := s.db.QueryRow(`SELECT user_id, lines_json, updated_at FROM carts WHERE user_id = ?`, userID).
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

func (s *SQLiteStore) SaveCart(c models.Cart) error {
	linesJSON, err := marshalJSON(c.Lines)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO carts (user_id, lines_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET lines_json = excluded.lines_json, updated_at = excluded.updated_at`,
		c.UserID, linesJSON, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save cart for %s: %w", c.UserID, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteCart(userID string) error {
	if _, err := s.db.Exec(`DELETE FROM carts WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete cart for %s: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) CreateOrder(o models.Order) error {
	linesJSON, err := marshalJSON(o.Lines)
	if err != nil {
		return err
	}
	addressJSON, err := marshalJSON(o.ShippingAddress)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.OrderNumber, o.UserID, linesJSON, addressJSON, o.PaymentMethod,
		o.Subtotal, o.ShippingFee, o.ServiceFee, o.TotalPrice,
		o.Status, o.Source, o.EstimatedDelivery, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("create order %s: %w", o.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetOrder(id string) (*models.Order, error) {
	row := s.db.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get order %s: %w", id, models.ErrOrderNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query order %s: %w", id, err)
	}
	return &o, nil
}

func (s *SQLiteStore) DeleteOrder(id string) error {
	if _, err := s.db.Exec(`DELETE FROM orders WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) ListOrdersByUser(userID string, limit int) ([]models.Order, error) {
	rows, err := s.db.Query(`SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
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

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
