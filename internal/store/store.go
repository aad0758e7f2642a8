// Package store provides storage backends for shopchat.
//
// It defines the Store interface consumed by the checkout workflow and ships
// an in-memory implementation alongside persistent SQLite and PostgreSQL
// backends. Stock decrements are atomic conditional updates in every backend
// so concurrent confirmations can never oversell a product.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvnhat/shopchat/internal/models"
)

// Store is the persistence surface the checkout workflow depends on.
type Store interface {
	GetUser(id string) (*models.User, error)
	SaveUser(u models.User) error

	GetProduct(id string) (*models.Product, error)
	SaveProduct(p models.Product) error
	// DecrementStock atomically decrements stock and increments the sold
	// count iff the available stock covers qty; otherwise it returns
	// models.ErrInsufficientStock and changes nothing.
	DecrementStock(productID string, qty int) error
	// RestoreStock reverses a previous decrement (saga compensation).
	RestoreStock(productID string, qty int) error

	GetCart(userID string) (*models.Cart, error)
	SaveCart(c models.Cart) error
	DeleteCart(userID string) error

	CreateOrder(o models.Order) error
	GetOrder(id string) (*models.Order, error)
	// DeleteOrder removes an order; used only for saga compensation.
	DeleteOrder(id string) error
	// ListOrdersByUser returns the user's most recent orders, newest first.
	ListOrdersByUser(userID string, limit int) ([]models.Order, error)

	Close() error
}

// MemoryStore is a mutex-guarded in-memory Store used in tests and as the
// default backend when no DSN is configured.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[string]models.User
	products map[string]models.Product
	carts    map[string]models.Cart
	orders   map[string]models.Order
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]models.User),
		products: make(map[string]models.Product),
		carts:    make(map[string]models.Cart),
		orders:   make(map[string]models.Order),
	}
}

func (s *MemoryStore) GetUser(id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("get user %s: %w", id, models.ErrUserNotFound)
	}
	return &u, nil
}

func (s *MemoryStore) SaveUser(u models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) GetProduct(id string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("get product %s: %w", id, models.ErrProductNotFound)
	}
	return &p, nil
}

func (s *MemoryStore) SaveProduct(p models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return nil
}

func (s *MemoryStore) DecrementStock(productID string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return fmt.Errorf("decrement stock %s: %w", productID, models.ErrProductNotFound)
	}
	if p.Stock < qty {
		return fmt.Errorf("decrement stock %s by %d (available %d): %w",
			productID, qty, p.Stock, models.ErrInsufficientStock)
	}
	p.Stock -= qty
	p.Sold += qty
	s.products[productID] = p
	return nil
}

func (s *MemoryStore) RestoreStock(productID string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return fmt.Errorf("restore stock %s: %w", productID, models.ErrProductNotFound)
	}
	p.Stock += qty
	p.Sold -= qty
	s.products[productID] = p
	return nil
}

func (s *MemoryStore) GetCart(userID string) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[userID]
	if !ok {
		return nil, fmt.Errorf("get cart for %s: %w", userID, models.ErrCartNotFound)
	}
	lines := make([]models.CartLine, len(c.Lines))
	copy(lines, c.Lines)
	c.Lines = lines
	return &c, nil
}

func (s *MemoryStore) SaveCart(c models.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
	s.carts[c.UserID] = c
	return nil
}

func (s *MemoryStore) DeleteCart(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}

func (s *MemoryStore) CreateOrder(o models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[o.ID]; exists {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	s.orders[o.ID] = o
	return nil
}

func (s *MemoryStore) GetOrder(id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("get order %s: %w", id, models.ErrOrderNotFound)
	}
	return &o, nil
}

func (s *MemoryStore) DeleteOrder(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, id)
	return nil
}

func (s *MemoryStore) ListOrdersByUser(userID string, limit int) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var orders []models.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *MemoryStore) Close() error { return nil }
