// Package flow implements the conversational checkout workflow: the per-user
// session state store, the step contract, the seven concrete checkout steps
// and the engine that dispatches them.
package flow

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dvnhat/shopchat/internal/models"
)

// SessionUpdate is a shallow merge applied to a session. Nil fields are left
// untouched; set fields replace the stored value.
type SessionUpdate struct {
	Step            *models.CheckoutStep
	CartValidation  *models.CartValidation
	SelectedAddress *models.Address
	ShippingInfo    *models.ShippingInfo
	PaymentMethod   *models.PaymentMethod
	OrderSummary    *models.OrderSummary
	CreatedOrderID  *string
}

// SessionStore manages volatile per-user checkout state behind a key-value
// interface, so it can later be backed by an external cache without touching
// step logic. Implementations serialize individual operations but provide no
// read-modify-write atomicity across calls; the engine holds a per-user
// critical section around each full step run.
type SessionStore interface {
	// Get returns the stored state for the user, lazily creating the
	// default (StepIdle, all fields nil) when none exists.
	Get(userID string) models.SessionOrderState

	// Update shallow-merges the set fields of u into the user's state.
	Update(userID string, u SessionUpdate)

	// Reset restores the user's state to the default.
	Reset(userID string)

	// Clear removes the user's entry entirely (explicit abandon hook).
	Clear(userID string)

	// HasReached reports whether the stored step has advanced at least to
	// target in the fixed step order.
	HasReached(userID string, target models.CheckoutStep) bool

	// SweepExpired clears every session idle for longer than maxIdle and
	// returns the affected user ids.
	SweepExpired(maxIdle time.Duration) []string
}

type sessionEntry struct {
	state     models.SessionOrderState
	updatedAt time.Time
}

// MemorySessionStore implements SessionStore with an in-process map. State is
// lost on restart, which is the intended retention model.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	now      func() time.Time
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*sessionEntry),
		now:      time.Now,
	}
}

// Get returns the stored state for the user, creating the default if absent.
func (m *MemorySessionStore) Get(userID string) models.SessionOrderState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entryLocked(userID).state
}

// Update shallow-merges the set fields of u into the user's state.
func (m *MemorySessionStore) Update(userID string, u SessionUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entryLocked(userID)
	if u.Step != nil {
		e.state.Step = *u.Step
	}
	if u.CartValidation != nil {
		e.state.CartValidation = u.CartValidation
	}
	if u.SelectedAddress != nil {
		e.state.SelectedAddress = u.SelectedAddress
	}
	if u.ShippingInfo != nil {
		e.state.ShippingInfo = u.ShippingInfo
	}
	if u.PaymentMethod != nil {
		e.state.PaymentMethod = *u.PaymentMethod
	}
	if u.OrderSummary != nil {
		e.state.OrderSummary = u.OrderSummary
	}
	if u.CreatedOrderID != nil {
		e.state.CreatedOrderID = *u.CreatedOrderID
	}
	e.updatedAt = m.now()
	slog.Debug("SessionStore updated", "userID", userID, "step", e.state.Step)
}

// Reset restores the user's state to the default.
func (m *MemorySessionStore) Reset(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = &sessionEntry{updatedAt: m.now()}
	slog.Debug("SessionStore reset", "userID", userID)
}

// Clear removes the user's entry entirely.
func (m *MemorySessionStore) Clear(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	slog.Debug("SessionStore cleared", "userID", userID)
}

// HasReached reports whether the stored step has advanced at least to target.
func (m *MemorySessionStore) HasReached(userID string, target models.CheckoutStep) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[userID]
	if !ok {
		return models.StepIdle.Reached(target)
	}
	return e.state.Step.Reached(target)
}

// SweepExpired clears sessions idle for longer than maxIdle and returns the
// affected user ids.
func (m *MemorySessionStore) SweepExpired(maxIdle time.Duration) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-maxIdle)
	var swept []string
	for userID, e := range m.sessions {
		if e.updatedAt.Before(cutoff) {
			delete(m.sessions, userID)
			swept = append(swept, userID)
		}
	}
	if len(swept) > 0 {
		slog.Info("SessionStore swept expired sessions", "count", len(swept), "max_idle", maxIdle)
	}
	return swept
}

func (m *MemorySessionStore) entryLocked(userID string) *sessionEntry {
	e, ok := m.sessions[userID]
	if !ok {
		e = &sessionEntry{updatedAt: m.now()}
		m.sessions[userID] = e
	}
	return e
}
