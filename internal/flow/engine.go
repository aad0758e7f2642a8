package flow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvnhat/shopchat/internal/analytics"
	"github.com/dvnhat/shopchat/internal/models"
	"github.com/dvnhat/shopchat/internal/notify"
	"github.com/dvnhat/shopchat/internal/shipping"
	"github.com/dvnhat/shopchat/internal/store"
)

// workflowType is the analytics type tag for checkout workflows.
const workflowType = "checkout"

// notifyTimeout bounds the fire-and-forget order notification send.
const notifyTimeout = 30 * time.Second

// Engine dispatches checkout actions to their steps. Steps for one user are
// applied strictly in the order they arrive: the engine holds a per-user
// mutex around each full step run, so session reads and commits never
// interleave for the same shopper.
type Engine struct {
	deps      *stepDeps
	collector *analytics.Collector
	notifier  notify.Service

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
	workflows map[string]string // userID -> active analytics workflow id
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithCollector attaches the analytics collector. Analytics is best-effort:
// a nil collector disables tracking and a tracking failure never affects the
// workflow.
func WithCollector(c *analytics.Collector) EngineOption {
	return func(e *Engine) { e.collector = c }
}

// WithNotifier attaches an order notification service invoked after each
// confirmed order.
func WithNotifier(n notify.Service) EngineOption {
	return func(e *Engine) { e.notifier = n }
}

// WithConfig overrides the workflow configuration.
func WithConfig(cfg Config) EngineOption {
	return func(e *Engine) { e.deps.cfg = cfg }
}

// NewEngine creates an engine bound to its collaborators.
func NewEngine(sessions SessionStore, st store.Store, rates shipping.RateProvider, opts ...EngineOption) *Engine {
	e := &Engine{
		deps: &stepDeps{
			sessions:  sessions,
			store:     st,
			inventory: NewInventoryChecker(st),
			rates:     rates,
			cfg:       DefaultConfig(),
		},
		userLocks: make(map[string]*sync.Mutex),
		workflows: make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle resolves and runs one checkout step for the user. It never panics
// and never returns an error: every failure surfaces as a StepResult.
func (e *Engine) Handle(ctx context.Context, userID string, action models.CheckoutAction, params models.StepParams) models.StepResult {
	if userID == "" {
		return models.Fail(models.FailureValidation, "A user id is required.")
	}
	if !models.IsValidCheckoutAction(action) {
		slog.Error("unknown checkout action requested", "action", action, "userID", userID)
		return models.Fail(models.FailureValidation, msgUnexpected)
	}

	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	st, err := newStep(action, e.deps)
	if err != nil {
		slog.Error("step resolution failed", "action", action, "error", err)
		return models.Fail(models.FailureValidation, msgUnexpected)
	}

	slog.Debug("handling checkout action", "action", action, "userID", userID)
	start := time.Now()
	result := runStep(ctx, st, e.deps, userID, params)
	e.observe(userID, action, result, time.Since(start))

	if action == models.ActionConfirmOrder && result.Success {
		e.notifyOrderCreated(userID)
	}
	return result
}

// Abandon clears the user's in-flight checkout, recording a cancellation for
// any active workflow. It is the explicit abandon hook for outer layers that
// detect workflow staleness.
func (e *Engine) Abandon(userID string) {
	defer e.releaseUserLock(userID)
	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	state := e.deps.sessions.Get(userID)
	e.deps.sessions.Clear(userID)
	if id := e.takeWorkflow(userID); id != "" {
		e.collector.TrackWorkflowCancellation(id, int(state.Step))
	}
	slog.Info("checkout abandoned", "userID", userID, "step", state.Step)
}

// SweepSessions clears sessions idle for longer than maxIdle, recording a
// cancellation for each affected active workflow. Intended to run on a ticker.
func (e *Engine) SweepSessions(maxIdle time.Duration) int {
	swept := e.deps.sessions.SweepExpired(maxIdle)
	for _, userID := range swept {
		if id := e.takeWorkflow(userID); id != "" {
			e.collector.TrackWorkflowCancellation(id, 0)
		}
		e.releaseUserLock(userID)
	}
	return len(swept)
}

// observe reports the step run to analytics. Tracking is best-effort and
// must never abort the workflow, so there is nothing to propagate.
func (e *Engine) observe(userID string, action models.CheckoutAction, result models.StepResult, elapsed time.Duration) {
	errContext := ""
	if !result.Success {
		errContext = string(result.Kind) + ": " + result.Message
	}

	workflowID := e.workflow(userID)
	switch {
	case action == models.ActionInitiateOrder && result.Success:
		workflowID = uuid.NewString()
		e.setWorkflow(userID, workflowID)
		e.collector.TrackWorkflowStart(workflowID, userID, workflowType)
	case action == models.ActionConfirmOrder && result.Success:
		if id := e.takeWorkflow(userID); id != "" {
			e.collector.TrackWorkflowCompletion(id, int(models.StepCreated))
		}
	case result.Kind == models.FailureUnexpected:
		// The workflow record is terminal after an unexpected failure, so the
		// mapping entry is dropped along with it.
		if id := e.takeWorkflow(userID); id != "" {
			e.collector.TrackWorkflowError(id, errContext)
		}
	}

	e.collector.TrackToolExecution(string(action), result.Success, elapsed, analytics.ToolContext{
		WorkflowID: workflowID,
		Error:      errContext,
	})
}

// notifyOrderCreated sends the order confirmation in the background. A
// notification failure never affects the committed order.
func (e *Engine) notifyOrderCreated(userID string) {
	if e.notifier == nil {
		return
	}
	state := e.deps.sessions.Get(userID)
	if state.CreatedOrderID == "" {
		return
	}
	order, err := e.deps.store.GetOrder(state.CreatedOrderID)
	if err != nil {
		slog.Warn("order lookup for notification failed", "orderID", state.CreatedOrderID, "error", err)
		return
	}
	user, err := e.deps.store.GetUser(userID)
	if err != nil || user.Phone == "" {
		slog.Warn("no reachable phone for order notification", "userID", userID, "error", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := e.notifier.SendOrderConfirmation(ctx, user.Phone, *order); err != nil {
			slog.Warn("order confirmation notification failed", "orderID", order.ID, "error", err)
		}
	}()
}

func (e *Engine) userLock(userID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		e.userLocks[userID] = lock
	}
	return lock
}

// releaseUserLock drops the user's lock entry when no step run holds it, so
// the per-user lock map does not grow with every shopper ever seen. Holding
// e.mu while probing keeps userLock from handing the entry out concurrently.
func (e *Engine) releaseUserLock(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.userLocks[userID]
	if !ok {
		return
	}
	if lock.TryLock() {
		delete(e.userLocks, userID)
		lock.Unlock()
	}
}

func (e *Engine) workflow(userID string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.workflows[userID]
}

func (e *Engine) setWorkflow(userID, id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workflows[userID] = id
}

func (e *Engine) takeWorkflow(userID string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.workflows[userID]
	delete(e.workflows, userID)
	return id
}
