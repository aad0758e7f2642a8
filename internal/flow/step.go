package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dvnhat/shopchat/internal/models"
	"github.com/dvnhat/shopchat/internal/shipping"
	"github.com/dvnhat/shopchat/internal/store"
)

// Config holds the tunable constants of the checkout workflow.
type Config struct {
	// ServiceFee is the fixed fee added to every order total.
	ServiceFee int64
	// FallbackShippingFee is charged when the rate provider is unavailable.
	FallbackShippingFee int64
	// FallbackEstimatedDays is the delivery estimate used with the fallback fee.
	FallbackEstimatedDays int
	// DefaultItemWeightGrams substitutes for lines with unknown weight.
	DefaultItemWeightGrams int
	// MinChargeableWeightGrams is the floor for the aggregated cart weight.
	MinChargeableWeightGrams int
	// RecentOrderLimit caps the order list returned by the status step.
	RecentOrderLimit int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ServiceFee:               0,
		FallbackShippingFee:      29000,
		FallbackEstimatedDays:    5,
		DefaultItemWeightGrams:   200,
		MinChargeableWeightGrams: 500,
		RecentOrderLimit:         5,
	}
}

// stepDeps bundles the collaborators injected into every step.
type stepDeps struct {
	sessions  SessionStore
	store     store.Store
	inventory *InventoryChecker
	rates     shipping.RateProvider
	cfg       Config
}

// outcome is what a step execution produces: the result handed back to the
// caller plus the state mutation committed only on success. Execution itself
// never writes the session store; centralizing mutation in the commit phase
// keeps every state change auditable.
type outcome struct {
	result models.StepResult
	update *SessionUpdate
}

// step is the contract every checkout step implements. validate short-circuits
// with a failure (and no mutation) when the step's precondition is unmet;
// execute performs the step against a snapshot of the session state.
type step interface {
	action() models.CheckoutAction
	validate(s models.SessionOrderState) *models.StepResult
	execute(ctx context.Context, userID string, s models.SessionOrderState, params models.StepParams) (outcome, error)
}

// sessionResetter is implemented by the step that re-enters the workflow and
// must wipe any previous session before executing.
type sessionResetter interface {
	resetsSession() bool
}

// runStep drives one step through the uniform validate/execute/commit
// sequence. Errors and panics from execute never escape: they are converted
// to a generic unexpected-failure result at this boundary.
func runStep(ctx context.Context, st step, deps *stepDeps, userID string, params models.StepParams) models.StepResult {
	if r, ok := st.(sessionResetter); ok && r.resetsSession() {
		deps.sessions.Reset(userID)
	}
	state := deps.sessions.Get(userID)

	if res := st.validate(state); res != nil {
		slog.Debug("step precondition unmet", "action", st.action(), "userID", userID, "kind", res.Kind)
		return *res
	}

	out, err := executeGuarded(ctx, st, userID, state, params)
	if err != nil {
		slog.Error("step execution failed", "action", st.action(), "userID", userID, "error", err)
		return models.Fail(models.FailureUnexpected, msgUnexpected)
	}

	if out.result.Success && out.update != nil {
		deps.sessions.Update(userID, *out.update)
		if out.update.Step != nil {
			out.result.NextStep = *out.update.Step
		}
	}
	return out.result
}

// executeGuarded runs execute with panic recovery, so a misbehaving step or
// collaborator surfaces as an error instead of taking the process down.
func executeGuarded(ctx context.Context, st step, userID string, state models.SessionOrderState, params models.StepParams) (out outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %s panicked: %v", st.action(), r)
		}
	}()
	return st.execute(ctx, userID, state, params)
}

// stepPtr is a convenience for building SessionUpdate literals.
func stepPtr(s models.CheckoutStep) *models.CheckoutStep { return &s }
