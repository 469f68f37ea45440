// Package settlement drives one metered inference request end-to-end:
// estimate, reserve, invoke, then settle or roll back.
//
// DESIGN: The flow is a small state machine. Funds are reserved atomically
// before the remote call and the ledger mutex is never held across it; on
// any invocation failure (provider error, network error, timeout,
// cancellation) the reservation is released in full, so a failed exchange
// never charges the user. Each Settlement owns its reservation, which keeps
// concurrent settlements individually safe even if a caller violates the
// one-in-flight discipline.
package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/zerochat/zerochat/internal/ledger"
	"github.com/zerochat/zerochat/internal/network"
	"github.com/zerochat/zerochat/internal/pricing"
	"github.com/zerochat/zerochat/internal/registry"
)

// State is the settlement progress marker.
type State int

const (
	StateIdle State = iota
	StateEstimating
	StateReserved
	StateInvoking
	StateSettled // terminal: funds charged, result available
	StateFailed  // terminal: reservation released, no charge
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEstimating:
		return "estimating"
	case StateReserved:
		return "reserved"
	case StateInvoking:
		return "invoking"
	case StateSettled:
		return "settled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is a successfully settled exchange.
type Result struct {
	Content   string
	TokensIn  int
	TokensOut int
	Verified  bool
	Estimate  decimal.Decimal
	Cost      decimal.Decimal
}

// Settlement processes one request. Zero value is not usable; construct with
// New and call Run exactly once.
type Settlement struct {
	ledger    *ledger.Ledger
	estimator *pricing.Estimator
	backend   network.Backend
	state     State
}

// New creates a settlement over the given collaborators.
func New(led *ledger.Ledger, est *pricing.Estimator, backend network.Backend) *Settlement {
	return &Settlement{ledger: led, estimator: est, backend: backend, state: StateIdle}
}

// State returns the current state, for callers that surface progress.
func (s *Settlement) State() State {
	return s.state
}

// Run executes the settlement flow for text against model. On success the
// exchange is charged to the ledger and returned. On failure no charge is
// made: an insufficient balance aborts before any remote call, and an
// invocation failure releases the reservation in full.
func (s *Settlement) Run(ctx context.Context, model registry.Model, text string) (*Result, error) {
	s.state = StateEstimating
	estimate := s.estimator.Estimate(model, text)

	res, err := s.ledger.Reserve(estimate)
	if err != nil {
		s.state = StateFailed
		return nil, fmt.Errorf("reserve %s for %s: %w", estimate, model.ID, err)
	}
	s.state = StateReserved

	s.state = StateInvoking
	inv, err := s.backend.Invoke(ctx, model.ID, model.ProviderAddress, text)
	if err != nil {
		s.state = StateFailed
		if _, relErr := s.ledger.Release(res, "AI chat with "+model.ID); relErr != nil {
			log.Error().Err(relErr).Str("model", model.ID).Msg("failed to release reservation")
		}
		if ctx.Err() != nil {
			// Cancellation and timeout are settled the same way as any other
			// invocation failure: full rollback, retryable error.
			return nil, fmt.Errorf("%w: %v", network.ErrInvocationFailed, ctx.Err())
		}
		if !isInvocationFailure(err) {
			err = fmt.Errorf("%w: %v", network.ErrInvocationFailed, err)
		}
		return nil, err
	}

	cost := s.estimator.ActualCost(model, inv.TokensIn, inv.TokensOut, estimate)
	if _, err := s.ledger.Settle(res, cost, "AI chat with "+model.ID); err != nil {
		// A rejected settle must not strand the reservation in locked.
		s.state = StateFailed
		if _, relErr := s.ledger.Release(res, "AI chat with "+model.ID); relErr != nil && !errors.Is(relErr, ledger.ErrReservationDone) {
			log.Error().Err(relErr).Str("model", model.ID).Msg("failed to release reservation")
		}
		return nil, fmt.Errorf("settle %s: %w", model.ID, err)
	}
	s.state = StateSettled

	log.Info().
		Str("model", model.ID).
		Str("estimate", estimate.String()).
		Str("cost", cost.String()).
		Int("tokens_in", inv.TokensIn).
		Int("tokens_out", inv.TokensOut).
		Bool("verified", inv.Verified).
		Msg("request settled")

	return &Result{
		Content:   inv.Content,
		TokensIn:  inv.TokensIn,
		TokensOut: inv.TokensOut,
		Verified:  inv.Verified,
		Estimate:  estimate,
		Cost:      cost,
	}, nil
}

func isInvocationFailure(err error) bool {
	return errors.Is(err, network.ErrInvocationFailed)
}
