// Package client wires the prepaid account together: ledger, model registry,
// transaction history, session, and the network backend, behind the surface
// a front end consumes.
//
// DESIGN: The client is explicitly constructed and explicitly owned — created
// on connect, closed on disconnect — rather than living as process-wide
// shared state. Remote calls (funding, balance queries) happen here, outside
// the ledger's critical section; only their outcomes are applied to it.
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/zerochat/zerochat/internal/config"
	"github.com/zerochat/zerochat/internal/history"
	"github.com/zerochat/zerochat/internal/ledger"
	"github.com/zerochat/zerochat/internal/monitoring"
	"github.com/zerochat/zerochat/internal/network"
	"github.com/zerochat/zerochat/internal/pricing"
	"github.com/zerochat/zerochat/internal/registry"
	"github.com/zerochat/zerochat/internal/session"
)

// ErrReconciliationFailed means the authoritative balance could not be
// fetched; the client keeps operating on its last known balance.
var ErrReconciliationFailed = errors.New("reconciliation failed")

// Client is the top-level handle over one prepaid account and conversation.
type Client struct {
	cfg       *config.Config
	backend   network.Backend
	registry  *registry.Registry
	ledger    *ledger.Ledger
	store     history.Store
	session   *session.Session
	metrics   *monitoring.MetricsCollector
	stats     *monitoring.NetworkStats
	estimator *pricing.Estimator

	stopStatus context.CancelFunc
	closeStore func() error
}

// New constructs a client over the given backend. The transaction ledger is
// durable when cfg.History.Path is set, in-memory otherwise.
func New(cfg *config.Config, backend network.Backend) (*Client, error) {
	var store history.Store
	var closeStore func() error
	if cfg.History.Path != "" {
		s, err := history.OpenSQLiteStore(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
		store = s
		closeStore = s.Close
	} else {
		store = history.NewMemoryStore()
	}

	reg := registry.NewRegistry()
	model, err := reg.Get(cfg.Session.DefaultModel)
	if err != nil {
		if closeStore != nil {
			_ = closeStore()
		}
		return nil, fmt.Errorf("default model: %w", err)
	}

	led := ledger.New(store)
	est := pricing.NewEstimator()
	stats := monitoring.NewNetworkStats()
	stats.SetActiveProviders(len(reg.List()))

	c := &Client{
		cfg:        cfg,
		backend:    backend,
		registry:   reg,
		ledger:     led,
		store:      store,
		session:    session.NewSession(reg, led, est, backend, model, cfg.Session.Account),
		metrics:    monitoring.NewMetricsCollector(),
		stats:      stats,
		estimator:  est,
		closeStore: closeStore,
	}

	if cfg.Network.StatusStream {
		ctx, cancel := context.WithCancel(context.Background())
		c.stopStatus = cancel
		stream := network.NewStatusStream(cfg.Network.Endpoint, func(ev network.StatusEvent) {
			stats.ApplyStatus(ev.BlockHeight, ev.LatencyMillis, ev.TotalRequests)
		})
		go stream.Watch(ctx)
	}

	return c, nil
}

// Close tears the client down: the status stream stops and the durable
// history store, if any, is closed. In-flight sends observe cancellation
// through their own contexts.
func (c *Client) Close() error {
	if c.stopStatus != nil {
		c.stopStatus()
	}
	if c.closeStore != nil {
		return c.closeStore()
	}
	return nil
}

// ListModels returns the model catalog.
func (c *Client) ListModels() []registry.Model {
	return c.registry.List()
}

// RefreshModels merges live provider descriptors into the catalog and
// updates the active-provider count.
func (c *Client) RefreshModels(ctx context.Context) error {
	if err := c.registry.Refresh(ctx, c.backend); err != nil {
		return err
	}
	c.stats.SetActiveProviders(len(c.registry.List()))
	return nil
}

// GetBalance returns the tracked balance snapshot.
func (c *Client) GetBalance() ledger.Balance {
	return c.ledger.Balance()
}

// Fund moves amount into the account and credits the ledger on success. A
// failed external transfer leaves the balance unchanged and records a failed
// deposit for audit.
func (c *Client) Fund(ctx context.Context, amount decimal.Decimal) (ledger.Balance, error) {
	if !amount.IsPositive() {
		return c.ledger.Balance(), fmt.Errorf("%w: fund amount must be positive, got %s", ledger.ErrInvalidAmount, amount)
	}

	if err := c.backend.FundAccount(ctx, amount); err != nil {
		c.ledger.RecordFailedDeposit(amount, "Manual deposit")
		return c.ledger.Balance(), fmt.Errorf("fund account: %w", err)
	}

	b, err := c.ledger.Fund(amount)
	if err != nil {
		return b, err
	}
	c.metrics.RecordDeposit()
	return b, nil
}

// Refresh reconciles the tracked available balance against the authoritative
// external source. A failed query is non-fatal: the stale balance is kept
// and ErrReconciliationFailed is returned.
func (c *Client) Refresh(ctx context.Context) (ledger.Balance, error) {
	external, err := c.backend.QueryBalance(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("balance query failed, keeping stale balance")
		return c.ledger.Balance(), fmt.Errorf("%w: %v", ErrReconciliationFailed, err)
	}
	return c.ledger.Reconcile(external)
}

// SendMessage sends text on the session and settles its cost.
func (c *Client) SendMessage(ctx context.Context, text string) (session.Exchange, error) {
	ex, err := c.session.Send(ctx, text)
	if err != nil {
		c.metrics.RecordSend(false, 0, 0)
		return session.Exchange{}, err
	}
	c.metrics.RecordSend(true, ex.TokensIn, ex.TokensOut)
	return ex, nil
}

// SelectModel changes the session's active model.
func (c *Client) SelectModel(id string) error {
	return c.session.SelectModel(id)
}

// Session exposes the conversation for front ends.
func (c *Client) Session() *session.Session {
	return c.session
}

// ClearSession empties the conversation history.
func (c *Client) ClearSession() {
	c.session.Clear()
}

// ExportSession renders the conversation as JSON.
func (c *Client) ExportSession() ([]byte, error) {
	return c.session.Export()
}

// GetHistory returns recorded transactions, newest first.
func (c *Client) GetHistory() ([]history.Transaction, error) {
	return c.store.List()
}

// GetUsageTotals returns completed deposit and usage totals.
func (c *Client) GetUsageTotals() (history.Totals, error) {
	return c.store.Totals()
}

// Metrics returns the operational counters.
func (c *Client) Metrics() monitoring.Snapshot {
	return c.metrics.Snapshot()
}

// NetworkStats returns the last known chain status.
func (c *Client) NetworkStats() monitoring.StatsSnapshot {
	return c.stats.Snapshot()
}
