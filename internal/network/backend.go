// Package network holds the collaborator capabilities the client consumes:
// moving funds, querying the authoritative balance, listing providers, and
// invoking a model. The wire protocol behind them is not this package's
// concern beyond the minimal JSON shapes the HTTP backend speaks.
package network

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/zerochat/zerochat/internal/registry"
)

// ErrInvocationFailed wraps any provider, network, or timeout error raised
// while a model invocation was in flight. It is retryable: the caller's
// reservation is rolled back and the draft message is preserved.
var ErrInvocationFailed = errors.New("model invocation failed")

// InvokeResult is the billable unit of work returned by a provider.
type InvokeResult struct {
	Content   string
	TokensIn  int
	TokensOut int
	Verified  bool // provider attested execution (TEE)
}

// Backend is the remote side of the prepaid account.
type Backend interface {
	// FundAccount moves real value into the account. Only success or
	// failure is observed here; the ledger is credited by the caller on
	// success.
	FundAccount(ctx context.Context, amount decimal.Decimal) error

	// QueryBalance returns the authoritative available balance.
	QueryBalance(ctx context.Context) (decimal.Decimal, error)

	// ListProviders returns live model descriptors for the registry.
	ListProviders(ctx context.Context) ([]registry.ProviderDescriptor, error)

	// Invoke sends one prompt to a model and returns the exchange. The call
	// is network-bound and honors ctx cancellation.
	Invoke(ctx context.Context, modelID, providerAddress, prompt string) (*InvokeResult, error)
}
