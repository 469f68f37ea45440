package network

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/zerochat/zerochat/internal/registry"
)

// StubBackend is a deterministic, scriptable Backend for tests and offline
// demo runs. Every call is recorded; responses come from the configured
// fields rather than the network.
type StubBackend struct {
	mu sync.Mutex

	// Scripted responses.
	FundErr      error
	BalanceValue decimal.Decimal
	BalanceErr   error
	Providers    []registry.ProviderDescriptor
	ProvidersErr error
	InvokeResult *InvokeResult
	InvokeErr    error

	// InvokeFn, when set, overrides InvokeResult/InvokeErr per call.
	InvokeFn func(ctx context.Context, modelID, providerAddress, prompt string) (*InvokeResult, error)

	// Call log.
	FundCalls    []decimal.Decimal
	InvokeCalls  []string // prompts, in order
	BalanceCalls int
}

var _ Backend = (*StubBackend)(nil)

// NewStubBackend creates a stub that answers every invocation with content
// and full token attestation.
func NewStubBackend(content string) *StubBackend {
	return &StubBackend{
		InvokeResult: &InvokeResult{
			Content:   content,
			TokensIn:  12,
			TokensOut: 34,
			Verified:  true,
		},
	}
}

func (s *StubBackend) FundAccount(_ context.Context, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FundCalls = append(s.FundCalls, amount)
	return s.FundErr
}

func (s *StubBackend) QueryBalance(context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BalanceCalls++
	return s.BalanceValue, s.BalanceErr
}

func (s *StubBackend) ListProviders(context.Context) ([]registry.ProviderDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Providers, s.ProvidersErr
}

func (s *StubBackend) Invoke(ctx context.Context, modelID, providerAddress, prompt string) (*InvokeResult, error) {
	s.mu.Lock()
	s.InvokeCalls = append(s.InvokeCalls, prompt)
	fn := s.InvokeFn
	res, err := s.InvokeResult, s.InvokeErr
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, modelID, providerAddress, prompt)
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &InvokeResult{}, nil
	}
	cp := *res
	return &cp, nil
}
