package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLister struct {
	descs []ProviderDescriptor
	err   error
}

func (s staticLister) ListProviders(context.Context) ([]ProviderDescriptor, error) {
	return s.descs, s.err
}

func TestList_StableOrderNonEmpty(t *testing.T) {
	r := NewRegistry()

	first := r.List()
	require.NotEmpty(t, first)
	second := r.List()
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestGet_KnownAndUnknown(t *testing.T) {
	r := NewRegistry()

	m, err := r.Get("llama-3.3-70b-instruct")
	require.NoError(t, err)
	assert.Equal(t, "Llama 3.3 70B Instruct", m.Name)
	assert.Equal(t, VerifiabilityTEE, m.Verifiability)
	assert.False(t, m.CostPerRequest.IsZero())

	_, err = r.Get("no-such-model")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestDeriveCostPerRequest(t *testing.T) {
	m := Model{
		InputPrice:  decimal.RequireFromString("0.000001"),
		OutputPrice: decimal.RequireFromString("0.000002"),
	}
	// 400 * 0.000001 + 300 * 0.000002 = 0.001
	assert.True(t, DeriveCostPerRequest(m).Equal(decimal.RequireFromString("0.001")))
}

func TestRefresh_MergesAndKeepsOrder(t *testing.T) {
	r := NewRegistry()
	before := r.List()

	err := r.Refresh(context.Background(), staticLister{descs: []ProviderDescriptor{
		{
			ID:              "qwen-2.5-72b",
			Name:            "Qwen 2.5 72B",
			ProviderAddress: "0x1111111111111111111111111111111111111111",
			Verifiability:   VerifiabilityNone,
			InputPrice:      decimal.RequireFromString("0.0000005"),
			OutputPrice:     decimal.RequireFromString("0.000001"),
		},
		{
			// Known model: updated in place, keeps its position.
			ID:          "llama-3.3-70b-instruct",
			Name:        "Llama 3.3 70B Instruct",
			InputPrice:  decimal.RequireFromString("0.000002"),
			OutputPrice: decimal.RequireFromString("0.000004"),
		},
	}})
	require.NoError(t, err)

	after := r.List()
	require.Len(t, after, len(before)+1)
	assert.Equal(t, before[0].ID, after[0].ID)
	assert.Equal(t, "qwen-2.5-72b", after[len(after)-1].ID)

	updated, err := r.Get("llama-3.3-70b-instruct")
	require.NoError(t, err)
	assert.True(t, updated.InputPrice.Equal(decimal.RequireFromString("0.000002")))
	// CostPerRequest re-derived from the refreshed prices.
	assert.False(t, updated.CostPerRequest.IsZero())
	// Fields the descriptor omitted keep their catalog values.
	assert.Equal(t, "0xf07240Efa67755B5311bc75784a061eDB47165Dd", updated.ProviderAddress)
	assert.Equal(t, VerifiabilityTEE, updated.Verifiability)
}

func TestRefresh_SparseDescriptorKeepsCatalogFields(t *testing.T) {
	r := NewRegistry()
	known, err := r.Get("deepseek-r1-70b")
	require.NoError(t, err)

	err = r.Refresh(context.Background(), staticLister{descs: []ProviderDescriptor{
		{
			ID:          "deepseek-r1-70b",
			InputPrice:  decimal.RequireFromString("0.000003"),
			OutputPrice: decimal.RequireFromString("0.000006"),
		},
	}})
	require.NoError(t, err)

	got, err := r.Get("deepseek-r1-70b")
	require.NoError(t, err)
	assert.Equal(t, known.Name, got.Name)
	assert.Equal(t, known.ProviderAddress, got.ProviderAddress)
	assert.Equal(t, known.Description, got.Description)
	assert.Equal(t, known.Verifiability, got.Verifiability)
	assert.True(t, got.InputPrice.Equal(decimal.RequireFromString("0.000003")))
}

func TestRefresh_ListerErrorLeavesCatalog(t *testing.T) {
	r := NewRegistry()
	before := r.List()

	err := r.Refresh(context.Background(), staticLister{err: errors.New("network down")})
	require.Error(t, err)
	assert.Equal(t, len(before), len(r.List()))
}

func TestRefresh_SkipsEmptyIDs(t *testing.T) {
	r := NewEmptyRegistry()
	err := r.Refresh(context.Background(), staticLister{descs: []ProviderDescriptor{
		{ID: ""},
		{ID: "real-model", InputPrice: decimal.New(1, -6), OutputPrice: decimal.New(2, -6)},
	}})
	require.NoError(t, err)
	require.Len(t, r.List(), 1)
	assert.Equal(t, "real-model", r.List()[0].ID)
}
