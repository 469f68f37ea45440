package registry

import "github.com/shopspring/decimal"

// Typical per-request token counts used to derive a fixed estimate when a
// model does not publish one. 400 in + 300 out works out to roughly 1000
// messages per funding unit at the built-in prices.
const (
	typicalInputTokens  = 400
	typicalOutputTokens = 300
)

// builtinCatalog is the default model set, available before any network
// refresh. Prices are in currency units per token.
var builtinCatalog = []Model{
	{
		ID:              "llama-3.3-70b-instruct",
		Name:            "Llama 3.3 70B Instruct",
		ProviderAddress: "0xf07240Efa67755B5311bc75784a061eDB47165Dd",
		Description:     "State-of-the-art 70B parameter model for general AI tasks",
		Verifiability:   VerifiabilityTEE,
		InputPrice:      decimal.RequireFromString("0.000001"),
		OutputPrice:     decimal.RequireFromString("0.000002"),
	},
	{
		ID:              "deepseek-r1-70b",
		Name:            "DeepSeek R1 70B",
		ProviderAddress: "0x3feE5a4dd5FDb8a32dDA97Bed899830605dBD9D3",
		Description:     "Advanced reasoning model optimized for complex problem solving",
		Verifiability:   VerifiabilityTEE,
		InputPrice:      decimal.RequireFromString("0.000001"),
		OutputPrice:     decimal.RequireFromString("0.000002"),
	},
}

// DeriveCostPerRequest computes the fixed per-request estimate from a model's
// token prices.
func DeriveCostPerRequest(m Model) decimal.Decimal {
	in := m.InputPrice.Mul(decimal.NewFromInt(typicalInputTokens))
	out := m.OutputPrice.Mul(decimal.NewFromInt(typicalOutputTokens))
	return in.Add(out)
}
