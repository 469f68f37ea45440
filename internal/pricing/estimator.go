// Package pricing computes the estimated and actual cost of a single
// inference request against a model's token prices.
//
// DESIGN: The pre-send estimate is the amount the ledger reserves, so it is
// deliberately conservative: token counts are rounded up, a floor of
// MinInputTokens applies, and the result never drops below the model's fixed
// CostPerRequest. Settlement cost is capped at the reservation; a provider
// that bills beyond the estimate is truncated rather than driving the
// balance negative.
package pricing

import (
	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/zerochat/zerochat/internal/registry"
)

const (
	// TokenEstimateRatio is the approximate number of characters per token,
	// used when no encoder is available.
	TokenEstimateRatio = 4

	// MinInputTokens floors the input estimate for very short drafts.
	MinInputTokens = 10

	// AssumedOutputTokens is the output allowance priced into every estimate.
	AssumedOutputTokens = 50

	encodingName = "cl100k_base"
)

// Estimator prices draft messages and completed exchanges.
type Estimator struct {
	enc *tiktoken.Tiktoken // nil means heuristic counting
}

// NewEstimator creates an estimator. Token counting uses the cl100k_base
// encoding when it can be loaded and falls back to the chars/4 heuristic.
func NewEstimator() *Estimator {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		log.Warn().Err(err).Msg("tiktoken encoding unavailable, using character heuristic")
		return &Estimator{}
	}
	return &Estimator{enc: enc}
}

// Estimate returns the conservative pre-send cost for draft on model. This
// is the amount the settlement flow reserves.
func (e *Estimator) Estimate(model registry.Model, draft string) decimal.Decimal {
	inTokens := e.CountTokens(draft)
	if inTokens < MinInputTokens {
		inTokens = MinInputTokens
	}

	cost := model.InputPrice.Mul(decimal.NewFromInt(int64(inTokens))).
		Add(model.OutputPrice.Mul(decimal.NewFromInt(AssumedOutputTokens)))

	// The fixed per-request estimate is the conservative lower bound: the
	// reservation must cover the accounting rule even for tiny drafts.
	if cost.LessThan(model.CostPerRequest) {
		cost = model.CostPerRequest
	}
	return cost
}

// ActualCost prices a completed exchange from reported token counts, capped
// at the reserved estimate. When the provider reports no counts at all the
// charge degrades to the pre-send estimate. Negative counts are treated as
// missing: the result is always in [0, estimate] so settlement cannot reject
// it.
func (e *Estimator) ActualCost(model registry.Model, inputTokens, outputTokens int, estimate decimal.Decimal) decimal.Decimal {
	if inputTokens < 0 {
		inputTokens = 0
	}
	if outputTokens < 0 {
		outputTokens = 0
	}
	if inputTokens == 0 && outputTokens == 0 {
		return estimate
	}

	cost := model.InputPrice.Mul(decimal.NewFromInt(int64(inputTokens))).
		Add(model.OutputPrice.Mul(decimal.NewFromInt(int64(outputTokens))))

	if cost.GreaterThan(estimate) {
		log.Warn().
			Str("model", model.ID).
			Str("cost", cost.String()).
			Str("estimate", estimate.String()).
			Msg("actual cost exceeds reservation, truncating")
		return estimate
	}
	return cost
}

// CountTokens returns the token count of text, rounding up under the
// character heuristic.
func (e *Estimator) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if e.enc != nil {
		return len(e.enc.Encode(text, nil, nil))
	}
	return (len(text) + TokenEstimateRatio - 1) / TokenEstimateRatio
}
