// Package cost prices token usage. Pricing is an explicit table passed in,
// never ambient state, so callers can pin their own rates.
package cost

import (
	"math"
	"sync"

	"rlm-engine/engine"
)

// Pricing is the per-million-token rate for one model.
type Pricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Table maps model IDs to their pricing.
type Table map[string]Pricing

// Fallback rates for models missing from the table, matching a mid-tier root
// and a small sub model.
var (
	defaultRootPricing = Pricing{InputPerMTok: 3.0, OutputPerMTok: 15.0}
	defaultSubPricing  = Pricing{InputPerMTok: 0.25, OutputPerMTok: 1.25}
)

// DefaultTable returns pricing for the supported Claude models.
func DefaultTable() Table {
	return Table{
		"claude-opus-4-6":             {InputPerMTok: 15.0, OutputPerMTok: 75.0},
		"claude-sonnet-4-5-20250929":  {InputPerMTok: 3.0, OutputPerMTok: 15.0},
		"claude-haiku-4-5-20251001":   {InputPerMTok: 0.25, OutputPerMTok: 1.25},
		"claude-sonnet-4-20250514":    {InputPerMTok: 3.0, OutputPerMTok: 15.0},
		"claude-opus-4-5-20251101":    {InputPerMTok: 15.0, OutputPerMTok: 75.0},
	}
}

// Estimate is the cost breakdown for one query, split by model tier.
type Estimate struct {
	RootModel        string  `json:"root_model"`
	RootInputTokens  int     `json:"root_input_tokens"`
	RootOutputTokens int     `json:"root_output_tokens"`
	RootCostUSD      float64 `json:"root_cost_usd"`
	SubModel         string  `json:"sub_model"`
	SubInputTokens   int     `json:"sub_input_tokens"`
	SubOutputTokens  int     `json:"sub_output_tokens"`
	SubCostUSD       float64 `json:"sub_cost_usd"`
	TotalCostUSD     float64 `json:"total_cost_usd"`
}

// Estimate prices the token usage of one result.
func (t Table) Estimate(result engine.QueryResult, rootModel, subModel string) Estimate {
	rootPricing, ok := t[rootModel]
	if !ok {
		rootPricing = defaultRootPricing
	}
	subPricing, ok := t[subModel]
	if !ok {
		subPricing = defaultSubPricing
	}

	rootCost := price(result.RootInputTokens, result.RootOutputTokens, rootPricing)
	subCost := price(result.SubInputTokens, result.SubOutputTokens, subPricing)

	return Estimate{
		RootModel:        rootModel,
		RootInputTokens:  result.RootInputTokens,
		RootOutputTokens: result.RootOutputTokens,
		RootCostUSD:      round4(rootCost),
		SubModel:         subModel,
		SubInputTokens:   result.SubInputTokens,
		SubOutputTokens:  result.SubOutputTokens,
		SubCostUSD:       round4(subCost),
		TotalCostUSD:     round4(rootCost + subCost),
	}
}

func price(inputTokens, outputTokens int, p Pricing) float64 {
	return float64(inputTokens)/1_000_000*p.InputPerMTok +
		float64(outputTokens)/1_000_000*p.OutputPerMTok
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}

// TrackingHook accumulates spend across queries as a post-query middleware.
// Safe for concurrent use.
type TrackingHook struct {
	table     Table
	rootModel string
	subModel  string

	mu      sync.Mutex
	total   float64
	queries int
}

func NewTrackingHook(table Table, rootModel, subModel string) *TrackingHook {
	if table == nil {
		table = DefaultTable()
	}
	return &TrackingHook{table: table, rootModel: rootModel, subModel: subModel}
}

func (h *TrackingHook) PostQuery(result engine.QueryResult) engine.QueryResult {
	est := h.table.Estimate(result, h.rootModel, h.subModel)
	h.mu.Lock()
	h.total += est.TotalCostUSD
	h.queries++
	h.mu.Unlock()
	return result
}

// TotalUSD returns accumulated spend and the number of queries priced.
func (h *TrackingHook) TotalUSD() (float64, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return round4(h.total), h.queries
}
