package engine

import (
	"sync"

	"go.uber.org/zap"

	"rlm-engine/metrics"
)

// PreQuerier transforms the question and document text before the loop runs.
type PreQuerier interface {
	PreQuery(question, document string) (string, string)
}

// PostQuerier transforms the result after the loop finishes.
type PostQuerier interface {
	PostQuery(result QueryResult) QueryResult
}

// Chain is an ordered set of hooks. A hook may implement PreQuerier,
// PostQuerier, or both; a missing method is a no-op for that hook, not an
// error. Pre hooks run in registration order, post hooks in reverse.
type Chain struct {
	hooks []any
}

func NewChain(hooks ...any) *Chain {
	return &Chain{hooks: hooks}
}

// Use appends a hook to the end of the chain.
func (c *Chain) Use(hook any) {
	c.hooks = append(c.hooks, hook)
}

func (c *Chain) RunPre(question, document string) (string, string) {
	for _, h := range c.hooks {
		if pre, ok := h.(PreQuerier); ok {
			question, document = pre.PreQuery(question, document)
		}
	}
	return question, document
}

func (c *Chain) RunPost(result QueryResult) QueryResult {
	for i := len(c.hooks) - 1; i >= 0; i-- {
		if post, ok := c.hooks[i].(PostQuerier); ok {
			result = post.PostQuery(result)
		}
	}
	return result
}

// LoggingHook logs a summary line on each side of a query.
type LoggingHook struct {
	logger *zap.Logger
}

func NewLoggingHook(logger *zap.Logger) *LoggingHook {
	return &LoggingHook{logger: logger}
}

func (h *LoggingHook) PreQuery(question, document string) (string, string) {
	h.logger.Info("Query started",
		zap.String("question", preview(question, 100)),
		zap.Int("document_chars", len(document)))
	return question, document
}

func (h *LoggingHook) PostQuery(result QueryResult) QueryResult {
	h.logger.Info("Query finished",
		zap.String("answer", preview(result.Answer, 200)),
		zap.String("confidence", result.Confidence),
		zap.Int("sub_calls_used", result.SubCallsUsed))
	return result
}

// Totals is a snapshot of usage accumulated across queries.
type Totals struct {
	QueryCount       int `json:"query_count"`
	RootInputTokens  int `json:"root_input_tokens"`
	RootOutputTokens int `json:"root_output_tokens"`
	SubInputTokens   int `json:"sub_input_tokens"`
	SubOutputTokens  int `json:"sub_output_tokens"`
}

// UsageHook accumulates token usage across queries. Safe for concurrent use.
type UsageHook struct {
	mu     sync.Mutex
	totals Totals
}

func NewUsageHook() *UsageHook {
	return &UsageHook{}
}

func (h *UsageHook) PreQuery(question, document string) (string, string) {
	h.mu.Lock()
	h.totals.QueryCount++
	h.mu.Unlock()
	return question, document
}

func (h *UsageHook) PostQuery(result QueryResult) QueryResult {
	h.mu.Lock()
	h.totals.RootInputTokens += result.RootInputTokens
	h.totals.RootOutputTokens += result.RootOutputTokens
	h.totals.SubInputTokens += result.SubInputTokens
	h.totals.SubOutputTokens += result.SubOutputTokens
	h.mu.Unlock()
	return result
}

func (h *UsageHook) Totals() Totals {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.totals
}

// MetricsHook reports finished queries to the Prometheus collectors.
type MetricsHook struct{}

func NewMetricsHook() *MetricsHook {
	return &MetricsHook{}
}

func (*MetricsHook) PostQuery(result QueryResult) QueryResult {
	metrics.RecordQuery(len(result.Trajectory), result.SubCallsUsed,
		result.RootInputTokens, result.RootOutputTokens,
		result.SubInputTokens, result.SubOutputTokens)
	return result
}

func preview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
