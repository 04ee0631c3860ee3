package domain

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Operation labels what a language model call was made for.
type Operation string

// Operations issued by the pipeline.
const (
	OperationPlan       Operation = "plan"
	OperationSynthesize Operation = "synthesize"
)

// UsageRecord accounts for one language model attempt.
type UsageRecord struct {
	Operation    Operation     `json:"operation"`
	Provider     string        `json:"provider"`
	Model        string        `json:"model"`
	Attempt      int           `json:"attempt"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Latency      time.Duration `json:"latency_ns"`
	CostUSD      float64       `json:"cost_usd"`
	Error        string        `json:"error,omitempty"`
}

// Succeeded reports whether the attempt returned a completion.
func (u UsageRecord) Succeeded() bool {
	return u.Error == ""
}

// TotalCost sums the cost of records.
func TotalCost(records []UsageRecord) float64 {
	var total float64
	for _, r := range records {
		total += r.CostUSD
	}
	return total
}

// UsageLedger collects the usage records of a single request.
// It is safe for concurrent use.
type UsageLedger struct {
	mu      sync.Mutex
	records []UsageRecord
}

// NewUsageLedger returns an empty ledger.
func NewUsageLedger() *UsageLedger {
	return &UsageLedger{}
}

// Record appends a usage record.
func (l *UsageLedger) Record(u UsageRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, u)
}

// Records returns a copy of the recorded usage in insertion order.
func (l *UsageLedger) Records() []UsageRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]UsageRecord, len(l.records))
	copy(out, l.records)
	return out
}

type ledgerKey struct{}

// WithUsageLedger returns a context carrying ledger.
func WithUsageLedger(ctx context.Context, ledger *UsageLedger) context.Context {
	return context.WithValue(ctx, ledgerKey{}, ledger)
}

// UsageLedgerFrom returns the ledger carried by ctx, or nil.
func UsageLedgerFrom(ctx context.Context) *UsageLedger {
	l, _ := ctx.Value(ledgerKey{}).(*UsageLedger)
	return l
}

// ModelPrice is the USD price per million tokens of a model.
type ModelPrice struct {
	InputPerMTok  float64 `yaml:"input" json:"input"`
	OutputPerMTok float64 `yaml:"output" json:"output"`
}

// PricingTable maps model identifiers to prices.
type PricingTable map[string]ModelPrice

// Price returns the price of model. Unknown models are an error.
func (t PricingTable) Price(model string) (ModelPrice, error) {
	p, ok := t[model]
	if !ok {
		return ModelPrice{}, fmt.Errorf("%w: no price for %q", ErrUnknownModel, model)
	}
	return p, nil
}

// Cost estimates the USD cost of a call to model.
func (t PricingTable) Cost(model string, inputTokens, outputTokens int) (float64, error) {
	p, err := t.Price(model)
	if err != nil {
		return 0, err
	}
	return float64(inputTokens)/1_000_000*p.InputPerMTok +
		float64(outputTokens)/1_000_000*p.OutputPerMTok, nil
}

// Models returns the priced model identifiers in sorted order.
func (t PricingTable) Models() []string {
	out := make([]string, 0, len(t))
	for m := range t {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
