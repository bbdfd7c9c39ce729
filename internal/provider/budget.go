package provider

import (
	"fmt"
	"sync"
)

// CostType identifies a billed operation class.
type CostType string

const (
	CostEmbedding  CostType = "embedding"
	CostChatInput  CostType = "chat_input"
	CostChatOutput CostType = "chat_output"
)

// USD per 1K tokens.
var costPer1K = map[CostType]float64{
	CostEmbedding:  0.00002,
	CostChatInput:  0.00015,
	CostChatOutput: 0.00060,
}

// BudgetStatus is a point-in-time snapshot of spend against the cap.
type BudgetStatus struct {
	MaxBudget   float64 `json:"max_budget"`
	Used        float64 `json:"used"`
	Remaining   float64 `json:"remaining"`
	PercentUsed float64 `json:"percent_used"`
}

// Budget tracks estimated cumulative spend against a hard cap. A reservation
// is made before each provider call; once the cap is reached every further
// reservation fails with ErrBudgetExceeded. A zero or negative cap disables
// tracking.
type Budget struct {
	mu   sync.Mutex
	max  float64
	used float64
}

// NewBudget returns a tracker with the given cap in USD.
func NewBudget(maxUSD float64) *Budget {
	return &Budget{max: maxUSD}
}

// EstimateTokens approximates the token count of text. The heuristic of four
// characters per token matches the pricing estimate used on ingestion.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// Reserve records the estimated cost of tokens at the given rate class. It
// returns ErrBudgetExceeded when the reservation would cross the cap, leaving
// the tracker unchanged.
func (b *Budget) Reserve(tokens int, ct CostType) error {
	if b == nil || b.max <= 0 {
		return nil
	}
	cost := float64(tokens) / 1000 * costPer1K[ct]

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.used+cost > b.max {
		return fmt.Errorf("%w: used $%.5f of $%.5f", ErrBudgetExceeded, b.used, b.max)
	}
	b.used += cost
	return nil
}

// Status reports current usage.
func (b *Budget) Status() BudgetStatus {
	if b == nil || b.max <= 0 {
		return BudgetStatus{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return BudgetStatus{
		MaxBudget:   b.max,
		Used:        b.used,
		Remaining:   b.max - b.used,
		PercentUsed: b.used / b.max * 100,
	}
}
