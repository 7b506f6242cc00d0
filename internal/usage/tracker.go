// Package usage accumulates per-model token totals for the session.
package usage

import "sync"

// Counts holds token totals for one model.
type Counts struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates counts.
func (c *Counts) Add(input, output int) {
	c.InputTokens += input
	c.OutputTokens += output
}

// Tracker records token usage per model. Safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	totals map[string]Counts
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{totals: make(map[string]Counts)}
}

// AddUse records one request's input and output tokens for model.
func (t *Tracker) AddUse(model string, input, output int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := t.totals[model]
	entry.Add(input, output)
	t.totals[model] = entry
}

// Usage returns a copy of the per-model totals.
func (t *Tracker) Usage() map[string]Counts {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Counts, len(t.totals))
	for model, counts := range t.totals {
		out[model] = counts
	}
	return out
}
