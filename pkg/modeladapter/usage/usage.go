// Package usage records token consumption per model call.
package usage

import (
	"sort"
	"sync"
)

// TokenCount holds the token counts reported for a single model call.
type TokenCount struct {
	Model        string
	InputTokens  int
	OutputTokens int
}

// Total returns the sum of input and output tokens.
func (tc TokenCount) Total() int {
	return tc.InputTokens + tc.OutputTokens
}

// Tracker accumulates usage across calls. A session may switch models, so
// entries keep the model they were billed to. It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	entries []TokenCount
}

// Add records a token count entry.
func (t *Tracker) Add(tc TokenCount) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, tc)
}

// Last returns the most recent entry.
// The bool is false when the tracker has no entries.
func (t *Tracker) Last() (TokenCount, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) == 0 {
		return TokenCount{}, false
	}

	return t.entries[len(t.entries)-1], true
}

// Total returns the aggregate across all entries. Model is left empty.
func (t *Tracker) Total() TokenCount {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total TokenCount
	for _, e := range t.entries {
		total.InputTokens += e.InputTokens
		total.OutputTokens += e.OutputTokens
	}

	return total
}

// ByModel returns one aggregate per model, sorted by model name.
func (t *Tracker) ByModel() []TokenCount {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := make(map[string]int)
	var out []TokenCount
	for _, e := range t.entries {
		i, ok := idx[e.Model]
		if !ok {
			i = len(out)
			idx[e.Model] = i
			out = append(out, TokenCount{Model: e.Model})
		}
		out[i].InputTokens += e.InputTokens
		out[i].OutputTokens += e.OutputTokens
	}

	sort.Slice(out, func(a, b int) bool { return out[a].Model < out[b].Model })

	return out
}

// Count returns the number of recorded entries.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.entries)
}

// Reset clears all recorded entries.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = nil
}
