package paper

import (
	"slices"
	"sync"

	"survivor-go/internal/execution"
)

// Ledger keeps every paper fill of a run in arrival order.
type Ledger struct {
	mu    sync.Mutex
	fills []execution.Fill
}

// NewLedger returns an empty ledger with room for capacity fills.
func NewLedger(capacity int) *Ledger {
	return &Ledger{fills: make([]execution.Fill, 0, max(capacity, 0))}
}

// Record implements FillRecorder.
func (l *Ledger) Record(fill execution.Fill) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fills = append(l.fills, fill)
}

// Snapshot copies the fills recorded so far.
func (l *Ledger) Snapshot() []execution.Fill {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.fills)
}

// QtyBySymbol sums filled quantity per symbol, sells positive and buys negative.
func (l *Ledger) QtyBySymbol() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int)
	for _, f := range l.fills {
		if f.Side == execution.Buy {
			out[f.Symbol] -= f.Qty
			continue
		}
		out[f.Symbol] += f.Qty
	}
	return out
}

// Reset drops every fill, e.g. between paper sessions.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.fills)
	l.fills = l.fills[:0]
}

// Tee fans a fill out to several recorders.
type Tee []FillRecorder

// Record forwards fill to every non-nil recorder.
func (t Tee) Record(fill execution.Fill) {
	for _, r := range t {
		if r != nil {
			r.Record(fill)
		}
	}
}
