package core

import "sync"

// TurnBudget bounds the number of model turns an agent may spend on a single
// task. A zero budget is unlimited.
type TurnBudget struct {
	mu    sync.Mutex
	max   int
	spent int
}

// NewTurnBudget creates a budget allowing max model turns.
func NewTurnBudget(max int) *TurnBudget {
	return &TurnBudget{max: max}
}

// Take consumes one turn. It reports false once the budget is exhausted, in
// which case nothing is consumed.
func (b *TurnBudget) Take() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max > 0 && b.spent >= b.max {
		return false
	}

	b.spent++

	return true
}

// Spent returns the number of turns consumed so far.
func (b *TurnBudget) Spent() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.spent
}

// Remaining returns the turns left, or -1 when unlimited.
func (b *TurnBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max == 0 {
		return -1
	}

	return b.max - b.spent
}
