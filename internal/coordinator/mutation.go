package coordinator

import (
	"fmt"

	"github.com/vendorpay/expenseflow/internal/cache"
)

// Phase tracks one mutation invocation through its lifecycle
type Phase string

const (
	PhaseIdle           Phase = "IDLE"
	PhaseApplied        Phase = "OPTIMISTIC_APPLIED"
	PhaseSettledSuccess Phase = "SETTLED_SUCCESS"
	PhaseSettledFailure Phase = "SETTLED_FAILURE"
)

// Legal lifecycle: idle -> applied -> settled, with idle -> failure for
// pre-flight validation rejections that never touch the cache.
var phaseTransitions = map[Phase][]Phase{
	PhaseIdle:    {PhaseApplied, PhaseSettledFailure},
	PhaseApplied: {PhaseSettledSuccess, PhaseSettledFailure},
}

// mutation is the per-invocation state: its phase and the snapshot
// token captured before the optimistic write. Tokens are independent
// across concurrent mutations; each restores to its own start state.
type mutation struct {
	op    string
	phase Phase
	token cache.Token
}

func newMutation(op string) *mutation {
	return &mutation{op: op, phase: PhaseIdle}
}

func (m *mutation) fire(next Phase) error {
	for _, allowed := range phaseTransitions[m.phase] {
		if allowed == next {
			m.phase = next
			return nil
		}
	}
	return fmt.Errorf("coordinator: %s: invalid phase transition %s -> %s", m.op, m.phase, next)
}

// Settled reports whether the mutation's outcome is known
func (m *mutation) Settled() bool {
	return m.phase == PhaseSettledSuccess || m.phase == PhaseSettledFailure
}
