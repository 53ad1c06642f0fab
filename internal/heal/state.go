package heal

import "fmt"

// State is one phase of the healing loop's explicit state machine. Making
// the transitions data keeps the bounded-retry contract testable without
// driving the whole loop.
type State string

const (
	StateBaseline State = "baseline" // initial verification of the untouched file
	StateSelect   State = "select"   // pick the next untried candidate fix
	StateApply    State = "apply"    // apply the fix and write the file
	StateVerify   State = "verify"   // re-run verification on the mutated file
	StateDone     State = "done"     // terminal
)

// transitions is the full legal transition table. A no-op fix skips the
// verify phase and returns straight to selection; every state may terminate.
var transitions = map[State][]State{
	StateBaseline: {StateSelect, StateDone},
	StateSelect:   {StateApply, StateDone},
	StateApply:    {StateVerify, StateSelect, StateDone},
	StateVerify:   {StateSelect, StateDone},
	StateDone:     {},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// machine tracks the loop's current phase and rejects illegal transitions,
// which would indicate a control-flow bug rather than a healing failure.
type machine struct {
	state State
}

func newMachine() *machine {
	return &machine{state: StateBaseline}
}

func (m *machine) to(next State) error {
	if !CanTransition(m.state, next) {
		return fmt.Errorf("illegal healing state transition %s -> %s", m.state, next)
	}
	m.state = next
	return nil
}
