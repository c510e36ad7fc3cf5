package claim

// State represents the lifecycle state of a case
type State string

const (
	StateRegistered           State = "registered"
	StateDocumentationPending State = "documentation_pending"
	StateNotifiedBroker       State = "notified_broker"
	StateDocumentationReady   State = "documentation_ready"
	StateSentToInsurer        State = "sent_to_insurer"
	StateUnderEvaluation      State = "under_evaluation"
	StateIndemnitySigned      State = "indemnity_signed"
	StateReceiptReceived      State = "receipt_received"
	StateSettled              State = "settled"
	StateClosed               State = "closed"
)

// lifecycle lists every state in forward order. The index is the rank.
var lifecycle = []State{
	StateRegistered,
	StateDocumentationPending,
	StateNotifiedBroker,
	StateDocumentationReady,
	StateSentToInsurer,
	StateUnderEvaluation,
	StateIndemnitySigned,
	StateReceiptReceived,
	StateSettled,
	StateClosed,
}

// AllStates returns all lifecycle states in forward order
func AllStates() []State {
	out := make([]State, len(lifecycle))
	copy(out, lifecycle)
	return out
}

// IsValid checks if the state is a known lifecycle state
func (s State) IsValid() bool {
	return s.Rank() >= 0
}

// Rank returns the position of the state in the lifecycle, or -1 if unknown
func (s State) Rank() int {
	for i, st := range lifecycle {
		if st == s {
			return i
		}
	}
	return -1
}

// IsTerminal returns true if no transition leaves this state
func (s State) IsTerminal() bool {
	return s == StateClosed
}

// IsOpen returns true for every valid non-terminal state
func (s State) IsOpen() bool {
	return s.IsValid() && !s.IsTerminal()
}

// String returns the string representation
func (s State) String() string {
	return string(s)
}

// CanTransitionTo checks if moving to target is allowed.
// The lifecycle is linear; the only branch is a receipt, which may arrive
// from any state still ranked before receipt_received.
func (s State) CanTransitionTo(target State) bool {
	if !s.IsValid() || !target.IsValid() || s.IsTerminal() {
		return false
	}
	from, to := s.Rank(), target.Rank()
	if to == from+1 {
		return true
	}
	return target == StateReceiptReceived && from < to
}

// StatesUpTo returns every state from registered through last, inclusive
func StatesUpTo(last State) []State {
	rank := last.Rank()
	if rank < 0 {
		return nil
	}
	out := make([]State, rank+1)
	copy(out, lifecycle[:rank+1])
	return out
}
