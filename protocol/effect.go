package protocol

import (
	"encoding/json"

	"echo/eventlog"
	"echo/identifier"
)

// Snapshot is the immutable log view a Step observes; it is taken by the
// exchange runtime under its mutex before Step is called and is never
// mutated by the FSM directly (spec.md §4.6: "every read of the log for
// decision-making takes a snapshot under the mutex").
type Snapshot = *eventlog.Log[json.RawMessage]

// SetFunc is the single mutation entry point shared by every state,
// matching spec.md §4.6: it acquires the log mutex, checks for novelty,
// writes, and — only for a novel write — publishes the EventID on the
// insertion signal. It reports whether the write was novel.
type SetFunc func(seq identifier.Seq, site identifier.Site, body json.RawMessage) bool

// IncomingEffect is the sum type spec.md §9 calls
// "Move(next) | MoveToError(e) | Terminate", specialized to IncomingState.
// Exactly one of its three constructors produces any given value.
type IncomingEffect struct {
	next      IncomingState
	err       error
	terminate bool
}

// MoveIncoming continues the FSM in next.
func MoveIncoming(next IncomingState) IncomingEffect { return IncomingEffect{next: next} }

// FailIncoming abandons the exchange with err.
func FailIncoming(err error) IncomingEffect { return IncomingEffect{err: err} }

// TerminateIncoming ends the exchange cleanly.
func TerminateIncoming() IncomingEffect { return IncomingEffect{terminate: true} }

// Next returns the next state and true if this effect is a Move.
func (e IncomingEffect) Next() (IncomingState, bool) { return e.next, e.next != nil }

// Err returns the failure, if this effect is a MoveToError.
func (e IncomingEffect) Err() error { return e.err }

// Terminated reports whether this effect is a Terminate.
func (e IncomingEffect) Terminated() bool { return e.terminate }

// OutgoingEffect mirrors IncomingEffect for OutgoingState.
type OutgoingEffect struct {
	next      OutgoingState
	err       error
	terminate bool
}

// MoveOutgoing continues the FSM in next.
func MoveOutgoing(next OutgoingState) OutgoingEffect { return OutgoingEffect{next: next} }

// FailOutgoing abandons the exchange with err.
func FailOutgoing(err error) OutgoingEffect { return OutgoingEffect{err: err} }

// TerminateOutgoing ends the exchange cleanly.
func TerminateOutgoing() OutgoingEffect { return OutgoingEffect{terminate: true} }

// Next returns the next state and true if this effect is a Move.
func (e OutgoingEffect) Next() (OutgoingState, bool) { return e.next, e.next != nil }

// Err returns the failure, if this effect is a MoveToError.
func (e OutgoingEffect) Err() error { return e.err }

// Terminated reports whether this effect is a Terminate.
func (e OutgoingEffect) Terminated() bool { return e.terminate }

// IncomingEnv bundles everything an IncomingState.Step needs for one
// selection: the log snapshot, the peer's Outgoing stream, the local
// Incoming stream to send on, and the insertion-notification signal.
type IncomingEnv struct {
	Log      Snapshot
	Recv     <-chan Outgoing
	Send     chan<- Incoming
	Inserted <-chan identifier.EventID
	Set      SetFunc
}

// IncomingState is one of New | Sending (spec.md §4.4).
type IncomingState interface {
	// Step performs exactly one non-deterministic selection among the
	// branches this state offers and returns the resulting effect.
	Step(env IncomingEnv) IncomingEffect
	// Name identifies the state for diagnostics and ProtocolViolation
	// messages.
	Name() string
}

// OutgoingEnv mirrors IncomingEnv for the Outgoing FSM.
type OutgoingEnv struct {
	Log      Snapshot
	Recv     <-chan Incoming
	Send     chan<- Outgoing
	Inserted <-chan identifier.EventID
	Set      SetFunc
}

// OutgoingState is one of Advertising | Listening | Cancelling (spec.md §4.5).
type OutgoingState interface {
	Step(env OutgoingEnv) OutgoingEffect
	Name() string
}
