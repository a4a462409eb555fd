// Package protocol defines the two wire alphabets Echo sites exchange and
// the two finite-state machines that drive them: Incoming (the side
// holding data to offer) and Outgoing (the side consuming it). Both sum
// types are sealed Go interfaces implemented by small marker structs, and
// both FSMs expose a Step method the exchange runtime drives one
// non-deterministic selection at a time (spec.md §4.4/§4.5).
package protocol

import (
	"encoding/json"

	"echo/identifier"
)

// Incoming is the alphabet sent by the side holding data to offer
// (spec.md §4.3 "Incoming").
type Incoming interface{ incomingMessage() }

// Outgoing is the alphabet sent by the side consuming data (spec.md §4.3
// "Outgoing").
type Outgoing interface{ outgoingMessage() }

// Advertisement announces that the sender holds events for Site.
type Advertisement struct{ Site identifier.Site }

func (Advertisement) incomingMessage() {}

// Ready announces that every currently-known site has been advertised.
type Ready struct{}

func (Ready) incomingMessage() {}

// Event carries a single event payload for (Seq, Site).
type Event struct {
	Seq  identifier.Seq
	Site identifier.Site
	Body json.RawMessage
}

func (Event) incomingMessage() {}

// Acknowledge tells the peer not to resend events below NextSeqno for Site.
type Acknowledge struct {
	Site      identifier.Site
	NextSeqno identifier.Seq
}

func (Acknowledge) outgoingMessage() {}

// Request asks the peer to send up to Count events for Site starting at
// NextForSite; NextForAll reports the requester's overall expected
// sequence number at the time of the request.
type Request struct {
	Site        identifier.Site
	NextForSite identifier.Seq
	NextForAll  identifier.Seq
	Count       uint64
}

func (Request) outgoingMessage() {}

// Done is the explicit terminal message of the "V1 dialect" described in
// spec.md §4.3; the minimal dialect instead simply closes the channel. It
// is a member of both alphabets.
type Done struct{}

func (Done) incomingMessage() {}
func (Done) outgoingMessage() {}

// MaxRequestCount is the credit count a Request may ask for in one
// message; spec.md §5 calls this MAX_LONG and notes implementations may
// cap it for fairness.
const MaxRequestCount uint64 = 1 << 32
