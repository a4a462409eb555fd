// Package site implements the Site API spec.md §6 describes: a
// SiteIdentifier, an incoming/outgoing exchange pair per connected peer,
// and an atomic local event-production entry point, all sharing one
// exchange.Store per site.
package site

import (
	"encoding/json"

	"echo/eventlog"
	"echo/exchange"
	"echo/identifier"
	"echo/internal/logging"
	"echo/projection"
	"echo/protocol"
)

// Transport is the duplex byte-message channel pair a transport adapter
// (transport/ws, transport/grpcstream, or an in-memory pipe for tests)
// provides. Closing Inbound signals "peer finished" per spec.md §6.
type Transport struct {
	Inbound  <-chan []byte
	Outbound chan<- []byte
}

// Site is one participant in the replication system: an identifier, a
// log store, the codec its exchanges use, and an optional logger.
type Site struct {
	id     identifier.Site
	store  *exchange.Store
	codec  Codec
	logger *logging.Logger
}

// Codec turns wire bytes into protocol messages and back; wire.JSONCodec
// and wire.ProtoCodec both satisfy it.
type Codec interface {
	EncodeIncoming(protocol.Incoming) ([]byte, error)
	DecodeIncoming([]byte) (protocol.Incoming, error)
	EncodeOutgoing(protocol.Outgoing) ([]byte, error)
	DecodeOutgoing([]byte) (protocol.Outgoing, error)
}

// New returns a Site with an empty log.
func New(id identifier.Site, codec Codec) *Site {
	return &Site{id: id, store: exchange.NewStore(), codec: codec}
}

// Resume returns a Site whose log is seeded from a previously-persisted
// journal load (eventlog.LoadJournal).
func Resume(id identifier.Site, codec Codec, log *eventlog.Log[json.RawMessage]) *Site {
	return &Site{id: id, store: exchange.NewStoreFrom(log), codec: codec}
}

// Identifier returns this site's immutable SiteIdentifier.
func (s *Site) Identifier() identifier.Site { return s.id }

// Store exposes the underlying exchange.Store for callers that need a
// raw snapshot (e.g. to seed a journal writer).
func (s *Site) Store() *exchange.Store { return s.store }

// SetLogger attaches a logger that Incoming/Outgoing derive a
// site-scoped logger from for FSM transition and outcome logging. A Site
// without a logger falls back to the package-global logger.
func (s *Site) SetLogger(logger *logging.Logger) { s.logger = logger }

// Incoming runs the server side of one pairing against t until the peer
// disconnects or a ProtocolViolation occurs. knownSites seeds the set of
// sites advertised before Ready.
func (s *Site) Incoming(t Transport, knownSites []identifier.Site) error {
	recv := make(chan protocol.Outgoing)
	send := make(chan protocol.Incoming)
	done := make(chan struct{})
	defer close(done)

	go decodeLoop(t.Inbound, recv, done, s.codec.DecodeOutgoing)
	go encodeLoop(send, t.Outbound, s.codec.EncodeIncoming)

	err := exchange.RunIncoming(s.store, recv, send, protocol.NewIncoming(knownSites), s.logger.WithSite(s.id))
	close(send)
	return err
}

// Outgoing runs the client side of one pairing against t.
func (s *Site) Outgoing(t Transport) error {
	recv := make(chan protocol.Incoming)
	send := make(chan protocol.Outgoing)
	done := make(chan struct{})
	defer close(done)

	go decodeLoop(t.Inbound, recv, done, s.codec.DecodeIncoming)
	go encodeLoop(send, t.Outbound, s.codec.EncodeOutgoing)

	err := exchange.RunOutgoing(s.store, recv, send, protocol.NewOutgoing(), s.logger.WithSite(s.id))
	close(send)
	return err
}

// Scope is handed to the block passed to Event; each Yield call mints a
// new local event, sequenced after the last one minted in this call.
type Scope[M any] struct {
	Model M
	mint  func(body json.RawMessage) identifier.EventID
}

// Yield appends body as a new event for this site and returns its
// identifier.
func (sc Scope[M]) Yield(body json.RawMessage) identifier.EventID {
	return sc.mint(body)
}

// Event atomically appends zero or more local events, per spec.md §4.7:
// the block observes the model folded from the log at entry and a scope
// to yield new bodies, and the whole call is atomic with respect to any
// concurrent exchange on this site.
func Event[M any](s *Site, initial M, fold projection.Fold[M, json.RawMessage], block func(Scope[M])) {
	s.store.Mutate(s.id, func(log protocol.Snapshot, mint func(json.RawMessage) identifier.EventID) {
		model := eventlog.Foldl(log, initial, fold)
		block(Scope[M]{Model: model, mint: mint})
	})
}

func decodeLoop[M any](inbound <-chan []byte, out chan<- M, done <-chan struct{}, decode func([]byte) (M, error)) {
	defer close(out)
	for {
		select {
		case frame, ok := <-inbound:
			if !ok {
				return
			}
			msg, err := decode(frame)
			if err != nil {
				return
			}
			select {
			case out <- msg:
			case <-done:
				return
			}
		case <-done:
			return
		}
	}
}

func encodeLoop[M any](in <-chan M, outbound chan<- []byte, encode func(M) ([]byte, error)) {
	defer close(outbound)
	for msg := range in {
		frame, err := encode(msg)
		if err != nil {
			return
		}
		outbound <- frame
	}
}
