// Package exchange drives the protocol FSMs against a shared,
// mutex-guarded event log and the channel pair a transport provides,
// per spec.md §4.6/§5: the log mutex is acquired only for Set, Mutate,
// Subscribe (and its unsubscribe) and for taking a Snapshot, and is never
// held across a blocking channel send or receive (insertion notifications
// sent under it are non-blocking).
package exchange

import (
	"encoding/json"
	"sync"

	"echo/eventlog"
	"echo/identifier"
	"echo/protocol"
)

// insertionBuffer is generous enough that a slow subscriber does not
// stall Set; a subscriber that falls behind simply re-derives its
// candidates from the next Snapshot, since Inserted is only ever used
// to wake a state up to re-scan, never as the sole source of truth.
const insertionBuffer = 64

// Store owns one site's log and the single mutex spec.md §5 calls
// "one mutex, one log snapshot, one insertion signal" per site. Every
// exchange instance for this site shares one Store.
type Store struct {
	mu   sync.Mutex
	log  *eventlog.Log[json.RawMessage]
	subs map[int]chan identifier.EventID
	next int
}

// NewStore returns a Store over an empty log.
func NewStore() *Store {
	return &Store{log: eventlog.New[json.RawMessage](), subs: make(map[int]chan identifier.EventID)}
}

// NewStoreFrom returns a Store seeded from a previously-loaded log, for
// resuming from a journal.
func NewStoreFrom(log *eventlog.Log[json.RawMessage]) *Store {
	if log == nil {
		log = eventlog.New[json.RawMessage]()
	}
	return &Store{log: log, subs: make(map[int]chan identifier.EventID)}
}

// Snapshot returns the log header currently visible; it shares
// structure with every other snapshot taken before the next Set, so it
// is safe to read from outside the mutex once obtained.
func (s *Store) Snapshot() protocol.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log
}

// Subscribe registers a fresh insertion-notification channel and returns
// it along with an unsubscribe function the caller must invoke when done.
func (s *Store) Subscribe() (<-chan identifier.EventID, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	ch := make(chan identifier.EventID, insertionBuffer)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Mutate runs fn atomically under the store's mutex, per spec.md §4.7:
// fn observes the log snapshot in effect at entry and may call mint any
// number of times to append fresh local events for site, each one
// sequenced from log.Expected(site) and incrementing from there. Every
// minted event is signalled to subscribers once fn returns, still with
// insertions batched rather than interleaved with fn's own reads.
func (s *Store) Mutate(site identifier.Site, fn func(log protocol.Snapshot, mint func(body json.RawMessage) identifier.EventID)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.log.Expected(site)
	var minted []identifier.EventID
	mint := func(body json.RawMessage) identifier.EventID {
		id := identifier.EventID{Seq: seq, Site: site}
		if next, ok := s.log.Set(seq, site, body); ok {
			s.log = next
			minted = append(minted, id)
		}
		seq = seq.Inc()
		return id
	}

	fn(s.log, mint)

	for _, id := range minted {
		for _, ch := range s.subs {
			select {
			case ch <- id:
			default:
			}
		}
	}
}

// Set is the single mutation entry point (spec.md §4.6 set_fn): it
// acquires the mutex, checks novelty, writes, and — only for a novel
// write — publishes the EventID to every subscriber. It is handed to
// every FSM state as protocol.SetFunc; site.Event mints local events
// through Mutate instead.
func (s *Store) Set(seq identifier.Seq, site identifier.Site, body json.RawMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := s.log.Set(seq, site, body)
	if !ok {
		return false
	}
	s.log = next
	id := identifier.EventID{Seq: seq, Site: site}
	for _, ch := range s.subs {
		select {
		case ch <- id:
		default:
		}
	}
	return true
}
