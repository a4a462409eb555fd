package protocol

import (
	"encoding/json"

	"echo/identifier"
)

// NewIncoming constructs the initial Incoming FSM state (spec.md §4.4
// "New"), parameterized by a snapshot of the site's known sites.
func NewIncoming(knownSites []identifier.Site) IncomingState {
	remaining := append([]identifier.Site(nil), knownSites...)
	return incomingNew{remainingToSend: remaining}
}

type incomingNew struct {
	alreadySent     []identifier.Site
	remainingToSend []identifier.Site
}

func (incomingNew) Name() string { return "New" }

func (s incomingNew) Step(env IncomingEnv) IncomingEffect {
	// Priority: a message already waiting wins the selection so
	// cancellation is observed promptly (spec.md §4.4).
	select {
	case msg, ok := <-env.Recv:
		return s.onReceive(msg, ok)
	default:
	}

	if n := len(s.remainingToSend); n > 0 {
		site := s.remainingToSend[n-1]
		select {
		case msg, ok := <-env.Recv:
			return s.onReceive(msg, ok)
		case env.Send <- Advertisement{Site: site}:
			next := incomingNew{
				alreadySent:     append(append([]identifier.Site(nil), s.alreadySent...), site),
				remainingToSend: append([]identifier.Site(nil), s.remainingToSend[:n-1]...),
			}
			return MoveIncoming(next)
		}
	}

	select {
	case msg, ok := <-env.Recv:
		return s.onReceive(msg, ok)
	case env.Send <- Ready{}:
		return MoveIncoming(newIncomingSending(s.alreadySent))
	}
}

func (incomingNew) onReceive(_ Outgoing, ok bool) IncomingEffect {
	if !ok {
		return TerminateIncoming()
	}
	return FailIncoming(violation("New", "unexpected message before Ready"))
}

func newIncomingSending(advertised []identifier.Site) incomingSending {
	nextSeqno := make(map[identifier.Site]identifier.Seq, len(advertised))
	credits := make(map[identifier.Site]uint64, len(advertised))
	for _, site := range advertised {
		nextSeqno[site] = identifier.Zero
		credits[site] = 0
	}
	return incomingSending{
		advertised: append([]identifier.Site(nil), advertised...),
		nextSeqno:  nextSeqno,
		credits:    credits,
	}
}

type incomingSending struct {
	advertised []identifier.Site
	nextSeqno  map[identifier.Site]identifier.Seq
	credits    map[identifier.Site]uint64
}

func (incomingSending) Name() string { return "Sending" }

func (s incomingSending) clone() incomingSending {
	nextSeqno := make(map[identifier.Site]identifier.Seq, len(s.nextSeqno))
	for k, v := range s.nextSeqno {
		nextSeqno[k] = v
	}
	credits := make(map[identifier.Site]uint64, len(s.credits))
	for k, v := range s.credits {
		credits[k] = v
	}
	return incomingSending{
		advertised: append([]identifier.Site(nil), s.advertised...),
		nextSeqno:  nextSeqno,
		credits:    credits,
	}
}

func (s incomingSending) isAdvertised(site identifier.Site) bool {
	for _, advertised := range s.advertised {
		if advertised == site {
			return true
		}
	}
	return false
}

// nextSendableEvent deterministically picks the first qualifying (site,
// event): sites are scanned in ascending SiteIdentifier order, and for the
// first site that is advertised, has credit, and has an event at or past
// its next expected sequence, the smallest such event is chosen.
func (s incomingSending) nextSendableEvent(log Snapshot) (identifier.Site, identifier.Event[json.RawMessage], bool) {
	for _, site := range log.Sites() {
		if !s.isAdvertised(site) || s.credits[site] == 0 {
			continue
		}
		events := log.Events(site, s.nextSeqno[site])
		if len(events) == 0 {
			continue
		}
		return site, events[0], true
	}
	return 0, identifier.Event[json.RawMessage]{}, false
}

func (s incomingSending) nextUnadvertisedSite(log Snapshot) (identifier.Site, bool) {
	for _, site := range log.Sites() {
		if !s.isAdvertised(site) {
			return site, true
		}
	}
	return 0, false
}

func (s incomingSending) Step(env IncomingEnv) IncomingEffect {
	select {
	case msg, ok := <-env.Recv:
		return s.onReceive(msg, ok)
	default:
	}

	if site, event, ok := s.nextSendableEvent(env.Log); ok {
		select {
		case msg, ok2 := <-env.Recv:
			return s.onReceive(msg, ok2)
		case <-env.Inserted:
			return MoveIncoming(s)
		case env.Send <- Event{Seq: event.ID.Seq, Site: site, Body: event.Body}:
			next := s.clone()
			next.credits[site]--
			next.nextSeqno[site] = event.ID.Seq.Inc()
			return MoveIncoming(next)
		}
	}

	if site, ok := s.nextUnadvertisedSite(env.Log); ok {
		select {
		case msg, ok2 := <-env.Recv:
			return s.onReceive(msg, ok2)
		case <-env.Inserted:
			return MoveIncoming(s)
		case env.Send <- Advertisement{Site: site}:
			next := s.clone()
			next.advertised = append(next.advertised, site)
			return MoveIncoming(next)
		}
	}

	select {
	case msg, ok := <-env.Recv:
		return s.onReceive(msg, ok)
	case <-env.Inserted:
		return MoveIncoming(s)
	}
}

func (s incomingSending) onReceive(msg Outgoing, ok bool) IncomingEffect {
	if !ok {
		return TerminateIncoming()
	}
	switch m := msg.(type) {
	case Acknowledge:
		next := s.clone()
		next.nextSeqno[m.Site] = m.NextSeqno
		next.credits[m.Site] = 0
		return MoveIncoming(next)
	case Request:
		next := s.clone()
		next.credits[m.Site] = saturatingAddU64(next.credits[m.Site], m.Count)
		return MoveIncoming(next)
	case Done:
		return TerminateIncoming()
	default:
		return FailIncoming(violation("Sending", "unrecognized outgoing message %T", msg))
	}
}

func saturatingAddU64(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return ^uint64(0)
	}
	return sum
}
