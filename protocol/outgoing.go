package protocol

import "echo/identifier"

// NewOutgoing constructs the initial Outgoing FSM state (spec.md §4.5
// "Advertising").
func NewOutgoing() OutgoingState {
	return outgoingAdvertising{}
}

type outgoingAdvertising struct {
	available []identifier.Site
}

func (outgoingAdvertising) Name() string { return "Advertising" }

func (s outgoingAdvertising) Step(env OutgoingEnv) OutgoingEffect {
	msg, ok := <-env.Recv
	return s.onReceive(env, msg, ok)
}

func (s outgoingAdvertising) onReceive(env OutgoingEnv, msg Incoming, ok bool) OutgoingEffect {
	if !ok {
		return TerminateOutgoing()
	}
	switch m := msg.(type) {
	case Advertisement:
		next := s
		next.available = append(append([]identifier.Site(nil), s.available...), m.Site)
		return MoveOutgoing(next)
	case Ready:
		return MoveOutgoing(newOutgoingListening(s.available))
	case Event:
		return FailOutgoing(violation("Advertising", "unexpected Event before Ready"))
	case Done:
		return TerminateOutgoing()
	default:
		return FailOutgoing(violation("Advertising", "unrecognized incoming message %T", msg))
	}
}

func newOutgoingListening(available []identifier.Site) outgoingListening {
	return outgoingListening{pendingRequests: append([]identifier.Site(nil), available...)}
}

type outgoingListening struct {
	pendingRequests []identifier.Site
	requested       []identifier.Site
}

func (outgoingListening) Name() string { return "Listening" }

func (s outgoingListening) requestedAlready(site identifier.Site) bool {
	for _, r := range s.requested {
		if r == site {
			return true
		}
	}
	return false
}

func (s outgoingListening) Step(env OutgoingEnv) OutgoingEffect {
	if n := len(s.pendingRequests); n > 0 {
		site := s.pendingRequests[n-1]
		req := Request{
			Site:        site,
			NextForSite: env.Log.Expected(site),
			NextForAll:  env.Log.ExpectedAll(),
			Count:       MaxRequestCount,
		}
		select {
		case msg, ok := <-env.Recv:
			return s.onReceive(env, msg, ok)
		case env.Send <- req:
			next := outgoingListening{
				pendingRequests: append([]identifier.Site(nil), s.pendingRequests[:n-1]...),
				requested:       append(append([]identifier.Site(nil), s.requested...), site),
			}
			return MoveOutgoing(next)
		}
	}

	msg, ok := <-env.Recv
	return s.onReceive(env, msg, ok)
}

func (s outgoingListening) onReceive(env OutgoingEnv, msg Incoming, ok bool) OutgoingEffect {
	if !ok {
		return TerminateOutgoing()
	}
	switch m := msg.(type) {
	case Event:
		env.Set(m.Seq, m.Site, m.Body)
		next := s
		if !s.requestedAlready(m.Site) {
			next.pendingRequests = append(append([]identifier.Site(nil), s.pendingRequests...), m.Site)
		}
		return MoveOutgoing(next)
	case Advertisement:
		if s.requestedAlready(m.Site) {
			return MoveOutgoing(s)
		}
		next := s
		next.pendingRequests = append(append([]identifier.Site(nil), s.pendingRequests...), m.Site)
		return MoveOutgoing(next)
	case Ready:
		return FailOutgoing(violation("Listening", "unexpected repeated Ready"))
	case Done:
		return MoveOutgoing(outgoingCancelling{})
	default:
		return FailOutgoing(violation("Listening", "unrecognized incoming message %T", msg))
	}
}

type outgoingCancelling struct{}

func (outgoingCancelling) Name() string { return "Cancelling" }

func (outgoingCancelling) Step(env OutgoingEnv) OutgoingEffect {
	select {
	case env.Send <- Done{}:
		return TerminateOutgoing()
	case _, ok := <-env.Recv:
		if !ok {
			return TerminateOutgoing()
		}
		return TerminateOutgoing()
	}
}
