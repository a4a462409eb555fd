package protocol

import (
	"encoding/json"
	"testing"

	"echo/eventlog"
	"echo/identifier"
)

func newEnv(log *eventlog.Log[json.RawMessage], recv chan Outgoing, send chan Incoming) IncomingEnv {
	return IncomingEnv{
		Log:      log,
		Recv:     recv,
		Send:     send,
		Inserted: make(chan identifier.EventID),
		Set: func(seq identifier.Seq, site identifier.Site, body json.RawMessage) bool {
			next, ok := log.Set(seq, site, body)
			log = next
			return ok
		},
	}
}

func TestIncomingNewAdvertisesKnownSitesThenReady(t *testing.T) {
	recv := make(chan Outgoing)
	send := make(chan Incoming)
	log := eventlog.New[json.RawMessage]()
	env := newEnv(log, recv, send)

	state := NewIncoming([]identifier.Site{1, 2})
	seen := map[identifier.Site]bool{}
	for i := 0; i < 2; i++ {
		effectCh := make(chan IncomingEffect, 1)
		go func() { effectCh <- state.Step(env) }()
		msg := <-send
		adv, ok := msg.(Advertisement)
		if !ok {
			t.Fatalf("expected Advertisement, got %T", msg)
		}
		seen[adv.Site] = true
		effect := <-effectCh
		next, ok := effect.Next()
		if !ok {
			t.Fatalf("expected Move effect")
		}
		state = next
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("expected both sites advertised, got %v", seen)
	}

	effectCh := make(chan IncomingEffect, 1)
	go func() { effectCh <- state.Step(env) }()
	msg := <-send
	if _, ok := msg.(Ready); !ok {
		t.Fatalf("expected Ready after advertising known sites, got %T", msg)
	}
	effect := <-effectCh
	next, _ := effect.Next()
	if next.Name() != "Sending" {
		t.Fatalf("expected transition to Sending, got %s", next.Name())
	}
}

func TestIncomingSendingRespectsCreditDiscipline(t *testing.T) {
	log := eventlog.New[json.RawMessage]()
	log, _ = log.Set(0, 1, json.RawMessage(`"e0"`))

	recv := make(chan Outgoing)
	send := make(chan Incoming)
	env := newEnv(log, recv, send)
	env.Log = log

	state := IncomingState(incomingSending{
		advertised: []identifier.Site{1},
		nextSeqno:  map[identifier.Site]identifier.Seq{1: identifier.Zero},
		credits:    map[identifier.Site]uint64{1: 0},
	})

	//1.- With zero credit, the only legal move is to receive a Request.
	go func() { recv <- Request{Site: 1, Count: 3} }()
	effect := state.Step(env)
	next, ok := effect.Next()
	if !ok {
		t.Fatalf("expected Move effect, got err=%v terminate=%v", effect.Err(), effect.Terminated())
	}
	state = next

	//2.- Credit now available: the state must offer the pending event.
	sendResult := make(chan IncomingEffect, 1)
	go func() { sendResult <- state.Step(env) }()
	msg := <-send
	ev, ok := msg.(Event)
	if !ok {
		t.Fatalf("expected Event after credit grant, got %T", msg)
	}
	if ev.Site != 1 || ev.Seq != identifier.Zero {
		t.Fatalf("unexpected event identity: %+v", ev)
	}
	<-sendResult
}

func TestIncomingTerminatesOnClosedRecv(t *testing.T) {
	recv := make(chan Outgoing)
	send := make(chan Incoming)
	close(recv)
	log := eventlog.New[json.RawMessage]()
	env := newEnv(log, recv, send)

	state := NewIncoming(nil)
	effect := state.Step(env)
	if !effect.Terminated() {
		t.Fatalf("expected termination on closed recv")
	}
}
