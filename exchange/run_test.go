package exchange

import (
	"encoding/json"
	"testing"
	"time"

	"echo/identifier"
	"echo/protocol"
)

func TestRunDeliversEventsFromIncomingToOutgoingStore(t *testing.T) {
	incomingStore := NewStore()
	outgoingStore := NewStore()

	//1.- Seed the incoming side with two events for site 1 before sync starts.
	incomingStore.Set(0, 1, json.RawMessage(`"a"`))
	incomingStore.Set(1, 1, json.RawMessage(`"b"`))

	toIncoming := make(chan protocol.Outgoing, 8)
	toOutgoing := make(chan protocol.Incoming, 8)

	done := make(chan error, 2)
	go func() {
		done <- RunIncoming(incomingStore, toIncoming, toOutgoing, protocol.NewIncoming(nil), nil)
	}()
	go func() {
		done <- RunOutgoing(outgoingStore, toOutgoing, toIncoming, protocol.NewOutgoing(), nil)
	}()

	deadline := time.After(2 * time.Second)
	for {
		snap := outgoingStore.Snapshot()
		if _, ok := snap.Get(0, 1); ok {
			if _, ok := snap.Get(1, 1); ok {
				break
			}
		}
		select {
		case <-deadline:
			t.Fatalf("events were not replicated in time")
		case <-time.After(10 * time.Millisecond):
		}
	}

	close(toIncoming)
	close(toOutgoing)
	<-done
	<-done
}

func TestRunTerminatesOnClosedChannels(t *testing.T) {
	store := NewStore()
	recv := make(chan protocol.Outgoing)
	send := make(chan protocol.Incoming, 1)
	close(recv)

	if err := RunIncoming(store, recv, send, protocol.NewIncoming([]identifier.Site{1}), nil); err != nil {
		t.Fatalf("expected clean termination, got %v", err)
	}
}
