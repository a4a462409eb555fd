package eventlog

import (
	"testing"

	"echo/identifier"
)

func TestSetIsIdempotentAndReadAfterWrite(t *testing.T) {
	log := New[string]()

	//1.- First write installs the binding and reports it as novel.
	log, ok := log.Set(0, 1, "a")
	if !ok {
		t.Fatalf("expected first write to be novel")
	}
	got, ok := log.Get(0, 1)
	if !ok || got != "a" {
		t.Fatalf("expected read-after-write to return %q, got %q (ok=%v)", "a", got, ok)
	}

	//2.- Re-inserting the same key, even with a different body, is a no-op.
	same, ok := log.Set(0, 1, "b")
	if ok {
		t.Fatalf("expected re-insert to report ok=false")
	}
	got, _ = same.Get(0, 1)
	if got != "a" {
		t.Fatalf("expected first write to remain authoritative, got %q", got)
	}
}

func TestExpectedMonotonic(t *testing.T) {
	log := New[string]()
	if log.Expected(1) != identifier.Zero {
		t.Fatalf("expected zero for unknown site")
	}

	var ok bool
	log, ok = log.Set(0, 1, "a")
	if !ok || log.Expected(1) != 1 {
		t.Fatalf("expected(1) == 1 after inserting seq 0, got %d", log.Expected(1))
	}

	log, ok = log.Set(4, 1, "b")
	if !ok || log.Expected(1) != 5 {
		t.Fatalf("expected(1) == 5 after inserting seq 4, got %d", log.Expected(1))
	}

	//1.- Filling the gap does not regress Expected.
	log, ok = log.Set(1, 1, "c")
	if !ok || log.Expected(1) != 5 {
		t.Fatalf("expected(1) to remain 5 after filling a gap, got %d", log.Expected(1))
	}
}

func TestSnapshotIsolation(t *testing.T) {
	original := New[string]()
	original, _ = original.Set(0, 1, "a")

	//1.- Taking a reference before a mutation keeps observing the old state.
	mutated, ok := original.Set(1, 1, "b")
	if !ok {
		t.Fatalf("expected second insert to be novel")
	}
	if _, present := original.Get(1, 1); present {
		t.Fatalf("original log must not observe the later mutation")
	}
	if _, present := mutated.Get(1, 1); !present {
		t.Fatalf("mutated log must observe its own write")
	}
	if _, present := mutated.Get(0, 1); !present {
		t.Fatalf("mutated log must still observe events shared with its parent")
	}
}

func TestFoldlOrdersBySeqThenSite(t *testing.T) {
	log := New[string]()
	log, _ = log.Set(0, identifier.Site(5), "b")
	log, _ = log.Set(0, identifier.Site(1), "a")
	log, _ = log.Set(1, identifier.Site(0), "c")

	var order []string
	Foldl(log, struct{}{}, func(_ struct{}, ev identifier.Event[string]) struct{} {
		order = append(order, ev.Body)
		return struct{}{}
	})

	want := []string{"a", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("expected %d events, got %d (%v)", len(want), len(order), order)
	}
	for i, v := range want {
		if order[i] != v {
			t.Fatalf("position %d: expected %q, got %q (full order %v)", i, v, order[i], order)
		}
	}
}

func TestEventsFromFiltersBySequence(t *testing.T) {
	log := New[int]()
	for seq := identifier.Seq(0); seq < 5; seq++ {
		log, _ = log.Set(seq, 1, int(seq))
	}
	events := log.Events(1, 3)
	if len(events) != 2 {
		t.Fatalf("expected 2 events from seq 3, got %d", len(events))
	}
	if events[0].ID.Seq != 3 || events[1].ID.Seq != 4 {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestSitesOnlyListsNonEmptySites(t *testing.T) {
	log := New[int]()
	log, _ = log.Set(0, 1, 0)
	log, _ = log.Set(0, 2, 0)
	sites := log.Sites()
	if len(sites) != 2 || sites[0] != 1 || sites[1] != 2 {
		t.Fatalf("unexpected sites: %v", sites)
	}
}
