package site

import (
	"context"
	"time"
)

// Pairing couples two sites across one logical link with two
// independent connections, one per direction, matching spec.md §6's
// "a.outgoing ↔ b.incoming, b.outgoing ↔ a.incoming". DialAB dials the
// connection A's Outgoing and B's Incoming share; DialBA dials the one
// B's Outgoing and A's Incoming share. Each returns the Transport as
// seen from each named side of that connection.
type Pairing struct {
	A, B   *Site
	DialAB func() (aSide Transport, bSide Transport)
	DialBA func() (bSide Transport, aSide Transport)
}

// retryDelay is the fixed delay spec.md §5 calls "retries on any failure
// after a fixed delay (1 s nominal) unless externally cancelled".
const retryDelay = time.Second

// Sync runs every Pairing's two directional exchanges, retrying a
// direction after retryDelay whenever it returns (whether cleanly or by
// error) so the link self-heals after a transport failure. ctx is checked
// only between attempts: an attempt in progress is not interrupted, so
// Sync returns once ctx is done and every direction's current attempt
// has returned.
func Sync(ctx context.Context, pairings ...Pairing) {
	done := make(chan struct{}, len(pairings)*2)
	for _, p := range pairings {
		p := p
		go runUntilCancelled(ctx, done, func() error {
			aSide, bSide := p.DialAB()
			return runDirection(p.A.Outgoing, aSide, func(t Transport) error { return p.B.Incoming(t, nil) }, bSide)
		})
		go runUntilCancelled(ctx, done, func() error {
			bSide, aSide := p.DialBA()
			return runDirection(p.B.Outgoing, bSide, func(t Transport) error { return p.A.Incoming(t, nil) }, aSide)
		})
	}
	for range pairings {
		<-done
		<-done
	}
}

// runDirection drives both ends of one directional exchange concurrently
// and reports the first non-nil error, if any, from either side.
func runDirection(outgoing func(Transport) error, outgoingSide Transport, incoming func(Transport) error, incomingSide Transport) error {
	errs := make(chan error, 2)
	go func() { errs <- outgoing(outgoingSide) }()
	go func() { errs <- incoming(incomingSide) }()
	e1, e2 := <-errs, <-errs
	if e1 != nil {
		return e1
	}
	return e2
}

func runUntilCancelled(ctx context.Context, done chan<- struct{}, run func() error) {
	for {
		run()
		select {
		case <-ctx.Done():
			done <- struct{}{}
			return
		case <-time.After(retryDelay):
		}
	}
}
