// Package projection defines the deterministic left-fold from an event log
// into an application model. A OneWayProjection is a pure function: given
// the same log contents, every site must reach the same model, so
// implementations must not read any state besides their two arguments and
// must not mutate the event they are given.
package projection

import "echo/identifier"

// Fold is a OneWayProjection⟨M, E⟩: it folds a single event of body type E
// into the current model of type M, producing the next model. It is
// applied across an entire log with eventlog.Foldl(log, initial, fold).
type Fold[M, E any] func(model M, event identifier.Event[E]) M

// Apply runs fold over a single event, a convenience for callers that want
// to project one event without going through a full log fold (for example,
// to preview the model update a locally minted event would cause).
func Apply[M, E any](model M, event identifier.Event[E], fold Fold[M, E]) M {
	return fold(model, event)
}
