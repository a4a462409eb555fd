// Package eventlog implements the site-partitioned, ordered event log the
// replication core synchronizes over. A *Log is immutable: Set returns a
// new header that shares the untouched per-site slices with its parent, so
// a reference obtained before a mutation keeps observing the pre-mutation
// snapshot for as long as it is held, without any locking inside the log
// itself (the exchange runtime supplies the mutex, per spec §4.6/§5).
package eventlog

import (
	"sort"

	"echo/identifier"
)

type record[T any] struct {
	seq  identifier.Seq
	body T
}

// Log is the reference ImmutableEventLog / PersistentEventLog implementation:
// a map from site to a slice of records sorted ascending by sequence
// number. Gaps within a site's slice are permitted; the spec treats them as
// causal holes to be filled by a later sync.
type Log[T any] struct {
	sites map[identifier.Site][]record[T]
}

// New returns an empty log.
func New[T any]() *Log[T] {
	return &Log[T]{sites: make(map[identifier.Site][]record[T])}
}

// Sites returns the set of sites for which at least one event exists.
func (l *Log[T]) Sites() []identifier.Site {
	if l == nil {
		return nil
	}
	out := make([]identifier.Site, 0, len(l.sites))
	for site, records := range l.sites {
		if len(records) > 0 {
			out = append(out, site)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Expected returns the next sequence number this log expects for site: the
// incremented maximum recorded sequence, or Zero if none is recorded.
func (l *Log[T]) Expected(site identifier.Site) identifier.Seq {
	if l == nil {
		return identifier.Zero
	}
	records := l.sites[site]
	if len(records) == 0 {
		return identifier.Zero
	}
	return records[len(records)-1].seq.Inc()
}

// ExpectedAll returns the maximum Expected across every known site, or
// Zero if the log is empty.
func (l *Log[T]) ExpectedAll() identifier.Seq {
	if l == nil {
		return identifier.Zero
	}
	max := identifier.Zero
	for site := range l.sites {
		if e := l.Expected(site); max == identifier.Zero || e > max {
			max = e
		}
	}
	return max
}

// Get performs an exact lookup, returning the recorded body and true if
// (seq, site) is present.
func (l *Log[T]) Get(seq identifier.Seq, site identifier.Site) (T, bool) {
	var zero T
	if l == nil {
		return zero, false
	}
	records := l.sites[site]
	idx, ok := search(records, seq)
	if !ok {
		return zero, false
	}
	return records[idx].body, true
}

// Events returns, in ascending sequence order, every event recorded for
// site with a sequence number >= from.
func (l *Log[T]) Events(site identifier.Site, from identifier.Seq) []identifier.Event[T] {
	if l == nil {
		return nil
	}
	records := l.sites[site]
	start := sort.Search(len(records), func(i int) bool { return records[i].seq >= from })
	out := make([]identifier.Event[T], 0, len(records)-start)
	for _, rec := range records[start:] {
		out = append(out, identifier.Event[T]{ID: identifier.EventID{Seq: rec.seq, Site: site}, Body: rec.body})
	}
	return out
}

// Foldl left-folds every event in l, in ascending EventID order (sequence
// first, then site), into a model starting from initial. Methods cannot
// introduce their own type parameters in Go, so the fold lives as a free
// function over *Log[T] rather than a method. The merge walks each site's
// ascending slice in lock-step, always advancing whichever site currently
// has the smallest head EventID — the linear-scan variant of the
// min-heap-over-site-heads strategy the spec suggests, practical here
// because the number of sites is small relative to the number of events.
func Foldl[T, M any](l *Log[T], initial M, f func(model M, event identifier.Event[T]) M) M {
	if l == nil {
		return initial
	}
	sites := l.Sites()
	cursors := make(map[identifier.Site]int, len(sites))
	model := initial
	for {
		var (
			bestSite identifier.Site
			bestID   identifier.EventID
			found    bool
		)
		for _, site := range sites {
			idx := cursors[site]
			records := l.sites[site]
			if idx >= len(records) {
				continue
			}
			id := identifier.EventID{Seq: records[idx].seq, Site: site}
			if !found || id.Less(bestID) {
				bestSite, bestID, found = site, id, true
			}
		}
		if !found {
			return model
		}
		idx := cursors[bestSite]
		rec := l.sites[bestSite][idx]
		model = f(model, identifier.Event[T]{ID: bestID, Body: rec.body})
		cursors[bestSite] = idx + 1
	}
}

// Set returns a log with (seq, site) bound to body. If the key is already
// present the original log is returned unchanged (the first write wins —
// see DESIGN.md for the §9 open-question resolution) and ok is false.
// Otherwise a new *Log is returned sharing every other site's slice with
// the receiver, and ok is true.
func (l *Log[T]) Set(seq identifier.Seq, site identifier.Site, body T) (next *Log[T], ok bool) {
	if l == nil {
		l = New[T]()
	}
	existing := l.sites[site]
	idx := sort.Search(len(existing), func(i int) bool { return existing[i].seq >= seq })
	if idx < len(existing) && existing[idx].seq == seq {
		return l, false
	}

	updated := make([]record[T], len(existing)+1)
	copy(updated, existing[:idx])
	updated[idx] = record[T]{seq: seq, body: body}
	copy(updated[idx+1:], existing[idx:])

	sites := make(map[identifier.Site][]record[T], len(l.sites)+1)
	for k, v := range l.sites {
		sites[k] = v
	}
	sites[site] = updated
	return &Log[T]{sites: sites}, true
}

func search[T any](records []record[T], seq identifier.Seq) (int, bool) {
	idx := sort.Search(len(records), func(i int) bool { return records[i].seq >= seq })
	if idx < len(records) && records[idx].seq == seq {
		return idx, true
	}
	return 0, false
}
