// Package multiplex implements the EventMultiplexer of spec.md §4.2: it
// merges a dynamic set of Sources into a single monotonically
// non-decreasing stream, always selecting the source whose next event
// has the earliest When, ties broken by registration order (spec.md
// §3 "Ordering relation", §4.2 "Selection"). New code in the teacher's
// idiom — gocryptotrader's backtester has no multiplexer, it flattens
// every DataEventHandler into one pre-sorted queue up front.
package multiplex

import (
	"time"

	"github.com/quantforge/barstream/internal/event"
	"github.com/quantforge/barstream/internal/log"
	"github.com/quantforge/barstream/internal/source"
)

// Status reports the multiplexer's readiness for the next pop, per
// spec.md §4.2 "Emptiness".
type Status int

const (
	// Ready means at least one source has a deliverable event now.
	Ready Status = iota
	// Idle means every source is either terminated or transiently
	// empty, but at least one non-terminated source remains.
	Idle
	// Exhausted means every registered source has terminated.
	Exhausted
)

type registered struct {
	src source.Source
	seq uint64
}

// Multiplexer merges N sources. Not safe for concurrent use; driven
// exclusively from the dispatcher's single logical task.
type Multiplexer struct {
	sources []*registered
	nextSeq uint64
	// eventSeq is the monotonically increasing insertion sequence
	// assigned to each event as it is popped from its source, per
	// spec.md §3 "Ordering relation".
	eventSeq uint64
}

// New creates an empty Multiplexer.
func New() *Multiplexer {
	return &Multiplexer{}
}

// Register adds a source to the merged set. Sources may be registered
// at any point before the run loop's idle check (spec.md §4.2 "Dynamic
// set"); registration order is the tie-break key for simultaneous
// events (FIFO across sources).
func (m *Multiplexer) Register(s source.Source) {
	m.nextSeq++
	m.sources = append(m.sources, &registered{src: s, seq: m.nextSeq})
	log.Debugf(log.Multiplexer, "registered source #%d (total=%d)", m.nextSeq, len(m.sources))
}

// Status reports the multiplexer's current readiness, per spec.md §4.2.
func (m *Multiplexer) Status() Status {
	anyNonTerminated := false
	for _, r := range m.sources {
		if r.src.IsTerminated() {
			continue
		}
		anyNonTerminated = true
		if _, ok := r.src.PeekWhen(); ok {
			return Ready
		}
	}
	if anyNonTerminated {
		return Idle
	}
	return Exhausted
}

// PeekWhen returns the earliest When across all ready sources, or false
// if Status() would report anything other than Ready.
func (m *Multiplexer) PeekWhen() (time.Time, bool) {
	r := m.selectSource()
	if r == nil {
		return time.Time{}, false
	}
	when, _ := r.src.PeekWhen()
	return when, true
}

// Pop selects the earliest-due event across every ready source (ties
// broken by registration order) and removes it from its source. Every
// popped event is assigned a fresh, monotonically increasing sequence
// number via event.Before's contract, exposed here as the returned seq
// so callers (the dispatcher) can order same-instant deliveries across
// calls deterministically.
func (m *Multiplexer) Pop() (event.Event, uint64, bool) {
	r := m.selectSource()
	if r == nil {
		return nil, 0, false
	}
	e, ok := r.src.Pop()
	if !ok {
		return nil, 0, false
	}
	m.eventSeq++
	return e, m.eventSeq, true
}

// selectSource finds the registered source with the earliest PeekWhen,
// breaking ties by registration sequence (ascending, i.e. FIFO).
func (m *Multiplexer) selectSource() *registered {
	var best *registered
	var bestWhen time.Time
	for _, r := range m.sources {
		when, ok := r.src.PeekWhen()
		if !ok {
			continue
		}
		if best == nil || when.Before(bestWhen) {
			best, bestWhen = r, when
			continue
		}
		if when.Equal(bestWhen) && r.seq < best.seq {
			best, bestWhen = r, when
		}
	}
	return best
}
