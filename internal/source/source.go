// Package source defines the EventSource / Producer contract of
// spec.md §4.1 and a handful of concrete sources built on it: a
// pre-loaded slice source (backtesting over historical bars) and a
// buffered, producer-fed source (realtime). New code — the teacher's
// backtest.go has no source abstraction, it pre-sorts a flat slice of
// every event up front — but it follows the same plain-struct idiom
// and the package-level Event primitive from internal/event.
package source

import (
	"sync"
	"time"

	"github.com/quantforge/barstream/internal/event"
)

// Producer is a background task that populates a Source. Start and Stop
// are both idempotent; Stop must run on every exit path once Start has
// succeeded (spec.md §4.1, "scoped acquisition").
type Producer interface {
	Start() error
	Stop() error
}

// Source is the EventSource contract: a lazy, ordered producer of
// events. Two consecutive Pop()s must yield non-decreasing When()
// (spec.md §4.1 contract).
type Source interface {
	// PeekWhen returns the earliest deliverable event's time, or false
	// if none is available right now (transiently empty or terminated).
	PeekWhen() (time.Time, bool)
	// Pop removes and returns the earliest deliverable event.
	Pop() (event.Event, bool)
	// IsTerminated reports whether the source will never produce again.
	IsTerminated() bool
}

// Producing optionally pairs a Source with the Producer that feeds it.
// The multiplexer's owner (the dispatcher) type-asserts for this to
// decide whether to Start/Stop the source's producer.
type Producing interface {
	Source
	Producer() Producer
}

// Slice is a Source backed by a pre-sorted, immutable slice of events —
// the shape historical bar data takes in backtesting. It never
// terminates until every event has been popped.
type Slice struct {
	events []event.Event
	offset int
}

// NewSlice builds a Slice source. events must already be sorted by
// When() ascending; NewSlice does not sort them, since the multiplexer's
// correctness depends on each source already honoring its own internal
// ordering contract (spec.md §4.1).
func NewSlice(events []event.Event) *Slice {
	return &Slice{events: events}
}

func (s *Slice) PeekWhen() (time.Time, bool) {
	if s.offset >= len(s.events) {
		return time.Time{}, false
	}
	return s.events[s.offset].When(), true
}

func (s *Slice) Pop() (event.Event, bool) {
	if s.offset >= len(s.events) {
		return nil, false
	}
	e := s.events[s.offset]
	s.offset++
	return e, true
}

func (s *Slice) IsTerminated() bool { return s.offset >= len(s.events) }

// Buffered is a Source fed concurrently by an attached Producer (e.g. a
// WebSocket reader goroutine in realtime mode). Appends happen from the
// producer's own goroutine; PeekWhen/Pop are only ever called from the
// dispatcher's single logical task, but must still synchronize against
// concurrent Append calls (spec.md §5, "Producers communicate with the
// core only by appending to source buffers, which the multiplexer
// drains serially").
type Buffered struct {
	mu         sync.Mutex
	buf        []event.Event
	producer   Producer
	terminated bool
}

// NewBuffered builds a Buffered source wrapping the given Producer. The
// Producer is expected to call Append as it receives data and Close
// when it has nothing further to contribute.
func NewBuffered(p Producer) *Buffered {
	return &Buffered{producer: p}
}

// Append adds an event to the buffer. Safe to call concurrently with
// PeekWhen/Pop.
func (b *Buffered) Append(e event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, e)
}

// Close marks the source as permanently exhausted. No further Append
// calls are expected after Close.
func (b *Buffered) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.terminated = true
}

func (b *Buffered) PeekWhen() (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) == 0 {
		return time.Time{}, false
	}
	return b.buf[0].When(), true
}

func (b *Buffered) Pop() (event.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) == 0 {
		return nil, false
	}
	e := b.buf[0]
	b.buf = b.buf[1:]
	return e, true
}

func (b *Buffered) IsTerminated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.terminated && len(b.buf) == 0
}

func (b *Buffered) Producer() Producer { return b.producer }
