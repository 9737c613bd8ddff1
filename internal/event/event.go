// Package event defines the Event primitive shared by every source,
// the scheduler, the multiplexer and the dispatcher (spec.md §3/§4.1).
// An Event is an immutable, timestamped value; Kind is the tagged
// variant the subscription table in internal/dispatcher keys on
// (spec.md §9 "Dynamic dispatch on Event").
package event

import (
	"time"

	"github.com/quantforge/barstream/internal/xerrors"
)

// Kind tags the concrete shape of an Event's payload so the dispatcher
// can route by a cheap comparable key instead of a type switch or
// reflection, per spec.md §9.
type Kind string

const (
	KindBar         Kind = "bar"
	KindOrderBook   Kind = "order_book"
	KindFill        Kind = "fill"
	KindOrderUpdate Kind = "order_update"
	KindCustom      Kind = "custom"
)

// Event is a timestamped, immutable occurrence. SourceID identifies the
// EventSource instance that produced it, so subscribers registered
// against a source (rather than a Kind) can be delivered to directly.
type Event interface {
	// When returns the instant this event occurred, always UTC.
	When() time.Time
	// Kind returns the tagged variant of this event's payload.
	Kind() Kind
	// SourceID identifies the producing EventSource.
	SourceID() uint64
	// Payload returns the concrete value carried by this event.
	Payload() any
}

// Base is embedded by concrete event types to satisfy Event without
// repeating the bookkeeping fields. It never mutates after New returns.
type Base struct {
	when     time.Time
	kind     Kind
	sourceID uint64
	payload  any
}

// New constructs a Base event. when must carry a UTC location; any
// other location is treated as a naive instant and rejected, per
// spec.md §6 ("Any naive instant crossing a public boundary is a
// programming error and must fail loudly").
func New(when time.Time, kind Kind, sourceID uint64, payload any) (Base, error) {
	if when.Location() != time.UTC {
		return Base{}, xerrors.ErrNaiveInstant
	}
	return Base{when: when, kind: kind, sourceID: sourceID, payload: payload}, nil
}

// MustNew is New but panics on a naive instant. Reserved for
// construction sites where the instant is already known-good (e.g.
// derived from another Event's When()).
func MustNew(when time.Time, kind Kind, sourceID uint64, payload any) Base {
	b, err := New(when, kind, sourceID, payload)
	if err != nil {
		panic(err)
	}
	return b
}

func (b Base) When() time.Time  { return b.when }
func (b Base) Kind() Kind       { return b.kind }
func (b Base) SourceID() uint64 { return b.sourceID }
func (b Base) Payload() any     { return b.payload }

// Before reports whether a sorts strictly before b under the ordering
// relation of spec.md §3: (when, insertion-sequence). Sequence is
// supplied by the caller (the multiplexer), since Event itself carries
// no sequence number — only the multiplexer assigns one, at the moment
// a source yields the event (spec.md §3 "Ordering relation").
func Before(aWhen time.Time, aSeq uint64, bWhen time.Time, bSeq uint64) bool {
	if aWhen.Equal(bWhen) {
		return aSeq < bSeq
	}
	return aWhen.Before(bWhen)
}
