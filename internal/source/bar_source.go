package source

import (
	"io"
	"time"

	"github.com/quantforge/barstream/internal/bar"
	"github.com/quantforge/barstream/internal/event"
	"github.com/quantforge/barstream/internal/market"
)

// barEvent is the concrete Event a bar source yields.
type barEvent struct {
	event.Base
}

// AsBar extracts the Bar payload from an Event produced by
// NewSliceBarSource or NewCSVBarSource. ok is false if e does not carry
// a bar.
func AsBar(e event.Event) (bar.Bar, bool) {
	b, ok := e.Payload().(bar.Bar)
	return b, ok
}

// NewSliceBarSource wraps pre-loaded bars (already sorted by When
// ascending) as a Source with Kind() == event.KindBar, tagged with
// sourceID so subscribers and the multiplexer can attribute events back
// to this source.
func NewSliceBarSource(bars []bar.Bar, sourceID uint64) *Slice {
	events := make([]event.Event, len(bars))
	for i, b := range bars {
		events[i] = barEvent{event.MustNew(b.When, event.KindBar, sourceID, b)}
	}
	return NewSlice(events)
}

// NewCSVBarSource reads a bar CSV (spec.md §6) and wraps it the same way
// as NewSliceBarSource. The reader is consumed fully and can be closed
// by the caller immediately after this call returns.
func NewCSVBarSource(r io.Reader, pair market.Pair, period time.Duration, sourceID uint64) (*Slice, error) {
	bars, err := bar.ReadCSV(r, pair, period)
	if err != nil {
		return nil, err
	}
	return NewSliceBarSource(bars, sourceID), nil
}
